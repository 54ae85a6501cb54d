/*
Package ginrecorder provides a middleware to wire a httprecorder into Gin routers used in test fakes.
*/
package ginrecorder

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/circleci/reqassert/testing/httprecorder"
)

func Middleware(ctx context.Context, rec *httprecorder.RequestRecorder) gin.HandlerFunc {
	log := zerolog.Ctx(ctx)
	return func(c *gin.Context) {
		err := rec.Record(c.Request)
		if err != nil {
			log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("problem recording HTTP request")
		}
		c.Next()
	}
}
