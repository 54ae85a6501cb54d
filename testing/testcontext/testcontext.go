// Package testcontext provides contexts for tests that carry a working logger.
package testcontext

import (
	"context"
	"os"

	"github.com/rs/zerolog"
)

// ctx is a global singleton so every caller of Background shares one logger.
var ctx = newContext()

// Background returns a context with a logger writing to stderr, for examples
// and package level setup where no test is at hand to log through.
func Background() context.Context {
	return ctx
}

// New returns a context with a logger writing through t, so log lines are
// attributed to the test that produced them.
func New(t zerolog.TestingLog) context.Context {
	log := zerolog.New(zerolog.NewTestWriter(t)).With().Timestamp().Logger()
	return log.WithContext(context.Background())
}

func newContext() context.Context {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	return log.WithContext(context.Background())
}
