// Package responses holds the canned responses registered for one route.
package responses

import (
	"sync"

	"github.com/circleci/reqassert/expect"
)

// Queue hands out responses in registration order. The last response is
// served again for every call after the queue runs out.
type Queue struct {
	mu        sync.Mutex
	responses []expect.Response
}

func (q *Queue) Push(r expect.Response) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.responses = append(q.responses, r)
}

// Next returns the response for the next call. It must not be called on an
// empty queue.
func (q *Queue) Next() expect.Response {
	q.mu.Lock()
	defer q.mu.Unlock()
	r := q.responses[0]
	if len(q.responses) > 1 {
		q.responses = q.responses[1:]
	}
	return r
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.responses)
}
