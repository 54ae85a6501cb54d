// Package fakereporter provides a reqassert.Reporter that keeps sub-test results in
// memory, so helpers built on reqassert can assert on the failures they produce.
package fakereporter

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"gotest.tools/v3/assert"
)

type SubTest struct {
	Name     string
	Failed   bool
	Messages []string
	// Helpers are the functions that marked themselves as test helpers.
	Helpers []string
}

// Message returns all the logged messages joined by newlines.
func (s SubTest) Message() string {
	return strings.Join(s.Messages, "\n")
}

type Reporter struct {
	mu sync.RWMutex

	// mutable state
	subTests []SubTest
}

func New() *Reporter {
	return &Reporter{}
}

func (r *Reporter) SubTest(name string, check func(t assert.TestingT)) {
	ft := &fakeT{}
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				if _, ok := rec.(failNow); !ok {
					panic(rec)
				}
			}
		}()
		check(ft)
	}()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.subTests = append(r.subTests, SubTest{
		Name:     name,
		Failed:   ft.failed,
		Messages: ft.messages,
		Helpers:  ft.helpers,
	})
}

// HasHelper reports whether a function whose name starts with prefix marked
// itself as a helper.
func (s SubTest) HasHelper(prefix string) bool {
	for _, h := range s.Helpers {
		if strings.HasPrefix(h, prefix) {
			return true
		}
	}
	return false
}

// SubTests returns every sub-test run, in order.
func (r *Reporter) SubTests() []SubTest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subTests := make([]SubTest, len(r.subTests))
	copy(subTests, r.subTests)
	return subTests
}

// Failures returns the sub-tests that failed, in order.
func (r *Reporter) Failures() []SubTest {
	var failed []SubTest
	for _, s := range r.SubTests() {
		if s.Failed {
			failed = append(failed, s)
		}
	}
	return failed
}

type failNow struct{}

type fakeT struct {
	failed   bool
	helpers  []string
	messages []string
}

func (f *fakeT) Fail() {
	f.failed = true
}

// FailNow unwinds back to Reporter.SubTest.
func (f *fakeT) FailNow() {
	f.failed = true
	panic(failNow{})
}

func (f *fakeT) Log(args ...interface{}) {
	f.messages = append(f.messages, fmt.Sprint(args...))
}

// Helper records the calling function by name, as testing.T does.
func (f *fakeT) Helper() {
	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return
	}
	f.helpers = append(f.helpers, runtime.FuncForPC(pc).Name())
}
