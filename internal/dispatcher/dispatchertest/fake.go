// Package dispatchertest provides a scripted dispatcher.Doer for tests.
package dispatchertest

import (
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
)

type Call struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
	Timeout time.Duration
}

type Reply struct {
	Status  int
	Body    string
	Headers map[string]string
	Err     error
}

// FakeDoer records every request and answers from Replies in order, then
// from Handler, then with Default.
type FakeDoer struct {
	mu      sync.Mutex
	calls   []Call
	Replies []Reply
	Handler func(Call) Reply
	Default Reply
}

func (f *FakeDoer) DoTimeout(req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error {
	call := Call{
		Method:  string(req.Header.Method()),
		URL:     req.URI().String(),
		Headers: make(map[string]string),
		Body:    string(req.Body()),
		Timeout: timeout,
	}
	req.Header.VisitAll(func(key, value []byte) {
		call.Headers[strings.ToLower(string(key))] = string(value)
	})

	f.mu.Lock()
	f.calls = append(f.calls, call)
	var reply Reply
	switch {
	case len(f.Replies) > 0:
		reply = f.Replies[0]
		f.Replies = f.Replies[1:]
	case f.Handler != nil:
		reply = f.Handler(call)
	default:
		reply = f.Default
	}
	f.mu.Unlock()

	if reply.Err != nil {
		return reply.Err
	}
	status := reply.Status
	if status == 0 {
		status = fasthttp.StatusOK
	}
	resp.SetStatusCode(status)
	for k, v := range reply.Headers {
		resp.Header.Set(k, v)
	}
	resp.SetBodyString(reply.Body)
	return nil
}

func (f *FakeDoer) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *FakeDoer) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
