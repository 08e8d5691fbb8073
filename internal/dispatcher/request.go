package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

type Request struct {
	Method      string
	URL         string
	ContentType string
	Headers     map[string]string
	Body        []byte
}

type Response struct {
	StatusCode int
	Body       []byte
	// Headers holds response headers with lowercased names
	Headers map[string]string
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) Header(name string) string {
	return r.Headers[strings.ToLower(name)]
}

// Do performs r on doer and copies the response out of fasthttp's pooled buffers.
func Do(doer Doer, r Request, timeout time.Duration) (*Response, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	method := r.Method
	if method == "" {
		method = fasthttp.MethodGet
	}

	req.SetRequestURI(r.URL)
	req.Header.SetMethod(method)
	if r.ContentType != "" {
		req.Header.SetContentType(r.ContentType)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	if len(r.Body) > 0 {
		req.SetBody(r.Body)
	}

	if err := doer.DoTimeout(req, resp, timeout); err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, redact(r.URL), err)
	}

	out := &Response{
		StatusCode: resp.StatusCode(),
		Body:       append([]byte(nil), resp.Body()...),
		Headers:    make(map[string]string),
	}
	resp.Header.VisitAll(func(key, value []byte) {
		out.Headers[strings.ToLower(string(key))] = string(value)
	})

	return out, nil
}

// IsTimeout reports whether err came from a request deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, fasthttp.ErrTimeout)
}

// redact drops path and query so webhook tokens never reach logs.
func redact(rawURL string) string {
	uri := fasthttp.AcquireURI()
	defer fasthttp.ReleaseURI(uri)
	if err := uri.Parse(nil, []byte(rawURL)); err != nil {
		return "<invalid url>"
	}
	return string(uri.Scheme()) + "://" + string(uri.Host())
}
