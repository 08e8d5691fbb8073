package dispatcher

import (
	"crypto/tls"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
)

// Doer is the part of *fasthttp.Client the plugins depend on. Tests swap in fakes.
type Doer interface {
	DoTimeout(req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error
}

type HTTPPool struct {
	clients []*fasthttp.Client
	next    atomic.Uint32
}

func NewHTTPPool(size int, userAgent string) *HTTPPool {
	if size < 1 {
		size = 1
	}
	clients := make([]*fasthttp.Client, size)

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		// Session cache for faster reconnections to the same webhook host
		ClientSessionCache: tls.NewLRUClientSessionCache(64),
	}

	for i := 0; i < size; i++ {
		clients[i] = &fasthttp.Client{
			Name:                userAgent,
			MaxConnsPerHost:     16,
			MaxIdleConnDuration: 90 * time.Second,
			ReadTimeout:         15 * time.Second,
			WriteTimeout:        15 * time.Second,
			MaxConnWaitTimeout:  2 * time.Second,
			MaxResponseBodySize: 1 << 20,

			// Webhook and check requests are not idempotent from the user's view
			MaxIdemponentCallAttempts: 1,

			TLSConfig: tlsConfig,
		}
	}

	return &HTTPPool{clients: clients}
}

func (hp *HTTPPool) GetClient() *fasthttp.Client {
	i := hp.next.Add(1) - 1
	return hp.clients[int(i)%len(hp.clients)]
}

// DoTimeout sends the request on the next client in the pool.
func (hp *HTTPPool) DoTimeout(req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error {
	return hp.GetClient().DoTimeout(req, resp, timeout)
}

func (hp *HTTPPool) CloseIdle() {
	for _, c := range hp.clients {
		c.CloseIdleConnections()
	}
}
