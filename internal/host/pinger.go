package host

import (
	"fmt"
	"time"

	"github.com/hako/durafmt"
	"github.com/imWorldy/StarfishPlugins/internal/dispatcher"
	"github.com/imWorldy/StarfishPlugins/internal/metrics"
	"github.com/valyala/fasthttp"
)

// HTTPPinger times a GET against a status endpoint.
type HTTPPinger struct {
	doer    dispatcher.Doer
	url     string
	latency *metrics.LatencyHistogram
}

func NewHTTPPinger(doer dispatcher.Doer, url string) *HTTPPinger {
	return &HTTPPinger{
		doer:    doer,
		url:     url,
		latency: metrics.GetRegistry().Histogram("ping_api"),
	}
}

func (p *HTTPPinger) Ping(timeout time.Duration) (PingResult, error) {
	start := time.Now()
	resp, err := dispatcher.Do(p.doer, dispatcher.Request{
		Method: fasthttp.MethodGet,
		URL:    p.url,
	}, timeout)
	if err != nil {
		if dispatcher.IsTimeout(err) {
			return PingResult{}, fmt.Errorf("ping timed out after %s", durafmt.Parse(timeout).LimitFirstN(2))
		}
		return PingResult{}, err
	}
	elapsed := time.Since(start)

	switch {
	case resp.StatusCode == fasthttp.StatusTooManyRequests:
		return PingResult{Error: PingErrorRateLimited, ErrorMessage: "rate limited"}, nil
	case !resp.OK():
		return PingResult{Error: 1, ErrorMessage: fmt.Sprintf("ping endpoint returned %d", resp.StatusCode)}, nil
	}

	p.latency.Observe(elapsed)
	return PingResult{Success: true, Latency: elapsed}, nil
}
