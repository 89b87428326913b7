package transcriber

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"
)

// TracedClient is an http.Client wrapper that records per-phase timings
// via httptrace, feeding the diagnostics log's latency breakdown.
type TracedClient struct {
	client *http.Client
}

func NewTracedClient() *TracedClient {
	return &TracedClient{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

type TracedResponse struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Metrics    *NetworkMetrics
}

// phaseClock collects the timestamps the trace callbacks fire at and
// turns them into NetworkMetrics deltas.
type phaseClock struct {
	m        *NetworkMetrics
	getConn  time.Time
	dns      time.Time
	tcp      time.Time
	tls      time.Time
	gotConn  time.Time
	headers  time.Time
	body     time.Time
	firstB   time.Time
}

func (p *phaseClock) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(string) { p.getConn = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) {
			p.gotConn = time.Now()
			p.m.ConnWait = p.gotConn.Sub(p.getConn)
			p.m.ConnReused = info.Reused
		},
		DNSStart:          func(httptrace.DNSStartInfo) { p.dns = time.Now() },
		DNSDone:           func(httptrace.DNSDoneInfo) { p.m.DNS = time.Since(p.dns) },
		ConnectStart:      func(_, _ string) { p.tcp = time.Now() },
		ConnectDone:       func(_, _ string, _ error) { p.m.TCP = time.Since(p.tcp) },
		TLSHandshakeStart: func() { p.tls = time.Now() },
		TLSHandshakeDone: func(state tls.ConnectionState, _ error) {
			p.m.TLS = time.Since(p.tls)
			p.m.TLSProtocol = tls.VersionName(state.Version)
		},
		WroteHeaders: func() {
			p.headers = time.Now()
			p.m.ReqHeaders = p.headers.Sub(p.gotConn)
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			p.body = time.Now()
			p.m.ReqBody = p.body.Sub(p.headers)
		},
		GotFirstResponseByte: func() {
			p.firstB = time.Now()
			p.m.TTFB = p.firstB.Sub(p.body)
		},
	}
}

// Do executes the request with tracing attached. Cancellation comes
// through the request's context.
func (c *TracedClient) Do(req *http.Request) (*TracedResponse, error) {
	clock := &phaseClock{m: &NetworkMetrics{}}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), clock.trace()))

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	clock.m.Download = time.Since(clock.firstB)
	clock.m.Total = time.Since(started)

	return &TracedResponse{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Metrics:    clock.m,
	}, nil
}

// WarmConnection opens the TLS session ahead of the first chunk so the
// handshake cost doesn't land on transcription latency.
func (c *TracedClient) WarmConnection(url string) time.Duration {
	var tlsStart time.Time
	var handshake time.Duration

	trace := &httptrace.ClientTrace{
		TLSHandshakeStart: func() { tlsStart = time.Now() },
		TLSHandshakeDone:  func(tls.ConnectionState, error) { handshake = time.Since(tlsStart) },
	}

	req, err := http.NewRequest("HEAD", url, nil)
	if err != nil {
		return 0
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
	resp, err := c.client.Do(req)
	if err != nil {
		return 0
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return handshake
}
