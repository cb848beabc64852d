package transcriber

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/httptrace"
	"time"
)

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

// Lines renders the non-zero phases for the transcription log.
func (m *NetworkMetrics) Lines() []string {
	var out []string
	add := func(name string, d time.Duration) {
		if d > 0 {
			out = append(out, fmt.Sprintf("%s: %dms", name, d.Milliseconds()))
		}
	}
	add("dns", m.DNS)
	add("conn_wait", m.ConnWait)
	add("tcp", m.TCP)
	add("tls", m.TLS)
	add("req_headers", m.ReqHeaders)
	add("req_body", m.ReqBody)
	add("ttfb", m.TTFB)
	add("download", m.Download)
	out = append(out, fmt.Sprintf("total: %dms (reused=%t)", m.Total.Milliseconds(), m.ConnReused))
	return out
}

// NewHTTPClient returns the client handed to the Gemini SDK. Idle
// connections are kept so back-to-back submissions skip the handshake.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        4,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
}

// traceRequest attaches an httptrace hook to ctx. Every request issued with
// the returned context records into the same metrics; call finish once the
// response has been consumed.
func traceRequest(ctx context.Context) (context.Context, *NetworkMetrics, func()) {
	metrics := &NetworkMetrics{}
	var getConnStart, dnsStart, tcpStart, tlsStart time.Time
	var gotConn, wroteHeaders, wroteRequest, firstByte time.Time

	trace := &httptrace.ClientTrace{
		GetConn: func(_ string) { getConnStart = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) {
			gotConn = time.Now()
			metrics.ConnWait = gotConn.Sub(getConnStart)
			metrics.ConnReused = info.Reused
		},
		DNSStart:          func(_ httptrace.DNSStartInfo) { dnsStart = time.Now() },
		DNSDone:           func(_ httptrace.DNSDoneInfo) { metrics.DNS = time.Since(dnsStart) },
		ConnectStart:      func(_, _ string) { tcpStart = time.Now() },
		ConnectDone:       func(_, _ string, _ error) { metrics.TCP = time.Since(tcpStart) },
		TLSHandshakeStart: func() { tlsStart = time.Now() },
		TLSHandshakeDone: func(state tls.ConnectionState, _ error) {
			metrics.TLS = time.Since(tlsStart)
			metrics.TLSProtocol = tls.VersionName(state.Version)
		},
		WroteHeaders: func() {
			wroteHeaders = time.Now()
			metrics.ReqHeaders = wroteHeaders.Sub(gotConn)
		},
		WroteRequest: func(_ httptrace.WroteRequestInfo) {
			wroteRequest = time.Now()
			metrics.ReqBody = wroteRequest.Sub(wroteHeaders)
		},
		GotFirstResponseByte: func() {
			firstByte = time.Now()
			metrics.TTFB = firstByte.Sub(wroteRequest)
		},
	}

	start := time.Now()
	finish := func() {
		if !firstByte.IsZero() {
			metrics.Download = time.Since(firstByte)
		}
		metrics.Total = time.Since(start)
	}
	return httptrace.WithClientTrace(ctx, trace), metrics, finish
}
