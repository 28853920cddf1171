package app

import (
	"net"
	"net/http"
	"time"
)

// newHTTPClient returns a pooled client. Per-request deadlines are applied by
// callers through context, so only the overall ceiling is set here.
func newHTTPClient(ceiling time.Duration, concurrency int) *http.Client {
	perHost := concurrency * 2
	if perHost < 8 {
		perHost = 8
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          0,
		MaxIdleConnsPerHost:   perHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   ceiling,
	}
}
