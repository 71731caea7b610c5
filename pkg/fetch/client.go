package fetch

import (
	"errors"
	"net"
	"net/http"

	"github.com/sirupsen/logrus"

	"asset-downloader/pkg/config"
)

// NewClient creates the shared HTTP client for a download run. The
// connect timeout applies to the TCP dial; the read timeout bounds the
// whole request including body streaming, independent of run
// cancellation.
func NewClient(fetchCfg config.FetchConfig, clientCfg config.HTTPClientConfig, log *logrus.Logger) *http.Client {
	dialer := &net.Dialer{
		Timeout:   fetchCfg.ConnectTimeout,
		KeepAlive: clientCfg.DialerKeepAlive,
	}

	transport := &http.Transport{
		Proxy:                  http.ProxyFromEnvironment,
		DialContext:            dialer.DialContext,
		ForceAttemptHTTP2:      true,
		MaxIdleConns:           clientCfg.MaxIdleConns,
		MaxIdleConnsPerHost:    clientCfg.MaxIdleConnsPerHost,
		IdleConnTimeout:        clientCfg.IdleConnTimeout,
		TLSHandshakeTimeout:    clientCfg.TLSHandshakeTimeout,
		MaxResponseHeaderBytes: 1 << 20,
	}

	client := &http.Client{
		Timeout:   fetchCfg.ReadTimeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			log.Debugf("Redirecting: %s -> %s (hop %d)", via[len(via)-1].URL, req.URL, len(via))
			return nil
		},
	}
	return client
}
