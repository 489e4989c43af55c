package source

import (
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	ConnectTimeout   = 5 * time.Second
	KeepAlive        = 30 * time.Second
	HandshakeTimeout = 10 * time.Second
)

// NewHTTPClient returns a client for remote capture sources. Connecting and
// waiting for headers are bounded; the body streams without a deadline.
func NewHTTPClient(userAgent string) *resty.Client {
	client := resty.New().SetTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   ConnectTimeout,
			KeepAlive: KeepAlive,
		}).DialContext,
		TLSHandshakeTimeout:   HandshakeTimeout,
		ResponseHeaderTimeout: ConnectTimeout * 6,
	})
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}
	return client
}
