package sharedhttp

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

func newTransport(tlsConfig *tls.Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       tlsConfig,
	}
}

// Transport is shared by every API client in the process.
var Transport = newTransport(&tls.Config{
	MinVersion: tls.VersionTLS12,
})

// TransportTLSInsecure is for monitors behind a self signed reverse proxy.
var TransportTLSInsecure = newTransport(&tls.Config{
	InsecureSkipVerify: true,
})
