// Package util holds small helpers shared by outbound transports.
package util

import (
	"net/http"
	"net/url"

	"golang.org/x/net/http/httpproxy"
)

// NewProxyFunc returns the proxy selector for an HTTP transport. Explicit
// settings take precedence; with none set the standard HTTP_PROXY,
// HTTPS_PROXY and NO_PROXY environment variables apply.
func NewProxyFunc(httpProxy, httpsProxy, noProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	cfg := &httpproxy.Config{
		HTTPProxy:  httpProxy,
		HTTPSProxy: httpsProxy,
		NoProxy:    noProxy,
	}
	if cfg.HTTPSProxy == "" {
		cfg.HTTPSProxy = httpProxy
	}
	proxy := cfg.ProxyFunc()

	return func(req *http.Request) (*url.URL, error) {
		return proxy(req.URL)
	}
}
