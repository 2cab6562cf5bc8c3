// File: internal/network/httpclient.go
package network

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/publicsuffix"
)

// Constants for default outbound HTTP settings.
const (
	DefaultDialTimeout           = 5 * time.Second
	DefaultKeepAliveInterval     = 15 * time.Second
	DefaultTLSHandshakeTimeout   = 5 * time.Second
	DefaultResponseHeaderTimeout = 20 * time.Second
	DefaultRequestTimeout        = 60 * time.Second

	DefaultMaxIdleConns        = 20
	DefaultMaxIdleConnsPerHost = 5
	DefaultIdleConnTimeout     = 60 * time.Second

	// DefaultUserAgent is sent by clients that fetch public web pages.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
)

// ClientConfig holds the configuration for the HTTP client and transport layers.
type ClientConfig struct {
	IgnoreTLSErrors bool

	// Timeout settings
	RequestTimeout        time.Duration // Overall client timeout
	DialTimeout           time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration

	// Connection pool settings
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	ForceHTTP2 bool

	// EnableCookies attaches a cookie jar scoped by the public suffix list.
	EnableCookies bool

	Logger *zap.Logger
}

// NewDefaultClientConfig creates a configuration suited to API calls and page fetches.
func NewDefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		RequestTimeout:        DefaultRequestTimeout,
		DialTimeout:           DefaultDialTimeout,
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
		MaxIdleConns:          DefaultMaxIdleConns,
		MaxIdleConnsPerHost:   DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		ForceHTTP2:            true,
		Logger:                zap.NewNop(),
	}
}

// NewHTTPTransport creates an http.Transport from the configuration.
func NewHTTPTransport(config *ClientConfig) *http.Transport {
	if config == nil {
		config = NewDefaultClientConfig()
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	dialer := &net.Dialer{
		Timeout:   config.DialTimeout,
		KeepAlive: DefaultKeepAliveInterval,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSClientConfig:       configureTLS(config),
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		ForceAttemptHTTP2:     config.ForceHTTP2,
	}

	if config.ForceHTTP2 {
		// http2.ConfigureTransport modifies the transport in place to add HTTP/2 support.
		if err := http2.ConfigureTransport(transport); err != nil {
			config.Logger.Warn("Failed to configure HTTP/2 transport, falling back to HTTP/1.1", zap.Error(err))
		}
	}
	return transport
}

// NewClient creates an *http.Client using the configured transport.
func NewClient(config *ClientConfig) (*http.Client, error) {
	if config == nil {
		config = NewDefaultClientConfig()
	}

	client := &http.Client{
		Transport: NewHTTPTransport(config),
		Timeout:   config.RequestTimeout,
	}

	if config.EnableCookies {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		client.Jar = jar
	}
	return client, nil
}

// configureTLS enforces TLS 1.2 or newer.
func configureTLS(config *ClientConfig) *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ClientSessionCache: tls.NewLRUClientSessionCache(64),
		InsecureSkipVerify: config.IgnoreTLSErrors,
	}
}
