package tlsutil

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// MaxIdleConnsPerHost 单个厂商主机保留的空闲连接数
const MaxIdleConnsPerHost = 16

// DefaultTLSConfig returns a hardened TLS configuration.
// MinVersion TLS 1.2, AEAD-only cipher suites.
func DefaultTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}
}

// SecureTransport 返回厂商调用使用的传输层。
// 拨号与 TLS 握手超时不超过整体请求超时。
func SecureTransport(timeout time.Duration) *http.Transport {
	dial := 30 * time.Second
	handshake := 10 * time.Second
	if timeout > 0 {
		dial = min(dial, timeout)
		handshake = min(handshake, timeout)
	}
	return &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: DefaultTLSConfig(),
		DialContext: (&net.Dialer{
			Timeout:   dial,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   handshake,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// SecureHTTPClient 返回带整体超时的加固客户端，timeout <= 0 表示不限
func SecureHTTPClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: SecureTransport(timeout),
	}
}
