// Package tlsutil 为各厂商 HTTP 客户端提供统一的加固传输层
// （TLS 1.2+，仅 AEAD 密码套件，遵循 HTTP(S)_PROXY 环境变量）。
package tlsutil
