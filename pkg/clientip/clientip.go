// Package clientip resolves the address used for rate limiting and request logs.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// RealClientIP returns the client IP from r.RemoteAddr only. Proxy headers are honoured only
// when FromForwardedFor has rewritten RemoteAddr.
func RealClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return strings.TrimSpace(host)
}

// FromForwardedFor rewrites RemoteAddr to the nearest untrusted hop of X-Forwarded-For, skipping
// `trustedHops` proxies counted from the right. Use only when the app sits behind that many proxies
// (e.g. 1 behind a single load balancer); otherwise the header is client-controlled.
func FromForwardedFor(trustedHops int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := forwardedIP(r.Header.Values("X-Forwarded-For"), trustedHops); ip != "" {
				r.RemoteAddr = net.JoinHostPort(ip, "0")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forwardedIP(headers []string, trustedHops int) string {
	if trustedHops <= 0 {
		return ""
	}
	var hops []string
	for _, h := range headers {
		for _, part := range strings.Split(h, ",") {
			if part = strings.TrimSpace(part); part != "" {
				hops = append(hops, part)
			}
		}
	}
	idx := len(hops) - trustedHops
	if idx < 0 {
		idx = 0
	}
	if idx >= len(hops) {
		return ""
	}
	ip := net.ParseIP(hops[idx])
	if ip == nil {
		return ""
	}
	return ip.String()
}
