package middleware

import (
	"net"
	"net/http"
	"strings"
)

// UnknownIP is the shared key for requests without forwarding headers.
const UnknownIP = "unknown"

// ClientIP returns the first X-Forwarded-For entry, else X-Real-IP, else
// UnknownIP. The service is expected to run behind a proxy that sets these.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return UnknownIP
}

// RemoteIP returns the host part of the connection's remote address.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
