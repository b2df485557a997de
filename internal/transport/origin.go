package transport

import (
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// OriginValidator decides whether a websocket handshake origin is allowed.
type OriginValidator interface {
	IsAllowedOrigin(origin string) bool
}

// PatternOriginValidator matches origin hosts against glob patterns such
// as "localhost:*" or "*.example.com". A "*" pattern allows everything.
type PatternOriginValidator struct {
	Patterns []string
}

func (v PatternOriginValidator) IsAllowedOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	for _, pattern := range v.Patterns {
		pattern = strings.ToLower(pattern)
		if pattern == "*" {
			return true
		}
		if ok, _ := path.Match(pattern, strings.ToLower(u.Host)); ok {
			return true
		}
	}
	return false
}

// checkOrigin allows same-host and header-less requests, which is what
// non-browser upstream clients send.
func checkOrigin(v OriginValidator, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return v != nil && v.IsAllowedOrigin(origin)
}

// clientIP extracts the caller address for logging.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
