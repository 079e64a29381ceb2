package httpserver

import (
	"net/http"
	"net/url"
	"strings"
)

// NormalizeOrigin canonicalizes an Origin header value to
// scheme://host[:port] in lower case, dropping default ports. ok is false
// for anything that is not a well-formed origin. The literal "null" origin
// (sandboxed iframes, file://) is preserved as-is.
func NormalizeOrigin(raw string) (normalized string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if raw == "null" {
		return "null", true
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" || u.User != nil {
		return "", false
	}
	if u.Path != "" && u.Path != "/" {
		return "", false
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	return scheme + "://" + host, true
}

// OriginAllowed reports whether a normalized origin may talk to the relay.
// An empty allowlist permits only same-host origins (requestHost is the
// HTTP Host header); "*" permits everything.
func OriginAllowed(normalized, requestHost string, allowed []string) bool {
	if len(allowed) == 0 {
		u, err := url.Parse(normalized)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, requestHost)
	}
	for _, entry := range allowed {
		if entry == "*" || entry == normalized {
			return true
		}
	}
	return false
}

// OriginPermitted applies the full policy to a request: absent Origin
// headers pass (non-browser clients), everything else must normalize and
// be allowed.
func OriginPermitted(r *http.Request, allowed []string) bool {
	raw := strings.TrimSpace(r.Header.Get("Origin"))
	if raw == "" {
		return true
	}
	normalized, ok := NormalizeOrigin(raw)
	return ok && OriginAllowed(normalized, r.Host, allowed)
}

// WithOriginPolicy wraps a handler with the origin allowlist plus CORS
// response headers and preflight support for browser clients.
func (s *Server) WithOriginPolicy(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get("Origin"))
		if raw == "" {
			next(w, r)
			return
		}

		normalized, ok := NormalizeOrigin(raw)
		if !ok || !OriginAllowed(normalized, r.Host, s.cfg.AllowedOrigins) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", normalized)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		w.Header().Add("Vary", "Origin")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
			if requestHeaders := strings.TrimSpace(r.Header.Get("Access-Control-Request-Headers")); requestHeaders != "" {
				w.Header().Set("Access-Control-Allow-Headers", requestHeaders)
			}
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}
