package security

import (
	"net/http"
	"sort"
	"strconv"
	"time"
)

// Policy lists the headers sent with every page and fragment.
type Policy struct {
	ContentSecurity string

	// Strict-Transport-Security is only sent on TLS connections.
	HSTSMaxAge     time.Duration
	HSTSSubdomains bool

	// Fixed is sent verbatim. Empty values are skipped.
	Fixed map[string]string
}

// BoardPolicy is the policy for the board UI: htmx comes from unpkg,
// everything else is ours.
func BoardPolicy() Policy {
	return Policy{
		ContentSecurity: "default-src 'self'; " +
			"script-src 'self' https://unpkg.com; " +
			"style-src 'self' 'unsafe-inline'; " +
			"img-src 'self' data:; " +
			"connect-src 'self'; " +
			"object-src 'none'; " +
			"frame-ancestors 'none'; " +
			"base-uri 'self'; " +
			"form-action 'self'",
		HSTSMaxAge:     365 * 24 * time.Hour,
		HSTSSubdomains: true,
		Fixed: map[string]string{
			"X-Content-Type-Options":       "nosniff",
			"X-Frame-Options":              "DENY",
			"Referrer-Policy":              "strict-origin-when-cross-origin",
			"Permissions-Policy":           "geolocation=(), microphone=(), camera=(), payment=()",
			"Cross-Origin-Opener-Policy":   "same-origin",
			"Cross-Origin-Resource-Policy": "same-origin",
		},
	}
}

type header struct{ name, value string }

// Headers applies a Policy. The header list is resolved once.
type Headers struct {
	fixed []header
	hsts  string
}

func NewHeaders(p Policy) *Headers {
	h := &Headers{}
	if p.ContentSecurity != "" {
		h.fixed = append(h.fixed, header{"Content-Security-Policy", p.ContentSecurity})
	}
	for name, value := range p.Fixed {
		if value != "" {
			h.fixed = append(h.fixed, header{name, value})
		}
	}
	sort.Slice(h.fixed, func(i, j int) bool { return h.fixed[i].name < h.fixed[j].name })

	if secs := int64(p.HSTSMaxAge / time.Second); secs > 0 {
		h.hsts = "max-age=" + strconv.FormatInt(secs, 10)
		if p.HSTSSubdomains {
			h.hsts += "; includeSubDomains"
		}
	}
	return h
}

// Middleware sets the policy headers. htmx fragment responses are also
// marked no-store, since the same URL serves a full page without HX-Request.
func (h *Headers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := w.Header()
		for _, f := range h.fixed {
			out.Set(f.name, f.value)
		}
		if r.TLS != nil && h.hsts != "" {
			out.Set("Strict-Transport-Security", h.hsts)
		}
		if r.Header.Get("HX-Request") == "true" {
			out.Set("Cache-Control", "no-store")
			out.Add("Vary", "HX-Request")
		}
		next.ServeHTTP(w, r)
	})
}

// CacheStatic lets browsers keep embedded assets for maxAge.
func CacheStatic(maxAge time.Duration) func(http.Handler) http.Handler {
	value := "public, max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxAge > 0 {
				w.Header().Set("Cache-Control", value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
