package security

import (
	"net/http"
	"strconv"
	"time"
)

// HeadersConfig lists the response headers added to every API reply. Empty
// values are not sent.
type HeadersConfig struct {
	ContentSecurityPolicy string
	FrameOptions          string
	ContentTypeOptions    string
	ReferrerPolicy        string
	ResourcePolicy        string
	// CacheControl is a default; handlers may overwrite it.
	CacheControl string

	// HSTS is only sent on TLS connections. Zero disables it.
	HSTSMaxAge            time.Duration
	HSTSIncludeSubdomains bool
}

// DefaultHeadersConfig suits a JSON API that serves no documents or scripts.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		FrameOptions:          "DENY",
		ContentTypeOptions:    "nosniff",
		ReferrerPolicy:        "no-referrer",
		ResourcePolicy:        "same-origin",
		CacheControl:          "no-store",
		HSTSMaxAge:            365 * 24 * time.Hour,
		HSTSIncludeSubdomains: true,
	}
}

// HeadersMiddleware stamps a fixed header set onto responses.
type HeadersMiddleware struct {
	static http.Header
	hsts   string
}

func NewHeadersMiddleware(cfg HeadersConfig) *HeadersMiddleware {
	static := http.Header{}
	for name, value := range map[string]string{
		"Content-Security-Policy":      cfg.ContentSecurityPolicy,
		"X-Frame-Options":              cfg.FrameOptions,
		"X-Content-Type-Options":       cfg.ContentTypeOptions,
		"Referrer-Policy":              cfg.ReferrerPolicy,
		"Cross-Origin-Resource-Policy": cfg.ResourcePolicy,
		"Cache-Control":                cfg.CacheControl,
	} {
		if value != "" {
			static.Set(name, value)
		}
	}

	var hsts string
	if secs := int64(cfg.HSTSMaxAge / time.Second); secs > 0 {
		hsts = "max-age=" + strconv.FormatInt(secs, 10)
		if cfg.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
	}
	return &HeadersMiddleware{static: static, hsts: hsts}
}

func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dst := w.Header()
		for name := range h.static {
			dst.Set(name, h.static.Get(name))
		}
		if h.hsts != "" && r.TLS != nil {
			dst.Set("Strict-Transport-Security", h.hsts)
		}
		next.ServeHTTP(w, r)
	})
}
