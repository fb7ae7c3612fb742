// Package security provides response hardening and request screening.
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	applog "lifedash/internal/log"
)

const maxURLLength = 2048

var (
	attackPatterns = []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", ".git", ".ssh",
		"eval(", "javascript:", "<script", "union select",
		"etc/passwd", "cmd.exe",
	}
	// curl and HTTP libraries are normal API clients; only scanners count.
	scannerAgents  = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab"}
	blockedMethods = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}

	privateNetworks = []netip.Prefix{
		netip.MustParsePrefix("127.0.0.0/8"),
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("172.16.0.0/12"),
		netip.MustParsePrefix("192.168.0.0/16"),
	}
)

// DetectionStats counts what the detector has seen since start.
type DetectionStats struct {
	Suspicious       int64
	InvalidForwarded int64
	Blocked          int64
}

// Detector screens requests for scanner traffic and resolves the client
// address behind trusted proxies.
type Detector struct {
	mu      sync.RWMutex
	proxies []netip.Prefix

	suspicious       atomic.Int64
	invalidForwarded atomic.Int64
	blocked          atomic.Int64
}

// NewDetector returns a detector that trusts loopback and RFC 1918 proxies.
func NewDetector() *Detector {
	return &Detector{proxies: slices.Clone(privateNetworks)}
}

// AddTrustedProxy trusts forwarding headers from cidr. A bare address is a
// single-host network.
func (d *Detector) AddTrustedProxy(cidr string) error {
	var prefix netip.Prefix
	if addr, err := netip.ParseAddr(cidr); err == nil {
		prefix = netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen())
	} else if prefix, err = netip.ParsePrefix(cidr); err != nil {
		return fmt.Errorf("invalid trusted proxy %q: %w", cidr, err)
	}

	d.mu.Lock()
	d.proxies = append(d.proxies, prefix.Masked())
	d.mu.Unlock()
	return nil
}

// Screen returns why r looks like attack or scanner traffic, or "" when it
// looks ordinary.
func (d *Detector) Screen(r *http.Request) string {
	query, err := url.QueryUnescape(r.URL.RawQuery)
	if err != nil {
		query = r.URL.RawQuery
	}

	var reason string
	switch {
	case slices.Contains(blockedMethods, r.Method):
		reason = "method"
	case matchAny(r.URL.Path, attackPatterns), matchAny(query, attackPatterns):
		reason = "pattern"
	case matchAny(r.UserAgent(), scannerAgents):
		reason = "agent"
	case len(r.URL.String()) > maxURLLength:
		reason = "url_length"
	case strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5:
		reason = "forwarded_chain"
	default:
		return ""
	}
	d.suspicious.Add(1)
	return reason
}

// DetectSuspiciousRequest reports whether Screen flags r.
func (d *Detector) DetectSuspiciousRequest(r *http.Request) bool {
	return d.Screen(r) != ""
}

// Middleware logs flagged requests and answers diagnostic methods with 405.
// Other flagged requests still reach next.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reason := d.Screen(r)
		if reason == "" {
			next.ServeHTTP(w, r)
			return
		}

		applog.FromContext(r.Context()).WithComponent(applog.ComponentSecurity).WarnContext(r.Context(),
			"Suspicious request",
			"reason", reason,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, d.ExtractClientIP(r),
			applog.FieldUserAgent, r.UserAgent())

		if reason == "method" {
			d.blocked.Add(1)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractClientIP returns the peer address, or the forwarded client address
// when the peer is a trusted proxy. X-Forwarded-For wins over X-Real-IP.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	addr, err := netip.ParseAddr(peer)
	if err != nil || !d.trusted(addr.Unmap()) {
		return peer
	}

	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	for _, candidate := range []string{first, r.Header.Get("X-Real-IP")} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, err := netip.ParseAddr(candidate); err == nil {
			return candidate
		}
		d.invalidForwarded.Add(1)
	}
	return peer
}

func (d *Detector) trusted(addr netip.Addr) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.ContainsFunc(d.proxies, func(p netip.Prefix) bool { return p.Contains(addr) })
}

func (d *Detector) Stats() DetectionStats {
	return DetectionStats{
		Suspicious:       d.suspicious.Load(),
		InvalidForwarded: d.invalidForwarded.Load(),
		Blocked:          d.blocked.Load(),
	}
}

func matchAny(s string, needles []string) bool {
	s = strings.ToLower(s)
	return slices.ContainsFunc(needles, func(n string) bool { return strings.Contains(s, n) })
}
