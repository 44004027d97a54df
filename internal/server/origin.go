// Package server normalizes and validates HTTP origins for WebSocket requests
// to enforce configured access control.
package server

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// originPolicy is the allow-list applied to WebSocket upgrades. Entries are
// compared as lower-case scheme://host.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
	log      *zap.SugaredLogger
}

func newOriginPolicy(origins []string, log *zap.SugaredLogger) *originPolicy {
	p := &originPolicy{
		allowed: make(map[string]struct{}, len(origins)),
		log:     log,
	}

	for _, entry := range origins {
		switch entry = strings.TrimSpace(entry); entry {
		case "":
		case "*":
			p.allowAll = true
		default:
			origin, ok := normalizeOrigin(entry)
			if !ok {
				log.Warnw("ignoring invalid origin in configuration", "origin", entry)
				continue
			}
			p.allowed[origin] = struct{}{}
		}
	}
	return p
}

// normalizeOrigin reduces an origin or URL to scheme://host, lower-cased.
func normalizeOrigin(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), true
}

// allows reports whether a request carrying the given Origin header may
// upgrade. Clients that send no Origin, such as command-line tools, are
// not browsers and are let through.
func (p *originPolicy) allows(header string) bool {
	if header == "" || p.allowAll {
		return true
	}
	origin, ok := normalizeOrigin(header)
	if !ok {
		return false
	}
	_, ok = p.allowed[origin]
	return ok
}

// checkOrigin is installed as the upgrader's CheckOrigin.
func (p *originPolicy) checkOrigin(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if p.allows(header) {
		return true
	}
	p.log.Warnw("blocked WebSocket connection from disallowed origin", "origin", header, "remote", r.RemoteAddr)
	return false
}
