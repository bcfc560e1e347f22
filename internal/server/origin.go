// Package server normalizes and validates HTTP origins for WebSocket
// requests to enforce the configured access control.
package server

import (
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// originPolicy is the normalized form of an origin allow-list. A bare "*"
// entry in the configuration allows every origin.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginPolicy(configured []string) originPolicy {
	policy := originPolicy{allowed: make(map[string]struct{}, len(configured))}

	for _, origin := range configured {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			policy.allowAll = true
			continue
		}

		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Printf("Ignoring invalid origin in configuration: %q", origin)
			continue
		}
		policy.allowed[normalized] = struct{}{}
	}

	return policy
}

// origins returns the normalized allow-list in stable order, for echoing
// back through currentConfig.
func (p originPolicy) origins() []string {
	list := make([]string, 0, len(p.allowed))
	for origin := range p.allowed {
		list = append(list, origin)
	}
	sort.Strings(list)
	if p.allowAll {
		list = append(list, "*")
	}
	return list
}

func (p originPolicy) allows(originHeader string) bool {
	if originHeader == "" {
		return false
	}

	normalized, ok := normalizeOrigin(originHeader)
	if !ok {
		return false
	}
	if p.allowAll {
		return true
	}

	_, exists := p.allowed[normalized]
	return exists
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

func checkOrigin(r *http.Request) bool {
	if currentPolicy().allows(r.Header.Get("Origin")) {
		return true
	}

	log.Printf("Blocked WebSocket connection from disallowed origin: %q", r.Header.Get("Origin"))
	return false
}
