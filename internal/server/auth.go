package server

import (
	"net/http"
	"strings"

	"github.com/voxhive/voxhive/internal/config"
)

// AuthPolicy decides whether a handshake is accepted. With auth disabled
// every connection passes; otherwise the device id must be allow-listed or a
// known bearer token must be presented.
type AuthPolicy struct {
	enabled bool
	devices map[string]bool
	tokens  map[string]string // token -> display name
}

// NewAuthPolicy builds a policy from config. A nil config disables auth.
func NewAuthPolicy(cfg *config.AuthConfig) *AuthPolicy {
	p := &AuthPolicy{
		devices: make(map[string]bool),
		tokens:  make(map[string]string),
	}
	if cfg == nil || !cfg.Enabled {
		return p
	}
	p.enabled = true
	for _, d := range cfg.AllowedDevices {
		p.devices[d] = true
	}
	for _, t := range cfg.Tokens {
		if t.Token != "" {
			p.tokens[t.Token] = t.Name
		}
	}
	return p
}

// Authorize checks one handshake. The returned name identifies the caller in
// logs: the token's configured name, or the device id for allow-listed
// devices.
func (p *AuthPolicy) Authorize(deviceID, token string) (name string, ok bool) {
	if !p.enabled {
		if deviceID != "" {
			return deviceID, true
		}
		return "anonymous", true
	}
	if deviceID != "" && p.devices[deviceID] {
		return deviceID, true
	}
	if name, ok := p.tokens[token]; ok {
		return name, true
	}
	return "", false
}

// bearerToken extracts the token from an Authorization header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, prefix))
}
