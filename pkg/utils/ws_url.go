package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildWebSocketURL normalises a configured node address into a dialable
// websocket URL. http and https are rewritten to ws and wss, a bare
// host:port gets ws://, and an empty path becomes "/".
func BuildWebSocketURL(address string) (string, error) {
	raw := strings.TrimSpace(address)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse address %q: %w", address, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "http":
		u.Scheme = "ws"
	case "wss", "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q in address %q", u.Scheme, address)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in address %q", address)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}
