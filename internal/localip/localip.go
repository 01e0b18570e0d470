// Package localip finds the address a host is reachable on.
package localip

import (
	"context"
	"fmt"
	"net"
	"strings"
)

const (
	KindUDP  = "udp"
	KindSTUN = "stun"
)

type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// New picks a resolver by kind. Unknown kinds are an error so a typo in
// configuration fails at startup.
func New(kind, probeAddr, stunServer string) (Resolver, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindUDP:
		return NewUDPResolver(probeAddr), nil
	case KindSTUN:
		return NewSTUNResolver(stunServer), nil
	default:
		return nil, fmt.Errorf("unknown ip resolver %q", kind)
	}
}

// UDPResolver reports the local address of the interface the kernel would
// route probeAddr through. Connecting a UDP socket sends no packets.
type UDPResolver struct {
	probeAddr string
}

func NewUDPResolver(probeAddr string) *UDPResolver {
	if probeAddr == "" {
		probeAddr = "8.8.8.8:80"
	}
	return &UDPResolver{probeAddr: probeAddr}
}

func (r *UDPResolver) Resolve(ctx context.Context) (string, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", r.probeAddr)
	if err != nil {
		return "", fmt.Errorf("dial probe %s: %w", r.probeAddr, err)
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil {
		return "", fmt.Errorf("unexpected local address %v", conn.LocalAddr())
	}
	return addr.IP.String(), nil
}
