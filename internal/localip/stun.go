package localip

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/The-Promised-Neverland/kiro/pkg/logger"
	"github.com/pion/stun/v2"
)

const stunTimeout = 5 * time.Second

// STUNResolver asks a STUN server which address our packets arrive from.
// Behind NAT this is the public address rather than the interface address.
type STUNResolver struct {
	serverAddr string
	mu         sync.RWMutex
	lastIP     string
}

func NewSTUNResolver(serverAddr string) *STUNResolver {
	if serverAddr == "" {
		serverAddr = "stun.l.google.com:19302" // Default to Google STUN
	}
	return &STUNResolver{serverAddr: serverAddr}
}

func (s *STUNResolver) Resolve(ctx context.Context) (string, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", s.serverAddr)
	if err != nil {
		return "", fmt.Errorf("failed to dial STUN server: %w", err)
	}
	defer conn.Close()
	deadline := time.Now().Add(stunTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)
	client, err := stun.NewClient(conn)
	if err != nil {
		return "", fmt.Errorf("failed to create STUN client: %w", err)
	}
	defer client.Close()
	message := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	var xorAddr stun.XORMappedAddress
	var queryErr error
	err = client.Do(message, func(res stun.Event) {
		if res.Error != nil {
			queryErr = res.Error
			return
		}
		if err := xorAddr.GetFrom(res.Message); err != nil {
			queryErr = fmt.Errorf("failed to get XOR mapped address: %w", err)
		}
	})
	if err != nil {
		return "", fmt.Errorf("STUN query failed: %w", err)
	}
	if queryErr != nil {
		return "", queryErr
	}
	ip := xorAddr.IP.String()
	s.mu.Lock()
	if s.lastIP != ip {
		logger.Log.Info("STUN address discovered", "ip", ip, "server", s.serverAddr)
		s.lastIP = ip
	}
	s.mu.Unlock()
	return ip, nil
}
