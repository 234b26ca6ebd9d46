package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type lanchat servers advertise under
	ServiceType = "_lanchat._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout bounds a peer scan; LAN responders answer well
	// within this
	DefaultScanTimeout = 2 * time.Second
)

// Peer is another lanchat server discovered on the local network.
type Peer struct {
	Name string `json:"name"`
	Host string `json:"host"`
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// Announcer advertises this server over mDNS so other lanchat instances
// and clients can find it without knowing its address.
type Announcer struct {
	server *zeroconf.Server
}

// Announce registers the service on all multicast-capable interfaces. The
// instance name shows up in peer scans; the TXT record carries it again for
// clients that only see the resolved entry.
func Announce(instanceName string, port int) (*Announcer, error) {
	srv, err := zeroconf.Register(instanceName, ServiceType, ServiceDomain, port,
		[]string{"name=" + instanceName}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	return &Announcer{server: srv}, nil
}

// Shutdown withdraws the mDNS advertisement.
func (a *Announcer) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}

// Scanner handles mDNS peer discovery
type Scanner struct {
	// Timeout is the maximum time to wait for peer discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForPeers discovers lanchat servers on the local network
func (s *Scanner) ScanForPeers(ctx context.Context) ([]Peer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	peers := make([]Peer, 0)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			if p, ok := parseServiceEntry(entry); ok {
				peers = append(peers, p)
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	<-done
	return peers, nil
}

// parseServiceEntry converts a raw mDNS entry into a Peer. Entries without
// a resolvable IPv4 address are skipped; link-local chatter on a flat LAN
// is not useful to a chat client.
func parseServiceEntry(entry *zeroconf.ServiceEntry) (Peer, bool) {
	if entry == nil || len(entry.AddrIPv4) == 0 {
		return Peer{}, false
	}
	return Peer{
		Name: entry.Instance,
		Host: entry.HostName,
		IP:   entry.AddrIPv4[0].String(),
		Port: entry.Port,
	}, true
}
