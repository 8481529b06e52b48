package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type monitors advertise
	ServiceType = "_bttest._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// AppName is the app TXT value that marks a harness monitor
	AppName = "bttest"

	// DefaultBrowseTimeout is the default browse duration
	DefaultBrowseTimeout = 3 * time.Second
)

// Peer is a harness monitor found on the local network
type Peer struct {
	// Instance is the mDNS instance name (e.g., "bttest-bench")
	Instance string

	// Hostname is the mDNS hostname (e.g., "bench.local.")
	Hostname string

	// IP is the first advertised address, IPv4 preferred
	IP string

	// Port is the monitor HTTP port
	Port int

	// Metadata holds the TXT records ("version", "path")
	Metadata map[string]string

	// DiscoveredAt is when the peer was seen
	DiscoveredAt time.Time
}

// String returns a human-readable description of the peer
func (p *Peer) String() string {
	return fmt.Sprintf("%s (%s) at %s:%d", p.Instance, p.Hostname, p.IP, p.Port)
}

// URL returns the websocket URL of the peer's snapshot stream
func (p *Peer) URL() string {
	path := p.Metadata["path"]
	if path == "" {
		path = "/ws"
	}
	host := p.IP
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("ws://%s:%d%s", host, p.Port, path)
}

// Advertise registers a monitor instance on port. Call Shutdown on the
// returned server to withdraw it.
func Advertise(instance string, port int, txt []string) (*zeroconf.Server, error) {
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	return server, nil
}

// Browser finds other monitors over mDNS
type Browser struct {
	// Timeout is how long to listen for advertisements
	Timeout time.Duration
}

// NewBrowser creates a browser with the default timeout
func NewBrowser() *Browser {
	return &Browser{Timeout: DefaultBrowseTimeout}
}

// Browse lists the monitors that answer within the timeout
func (b *Browser) Browse(ctx context.Context) ([]*Peer, error) {
	ctx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu    sync.Mutex
		peers []*Peer
		seen  = make(map[string]bool)
		wg    sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			peer := parseServiceEntry(entry)
			if peer == nil {
				continue
			}
			mu.Lock()
			if !seen[peer.Instance] {
				seen[peer.Instance] = true
				peers = append(peers, peer)
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		cancel()
		wg.Wait()
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	return peers, nil
}

// parseServiceEntry converts a zeroconf entry to a Peer.
// Returns nil for entries that are not harness monitors.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Peer {
	if entry == nil || entry.Instance == "" {
		return nil
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}
	if metadata["app"] != AppName {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" || entry.Port == 0 {
		return nil
	}

	return &Peer{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
