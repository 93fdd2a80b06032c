package discovery

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// ErrNoGatewayFound is returned when a browse window closes without
// discovering any gateway.
var ErrNoGatewayFound = errors.New("no gateway found")

// BrowserConfig configures gateway browsing.
type BrowserConfig struct {
	// Timeout bounds one Browse call.
	Timeout time.Duration

	// Interface restricts browsing to a single named interface.
	// Empty means all multicast-capable interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Timeout: 10 * time.Second,
	}
}

// Browser searches the local network for dashboard gateways.
type Browser struct {
	config BrowserConfig
}

// NewBrowser creates a gateway browser.
func NewBrowser(config BrowserConfig) *Browser {
	if config.Timeout <= 0 {
		config.Timeout = DefaultBrowserConfig().Timeout
	}
	return &Browser{config: config}
}

// Browse searches for gateways until the context or the configured
// timeout expires. Results are aggregated by instance name: addresses
// from multiple interfaces merge into a single entry, emitted once.
func (b *Browser) Browse(ctx context.Context) (<-chan *Gateway, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.Timeout)

	out := make(chan *Gateway)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	opts := b.browserOptions()

	go func() {
		defer cancel()
		defer close(out)

		seen := make(map[string]*Gateway)

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				gw := entryToGateway(entry)
				if gw == nil {
					continue
				}
				if existing, found := seen[gw.InstanceName]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, gw.Addresses)
					continue
				}
				seen[gw.InstanceName] = gw
				select {
				case out <- gw:
				case <-ctx.Done():
					return
				}

			case <-removed:
				// A gateway leaving mid-browse is not reported; the
				// caller validates reachability before use anyway.

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, opts...)
	}()

	return out, nil
}

// FindFirst returns the first gateway discovered, or ErrNoGatewayFound
// when the browse window closes without one.
func (b *Browser) FindFirst(ctx context.Context) (*Gateway, error) {
	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	for gw := range results {
		return gw, nil
	}
	return nil, ErrNoGatewayFound
}

// browserOptions returns zeroconf client options based on config.
func (b *Browser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}

// entryToGateway converts an mDNS service entry.
func entryToGateway(entry *zeroconf.ServiceEntry) *Gateway {
	if entry == nil {
		return nil
	}

	txt := parseTXT(entry.Text)

	gw := &Gateway{
		InstanceName: entry.Instance,
		Name:         txt[TXTKeyName],
		Host:         entry.HostName,
		Port:         entry.Port,
		APIPath:      txt[TXTKeyAPIPath],
		StreamPath:   txt[TXTKeyStreamPath],
	}
	if gw.APIPath == "" {
		gw.APIPath = DefaultAPIPath
	}
	if gw.StreamPath == "" {
		gw.StreamPath = DefaultStreamPath
	}

	for _, ip := range entry.AddrIPv4 {
		gw.Addresses = append(gw.Addresses, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		gw.Addresses = append(gw.Addresses, ip.String())
	}

	return gw
}

// mergeAddresses unions two address lists, preserving order.
func mergeAddresses(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range incoming {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}
