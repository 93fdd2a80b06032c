package discovery

import (
	"fmt"
	"strings"
)

// Service constants for gateway advertisement.
const (
	// ServiceType is the mDNS service type gateways advertise.
	ServiceType = "_gridview._tcp"

	// Domain is the mDNS domain.
	Domain = "local."
)

// TXT record keys.
const (
	// TXTKeyName is the human-readable gateway name.
	TXTKeyName = "name"

	// TXTKeyAPIPath is the REST API base path.
	TXTKeyAPIPath = "api"

	// TXTKeyStreamPath is the push stream path.
	TXTKeyStreamPath = "stream"
)

// Default collaborator paths when the TXT record omits them.
const (
	DefaultAPIPath    = "/api/v1"
	DefaultStreamPath = "/api/v1/changes"
)

// Gateway describes one discovered dashboard gateway.
type Gateway struct {
	// InstanceName is the mDNS instance name.
	InstanceName string

	// Name is the human-readable gateway name from the TXT record.
	Name string

	// Host is the advertised hostname.
	Host string

	// Port is the advertised port.
	Port int

	// Addresses are the resolved IP addresses, possibly from several
	// interfaces.
	Addresses []string

	// APIPath is the REST API base path.
	APIPath string

	// StreamPath is the push stream path.
	StreamPath string
}

// APIBaseURL assembles the REST collaborator URL for the gateway.
func (g *Gateway) APIBaseURL() string {
	return fmt.Sprintf("http://%s:%d%s", strings.TrimSuffix(g.Host, "."), g.Port, g.APIPath)
}

// StreamURL assembles the push collaborator URL for the gateway.
func (g *Gateway) StreamURL() string {
	return fmt.Sprintf("http://%s:%d%s", strings.TrimSuffix(g.Host, "."), g.Port, g.StreamPath)
}

// parseTXT extracts key=value pairs from TXT record strings.
func parseTXT(records []string) map[string]string {
	out := make(map[string]string, len(records))
	for _, record := range records {
		key, value, found := strings.Cut(record, "=")
		if !found || key == "" {
			continue
		}
		out[key] = value
	}
	return out
}
