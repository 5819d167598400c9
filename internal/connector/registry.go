package connector

import (
	"fmt"
	"strings"
	"time"
)

// Registry resolves a connector name to its adapter and capability
// descriptor. Connector selection itself is an upstream routing concern; the
// engine only looks names up.
type Registry struct {
	connectors   map[string]Connector
	capabilities map[string]Capabilities
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		connectors:   map[string]Connector{},
		capabilities: map[string]Capabilities{},
	}
}

// Register adds a connector and its capabilities under its name.
func (r *Registry) Register(c Connector, caps Capabilities) {
	r.connectors[c.Name()] = c
	r.capabilities[c.Name()] = caps
}

// Lookup returns the adapter and capabilities for a connector name.
func (r *Registry) Lookup(name string) (Connector, Capabilities, error) {
	c, ok := r.connectors[name]
	if !ok {
		return nil, Capabilities{}, fmt.Errorf("unknown connector: %s", name)
	}
	return c, r.capabilities[name], nil
}

// ParseCapabilities decodes the three-character capability flag string used
// in configuration: position 1 'a' = authentication required, position 2
// 'm' = manual capture supported, position 3 's' = mandate setup supported.
func ParseCapabilities(flags string) (Capabilities, error) {
	if len(flags) != 3 {
		return Capabilities{}, fmt.Errorf("capability flags must be 3 characters, got %q", flags)
	}
	caps := Capabilities{}
	for i, c := range strings.ToLower(flags) {
		switch {
		case i == 0 && c == 'a':
			caps.AuthenticationRequired = true
		case i == 1 && c == 'm':
			caps.ManualCaptureSupported = true
		case i == 2 && c == 's':
			caps.MandateSetupSupported = true
		case c == '-':
		default:
			return Capabilities{}, fmt.Errorf("unexpected capability flag %q at position %d", c, i)
		}
	}
	return caps, nil
}

// BuildRegistry wires HTTP connectors from parallel name/url/caps lists.
func BuildRegistry(names, urls, capFlags []string, timeout time.Duration) (*Registry, error) {
	reg := NewRegistry()
	for i, name := range names {
		caps, err := ParseCapabilities(capFlags[i])
		if err != nil {
			return nil, fmt.Errorf("connector %s: %w", name, err)
		}
		reg.Register(NewHTTPConnector(name, urls[i], timeout), caps)
	}
	return reg, nil
}
