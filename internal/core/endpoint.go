package core

import (
	"net"
	"strconv"
	"strings"
)

// Endpoint identifies one cluster front-end node.
type Endpoint struct {
	Host string
	Port int
}

// String renders host:port.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ParseEndpoint parses a "host:port" string.
func ParseEndpoint(raw string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(raw))
	if err != nil {
		return Endpoint{}, Configurationf("invalid front-end endpoint %q: %v", raw, err)
	}
	if host == "" {
		return Endpoint{}, Configurationf("invalid front-end endpoint %q: empty host", raw)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Endpoint{}, Configurationf("invalid front-end endpoint %q: bad port", raw)
	}
	return Endpoint{Host: host, Port: port}, nil
}

// ParseEndpoints parses an ordered list, preserving probe priority.
func ParseEndpoints(raw []string) ([]Endpoint, error) {
	if len(raw) == 0 {
		return nil, Configurationf("at least one front-end endpoint is required")
	}
	out := make([]Endpoint, 0, len(raw))
	for _, r := range raw {
		ep, err := ParseEndpoint(r)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, nil
}
