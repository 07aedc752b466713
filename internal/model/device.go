package model

import (
	"strconv"
	"strings"
	"time"
)

type Protocol string

const (
	ProtocolHTTP Protocol = "http"
	ProtocolTCP  Protocol = "tcp"
	ProtocolUDP  Protocol = "udp"
)

func ParseProtocol(s string) Protocol {
	switch strings.ToLower(s) {
	case "tcp":
		return ProtocolTCP
	case "udp":
		return ProtocolUDP
	default:
		return ProtocolHTTP
	}
}

// ServicePort is a port advertisement parsed from a device tag
// of the form name-port or name-port-protocol.
type ServicePort struct {
	Name     string
	Port     int
	Protocol Protocol
	Scheme   string
}

type Device struct {
	ID           string
	Hostname     string
	DNSName      string
	OS           string
	Tags         []string
	Addresses    []string
	Online       bool
	ExitNode     bool
	Expired      bool
	LastActivity time.Time
	Ports        []ServicePort
}

// Snapshot is a full view of the tailnet at one poll.
// Devices are sorted by ID; a snapshot fully supersedes the previous one.
type Snapshot struct {
	Devices        []Device
	Revision       string
	Tailnet        string
	MagicDNSSuffix string
}

// NormalizeTag strips the tag: prefix the tailnet control plane
// attaches to every operator tag.
func NormalizeTag(tag string) string {
	return strings.TrimPrefix(tag, "tag:")
}

// ParseServicePort parses a normalized tag into a port advertisement.
// Supported forms: name-port and name-port-protocol. Tags with more
// dash-separated parts keep everything before the last two as the name.
// Returns false for tags that do not advertise a port.
func ParseServicePort(tag string) (ServicePort, bool) {
	parts := strings.Split(tag, "-")
	if len(parts) < 2 {
		return ServicePort{}, false
	}

	// name-port
	if port, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
		if port <= 0 || port > 65535 {
			return ServicePort{}, false
		}
		return ServicePort{
			Name:     strings.Join(parts[:len(parts)-1], "-"),
			Port:     port,
			Protocol: ProtocolHTTP,
			Scheme:   "http",
		}, true
	}

	if len(parts) < 3 {
		return ServicePort{}, false
	}

	// name-port-protocol
	port, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil || port <= 0 || port > 65535 {
		return ServicePort{}, false
	}

	protoPart := strings.ToLower(parts[len(parts)-1])
	sp := ServicePort{
		Name:     strings.Join(parts[:len(parts)-2], "-"),
		Port:     port,
		Protocol: ParseProtocol(protoPart),
		Scheme:   "http",
	}
	switch sp.Protocol {
	case ProtocolTCP:
		sp.Scheme = "tcp"
	case ProtocolUDP:
		sp.Scheme = "udp"
	case ProtocolHTTP:
		if protoPart == "https" {
			sp.Scheme = "https"
		}
	}

	// Unknown protocol words fall back to http only for the
	// well-known schemes; anything else is not a port advertisement.
	switch protoPart {
	case "http", "https", "tcp", "udp":
		return sp, true
	default:
		return ServicePort{}, false
	}
}
