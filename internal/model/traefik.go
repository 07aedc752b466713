package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DynamicConfig mirrors the traefik dynamic-configuration schema
// accepted by its http provider. Empty sections are omitted.
type DynamicConfig struct {
	HTTP *HTTPConfig `json:"http,omitempty"`
	TCP  *TCPConfig  `json:"tcp,omitempty"`
	UDP  *UDPConfig  `json:"udp,omitempty"`
}

type HTTPConfig struct {
	Routers  map[string]Router  `json:"routers"`
	Services map[string]Service `json:"services"`
}

type TCPConfig struct {
	Routers  map[string]TCPRouter  `json:"routers"`
	Services map[string]TCPService `json:"services"`
}

type UDPConfig struct {
	Routers  map[string]UDPRouter  `json:"routers"`
	Services map[string]UDPService `json:"services"`
}

type Router struct {
	Rule    string     `json:"rule"`
	Service string     `json:"service"`
	TLS     *RouterTLS `json:"tls,omitempty"`
}

type RouterTLS struct {
	CertResolver string `json:"certResolver,omitempty"`
}

type Service struct {
	LoadBalancer LoadBalancer `json:"loadBalancer"`
}

type LoadBalancer struct {
	Servers     []Server     `json:"servers"`
	HealthCheck *HealthCheck `json:"healthCheck,omitempty"`
}

type Server struct {
	URL string `json:"url"`
}

type HealthCheck struct {
	Path     string `json:"path"`
	Interval string `json:"interval,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

type TCPRouter struct {
	Rule    string        `json:"rule"`
	Service string        `json:"service"`
	TLS     *TCPRouterTLS `json:"tls,omitempty"`
}

type TCPRouterTLS struct {
	Passthrough bool `json:"passthrough,omitempty"`
}

type TCPService struct {
	LoadBalancer TCPLoadBalancer `json:"loadBalancer"`
}

type TCPLoadBalancer struct {
	Servers []TCPServer `json:"servers"`
}

type TCPServer struct {
	Address string `json:"address"`
}

type UDPRouter struct {
	Service string `json:"service"`
}

type UDPService struct {
	LoadBalancer UDPLoadBalancer `json:"loadBalancer"`
}

type UDPLoadBalancer struct {
	Servers []UDPServer `json:"servers"`
}

type UDPServer struct {
	Address string `json:"address"`
}

// Encode marshals the document to its canonical byte form.
// encoding/json sorts map keys, so equal documents always encode equally.
func (dc DynamicConfig) Encode() ([]byte, error) {
	data, err := json.Marshal(dc)
	if err != nil {
		return nil, fmt.Errorf("marshaling dynamic config: %w", err)
	}
	return data, nil
}

// Validate checks the invariants every publishable document must hold:
// every router references a service present in the same section, and
// every service has at least one server.
func (dc DynamicConfig) Validate() error {
	if dc.HTTP != nil {
		for name, r := range dc.HTTP.Routers {
			if _, ok := dc.HTTP.Services[r.Service]; !ok {
				return TranslationInvariantError{
					Name:   name,
					Reason: "router references missing http service " + r.Service,
				}
			}
		}
		for name, svc := range dc.HTTP.Services {
			if len(svc.LoadBalancer.Servers) == 0 {
				return TranslationInvariantError{Name: name, Reason: "http service has no servers"}
			}
		}
	}
	if dc.TCP != nil {
		for name, r := range dc.TCP.Routers {
			if _, ok := dc.TCP.Services[r.Service]; !ok {
				return TranslationInvariantError{
					Name:   name,
					Reason: "router references missing tcp service " + r.Service,
				}
			}
		}
		for name, svc := range dc.TCP.Services {
			if len(svc.LoadBalancer.Servers) == 0 {
				return TranslationInvariantError{Name: name, Reason: "tcp service has no servers"}
			}
		}
	}
	if dc.UDP != nil {
		for name, r := range dc.UDP.Routers {
			if _, ok := dc.UDP.Services[r.Service]; !ok {
				return TranslationInvariantError{
					Name:   name,
					Reason: "router references missing udp service " + r.Service,
				}
			}
		}
		for name, svc := range dc.UDP.Services {
			if len(svc.LoadBalancer.Servers) == 0 {
				return TranslationInvariantError{Name: name, Reason: "udp service has no servers"}
			}
		}
	}
	return nil
}

// PublishedConfig is the single source of truth for what configuration
// is currently served. Replaced as a unit, never mutated in place.
type PublishedConfig struct {
	Document    DynamicConfig
	Raw         []byte
	Version     uint64
	ETag        string
	PublishedAt time.Time
}

// NewETag builds the cache validator for a document version.
func NewETag(version uint64, raw []byte) string {
	sum := sha256.Sum256(raw)
	return `"` + strconv.FormatUint(version, 10) + "-" + hex.EncodeToString(sum[:8]) + `"`
}
