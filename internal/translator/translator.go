package translator

import (
	"fmt"

	"github.com/horockey/tailgate/internal/model"
)

const (
	healthCheckInterval = "30s"
	healthCheckTimeout  = "5s"
)

// Translate builds the proxy-facing document from a route sequence.
// Pure: identical input always yields byte-identical canonical output.
// A duplicate router/service name or a dangling reference fails the
// whole document; nothing partial is ever returned.
func Translate(routes []model.Route) (model.DynamicConfig, []byte, error) {
	httpRouters := map[string]model.Router{}
	httpServices := map[string]model.Service{}
	tcpRouters := map[string]model.TCPRouter{}
	tcpServices := map[string]model.TCPService{}
	udpRouters := map[string]model.UDPRouter{}
	udpServices := map[string]model.UDPService{}

	for _, route := range routes {
		svcName := route.ServiceName()
		routerName := route.RouterName()

		switch route.Protocol {
		case model.ProtocolTCP:
			if _, exists := tcpServices[svcName]; exists {
				return model.DynamicConfig{}, nil, model.TranslationInvariantError{
					Name:   svcName,
					Reason: "duplicate tcp service name",
				}
			}
			tcpServices[svcName] = model.TCPService{
				LoadBalancer: model.TCPLoadBalancer{
					Servers: []model.TCPServer{
						{Address: fmt.Sprintf("%s:%d", route.Address, route.Port)},
					},
				},
			}
			tcpRouters[routerName] = model.TCPRouter{
				Rule:    tcpRule(route),
				Service: svcName,
				TLS:     tcpTLS(route),
			}

		case model.ProtocolUDP:
			if _, exists := udpServices[svcName]; exists {
				return model.DynamicConfig{}, nil, model.TranslationInvariantError{
					Name:   svcName,
					Reason: "duplicate udp service name",
				}
			}
			udpServices[svcName] = model.UDPService{
				LoadBalancer: model.UDPLoadBalancer{
					Servers: []model.UDPServer{
						{Address: fmt.Sprintf("%s:%d", route.Address, route.Port)},
					},
				},
			}
			udpRouters[routerName] = model.UDPRouter{Service: svcName}

		default:
			if _, exists := httpServices[svcName]; exists {
				return model.DynamicConfig{}, nil, model.TranslationInvariantError{
					Name:   svcName,
					Reason: "duplicate http service name",
				}
			}
			httpServices[svcName] = model.Service{
				LoadBalancer: model.LoadBalancer{
					Servers: []model.Server{
						{URL: fmt.Sprintf("%s://%s:%d", route.Scheme, route.Address, route.Port)},
					},
					HealthCheck: healthCheck(route),
				},
			}
			httpRouters[routerName] = model.Router{
				Rule:    httpRule(route),
				Service: svcName,
				TLS:     httpTLS(route),
			}
		}
	}

	doc := model.DynamicConfig{}
	if len(httpRouters) > 0 || len(httpServices) > 0 {
		doc.HTTP = &model.HTTPConfig{
			Routers:  httpRouters,
			Services: httpServices,
		}
	}
	if len(tcpRouters) > 0 || len(tcpServices) > 0 {
		doc.TCP = &model.TCPConfig{
			Routers:  tcpRouters,
			Services: tcpServices,
		}
	}
	if len(udpRouters) > 0 || len(udpServices) > 0 {
		doc.UDP = &model.UDPConfig{
			Routers:  udpRouters,
			Services: udpServices,
		}
	}

	if err := doc.Validate(); err != nil {
		return model.DynamicConfig{}, nil, fmt.Errorf("validating document: %w", err)
	}

	raw, err := doc.Encode()
	if err != nil {
		return model.DynamicConfig{}, nil, fmt.Errorf("encoding document: %w", err)
	}

	return doc, raw, nil
}

func httpRule(route model.Route) string {
	rule := "HostRegexp(`.*`)"
	if route.Host != "" {
		rule = fmt.Sprintf("Host(`%s`)", route.Host)
	}
	if route.PathPrefix != "" {
		rule = fmt.Sprintf("%s && PathPrefix(`%s`)", rule, route.PathPrefix)
	}
	return rule
}

func tcpRule(route model.Route) string {
	if route.Host != "" {
		return fmt.Sprintf("HostSNI(`%s`)", route.Host)
	}
	return "HostSNI(`*`)"
}

func httpTLS(route model.Route) *model.RouterTLS {
	if route.TLS == nil || route.TLS.CertResolver == "" {
		return nil
	}
	return &model.RouterTLS{CertResolver: route.TLS.CertResolver}
}

func tcpTLS(route model.Route) *model.TCPRouterTLS {
	if route.TLS == nil || !route.TLS.Passthrough {
		return nil
	}
	return &model.TCPRouterTLS{Passthrough: true}
}

func healthCheck(route model.Route) *model.HealthCheck {
	if route.HealthCheckPath == "" {
		return nil
	}
	return &model.HealthCheck{
		Path:     route.HealthCheckPath,
		Interval: healthCheckInterval,
		Timeout:  healthCheckTimeout,
	}
}
