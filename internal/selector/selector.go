package selector

import (
	"strings"
	"time"

	"github.com/horockey/tailgate/internal/model"
	"github.com/rs/zerolog"
)

// Select applies the rule set to a snapshot and produces routes
// in a deterministic order: rule index first, then device ID.
// A device matching no rule yields nothing; a device matching a rule
// whose port advertisement it lacks is skipped, not an error.
func Select(
	snap model.Snapshot,
	rules []model.Rule,
	filters model.Filters,
	logger zerolog.Logger,
) []model.Route {
	now := time.Now()
	routes := []model.Route{}

	for _, rule := range rules {
		for _, dev := range snap.Devices {
			if !filters.Admits(dev, now) {
				continue
			}
			if !rule.Match.Match(dev.Tags) {
				continue
			}

			route, ok := buildRoute(dev, rule)
			if !ok {
				logger.
					Debug().
					Str("device", dev.Hostname).
					Str("rule", rule.Name).
					Msg("device matched rule but resolves no target, skipping")
				continue
			}
			routes = append(routes, route)
		}
	}

	return routes
}

func buildRoute(dev model.Device, rule model.Rule) (model.Route, bool) {
	if len(dev.Addresses) == 0 {
		return model.Route{}, false
	}

	port := rule.Route.Port
	scheme := rule.Route.Scheme
	if port == 0 {
		sp, ok := advertisedPort(dev, rule.Route.PortFrom)
		if !ok {
			return model.Route{}, false
		}
		port = sp.Port
		if scheme == "" {
			scheme = sp.Scheme
		}
	}
	if scheme == "" {
		scheme = "http"
	}

	return model.Route{
		Name:            model.RouteName(dev.Hostname, rule.Name),
		DeviceID:        dev.ID,
		DeviceHostname:  dev.Hostname,
		RuleName:        rule.Name,
		Protocol:        rule.Route.Protocol,
		Address:         dev.Addresses[0],
		Port:            port,
		Scheme:          scheme,
		Host:            expandHost(rule.Route.Host, dev),
		PathPrefix:      rule.Route.PathPrefix,
		HealthCheckPath: rule.Route.HealthCheckPath,
		TLS:             rule.Route.TLS,
	}, true
}

func advertisedPort(dev model.Device, name string) (model.ServicePort, bool) {
	for _, sp := range dev.Ports {
		if sp.Name == name {
			return sp, true
		}
	}
	return model.ServicePort{}, false
}

func expandHost(tmpl string, dev model.Device) string {
	if tmpl == "" {
		return ""
	}
	host := strings.ReplaceAll(tmpl, "{hostname}", strings.ToLower(dev.Hostname))
	host = strings.ReplaceAll(host, "{dnsname}", strings.ToLower(dev.DNSName))
	return host
}
