package model

import "strings"

// Route is one rule applied to one matching device.
// Name is deterministic for a given device+rule, so service and router
// names do not churn across cycles.
type Route struct {
	Name            string
	DeviceID        string
	DeviceHostname  string
	RuleName        string
	Protocol        Protocol
	Address         string
	Port            int
	Scheme          string
	Host            string
	PathPrefix      string
	HealthCheckPath string
	TLS             *TLSHints
}

func (r Route) ServiceName() string {
	return r.Name
}

func (r Route) RouterName() string {
	return r.Name + "-router"
}

// RouteName derives the stable service name for a device+rule pair.
func RouteName(hostname, ruleName string) string {
	return "tailgate-" + SanitizeName(hostname) + "-" + SanitizeName(ruleName)
}

// SanitizeName lowercases and folds characters traefik rejects in
// router/service names.
func SanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, s)
}
