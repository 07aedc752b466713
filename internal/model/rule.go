package model

import (
	"slices"
	"strings"
	"time"
)

// Predicate is a node of a tag-matching expression tree.
// The set of implementations is closed; evaluation is pure.
type Predicate interface {
	Match(tags []string) bool
}

type TagEquals struct {
	Tag string
}

func (p TagEquals) Match(tags []string) bool {
	return slices.Contains(tags, p.Tag)
}

type TagPrefix struct {
	Prefix string
}

func (p TagPrefix) Match(tags []string) bool {
	return slices.ContainsFunc(tags, func(t string) bool {
		return strings.HasPrefix(t, p.Prefix)
	})
}

type TagIn struct {
	Tags []string
}

func (p TagIn) Match(tags []string) bool {
	return slices.ContainsFunc(tags, func(t string) bool {
		return slices.Contains(p.Tags, t)
	})
}

type All []Predicate

func (p All) Match(tags []string) bool {
	for _, sub := range p {
		if !sub.Match(tags) {
			return false
		}
	}
	return true
}

type Any []Predicate

func (p Any) Match(tags []string) bool {
	for _, sub := range p {
		if sub.Match(tags) {
			return true
		}
	}
	return false
}

type Not struct {
	Pred Predicate
}

func (p Not) Match(tags []string) bool {
	return !p.Pred.Match(tags)
}

type TLSHints struct {
	CertResolver string
	Passthrough  bool
}

// RouteHints is the routing side of a rule, carried verbatim into routes.
// Exactly one of Port and PortFrom is set: a fixed target port, or the
// name of a port advertisement the device must carry.
type RouteHints struct {
	Protocol        Protocol
	Port            int
	PortFrom        string
	Host            string
	PathPrefix      string
	Scheme          string
	HealthCheckPath string
	TLS             *TLSHints
}

// Rule selects devices by tag predicate and tells the translator
// how to route to them. Rules are loaded once per process lifetime.
type Rule struct {
	Name  string
	Match Predicate
	Route RouteHints
}

// Filters are device-level exclusions applied before any rule matching.
type Filters struct {
	ExcludeExitNodes bool
	ExcludeExpired   bool
	ExcludeHostnames []string
	IncludeOS        []string
	MaxInactive      time.Duration
}

func DefaultFilters() Filters {
	return Filters{
		ExcludeExitNodes: true,
		ExcludeExpired:   true,
	}
}

// Admits reports whether a device passes the filters.
// Offline devices never pass.
func (f Filters) Admits(dev Device, now time.Time) bool {
	if !dev.Online {
		return false
	}
	if f.ExcludeExitNodes && dev.ExitNode {
		return false
	}
	if f.ExcludeExpired && dev.Expired {
		return false
	}
	if slices.Contains(f.ExcludeHostnames, dev.Hostname) {
		return false
	}
	if len(f.IncludeOS) > 0 && !slices.Contains(f.IncludeOS, dev.OS) {
		return false
	}
	if f.MaxInactive > 0 {
		if dev.LastActivity.IsZero() {
			return false
		}
		if now.Sub(dev.LastActivity) > f.MaxInactive {
			return false
		}
	}
	return true
}
