package ruleset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/horockey/tailgate/internal/model"
	"gopkg.in/yaml.v3"
)

// RuleSet is the declarative selection configuration: device-level
// filters plus an ordered sequence of rules. Loaded once at startup;
// reload means restart.
type RuleSet struct {
	Filters model.Filters
	Rules   []model.Rule
}

type document struct {
	Filters filtersDoc `yaml:"filters"`
	Rules   []ruleDoc  `yaml:"rules"`
}

type filtersDoc struct {
	ExcludeExitNodes *bool    `yaml:"excludeExitNodes"`
	ExcludeExpired   *bool    `yaml:"excludeExpired"`
	ExcludeHostnames []string `yaml:"excludeHostnames"`
	IncludeOS        []string `yaml:"includeOS"`
	MaxInactive      string   `yaml:"maxInactive"`
}

type ruleDoc struct {
	Name  string        `yaml:"name"`
	Match *predicateDoc `yaml:"match"`
	Route routeDoc      `yaml:"route"`
}

type predicateDoc struct {
	Tag       string         `yaml:"tag"`
	TagPrefix string         `yaml:"tagPrefix"`
	TagIn     []string       `yaml:"tagIn"`
	All       []predicateDoc `yaml:"all"`
	Any       []predicateDoc `yaml:"any"`
	Not       *predicateDoc  `yaml:"not"`
}

type routeDoc struct {
	Protocol        string  `yaml:"protocol"`
	Port            int     `yaml:"port"`
	PortFrom        string  `yaml:"portFrom"`
	Host            string  `yaml:"host"`
	PathPrefix      string  `yaml:"pathPrefix"`
	Scheme          string  `yaml:"scheme"`
	HealthCheckPath string  `yaml:"healthCheckPath"`
	TLS             *tlsDoc `yaml:"tls"`
}

type tlsDoc struct {
	CertResolver string `yaml:"certResolver"`
	Passthrough  bool   `yaml:"passthrough"`
}

func Load(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("reading rule file: %w", err)
	}
	rs, err := Parse(data)
	if err != nil {
		return RuleSet{}, fmt.Errorf("parsing rule file %s: %w", path, err)
	}
	return rs, nil
}

// Parse decodes and validates the rule document. Any malformed rule
// fails the whole set; the process must not start half-configured.
func Parse(data []byte) (RuleSet, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	doc := document{}
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return RuleSet{}, model.RuleConfigError{Reason: fmt.Sprintf("decoding yaml: %v", err)}
	}

	filters, err := buildFilters(doc.Filters)
	if err != nil {
		return RuleSet{}, err
	}

	rules := make([]model.Rule, 0, len(doc.Rules))
	seen := map[string]struct{}{}

	for i, rd := range doc.Rules {
		if rd.Name == "" {
			return RuleSet{}, model.RuleConfigError{
				Reason: fmt.Sprintf("rule #%d has no name", i),
			}
		}
		if _, dup := seen[rd.Name]; dup {
			return RuleSet{}, model.RuleConfigError{Rule: rd.Name, Reason: "duplicate rule name"}
		}
		seen[rd.Name] = struct{}{}

		if rd.Match == nil {
			return RuleSet{}, model.RuleConfigError{Rule: rd.Name, Reason: "missing match expression"}
		}
		pred, err := buildPredicate(rd.Name, *rd.Match)
		if err != nil {
			return RuleSet{}, err
		}

		hints, err := buildHints(rd.Name, rd.Route)
		if err != nil {
			return RuleSet{}, err
		}

		rules = append(rules, model.Rule{
			Name:  rd.Name,
			Match: pred,
			Route: hints,
		})
	}

	return RuleSet{Filters: filters, Rules: rules}, nil
}

func buildFilters(fd filtersDoc) (model.Filters, error) {
	filters := model.DefaultFilters()

	if fd.ExcludeExitNodes != nil {
		filters.ExcludeExitNodes = *fd.ExcludeExitNodes
	}
	if fd.ExcludeExpired != nil {
		filters.ExcludeExpired = *fd.ExcludeExpired
	}
	filters.ExcludeHostnames = fd.ExcludeHostnames
	filters.IncludeOS = fd.IncludeOS

	if fd.MaxInactive != "" {
		dur, err := time.ParseDuration(fd.MaxInactive)
		if err != nil {
			return model.Filters{}, model.RuleConfigError{
				Reason: fmt.Sprintf("parsing filters.maxInactive: %v", err),
			}
		}
		if dur < 0 {
			return model.Filters{}, model.RuleConfigError{
				Reason: "filters.maxInactive must not be negative",
			}
		}
		filters.MaxInactive = dur
	}

	return filters, nil
}

func buildPredicate(rule string, pd predicateDoc) (model.Predicate, error) {
	variants := 0
	if pd.Tag != "" {
		variants++
	}
	if pd.TagPrefix != "" {
		variants++
	}
	if len(pd.TagIn) > 0 {
		variants++
	}
	if len(pd.All) > 0 {
		variants++
	}
	if len(pd.Any) > 0 {
		variants++
	}
	if pd.Not != nil {
		variants++
	}
	if variants != 1 {
		return nil, model.RuleConfigError{
			Rule:   rule,
			Reason: "match node must have exactly one of: tag, tagPrefix, tagIn, all, any, not",
		}
	}

	switch {
	case pd.Tag != "":
		return model.TagEquals{Tag: pd.Tag}, nil
	case pd.TagPrefix != "":
		return model.TagPrefix{Prefix: pd.TagPrefix}, nil
	case len(pd.TagIn) > 0:
		return model.TagIn{Tags: pd.TagIn}, nil
	case len(pd.All) > 0:
		subs, err := buildPredicates(rule, pd.All)
		if err != nil {
			return nil, err
		}
		return model.All(subs), nil
	case len(pd.Any) > 0:
		subs, err := buildPredicates(rule, pd.Any)
		if err != nil {
			return nil, err
		}
		return model.Any(subs), nil
	default:
		sub, err := buildPredicate(rule, *pd.Not)
		if err != nil {
			return nil, err
		}
		return model.Not{Pred: sub}, nil
	}
}

func buildPredicates(rule string, pds []predicateDoc) ([]model.Predicate, error) {
	res := make([]model.Predicate, 0, len(pds))
	for _, pd := range pds {
		sub, err := buildPredicate(rule, pd)
		if err != nil {
			return nil, err
		}
		res = append(res, sub)
	}
	return res, nil
}

func buildHints(rule string, rd routeDoc) (model.RouteHints, error) {
	var proto model.Protocol
	switch rd.Protocol {
	case "", "http":
		proto = model.ProtocolHTTP
	case "tcp":
		proto = model.ProtocolTCP
	case "udp":
		proto = model.ProtocolUDP
	default:
		return model.RouteHints{}, model.RuleConfigError{
			Rule:   rule,
			Reason: fmt.Sprintf("unknown protocol %q", rd.Protocol),
		}
	}

	if rd.Port < 0 || rd.Port > 65535 {
		return model.RouteHints{}, model.RuleConfigError{
			Rule:   rule,
			Reason: fmt.Sprintf("port %d out of range", rd.Port),
		}
	}
	if (rd.Port == 0) == (rd.PortFrom == "") {
		return model.RouteHints{}, model.RuleConfigError{
			Rule:   rule,
			Reason: "route needs exactly one of: port, portFrom",
		}
	}

	switch rd.Scheme {
	case "", "http", "https":
	default:
		return model.RouteHints{}, model.RuleConfigError{
			Rule:   rule,
			Reason: fmt.Sprintf("unknown scheme %q", rd.Scheme),
		}
	}

	if rd.PathPrefix != "" && rd.PathPrefix[0] != '/' {
		return model.RouteHints{}, model.RuleConfigError{
			Rule:   rule,
			Reason: "pathPrefix must start with /",
		}
	}

	hints := model.RouteHints{
		Protocol:        proto,
		Port:            rd.Port,
		PortFrom:        rd.PortFrom,
		Host:            rd.Host,
		PathPrefix:      rd.PathPrefix,
		Scheme:          rd.Scheme,
		HealthCheckPath: rd.HealthCheckPath,
	}
	if rd.TLS != nil {
		hints.TLS = &model.TLSHints{
			CertResolver: rd.TLS.CertResolver,
			Passthrough:  rd.TLS.Passthrough,
		}
	}

	return hints, nil
}
