package gentle

import (
	"strings"

	"github.com/matzehuels/evdisplay/pkg/config"
)

// Rule sets display attributes below nodes whose name matches.
// Rules are applied in order, so later rules override earlier ones.
type Rule struct {
	Match      string
	Exact      bool
	Directives []Directive
}

// Directive addresses the nodes Depth levels below a matched node
// (0 is the matched node itself). Filter, when set, restricts it to
// nodes whose name contains the filter. Nil fields are left unchanged.
type Directive struct {
	Depth        int
	Filter       string
	Transparency *int
	Visible      *bool
	Color        string
}

func (r Rule) matches(name string) bool {
	if r.Exact {
		return name == r.Match
	}
	return strings.Contains(name, r.Match)
}

func (d Directive) apply(s *Shape) {
	if d.Filter != "" && !strings.Contains(s.Name, d.Filter) {
		return
	}
	if d.Transparency != nil {
		s.Transparency = *d.Transparency
	}
	if d.Visible != nil {
		s.Visible = *d.Visible
	}
	if d.Color != "" {
		s.Color = d.Color
	}
}

// applyRules runs the rule table over the extracted tree.
func applyRules(root *Shape, rules []Rule) {
	for _, r := range rules {
		root.walk(func(s *Shape) {
			if !r.matches(s.Name) {
				return
			}
			for _, d := range r.Directives {
				s.atDepth(d.Depth, d.apply)
			}
		})
	}
}

// RulesFromConfig converts the configured rule table.
func RulesFromConfig(cfg []config.RuleConfig) []Rule {
	rules := make([]Rule, 0, len(cfg))
	for _, rc := range cfg {
		r := Rule{Match: rc.Match, Exact: rc.Exact}
		for _, dc := range rc.Directives {
			r.Directives = append(r.Directives, Directive{
				Depth:        dc.Depth,
				Filter:       dc.Filter,
				Transparency: dc.Transparency,
				Visible:      dc.Visible,
				Color:        dc.Color,
			})
		}
		rules = append(rules, r)
	}
	return rules
}
