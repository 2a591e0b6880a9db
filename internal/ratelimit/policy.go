package ratelimit

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Limit is a resolved ceiling: at most Max requests per Window.
type Limit struct {
	Window time.Duration
	Max    int64
}

// WindowMs returns the window length in milliseconds for wire output.
func (l Limit) WindowMs() int64 {
	return l.Window.Milliseconds()
}

// TierLimits holds the per-classification ceilings for one environment
// tier. All three classes share the tier's window.
type TierLimits struct {
	Window time.Duration
	Widget int64
	API    int64
	Bot    int64
}

// Policy maps environment tiers to classification-dependent limits.
// Development always resolves its most permissive ceiling regardless of
// classification so local iteration is never throttled.
type Policy struct {
	tiers map[Tier]TierLimits
}

// NewPolicy creates a policy from an explicit tier table. Tiers missing
// from the table fall back to the production defaults.
func NewPolicy(tiers map[Tier]TierLimits) *Policy {
	merged := defaultTiers()
	for tier, limits := range tiers {
		merged[tier] = limits
	}

	return &Policy{tiers: merged}
}

// DefaultPolicy returns the built-in tier table: a short permissive window
// for development, a 15-minute window with widget/api/bot ceilings for
// staging and production.
func DefaultPolicy() *Policy {
	return &Policy{tiers: defaultTiers()}
}

func defaultTiers() map[Tier]TierLimits {
	return map[Tier]TierLimits{
		TierDevelopment: {Window: time.Minute, Widget: 1000, API: 1000, Bot: 1000},
		TierStaging:     {Window: 15 * time.Minute, Widget: 100, API: 20, Bot: 5},
		TierProduction:  {Window: 15 * time.Minute, Widget: 100, API: 20, Bot: 5},
	}
}

// Resolve returns the limit for the given tier and classification.
func (p *Policy) Resolve(tier Tier, class Classification) Limit {
	limits, ok := p.tiers[tier]
	if !ok {
		limits = p.tiers[TierProduction]
	}

	if tier == TierDevelopment {
		return Limit{Window: limits.Window, Max: maxCeiling(limits)}
	}

	max := limits.API

	switch class {
	case ClassWidget:
		max = limits.Widget
	case ClassBot:
		max = limits.Bot
	case ClassAPI:
	}

	return Limit{Window: limits.Window, Max: max}
}

func maxCeiling(l TierLimits) int64 {
	max := l.API
	if l.Widget > max {
		max = l.Widget
	}

	if l.Bot > max {
		max = l.Bot
	}

	return max
}

// policyFile is the YAML shape for an externally supplied tier table.
// Windows are duration strings ("1m", "15m").
type policyFile struct {
	Tiers map[string]struct {
		Window string `yaml:"window"`
		Widget int64  `yaml:"widget"`
		API    int64  `yaml:"api"`
		Bot    int64  `yaml:"bot"`
	} `yaml:"tiers"`
}

// PolicyFromYAML builds a policy from a YAML tier table, with built-in
// defaults for any tier the file omits.
//
//	tiers:
//	  production:
//	    window: 15m
//	    widget: 100
//	    api: 20
//	    bot: 5
func PolicyFromYAML(data []byte) (*Policy, error) {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}

	tiers := make(map[Tier]TierLimits, len(file.Tiers))

	for name, entry := range file.Tiers {
		tier := ParseTier(name)
		if string(tier) != name {
			return nil, fmt.Errorf("parse policy: unknown tier %q", name)
		}

		window, err := time.ParseDuration(entry.Window)
		if err != nil {
			return nil, fmt.Errorf("parse policy: tier %q window: %w", name, err)
		}

		if window <= 0 {
			return nil, fmt.Errorf("parse policy: tier %q has no window", name)
		}

		tiers[tier] = TierLimits{
			Window: window,
			Widget: entry.Widget,
			API:    entry.API,
			Bot:    entry.Bot,
		}
	}

	return NewPolicy(tiers), nil
}
