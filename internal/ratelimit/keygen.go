package ratelimit

import (
	"net/url"
	"regexp"
	"strings"
)

// Tier identifies the deployment environment a request is served from.
// Keys are namespaced by tier so deployments sharing one store never
// collide.
type Tier string

const (
	TierDevelopment Tier = "development"
	TierStaging     Tier = "staging"
	TierProduction  Tier = "production"
)

// ParseTier maps an environment string to a Tier, defaulting to production
// so an unconfigured deployment gets the strictest limits.
func ParseTier(s string) Tier {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierDevelopment:
		return TierDevelopment
	case TierStaging:
		return TierStaging
	default:
		return TierProduction
	}
}

// Classification is a coarse traffic class derived from request headers.
// It is advisory only: Referer and User-Agent are spoofable, so the class
// shapes limits but never acts as an authentication signal.
type Classification string

const (
	// ClassWidget is non-bot traffic referred from the trusted front-end.
	ClassWidget Classification = "widget"
	// ClassAPI is generic traffic with no trust signal.
	ClassAPI Classification = "api"
	// ClassBot is traffic whose User-Agent matches the bot heuristic.
	ClassBot Classification = "bot"
)

// botPattern matches common automated clients. Case-insensitive.
var botPattern = regexp.MustCompile(`(?i)bot|crawler|spider|scraper`)

// IsBot reports whether a User-Agent matches the bot heuristic.
func IsBot(userAgent string) bool {
	return botPattern.MatchString(userAgent)
}

// RefererDirect is the sentinel host used when the Referer header is
// absent or unparsable.
const RefererDirect = "direct"

// RefererHost extracts the hostname from a Referer header value.
func RefererHost(referer string) string {
	if referer == "" {
		return RefererDirect
	}

	u, err := url.Parse(referer)
	if err != nil || u.Hostname() == "" {
		return RefererDirect
	}

	return strings.ToLower(u.Hostname())
}

// RequestAttrs are the request attributes a fingerprint is derived from.
// The middleware fills them in from headers; UnknownIP stands in when no
// client address could be determined.
type RequestAttrs struct {
	ClientIP    string
	RefererHost string
	Bot         bool
}

// UnknownIP is the sentinel used when no client address header is present.
const UnknownIP = "unknown"

// KeyMode selects how requests are fingerprinted.
type KeyMode string

const (
	// KeyModeComposite partitions counters per (ip, referer host, bot
	// flag) tuple, namespaced by environment.
	KeyModeComposite KeyMode = "composite"
	// KeyModeClassified partitions coarsely per IP with a widget/api
	// class prefix.
	KeyModeClassified KeyMode = "classified"
)

// KeyGenerator derives rate-limit fingerprints from request attributes.
type KeyGenerator struct {
	mode          KeyMode
	prefix        string
	env           Tier
	trustedDomain string
}

// NewKeyGenerator creates a generator. prefix namespaces independent
// rate-limited routes sharing one store and may be empty in classified
// mode.
func NewKeyGenerator(mode KeyMode, prefix string, env Tier, trustedDomain string) *KeyGenerator {
	return &KeyGenerator{
		mode:          mode,
		prefix:        prefix,
		env:           env,
		trustedDomain: strings.ToLower(trustedDomain),
	}
}

// Classify derives the traffic class for the given attributes.
func (g *KeyGenerator) Classify(attrs RequestAttrs) Classification {
	if attrs.Bot {
		return ClassBot
	}

	if g.trustedHost(attrs.RefererHost) {
		return ClassWidget
	}

	return ClassAPI
}

// Generate produces the fingerprint key for the given attributes.
func (g *KeyGenerator) Generate(attrs RequestAttrs) string {
	ip := attrs.ClientIP
	if ip == "" {
		ip = UnknownIP
	}

	if g.mode == KeyModeClassified {
		class := "api"
		if g.trustedHost(attrs.RefererHost) && !attrs.Bot {
			class = "widget"
		}

		if g.prefix == "" {
			return class + ":" + ip
		}

		return g.prefix + ":" + class + ":" + ip
	}

	host := attrs.RefererHost
	if host == "" {
		host = RefererDirect
	}

	agent := "human"
	if attrs.Bot {
		agent = "bot"
	}

	parts := []string{string(g.env), ip, host, agent}
	if g.prefix != "" {
		parts = append([]string{g.prefix}, parts...)
	}

	return strings.Join(parts, ":")
}

// trustedHost reports whether host is the trusted front-end domain or one
// of its subdomains.
func (g *KeyGenerator) trustedHost(host string) bool {
	if g.trustedDomain == "" || host == "" || host == RefererDirect {
		return false
	}

	host = strings.ToLower(host)

	return host == g.trustedDomain || strings.HasSuffix(host, "."+g.trustedDomain)
}
