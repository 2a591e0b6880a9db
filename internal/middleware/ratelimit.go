package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/verifiq/phone-api-go/internal/analytics"
	"github.com/verifiq/phone-api-go/internal/messaging"
	"github.com/verifiq/phone-api-go/internal/ratelimit"
	"go.uber.org/zap"
)

// DefaultIPHeaders is the ordered client-IP header chain: edge-injected
// header first, then common proxy headers.
var DefaultIPHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// RateLimitConfig parameterizes the rate limiter middleware.
type RateLimitConfig struct {
	// Store holds window counters. A nil store disables metering.
	Store ratelimit.WindowStore

	Policy *ratelimit.Policy
	Keys   *ratelimit.KeyGenerator
	Tier   ratelimit.Tier

	// IPHeaders is the ordered header chain to derive the client IP from.
	// Empty means DefaultIPHeaders.
	IPHeaders []string

	// BypassReferers are referer hosts that skip metering entirely, used
	// for the local-development front-end.
	BypassReferers []string

	// SkipSuccessful refunds the counted request when the downstream
	// response status is below 400. SkipFailed refunds when the status is
	// 400 or above, or the handler panicked. Deployments typically enable
	// at most one of the two.
	SkipSuccessful bool
	SkipFailed     bool

	// PublishLimitExceeded, when set, emits an analytics event for every
	// rejection. Publish failures are logged, never surfaced.
	PublishLimitExceeded messaging.Publish[analytics.LimitExceededEvent]

	Logger *zap.Logger
}

// limitExceededBody is the fixed 429 payload shape.
type limitExceededBody struct {
	Error      string `json:"error"`
	RetryAfter int64  `json:"retryAfter"`
	Limit      int64  `json:"limit"`
	WindowMs   int64  `json:"windowMs"`
}

// RateLimiter returns a Huma middleware that meters requests per client
// fingerprint against environment- and classification-dependent ceilings.
//
// Only an exceeded limit short-circuits the request. Every internal fault
// (missing store binding, store read or write failure) is logged and
// degrades to an unmetered pass-through: availability of the protected
// endpoint never depends on the rate-limit store.
func RateLimiter(cfg RateLimitConfig) func(ctx huma.Context, next func(huma.Context)) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ipHeaders := cfg.IPHeaders
	if len(ipHeaders) == 0 {
		ipHeaders = DefaultIPHeaders
	}

	return func(ctx huma.Context, next func(huma.Context)) {
		if cfg.Store == nil {
			logger.Debug("rate limiting inactive, no store binding")
			next(ctx)

			return
		}

		attrs := ratelimit.RequestAttrs{
			ClientIP:    clientIP(ctx, ipHeaders),
			RefererHost: ratelimit.RefererHost(ctx.Header("Referer")),
			Bot:         ratelimit.IsBot(ctx.Header("User-Agent")),
		}

		if refererBypassed(attrs.RefererHost, cfg.BypassReferers) {
			logger.Debug("rate limiting bypassed for development front-end",
				zap.String("referer_host", attrs.RefererHost))
			next(ctx)

			return
		}

		class := cfg.Keys.Classify(attrs)
		limit := cfg.Policy.Resolve(cfg.Tier, class)
		key := cfg.Keys.Generate(attrs)

		record, err := cfg.Store.Get(ctx.Context(), key)
		if err != nil {
			logger.Warn("rate limit store unavailable, request unmetered",
				zap.String("key", key), zap.Error(err))
			next(ctx)

			return
		}

		if record.Live(time.Now()) && record.Count >= limit.Max {
			reject(ctx, cfg, logger, attrs, key, record, limit)

			return
		}

		record, err = cfg.Store.Increment(ctx.Context(), key, limit.Window)
		if err != nil {
			logger.Warn("rate limit increment failed, request unmetered",
				zap.String("key", key), zap.Error(err))
			next(ctx)

			return
		}

		remaining := limit.Max - record.Count
		if remaining < 0 {
			remaining = 0
		}

		ctx.SetHeader("X-RateLimit-Limit", strconv.FormatInt(limit.Max, 10))
		ctx.SetHeader("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		ctx.SetHeader("X-RateLimit-Reset", strconv.FormatInt(record.WindowEnd.Unix(), 10))

		runWithSkipAccounting(ctx, cfg, logger, key, next)
	}
}

// runWithSkipAccounting forwards the request and applies the configured
// skip policy afterwards. A panicking handler still gets its error-path
// accounting before the panic is propagated.
func runWithSkipAccounting(
	ctx huma.Context,
	cfg RateLimitConfig,
	logger *zap.Logger,
	key string,
	next func(huma.Context),
) {
	if !cfg.SkipSuccessful && !cfg.SkipFailed {
		next(ctx)

		return
	}

	refund := func() {
		if err := cfg.Store.Decrement(ctx.Context(), key); err != nil {
			logger.Warn("rate limit refund failed",
				zap.String("key", key), zap.Error(err))
		}
	}

	defer func() {
		if r := recover(); r != nil {
			if cfg.SkipFailed {
				refund()
			}

			panic(r)
		}

		status := ctx.Status()

		switch {
		case cfg.SkipSuccessful && status < http.StatusBadRequest:
			refund()
		case cfg.SkipFailed && status >= http.StatusBadRequest:
			refund()
		}
	}()

	next(ctx)
}

// reject writes the 429 response and emits the rejection event.
func reject(
	ctx huma.Context,
	cfg RateLimitConfig,
	logger *zap.Logger,
	attrs ratelimit.RequestAttrs,
	key string,
	record *ratelimit.Record,
	limit ratelimit.Limit,
) {
	retryAfter := record.RetryAfter(time.Now())

	logger.Warn("rate limit exceeded",
		zap.String("key", key),
		zap.Int64("count", record.Count),
		zap.Int64("limit", limit.Max),
		zap.Duration("window", limit.Window),
		zap.Int64("retry_after", retryAfter),
	)

	ctx.SetHeader("Retry-After", strconv.FormatInt(retryAfter, 10))
	ctx.SetHeader("X-RateLimit-Limit", strconv.FormatInt(limit.Max, 10))
	ctx.SetHeader("X-RateLimit-Remaining", "0")
	ctx.SetHeader("X-RateLimit-Reset", strconv.FormatInt(record.WindowEnd.Unix(), 10))
	ctx.SetHeader("Content-Type", "application/json")
	ctx.SetStatus(http.StatusTooManyRequests)

	body := limitExceededBody{
		Error:      "rate limit exceeded, please try again later",
		RetryAfter: retryAfter,
		Limit:      limit.Max,
		WindowMs:   limit.WindowMs(),
	}
	if err := json.NewEncoder(ctx.BodyWriter()).Encode(body); err != nil {
		logger.Error("failed to write rate limit response", zap.Error(err))
	}

	if cfg.PublishLimitExceeded != nil {
		event := &analytics.LimitExceededEvent{
			Key:        key,
			Limit:      limit.Max,
			WindowMs:   limit.WindowMs(),
			RetryAfter: retryAfter,
			ClientIP:   attrs.ClientIP,
			Path:       ctx.URL().Path,
			At:         time.Now().UTC(),
		}
		if err := cfg.PublishLimitExceeded(event); err != nil {
			logger.Error("failed to publish limit exceeded event", zap.Error(err))
		}
	}
}

// clientIP walks the header chain and returns the first usable address,
// taking the first element of comma-separated forwarded lists. Returns
// the unknown sentinel when no header is present.
func clientIP(ctx huma.Context, headers []string) string {
	for _, name := range headers {
		value := ctx.Header(name)
		if value == "" {
			continue
		}

		if idx := strings.Index(value, ","); idx != -1 {
			value = value[:idx]
		}

		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}

	return ratelimit.UnknownIP
}

func refererBypassed(host string, bypass []string) bool {
	for _, b := range bypass {
		if strings.EqualFold(host, b) {
			return true
		}
	}

	return false
}
