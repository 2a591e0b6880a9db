// Package container wires application dependencies with samber/do.
// Each concern is registered by its own XxxPackage function so the server
// and consumer binaries compose only what they need.
package container

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jaevor/go-nanoid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/verifiq/phone-api-go/internal/analytics"
	analyticsstore "github.com/verifiq/phone-api-go/internal/analytics/store"
	"github.com/verifiq/phone-api-go/internal/handlers"
	"github.com/verifiq/phone-api-go/internal/health"
	"github.com/verifiq/phone-api-go/internal/messaging"
	"github.com/verifiq/phone-api-go/internal/middleware"
	"github.com/verifiq/phone-api-go/internal/ratelimit"
	"github.com/verifiq/phone-api-go/internal/store"
	"github.com/verifiq/phone-api-go/internal/verifier"
	"go.uber.org/zap"
)

// Options holds all runtime configuration, exposed as flags and
// environment variables through humacli.
type Options struct {
	Port        int    `default:"8888"        help:"Port to listen on"                                  short:"p"`
	Environment string `default:"development" help:"Deployment tier (development|staging|production)"   short:"e"`
	LogFormat   string `default:"console"     help:"Log format (console or json)"`

	RedisAddr   string `default:"localhost:6379" help:"Redis server address" short:"r"`
	PostgresDSN string `default:""               help:"Postgres DSN for analytics persistence (empty = log only)"`

	UpstreamURL string `default:"https://apilayer.net" help:"Phone verification API base URL"`
	UpstreamKey string `default:""                     help:"Phone verification API access key"`
	UpstreamRPS int    `default:"10"                   help:"Outbound requests per second to the upstream"`

	TrustedDomain  string `default:"verifiq.io"         help:"Front-end domain whose referers get the widget ceiling"`
	AllowedOrigins string `default:"https://verifiq.io" help:"Comma-separated CORS origins"`
	BypassReferers string `default:"localhost"          help:"Comma-separated referer hosts that skip rate limiting"`

	KVBackend   string `default:"redis"     help:"Rate limit store backend (redis|memory|dynamo)"`
	DynamoTable string `default:"ratelimit" help:"DynamoDB table for the dynamo backend"`
	AWSRegion   string `default:"us-east-1" help:"AWS region for the dynamo backend"`

	KeyMode           string `default:"composite" help:"Rate limit key mode (composite|classified)"`
	KeyPrefix         string `default:""          help:"Rate limit key namespace prefix"`
	PolicyFile        string `default:""          help:"Optional YAML limit policy file"`
	SkipSuccessful    bool   `default:"false"     help:"Refund rate limit counts for successful responses"`
	SkipFailed        bool   `default:"false"     help:"Refund rate limit counts for failed responses"`
	RateLimitDisabled bool   `default:"false"     help:"Disable rate limiting entirely"`
}

// Tier returns the parsed deployment tier.
func (o *Options) Tier() ratelimit.Tier {
	return ratelimit.ParseTier(o.Environment)
}

func splitCSV(s string) []string {
	var out []string

	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}

// LoggerPackage provides the zap logger.
func LoggerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		options := do.MustInvoke[*Options](i)

		if options.LogFormat == "json" {
			return zap.NewProduction()
		}

		return zap.NewDevelopment()
	})
}

// RedisPackage provides the shared Redis client.
func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*redis.Client, error) {
		options := do.MustInvoke[*Options](i)

		return redis.NewClient(&redis.Options{
			Addr: options.RedisAddr,
		}), nil
	})
}

// PostgresPackage provides the pgx pool for analytics persistence.
func PostgresPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*pgxpool.Pool, error) {
		options := do.MustInvoke[*Options](i)

		pool, err := pgxpool.New(context.Background(), options.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("create postgres pool: %w", err)
		}

		return pool, nil
	})
}

// RateLimitPackage provides the assembled rate limiter middleware
// configuration: KV binding, window store, key generator, and policy.
// The KV binding is its own service so the injector shuts it down (the
// memory backend runs a janitor goroutine).
//
// Store trouble at startup (unknown backend, failed probe) downgrades to
// metering disabled rather than refusing to start: the validation
// endpoint must stay available without its rate-limit store.
func RateLimitPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (ratelimit.KV, error) {
		options := do.MustInvoke[*Options](i)

		return buildKV(i, options)
	})

	do.Provide(injector, func(i *do.Injector) (middleware.RateLimitConfig, error) {
		options := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		cfg := middleware.RateLimitConfig{
			Tier: options.Tier(),
			Keys: ratelimit.NewKeyGenerator(
				ratelimit.KeyMode(options.KeyMode),
				options.KeyPrefix,
				options.Tier(),
				options.TrustedDomain,
			),
			BypassReferers: splitCSV(options.BypassReferers),
			SkipSuccessful: options.SkipSuccessful,
			SkipFailed:     options.SkipFailed,
			Logger:         logger,
		}

		policy, err := loadPolicy(options.PolicyFile)
		if err != nil {
			return middleware.RateLimitConfig{}, err
		}

		cfg.Policy = policy

		if options.RateLimitDisabled {
			logger.Warn("rate limiting disabled by configuration")

			return cfg, nil
		}

		kv, err := do.Invoke[ratelimit.KV](i)
		if err != nil {
			logger.Warn("rate limit store unavailable, metering disabled", zap.Error(err))

			return cfg, nil
		}

		probeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := kv.Ping(probeCtx); err != nil {
			logger.Warn("rate limit store probe failed, metering disabled",
				zap.String("backend", options.KVBackend), zap.Error(err))

			return cfg, nil
		}

		cfg.Store = ratelimit.NewKVWindowStore(kv)

		if publish, err := do.Invoke[messaging.Publish[analytics.LimitExceededEvent]](i); err == nil {
			cfg.PublishLimitExceeded = publish
		}

		return cfg, nil
	})
}

func loadPolicy(path string) (*ratelimit.Policy, error) {
	if path == "" {
		return ratelimit.DefaultPolicy(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	return ratelimit.PolicyFromYAML(data)
}

func buildKV(i *do.Injector, options *Options) (ratelimit.KV, error) {
	switch options.KVBackend {
	case "redis":
		return store.NewRedisKV(do.MustInvoke[*redis.Client](i)), nil
	case "memory":
		return store.NewMemoryKV(), nil
	case "dynamo":
		return store.NewDynamoKV(context.Background(), options.DynamoTable, options.AWSRegion)
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", options.KVBackend)
	}
}

// VerifierPackage provides the upstream phone verification client.
func VerifierPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*verifier.Client, error) {
		options := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		return verifier.NewClient(
			options.UpstreamURL,
			options.UpstreamKey,
			float64(options.UpstreamRPS),
			logger,
		), nil
	})
}

// PublisherGroupPackage provides the Redis Streams publisher and the
// typed publish functions for analytics events.
func PublisherGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		client := do.MustInvoke[*redis.Client](i)

		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client: client,
		}, watermill.NopLogger{})
		if err != nil {
			return nil, fmt.Errorf("create redis stream publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(injector, func(i *do.Injector) (messaging.Publish[analytics.LookupPerformedEvent], error) {
		group := do.MustInvoke[*messaging.PublisherGroup](i)

		return analytics.NewLookupPerformedPublisher(group.Publisher()), nil
	})

	do.Provide(injector, func(i *do.Injector) (messaging.Publish[analytics.LimitExceededEvent], error) {
		group := do.MustInvoke[*messaging.PublisherGroup](i)

		return analytics.NewLimitExceededPublisher(group.Publisher()), nil
	})
}

// AnalyticsStorePackage provides the analytics event store: Postgres
// when a DSN is configured, log-only otherwise.
func AnalyticsStorePackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (analytics.Store, error) {
		options := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		if options.PostgresDSN == "" {
			logger.Info("no postgres dsn configured, analytics events are log-only")

			return analyticsstore.NewNoop(logger), nil
		}

		return analyticsstore.NewPostgres(do.MustInvoke[*pgxpool.Pool](i)), nil
	})
}

// ConsumerGroupPackage provides the Redis Streams subscriber and the
// consumer group persisting analytics events.
func ConsumerGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (message.Subscriber, error) {
		client := do.MustInvoke[*redis.Client](i)

		subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        client,
			ConsumerGroup: "analytics",
		}, watermill.NopLogger{})
		if err != nil {
			return nil, fmt.Errorf("create redis stream subscriber: %w", err)
		}

		return subscriber, nil
	})

	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		subscriber := do.MustInvoke[message.Subscriber](i)
		eventStore := do.MustInvoke[analytics.Store](i)
		logger := do.MustInvoke[*zap.Logger](i)

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(analytics.NewLookupConsumer(subscriber, eventStore, logger))
		group.Add(analytics.NewLimitExceededConsumer(subscriber, eventStore, logger))

		return group, nil
	})
}

// HTTPPackage provides the router and the API with all middlewares and
// routes registered.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		options := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)

		api := humachi.New(router, huma.DefaultConfig("Phone Verification API", "1.0.0"))

		api.UseMiddleware(middleware.CORS(middleware.CORSConfig{
			AllowedOrigins: splitCSV(options.AllowedOrigins),
		}))
		api.UseMiddleware(middleware.RequestMeta(api))
		api.UseMiddleware(middleware.RateLimiter(do.MustInvoke[middleware.RateLimitConfig](i)))

		newLookupID, err := nanoid.Standard(16)
		if err != nil {
			return nil, fmt.Errorf("create lookup id generator: %w", err)
		}

		validateHandler := handlers.NewValidateHandler(
			do.MustInvoke[*verifier.Client](i),
			newLookupID,
			do.MustInvoke[messaging.Publish[analytics.LookupPerformedEvent]](i),
			logger,
		)

		handlers.RegisterRoutes(api, validateHandler)

		healthHandler := health.NewHandler()
		healthHandler.Register("redis", health.NewRedisChecker(do.MustInvoke[*redis.Client](i)))

		if !options.RateLimitDisabled {
			if kv, err := do.Invoke[ratelimit.KV](i); err == nil {
				healthHandler.Register("rate_limit_store", kv)
			}
		}

		health.RegisterRoutes(api, healthHandler)

		return api, nil
	})
}
