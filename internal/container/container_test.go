package container_test

import (
	"testing"

	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verifiq/phone-api-go/internal/container"
	"github.com/verifiq/phone-api-go/internal/middleware"
	"github.com/verifiq/phone-api-go/internal/ratelimit"
	"github.com/verifiq/phone-api-go/internal/store"
)

func testOptions() *container.Options {
	return &container.Options{
		Environment:   "production",
		LogFormat:     "console",
		KVBackend:     "memory",
		KeyMode:       "composite",
		TrustedDomain: "verifiq.io",
	}
}

func newTestInjector(t *testing.T, options *container.Options) *do.Injector {
	t.Helper()

	injector := do.New()
	do.ProvideValue(injector, options)
	container.LoggerPackage(injector)
	container.RateLimitPackage(injector)

	return injector
}

func TestRateLimitPackage(t *testing.T) {
	t.Run("memory backend is its own service and shuts down with the injector", func(t *testing.T) {
		injector := newTestInjector(t, testOptions())

		cfg := do.MustInvoke[middleware.RateLimitConfig](injector)
		require.NotNil(t, cfg.Store, "memory backend should be wired into the middleware")

		kv := do.MustInvoke[ratelimit.KV](injector)
		require.IsType(t, (*store.MemoryKV)(nil), kv)
		assert.Implements(t, (*do.Shutdownable)(nil), kv,
			"injector shutdown must stop the janitor goroutine")

		require.NoError(t, injector.Shutdown())
	})

	t.Run("unknown backend degrades to metering disabled", func(t *testing.T) {
		options := testOptions()
		options.KVBackend = "bogus"

		injector := newTestInjector(t, options)

		cfg := do.MustInvoke[middleware.RateLimitConfig](injector)
		assert.Nil(t, cfg.Store)
	})

	t.Run("disabled rate limiting leaves the store unset", func(t *testing.T) {
		options := testOptions()
		options.RateLimitDisabled = true

		injector := newTestInjector(t, options)

		cfg := do.MustInvoke[middleware.RateLimitConfig](injector)
		assert.Nil(t, cfg.Store)

		require.NoError(t, injector.Shutdown())
	})
}
