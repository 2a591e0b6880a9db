package health_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verifiq/phone-api-go/internal/health"
)

type stubChecker struct {
	err error
}

func (s *stubChecker) Ping(_ context.Context) error {
	return s.err
}

func TestHandler_Check(t *testing.T) {
	t.Run("ok with no dependencies", func(t *testing.T) {
		h := health.NewHandler()

		resp, err := h.Check(context.Background(), nil)

		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Body.Status)
		assert.Empty(t, resp.Body.Dependencies)
	})

	t.Run("reports healthy dependencies", func(t *testing.T) {
		h := health.NewHandler()
		h.Register("redis", &stubChecker{})
		h.Register("rate_limit_store", &stubChecker{})

		resp, err := h.Check(context.Background(), nil)

		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Body.Status)
		assert.Equal(t, "healthy", resp.Body.Dependencies["redis"])
		assert.Equal(t, "healthy", resp.Body.Dependencies["rate_limit_store"])
	})

	t.Run("degrades when a dependency is unreachable", func(t *testing.T) {
		h := health.NewHandler()
		h.Register("redis", &stubChecker{err: errors.New("connection refused")})
		h.Register("rate_limit_store", &stubChecker{})

		resp, err := h.Check(context.Background(), nil)

		require.NoError(t, err, "health endpoint answers even when degraded")
		assert.Equal(t, "degraded", resp.Body.Status)
		assert.Equal(t, "unhealthy", resp.Body.Dependencies["redis"])
		assert.Equal(t, "healthy", resp.Body.Dependencies["rate_limit_store"])
	})
}
