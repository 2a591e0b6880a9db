package store

import (
	"context"

	"github.com/verifiq/phone-api-go/internal/analytics"
	"go.uber.org/zap"
)

// Noop is a no-op implementation of analytics.Store that logs events.
// Used when no Postgres DSN is configured.
type Noop struct {
	logger *zap.Logger
}

// NewNoop creates a new no-op analytics store.
func NewNoop(logger *zap.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) SaveLookup(_ context.Context, event *analytics.LookupPerformedEvent) error {
	n.logger.Info("lookup event received",
		zap.String("lookupId", event.LookupID),
		zap.Bool("valid", event.Valid),
		zap.String("countryCode", event.CountryCode),
		zap.Time("requestedAt", event.RequestedAt),
	)

	return nil
}

func (n *Noop) SaveLimitExceeded(_ context.Context, event *analytics.LimitExceededEvent) error {
	n.logger.Info("limit exceeded event received",
		zap.String("key", event.Key),
		zap.Int64("limit", event.Limit),
		zap.String("path", event.Path),
		zap.Time("at", event.At),
	)

	return nil
}
