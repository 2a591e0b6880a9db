package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/verifiq/phone-api-go/internal/analytics"
)

// Postgres is a PostgreSQL implementation of analytics.Store.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a new PostgreSQL-backed analytics store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) SaveLookup(ctx context.Context, event *analytics.LookupPerformedEvent) error {
	query := `
		INSERT INTO lookups (
			lookup_id, number, valid, country_code, carrier, line_type,
			client_ip, user_agent, correlation_id, requested_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (lookup_id) DO NOTHING
	`

	_, err := p.pool.Exec(ctx, query,
		event.LookupID,
		event.Number,
		event.Valid,
		nullableString(event.CountryCode),
		nullableString(event.Carrier),
		nullableString(event.LineType),
		event.ClientIP,
		event.UserAgent,
		event.CorrelationID,
		event.RequestedAt,
	)

	return err
}

func (p *Postgres) SaveLimitExceeded(ctx context.Context, event *analytics.LimitExceededEvent) error {
	query := `
		INSERT INTO limit_rejections (
			key, "limit", window_ms, retry_after, client_ip, path, at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := p.pool.Exec(ctx, query,
		event.Key,
		event.Limit,
		event.WindowMs,
		event.RetryAfter,
		event.ClientIP,
		event.Path,
		event.At,
	)

	return err
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

var _ analytics.Store = (*Postgres)(nil)
