package analytics

import "context"

// Store defines the interface for persisting analytics events.
type Store interface {
	SaveLookup(ctx context.Context, event *LookupPerformedEvent) error
	SaveLimitExceeded(ctx context.Context, event *LimitExceededEvent) error
}
