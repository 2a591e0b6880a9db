package analytics

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/verifiq/phone-api-go/internal/messaging"
	"go.uber.org/zap"
)

// NewLookupConsumer creates a consumer that persists lookup events.
func NewLookupConsumer(
	subscriber message.Subscriber,
	store Store,
	logger *zap.Logger,
) *messaging.Consumer[LookupPerformedEvent] {
	return messaging.NewConsumer(subscriber, TopicLookupPerformed, store.SaveLookup, logger)
}

// NewLimitExceededConsumer creates a consumer that persists rate-limit
// rejection events.
func NewLimitExceededConsumer(
	subscriber message.Subscriber,
	store Store,
	logger *zap.Logger,
) *messaging.Consumer[LimitExceededEvent] {
	return messaging.NewConsumer(subscriber, TopicLimitExceeded, store.SaveLimitExceeded, logger)
}
