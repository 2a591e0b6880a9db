package analytics

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/verifiq/phone-api-go/internal/messaging"
)

// NewLookupPerformedPublisher creates the typed publish function for
// lookup events.
func NewLookupPerformedPublisher(publisher message.Publisher) messaging.Publish[LookupPerformedEvent] {
	return messaging.NewPublishFunc[LookupPerformedEvent](publisher, TopicLookupPerformed)
}

// NewLimitExceededPublisher creates the typed publish function for
// rate-limit rejection events.
func NewLimitExceededPublisher(publisher message.Publisher) messaging.Publish[LimitExceededEvent] {
	return messaging.NewPublishFunc[LimitExceededEvent](publisher, TopicLimitExceeded)
}
