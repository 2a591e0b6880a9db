package analytics

import "time"

// Topic names for the analytics event bus.
const (
	TopicLookupPerformed = "lookup.performed"
	TopicLimitExceeded   = "limit.exceeded"
)

// LookupPerformedEvent is emitted after every completed phone validation.
type LookupPerformedEvent struct {
	LookupID      string    `json:"lookupId"`
	Number        string    `json:"number"`
	Valid         bool      `json:"valid"`
	CountryCode   string    `json:"countryCode,omitempty"`
	Carrier       string    `json:"carrier,omitempty"`
	LineType      string    `json:"lineType,omitempty"`
	ClientIP      string    `json:"clientIp"`
	UserAgent     string    `json:"userAgent"`
	CorrelationID string    `json:"correlationId"`
	RequestedAt   time.Time `json:"requestedAt"`
}

// Correlation ties the event back to the originating request so it can
// be traced through broker metadata.
func (e *LookupPerformedEvent) Correlation() string {
	return e.CorrelationID
}

// LimitExceededEvent is emitted when the rate limiter rejects a request.
type LimitExceededEvent struct {
	Key        string    `json:"key"`
	Limit      int64     `json:"limit"`
	WindowMs   int64     `json:"windowMs"`
	RetryAfter int64     `json:"retryAfter"`
	ClientIP   string    `json:"clientIp"`
	Path       string    `json:"path"`
	At         time.Time `json:"at"`
}

// Correlation identifies the throttled client fingerprint.
func (e *LimitExceededEvent) Correlation() string {
	return e.Key
}
