package ratelimit

import "time"

// Record is the unit of rate-limit state for one key: how many requests
// have been counted in the current window and when that window closes.
type Record struct {
	Count     int64     `json:"count"`
	WindowEnd time.Time `json:"windowEnd"`
}

// Live reports whether the record's window is still open at the given
// instant. An expired record is equivalent to no record at all.
func (r *Record) Live(now time.Time) bool {
	return r != nil && now.Before(r.WindowEnd)
}

// RetryAfter returns the seconds remaining until the window closes,
// never less than 1 so a Retry-After header is always actionable.
func (r *Record) RetryAfter(now time.Time) int64 {
	secs := int64(r.WindowEnd.Sub(now) / time.Second)
	if secs < 1 {
		secs = 1
	}

	return secs
}
