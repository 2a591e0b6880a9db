package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SafetyMargin is the minimum distance between a write and its persisted
// expiration. Some bindings reject writes whose requested expiration is at
// or before the current time, so a record in its final seconds must still
// be writable. The logical WindowEnd seen by the counting algorithm is not
// affected.
const SafetyMargin = 60 * time.Second

// WindowStore tracks per-key request counts within fixed windows.
type WindowStore interface {
	// Get returns the live record for key, or nil when none exists or the
	// stored record's window has already closed.
	Get(ctx context.Context, key string) (*Record, error)

	// Increment counts one request against key. When no live record
	// exists a fresh window of the given length is opened with count 1;
	// otherwise the count is incremented and WindowEnd preserved.
	Increment(ctx context.Context, key string, window time.Duration) (*Record, error)

	// Decrement removes one request from a live record, flooring at zero.
	// Absent or expired records are left alone.
	Decrement(ctx context.Context, key string) error

	// Reset deletes any record for key unconditionally.
	Reset(ctx context.Context, key string) error
}

// KVWindowStore implements WindowStore over a KV binding, persisting each
// record as JSON. The get+recompute+put sequence is not atomic; concurrent
// callers on the same key may undercount. Bindings with conditional writes
// could close the race, but exact behavior at the limit under concurrent
// bursts is treated as best-effort.
type KVWindowStore struct {
	kv  KV
	now func() time.Time
}

// NewKVWindowStore creates a window store over the given binding.
func NewKVWindowStore(kv KV) *KVWindowStore {
	return &KVWindowStore{
		kv:  kv,
		now: time.Now,
	}
}

func (s *KVWindowStore) Get(ctx context.Context, key string) (*Record, error) {
	value, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("get %q: %w", key, err)
	}

	var record Record
	if err := json.Unmarshal(value, &record); err != nil {
		// Unreadable state is treated as absent; the next increment
		// overwrites it with a fresh window.
		return nil, nil
	}

	if !record.Live(s.now()) {
		return nil, nil
	}

	return &record, nil
}

func (s *KVWindowStore) Increment(ctx context.Context, key string, window time.Duration) (*Record, error) {
	record, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	now := s.now()

	if record == nil {
		record = &Record{Count: 1, WindowEnd: now.Add(window)}
	} else {
		record.Count++
	}

	if err := s.put(ctx, key, record, now); err != nil {
		return nil, err
	}

	return record, nil
}

func (s *KVWindowStore) Decrement(ctx context.Context, key string) error {
	record, err := s.Get(ctx, key)
	if err != nil {
		return err
	}

	if record == nil {
		return nil
	}

	if record.Count > 0 {
		record.Count--
	}

	return s.put(ctx, key, record, s.now())
}

func (s *KVWindowStore) Reset(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("reset %q: %w", key, err)
	}

	return nil
}

func (s *KVWindowStore) put(ctx context.Context, key string, record *Record, now time.Time) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record for %q: %w", key, err)
	}

	expiresAt := record.WindowEnd
	if floor := now.Add(SafetyMargin); expiresAt.Before(floor) {
		expiresAt = floor
	}

	if err := s.kv.Put(ctx, key, value, expiresAt); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}

	return nil
}
