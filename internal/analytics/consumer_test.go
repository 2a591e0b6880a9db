package analytics_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verifiq/phone-api-go/internal/analytics"
	"go.uber.org/zap"
)

type mockSubscriber struct {
	lookupChan   chan *message.Message
	rejectedChan chan *message.Message
	subscribeErr error
	mu           sync.Mutex
	closed       bool
}

func newMockSubscriber() *mockSubscriber {
	return &mockSubscriber{
		lookupChan:   make(chan *message.Message, 10),
		rejectedChan: make(chan *message.Message, 10),
	}
}

func (m *mockSubscriber) Subscribe(_ context.Context, topic string) (<-chan *message.Message, error) {
	if m.subscribeErr != nil {
		return nil, m.subscribeErr
	}

	switch topic {
	case analytics.TopicLookupPerformed:
		return m.lookupChan, nil
	case analytics.TopicLimitExceeded:
		return m.rejectedChan, nil
	default:
		return nil, errors.New("unknown topic")
	}
}

func (m *mockSubscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.lookupChan)
		close(m.rejectedChan)
	}

	return nil
}

type mockStore struct {
	lookupEvents   []*analytics.LookupPerformedEvent
	rejectedEvents []*analytics.LimitExceededEvent
	saveLookupErr  error
	mu             sync.Mutex
}

func (m *mockStore) SaveLookup(_ context.Context, event *analytics.LookupPerformedEvent) error {
	if m.saveLookupErr != nil {
		return m.saveLookupErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lookupEvents = append(m.lookupEvents, event)

	return nil
}

func (m *mockStore) SaveLimitExceeded(_ context.Context, event *analytics.LimitExceededEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rejectedEvents = append(m.rejectedEvents, event)

	return nil
}

func awaitAck(t *testing.T, msg *message.Message) {
	t.Helper()

	select {
	case <-msg.Acked():
	case <-msg.Nacked():
		t.Fatal("message was nacked")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for ack")
	}
}

func awaitNack(t *testing.T, msg *message.Message) {
	t.Helper()

	select {
	case <-msg.Nacked():
	case <-msg.Acked():
		t.Fatal("message should have been nacked")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for nack")
	}
}

func TestLookupConsumer(t *testing.T) {
	t.Run("persists lookup event and acks", func(t *testing.T) {
		sub := newMockSubscriber()
		store := &mockStore{}
		consumer := analytics.NewLookupConsumer(sub, store, zap.NewNop())

		require.NoError(t, consumer.Start(context.Background()))

		event := &analytics.LookupPerformedEvent{
			LookupID:    "V1StGXR8Z5jdHi6B",
			Number:      "14158586273",
			Valid:       true,
			RequestedAt: time.Now(),
		}

		payload, _ := json.Marshal(event)
		msg := message.NewMessage(uuid.NewString(), payload)

		sub.lookupChan <- msg
		awaitAck(t, msg)

		store.mu.Lock()
		defer store.mu.Unlock()

		require.Len(t, store.lookupEvents, 1)
		assert.Equal(t, "V1StGXR8Z5jdHi6B", store.lookupEvents[0].LookupID)

		_ = consumer.Shutdown()
	})

	t.Run("drops undecodable payload without persisting", func(t *testing.T) {
		sub := newMockSubscriber()
		store := &mockStore{}
		consumer := analytics.NewLookupConsumer(sub, store, zap.NewNop())

		require.NoError(t, consumer.Start(context.Background()))

		msg := message.NewMessage(uuid.NewString(), []byte("invalid json"))

		sub.lookupChan <- msg
		awaitAck(t, msg)

		store.mu.Lock()
		defer store.mu.Unlock()
		assert.Empty(t, store.lookupEvents)

		_ = consumer.Shutdown()
	})

	t.Run("nacks on store error", func(t *testing.T) {
		sub := newMockSubscriber()
		store := &mockStore{saveLookupErr: errors.New("store error")}
		consumer := analytics.NewLookupConsumer(sub, store, zap.NewNop())

		require.NoError(t, consumer.Start(context.Background()))

		payload, _ := json.Marshal(&analytics.LookupPerformedEvent{LookupID: "V1StGXR8Z5jdHi6B"})
		msg := message.NewMessage(uuid.NewString(), payload)

		sub.lookupChan <- msg
		awaitNack(t, msg)

		_ = consumer.Shutdown()
	})

	t.Run("returns error when subscription fails", func(t *testing.T) {
		sub := &mockSubscriber{subscribeErr: errors.New("subscribe error")}
		consumer := analytics.NewLookupConsumer(sub, &mockStore{}, zap.NewNop())

		assert.Error(t, consumer.Start(context.Background()))
	})
}

func TestLimitExceededConsumer(t *testing.T) {
	t.Run("persists rejection event and acks", func(t *testing.T) {
		sub := newMockSubscriber()
		store := &mockStore{}
		consumer := analytics.NewLimitExceededConsumer(sub, store, zap.NewNop())

		require.NoError(t, consumer.Start(context.Background()))

		event := &analytics.LimitExceededEvent{
			Key:      "production:1.2.3.4:direct:human",
			Limit:    20,
			WindowMs: 900000,
			At:       time.Now(),
		}

		payload, _ := json.Marshal(event)
		msg := message.NewMessage(uuid.NewString(), payload)

		sub.rejectedChan <- msg
		awaitAck(t, msg)

		store.mu.Lock()
		defer store.mu.Unlock()

		require.Len(t, store.rejectedEvents, 1)
		assert.Equal(t, int64(20), store.rejectedEvents[0].Limit)

		_ = consumer.Shutdown()
	})
}
