package messaging_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verifiq/phone-api-go/internal/messaging"
)

type testEvent struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
}

// correlatedEvent exposes a correlation identifier for metadata stamping.
type correlatedEvent struct {
	RequestID string `json:"requestId"`
}

func (e *correlatedEvent) Correlation() string { return e.RequestID }

type mockPublisher struct {
	messages   []*message.Message
	topic      string
	publishErr error
	closeErr   error
}

func (m *mockPublisher) Publish(topic string, msgs ...*message.Message) error {
	if m.publishErr != nil {
		return m.publishErr
	}

	m.topic = topic
	m.messages = append(m.messages, msgs...)

	return nil
}

func (m *mockPublisher) Close() error {
	return m.closeErr
}

func TestNewPublishFunc(t *testing.T) {
	t.Run("publishes on the configured topic", func(t *testing.T) {
		mock := &mockPublisher{}
		publish := messaging.NewPublishFunc[testEvent](mock, "test.topic")

		err := publish(&testEvent{ID: "abc", Value: 7})

		require.NoError(t, err)
		assert.Equal(t, "test.topic", mock.topic)
		require.Len(t, mock.messages, 1)

		var decoded testEvent
		require.NoError(t, json.Unmarshal(mock.messages[0].Payload, &decoded))
		assert.Equal(t, "abc", decoded.ID)
	})

	t.Run("stamps published-at metadata", func(t *testing.T) {
		mock := &mockPublisher{}
		publish := messaging.NewPublishFunc[testEvent](mock, "test.topic")

		require.NoError(t, publish(&testEvent{ID: "abc"}))

		stamp := mock.messages[0].Metadata.Get(messaging.MetadataPublishedAt)
		require.NotEmpty(t, stamp)

		_, err := time.Parse(time.RFC3339Nano, stamp)
		assert.NoError(t, err)
	})

	t.Run("stamps correlation metadata for correlated events", func(t *testing.T) {
		mock := &mockPublisher{}
		publish := messaging.NewPublishFunc[correlatedEvent](mock, "test.topic")

		require.NoError(t, publish(&correlatedEvent{RequestID: "req-42"}))

		assert.Equal(t, "req-42",
			mock.messages[0].Metadata.Get(messaging.MetadataCorrelationID))
	})

	t.Run("leaves correlation metadata empty otherwise", func(t *testing.T) {
		mock := &mockPublisher{}
		publish := messaging.NewPublishFunc[testEvent](mock, "test.topic")

		require.NoError(t, publish(&testEvent{ID: "abc"}))

		assert.Empty(t, mock.messages[0].Metadata.Get(messaging.MetadataCorrelationID))
	})

	t.Run("wraps publish failure with the topic", func(t *testing.T) {
		mock := &mockPublisher{publishErr: errors.New("broker down")}
		publish := messaging.NewPublishFunc[testEvent](mock, "test.topic")

		err := publish(&testEvent{ID: "abc"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "test.topic")
	})
}

func TestPublisherGroup_Shutdown(t *testing.T) {
	t.Run("closes underlying publisher", func(t *testing.T) {
		mock := &mockPublisher{}
		group := messaging.NewPublisherGroup(mock)

		require.NoError(t, group.Shutdown())
	})

	t.Run("returns error when close fails", func(t *testing.T) {
		mock := &mockPublisher{closeErr: errors.New("close error")}
		group := messaging.NewPublisherGroup(mock)

		assert.Error(t, group.Shutdown())
	})
}
