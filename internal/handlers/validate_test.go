package handlers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verifiq/phone-api-go/internal/analytics"
	"github.com/verifiq/phone-api-go/internal/handlers"
	"github.com/verifiq/phone-api-go/internal/messaging"
	"github.com/verifiq/phone-api-go/internal/verifier"
	"go.uber.org/zap"
)

// noopPublish returns a publish function that always succeeds.
func noopPublish[T any]() messaging.Publish[T] {
	return func(_ *T) error { return nil }
}

// errorPublish returns a publish function that always fails.
func errorPublish[T any](err error) messaging.Publish[T] {
	return func(_ *T) error { return err }
}

// mockVerifier returns a canned result or error.
type mockVerifier struct {
	result     *verifier.Result
	err        error
	gotNumber  string
	gotCountry string
}

func (m *mockVerifier) Validate(_ context.Context, number, countryCode string) (*verifier.Result, error) {
	m.gotNumber = number
	m.gotCountry = countryCode

	if m.err != nil {
		return nil, m.err
	}

	return m.result, nil
}

func validRequest() *handlers.ValidateRequest {
	req := &handlers.ValidateRequest{}
	req.Body.Number = "14158586273"
	req.Body.CountryCode = "US"

	return req
}

func TestValidateHandler_Validate(t *testing.T) {
	t.Run("returns validation result with lookup id", func(t *testing.T) {
		v := &mockVerifier{result: &verifier.Result{
			Valid:               true,
			Number:              "14158586273",
			InternationalFormat: "+14158586273",
			CountryCode:         "US",
			Carrier:             "AT&T Mobility LLC",
			LineType:            "mobile",
		}}

		h := handlers.NewValidateHandler(
			v,
			func() string { return "lookup-1" },
			noopPublish[analytics.LookupPerformedEvent](),
			zap.NewNop(),
		)

		resp, err := h.Validate(context.Background(), validRequest())

		require.NoError(t, err)
		assert.Equal(t, "lookup-1", resp.Body.LookupID)
		assert.True(t, resp.Body.Valid)
		assert.Equal(t, "+14158586273", resp.Body.InternationalFormat)
		assert.Equal(t, "mobile", resp.Body.LineType)
		assert.Equal(t, "14158586273", v.gotNumber)
		assert.Equal(t, "US", v.gotCountry)
	})

	t.Run("publishes lookup event with request metadata", func(t *testing.T) {
		v := &mockVerifier{result: &verifier.Result{Valid: true, Number: "123", CountryCode: "DE"}}

		var captured *analytics.LookupPerformedEvent

		h := handlers.NewValidateHandler(
			v,
			func() string { return "lookup-2" },
			func(event *analytics.LookupPerformedEvent) error {
				captured = event

				return nil
			},
			zap.NewNop(),
		)

		ctx := handlers.ContextWithRequestMeta(context.Background(), handlers.RequestMeta{
			ClientIP:  "203.0.113.9",
			UserAgent: "TestAgent/1.0",
		})

		_, err := h.Validate(ctx, validRequest())

		require.NoError(t, err)
		require.NotNil(t, captured)
		assert.Equal(t, "lookup-2", captured.LookupID)
		assert.Equal(t, "203.0.113.9", captured.ClientIP)
		assert.Equal(t, "TestAgent/1.0", captured.UserAgent)
		assert.NotEmpty(t, captured.CorrelationID)
		assert.False(t, captured.RequestedAt.IsZero())
	})

	t.Run("publish failure does not fail the lookup", func(t *testing.T) {
		v := &mockVerifier{result: &verifier.Result{Valid: true, Number: "123"}}

		h := handlers.NewValidateHandler(
			v,
			func() string { return "lookup-3" },
			errorPublish[analytics.LookupPerformedEvent](errors.New("broker down")),
			zap.NewNop(),
		)

		resp, err := h.Validate(context.Background(), validRequest())

		require.NoError(t, err)
		assert.True(t, resp.Body.Valid)
	})

	t.Run("maps unavailable upstream to 502", func(t *testing.T) {
		v := &mockVerifier{err: verifier.ErrUnavailable}

		h := handlers.NewValidateHandler(
			v,
			func() string { return "x" },
			noopPublish[analytics.LookupPerformedEvent](),
			zap.NewNop(),
		)

		_, err := h.Validate(context.Background(), validRequest())

		require.Error(t, err)

		var status huma.StatusError
		require.ErrorAs(t, err, &status)
		assert.Equal(t, 502, status.GetStatus())
	})

	t.Run("maps denied upstream to 503", func(t *testing.T) {
		v := &mockVerifier{err: verifier.ErrUpstreamDenied}

		h := handlers.NewValidateHandler(
			v,
			func() string { return "x" },
			noopPublish[analytics.LookupPerformedEvent](),
			zap.NewNop(),
		)

		_, err := h.Validate(context.Background(), validRequest())

		require.Error(t, err)

		var status huma.StatusError
		require.ErrorAs(t, err, &status)
		assert.Equal(t, 503, status.GetStatus())
	})

	t.Run("maps unexpected error to 500", func(t *testing.T) {
		v := &mockVerifier{err: errors.New("boom")}

		h := handlers.NewValidateHandler(
			v,
			func() string { return "x" },
			noopPublish[analytics.LookupPerformedEvent](),
			zap.NewNop(),
		)

		_, err := h.Validate(context.Background(), validRequest())

		require.Error(t, err)

		var status huma.StatusError
		require.ErrorAs(t, err, &status)
		assert.Equal(t, 500, status.GetStatus())
	})
}
