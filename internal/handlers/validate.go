package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/verifiq/phone-api-go/internal/analytics"
	"github.com/verifiq/phone-api-go/internal/messaging"
	"github.com/verifiq/phone-api-go/internal/verifier"
	"go.uber.org/zap"
)

// Verifier is the slice of the upstream client the handler needs.
type Verifier interface {
	Validate(ctx context.Context, number, countryCode string) (*verifier.Result, error)
}

// ValidateHandler proxies phone-number validation to the upstream service.
type ValidateHandler struct {
	verifier      Verifier
	newLookupID   func() string
	publishLookup messaging.Publish[analytics.LookupPerformedEvent]
	logger        *zap.Logger
}

// NewValidateHandler creates a validation handler.
func NewValidateHandler(
	v Verifier,
	newLookupID func() string,
	publishLookup messaging.Publish[analytics.LookupPerformedEvent],
	logger *zap.Logger,
) *ValidateHandler {
	return &ValidateHandler{
		verifier:      v,
		newLookupID:   newLookupID,
		publishLookup: publishLookup,
		logger:        logger,
	}
}

// Validate handles POST /validate.
func (h *ValidateHandler) Validate(ctx context.Context, input *ValidateRequest) (*ValidateResponse, error) {
	result, err := h.verifier.Validate(ctx, input.Body.Number, input.Body.CountryCode)
	if err != nil {
		switch {
		case errors.Is(err, verifier.ErrUnavailable):
			h.logger.Error("verification upstream unavailable", zap.Error(err))

			return nil, huma.Error502BadGateway("verification service unavailable")
		case errors.Is(err, verifier.ErrUpstreamDenied):
			h.logger.Error("verification upstream denied request", zap.Error(err))

			return nil, huma.Error503ServiceUnavailable("verification temporarily unavailable")
		default:
			return nil, huma.Error500InternalServerError("verification failed", err)
		}
	}

	lookupID := h.newLookupID()

	resp := &ValidateResponse{}
	resp.Body.LookupID = lookupID
	resp.Body.Valid = result.Valid
	resp.Body.Number = result.Number
	resp.Body.LocalFormat = result.LocalFormat
	resp.Body.InternationalFormat = result.InternationalFormat
	resp.Body.CountryCode = result.CountryCode
	resp.Body.CountryName = result.CountryName
	resp.Body.Location = result.Location
	resp.Body.Carrier = result.Carrier
	resp.Body.LineType = result.LineType

	meta, _ := RequestMetaFromContext(ctx)

	event := &analytics.LookupPerformedEvent{
		LookupID:      lookupID,
		Number:        result.Number,
		Valid:         result.Valid,
		CountryCode:   result.CountryCode,
		Carrier:       result.Carrier,
		LineType:      result.LineType,
		ClientIP:      meta.ClientIP,
		UserAgent:     meta.UserAgent,
		CorrelationID: uuid.NewString(),
		RequestedAt:   time.Now().UTC(),
	}
	if err := h.publishLookup(event); err != nil {
		// Analytics must never fail the lookup.
		h.logger.Error("failed to publish lookup event",
			zap.String("lookup_id", lookupID),
			zap.Error(err),
		)
	}

	h.logger.Info("lookup performed",
		zap.String("lookup_id", lookupID),
		zap.Bool("valid", result.Valid),
		zap.String("country_code", result.CountryCode),
	)

	return resp, nil
}
