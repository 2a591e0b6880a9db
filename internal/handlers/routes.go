package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// RegisterRoutes registers the phone validation routes.
func RegisterRoutes(api huma.API, validate *ValidateHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "validate-phone-number",
		Method:      http.MethodPost,
		Path:        "/validate",
		Summary:     "Validate phone number",
		Description: "Validates a phone number against the upstream verification service " +
			"and returns carrier and format details.",
		Tags: []string{"Validation"},
	}, validate.Validate)
}
