package handlers

// ValidateRequest is the request body for validating a phone number.
type ValidateRequest struct {
	Body struct {
		Number      string `doc:"Phone number to validate"                example:"14158586273" json:"number"      minLength:"4"`
		CountryCode string `doc:"Two-letter country code for local input" example:"US"          json:"countryCode" maxLength:"2" required:"false"`
	}
}

// ValidateResponse is the response for a completed validation.
type ValidateResponse struct {
	Body struct {
		LookupID            string `doc:"Identifier for this lookup"      example:"V1StGXR8Z5jdHi6B" json:"lookupId"`
		Valid               bool   `doc:"Whether the number is valid"     json:"valid"`
		Number              string `doc:"The number as interpreted"       example:"14158586273"      json:"number"`
		LocalFormat         string `doc:"National format"                 example:"4158586273"       json:"localFormat,omitempty"`
		InternationalFormat string `doc:"E.164 format"                    example:"+14158586273"     json:"internationalFormat,omitempty"`
		CountryCode         string `doc:"ISO country code"                example:"US"               json:"countryCode,omitempty"`
		CountryName         string `doc:"Country name"                    json:"countryName,omitempty"`
		Location            string `doc:"Region or city if known"         json:"location,omitempty"`
		Carrier             string `doc:"Carrier name if known"           json:"carrier,omitempty"`
		LineType            string `doc:"Line type (mobile, landline...)" example:"mobile"           json:"lineType,omitempty"`
	}
}
