// Package verifier calls the upstream phone-number verification service.
package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrUnavailable means the upstream could not be reached or answered
	// with a server error. The caller should respond 502.
	ErrUnavailable = errors.New("verifier: upstream unavailable")

	// ErrUpstreamDenied means the upstream rejected our credentials or
	// quota. The caller should respond 503; retrying will not help until
	// the account is fixed.
	ErrUpstreamDenied = errors.New("verifier: upstream denied request")
)

// Result is the validation outcome for one phone number.
type Result struct {
	Valid               bool   `json:"valid"`
	Number              string `json:"number"`
	LocalFormat         string `json:"local_format"`
	InternationalFormat string `json:"international_format"`
	CountryCode         string `json:"country_code"`
	CountryName         string `json:"country_name"`
	Location            string `json:"location"`
	Carrier             string `json:"carrier"`
	LineType            string `json:"line_type"`
}

// upstreamError is the error envelope the verification API returns with
// a 200 status when the request itself was unacceptable.
type upstreamEnvelope struct {
	Result
	Success *bool `json:"success,omitempty"`
	Error   struct {
		Code int    `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// Client calls the phone verification API. An outbound guard caps the
// request rate so a traffic burst on our side cannot burn the upstream
// quota.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	guard   *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a verification client. rps caps outbound calls per
// second; zero or negative disables the guard.
func NewClient(baseURL, apiKey string, rps float64, logger *zap.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 32,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout: 5 * time.Second,
		}).DialContext,
	}

	var guard *rate.Limiter
	if rps > 0 {
		guard = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   10 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
		guard:   guard,
		logger:  logger,
	}
}

// Validate checks one phone number against the upstream service.
func (c *Client) Validate(ctx context.Context, number, countryCode string) (*Result, error) {
	if c.guard != nil {
		if err := c.guard.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: outbound guard: %w", ErrUnavailable, err)
		}
	}

	query := url.Values{}
	query.Set("access_key", c.apiKey)
	query.Set("number", number)

	if countryCode != "" {
		query.Set("country_code", countryCode)
	}

	endpoint := c.baseURL + "/v1/validate?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("upstream request failed", zap.Error(err))

		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("upstream responded",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamDenied, resp.StatusCode)
	}

	var envelope upstreamEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}

	// The API reports auth and quota problems inside a 200 body.
	if envelope.Success != nil && !*envelope.Success {
		c.logger.Warn("upstream denied request",
			zap.Int("code", envelope.Error.Code),
			zap.String("info", envelope.Error.Info),
		)

		return nil, fmt.Errorf("%w: code %d", ErrUpstreamDenied, envelope.Error.Code)
	}

	result := envelope.Result

	return &result, nil
}
