package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentVerifier answers whether a GRIN payment matching a reference and
// expected amount has been received. Implementations must be side-effect-free
// queries; the reconciler calls them repeatedly for the same order.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, reference string, expectedAmount decimal.Decimal) (bool, error)
}

// HTTPVerifier queries a GRIN node helper service over HTTP. The helper owns
// the actual wallet/Slatepack inspection; this client only forwards the
// reference and expected amount and reads back a verdict.
type HTTPVerifier struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewHTTPVerifier(baseURL, apiKey string, logger *zap.Logger) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

func (v *HTTPVerifier) VerifyPayment(ctx context.Context, reference string, expectedAmount decimal.Decimal) (bool, error) {
	endpoint := fmt.Sprintf("%s/v1/payments/verify?reference=%s&amount=%s",
		v.baseURL, url.QueryEscape(reference), expectedAmount.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	if v.apiKey != "" {
		req.Header.Set("X-Api-Key", v.apiKey)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("verifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("verifier returned status %d", resp.StatusCode)
	}

	var body struct {
		Verified bool `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("malformed verifier response: %w", err)
	}

	return body.Verified, nil
}
