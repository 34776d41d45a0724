package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"grin-gateway/apperrors"
	"grin-gateway/config"
)

// DefaultQuoteBaseURL is the CoinGecko simple-price endpoint.
const DefaultQuoteBaseURL = "https://api.coingecko.com/api/v3/simple/price"

const rateCacheTTL = 30 * time.Second

// ExchangeRateService resolves the current GRIN/fiat rate from either the
// manual configuration value or CoinGecko. Quote fetch failures fall back to
// the manual rate; the call only errors when no usable fallback exists.
type ExchangeRateService struct {
	source       string
	manualRate   decimal.Decimal
	currency     string
	quoteBaseURL string
	httpClient   *http.Client
	cache        *redis.Client // optional; nil disables caching
	logger       *zap.Logger
}

func NewExchangeRateService(source string, manualRate decimal.Decimal, currency, quoteBaseURL string, cache *redis.Client, logger *zap.Logger) *ExchangeRateService {
	if quoteBaseURL == "" {
		quoteBaseURL = DefaultQuoteBaseURL
	}
	return &ExchangeRateService{
		source:       source,
		manualRate:   manualRate,
		currency:     currency,
		quoteBaseURL: quoteBaseURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		cache:        cache,
		logger:       logger,
	}
}

// GetRate returns a positive GRIN/fiat rate or apperrors.ErrRateConfig.
func (s *ExchangeRateService) GetRate(ctx context.Context) (decimal.Decimal, error) {
	if s.source == config.RateSourceManual {
		return s.manualFallback(nil)
	}

	if rate, ok := s.cachedRate(ctx); ok {
		return rate, nil
	}

	rate, err := s.fetchQuote(ctx)
	if err != nil {
		s.logger.Warn("Exchange rate fetch failed, falling back to manual rate",
			zap.String("currency", s.currency), zap.Error(err))
		return s.manualFallback(err)
	}

	s.storeCachedRate(ctx, rate)
	return rate, nil
}

func (s *ExchangeRateService) manualFallback(cause error) (decimal.Decimal, error) {
	if s.manualRate.IsPositive() {
		return s.manualRate, nil
	}
	return decimal.Zero, apperrors.Wrap(apperrors.ErrRateConfig, cause)
}

func (s *ExchangeRateService) fetchQuote(ctx context.Context) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s?ids=grin&vs_currencies=%s", s.quoteBaseURL, s.currency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("quote source returned status %d", resp.StatusCode)
	}

	// Response shape: {"grin":{"usd":0.0312}}
	var body map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("malformed quote response: %w", err)
	}

	rate, ok := body["grin"][s.currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("quote response missing grin/%s pair", s.currency)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("quote source returned non-positive rate %s", rate)
	}
	return rate, nil
}

func (s *ExchangeRateService) cacheKey() string {
	return "grin-gateway:rate:" + s.currency
}

func (s *ExchangeRateService) cachedRate(ctx context.Context) (decimal.Decimal, bool) {
	if s.cache == nil {
		return decimal.Zero, false
	}
	val, err := s.cache.Get(ctx, s.cacheKey()).Result()
	if err != nil {
		return decimal.Zero, false
	}
	rate, err := decimal.NewFromString(val)
	if err != nil || !rate.IsPositive() {
		return decimal.Zero, false
	}
	return rate, true
}

func (s *ExchangeRateService) storeCachedRate(ctx context.Context, rate decimal.Decimal) {
	if s.cache == nil {
		return
	}
	// TTL stays under the client polling interval so refreshed amounts track
	// the live rate within one poll.
	if err := s.cache.Set(ctx, s.cacheKey(), rate.String(), rateCacheTTL).Err(); err != nil {
		s.logger.Debug("Failed to cache exchange rate", zap.Error(err))
	}
}
