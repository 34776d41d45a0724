package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"grin-gateway/apperrors"
	"grin-gateway/config"
)

func TestGetRate_ManualSource(t *testing.T) {
	svc := NewExchangeRateService(config.RateSourceManual, decimal.RequireFromString("1.25"), "usd", "", nil, zap.NewNop())

	rate, err := svc.GetRate(context.Background())
	if err != nil {
		t.Fatalf("GetRate returned error: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("1.25")) {
		t.Fatalf("expected rate 1.25, got %s", rate)
	}
}

func TestGetRate_ManualSourceWithoutRate(t *testing.T) {
	svc := NewExchangeRateService(config.RateSourceManual, decimal.Zero, "usd", "", nil, zap.NewNop())

	_, err := svc.GetRate(context.Background())
	if err == nil {
		t.Fatal("expected configuration error for zero manual rate")
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Message != apperrors.ErrRateConfig.Message {
		t.Fatalf("expected rate config error, got %v", err)
	}
}

func TestGetRate_CoinGeckoSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("vs_currencies"); got != "usd" {
			t.Errorf("expected vs_currencies=usd, got %q", got)
		}
		w.Write([]byte(`{"grin":{"usd":0.05}}`))
	}))
	defer server.Close()

	svc := NewExchangeRateService(config.RateSourceCoinGecko, decimal.RequireFromString("2"), "usd", server.URL, nil, zap.NewNop())

	rate, err := svc.GetRate(context.Background())
	if err != nil {
		t.Fatalf("GetRate returned error: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("0.05")) {
		t.Fatalf("expected fetched rate 0.05, got %s", rate)
	}
}

func TestGetRate_FallsBackOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	core, logs := observer.New(zap.WarnLevel)
	svc := NewExchangeRateService(config.RateSourceCoinGecko, decimal.RequireFromString("2.0"), "usd", server.URL, nil, zap.New(core))

	rate, err := svc.GetRate(context.Background())
	if err != nil {
		t.Fatalf("expected fallback to manual rate, got error: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("2.0")) {
		t.Fatalf("expected manual fallback rate 2.0, got %s", rate)
	}
	if logs.FilterMessage("Exchange rate fetch failed, falling back to manual rate").Len() != 1 {
		t.Fatal("expected a fallback warning to be logged")
	}
}

func TestGetRate_FallsBackOnMissingPair(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	svc := NewExchangeRateService(config.RateSourceCoinGecko, decimal.RequireFromString("3"), "usd", server.URL, nil, zap.NewNop())

	rate, err := svc.GetRate(context.Background())
	if err != nil {
		t.Fatalf("expected fallback to manual rate, got error: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("3")) {
		t.Fatalf("expected manual fallback rate 3, got %s", rate)
	}
}

func TestGetRate_NoFallbackConfigured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	svc := NewExchangeRateService(config.RateSourceCoinGecko, decimal.Zero, "usd", server.URL, nil, zap.NewNop())

	_, err := svc.GetRate(context.Background())
	if err == nil {
		t.Fatal("expected error when quote fails and no manual fallback exists")
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Message != apperrors.ErrRateConfig.Message {
		t.Fatalf("expected rate config error, got %v", err)
	}
}
