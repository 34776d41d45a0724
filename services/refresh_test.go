package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"grin-gateway/apperrors"
	"grin-gateway/config"
	"grin-gateway/models"
)

func TestRefreshAmount_RecomputesStoredAmount(t *testing.T) {
	repo := newFakeOrderRepo()
	order := repo.addOrder("100.00", models.StatusPending, time.Now())
	svc := NewRateRefreshService(repo, fixedRate{rate: decimal.RequireFromString("1.25")}, zap.NewNop())

	got, err := svc.RefreshAmount(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("RefreshAmount returned error: %v", err)
	}
	if got != "80.00000000" {
		t.Fatalf("expected 80.00000000, got %s", got)
	}

	meta, _ := repo.GetMeta(context.Background(), order.ID)
	stored := decimal.RequireFromString(meta[models.MetaGrinAmount])
	if stored.StringFixed(8) != "80.00000000" {
		t.Fatalf("expected stored amount 80.00000000, got %s", stored.StringFixed(8))
	}
}

func TestRefreshAmount_UnknownOrderWritesNothing(t *testing.T) {
	repo := newFakeOrderRepo()
	svc := NewRateRefreshService(repo, fixedRate{rate: decimal.New(1, 0)}, zap.NewNop())

	_, err := svc.RefreshAmount(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected error for unknown order")
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrOrderNotFound.Code {
		t.Fatalf("expected order-not-found error, got %v", err)
	}
	if repo.metaWrites != 0 {
		t.Fatalf("no metadata may be written for unknown orders, got %d writes", repo.metaWrites)
	}
}

func TestRefreshAmount_UsesManualFallbackWhenQuoteFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	core, logs := observer.New(zap.WarnLevel)
	rates := NewExchangeRateService(config.RateSourceCoinGecko, decimal.RequireFromString("2.0"), "usd", server.URL, nil, zap.New(core))

	repo := newFakeOrderRepo()
	order := repo.addOrder("50", models.StatusPending, time.Now())
	svc := NewRateRefreshService(repo, rates, zap.NewNop())

	got, err := svc.RefreshAmount(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("expected fallback refresh to succeed, got %v", err)
	}
	if got != "25.00000000" {
		t.Fatalf("expected 25.00000000 from manual fallback, got %s", got)
	}
	if logs.FilterMessage("Exchange rate fetch failed, falling back to manual rate").Len() != 1 {
		t.Fatal("expected a fallback warning to be logged")
	}
}
