package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGeneratePaymentReference(t *testing.T) {
	orderID := uuid.New()
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	ref := GeneratePaymentReference(orderID, now)

	want := fmt.Sprintf("GRIN-%s-%d", orderID, now.Unix())
	if ref != want {
		t.Fatalf("expected reference %q, got %q", want, ref)
	}
}

func TestGeneratePaymentReference_DeterministicWithinSecond(t *testing.T) {
	orderID := uuid.New()
	now := time.Now()

	if GeneratePaymentReference(orderID, now) != GeneratePaymentReference(orderID, now) {
		t.Fatal("expected identical references for identical inputs")
	}
}
