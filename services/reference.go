package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GeneratePaymentReference derives the reference a customer includes in their
// Slatepack transaction message: GRIN-<order_id>-<unix_seconds>. Deterministic
// for the same order and second; the timestamp component keeps retried
// checkouts of the same order from reusing an old reference.
func GeneratePaymentReference(orderID uuid.UUID, now time.Time) string {
	return fmt.Sprintf("GRIN-%s-%d", orderID, now.Unix())
}
