package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"grin-gateway/models"
)

var errNodeDown = errors.New("grin node unreachable")

// fakeOrderRepo is an in-memory repository.OrderRepository.
type fakeOrderRepo struct {
	mu         sync.Mutex
	orders     map[uuid.UUID]*models.Order
	meta       map[uuid.UUID]map[string]string
	notes      map[uuid.UUID][]string
	metaWrites int
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders: make(map[uuid.UUID]*models.Order),
		meta:   make(map[uuid.UUID]map[string]string),
		notes:  make(map[uuid.UUID][]string),
	}
}

func (f *fakeOrderRepo) addOrder(total string, status string, createdAt time.Time) *models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-" + uuid.NewString()[:8],
		UserID:        uuid.New(),
		Total:         decimal.RequireFromString(total),
		Currency:      "usd",
		Status:        status,
		PaymentMethod: models.PaymentMethodGrin,
		CreatedAt:     createdAt,
	}
	f.orders[order.ID] = order
	return order
}

func (f *fakeOrderRepo) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (f *fakeOrderRepo) FindPendingGrinOrders(ctx context.Context, since, until time.Time) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, order := range f.orders {
		if order.Status != models.StatusPending || order.PaymentMethod != models.PaymentMethodGrin {
			continue
		}
		if order.CreatedAt.Before(since) || order.CreatedAt.After(until) {
			continue
		}
		out = append(out, *order)
	}
	return out, nil
}

func (f *fakeOrderRepo) FindGrinOrders(ctx context.Context, page, limit int) ([]models.Order, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, order := range f.orders {
		if order.PaymentMethod == models.PaymentMethodGrin {
			out = append(out, *order)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeOrderRepo) SetPaymentMeta(ctx context.Context, orderID uuid.UUID, reference, grinAmount string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.meta[orderID] == nil {
		f.meta[orderID] = make(map[string]string)
	}
	f.meta[orderID][models.MetaPaymentReference] = reference
	f.meta[orderID][models.MetaGrinAmount] = grinAmount
	f.metaWrites++
	return nil
}

func (f *fakeOrderRepo) SetMetaValue(ctx context.Context, orderID uuid.UUID, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.meta[orderID] == nil {
		f.meta[orderID] = make(map[string]string)
	}
	f.meta[orderID][key] = value
	f.metaWrites++
	return nil
}

func (f *fakeOrderRepo) GetMeta(ctx context.Context, orderID uuid.UUID) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.meta[orderID]))
	for k, v := range f.meta[orderID] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeOrderRepo) MarkPending(ctx context.Context, orderID uuid.UUID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	order.Status = models.StatusPending
	order.PaymentMethod = models.PaymentMethodGrin
	f.notes[orderID] = append(f.notes[orderID], reason)
	return nil
}

func (f *fakeOrderRepo) CompleteOrder(ctx context.Context, orderID uuid.UUID, note string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if order.Status != models.StatusPending {
		return false, nil
	}
	order.Status = models.StatusCompleted
	now := time.Now()
	order.CompletedAt = &now
	f.notes[orderID] = append(f.notes[orderID], note)
	return true, nil
}

func (f *fakeOrderRepo) AddNote(ctx context.Context, orderID uuid.UUID, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes[orderID] = append(f.notes[orderID], note)
	return nil
}

func (f *fakeOrderRepo) noteCount(orderID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notes[orderID])
}

func (f *fakeOrderRepo) status(orderID uuid.UUID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[orderID].Status
}

// fixedRate is a RateProvider returning a constant rate or error.
type fixedRate struct {
	rate decimal.Decimal
	err  error
}

func (f fixedRate) GetRate(ctx context.Context) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.rate, nil
}

// fakeVerifier records which references it was asked about.
type fakeVerifier struct {
	mu       sync.Mutex
	verdicts map[uuid.UUID]bool // keyed by order id embedded in the reference
	err      error
	errFor   map[uuid.UUID]bool
	calls    []string
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{verdicts: make(map[uuid.UUID]bool), errFor: make(map[uuid.UUID]bool)}
}

func (f *fakeVerifier) VerifyPayment(ctx context.Context, reference string, expectedAmount decimal.Decimal) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, reference)
	if f.err != nil {
		return false, f.err
	}
	for orderID, fail := range f.errFor {
		if fail && containsID(reference, orderID) {
			return false, errNodeDown
		}
	}
	for orderID, verdict := range f.verdicts {
		if containsID(reference, orderID) {
			return verdict, nil
		}
	}
	return false, nil
}

func (f *fakeVerifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func containsID(reference string, orderID uuid.UUID) bool {
	return len(reference) > len(orderID.String()) &&
		reference[5:5+len(orderID.String())] == orderID.String()
}

// fakeProducer records published events.
type fakeProducer struct {
	mu            sync.Mutex
	paymentEvents []models.PaymentEvent
	cartClears    []models.CartClearEvent
	sendErr       error
}

func (f *fakeProducer) SendPaymentEvent(evt models.PaymentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.paymentEvents = append(f.paymentEvents, evt)
	return nil
}

func (f *fakeProducer) SendCartClear(evt models.CartClearEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.cartClears = append(f.cartClears, evt)
	return nil
}

func (f *fakeProducer) Close() error { return nil }
