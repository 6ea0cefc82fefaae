package testutil

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/escrow"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/listing"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/notification"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/outbox"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/payment"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/payout"
	"github.com/sfutchko/giddyapp-sub002/internal/infrastructure/postgres"
	"github.com/sfutchko/giddyapp-sub002/internal/infrastructure/providers"
)

// --- Listing Repository Mock ---

// MockListingRepository is an in-memory listing.Repository.
type MockListingRepository struct {
	mu       sync.Mutex
	listings map[uuid.UUID]*listing.Listing
	offers   map[uuid.UUID]*listing.Offer

	// Transactions, when set, keeps Reactivate from reopening a listing that
	// another live escrow transaction still holds.
	Transactions *MockTransactionRepository

	GetByIDFunc             func(ctx context.Context, id uuid.UUID) (*listing.Listing, error)
	GetOfferFunc            func(ctx context.Context, id uuid.UUID) (*listing.Offer, error)
	MarkSoldFunc            func(ctx context.Context, id uuid.UUID, soldPrice int64, soldAt time.Time) (bool, error)
	ReactivateFunc          func(ctx context.Context, id, refundedTxID uuid.UUID) (bool, error)
	RejectPendingOffersFunc func(ctx context.Context, listingID uuid.UUID, keep *uuid.UUID) (int64, error)
}

func NewMockListingRepository() *MockListingRepository {
	return &MockListingRepository{
		listings: make(map[uuid.UUID]*listing.Listing),
		offers:   make(map[uuid.UUID]*listing.Offer),
	}
}

// AddListing stores a copy of l.
func (m *MockListingRepository) AddListing(l *listing.Listing) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *l
	m.listings[l.ID] = &c
}

// AddOffer stores a copy of o.
func (m *MockListingRepository) AddOffer(o *listing.Offer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *o
	m.offers[o.ID] = &c
}

// Listing returns the stored listing (test helper, no context needed).
func (m *MockListingRepository) Listing(id uuid.UUID) *listing.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listings[id]
}

// Offer returns the stored offer (test helper, no context needed).
func (m *MockListingRepository) Offer(id uuid.UUID) *listing.Offer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offers[id]
}

func (m *MockListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*listing.Listing, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, domainErrors.ErrListingNotFound
	}
	c := *l
	return &c, nil
}

func (m *MockListingRepository) GetOffer(ctx context.Context, id uuid.UUID) (*listing.Offer, error) {
	if m.GetOfferFunc != nil {
		return m.GetOfferFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	if !ok {
		return nil, domainErrors.ErrInvalidOffer
	}
	c := *o
	return &c, nil
}

func (m *MockListingRepository) MarkSold(ctx context.Context, id uuid.UUID, soldPrice int64, soldAt time.Time) (bool, error) {
	if m.MarkSoldFunc != nil {
		return m.MarkSoldFunc(ctx, id, soldPrice, soldAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok || !l.AcceptsPayment() {
		return false, nil
	}
	l.Status = listing.StatusSold
	l.SoldPrice = &soldPrice
	l.SoldAt = &soldAt
	return true, nil
}

func (m *MockListingRepository) Reactivate(ctx context.Context, id, refundedTxID uuid.UUID) (bool, error) {
	if m.ReactivateFunc != nil {
		return m.ReactivateFunc(ctx, id, refundedTxID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok || l.Status != listing.StatusSold {
		return false, nil
	}
	if m.Transactions != nil && m.Transactions.HoldsListing(id, refundedTxID) {
		return false, nil
	}
	l.Status = listing.StatusActive
	l.SoldPrice = nil
	l.SoldAt = nil
	return true, nil
}

func (m *MockListingRepository) RejectPendingOffers(ctx context.Context, listingID uuid.UUID, keep *uuid.UUID) (int64, error) {
	if m.RejectPendingOffersFunc != nil {
		return m.RejectPendingOffersFunc(ctx, listingID, keep)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, o := range m.offers {
		if o.ListingID != listingID || o.Status != listing.OfferPending {
			continue
		}
		if keep != nil && o.ID == *keep {
			continue
		}
		o.Status = listing.OfferRejected
		n++
	}
	return n, nil
}

// --- Payout Account Repository Mock ---

// MockPayoutRepository is an in-memory payout.Repository.
type MockPayoutRepository struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*payout.Account

	GetByUserIDFunc        func(ctx context.Context, userID uuid.UUID) (*payout.Account, error)
	UpdateCapabilitiesFunc func(ctx context.Context, externalAccountID string, caps payout.Capabilities) error
}

func NewMockPayoutRepository() *MockPayoutRepository {
	return &MockPayoutRepository{accounts: make(map[uuid.UUID]*payout.Account)}
}

func (m *MockPayoutRepository) AddAccount(a *payout.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *a
	m.accounts[a.UserID] = &c
}

// Account returns the stored account (test helper, no context needed).
func (m *MockPayoutRepository) Account(userID uuid.UUID) *payout.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[userID]
}

func (m *MockPayoutRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*payout.Account, error) {
	if m.GetByUserIDFunc != nil {
		return m.GetByUserIDFunc(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return nil, domainErrors.ErrPayoutAccountMissing
	}
	c := *a
	return &c, nil
}

func (m *MockPayoutRepository) UpdateCapabilities(ctx context.Context, externalAccountID string, caps payout.Capabilities) error {
	if m.UpdateCapabilitiesFunc != nil {
		return m.UpdateCapabilitiesFunc(ctx, externalAccountID, caps)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.ExternalAccountID == externalAccountID {
			a.Capabilities = caps
			return nil
		}
	}
	return domainErrors.ErrPayoutAccountMissing
}

// --- Payment Intent Repository Mock ---

// MockIntentRepository is an in-memory payment.Repository.
type MockIntentRepository struct {
	mu      sync.Mutex
	records map[string]*payment.IntentRecord

	CreateFunc          func(ctx context.Context, rec *payment.IntentRecord) error
	GetByExternalIDFunc func(ctx context.Context, externalID string) (*payment.IntentRecord, error)
	UpdateStatusFunc    func(ctx context.Context, externalID string, status payment.IntentStatus) error
	UpsertFunc          func(ctx context.Context, rec *payment.IntentRecord) error
}

func NewMockIntentRepository() *MockIntentRepository {
	return &MockIntentRepository{records: make(map[string]*payment.IntentRecord)}
}

// Record returns the stored record (test helper, no context needed).
func (m *MockIntentRepository) Record(externalID string) *payment.IntentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[externalID]
}

func (m *MockIntentRepository) Create(ctx context.Context, rec *payment.IntentRecord) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.ExternalID]; ok {
		return domainErrors.ErrDuplicateIntent
	}
	c := *rec
	m.records[rec.ExternalID] = &c
	return nil
}

func (m *MockIntentRepository) GetByExternalID(ctx context.Context, externalID string) (*payment.IntentRecord, error) {
	if m.GetByExternalIDFunc != nil {
		return m.GetByExternalIDFunc(ctx, externalID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[externalID]
	if !ok {
		return nil, domainErrors.ErrIntentNotFound
	}
	c := *rec
	return &c, nil
}

func (m *MockIntentRepository) UpdateStatus(ctx context.Context, externalID string, status payment.IntentStatus) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, externalID, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[externalID]
	if !ok {
		return domainErrors.ErrIntentNotFound
	}
	rec.Status = status
	return nil
}

func (m *MockIntentRepository) Upsert(ctx context.Context, rec *payment.IntentRecord) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.records[rec.ExternalID]; ok {
		existing.Status = rec.Status
		existing.UpdatedAt = rec.UpdatedAt
		return nil
	}
	c := *rec
	m.records[rec.ExternalID] = &c
	return nil
}

// --- Transaction Repository Mock ---

// MockTransactionRepository is an in-memory escrow.Repository.
type MockTransactionRepository struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*escrow.Transaction
	byIntent map[string]uuid.UUID
	events   map[uuid.UUID][]*escrow.Event

	CreateFunc                      func(ctx context.Context, tx *escrow.Transaction) (bool, error)
	GetByIDFunc                     func(ctx context.Context, id uuid.UUID) (*escrow.Transaction, error)
	GetByPaymentIntentForUpdateFunc func(ctx context.Context, intentID string) (*escrow.Transaction, error)
	ExistsForOfferFunc              func(ctx context.Context, offerID uuid.UUID) (bool, error)
	UpdateRefundFunc                func(ctx context.Context, tx *escrow.Transaction) error
	AddEventFunc                    func(ctx context.Context, ev *escrow.Event) error
	GetEventsFunc                   func(ctx context.Context, txID uuid.UUID) ([]*escrow.Event, error)
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		byID:     make(map[uuid.UUID]*escrow.Transaction),
		byIntent: make(map[string]uuid.UUID),
		events:   make(map[uuid.UUID][]*escrow.Event),
	}
}

// All returns every stored transaction (test helper).
func (m *MockTransactionRepository) All() []*escrow.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*escrow.Transaction, 0, len(m.byID))
	for _, tx := range m.byID {
		c := *tx
		out = append(out, &c)
	}
	return out
}

// ByIntent returns the stored transaction for an intent (test helper).
func (m *MockTransactionRepository) ByIntent(intentID string) *escrow.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byIntent[intentID]
	if !ok {
		return nil
	}
	c := *m.byID[id]
	return &c
}

// Events returns the audit trail (test helper).
func (m *MockTransactionRepository) Events(txID uuid.UUID) []*escrow.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*escrow.Event(nil), m.events[txID]...)
}

// HoldsListing reports whether a transaction other than except still holds
// funds for the listing.
func (m *MockTransactionRepository) HoldsListing(listingID, except uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.byID {
		if tx.ListingID != listingID || tx.ID == except {
			continue
		}
		if tx.Status == escrow.StatusPaymentHeld || tx.Status == escrow.StatusPartiallyRefunded {
			return true
		}
	}
	return false
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *escrow.Transaction) (bool, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byIntent[tx.PaymentIntentID]; ok {
		return false, nil
	}
	if tx.OfferID != nil {
		for _, existing := range m.byID {
			if existing.OfferID != nil && *existing.OfferID == *tx.OfferID {
				return false, domainErrors.ErrOfferAlreadyPaid
			}
		}
	}
	c := *tx
	m.byID[tx.ID] = &c
	m.byIntent[tx.PaymentIntentID] = tx.ID
	return true, nil
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*escrow.Transaction, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.byID[id]
	if !ok {
		return nil, domainErrors.ErrTransactionNotFound
	}
	c := *tx
	return &c, nil
}

func (m *MockTransactionRepository) GetByPaymentIntentForUpdate(ctx context.Context, intentID string) (*escrow.Transaction, error) {
	if m.GetByPaymentIntentForUpdateFunc != nil {
		return m.GetByPaymentIntentForUpdateFunc(ctx, intentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byIntent[intentID]
	if !ok {
		return nil, domainErrors.ErrTransactionNotFound
	}
	c := *m.byID[id]
	return &c, nil
}

func (m *MockTransactionRepository) ExistsForOffer(ctx context.Context, offerID uuid.UUID) (bool, error) {
	if m.ExistsForOfferFunc != nil {
		return m.ExistsForOfferFunc(ctx, offerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.byID {
		if tx.OfferID != nil && *tx.OfferID == offerID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockTransactionRepository) UpdateRefund(ctx context.Context, tx *escrow.Transaction) error {
	if m.UpdateRefundFunc != nil {
		return m.UpdateRefundFunc(ctx, tx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[tx.ID]
	if !ok {
		return domainErrors.ErrTransactionNotFound
	}
	stored.Status = tx.Status
	stored.RefundedCents = tx.RefundedCents
	stored.UpdatedAt = tx.UpdatedAt
	return nil
}

func (m *MockTransactionRepository) AddEvent(ctx context.Context, ev *escrow.Event) error {
	if m.AddEventFunc != nil {
		return m.AddEventFunc(ctx, ev)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[ev.TransactionID] = append(m.events[ev.TransactionID], ev)
	return nil
}

func (m *MockTransactionRepository) GetEvents(ctx context.Context, txID uuid.UUID) ([]*escrow.Event, error) {
	if m.GetEventsFunc != nil {
		return m.GetEventsFunc(ctx, txID)
	}
	return m.Events(txID), nil
}

// --- Notification Repository Mock ---

// MockNotificationRepository records inserted notifications.
type MockNotificationRepository struct {
	mu            sync.Mutex
	notifications []*notification.Notification

	InsertFunc func(ctx context.Context, ns ...*notification.Notification) error
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{}
}

func (m *MockNotificationRepository) Insert(ctx context.Context, ns ...*notification.Notification) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, ns...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, ns...)
	return nil
}

// All returns every inserted notification (test helper).
func (m *MockNotificationRepository) All() []*notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*notification.Notification(nil), m.notifications...)
}

// --- Transaction Manager Mock ---

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Outbox Repository Mock ---

// MockOutboxRepository is an in-memory outbox.Repository.
type MockOutboxRepository struct {
	mu      sync.Mutex
	entries []*outbox.Entry

	InsertFunc        func(ctx context.Context, entry *outbox.Entry) error
	GetPendingFunc    func(ctx context.Context, aggregateType string, limit int) ([]*outbox.Entry, error)
	MarkPublishedFunc func(ctx context.Context, id uuid.UUID) error
	MarkFailedFunc    func(ctx context.Context, id uuid.UUID) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

// Entries returns every inserted entry (test helper).
func (m *MockOutboxRepository) Entries() []*outbox.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*outbox.Entry(nil), m.entries...)
}

func (m *MockOutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, aggregateType string, limit int) ([]*outbox.Entry, error) {
	if m.GetPendingFunc != nil {
		return m.GetPendingFunc(ctx, aggregateType, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*outbox.Entry
	blocked := make(map[uuid.UUID]bool)
	for _, e := range m.entries {
		if e.Status != outbox.StatusPending || e.AggregateType != aggregateType {
			continue
		}
		if !blocked[e.AggregateID] && len(out) < limit {
			out = append(out, e)
		}
		blocked[e.AggregateID] = true
	}
	return out, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			now := time.Now()
			e.Status = outbox.StatusPublished
			e.PublishedAt = &now
		}
	}
	return nil
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			e.RetryCount++
			if e.Exhausted() {
				e.Status = outbox.StatusFailed
			}
		}
	}
	return nil
}

// --- Locker Mock ---

// MockLocker is a process-local per-key lock.
type MockLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	keys  []string

	LockFunc func(ctx context.Context, intentID string) (func(context.Context) error, error)
}

func NewMockLocker() *MockLocker {
	return &MockLocker{locks: make(map[string]*sync.Mutex)}
}

func (m *MockLocker) Lock(ctx context.Context, intentID string) (func(context.Context) error, error) {
	if m.LockFunc != nil {
		return m.LockFunc(ctx, intentID)
	}
	m.mu.Lock()
	l, ok := m.locks[intentID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[intentID] = l
	}
	m.keys = append(m.keys, intentID)
	m.mu.Unlock()

	l.Lock()
	return func(context.Context) error {
		l.Unlock()
		return nil
	}, nil
}

// Keys returns every key locked so far, in order.
func (m *MockLocker) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.keys...)
}

// --- Webhook Event Log Mock ---

// MockEventLog records webhook deliveries and their results.
type MockEventLog struct {
	mu       sync.Mutex
	Received map[string]int
	Results  map[string]error
}

func NewMockEventLog() *MockEventLog {
	return &MockEventLog{Received: make(map[string]int), Results: make(map[string]error)}
}

func (m *MockEventLog) RecordReceived(_ context.Context, eventID, _, _ string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Received[eventID]++
	return nil
}

func (m *MockEventLog) RecordResult(_ context.Context, eventID string, _ time.Time, procErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Results[eventID] = procErr
	return nil
}

// --- Intent Creator Mock ---

// MockIntentCreator returns deterministic intents pi_test_<n>.
type MockIntentCreator struct {
	mu       sync.Mutex
	Requests []providers.CreateIntentRequest

	CreatePaymentIntentFunc func(ctx context.Context, req providers.CreateIntentRequest) (*providers.Intent, error)
}

func (m *MockIntentCreator) CreatePaymentIntent(ctx context.Context, req providers.CreateIntentRequest) (*providers.Intent, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	n := len(m.Requests)
	m.mu.Unlock()

	if m.CreatePaymentIntentFunc != nil {
		return m.CreatePaymentIntentFunc(ctx, req)
	}
	id := "pi_test_" + strconv.Itoa(n)
	return &providers.Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       string(payment.StatusRequiresPaymentMethod),
		AmountCents:  req.AmountCents,
		Currency:     req.Currency,
	}, nil
}

// --- Idempotency Store Mock ---

// MockIdempotencyStore keeps stored responses in memory.
type MockIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]*postgres.IdempotencyEntry
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{entries: make(map[string]*postgres.IdempotencyEntry)}
}

func (m *MockIdempotencyStore) Get(_ context.Context, key string) (*postgres.IdempotencyEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[key], nil
}

func (m *MockIdempotencyStore) Set(_ context.Context, e *postgres.IdempotencyEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.Key] = e
	return nil
}

func (m *MockIdempotencyStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
