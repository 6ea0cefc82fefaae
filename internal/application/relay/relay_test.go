package relay_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfutchko/giddyapp-sub002/internal/application/relay"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/outbox"
	"github.com/sfutchko/giddyapp-sub002/internal/infrastructure/observability"
	"github.com/sfutchko/giddyapp-sub002/internal/testutil"
	"github.com/sfutchko/giddyapp-sub002/pkg/retry"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []*outbox.Entry
	calls     int
	failFor   map[uuid.UUID]bool
}

func (p *recordingPublisher) Publish(_ context.Context, entry *outbox.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failFor[entry.ID] {
		return errors.New("stream unavailable")
	}
	p.published = append(p.published, entry)
	return nil
}

func newRelay(repo outbox.Repository, pub relay.Publisher) *relay.OutboxRelay {
	return relay.NewOutboxRelay(repo, testutil.NewMockTransactionManager(), pub, 10,
		observability.NewNopMetrics(), zerolog.Nop()).
		WithRetry(retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond})
}

func TestRunOnce_PublishesPending(t *testing.T) {
	repo := testutil.NewMockOutboxRepository()
	txID := uuid.New()
	held := outbox.NewEntry(outbox.AggregateTransaction, txID, outbox.EventPaymentHeld, map[string]any{"amount": 100}, testutil.FixedNow)
	refunded := outbox.NewEntry(outbox.AggregateTransaction, txID, outbox.EventRefunded, nil, testutil.FixedNow)
	other := outbox.NewEntry(outbox.AggregateTransaction, uuid.New(), outbox.EventPaymentHeld, nil, testutil.FixedNow)
	for _, e := range []*outbox.Entry{held, refunded, other} {
		require.NoError(t, repo.Insert(context.Background(), e))
	}

	pub := &recordingPublisher{}
	stats, err := newRelay(repo, pub).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, relay.Stats{Published: 2}, stats, "one entry per transaction per pass")
	require.Len(t, pub.published, 2)
	assert.Equal(t, held.ID, pub.published[0].ID)
	assert.Equal(t, other.ID, pub.published[1].ID)

	stats, err = newRelay(repo, pub).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, relay.Stats{Published: 1}, stats)
	require.Len(t, pub.published, 3)
	assert.Equal(t, refunded.ID, pub.published[2].ID)

	for _, e := range repo.Entries() {
		assert.Equal(t, outbox.StatusPublished, e.Status)
		assert.NotNil(t, e.PublishedAt)
	}

	stats, err = newRelay(repo, pub).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, relay.Stats{}, stats)
}

func TestRunOnce_FailingEntryHoldsBackItsTransaction(t *testing.T) {
	repo := testutil.NewMockOutboxRepository()
	stuckTx, okTx := uuid.New(), uuid.New()
	stuck := outbox.NewEntry(outbox.AggregateTransaction, stuckTx, outbox.EventPaymentHeld, nil, testutil.FixedNow)
	stuck.MaxRetries = 2
	later := outbox.NewEntry(outbox.AggregateTransaction, stuckTx, outbox.EventRefunded, nil, testutil.FixedNow)
	ok := outbox.NewEntry(outbox.AggregateTransaction, okTx, outbox.EventPaymentHeld, nil, testutil.FixedNow)
	foreign := outbox.NewEntry("listing", uuid.New(), "listing.updated", nil, testutil.FixedNow)
	for _, e := range []*outbox.Entry{stuck, later, ok, foreign} {
		require.NoError(t, repo.Insert(context.Background(), e))
	}
	pub := &recordingPublisher{failFor: map[uuid.UUID]bool{stuck.ID: true}}
	r := newRelay(repo, pub)

	tests := []struct {
		name      string
		want      relay.Stats
		published []uuid.UUID
	}{
		{"failure blocks the later refund", relay.Stats{Published: 1, Failed: 1}, []uuid.UUID{ok.ID}},
		{"head exhausts its retries", relay.Stats{Failed: 1}, []uuid.UUID{ok.ID}},
		{"later entry is released", relay.Stats{Published: 1}, []uuid.UUID{ok.ID, later.ID}},
	}
	for _, tt := range tests {
		stats, err := r.RunOnce(context.Background())
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, stats, tt.name)

		var got []uuid.UUID
		for _, e := range pub.published {
			got = append(got, e.ID)
		}
		assert.Equal(t, tt.published, got, tt.name)
	}

	for _, e := range repo.Entries() {
		if e.ID == foreign.ID {
			assert.Equal(t, outbox.StatusPending, e.Status, "other aggregate types are left alone")
		}
	}
}

func TestRunOnce_FailedPublishIsRetriedLater(t *testing.T) {
	repo := testutil.NewMockOutboxRepository()
	entry := outbox.NewEntry(outbox.AggregateTransaction, uuid.New(), outbox.EventPaymentHeld, nil, testutil.FixedNow)
	entry.MaxRetries = 2
	require.NoError(t, repo.Insert(context.Background(), entry))

	pub := &recordingPublisher{failFor: map[uuid.UUID]bool{entry.ID: true}}
	r := newRelay(repo, pub)

	stats, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, relay.Stats{Failed: 1}, stats)
	assert.Equal(t, 2, pub.calls, "publish is retried within a pass")
	assert.Equal(t, outbox.StatusPending, repo.Entries()[0].Status)

	_, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	got := repo.Entries()[0]
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, outbox.StatusFailed, got.Status)

	stats, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, relay.Stats{}, stats, "exhausted entries are not picked up again")
}

func TestRunOnce_RepositoryError(t *testing.T) {
	repo := testutil.NewMockOutboxRepository()
	repo.GetPendingFunc = func(context.Context, string, int) ([]*outbox.Entry, error) {
		return nil, errors.New("db down")
	}

	_, err := newRelay(repo, &recordingPublisher{}).RunOnce(context.Background())
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- newRelay(testutil.NewMockOutboxRepository(), &recordingPublisher{}).Run(ctx, 5*time.Millisecond)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
