package advice

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/moliya/internal/ai"
	"github.com/dvloznov/moliya/internal/domain"
	"github.com/dvloznov/moliya/internal/jobs"
	"github.com/dvloznov/moliya/internal/jobs/inmemory"
	"github.com/dvloznov/moliya/internal/ledger"
)

// MockPublisher records published jobs instead of running them.
type MockPublisher struct {
	Published   []*jobs.AdviceJob
	PublishFunc func(ctx context.Context, job *jobs.AdviceJob) error
}

func (m *MockPublisher) PublishAdvice(ctx context.Context, job *jobs.AdviceJob) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, job)
	}
	m.Published = append(m.Published, job)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

// MockAdvisor is a stub AdviceGenerator.
type MockAdvisor struct {
	AdviseFunc func(ctx context.Context, txs []domain.Transaction) (string, error)
}

func (m *MockAdvisor) Advise(ctx context.Context, txs []domain.Transaction) (string, error) {
	return m.AdviseFunc(ctx, txs)
}

func constantAdvisor(text string) *MockAdvisor {
	return &MockAdvisor{AdviseFunc: func(context.Context, []domain.Transaction) (string, error) { return text, nil }}
}

func someTxs(n int) []domain.Transaction {
	txs := make([]domain.Transaction, n)
	for i := range txs {
		txs[i] = domain.Transaction{ID: string(rune('a' + i)), Kind: domain.KindExpense, Amount: int64(i + 1)}
	}
	return txs
}

func TestRefresher_InitialText(t *testing.T) {
	r := NewRefresher(&MockPublisher{}, constantAdvisor("x"), 0, zerolog.Nop())
	assert.Equal(t, Analyzing, r.Current().Text)
}

func TestRefresher_EmptyLedgerSkipsAdvisor(t *testing.T) {
	pub := &MockPublisher{}
	r := NewRefresher(pub, &MockAdvisor{AdviseFunc: func(context.Context, []domain.Transaction) (string, error) {
		t.Fatal("advisor must not be called for an empty ledger")
		return "", nil
	}}, 5, zerolog.Nop())

	require.NoError(t, r.Refresh(context.Background(), nil))
	assert.Empty(t, pub.Published)
	assert.Equal(t, ai.AdviceNoData, r.Current().Text)
	assert.Equal(t, uint64(1), r.Current().Seq)
}

func TestRefresher_PublishesWindowAndAppliesResult(t *testing.T) {
	ctx := context.Background()
	pub := &MockPublisher{}
	var seen []domain.Transaction
	r := NewRefresher(pub, &MockAdvisor{AdviseFunc: func(_ context.Context, txs []domain.Transaction) (string, error) {
		seen = txs
		return "Tejang!", nil
	}}, 5, zerolog.Nop())

	txs := someTxs(8)
	require.NoError(t, r.Refresh(ctx, txs))
	require.Len(t, pub.Published, 1)
	job := pub.Published[0]
	assert.Equal(t, uint64(1), job.Seq)
	assert.Equal(t, txs[:5], job.Transactions)

	require.NoError(t, r.Handle(ctx, job))
	assert.Equal(t, txs[:5], seen)
	assert.Equal(t, "Tejang!", r.Current().Text)
	assert.Equal(t, uint64(1), r.Current().Seq)
}

func TestRefresher_DropsStaleResults(t *testing.T) {
	ctx := context.Background()
	pub := &MockPublisher{}
	calls := 0
	r := NewRefresher(pub, &MockAdvisor{AdviseFunc: func(_ context.Context, txs []domain.Transaction) (string, error) {
		calls++
		return "for " + txs[0].ID, nil
	}}, 5, zerolog.Nop())

	require.NoError(t, r.Refresh(ctx, someTxs(1)))
	require.NoError(t, r.Refresh(ctx, someTxs(2)[1:]))
	first, second := pub.Published[0], pub.Published[1]

	// The newer job lands first; the older one must not overwrite it.
	require.NoError(t, r.Handle(ctx, second))
	assert.ErrorIs(t, r.Handle(ctx, first), jobs.ErrStale)

	assert.Equal(t, "for b", r.Current().Text)
	assert.Equal(t, uint64(2), r.Current().Seq)
	assert.Equal(t, 1, calls, "superseded jobs skip the advisor")
}

func TestRefresher_ResultArrivingAfterNewerIssueIsDropped(t *testing.T) {
	ctx := context.Background()
	pub := &MockPublisher{}
	var r *Refresher
	r = NewRefresher(pub, &MockAdvisor{AdviseFunc: func(context.Context, []domain.Transaction) (string, error) {
		// A new mutation happens while the model is thinking.
		require.NoError(t, r.Refresh(ctx, nil))
		return "old advice", nil
	}}, 5, zerolog.Nop())

	require.NoError(t, r.Refresh(ctx, someTxs(1)))
	assert.ErrorIs(t, r.Handle(ctx, pub.Published[0]), jobs.ErrStale)
	assert.Equal(t, ai.AdviceNoData, r.Current().Text)
}

func TestRefresher_PublishError(t *testing.T) {
	pub := &MockPublisher{PublishFunc: func(context.Context, *jobs.AdviceJob) error { return inmemory.ErrQueueClosed }}
	r := NewRefresher(pub, constantAdvisor("x"), 5, zerolog.Nop())

	err := r.Refresh(context.Background(), someTxs(1))
	assert.ErrorIs(t, err, inmemory.ErrQueueClosed)
}

func TestRefresher_AdvisorError(t *testing.T) {
	ctx := context.Background()
	failing := &MockAdvisor{AdviseFunc: func(context.Context, []domain.Transaction) (string, error) {
		return "", errors.New("down")
	}}

	t.Run("retries left keeps current text", func(t *testing.T) {
		pub := &MockPublisher{}
		r := NewRefresher(pub, failing, 5, zerolog.Nop(), WithRetries(2))
		require.NoError(t, r.Refresh(ctx, someTxs(1)))
		job := pub.Published[0]
		assert.Equal(t, 2, job.MaxRetries)

		err := r.Handle(ctx, job)
		require.Error(t, err)
		assert.NotErrorIs(t, err, jobs.ErrPermanent)
		assert.Equal(t, Analyzing, r.Current().Text)
	})

	t.Run("last attempt shows fallback", func(t *testing.T) {
		pub := &MockPublisher{}
		r := NewRefresher(pub, failing, 5, zerolog.Nop(), WithRetries(2))
		require.NoError(t, r.Refresh(ctx, someTxs(1)))
		job := pub.Published[0]
		job.RetryCount = 2

		assert.ErrorIs(t, r.Handle(ctx, job), jobs.ErrPermanent)
		assert.Equal(t, ai.AdviceErrorFallback, r.Current().Text)
	})

	t.Run("no model is not retried", func(t *testing.T) {
		pub := &MockPublisher{}
		r := NewRefresher(pub, ai.Unavailable{}, 5, zerolog.Nop(), WithRetries(3))
		require.NoError(t, r.Refresh(ctx, someTxs(1)))

		assert.ErrorIs(t, r.Handle(ctx, pub.Published[0]), jobs.ErrPermanent)
		assert.Equal(t, ai.AdviceErrorFallback, r.Current().Text)
	})

	t.Run("empty text uses empty fallback", func(t *testing.T) {
		pub := &MockPublisher{}
		r := NewRefresher(pub, constantAdvisor("  "), 5, zerolog.Nop())
		require.NoError(t, r.Refresh(ctx, someTxs(1)))

		require.NoError(t, r.Handle(ctx, pub.Published[0]))
		assert.Equal(t, ai.AdviceEmptyFallback, r.Current().Text)
	})
}

func TestRefresher_RetriesThroughQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	advisor := &MockAdvisor{AdviseFunc: func(context.Context, []domain.Transaction) (string, error) {
		if calls.Add(1) <= 2 {
			return "", errors.New("503 from model")
		}
		return "Tejang!", nil
	}}

	store := inmemory.NewStore(0)
	queue := inmemory.NewQueue(8, 1, store, zerolog.Nop())
	queue.SetRetryBackoff(5 * time.Millisecond)
	r := NewRefresher(queue, advisor, 5, zerolog.Nop(), WithRetries(2))
	require.NoError(t, queue.Start(ctx, r.Handle))
	defer queue.Close()

	require.NoError(t, r.Refresh(ctx, someTxs(1)))

	require.Eventually(t, func() bool {
		return r.Current().Text == "Tejang!"
	}, 2*time.Second, 5*time.Millisecond)

	listed, err := store.ListJobs(ctx, jobs.JobFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Eventually(t, func() bool {
		j, err := store.GetJob(ctx, listed[0].JobID)
		return err == nil && j.Status == jobs.JobStatusCompleted
	}, time.Second, 5*time.Millisecond)
	j, err := store.GetJob(ctx, listed[0].JobID)
	require.NoError(t, err)
	assert.Equal(t, 2, j.RetryCount)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRefresher_WiredToLedgerAndQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := inmemory.NewQueue(8, 1, inmemory.NewStore(0), zerolog.Nop())
	r := NewRefresher(queue, ai.NewSafeAdvisor(constantAdvisor("Yaxshi!"), zerolog.Nop()), 5, zerolog.Nop())
	require.NoError(t, queue.Start(ctx, r.Handle))
	defer queue.Close()

	store := ledger.NewStore(ledger.NewMemoryPersister())
	store.Subscribe(r.OnLedgerChange)
	require.NoError(t, store.Append(ctx, domain.Transaction{ID: "1", Kind: domain.KindExpense, Amount: 10}))

	require.Eventually(t, func() bool {
		return r.Current().Text == "Yaxshi!"
	}, 2*time.Second, 10*time.Millisecond)
}
