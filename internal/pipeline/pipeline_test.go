package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/moliya/internal/ai"
	"github.com/dvloznov/moliya/internal/domain"
	"github.com/dvloznov/moliya/internal/ledger"
)

// MockResolver is a stub IntentResolver.
type MockResolver struct {
	ResolveFunc func(ctx context.Context, req ai.ResolveRequest) (domain.AIResponse, error)
}

func (m *MockResolver) Resolve(ctx context.Context, req ai.ResolveRequest) (domain.AIResponse, error) {
	return m.ResolveFunc(ctx, req)
}

func returning(resp domain.AIResponse) *MockResolver {
	return &MockResolver{ResolveFunc: func(context.Context, ai.ResolveRequest) (domain.AIResponse, error) {
		return resp, nil
	}}
}

// MockLedger wraps a real store and can fail commits.
type MockLedger struct {
	*ledger.Store
	CommitFunc func(ctx context.Context, tx domain.Transaction, ensurePerson bool) (*domain.Person, error)
}

func (m *MockLedger) Commit(ctx context.Context, tx domain.Transaction, ensurePerson bool) (*domain.Person, error) {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx, tx, ensurePerson)
	}
	return m.Store.Commit(ctx, tx, ensurePerson)
}

var fixedNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func amount(v int64) *int64 { return &v }

func newTestPipeline(resolver ai.IntentResolver, l Ledger) *Pipeline {
	return New(resolver, l,
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return "tx-1" }),
		WithLogger(zerolog.Nop()),
	)
}

func newStore() *ledger.Store {
	return ledger.NewStore(ledger.NewMemoryPersister())
}

func TestSubmit_DebtThenConfirm(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	p := newTestPipeline(returning(domain.AIResponse{
		Intent:        domain.IntentDebt,
		Amount:        amount(100000),
		Kind:          domain.KindDebtGiven,
		PersonName:    "Ali",
		PaymentMethod: domain.PaymentCash,
		Message:       "Aliga 100 000 so'm berdingiz",
	}), store)

	resp, err := p.Submit(ctx, "Aliga 100 ming berdim")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentDebt, resp.Intent)
	assert.Equal(t, StateAwaitingConfirmation, p.State())

	got, err := p.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Transaction{
		ID:            "tx-1",
		Amount:        100000,
		Kind:          domain.KindDebtGiven,
		Category:      domain.CategoryDebt,
		Date:          "15/10/2026",
		PaymentMethod: domain.PaymentCash,
		PersonName:    "Ali",
	}, got.Transaction)
	require.NotNil(t, got.CreatedPerson)
	assert.Equal(t, "Ali", got.CreatedPerson.Name)

	assert.Equal(t, StateIdle, p.State())
	_, pending := p.Pending()
	assert.False(t, pending)
	assert.Len(t, store.Transactions(), 1)
	assert.Len(t, store.People(), 1)
}

func TestSubmit_PassesRosterToResolver(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	_, err := store.AddPerson(ctx, "Vali")
	require.NoError(t, err)

	var got ai.ResolveRequest
	p := newTestPipeline(&MockResolver{ResolveFunc: func(_ context.Context, req ai.ResolveRequest) (domain.AIResponse, error) {
		got = req
		return domain.AIResponse{Intent: domain.IntentQuery, Message: "ok"}, nil
	}}, store)

	_, err = p.Submit(ctx, "  balansim qancha?  ")
	require.NoError(t, err)
	assert.Equal(t, "balansim qancha?", got.Text)
	assert.Equal(t, []string{"Vali"}, got.KnownPeople)
}

func TestSubmit_NonActionableStaysIdle(t *testing.T) {
	for _, intent := range []domain.Intent{domain.IntentQuery, domain.IntentClarification} {
		t.Run(string(intent), func(t *testing.T) {
			p := newTestPipeline(returning(domain.AIResponse{Intent: intent, Message: "m"}), newStore())
			_, err := p.Submit(context.Background(), "salom")
			require.NoError(t, err)
			assert.Equal(t, StateIdle, p.State())
		})
	}
}

func TestSubmit_EmptyInput(t *testing.T) {
	p := newTestPipeline(returning(domain.AIResponse{}), newStore())
	_, err := p.Submit(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestSubmit_RejectedWhilePending(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(returning(domain.AIResponse{
		Intent:  domain.IntentTransaction,
		Amount:  amount(5),
		Message: "m",
	}), newStore())

	_, err := p.Submit(ctx, "first")
	require.NoError(t, err)
	before, _ := p.Pending()

	_, err = p.Submit(ctx, "second")
	assert.ErrorIs(t, err, ErrActionPending)

	after, ok := p.Pending()
	require.True(t, ok)
	assert.Equal(t, before, after, "pending action must not be overwritten")
}

func TestSubmit_RejectedWhileResolving(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	p := newTestPipeline(&MockResolver{ResolveFunc: func(context.Context, ai.ResolveRequest) (domain.AIResponse, error) {
		once.Do(func() { close(started) })
		<-release
		return domain.AIResponse{Intent: domain.IntentQuery, Message: "m"}, nil
	}}, newStore())

	done := make(chan error, 1)
	go func() {
		_, err := p.Submit(context.Background(), "slow")
		done <- err
	}()
	<-started

	_, err := p.Submit(context.Background(), "fast")
	assert.ErrorIs(t, err, ErrActionPending)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, p.State())
}

func TestSubmit_ResolverErrorLeavesIdle(t *testing.T) {
	p := newTestPipeline(&MockResolver{ResolveFunc: func(context.Context, ai.ResolveRequest) (domain.AIResponse, error) {
		return domain.AIResponse{}, errors.New("boom")
	}}, newStore())

	_, err := p.Submit(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, StateIdle, p.State())

	// Not stuck in the resolving flag.
	_, err = p.Submit(context.Background(), "x")
	assert.NotErrorIs(t, err, ErrActionPending)
}

func TestClarify_PaymentMethod(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	p := newTestPipeline(returning(domain.AIResponse{
		Intent:             domain.IntentTransaction,
		Amount:             amount(50000),
		Kind:               domain.KindExpense,
		Category:           "Ovqat",
		Message:            "Tushlik uchun 50 000",
		NeedsClarification: domain.ClarifyPaymentMethod,
	}), store)

	_, err := p.Submit(ctx, "tushlikka 50 ming")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingClarification, p.State())

	_, err = p.Confirm(ctx)
	assert.ErrorIs(t, err, ErrClarificationRequired)

	_, err = p.Clarify(domain.ClarifyPaymentMethod, "bitcoin")
	assert.ErrorIs(t, err, ErrInvalidClarification)
	assert.Equal(t, StateAwaitingClarification, p.State())

	action, err := p.Clarify(domain.ClarifyPaymentMethod, "Karta")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCard, action.PaymentMethod)
	assert.Empty(t, action.NeedsClarification)
	assert.Equal(t, StateAwaitingConfirmation, p.State())

	got, err := p.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCard, got.Transaction.PaymentMethod)
	assert.Equal(t, "Ovqat", got.Transaction.Category)
	assert.Nil(t, got.CreatedPerson)
}

func TestClarify_PersonName(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	_, err := store.AddPerson(ctx, "Vali")
	require.NoError(t, err)

	p := newTestPipeline(returning(domain.AIResponse{
		Intent:             domain.IntentDebt,
		Kind:               domain.KindDebtTaken,
		Amount:             amount(300),
		Message:            "Kimdan oldingiz?",
		NeedsClarification: domain.ClarifyPersonName,
	}), store)

	_, err = p.Submit(ctx, "300 oldim")
	require.NoError(t, err)

	_, err = p.Clarify(domain.ClarifyPersonName, "  ")
	assert.ErrorIs(t, err, ErrInvalidClarification)

	action, err := p.Clarify(domain.ClarifyPersonName, "vali")
	require.NoError(t, err)
	assert.Equal(t, "Vali", action.PersonName)

	got, err := p.Confirm(ctx)
	require.NoError(t, err)
	assert.Nil(t, got.CreatedPerson, "known person is not duplicated")
	assert.Len(t, store.People(), 1)
}

func TestClarify_Errors(t *testing.T) {
	p := newTestPipeline(returning(domain.AIResponse{Intent: domain.IntentTransaction, Message: "m"}), newStore())

	_, err := p.Clarify(domain.ClarifyPaymentMethod, "Naqd")
	assert.ErrorIs(t, err, ErrNoPendingAction)

	_, err = p.Submit(context.Background(), "x")
	require.NoError(t, err)
	_, err = p.Clarify("category", "Ovqat")
	assert.ErrorIs(t, err, ErrUnsupportedClarification)
}

func TestConfirm_Defaults(t *testing.T) {
	tests := []struct {
		name   string
		action domain.AIResponse
		want   domain.Transaction
	}{
		{
			name:   "bare transaction",
			action: domain.AIResponse{Intent: domain.IntentTransaction, Message: "m"},
			want: domain.Transaction{
				ID: "tx-1", Amount: 0, Kind: domain.KindExpense, Category: domain.CategoryOther,
				Date: "15/10/2026", PaymentMethod: domain.PaymentCash,
			},
		},
		{
			name:   "bare debt",
			action: domain.AIResponse{Intent: domain.IntentDebt, PersonName: "Ali", Message: "m"},
			want: domain.Transaction{
				ID: "tx-1", Kind: domain.KindExpense, Category: domain.CategoryDebt,
				Date: "15/10/2026", PaymentMethod: domain.PaymentCash, PersonName: "Ali",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(returning(tt.action), newStore())
			_, err := p.Submit(context.Background(), "x")
			require.NoError(t, err)
			got, err := p.Confirm(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Transaction)
		})
	}
}

func TestConfirmCancelConfirm(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	p := newTestPipeline(returning(domain.AIResponse{Intent: domain.IntentTransaction, Amount: amount(1), Message: "m"}), store)

	_, err := p.Submit(ctx, "x")
	require.NoError(t, err)

	_, err = p.Confirm(ctx)
	require.NoError(t, err)

	assert.False(t, p.Cancel(), "nothing left to cancel")

	_, err = p.Confirm(ctx)
	assert.ErrorIs(t, err, ErrNoPendingAction)

	assert.Len(t, store.Transactions(), 1, "exactly one transaction committed")
}

func TestCancel_DiscardsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	p := newTestPipeline(returning(domain.AIResponse{Intent: domain.IntentTransaction, Message: "m"}), store)

	_, err := p.Submit(ctx, "x")
	require.NoError(t, err)
	assert.True(t, p.Cancel())
	assert.Equal(t, StateIdle, p.State())
	assert.Empty(t, store.Transactions())
}

func TestConfirm_CommitFailureKeepsPending(t *testing.T) {
	ctx := context.Background()
	l := &MockLedger{
		Store: newStore(),
		CommitFunc: func(context.Context, domain.Transaction, bool) (*domain.Person, error) {
			return nil, errors.New("disk full")
		},
	}
	p := newTestPipeline(returning(domain.AIResponse{Intent: domain.IntentTransaction, Message: "m"}), l)

	_, err := p.Submit(ctx, "x")
	require.NoError(t, err)

	_, err = p.Confirm(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, StateAwaitingConfirmation, p.State())

	l.CommitFunc = nil
	_, err = p.Confirm(ctx)
	require.NoError(t, err)
	assert.Len(t, l.Transactions(), 1)
}

func TestMaterialize_IgnoresNegativeAmount(t *testing.T) {
	tx := Materialize(domain.AIResponse{Intent: domain.IntentTransaction, Amount: amount(-5)}, "id", fixedNow)
	assert.Equal(t, int64(0), tx.Amount)
}

func TestChain_StopsAtFirstFailure(t *testing.T) {
	ran := 0
	failing := stepFunc(func(context.Context, *CommitState) error { ran++; return errors.New("nope") })
	never := stepFunc(func(context.Context, *CommitState) error { ran += 10; return nil })

	err := NewChain(failing, never).Execute(context.Background(), &CommitState{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit step 1 failed")
	assert.Equal(t, 1, ran)
}

type stepFunc func(ctx context.Context, state *CommitState) error

func (f stepFunc) Execute(ctx context.Context, state *CommitState) error { return f(ctx, state) }
