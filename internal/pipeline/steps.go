package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/moliya/internal/domain"
)

// PipelineStep is one stage of turning a confirmed action into a ledger entry.
type PipelineStep interface {
	Execute(ctx context.Context, state *CommitState) error
}

// CommitState is shared across the commit steps.
type CommitState struct {
	Action        domain.PendingAction
	Transaction   domain.Transaction
	CreatedPerson *domain.Person
}

// Ledger is the part of the ledger store the pipeline writes through.
type Ledger interface {
	People() []domain.Person
	Commit(ctx context.Context, tx domain.Transaction, ensurePerson bool) (*domain.Person, error)
}

// MaterializeStep converts the pending action into a Transaction, filling in
// defaults for anything the resolver left out.
type MaterializeStep struct {
	Now   func() time.Time
	NewID func() string
}

func (s *MaterializeStep) Execute(_ context.Context, state *CommitState) error {
	state.Transaction = Materialize(state.Action, s.NewID(), s.Now())
	return nil
}

// Materialize applies the confirm-time defaults: amount 0, kind Expense,
// category by intent, payment Cash.
func Materialize(a domain.PendingAction, id string, now time.Time) domain.Transaction {
	tx := domain.Transaction{
		ID:            id,
		Kind:          a.Kind,
		Category:      strings.TrimSpace(a.Category),
		Date:          domain.FormatDate(now),
		PaymentMethod: a.PaymentMethod,
		PersonName:    strings.TrimSpace(a.PersonName),
	}
	if a.Amount != nil && *a.Amount > 0 {
		tx.Amount = *a.Amount
	}
	if !tx.Kind.Valid() {
		tx.Kind = domain.KindExpense
	}
	if tx.Category == "" {
		tx.Category = domain.CategoryOther
		if a.Intent == domain.IntentDebt {
			tx.Category = domain.CategoryDebt
		}
	}
	if tx.PaymentMethod == "" {
		tx.PaymentMethod = domain.PaymentCash
	}
	return tx
}

// CommitStep appends the transaction and registers an unknown counterparty.
type CommitStep struct {
	Ledger Ledger
}

func (s *CommitStep) Execute(ctx context.Context, state *CommitState) error {
	person, err := s.Ledger.Commit(ctx, state.Transaction, true)
	if err != nil {
		return fmt.Errorf("CommitStep: %w", err)
	}
	state.CreatedPerson = person
	return nil
}

// Chain executes a sequence of steps in order.
type Chain struct {
	steps []PipelineStep
}

// NewChain creates a chain with the given steps.
func NewChain(steps ...PipelineStep) *Chain {
	return &Chain{steps: steps}
}

// Execute runs all steps sequentially and stops at the first failure.
func (c *Chain) Execute(ctx context.Context, state *CommitState) error {
	for i, step := range c.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("commit step %d failed: %w", i+1, err)
		}
	}
	return nil
}
