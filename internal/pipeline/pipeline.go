// Package pipeline holds the single pending action between the resolver's
// proposal and the user's confirmation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/moliya/internal/ai"
	"github.com/dvloznov/moliya/internal/domain"
)

// State is the pipeline position.
type State string

const (
	StateIdle                  State = "idle"
	StateAwaitingClarification State = "awaiting_clarification"
	StateAwaitingConfirmation  State = "awaiting_confirmation"
)

var (
	ErrEmptyInput               = errors.New("input is empty")
	ErrActionPending            = errors.New("an action is already pending; confirm or cancel it first")
	ErrNoPendingAction          = errors.New("no pending action")
	ErrClarificationRequired    = errors.New("pending action still needs clarification")
	ErrUnsupportedClarification = errors.New("field cannot be clarified")
	ErrInvalidClarification     = errors.New("invalid clarification value")
)

// Committed is the result of a successful Confirm.
type Committed struct {
	Transaction   domain.Transaction `json:"transaction"`
	CreatedPerson *domain.Person     `json:"createdPerson,omitempty"`
}

// Pipeline is a mutex-guarded state machine with at most one pending action.
type Pipeline struct {
	resolver ai.IntentResolver
	ledger   Ledger
	logger   zerolog.Logger
	now      func() time.Time
	newID    func() string

	mu        sync.Mutex
	state     State
	pending   *domain.PendingAction
	resolving bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithLogger(l zerolog.Logger) Option { return func(p *Pipeline) { p.logger = l } }

func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

func WithIDGenerator(fn func() string) Option { return func(p *Pipeline) { p.newID = fn } }

// New creates an idle pipeline. resolver should never fail; wrap it in ai.SafeResolver.
func New(resolver ai.IntentResolver, ledger Ledger, opts ...Option) *Pipeline {
	p := &Pipeline{
		resolver: resolver,
		ledger:   ledger,
		logger:   zerolog.Nop(),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current position.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Pending returns a copy of the pending action, if any.
func (p *Pipeline) Pending() (domain.PendingAction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return domain.PendingAction{}, false
	}
	return p.pending.Clone(), true
}

// Submit resolves text. Actionable responses become the pending action;
// anything else leaves the pipeline idle. Submitting while an action is pending
// or another submit is in flight fails with ErrActionPending.
func (p *Pipeline) Submit(ctx context.Context, text string) (domain.AIResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.AIResponse{}, ErrEmptyInput
	}

	p.mu.Lock()
	if p.state != StateIdle || p.resolving {
		p.mu.Unlock()
		return domain.AIResponse{}, ErrActionPending
	}
	p.resolving = true
	p.mu.Unlock()

	resp, err := p.resolve(ctx, text)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolving = false
	if err != nil {
		return domain.AIResponse{}, err
	}

	if resp.Intent.Actionable() {
		action := resp.Clone()
		p.pending = &action
		p.state = stateFor(action)
		p.logger.Info().
			Str("intent", string(action.Intent)).
			Str("state", string(p.state)).
			Msg("pending action created")
	}
	return resp, nil
}

func (p *Pipeline) resolve(ctx context.Context, text string) (domain.AIResponse, error) {
	people := p.ledger.People()
	names := make([]string, 0, len(people))
	for _, person := range people {
		names = append(names, person.Name)
	}
	resp, err := p.resolver.Resolve(ctx, ai.ResolveRequest{Text: text, KnownPeople: names})
	if err != nil {
		return domain.AIResponse{}, fmt.Errorf("Pipeline.Submit: resolve: %w", err)
	}
	return resp, nil
}

// Clarify patches one field of the pending action.
func (p *Pipeline) Clarify(field domain.ClarificationField, value string) (domain.PendingAction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending == nil {
		return domain.PendingAction{}, ErrNoPendingAction
	}

	value = strings.TrimSpace(value)
	action := p.pending.Clone()
	switch field {
	case domain.ClarifyPaymentMethod:
		pm, ok := domain.ParsePaymentMethod(value)
		if !ok {
			return domain.PendingAction{}, fmt.Errorf("%w: payment method %q", ErrInvalidClarification, value)
		}
		action.PaymentMethod = pm
	case domain.ClarifyPersonName:
		if value == "" {
			return domain.PendingAction{}, fmt.Errorf("%w: empty person name", ErrInvalidClarification)
		}
		action.PersonName = p.canonicalPerson(value)
	default:
		return domain.PendingAction{}, fmt.Errorf("%w: %q", ErrUnsupportedClarification, field)
	}

	action.NeedsClarification = ""
	if action.Intent == domain.IntentDebt && action.PersonName == "" {
		action.NeedsClarification = domain.ClarifyPersonName
	}
	p.pending = &action
	p.state = stateFor(action)
	return action.Clone(), nil
}

func (p *Pipeline) canonicalPerson(name string) string {
	for _, person := range p.ledger.People() {
		if domain.SameName(person.Name, name) {
			return person.Name
		}
	}
	return name
}

// Confirm commits the pending action. On failure the action stays pending.
func (p *Pipeline) Confirm(ctx context.Context) (Committed, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateIdle:
		return Committed{}, ErrNoPendingAction
	case StateAwaitingClarification:
		return Committed{}, ErrClarificationRequired
	}

	state := &CommitState{Action: p.pending.Clone()}
	chain := NewChain(
		&MaterializeStep{Now: p.now, NewID: p.newID},
		&CommitStep{Ledger: p.ledger},
	)
	if err := chain.Execute(ctx, state); err != nil {
		p.logger.Error().Err(err).Msg("failed to commit pending action")
		return Committed{}, fmt.Errorf("Pipeline.Confirm: %w", err)
	}

	p.pending = nil
	p.state = StateIdle

	log := p.logger.Info().
		Str("transaction_id", state.Transaction.ID).
		Str("type", string(state.Transaction.Kind)).
		Int64("amount", state.Transaction.Amount)
	if state.CreatedPerson != nil {
		log = log.Str("person_name", state.CreatedPerson.Name)
	}
	log.Msg("pending action committed")

	return Committed{Transaction: state.Transaction, CreatedPerson: state.CreatedPerson}, nil
}

// Cancel discards the pending action and reports whether there was one.
func (p *Pipeline) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	had := p.pending != nil
	p.pending = nil
	p.state = StateIdle
	return had
}

func stateFor(a domain.PendingAction) State {
	if a.NeedsClarification != "" {
		return StateAwaitingClarification
	}
	return StateAwaitingConfirmation
}
