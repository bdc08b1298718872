package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/moliya/internal/domain"
)

// Persisted document keys.
const (
	KeyTransactions = "moliya_transactions"
	KeyPeople       = "moliya_people"
)

// Snapshot is a point-in-time copy of the ledger. Transactions are most-recent-first.
type Snapshot struct {
	Transactions []domain.Transaction `json:"transactions"`
	People       []domain.Person      `json:"people"`
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{
		Transactions: make([]domain.Transaction, len(s.Transactions)),
		People:       make([]domain.Person, len(s.People)),
	}
	copy(out.Transactions, s.Transactions)
	copy(out.People, s.People)
	return out
}

// Listener is notified with the new state after every successful mutation.
type Listener func(Snapshot)

// Store is the single source of truth for transactions and people.
//
// Every mutation builds the next state on a copy, persists it, and only then
// swaps it in. A failed persist leaves the in-memory state untouched.
type Store struct {
	persister Persister
	logger    zerolog.Logger
	newID     func() string

	mu        sync.RWMutex
	state     Snapshot
	listeners []Listener
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithIDGenerator overrides person id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// NewStore creates an empty store. Call Load to read persisted state.
func NewStore(p Persister, opts ...Option) *Store {
	s := &Store{
		persister: p,
		logger:    zerolog.Nop(),
		newID:     func() string { return uuid.New().String() },
		state: Snapshot{
			Transactions: []domain.Transaction{},
			People:       []domain.Person{},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory state with the persisted documents. A missing,
// unreadable or malformed document yields an empty collection for that key.
func (s *Store) Load(ctx context.Context) {
	var next Snapshot
	next.Transactions = loadCollection[domain.Transaction](ctx, s, KeyTransactions)
	next.People = loadCollection[domain.Person](ctx, s, KeyPeople)

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	s.logger.Info().
		Int("transactions", len(next.Transactions)).
		Int("people", len(next.People)).
		Msg("ledger loaded")
}

func loadCollection[T any](ctx context.Context, s *Store, key string) []T {
	data, err := s.persister.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return []T{}
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to read ledger document, starting empty")
		return []T{}
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("malformed ledger document, starting empty")
		return []T{}
	}
	if out == nil {
		out = []T{}
	}
	return out
}

// Subscribe registers fn to receive the state after each mutation.
func (s *Store) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Transactions returns a copy of all transactions, most recent first.
func (s *Store) Transactions() []domain.Transaction {
	return s.Snapshot().Transactions
}

// People returns a copy of the roster in insertion order.
func (s *Store) People() []domain.Person {
	return s.Snapshot().People
}

// Get looks up a transaction by id.
func (s *Store) Get(id string) (domain.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tx := range s.state.Transactions {
		if tx.ID == id {
			return tx, true
		}
	}
	return domain.Transaction{}, false
}

// Append inserts tx at the head of the ledger.
func (s *Store) Append(ctx context.Context, tx domain.Transaction) error {
	return s.mutate(ctx, func(next *Snapshot) (bool, error) {
		next.Transactions = prepend(next.Transactions, tx)
		return true, nil
	})
}

// Replace overwrites the transaction with the given id, keeping the id.
// It reports false when no such transaction exists.
func (s *Store) Replace(ctx context.Context, id string, tx domain.Transaction) (bool, error) {
	found := false
	err := s.mutate(ctx, func(next *Snapshot) (bool, error) {
		for i := range next.Transactions {
			if next.Transactions[i].ID == id {
				tx.ID = id
				next.Transactions[i] = tx
				found = true
				return true, nil
			}
		}
		return false, nil
	})
	return found, err
}

// Remove deletes the transaction with the given id and reports whether it existed.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	found := false
	err := s.mutate(ctx, func(next *Snapshot) (bool, error) {
		for i := range next.Transactions {
			if next.Transactions[i].ID == id {
				next.Transactions = append(next.Transactions[:i], next.Transactions[i+1:]...)
				found = true
				return true, nil
			}
		}
		return false, nil
	})
	return found, err
}

// AddPerson adds a counterparty. Names are trimmed and compared case-insensitively.
func (s *Store) AddPerson(ctx context.Context, name string) (domain.Person, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Person{}, domain.ErrEmptyPersonName
	}
	var added domain.Person
	err := s.mutate(ctx, func(next *Snapshot) (bool, error) {
		if hasPerson(next.People, name) {
			return false, domain.ErrDuplicatePerson
		}
		added = domain.Person{ID: s.newID(), Name: name}
		next.People = append(next.People, added)
		return true, nil
	})
	if err != nil {
		return domain.Person{}, err
	}
	return added, nil
}

// Commit appends tx and, when ensurePerson is set and tx names an unknown
// person, adds that person in the same write. It returns the created person, if any.
func (s *Store) Commit(ctx context.Context, tx domain.Transaction, ensurePerson bool) (*domain.Person, error) {
	var created *domain.Person
	err := s.mutate(ctx, func(next *Snapshot) (bool, error) {
		next.Transactions = prepend(next.Transactions, tx)
		name := strings.TrimSpace(tx.PersonName)
		if ensurePerson && name != "" && !hasPerson(next.People, name) {
			p := domain.Person{ID: s.newID(), Name: name}
			next.People = append(next.People, p)
			created = &p
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// mutate applies fn to a copy of the state. fn reports whether anything changed.
func (s *Store) mutate(ctx context.Context, fn func(next *Snapshot) (bool, error)) error {
	s.mu.Lock()
	prev := s.state
	next := prev.clone()

	changed, err := fn(&next)
	if err != nil || !changed {
		s.mu.Unlock()
		return err
	}
	if err := s.persist(ctx, prev, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next
	listeners := append([]Listener(nil), s.listeners...)
	snap := next.clone()
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
	return nil
}

type document struct {
	key  string
	prev []byte
	next []byte
}

// persist writes the collections that changed. If a later write fails, earlier
// ones are restored so the stored documents stay consistent with memory.
func (s *Store) persist(ctx context.Context, prev, next Snapshot) error {
	docs := make([]document, 0, 2)
	for _, d := range []struct {
		key        string
		prev, next any
	}{
		{KeyTransactions, prev.Transactions, next.Transactions},
		{KeyPeople, prev.People, next.People},
	} {
		nb, err := json.Marshal(d.next)
		if err != nil {
			return fmt.Errorf("Store.persist: marshal %s: %w", d.key, err)
		}
		pb, err := json.Marshal(d.prev)
		if err != nil {
			return fmt.Errorf("Store.persist: marshal %s: %w", d.key, err)
		}
		if string(nb) == string(pb) {
			continue
		}
		docs = append(docs, document{key: d.key, prev: pb, next: nb})
	}

	for i, d := range docs {
		if err := s.persister.Save(ctx, d.key, d.next); err != nil {
			for _, done := range docs[:i] {
				if rbErr := s.persister.Save(context.WithoutCancel(ctx), done.key, done.prev); rbErr != nil {
					s.logger.Error().Err(rbErr).Str("key", done.key).Msg("failed to restore ledger document")
				}
			}
			return fmt.Errorf("Store.persist: save %s: %w", d.key, err)
		}
	}
	return nil
}

func prepend(txs []domain.Transaction, tx domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txs)+1)
	out = append(out, tx)
	return append(out, txs...)
}

func hasPerson(people []domain.Person, name string) bool {
	for _, p := range people {
		if domain.SameName(p.Name, name) {
			return true
		}
	}
	return false
}
