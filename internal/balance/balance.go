// Package balance derives every figure shown to the user from the transaction
// list. Nothing here is cached; callers recompute after each ledger change.
package balance

import (
	"github.com/dvloznov/moliya/internal/domain"
	"github.com/dvloznov/moliya/internal/ledger"
)

// PlaceholderCategory is the single bucket returned when there are no expenses,
// so charts never receive an empty series.
const PlaceholderCategory = "Ma'lumot yo'q"

// Balances are the user's card and cash positions.
type Balances struct {
	Card int64 `json:"card"`
	Cash int64 `json:"cash"`
}

// Total is card plus cash.
func (b Balances) Total() int64 {
	return b.Card + b.Cash
}

// PersonBalanceView pairs a roster entry with its derived balance.
// Positive means the person owes the user.
type PersonBalanceView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
}

// CategoryTotal is one slice of the expense breakdown.
type CategoryTotal struct {
	Category string `json:"name"`
	Amount   int64  `json:"value"`
}

// Summary bundles all derived figures for one ledger state.
type Summary struct {
	Balances   Balances            `json:"balances"`
	Total      int64               `json:"total"`
	People     []PersonBalanceView `json:"people"`
	Categories []CategoryTotal     `json:"categories"`
}

// Totals applies the sign rule: income and borrowed money add, everything else
// subtracts. Card transactions hit the card balance, anything else hits cash.
func Totals(txs []domain.Transaction) Balances {
	var b Balances
	for _, t := range txs {
		signed := -t.Amount
		if t.Kind.Inflow() {
			signed = t.Amount
		}
		if t.PaymentMethod == domain.PaymentCard {
			b.Card += signed
		} else {
			b.Cash += signed
		}
	}
	return b
}

// PersonBalance sums debt transactions naming the person (case-insensitive).
// This is independent of Totals: the two figures do not reconcile.
func PersonBalance(txs []domain.Transaction, name string) int64 {
	var sum int64
	for _, t := range txs {
		if t.PersonName == "" || !domain.SameName(t.PersonName, name) {
			continue
		}
		switch t.Kind {
		case domain.KindDebtGiven:
			sum += t.Amount
		case domain.KindDebtTaken:
			sum -= t.Amount
		}
	}
	return sum
}

// People returns the roster, in order, with derived balances.
func People(txs []domain.Transaction, people []domain.Person) []PersonBalanceView {
	out := make([]PersonBalanceView, 0, len(people))
	for _, p := range people {
		out = append(out, PersonBalanceView{
			ID:      p.ID,
			Name:    p.Name,
			Balance: PersonBalance(txs, p.Name),
		})
	}
	return out
}

// CategoryBreakdown groups expenses by category in first-seen order.
func CategoryBreakdown(txs []domain.Transaction) []CategoryTotal {
	index := make(map[string]int)
	var out []CategoryTotal
	for _, t := range txs {
		if t.Kind != domain.KindExpense {
			continue
		}
		i, ok := index[t.Category]
		if !ok {
			i = len(out)
			index[t.Category] = i
			out = append(out, CategoryTotal{Category: t.Category})
		}
		out[i].Amount += t.Amount
	}
	if len(out) == 0 {
		return []CategoryTotal{{Category: PlaceholderCategory, Amount: 0}}
	}
	return out
}

// Summarize computes every figure for a snapshot.
func Summarize(snap ledger.Snapshot) Summary {
	b := Totals(snap.Transactions)
	return Summary{
		Balances:   b,
		Total:      b.Total(),
		People:     People(snap.Transactions, snap.People),
		Categories: CategoryBreakdown(snap.Transactions),
	}
}
