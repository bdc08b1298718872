package domain

import (
	"strings"
	"time"
)

// Kind classifies a transaction. Values are the persisted wire strings.
type Kind string

const (
	KindExpense   Kind = "Xarajat"
	KindIncome    Kind = "Daromad"
	KindDebtGiven Kind = "Qarz Berdim" // user lent money
	KindDebtTaken Kind = "Qarz Oldim"  // user borrowed money
)

// PaymentMethod is where the money moved: card or cash.
type PaymentMethod string

const (
	PaymentCard PaymentMethod = "Karta"
	PaymentCash PaymentMethod = "Naqd"
)

const (
	// CategoryOther is applied to non-debt actions confirmed without a category.
	CategoryOther = "Boshqa"
	// CategoryDebt is applied to debt actions confirmed without a category.
	CategoryDebt = "Qarz"

	// DateLayout is the display format used for Transaction.Date (day/month/year).
	DateLayout = "02/01/2006"
)

// Transaction is one financial event. The ID is assigned at creation and never
// changes; every other field may be replaced wholesale by an edit.
type Transaction struct {
	ID            string        `json:"id"`
	Amount        int64         `json:"amount"` // whole currency units, never negative
	Kind          Kind          `json:"type"`
	Category      string        `json:"category"`
	Date          string        `json:"date"` // display string fixed at creation
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	PersonName    string        `json:"personName,omitempty"` // only for debt kinds
	Note          string        `json:"note,omitempty"`
}

// Person is a named debt counterparty. Its balance is always derived from the
// transactions and is therefore not part of the persisted record.
type Person struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FormatDate renders t in the ledger's display format.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// IsDebt reports whether k is one of the debt kinds.
func (k Kind) IsDebt() bool {
	return k == KindDebtGiven || k == KindDebtTaken
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindExpense, KindIncome, KindDebtGiven, KindDebtTaken:
		return true
	}
	return false
}

// Inflow reports whether the kind adds money to the user's card/cash balance.
func (k Kind) Inflow() bool {
	return k == KindIncome || k == KindDebtTaken
}

// ParseKind maps a wire value, or its English name, to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch normalize(s) {
	case normalize(string(KindExpense)), "expense":
		return KindExpense, true
	case normalize(string(KindIncome)), "income":
		return KindIncome, true
	case normalize(string(KindDebtGiven)), "debtgiven", "debt given":
		return KindDebtGiven, true
	case normalize(string(KindDebtTaken)), "debttaken", "debt taken":
		return KindDebtTaken, true
	}
	return "", false
}

// ParsePaymentMethod accepts "Karta"/"card" and "Naqd"/"cash" in any case.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch normalize(s) {
	case "karta", "card":
		return PaymentCard, true
	case "naqd", "cash":
		return PaymentCash, true
	}
	return "", false
}

// SameName compares person names the way the ledger does: trimmed and case-insensitive.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
