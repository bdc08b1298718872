package domain

// Intent is the resolver's classification of an utterance.
type Intent string

const (
	IntentTransaction   Intent = "transaction"
	IntentDebt          Intent = "debt"
	IntentQuery         Intent = "query"
	IntentClarification Intent = "clarification"
)

// Valid reports whether i is one of the known intents.
func (i Intent) Valid() bool {
	switch i {
	case IntentTransaction, IntentDebt, IntentQuery, IntentClarification:
		return true
	}
	return false
}

// Actionable reports whether the intent proposes a ledger entry.
func (i Intent) Actionable() bool {
	return i == IntentTransaction || i == IntentDebt
}

// ClarificationField names the single field a pending action is missing.
type ClarificationField string

const (
	ClarifyPaymentMethod ClarificationField = "paymentMethod"
	ClarifyPersonName    ClarificationField = "personName"
)

// AIResponse is the resolver contract. Intent and Message are always present;
// everything else is advisory and may be empty.
//
// A PendingAction has the same shape: the pipeline keeps the last actionable
// response and patches it in place during clarification.
type AIResponse struct {
	Intent             Intent             `json:"intent"`
	Amount             *int64             `json:"amount,omitempty"`
	Kind               Kind               `json:"type,omitempty"`
	Category           string             `json:"category,omitempty"`
	PaymentMethod      PaymentMethod      `json:"paymentMethod,omitempty"`
	PersonName         string             `json:"personName,omitempty"`
	Message            string             `json:"message"`
	NeedsClarification ClarificationField `json:"needsClarification,omitempty"`
}

// PendingAction is an unconfirmed, resolver-proposed transaction.
type PendingAction = AIResponse

// Clone returns a deep copy so callers never share the amount pointer.
func (r AIResponse) Clone() AIResponse {
	out := r
	if r.Amount != nil {
		v := *r.Amount
		out.Amount = &v
	}
	return out
}
