package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// LenientAmount decodes a JSON number or string into whole units. Malformed
// input decodes to zero instead of failing the request.
type LenientAmount int64

// UnmarshalJSON implements json.Unmarshaler.
func (a *LenientAmount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*a = 0
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		raw = s
	}
	*a = LenientAmount(ParseAmountLenient(raw))
	return nil
}

// EditInput is the form payload that replaces every editable field of a
// transaction. ID and Date are kept from the original record.
type EditInput struct {
	Amount        LenientAmount `json:"amount"`
	Kind          string        `json:"type" validate:"required,oneof='Xarajat' 'Daromad' 'Qarz Berdim' 'Qarz Oldim'"`
	Category      string        `json:"category" validate:"max=64"`
	PaymentMethod string        `json:"paymentMethod" validate:"required,oneof=Karta Naqd"`
	PersonName    string        `json:"personName" validate:"max=100"`
	Note          string        `json:"note" validate:"max=500"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func editValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Apply validates the input and returns the edited copy of orig.
// Kind and payment method accept the same lenient spellings as the resolver.
func (in EditInput) Apply(orig Transaction) (Transaction, error) {
	if k, ok := ParseKind(in.Kind); ok {
		in.Kind = string(k)
	}
	if pm, ok := ParsePaymentMethod(in.PaymentMethod); ok {
		in.PaymentMethod = string(pm)
	}
	in.Category = strings.TrimSpace(in.Category)
	in.PersonName = strings.TrimSpace(in.PersonName)

	if err := editValidator().Struct(in); err != nil {
		return Transaction{}, fmt.Errorf("%w: %v", ErrInvalidEdit, err)
	}

	out := Transaction{
		ID:            orig.ID,
		Date:          orig.Date,
		Amount:        int64(in.Amount),
		Kind:          Kind(in.Kind),
		Category:      in.Category,
		PaymentMethod: PaymentMethod(in.PaymentMethod),
		Note:          in.Note,
	}
	if out.Kind.IsDebt() {
		out.PersonName = in.PersonName
	}
	return out, nil
}
