package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/moliya/internal/domain"
)

// rawResponse mirrors the model JSON loosely. Amount may arrive as a number,
// a string or null.
type rawResponse struct {
	Intent             string          `json:"intent"`
	Amount             json.RawMessage `json:"amount"`
	Type               *string         `json:"type"`
	Category           *string         `json:"category"`
	PaymentMethod      *string         `json:"paymentMethod"`
	PersonName         *string         `json:"personName"`
	Message            string          `json:"message"`
	NeedsClarification *string         `json:"needsClarification"`
}

// ParseResponse decodes and normalises model output. It fails on malformed
// JSON, a missing or unknown intent, or an empty message.
func ParseResponse(raw string) (domain.AIResponse, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return domain.AIResponse{}, fmt.Errorf("%w: empty output", ErrInvalidResponse)
	}

	var r rawResponse
	if err := json.Unmarshal([]byte(clean), &r); err != nil {
		return domain.AIResponse{}, fmt.Errorf("%w: unmarshal: %v", ErrInvalidResponse, err)
	}

	intent := domain.Intent(strings.ToLower(strings.TrimSpace(r.Intent)))
	if !intent.Valid() {
		return domain.AIResponse{}, fmt.Errorf("%w: unknown intent %q", ErrInvalidResponse, r.Intent)
	}
	msg := strings.TrimSpace(r.Message)
	if msg == "" {
		return domain.AIResponse{}, fmt.Errorf("%w: empty message", ErrInvalidResponse)
	}

	out := domain.AIResponse{
		Intent:  intent,
		Message: msg,
		Amount:  parseAmount(r.Amount),
	}
	if k, ok := domain.ParseKind(deref(r.Type)); ok {
		out.Kind = k
	}
	if pm, ok := domain.ParsePaymentMethod(deref(r.PaymentMethod)); ok {
		out.PaymentMethod = pm
	}
	out.Category = strings.TrimSpace(deref(r.Category))
	out.PersonName = strings.TrimSpace(deref(r.PersonName))
	out.NeedsClarification = clarificationFor(out, deref(r.NeedsClarification))
	return out, nil
}

// clarificationFor picks the single field still missing. A debt without a
// person outranks the model's own request.
func clarificationFor(r domain.AIResponse, requested string) domain.ClarificationField {
	if !r.Intent.Actionable() {
		return ""
	}
	if r.Intent == domain.IntentDebt && r.PersonName == "" {
		return domain.ClarifyPersonName
	}
	if domain.ClarificationField(strings.TrimSpace(requested)) == domain.ClarifyPaymentMethod && r.PaymentMethod == "" {
		return domain.ClarifyPaymentMethod
	}
	return ""
}

func parseAmount(raw json.RawMessage) *int64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var v int64
	var f float64
	var s string
	switch {
	case json.Unmarshal(raw, &f) == nil:
		v = domain.AmountFromFloat(f)
	case json.Unmarshal(raw, &s) == nil:
		if strings.TrimSpace(s) == "" {
			return nil
		}
		v = domain.ParseAmountLenient(s)
	default:
		return nil
	}
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// cleanModelJSON strips Markdown fences and any text around the outermost object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```json")
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
