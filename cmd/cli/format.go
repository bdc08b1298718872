package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dvloznov/moliya/internal/domain"
)

// formatAmount renders whole units with space-grouped thousands: 1 250 000 so'm.
func formatAmount(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	digits := strconv.FormatInt(v, 10)

	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(d)
	}
	return sign + b.String() + " so'm"
}

func describePending(a domain.PendingAction) string {
	var parts []string
	if a.Kind != "" {
		parts = append(parts, string(a.Kind))
	}
	if a.Amount != nil {
		parts = append(parts, formatAmount(*a.Amount))
	}
	if a.Category != "" {
		parts = append(parts, a.Category)
	}
	if a.PaymentMethod != "" {
		parts = append(parts, string(a.PaymentMethod))
	}
	if a.PersonName != "" {
		parts = append(parts, a.PersonName)
	}
	return strings.Join(parts, " | ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
