package notionsync

import (
	"strings"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/moliya/internal/domain"
)

// Property names of the Notion transactions database.
const (
	PropName          = "Name"
	PropTransactionID = "Transaction ID"
	PropDate          = "Date"
	PropAmount        = "Amount"
	PropType          = "Type"
	PropCategory      = "Category"
	PropPaymentMethod = "Payment Method"
	PropPerson        = "Person"
	PropNote          = "Note"
)

// TransactionToNotionProperties maps a ledger transaction to page properties.
// Person and Note are always sent so an update clears values removed locally.
func TransactionToNotionProperties(tx domain.Transaction) notionapi.Properties {
	props := notionapi.Properties{
		PropName: notionapi.TitleProperty{
			Title: richText(pageTitle(tx)),
		},
		PropTransactionID: notionapi.RichTextProperty{
			RichText: richText(tx.ID),
		},
		PropAmount: notionapi.NumberProperty{
			Number: float64(tx.Amount),
		},
		PropPerson: notionapi.RichTextProperty{
			RichText: richText(tx.PersonName),
		},
		PropNote: notionapi.RichTextProperty{
			RichText: richText(tx.Note),
		},
	}

	if tx.Kind != "" {
		props[PropType] = notionapi.SelectProperty{Select: notionapi.Option{Name: string(tx.Kind)}}
	}
	if tx.Category != "" {
		props[PropCategory] = notionapi.SelectProperty{Select: notionapi.Option{Name: tx.Category}}
	}
	if tx.PaymentMethod != "" {
		props[PropPaymentMethod] = notionapi.SelectProperty{Select: notionapi.Option{Name: string(tx.PaymentMethod)}}
	}

	// Dates that do not follow the ledger layout are left off the page.
	if t, err := time.Parse(domain.DateLayout, strings.TrimSpace(tx.Date)); err == nil {
		d := notionapi.Date(t)
		props[PropDate] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &d},
		}
	}

	return props
}

func pageTitle(tx domain.Transaction) string {
	if tx.Kind.IsDebt() && tx.PersonName != "" {
		return string(tx.Kind) + ": " + tx.PersonName
	}
	if tx.Category == "" {
		return string(tx.Kind)
	}
	return string(tx.Kind) + ": " + tx.Category
}

func richText(s string) []notionapi.RichText {
	if s == "" {
		return []notionapi.RichText{}
	}
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: s},
		},
	}
}

// PageToTransaction reads the mirrored fields back from a page.
func PageToTransaction(page notionapi.Page) domain.Transaction {
	tx := domain.Transaction{
		ID:            extractTransactionID(page),
		Kind:          domain.Kind(selectValue(page.Properties[PropType])),
		Category:      selectValue(page.Properties[PropCategory]),
		PaymentMethod: domain.PaymentMethod(selectValue(page.Properties[PropPaymentMethod])),
		PersonName:    plainText(page.Properties[PropPerson]),
		Note:          plainText(page.Properties[PropNote]),
	}

	switch p := page.Properties[PropAmount].(type) {
	case *notionapi.NumberProperty:
		tx.Amount = int64(p.Number)
	case notionapi.NumberProperty:
		tx.Amount = int64(p.Number)
	}

	var date *notionapi.DateObject
	switch p := page.Properties[PropDate].(type) {
	case *notionapi.DateProperty:
		date = p.Date
	case notionapi.DateProperty:
		date = p.Date
	}
	if date != nil && date.Start != nil {
		tx.Date = domain.FormatDate(time.Time(*date.Start))
	}
	return tx
}

// extractTransactionID returns the page's Transaction ID, or "" when the page has none.
func extractTransactionID(page notionapi.Page) string {
	return plainText(page.Properties[PropTransactionID])
}

func plainText(prop notionapi.Property) string {
	var parts []notionapi.RichText
	switch p := prop.(type) {
	case *notionapi.RichTextProperty:
		parts = p.RichText
	case notionapi.RichTextProperty:
		parts = p.RichText
	case *notionapi.TitleProperty:
		parts = p.Title
	case notionapi.TitleProperty:
		parts = p.Title
	}

	var b strings.Builder
	for _, rt := range parts {
		switch {
		case rt.PlainText != "":
			b.WriteString(rt.PlainText)
		case rt.Text != nil:
			b.WriteString(rt.Text.Content)
		}
	}
	return b.String()
}

func selectValue(prop notionapi.Property) string {
	switch p := prop.(type) {
	case *notionapi.SelectProperty:
		return p.Select.Name
	case notionapi.SelectProperty:
		return p.Select.Name
	}
	return ""
}

// inSync reports whether the page already mirrors tx.
func inSync(page notionapi.Page, tx domain.Transaction) bool {
	want := tx
	want.Date = ""
	if t, err := time.Parse(domain.DateLayout, strings.TrimSpace(tx.Date)); err == nil {
		want.Date = domain.FormatDate(t)
	}
	return PageToTransaction(page) == want
}
