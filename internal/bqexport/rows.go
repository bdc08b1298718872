package bqexport

import (
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/moliya/internal/domain"
)

// TransactionRow is one ledger transaction in one export snapshot.
type TransactionRow struct {
	ExportID      string `bigquery:"export_id"`      // REQUIRED
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	Position      int64  `bigquery:"position"`       // 0 = most recent

	// TransactionDate is NULL when the display date cannot be parsed.
	TransactionDate bigquery.NullDate `bigquery:"transaction_date"`
	DisplayDate     string            `bigquery:"display_date"`

	Amount        int64  `bigquery:"amount"`
	Type          string `bigquery:"type"`
	Category      string `bigquery:"category"`
	PaymentMethod string `bigquery:"payment_method"`

	PersonName bigquery.NullString `bigquery:"person_name"`
	Note       bigquery.NullString `bigquery:"note"`

	ExportedTS time.Time `bigquery:"exported_ts"`
}

// CategoryTotalRow is one row of the per-category expense query.
type CategoryTotalRow struct {
	Category string `bigquery:"category"`
	Total    int64  `bigquery:"total"`
}

// ToRows maps the ledger to export rows, preserving order.
func ToRows(exportID string, txs []domain.Transaction, exportedAt time.Time) []*TransactionRow {
	rows := make([]*TransactionRow, 0, len(txs))
	for i, tx := range txs {
		rows = append(rows, &TransactionRow{
			ExportID:        exportID,
			TransactionID:   tx.ID,
			Position:        int64(i),
			TransactionDate: parseDisplayDate(tx.Date),
			DisplayDate:     tx.Date,
			Amount:          tx.Amount,
			Type:            string(tx.Kind),
			Category:        tx.Category,
			PaymentMethod:   string(tx.PaymentMethod),
			PersonName:      nullString(tx.PersonName),
			Note:            nullString(tx.Note),
			ExportedTS:      exportedAt.UTC(),
		})
	}
	return rows
}

func parseDisplayDate(s string) bigquery.NullDate {
	t, err := time.Parse(domain.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return bigquery.NullDate{}
	}
	return bigquery.NullDate{Date: civil.DateOf(t), Valid: true}
}

func nullString(s string) bigquery.NullString {
	s = strings.TrimSpace(s)
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
