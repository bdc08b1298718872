// Package bqexport copies ledger snapshots into BigQuery for reporting.
package bqexport

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/moliya/internal/domain"
)

var expenseType = string(domain.KindExpense)

// Result summarises one export run.
type Result struct {
	ExportID       string             `json:"exportId"`
	Rows           int                `json:"rows"`
	CategoryTotals []CategoryTotalRow `json:"categoryTotals"`
}

// Exporter writes a full snapshot per run; every row carries the run's export_id.
type Exporter struct {
	warehouse Warehouse
	logger    zerolog.Logger
	now       func() time.Time
	newID     func() string
}

// NewExporter creates an exporter on top of warehouse.
func NewExporter(warehouse Warehouse, logger zerolog.Logger) *Exporter {
	return &Exporter{
		warehouse: warehouse,
		logger:    logger,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// Export ensures the table, inserts every transaction and reads back the
// per-category expense totals for this run.
func (e *Exporter) Export(ctx context.Context, txs []domain.Transaction) (Result, error) {
	exportID := e.newID()
	log := e.logger.With().Str("export_id", exportID).Logger()

	if err := e.warehouse.EnsureTable(ctx); err != nil {
		return Result{}, fmt.Errorf("Export: %w", err)
	}

	rows := ToRows(exportID, txs, e.now())
	if err := e.warehouse.InsertRows(ctx, rows); err != nil {
		return Result{}, fmt.Errorf("Export: %w", err)
	}
	log.Info().Int("rows", len(rows)).Msg("ledger rows exported")

	res := Result{ExportID: exportID, Rows: len(rows)}
	if len(rows) == 0 {
		return res, nil
	}

	totals, err := e.warehouse.CategoryTotals(ctx, exportID)
	if err != nil {
		return Result{}, fmt.Errorf("Export: %w", err)
	}
	res.CategoryTotals = totals
	return res, nil
}
