package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/moliya/internal/bqexport"
	"github.com/dvloznov/moliya/internal/logger"
	"github.com/dvloznov/moliya/internal/notionsync"
)

var (
	ErrBigQueryNotConfigured = errors.New("BigQuery export requires MOLIYA_BQ_PROJECT")
	ErrNotionNotConfigured   = errors.New("Notion sync requires MOLIYA_NOTION_TOKEN and MOLIYA_NOTION_DB_ID")
)

type (
	warehouseFactory func(ctx context.Context) (bqexport.Warehouse, error)
	notionFactory    func() (notionsync.NotionService, error)
)

// WithWarehouse replaces the BigQuery warehouse used by ExportBigQuery.
func WithWarehouse(w bqexport.Warehouse) Option {
	return func(o *options) {
		o.warehouse = func(context.Context) (bqexport.Warehouse, error) { return w, nil }
	}
}

// WithNotion replaces the Notion client used by SyncNotion.
func WithNotion(s notionsync.NotionService) Option {
	return func(o *options) {
		o.notion = func() (notionsync.NotionService, error) { return s, nil }
	}
}

func (a *App) warehouse(ctx context.Context) (bqexport.Warehouse, error) {
	if a.opts.warehouse != nil {
		return a.opts.warehouse(ctx)
	}
	bq := a.Config.BigQuery
	if bq.ProjectID == "" {
		return nil, ErrBigQueryNotConfigured
	}
	return bqexport.NewBigQueryWarehouse(ctx, bq.ProjectID, bq.Dataset, bq.Table)
}

func (a *App) notion() (notionsync.NotionService, error) {
	if a.opts.notion != nil {
		return a.opts.notion()
	}
	n := a.Config.Notion
	if n.Token == "" || n.DatabaseID == "" {
		return nil, ErrNotionNotConfigured
	}
	return notionsync.NewNotionClient(n.Token), nil
}

// ExportBigQuery appends a snapshot of the ledger to the export table.
func (a *App) ExportBigQuery(ctx context.Context) (bqexport.Result, error) {
	wh, err := a.warehouse(ctx)
	if err != nil {
		return bqexport.Result{}, fmt.Errorf("App.ExportBigQuery: %w", err)
	}
	defer func() {
		if err := wh.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("failed to close BigQuery client")
		}
	}()

	exporter := bqexport.NewExporter(wh, logger.Component(a.Logger, "bqexport"))
	return exporter.Export(ctx, a.Store.Transactions())
}

// SyncNotion mirrors the ledger into the configured Notion database.
func (a *App) SyncNotion(ctx context.Context, dryRun bool) (notionsync.Result, error) {
	client, err := a.notion()
	if err != nil {
		return notionsync.Result{}, fmt.Errorf("App.SyncNotion: %w", err)
	}
	syncer := notionsync.NewSyncer(client, a.Config.Notion.DatabaseID, logger.Component(a.Logger, "notionsync"))
	return syncer.SyncTransactions(ctx, a.Store.Transactions(), dryRun)
}
