// Package notionsync mirrors the ledger into a Notion database, one page per transaction.
package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"

	"github.com/dvloznov/moliya/internal/domain"
)

// PageSize is the number of rows requested per database query.
const PageSize = 100

// Result counts what a sync did, or would do in dry-run mode.
type Result struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Archived int `json:"archived"`
	Failed   int `json:"failed"`
}

// Syncer mirrors transactions into one Notion database.
type Syncer struct {
	client     NotionService
	databaseID string
	logger     zerolog.Logger
}

// NewSyncer creates a syncer for databaseID.
func NewSyncer(client NotionService, databaseID string, logger zerolog.Logger) *Syncer {
	return &Syncer{client: client, databaseID: databaseID, logger: logger}
}

// SyncTransactions makes the database match txs:
//  1. pages without a Transaction ID, duplicates and pages for deleted
//     transactions are archived;
//  2. pages whose fields differ from the ledger are updated;
//  3. transactions without a page get one.
//
// Per-page API failures are logged and counted; only a failed database query
// aborts the run.
func (s *Syncer) SyncTransactions(ctx context.Context, txs []domain.Transaction, dryRun bool) (Result, error) {
	log := s.logger.With().Bool("dry_run", dryRun).Logger()
	log.Info().Int("transaction_count", len(txs)).Msg("starting Notion sync")

	pages, err := queryAllNotionPages(ctx, s.client, s.databaseID)
	if err != nil {
		return Result{}, fmt.Errorf("SyncTransactions: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("retrieved existing Notion pages")

	valid := make(map[string]bool, len(txs))
	for _, tx := range txs {
		valid[tx.ID] = true
	}

	var res Result
	existing := make(map[string]notionapi.Page, len(pages))
	for _, page := range pages {
		txID := extractTransactionID(page)
		if _, dup := existing[txID]; txID != "" && valid[txID] && !dup {
			existing[txID] = page
			continue
		}

		pageLog := log.With().Str("transaction_id", txID).Str("page_id", string(page.ID)).Logger()
		if dryRun {
			pageLog.Info().Msg("[DRY RUN] would archive stale Notion page")
			res.Archived++
			continue
		}
		if err := s.client.ArchivePage(ctx, string(page.ID)); err != nil {
			pageLog.Warn().Err(err).Msg("failed to archive stale Notion page")
			res.Failed++
			continue
		}
		pageLog.Debug().Msg("archived stale Notion page")
		res.Archived++
	}

	for _, tx := range txs {
		txLog := log.With().Str("transaction_id", tx.ID).Logger()

		page, ok := existing[tx.ID]
		switch {
		case ok && inSync(page, tx):
			res.Skipped++

		case ok:
			if dryRun {
				txLog.Info().Str("page_id", string(page.ID)).Msg("[DRY RUN] would update Notion page")
				res.Updated++
				continue
			}
			if _, err := s.client.UpdatePage(ctx, string(page.ID), TransactionToNotionProperties(tx)); err != nil {
				txLog.Warn().Err(err).Str("page_id", string(page.ID)).Msg("failed to update Notion page")
				res.Failed++
				continue
			}
			res.Updated++

		default:
			if dryRun {
				txLog.Info().Msg("[DRY RUN] would create Notion page")
				res.Created++
				continue
			}
			if _, err := s.client.CreatePage(ctx, s.databaseID, TransactionToNotionProperties(tx)); err != nil {
				txLog.Warn().Err(err).Msg("failed to create Notion page")
				res.Failed++
				continue
			}
			res.Created++
		}
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("skipped", res.Skipped).
		Int("archived", res.Archived).
		Int("failed", res.Failed).
		Msg("Notion sync completed")

	return res, nil
}

// queryAllNotionPages follows the query cursor until the database is exhausted.
func queryAllNotionPages(ctx context.Context, client NotionService, databaseID string) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: PageSize}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := client.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}
		pages = append(pages, resp.Results...)

		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		cursor = resp.NextCursor
	}
	return pages, nil
}
