package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Keys lists every document the store persists.
var Keys = []string{KeyTransactions, KeyPeople}

// MigrationReport says which documents Migrate copied.
type MigrationReport struct {
	Copied  []string `json:"copied"`
	Missing []string `json:"missing"`
}

// Migrate copies every ledger document from src to dst. Documents missing in
// src are skipped; documents that are not valid JSON abort the migration
// before anything is written. dst documents are overwritten.
func Migrate(ctx context.Context, src, dst Persister) (MigrationReport, error) {
	var report MigrationReport
	docs := make(map[string][]byte, len(Keys))

	for _, key := range Keys {
		data, err := src.Load(ctx, key)
		if errors.Is(err, ErrNotFound) {
			report.Missing = append(report.Missing, key)
			continue
		}
		if err != nil {
			return MigrationReport{}, fmt.Errorf("Migrate: load %s: %w", key, err)
		}
		if !json.Valid(data) {
			return MigrationReport{}, fmt.Errorf("Migrate: %s is not valid JSON", key)
		}
		docs[key] = data
	}

	for _, key := range Keys {
		data, ok := docs[key]
		if !ok {
			continue
		}
		if err := dst.Save(ctx, key, data); err != nil {
			return report, fmt.Errorf("Migrate: save %s: %w", key, err)
		}
		report.Copied = append(report.Copied, key)
	}
	return report, nil
}
