package bqexport

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// Warehouse is the storage side of an export. It enables mocking of BigQuery in tests.
type Warehouse interface {
	// EnsureTable creates the dataset and table if they do not exist.
	EnsureTable(ctx context.Context) error

	// InsertRows streams rows into the export table.
	InsertRows(ctx context.Context, rows []*TransactionRow) error

	// CategoryTotals sums expense amounts per category for one export.
	CategoryTotals(ctx context.Context, exportID string) ([]CategoryTotalRow, error)

	Close() error
}

// BigQueryWarehouse is the BigQuery implementation of Warehouse.
type BigQueryWarehouse struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	tableID   string
}

// NewBigQueryWarehouse creates a BigQuery client for projectID.
func NewBigQueryWarehouse(ctx context.Context, projectID, datasetID, tableID string) (*BigQueryWarehouse, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryWarehouse: creating client: %w", err)
	}
	return &BigQueryWarehouse{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		tableID:   tableID,
	}, nil
}

func (w *BigQueryWarehouse) table() *bigquery.Table {
	return w.client.DatasetInProject(w.projectID, w.datasetID).Table(w.tableID)
}

func (w *BigQueryWarehouse) EnsureTable(ctx context.Context) error {
	ds := w.client.DatasetInProject(w.projectID, w.datasetID)
	if _, err := ds.Metadata(ctx); err != nil {
		if !isNotFound(err) {
			return fmt.Errorf("EnsureTable: dataset metadata: %w", err)
		}
		if err := ds.Create(ctx, &bigquery.DatasetMetadata{}); err != nil {
			return fmt.Errorf("EnsureTable: create dataset: %w", err)
		}
	}

	t := w.table()
	if _, err := t.Metadata(ctx); err == nil {
		return nil
	} else if !isNotFound(err) {
		return fmt.Errorf("EnsureTable: table metadata: %w", err)
	}

	schema, err := bigquery.InferSchema(TransactionRow{})
	if err != nil {
		return fmt.Errorf("EnsureTable: infer schema: %w", err)
	}
	meta := &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "exported_ts",
		},
	}
	if err := t.Create(ctx, meta); err != nil {
		return fmt.Errorf("EnsureTable: create table: %w", err)
	}
	return nil
}

func (w *BigQueryWarehouse) InsertRows(ctx context.Context, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := w.table().Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertRows: inserting rows: %w", err)
	}
	return nil
}

func (w *BigQueryWarehouse) CategoryTotals(ctx context.Context, exportID string) ([]CategoryTotalRow, error) {
	q := w.client.Query(fmt.Sprintf(`
		SELECT
		  category,
		  SUM(amount) AS total
		FROM `+"`%s.%s.%s`"+`
		WHERE export_id = @export_id
		  AND type = @expense_type
		GROUP BY category
		ORDER BY total DESC, category
	`, w.projectID, w.datasetID, w.tableID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "export_id", Value: exportID},
		{Name: "expense_type", Value: expenseType},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("CategoryTotals: query read: %w", err)
	}

	var rows []CategoryTotalRow
	for {
		var r CategoryTotalRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CategoryTotals: iter next: %w", err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func (w *BigQueryWarehouse) Close() error {
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
