package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
)

const (
	ledgerEventsTable = "ledger_events"
	insertBatchSize   = 500
)

// BigQueryLedgerRepository is the concrete implementation of LedgerEventWriter
// that interacts with BigQuery. It holds a shared client.
type BigQueryLedgerRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewBigQueryLedgerRepository creates a repository writing to
// projectID.datasetID.ledger_events.
func NewBigQueryLedgerRepository(ctx context.Context, projectID, datasetID string) (*BigQueryLedgerRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryLedgerRepository: creating client: %w", err)
	}
	return &BigQueryLedgerRepository{client: client, projectID: projectID, datasetID: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryLedgerRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *BigQueryLedgerRepository) table() *bigquery.Table {
	// Fully qualified so the client's default project does not matter.
	return r.client.DatasetInProject(r.projectID, r.datasetID).Table(ledgerEventsTable)
}

// EnsureTable creates ledger_events, partitioned by event date, when it does
// not exist yet.
func (r *BigQueryLedgerRepository) EnsureTable(ctx context.Context) error {
	schema, err := bigquery.InferSchema(LedgerEventRow{})
	if err != nil {
		return fmt.Errorf("EnsureTable: inferring schema: %w", err)
	}
	meta := &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.MonthPartitioningType,
			Field: "event_date",
		},
	}
	err = r.table().Create(ctx, meta)
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
		return nil
	}
	if err != nil {
		return fmt.Errorf("EnsureTable: creating %s: %w", ledgerEventsTable, err)
	}
	return nil
}

// InsertLedgerEvents streams rows into ledger_events in batches.
func (r *BigQueryLedgerRepository) InsertLedgerEvents(ctx context.Context, rows []*LedgerEventRow) error {
	if len(rows) == 0 {
		return nil
	}
	inserter := r.table().Inserter()
	for _, batch := range savers(rows, insertBatchSize) {
		if err := inserter.Put(ctx, batch); err != nil {
			return fmt.Errorf("InsertLedgerEvents: inserting rows: %w", err)
		}
	}
	return nil
}

// savers wraps rows as value savers keyed by event ID, split into batches.
func savers(rows []*LedgerEventRow, size int) [][]*bigquery.StructSaver {
	var batches [][]*bigquery.StructSaver
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		batch := make([]*bigquery.StructSaver, 0, end-start)
		for _, row := range rows[start:end] {
			batch = append(batch, &bigquery.StructSaver{Struct: row, InsertID: row.EventID})
		}
		batches = append(batches, batch)
	}
	return batches
}
