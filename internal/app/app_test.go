package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/esathiyasekhar/FinanceTracker/internal/bigquery"
	"github.com/esathiyasekhar/FinanceTracker/internal/config"
	"github.com/esathiyasekhar/FinanceTracker/internal/domain"
	"github.com/esathiyasekhar/FinanceTracker/internal/finance"
	"github.com/esathiyasekhar/FinanceTracker/internal/jobs"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memBlobs) Bucket() string { return "backups" }

func (m *memBlobs) Put(ctx context.Context, object string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[object] = data
	return nil
}

func (m *memBlobs) Get(ctx context.Context, object string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[object], nil
}

func (m *memBlobs) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for name := range m.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

type memLedger struct {
	rows []*bigquery.LedgerEventRow
}

func (m *memLedger) InsertLedgerEvents(ctx context.Context, rows []*bigquery.LedgerEventRow) error {
	m.rows = append(m.rows, rows...)
	return nil
}

func memoryConfig() config.Config {
	cfg := config.Default()
	cfg.Backend = config.BackendMemory
	cfg.Timezone = "UTC"
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.RateLimit.PerSecond = 0
	return cfg
}

func TestNew_DisabledFeatures(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, memoryConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close()

	if a.Archive != nil || a.Mirror != nil {
		t.Fatal("Expected snapshots and mirror to be disabled without a bucket or project")
	}
	if err := a.HandleJob(ctx, &jobs.SyncJob{Type: jobs.JobTypeSnapshotTables}); !errors.Is(err, ErrSnapshotsDisabled) {
		t.Errorf("Expected ErrSnapshotsDisabled, got %v", err)
	}
	if err := a.HandleJob(ctx, &jobs.SyncJob{Type: jobs.JobTypeMirrorLedgers}); !errors.Is(err, ErrMirrorDisabled) {
		t.Errorf("Expected ErrMirrorDisabled, got %v", err)
	}
}

func TestNew_InvalidTimezone(t *testing.T) {
	cfg := memoryConfig()
	cfg.Timezone = "Mars/Olympus"
	if _, err := New(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Error("Expected error for an unknown timezone")
	}
}

func TestHandleJob(t *testing.T) {
	ctx := context.Background()
	blobs := &memBlobs{objects: map[string][]byte{}}
	ledger := &memLedger{}

	a, err := New(ctx, memoryConfig(), zerolog.Nop(), WithBlobs(blobs), WithLedgerWriter(ledger))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close()

	if err := a.Provision(ctx); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	card, err := a.Service.AddCard(ctx, finance.CardInput{Name: "Visa", Limit: decimal.NewFromInt(100000)})
	if err != nil {
		t.Fatalf("AddCard failed: %v", err)
	}
	if _, err := a.Service.RecordCardPayment(ctx, finance.CardPaymentInput{
		CardID: card.ID,
		Period: domain.Period{Year: 2025, Month: time.October},
		Amount: decimal.NewFromInt(2500),
	}); err != nil {
		t.Fatalf("RecordCardPayment failed: %v", err)
	}

	snap := &jobs.SyncJob{Type: jobs.JobTypeSnapshotTables, Tables: []string{"Cards", "Card_Payments"}}
	if err := a.HandleJob(ctx, snap); err != nil {
		t.Fatalf("snapshot job failed: %v", err)
	}
	if snap.Result != "2 tables archived" || len(blobs.objects) != 2 {
		t.Errorf("Unexpected snapshot result %q with %d objects", snap.Result, len(blobs.objects))
	}

	all := &jobs.SyncJob{Type: jobs.JobTypeSnapshotTables}
	if err := a.HandleJob(ctx, all); err != nil {
		t.Fatalf("snapshot job failed: %v", err)
	}
	if want := len(TableNames()); len(blobs.objects) != 2+want {
		t.Errorf("Expected every table archived, got %d objects", len(blobs.objects))
	}

	mirror := &jobs.SyncJob{Type: jobs.JobTypeMirrorLedgers}
	if err := a.HandleJob(ctx, mirror); err != nil {
		t.Fatalf("mirror job failed: %v", err)
	}
	if mirror.Result != "1 ledger events mirrored" || len(ledger.rows) != 1 {
		t.Errorf("Unexpected mirror result %q with %d rows", mirror.Result, len(ledger.rows))
	}
	if ev := ledger.rows[0]; ev.EventType != bigquery.EventCardPayment || ev.SourceTable != "Card_Payments" {
		t.Errorf("Unexpected event: %+v", ev)
	}
}
