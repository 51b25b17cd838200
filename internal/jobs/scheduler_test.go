package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type recordingPublisher struct {
	mu   sync.Mutex
	jobs []*SyncJob
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, job *SyncJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	job.JobID = "job-1"
	p.jobs = append(p.jobs, job)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestScheduler_Add(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantErr bool
		wantLen int
	}{
		{"nightly", "0 3 * * *", false, 1},
		{"descriptor", "@hourly", false, 1},
		{"empty disables", "", false, 0},
		{"seconds field rejected", "0 0 3 * * *", true, 0},
		{"garbage", "every night", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(&recordingPublisher{}, time.UTC, zerolog.Nop())
			err := s.Add(tt.spec, JobTypeSnapshotTables)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Add(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
			if s.Len() != tt.wantLen {
				t.Errorf("Expected %d entries, got %d", tt.wantLen, s.Len())
			}
		})
	}
}

func TestScheduler_Enqueue(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewScheduler(pub, time.UTC, zerolog.Nop())

	s.Enqueue(context.Background(), JobTypeMirrorLedgers)
	if len(pub.jobs) != 1 {
		t.Fatalf("Expected one published job, got %d", len(pub.jobs))
	}
	if got := pub.jobs[0]; got.Type != JobTypeMirrorLedgers || got.Trigger != "cron" {
		t.Errorf("Unexpected job: %+v", got)
	}

	pub.err = errors.New("queue is closed")
	s.Enqueue(context.Background(), JobTypeMirrorLedgers)
	if len(pub.jobs) != 1 {
		t.Errorf("Expected failed publish to be dropped, got %d jobs", len(pub.jobs))
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(&recordingPublisher{}, time.UTC, zerolog.Nop())
	if err := s.Add("@daily", JobTypeSnapshotTables); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	if ctx.Err() != nil {
		t.Error("Expected Stop to return before the deadline")
	}
}
