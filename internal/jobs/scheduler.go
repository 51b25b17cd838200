package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler publishes jobs on cron schedules.
type Scheduler struct {
	cron      *cron.Cron
	publisher Publisher
	log       zerolog.Logger
}

// NewScheduler creates a scheduler whose specs are read in loc.
func NewScheduler(publisher Publisher, loc *time.Location, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		publisher: publisher,
		log:       log,
	}
}

// Add publishes a job of jobType on every tick of spec, a standard five
// field cron expression. An empty spec leaves the job unscheduled.
func (s *Scheduler) Add(spec string, jobType JobType) error {
	if spec == "" {
		s.log.Info().Str("job_type", string(jobType)).Msg("No schedule configured, job disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(spec, func() { s.Enqueue(context.Background(), jobType) }); err != nil {
		return fmt.Errorf("Add %s: invalid schedule %q: %w", jobType, spec, err)
	}
	s.log.Info().Str("job_type", string(jobType)).Str("schedule", spec).Msg("Job scheduled")
	return nil
}

// Enqueue publishes one job of jobType now.
func (s *Scheduler) Enqueue(ctx context.Context, jobType JobType) {
	job := &SyncJob{Type: jobType, Trigger: "cron"}
	if err := s.publisher.Publish(ctx, job); err != nil {
		s.log.Error().Err(err).Str("job_type", string(jobType)).Msg("Failed to publish scheduled job")
		return
	}
	s.log.Info().Str("job_id", job.JobID).Str("job_type", string(jobType)).Msg("Scheduled job published")
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Start runs the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for running ticks to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
