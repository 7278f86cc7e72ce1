package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"fincore/internal/log"
	"fincore/internal/services"
)

// Job is a unit of scheduled work.
type Job interface {
	Run() error
	Name() string
}

// Scheduler runs jobs on cron schedules (with a seconds field).
type Scheduler struct {
	cron *cron.Cron
	log  *log.Logger
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.Default(log.ComponentScheduler),
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Scheduler stopped")
}

// AddJob registers job on schedule. Examples:
//   - "0 */15 * * * *"  every 15 minutes
//   - "@hourly"
//   - "@every 30s"
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug("Running job", "job", job.Name())
		if err := job.Run(); err != nil {
			s.log.Error("Job failed", "job", job.Name(), log.FieldError, err)
			return
		}
		s.log.Debug("Job completed", "job", job.Name())
	})
	if err != nil {
		return err
	}
	s.log.Info("Job registered", "schedule", schedule, "job", job.Name())
	return nil
}

// RunNow executes a job outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info("Running job immediately", "job", job.Name())
	return job.Run()
}

// ReconcileJob checks fund balances against the ledger, repairing drift
// when Repair is set.
type ReconcileJob struct {
	Reconciler *services.Reconciler
	Repair     bool
	Timeout    time.Duration
}

func (j *ReconcileJob) Name() string { return "reconcile_ledger" }

func (j *ReconcileJob) Run() error {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_, err := j.Reconciler.Run(ctx, j.Repair)
	return err
}
