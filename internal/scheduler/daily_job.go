package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpipe/internal/pipeline"
)

// DailyPipelineConfig holds the dependencies for the daily pipeline job.
type DailyPipelineConfig struct {
	Orchestrator *pipeline.Orchestrator
	Force        bool
	Log          zerolog.Logger
}

// DailyPipelineJob runs the full ingestion and scoring pipeline once per
// trigger. Overlapping triggers are rejected: a run that outlives its
// schedule slot must never race a second run over the same rows.
type DailyPipelineJob struct {
	orchestrator *pipeline.Orchestrator
	force        bool
	running      atomic.Bool
	log          zerolog.Logger

	// OnSummary, when set, observes every completed run.
	OnSummary func(*pipeline.RunSummary)
}

// NewDailyPipelineJob creates the daily pipeline job.
func NewDailyPipelineJob(cfg DailyPipelineConfig) *DailyPipelineJob {
	return &DailyPipelineJob{
		orchestrator: cfg.Orchestrator,
		force:        cfg.Force,
		log:          cfg.Log.With().Str("job", "daily_pipeline").Logger(),
	}
}

// Running reports whether a run is currently in flight.
func (j *DailyPipelineJob) Running() bool {
	return j.running.Load()
}

// Name returns the job name.
func (j *DailyPipelineJob) Name() string {
	return "daily_pipeline"
}

// Run executes one pipeline cycle. Returns an error when the run hard
// stopped or a previous run is still in flight.
func (j *DailyPipelineJob) Run() error {
	if !j.running.CompareAndSwap(false, true) {
		j.log.Warn().Msg("Pipeline run already in progress, skipping trigger")
		return fmt.Errorf("pipeline run already in progress")
	}
	defer j.running.Store(false)

	summary := j.orchestrator.Run(context.Background(), j.force)
	if j.OnSummary != nil {
		j.OnSummary(summary)
	}
	if summary.HardStop {
		return fmt.Errorf("pipeline hard stopped: %s", summary.HardStopWhy)
	}
	return nil
}
