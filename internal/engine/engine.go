package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/trayyy/trayyy/backend-go/internal/progress"
	"github.com/trayyy/trayyy/backend-go/internal/tools"
)

// Job describes one processing request handed to an engine
type Job struct {
	Tool       tools.Tool
	FileCount  int
	TotalBytes int64
	PageCount  int
}

// Result is the outcome of a finished job. Output sizes are fabricated from
// the tool's output ratio; no real codec work happens here.
type Result struct {
	OutputBytes int64
	Pages       int
}

// Engine runs a job to completion, reporting through the tracker.
// Started jobs are not cancellable mid-run; the context only bounds the
// inter-stage delays during process shutdown.
type Engine interface {
	Run(ctx context.Context, job Job, tracker *progress.Tracker) (*Result, error)
}

type simulatedEngine struct {
	stepDelay time.Duration
	logger    *slog.Logger
}

// NewSimulated creates the stand-in engine used for every tool: it walks the
// tool's stage list with a size-proportional delay per stage and fabricates
// the output size.
func NewSimulated(stepDelay time.Duration, logger *slog.Logger) Engine {
	return &simulatedEngine{
		stepDelay: stepDelay,
		logger:    logger,
	}
}

func (e *simulatedEngine) Run(ctx context.Context, job Job, tracker *progress.Tracker) (*Result, error) {
	if len(job.Tool.Stages) == 0 {
		return nil, fmt.Errorf("tool %q has no stages configured", job.Tool.ID)
	}

	e.logger.Info("⚙️ [Engine] Starting job",
		"tool", job.Tool.ID,
		"file_count", job.FileCount,
		"total_bytes", job.TotalBytes,
	)

	tracker.UpdateMetadata(map[string]interface{}{
		"tool":        job.Tool.ID,
		"file_count":  job.FileCount,
		"input_bytes": job.TotalBytes,
	})

	delay := e.stageDelay(job.TotalBytes)
	for _, stage := range job.Tool.Stages {
		tracker.SetStage(stage, "")

		// The sleep is the simulation. It is shortened on shutdown but the
		// job still runs through all of its stages.
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}

	result := &Result{
		OutputBytes: int64(float64(job.TotalBytes) * job.Tool.OutputRatio),
		Pages:       job.PageCount,
	}

	tracker.SetMetadata("output_bytes", result.OutputBytes)

	e.logger.Info("✅ [Engine] Job finished",
		"tool", job.Tool.ID,
		"output_bytes", result.OutputBytes,
	)

	return result, nil
}

// stageDelay scales the per-stage sleep with input size, capped so large
// uploads don't stall the simulation for minutes
func (e *simulatedEngine) stageDelay(totalBytes int64) time.Duration {
	const perMB = 20 * time.Millisecond
	const maxDelay = 3 * time.Second

	delay := e.stepDelay + time.Duration(totalBytes/(1024*1024))*perMB
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}
