package engine

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trayyy/trayyy/backend-go/internal/progress"
	"github.com/trayyy/trayyy/backend-go/internal/tools"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSimulatedEngineWalksAllStages(t *testing.T) {
	tool := tools.Tool{
		ID:          "compress-pdf",
		Stages:      []string{"Uploading", "Compressing", "Finalizing"},
		OutputRatio: 0.5,
	}
	tracker := progress.NewTracker(tool.Stages)

	var visited []string
	tracker.Subscribe(func(s progress.Snapshot) {
		if s.Stage != "" && (len(visited) == 0 || visited[len(visited)-1] != s.Stage) {
			visited = append(visited, s.Stage)
		}
	})

	eng := NewSimulated(time.Millisecond, testLogger())
	result, err := eng.Run(context.Background(), Job{
		Tool:       tool,
		FileCount:  1,
		TotalBytes: 10 * 1024 * 1024,
	}, tracker)

	require.NoError(t, err)
	assert.Equal(t, tool.Stages, visited)
	assert.Equal(t, int64(5*1024*1024), result.OutputBytes)
}

func TestSimulatedEngineFabricatesOutputSize(t *testing.T) {
	tool := tools.Tool{
		ID:          "csv-to-json",
		Stages:      []string{"Parsing", "Finalizing"},
		OutputRatio: 1.4,
	}
	tracker := progress.NewTracker(tool.Stages)

	eng := NewSimulated(time.Millisecond, testLogger())
	result, err := eng.Run(context.Background(), Job{Tool: tool, FileCount: 1, TotalBytes: 1000}, tracker)

	require.NoError(t, err)
	assert.Equal(t, int64(1400), result.OutputBytes)
}

func TestSimulatedEngineNoStagesIsAnError(t *testing.T) {
	tool := tools.Tool{ID: "broken"}
	tracker := progress.NewTracker(nil)

	eng := NewSimulated(time.Millisecond, testLogger())
	_, err := eng.Run(context.Background(), Job{Tool: tool}, tracker)

	assert.Error(t, err)
}

func TestSimulatedEngineFinishesOnCancelledContext(t *testing.T) {
	// Cancellation shortens the sleeps but the job still runs to the end
	tool := tools.Tool{
		ID:          "merge-pdf",
		Stages:      []string{"Uploading", "Merging", "Finalizing"},
		OutputRatio: 1,
	}
	tracker := progress.NewTracker(tool.Stages)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := NewSimulated(10*time.Second, testLogger())

	start := time.Now()
	result, err := eng.Run(ctx, Job{Tool: tool, FileCount: 1, TotalBytes: 100}, tracker)

	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 100.0, tracker.Snapshot().Progress)
}

func TestStageDelayIsCapped(t *testing.T) {
	eng := NewSimulated(150*time.Millisecond, testLogger()).(*simulatedEngine)

	// 10 GB would be minutes uncapped
	assert.Equal(t, 3*time.Second, eng.stageDelay(10*1024*1024*1024))
	assert.Equal(t, 150*time.Millisecond, eng.stageDelay(0))
}
