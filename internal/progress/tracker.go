package progress

import (
	"maps"
	"sync"
	"time"
)

// Status represents the lifecycle state of a tracked job
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusError      Status = "ERROR"
)

// IsTerminal returns true for the two terminal states
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Snapshot is the immutable view passed to listeners on every mutation
type Snapshot struct {
	Progress float64                `json:"progress"`
	Status   Status                 `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Stage    string                 `json:"stage,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Elapsed  time.Duration          `json:"elapsed"`
}

// Listener receives a snapshot after each mutation
type Listener func(Snapshot)

// Tracker accumulates per-job progress and notifies listeners synchronously,
// in registration order, on every mutation. It is held in memory for the
// lifetime of one processing operation and never persisted.
type Tracker struct {
	mu         sync.Mutex
	stages     []string
	stageIndex int
	progress   float64
	status     Status
	message    string
	metadata   map[string]interface{}
	listeners  []Listener
	startedAt  time.Time
	finishedAt time.Time
}

// NewTracker creates a tracker over an ordered, tool-specific stage list.
// The initial state is PENDING at 0% with no stage entered.
func NewTracker(stages []string) *Tracker {
	return &Tracker{
		stages:     append([]string(nil), stages...),
		stageIndex: -1,
		status:     StatusPending,
		metadata:   map[string]interface{}{},
		startedAt:  time.Now(),
	}
}

// Subscribe registers a listener. Listeners are invoked synchronously and in
// registration order; there is no way to unsubscribe, matching the
// one-job-one-UI lifetime of a tracker.
func (t *Tracker) Subscribe(l Listener) {
	t.mu.Lock()
	t.listeners = append(t.listeners, l)
	t.mu.Unlock()
}

// SetProgress clamps value into [0,100] and moves a pending tracker to
// PROCESSING. An empty message keeps the current one.
func (t *Tracker) SetProgress(value float64, message string) {
	t.mu.Lock()
	t.progress = clamp(value)
	if message != "" {
		t.message = message
	}
	if t.status == StatusPending {
		t.status = StatusProcessing
	}
	t.notifyLocked()
}

// SetStage moves to a named stage and recomputes progress by linear
// interpolation across the stage list, so the first stage reports 0% and the
// last 100%. An unknown stage name leaves progress and stage untouched but
// still notifies.
func (t *Tracker) SetStage(stage string, message string) {
	t.mu.Lock()
	for i, s := range t.stages {
		if s == stage {
			t.stageIndex = i
			t.progress = t.stageProgressLocked(i)
			break
		}
	}
	if message != "" {
		t.message = message
	}
	if t.status == StatusPending {
		t.status = StatusProcessing
	}
	t.notifyLocked()
}

// NextStage advances to the stage after the current one; no-op at the last
// stage. A tracker that has not entered any stage starts at the first.
func (t *Tracker) NextStage(message string) {
	t.mu.Lock()
	if t.stageIndex < len(t.stages)-1 {
		t.stageIndex++
		t.progress = t.stageProgressLocked(t.stageIndex)
	}
	if message != "" {
		t.message = message
	}
	if t.status == StatusPending {
		t.status = StatusProcessing
	}
	t.notifyLocked()
}

// SetMetadata sets a single metadata key
func (t *Tracker) SetMetadata(key string, value interface{}) {
	t.mu.Lock()
	t.metadata[key] = value
	t.notifyLocked()
}

// UpdateMetadata merges key/value pairs into the metadata map
func (t *Tracker) UpdateMetadata(values map[string]interface{}) {
	t.mu.Lock()
	maps.Copy(t.metadata, values)
	t.notifyLocked()
}

// Complete forces status to COMPLETED and progress to 100, and freezes the
// elapsed clock. Terminal; re-entry is not guarded.
func (t *Tracker) Complete(message string) {
	t.mu.Lock()
	t.status = StatusCompleted
	t.progress = 100
	if message != "" {
		t.message = message
	}
	t.finishedAt = time.Now()
	t.metadata["elapsed_ms"] = t.finishedAt.Sub(t.startedAt).Milliseconds()
	t.notifyLocked()
}

// Error forces status to ERROR, merges metadata, and freezes the elapsed
// clock. Terminal; re-entry is not guarded.
func (t *Tracker) Error(message string, metadata map[string]interface{}) {
	t.mu.Lock()
	t.status = StatusError
	t.message = message
	maps.Copy(t.metadata, metadata)
	t.finishedAt = time.Now()
	t.metadata["elapsed_ms"] = t.finishedAt.Sub(t.startedAt).Milliseconds()
	t.notifyLocked()
}

// Reset returns the tracker to its initial state: PENDING, 0%, no stage,
// empty metadata, elapsed clock restarted. Listeners stay registered.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.stageIndex = -1
	t.progress = 0
	t.status = StatusPending
	t.message = ""
	t.metadata = map[string]interface{}{}
	t.startedAt = time.Now()
	t.finishedAt = time.Time{}
	t.notifyLocked()
}

// Snapshot returns the current state as an immutable copy
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Elapsed returns time since creation, frozen once the tracker is terminal
func (t *Tracker) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedLocked()
}

func (t *Tracker) elapsedLocked() time.Duration {
	if !t.finishedAt.IsZero() {
		return t.finishedAt.Sub(t.startedAt)
	}
	return time.Since(t.startedAt)
}

// stageProgressLocked interpolates stage index i across the stage list.
// A single-stage list is both first and last, so it reports 100.
func (t *Tracker) stageProgressLocked(i int) float64 {
	if len(t.stages) <= 1 {
		return 100
	}
	return float64(i) / float64(len(t.stages)-1) * 100
}

func (t *Tracker) snapshotLocked() Snapshot {
	var stage string
	if t.stageIndex >= 0 && t.stageIndex < len(t.stages) {
		stage = t.stages[t.stageIndex]
	}
	md := make(map[string]interface{}, len(t.metadata))
	maps.Copy(md, t.metadata)
	return Snapshot{
		Progress: t.progress,
		Status:   t.status,
		Message:  t.message,
		Stage:    stage,
		Metadata: md,
		Elapsed:  t.elapsedLocked(),
	}
}

// notifyLocked snapshots state, releases the lock, and invokes listeners in
// registration order. The lock is dropped first so a listener may read the
// tracker without deadlocking.
func (t *Tracker) notifyLocked() {
	snap := t.snapshotLocked()
	listeners := append([]Listener(nil), t.listeners...)
	t.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
