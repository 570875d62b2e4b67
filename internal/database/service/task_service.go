package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trayyy/trayyy/backend-go/internal/access"
	"github.com/trayyy/trayyy/backend-go/internal/config"
	"github.com/trayyy/trayyy/backend-go/internal/database/models"
	"github.com/trayyy/trayyy/backend-go/internal/database/repository"
	"github.com/trayyy/trayyy/backend-go/internal/engine"
	"github.com/trayyy/trayyy/backend-go/internal/metrics"
	"github.com/trayyy/trayyy/backend-go/internal/progress"
	"github.com/trayyy/trayyy/backend-go/internal/tools"
	"github.com/trayyy/trayyy/backend-go/internal/worker"
)

// StartRequest describes the files a user wants to run through a tool
type StartRequest struct {
	FileCount  int
	TotalBytes int64
	// LargestFile is checked against the plan's per-file cap; the batch
	// total only feeds usage accounting
	LargestFile int64
	PageCount   int
}

// TaskView is a task row joined with its live progress while running
type TaskView struct {
	Task     *models.Task       `json:"task"`
	Progress *progress.Snapshot `json:"progress,omitempty"`
}

// TaskService orchestrates one conversion run: plan checks up front, then a
// persisted task row processed on the worker pool with in-memory progress.
type TaskService interface {
	StartTask(ctx context.Context, userID uint, toolID string, req StartRequest) (*TaskView, *access.Decision, error)
	GetTask(userID uint, taskID uuid.UUID) (*TaskView, error)
	ListTasks(userID uint, page, pageSize int) ([]models.Task, int64, error)
	// Subscribe attaches a listener to a running task's tracker
	Subscribe(taskID uuid.UUID, l progress.Listener) bool
}

type taskService struct {
	taskRepo repository.TaskRepository
	userRepo repository.UserRepository
	usage    UsageService
	eng      engine.Engine
	pool     *worker.Pool
	logger   *slog.Logger

	mu       sync.Mutex
	trackers map[uuid.UUID]*progress.Tracker
}

// NewTaskService creates a new task service instance
func NewTaskService(
	taskRepo repository.TaskRepository,
	userRepo repository.UserRepository,
	usage UsageService,
	eng engine.Engine,
	pool *worker.Pool,
	logger *slog.Logger,
) TaskService {
	return &taskService{
		taskRepo: taskRepo,
		userRepo: userRepo,
		usage:    usage,
		eng:      eng,
		pool:     pool,
		logger:   logger,
		trackers: map[uuid.UUID]*progress.Tracker{},
	}
}

// StartTask validates the request against the caller's plan and, if allowed,
// persists the task and schedules it. A denied decision is a normal return
// value with a nil error.
func (s *taskService) StartTask(ctx context.Context, userID uint, toolID string, req StartRequest) (*TaskView, *access.Decision, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, nil, err
	}

	tool, err := tools.Find(toolID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("🧰 [TaskService] Task requested",
		"user_id", userID,
		"tool", tool.ID,
		"file_count", req.FileCount,
		"total_bytes", req.TotalBytes,
	)

	// Feature gate before limits: a tool the plan lacks entirely is the
	// stronger denial
	if tool.RequiresFeature != "" {
		if decision := access.CheckFeature(user.PlanTier, tool.RequiresFeature); !decision.Allowed {
			metrics.LimitDenialsTotal.WithLabelValues("feature").Inc()
			return nil, &decision, nil
		}
	}

	largest := req.LargestFile
	if largest == 0 {
		largest = req.TotalBytes
	}
	if decision := access.Check(user.PlanTier, largest, req.FileCount, req.PageCount); !decision.Allowed {
		metrics.LimitDenialsTotal.WithLabelValues("plan_limit").Inc()
		return nil, &decision, nil
	}

	daily, err := s.usage.CheckDailyLimit(ctx, userID, user.PlanTier)
	if err != nil {
		return nil, nil, err
	}
	if !daily.CanProceed {
		metrics.LimitDenialsTotal.WithLabelValues("daily_limit").Inc()
		decision := access.Decision{
			Allowed: false,
			Kind:    access.DenyDailyLimit,
			Reason:  "Daily task limit reached",
			UpgradeTriggers: []string{
				dailyLimitTrigger(user.PlanTier, daily),
			},
		}
		return nil, &decision, nil
	}

	task := &models.Task{
		UserID:     userID,
		ToolID:     tool.ID,
		ToolName:   tool.Name,
		Status:     models.TaskStatusPending,
		FileCount:  req.FileCount,
		InputBytes: req.TotalBytes,
		PageCount:  req.PageCount,
	}
	if err := s.taskRepo.Create(task); err != nil {
		return nil, nil, err
	}

	tracker := progress.NewTracker(tool.Stages)
	s.mu.Lock()
	s.trackers[task.ID] = tracker
	s.mu.Unlock()

	s.pool.Submit(func(poolCtx context.Context) {
		s.run(poolCtx, task, tool, req, tracker)
	})

	snap := tracker.Snapshot()
	return &TaskView{Task: task, Progress: &snap}, nil, nil
}

// run executes one task on the worker pool. Usage recording is best-effort:
// its errors are logged, never allowed to change the task outcome.
func (s *taskService) run(ctx context.Context, task *models.Task, tool tools.Tool, req StartRequest, tracker *progress.Tracker) {
	started := time.Now()

	if err := s.taskRepo.MarkProcessing(task.ID); err != nil {
		s.logger.Error("❌ [TaskService] Failed to mark task processing",
			"task_id", task.ID,
			"error", err,
		)
	}

	job := engine.Job{
		Tool:       tool,
		FileCount:  req.FileCount,
		TotalBytes: req.TotalBytes,
		PageCount:  req.PageCount,
	}

	result, err := s.eng.Run(ctx, job, tracker)
	duration := time.Since(started)

	if err != nil {
		tracker.Error(err.Error(), nil)
		if dbErr := s.taskRepo.MarkError(task.ID, err.Error(), duration.Milliseconds()); dbErr != nil {
			s.logger.Error("❌ [TaskService] Failed to mark task error",
				"task_id", task.ID,
				"error", dbErr,
			)
		}
		metrics.TasksTotal.WithLabelValues(tool.ID, string(models.TaskStatusError)).Inc()

		if usageErr := s.usage.RecordUsage(ctx, task.UserID, tool, req.FileCount, req.TotalBytes, duration, false); usageErr != nil {
			s.logger.Warn("⚠️ [TaskService] Usage recording failed for errored task",
				"task_id", task.ID,
				"error", usageErr,
			)
		}

		s.logger.Warn("⚠️ [TaskService] Task failed",
			"task_id", task.ID,
			"tool", tool.ID,
			"error", err,
		)
		s.dropTracker(task.ID)
		return
	}

	tracker.Complete("Done")
	if dbErr := s.taskRepo.MarkCompleted(task.ID, result.OutputBytes, duration.Milliseconds()); dbErr != nil {
		s.logger.Error("❌ [TaskService] Failed to mark task completed",
			"task_id", task.ID,
			"error", dbErr,
		)
	}
	metrics.TasksTotal.WithLabelValues(tool.ID, string(models.TaskStatusCompleted)).Inc()
	metrics.TaskDuration.WithLabelValues(tool.ID).Observe(duration.Seconds())

	if usageErr := s.usage.RecordUsage(ctx, task.UserID, tool, req.FileCount, req.TotalBytes, duration, true); usageErr != nil {
		s.logger.Warn("⚠️ [TaskService] Usage recording failed for completed task",
			"task_id", task.ID,
			"error", usageErr,
		)
	}

	s.logger.Info("✅ [TaskService] Task completed",
		"task_id", task.ID,
		"tool", tool.ID,
		"duration_ms", duration.Milliseconds(),
		"output_bytes", result.OutputBytes,
	)
	s.dropTracker(task.ID)
}

func (s *taskService) GetTask(userID uint, taskID uuid.UUID) (*TaskView, error) {
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		// Hide other users' tasks entirely
		return nil, repository.ErrTaskNotFound
	}

	view := &TaskView{Task: task}

	s.mu.Lock()
	tracker, ok := s.trackers[taskID]
	s.mu.Unlock()
	if ok {
		snap := tracker.Snapshot()
		view.Progress = &snap
	}

	return view, nil
}

func (s *taskService) ListTasks(userID uint, page, pageSize int) ([]models.Task, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.taskRepo.ListByUser(userID, (page-1)*pageSize, pageSize)
}

func (s *taskService) Subscribe(taskID uuid.UUID, l progress.Listener) bool {
	s.mu.Lock()
	tracker, ok := s.trackers[taskID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	tracker.Subscribe(l)
	return true
}

func (s *taskService) dropTracker(taskID uuid.UUID) {
	s.mu.Lock()
	delete(s.trackers, taskID)
	s.mu.Unlock()
}

// dailyLimitTrigger phrases a daily-cap denial as an upgrade prompt
func dailyLimitTrigger(tier config.PlanTier, daily *DailyLimitResult) string {
	return fmt.Sprintf("You've used %d of %d daily tasks on the %s plan",
		daily.CurrentUsage, daily.Limit, tier)
}
