package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/trayyy/trayyy/backend-go/internal/access"
	"github.com/trayyy/trayyy/backend-go/internal/config"
	"github.com/trayyy/trayyy/backend-go/internal/database/models"
	"github.com/trayyy/trayyy/backend-go/internal/database/repository"
	"github.com/trayyy/trayyy/backend-go/internal/engine"
	"github.com/trayyy/trayyy/backend-go/internal/middleware"
	"github.com/trayyy/trayyy/backend-go/internal/progress"
	"github.com/trayyy/trayyy/backend-go/internal/worker"
)

type taskFixture struct {
	service  TaskService
	taskRepo repository.TaskRepository
	pool     *worker.Pool
	mr       *miniredis.Miniredis
	freeUser uint
	bizUser  uint
}

func setupTaskService(t *testing.T) *taskFixture {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// One shared connection: a second pooled conn would get its own empty
	// in-memory database, and the worker goroutine uses the pool too
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Task{},
		&models.UsageRecord{},
		&models.DailyUsage{},
	))

	free := &models.User{Username: "freeuser", Email: "free@example.com", FullName: "Free User", Password: "x", PlanTier: config.PlanFree, BillingStatus: config.BillingActive}
	biz := &models.User{Username: "bizuser", Email: "biz@example.com", FullName: "Biz User", Password: "x", PlanTier: config.PlanBusiness, BillingStatus: config.BillingActive}
	require.NoError(t, db.Create(free).Error)
	require.NoError(t, db.Create(biz).Error)

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	usageRepo := repository.NewUsageRepository(db)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	limiter := middleware.NewRateLimiterForTesting(
		redis.NewClient(&redis.Options{Addr: mr.Addr()}), logger)

	usage := NewUsageService(usageRepo, limiter, nil, logger)
	pool := worker.NewPool(logger)
	eng := engine.NewSimulated(time.Millisecond, logger)

	svc := NewTaskService(taskRepo, userRepo, usage, eng, pool, logger)

	t.Cleanup(func() {
		pool.Shutdown(5 * time.Second)
		limiter.Close()
		mr.Close()
	})

	return &taskFixture{
		service:  svc,
		taskRepo: taskRepo,
		pool:     pool,
		mr:       mr,
		freeUser: free.ID,
		bizUser:  biz.ID,
	}
}

const mb = 1024 * 1024

func TestStartTaskRunsToCompletion(t *testing.T) {
	f := setupTaskService(t)

	view, decision, err := f.service.StartTask(context.Background(), f.freeUser, "merge-pdf", StartRequest{
		FileCount:   2,
		TotalBytes:  4 * mb,
		LargestFile: 3 * mb,
	})
	require.NoError(t, err)
	require.Nil(t, decision)
	require.NotNil(t, view)
	assert.Equal(t, models.TaskStatusPending, view.Task.Status)
	require.NotNil(t, view.Progress)

	require.Eventually(t, func() bool {
		task, err := f.taskRepo.FindByID(view.Task.ID)
		return err == nil && task.Succeeded()
	}, 5*time.Second, 10*time.Millisecond)

	task, err := f.taskRepo.FindByID(view.Task.ID)
	require.NoError(t, err)
	assert.Greater(t, task.OutputBytes, int64(0))
	assert.GreaterOrEqual(t, task.DurationMS, int64(0))
}

func TestStartTaskDeniedOversizedFile(t *testing.T) {
	f := setupTaskService(t)

	view, decision, err := f.service.StartTask(context.Background(), f.freeUser, "merge-pdf", StartRequest{
		FileCount:   1,
		TotalBytes:  25 * mb,
		LargestFile: 25 * mb,
	})
	require.NoError(t, err)
	assert.Nil(t, view)
	require.NotNil(t, decision)
	assert.False(t, decision.Allowed)
	assert.Equal(t, access.DenyPlanLimit, decision.Kind)
	assert.Contains(t, decision.UpgradeTriggers[0], "25 MB")
}

func TestStartTaskDeniedFeatureGate(t *testing.T) {
	f := setupTaskService(t)

	// OCR needs the BUSINESS tier
	_, decision, err := f.service.StartTask(context.Background(), f.freeUser, "ocr-pdf", StartRequest{
		FileCount:  1,
		TotalBytes: mb,
	})
	require.NoError(t, err)
	require.NotNil(t, decision)
	assert.Equal(t, access.DenyFeature, decision.Kind)

	// The same request sails through on BUSINESS
	view, decision, err := f.service.StartTask(context.Background(), f.bizUser, "ocr-pdf", StartRequest{
		FileCount:  1,
		TotalBytes: mb,
	})
	require.NoError(t, err)
	assert.Nil(t, decision)
	assert.NotNil(t, view)
}

func TestStartTaskUnknownTool(t *testing.T) {
	f := setupTaskService(t)

	_, _, err := f.service.StartTask(context.Background(), f.freeUser, "fax-machine", StartRequest{
		FileCount:  1,
		TotalBytes: mb,
	})
	assert.Error(t, err)
}

func TestStartTaskDailyLimitExhausted(t *testing.T) {
	f := setupTaskService(t)

	// Burn through the free tier's daily allowance
	dailyKey := fmt.Sprintf("rate:daily:%d:%s", f.freeUser, time.Now().UTC().Format("2006-01-02"))
	for i := 0; i < 5; i++ {
		_, decision, err := f.service.StartTask(context.Background(), f.freeUser, "image-compress", StartRequest{
			FileCount:  1,
			TotalBytes: mb,
		})
		require.NoError(t, err)
		require.Nil(t, decision, "task %d should be allowed", i+1)

		// Wait for the finished run to land on the daily counter
		want := strconv.Itoa(i + 1)
		require.Eventually(t, func() bool {
			got, err := f.mr.Get(dailyKey)
			return err == nil && got == want
		}, 5*time.Second, 10*time.Millisecond)
	}

	_, decision, err := f.service.StartTask(context.Background(), f.freeUser, "image-compress", StartRequest{
		FileCount:  1,
		TotalBytes: mb,
	})
	require.NoError(t, err)
	require.NotNil(t, decision)
	assert.Equal(t, access.DenyDailyLimit, decision.Kind)
	assert.Contains(t, decision.UpgradeTriggers[0], "FREE")
}

func TestGetTaskHidesOtherUsersTasks(t *testing.T) {
	f := setupTaskService(t)

	view, _, err := f.service.StartTask(context.Background(), f.freeUser, "merge-pdf", StartRequest{
		FileCount:  1,
		TotalBytes: mb,
	})
	require.NoError(t, err)

	_, err = f.service.GetTask(f.bizUser, view.Task.ID)
	assert.ErrorIs(t, err, repository.ErrTaskNotFound)

	got, err := f.service.GetTask(f.freeUser, view.Task.ID)
	require.NoError(t, err)
	assert.Equal(t, view.Task.ID, got.Task.ID)
}

func TestGetTaskProgressGoneAfterCompletion(t *testing.T) {
	f := setupTaskService(t)

	view, _, err := f.service.StartTask(context.Background(), f.freeUser, "merge-pdf", StartRequest{
		FileCount:  1,
		TotalBytes: mb,
	})
	require.NoError(t, err)

	// The tracker is dropped once the run finishes; the row is the record
	require.Eventually(t, func() bool {
		got, err := f.service.GetTask(f.freeUser, view.Task.ID)
		return err == nil && got.Task.Succeeded() && got.Progress == nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSubscribeToRunningTask(t *testing.T) {
	f := setupTaskService(t)

	ok := f.service.Subscribe(uuid.New(), func(s progress.Snapshot) {})
	assert.False(t, ok, "subscribing to an unknown task should fail")
}

func TestListTasks(t *testing.T) {
	f := setupTaskService(t)

	for i := 0; i < 3; i++ {
		_, _, err := f.service.StartTask(context.Background(), f.freeUser, "merge-pdf", StartRequest{
			FileCount:  1,
			TotalBytes: mb,
		})
		require.NoError(t, err)
	}

	tasks, total, err := f.service.ListTasks(f.freeUser, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, tasks, 3)

	// Page bounds are normalized rather than rejected
	_, _, err = f.service.ListTasks(f.freeUser, -1, 0)
	assert.NoError(t, err)
}
