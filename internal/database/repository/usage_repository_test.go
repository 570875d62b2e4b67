package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/trayyy/trayyy/backend-go/internal/database/models"
)

func setupUsageDB(t *testing.T) UsageRepository {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.UsageRecord{}, &models.DailyUsage{})
	require.NoError(t, err)

	return NewUsageRepository(db)
}

func monthlyRec(userID uint, toolID string, files, bytes int64, succeeded bool) *models.UsageRecord {
	rec := &models.UsageRecord{
		UserID:     userID,
		ToolID:     toolID,
		ToolName:   toolID,
		Bucket:     models.MonthBucket(time.Now()),
		FileCount:  files,
		TotalBytes: bytes,
		DurationMS: 100,
		LastUsedAt: time.Now(),
	}
	if succeeded {
		rec.SuccessCount = 1
	} else {
		rec.ErrorCount = 1
	}
	return rec
}

func TestIncrementMonthlyCreatesOnFirstUse(t *testing.T) {
	repo := setupUsageDB(t)
	bucket := models.MonthBucket(time.Now())

	err := repo.IncrementMonthly(monthlyRec(1, "merge-pdf", 2, 1000, true))
	require.NoError(t, err)

	rec, err := repo.FindMonthly(1, "merge-pdf", bucket)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.FileCount)
	assert.Equal(t, int64(1000), rec.TotalBytes)
	assert.Equal(t, int64(1), rec.SuccessCount)
	assert.Equal(t, int64(0), rec.ErrorCount)
}

func TestIncrementMonthlyAccumulatesOntoExistingRow(t *testing.T) {
	repo := setupUsageDB(t)
	bucket := models.MonthBucket(time.Now())

	require.NoError(t, repo.IncrementMonthly(monthlyRec(1, "merge-pdf", 2, 1000, true)))
	require.NoError(t, repo.IncrementMonthly(monthlyRec(1, "merge-pdf", 3, 500, false)))

	rec, err := repo.FindMonthly(1, "merge-pdf", bucket)
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.FileCount)
	assert.Equal(t, int64(1500), rec.TotalBytes)
	assert.Equal(t, int64(1), rec.SuccessCount)
	assert.Equal(t, int64(1), rec.ErrorCount)

	// Still a single row, not a second one
	recs, err := repo.ListMonthly(1, bucket)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestIncrementMonthlySeparatesUsersToolsAndBuckets(t *testing.T) {
	repo := setupUsageDB(t)
	bucket := models.MonthBucket(time.Now())

	require.NoError(t, repo.IncrementMonthly(monthlyRec(1, "merge-pdf", 1, 100, true)))
	require.NoError(t, repo.IncrementMonthly(monthlyRec(1, "split-pdf", 1, 100, true)))
	require.NoError(t, repo.IncrementMonthly(monthlyRec(2, "merge-pdf", 1, 100, true)))

	recs, err := repo.ListMonthly(1, bucket)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = repo.ListMonthly(2, bucket)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRepeatedIncrementsLoseNothing(t *testing.T) {
	repo := setupUsageDB(t)
	bucket := models.MonthBucket(time.Now())

	// Every update must land: the increment is pushed down into the store,
	// never read-modify-write in the application
	for i := 0; i < 10; i++ {
		require.NoError(t, repo.IncrementMonthly(monthlyRec(1, "merge-pdf", 1, 10, true)))
	}

	rec, err := repo.FindMonthly(1, "merge-pdf", bucket)
	require.NoError(t, err)
	assert.Equal(t, int64(10), rec.FileCount)
	assert.Equal(t, int64(100), rec.TotalBytes)
	assert.Equal(t, int64(10), rec.SuccessCount)
}

func TestFindMonthlyMissingRecord(t *testing.T) {
	repo := setupUsageDB(t)

	_, err := repo.FindMonthly(99, "merge-pdf", models.MonthBucket(time.Now()))
	assert.ErrorIs(t, err, ErrUsageRecordNotFound)
}

func TestMonthlyTotalsSumsAcrossTools(t *testing.T) {
	repo := setupUsageDB(t)
	bucket := models.MonthBucket(time.Now())

	require.NoError(t, repo.IncrementMonthly(monthlyRec(1, "merge-pdf", 2, 1000, true)))
	require.NoError(t, repo.IncrementMonthly(monthlyRec(1, "split-pdf", 3, 2000, false)))

	totals, err := repo.MonthlyTotals(1, bucket)
	require.NoError(t, err)
	assert.Equal(t, int64(5), totals.FileCount)
	assert.Equal(t, int64(3000), totals.TotalBytes)
	assert.Equal(t, int64(1), totals.SuccessCount)
	assert.Equal(t, int64(1), totals.ErrorCount)
}

func TestMonthlyTotalsEmptyBucketIsZero(t *testing.T) {
	repo := setupUsageDB(t)

	totals, err := repo.MonthlyTotals(1, models.MonthBucket(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, int64(0), totals.FileCount)
	assert.Equal(t, int64(0), totals.TotalBytes)
}

func TestIncrementDaily(t *testing.T) {
	repo := setupUsageDB(t)
	day := models.DayBucket(time.Now())

	require.NoError(t, repo.IncrementDaily(1, day))
	require.NoError(t, repo.IncrementDaily(1, day))
	require.NoError(t, repo.IncrementDaily(1, day))

	used, err := repo.GetDailyTasks(1, day)
	require.NoError(t, err)
	assert.Equal(t, int64(3), used)
}

func TestGetDailyTasksMissingRowIsZero(t *testing.T) {
	repo := setupUsageDB(t)

	used, err := repo.GetDailyTasks(42, models.DayBucket(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)
}

func TestDailyCounterSeparatesDays(t *testing.T) {
	repo := setupUsageDB(t)

	today := models.DayBucket(time.Now())
	yesterday := models.DayBucket(time.Now().AddDate(0, 0, -1))

	require.NoError(t, repo.IncrementDaily(1, yesterday))
	require.NoError(t, repo.IncrementDaily(1, today))
	require.NoError(t, repo.IncrementDaily(1, today))

	used, err := repo.GetDailyTasks(1, today)
	require.NoError(t, err)
	assert.Equal(t, int64(2), used)

	used, err = repo.GetDailyTasks(1, yesterday)
	require.NoError(t, err)
	assert.Equal(t, int64(1), used)
}
