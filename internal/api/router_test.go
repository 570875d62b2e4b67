package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/trayyy/trayyy/backend-go/internal/config"
	"github.com/trayyy/trayyy/backend-go/internal/database/models"
	"github.com/trayyy/trayyy/backend-go/internal/database/repository"
	"github.com/trayyy/trayyy/backend-go/internal/database/service"
	"github.com/trayyy/trayyy/backend-go/internal/engine"
	"github.com/trayyy/trayyy/backend-go/internal/handler"
	"github.com/trayyy/trayyy/backend-go/internal/middleware"
	"github.com/trayyy/trayyy/backend-go/internal/worker"
)

func setupTestServer(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Task{},
		&models.UsageRecord{},
		&models.DailyUsage{},
	))

	cfg := &config.Config{
		JWTSecret:              "test-secret",
		AccessTokenExpiration:  900,
		RefreshTokenExpiration: 604800,
	}

	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	usageRepo := repository.NewUsageRepository(db)

	pool := worker.NewPool(logger)
	eng := engine.NewSimulated(time.Millisecond, logger)

	authService := service.NewAuthService(userRepo, refreshTokenRepo, cfg, logger)
	usageService := service.NewUsageService(usageRepo, middleware.NewNoOpRateLimiter(logger), nil, logger)
	taskService := service.NewTaskService(taskRepo, userRepo, usageService, eng, pool, logger)

	t.Cleanup(func() {
		pool.Shutdown(5 * time.Second)
	})

	return SetupRouter(
		handler.NewAuthHandler(authService, logger),
		handler.NewPlanHandler(),
		handler.NewToolHandler(),
		handler.NewTaskHandler(taskService, logger),
		handler.NewUserHandler(userRepo, usageService, logger),
		middleware.NewAuthMiddleware(authService, logger),
	)
}

func registerAndLogin(t *testing.T, r *gin.Engine) string {
	body, _ := json.Marshal(map[string]string{
		"username":  "alice",
		"email":     "alice@example.com",
		"full_name": "Alice",
		"password":  "password123",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func uploadFiles(t *testing.T, r *gin.Engine, token, toolID string, sizes ...int) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for i, size := range sizes {
		fw, err := mw.CreateFormFile("files", fmt.Sprintf("file%d.pdf", i))
		require.NoError(t, err)
		_, err = fw.Write(bytes.Repeat([]byte("a"), size))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tools/"+toolID+"/tasks", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	r := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPlansAreBrowsableWithoutAuth(t *testing.T) {
	r := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Plans []struct {
			Tier string `json:"tier"`
		} `json:"plans"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Plans, 3)
	assert.Equal(t, "FREE", resp.Plans[0].Tier)
}

func TestTrayAndToolCatalog(t *testing.T) {
	r := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trays", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/trays/pdf/tools", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/trays/video/tools", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTasksRequireAuth(t *testing.T) {
	r := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUploadAndTrackTask(t *testing.T) {
	r := setupTestServer(t)
	token := registerAndLogin(t, r)

	w := uploadFiles(t, r, token, "merge-pdf", 1024, 2048)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp struct {
		Task struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"task"`
		Progress *struct {
			Status string `json:"status"`
		} `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Task.ID)
	require.NotNil(t, resp.Progress)

	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+resp.Task.ID, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			return false
		}
		var got struct {
			Task struct {
				Status string `json:"status"`
			} `json:"task"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			return false
		}
		return got.Task.Status == "COMPLETED"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestUploadOversizedFileRejectedWithUpgradePrompt(t *testing.T) {
	r := setupTestServer(t)
	token := registerAndLogin(t, r)

	// 25 MB against the free tier's 20 MB cap
	w := uploadFiles(t, r, token, "merge-pdf", 25*1024*1024)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	var resp struct {
		Error           string   `json:"error"`
		UpgradeTriggers []string `json:"upgrade_triggers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.UpgradeTriggers, 1)
	assert.Contains(t, resp.UpgradeTriggers[0], "25 MB")
	assert.Contains(t, resp.UpgradeTriggers[0], "20 MB")
}

func TestUploadTooManyFilesRejected(t *testing.T) {
	r := setupTestServer(t)
	token := registerAndLogin(t, r)

	w := uploadFiles(t, r, token, "merge-pdf", 100, 100, 100, 100)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUploadToFeatureGatedTool(t *testing.T) {
	r := setupTestServer(t)
	token := registerAndLogin(t, r)

	w := uploadFiles(t, r, token, "ocr-pdf", 100)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUploadToUnknownTool(t *testing.T) {
	r := setupTestServer(t)
	token := registerAndLogin(t, r)

	w := uploadFiles(t, r, token, "fax-machine", 100)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMeAndUsageEndpoints(t *testing.T) {
	r := setupTestServer(t)
	token := registerAndLogin(t, r)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var me struct {
		Plan struct {
			Tier string `json:"tier"`
		} `json:"plan"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "FREE", me.Plan.Tier)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/me/usage", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var usage struct {
		PlanTier   string `json:"plan_tier"`
		DailyLimit int64  `json:"daily_limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &usage))
	assert.Equal(t, "FREE", usage.PlanTier)
	assert.Equal(t, int64(5), usage.DailyLimit)
}

func TestMetricsEndpoint(t *testing.T) {
	r := setupTestServer(t)

	// A counted request first, so the trayyy series exist
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "trayyy_http_requests_total")
}
