package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidstream/domain/dto"
	"vidstream/domain/models"
	"vidstream/domain/ports"
	"vidstream/domain/repositories"
	"vidstream/domain/services"
	"vidstream/interfaces/api/handlers"
	"vidstream/interfaces/api/middleware"
	"vidstream/interfaces/api/routes"
)

type fakeTrending struct {
	lastQuery  *dto.TrendingQuery
	err        error
	categories []string
}

func (f *fakeTrending) GetTrending(_ context.Context, q *dto.TrendingQuery) (*dto.TrendingListResponse, error) {
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return &dto.TrendingListResponse{
		Videos:    []dto.TrendingVideoResponse{{ID: uuid.New(), Title: "hit", TrendingScore: 0.8}},
		Total:     41,
		Limit:     20,
		Offset:    20,
		TimeRange: "today",
		Category:  "all",
	}, nil
}

func (f *fakeTrending) GetCategories(context.Context) ([]string, error) {
	return f.categories, f.err
}

type fakeStatus struct {
	video *models.Video
}

func (f *fakeStatus) GetProcessingStatus(_ context.Context, id uuid.UUID) (*dto.VideoStatusResponse, error) {
	if f.video == nil || f.video.ID != id {
		return nil, repositories.ErrVideoNotFound
	}
	return dto.VideoToStatusResponse(f.video), nil
}

func (f *fakeStatus) GetStats(context.Context) (*dto.ProcessingStatsResponse, error) {
	return &dto.ProcessingStatsResponse{Pending: 1, Ready: 3}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newApp(svcs *handlers.Services) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler()})
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware())
	routes.SetupRoutes(app, handlers.NewHandlers(svcs))
	return app
}

func do(t *testing.T, app *fiber.App, method, target string) (int, envelope) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	return resp.StatusCode, env
}

func TestGetTrending(t *testing.T) {
	trending := &fakeTrending{}
	app := newApp(&handlers.Services{TrendingQueryService: trending})

	status, env := do(t, app, "GET", "/api/v1/trending?category=music&timeRange=week&limit=20&offset=20")

	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)
	assert.Equal(t, "music", trending.lastQuery.Category)
	assert.Equal(t, "week", trending.lastQuery.TimeRange)
	assert.Equal(t, 20, trending.lastQuery.Offset)
	assert.Equal(t, float64(41), env.Meta["total"])
	assert.Equal(t, true, env.Meta["hasMore"])
}

func TestGetTrendingRejectsInvalidQuery(t *testing.T) {
	trending := &fakeTrending{}
	app := newApp(&handlers.Services{TrendingQueryService: trending})

	for _, target := range []string{
		"/api/v1/trending?timeRange=month",
		"/api/v1/trending?limit=500",
		"/api/v1/trending?limit=abc",
	} {
		status, env := do(t, app, "GET", target)
		assert.Equal(t, fiber.StatusBadRequest, status, target)
		assert.False(t, env.Success)
	}
	assert.Nil(t, trending.lastQuery)

	trending.err = fmt.Errorf("%w: offset", services.ErrInvalidQuery)
	status, _ := do(t, app, "GET", "/api/v1/trending")
	assert.Equal(t, fiber.StatusBadRequest, status)

	trending.err = errors.New("db down")
	status, env := do(t, app, "GET", "/api/v1/trending")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
}

func TestGetCategories(t *testing.T) {
	app := newApp(&handlers.Services{TrendingQueryService: &fakeTrending{categories: []string{"music", "sports"}}})

	status, env := do(t, app, "GET", "/api/v1/trending/categories")

	assert.Equal(t, fiber.StatusOK, status)
	var got []string
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, []string{"music", "sports"}, got)
}

func TestGetVideoStatus(t *testing.T) {
	video := &models.Video{ID: uuid.New(), Status: models.VideoStatusProcessing, ProcessingProgress: 70}
	app := newApp(&handlers.Services{VideoStatusService: &fakeStatus{video: video}})

	status, env := do(t, app, "GET", "/api/v1/videos/"+video.ID.String()+"/status")
	assert.Equal(t, fiber.StatusOK, status)
	var got dto.VideoStatusResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, models.VideoStatusProcessing, got.Status)
	assert.Equal(t, 70, got.Progress)

	status, _ = do(t, app, "GET", "/api/v1/videos/"+uuid.NewString()+"/status")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = do(t, app, "GET", "/api/v1/videos/nope/status")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = do(t, app, "GET", "/api/v1/videos/stats")
	assert.Equal(t, fiber.StatusOK, status)
}

type fakeQueue struct{}

func (fakeQueue) Enqueue(context.Context, *ports.ProcessingJob) error { return nil }
func (fakeQueue) GetQueueStatus(context.Context) (*ports.QueueStatus, error) {
	return &ports.QueueStatus{Driver: "rabbitmq", Queue: "media.processing", Pending: 2}, nil
}

func TestMonitoringAndHealth(t *testing.T) {
	app := newApp(&handlers.Services{
		JobQueue: fakeQueue{},
		HealthChecks: map[string]handlers.HealthCheck{
			"database": func(context.Context) error { return nil },
			"queue":    func(context.Context) error { return errors.New("connection closed") },
		},
	})

	status, env := do(t, app, "GET", "/api/v1/monitoring/queue")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(env.Data), "media.processing")

	status, _ = do(t, app, "GET", "/api/v1/monitoring/jobs")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	app := newApp(&handlers.Services{})

	status, env := do(t, app, "GET", "/api/v1/nothing-here")

	assert.Equal(t, fiber.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}
