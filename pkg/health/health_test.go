package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantryio/gantry/pkg/health"
	"github.com/gantryio/gantry/pkg/logger"
	"github.com/gantryio/gantry/test/testutil"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error { return s.err }

func newHealthRouter(t *testing.T, checks ...health.Checker) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	app := health.AppInfo{Name: "gantry", Version: "test", Environment: "test"}
	router.GET("/health", health.Handler(app, logger.NewNoop(), checks...))
	return router
}

func performHealth(t *testing.T, router *gin.Engine) (*httptest.ResponseRecorder, health.Report) {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var report health.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	return rec, report
}

func TestHealthAllReady(t *testing.T) {
	// Arrange
	db := testutil.NewTestDB(t)
	router := newHealthRouter(t,
		health.AppCheck{},
		health.NewDatabaseCheck(db),
		health.NewRedisCheck(stubPinger{}),
	)

	// Act
	rec, report := performHealth(t, router)

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gantry", report.App.Name)
	assert.Equal(t, map[string]bool{"app": true, "database": true, "redis": true}, report.Checks)
}

func TestHealthFailingCheckReturns503(t *testing.T) {
	// Arrange
	router := newHealthRouter(t,
		health.AppCheck{},
		health.NewRedisCheck(stubPinger{err: errors.New("connection refused")}),
	)

	// Act
	rec, report := performHealth(t, router)

	// Assert: the failing check is reported without its error detail.
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, report.Checks["redis"])
	assert.True(t, report.Checks["app"])
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestHealthClosedDatabaseFails(t *testing.T) {
	// Arrange
	db := testutil.NewTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	router := newHealthRouter(t, health.NewDatabaseCheck(db))

	// Act
	rec, report := performHealth(t, router)

	// Assert
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, report.Checks["database"])
}
