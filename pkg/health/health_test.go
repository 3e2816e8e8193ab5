package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/host"
	"github.com/Ramsey-B/fern/pkg/redis"
)

func serve(t *testing.T, checker *Checker, path string) (int, Response) {
	t.Helper()
	e := echo.New()
	checker.RegisterRoutes(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestChecker_Healthy(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	client, err := redis.NewClient(context.Background(), redis.Config{Host: mr.Host(), Port: port},
		ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	checker := NewChecker("test")
	checker.AddCheck("redis", RedisCheck(client))
	checker.AddCheck("remote", ConnectionCheck(host.StaticConnection{BaseURL: "https://data.example.com", Token: "t"}))

	code, resp := serve(t, checker, "/api/v1/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, StatusHealthy, resp.Checks["redis"].Status)
	assert.Equal(t, StatusHealthy, resp.Checks["remote"].Status)

	mr.Close()
	code, resp = serve(t, checker, "/api/v1/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, StatusUnhealthy, resp.Checks["redis"].Status)
}

func TestChecker_MissingConnectionIsUnhealthy(t *testing.T) {
	checker := NewChecker("test")
	checker.AddCheck("remote", ConnectionCheck(host.StaticConnection{}))

	code, resp := serve(t, checker, "/api/v1/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, resp.Checks["remote"].Message, "not configured")
}

func TestChecker_OptionalFailureDegrades(t *testing.T) {
	checker := NewChecker("test")
	checker.AddOptionalCheck("kafka", func(context.Context) error { return errors.New("no brokers") })

	code, resp := serve(t, checker, "/api/v1/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusDegraded, resp.Status)
}

func TestChecker_Readiness(t *testing.T) {
	checker := NewChecker("test")

	code, resp := serve(t, checker, "/api/v1/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, StatusUnhealthy, resp.Checks["startup"].Status)

	checker.SetReady(true)
	code, _ = serve(t, checker, "/api/v1/health/ready")
	assert.Equal(t, http.StatusOK, code)

	code, resp = serve(t, checker, "/api/v1/health/live")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "test", resp.Version)
}
