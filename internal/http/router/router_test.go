package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aanand-mishra/student-records-api/internal/config"
	"github.com/aanand-mishra/student-records-api/internal/http/middleware"
	"github.com/aanand-mishra/student-records-api/internal/service"
	"github.com/aanand-mishra/student-records-api/internal/storage/sqlite"
	"github.com/aanand-mishra/student-records-api/internal/types"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t   *testing.T
	srv *httptest.Server
}

func newTestServer(t *testing.T, limiter *middleware.RateLimiter) *testServer {
	t.Helper()

	cfg := &config.Config{Storage: config.Storage{Path: filepath.Join(t.TempDir(), "students.db")}}
	store, err := sqlite.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := New(Deps{
		Service:        service.NewStudentService(store, zap.NewNop()),
		Logger:         zap.NewNop(),
		Registry:       prometheus.NewRegistry(),
		AllowedOrigins: []string{"http://localhost:3000"},
		RateLimiter:    limiter,
	})

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testServer{t: t, srv: srv}
}

func (s *testServer) do(method, path, body string) (int, envelope) {
	s.t.Helper()

	req, err := http.NewRequest(method, s.srv.URL+path, strings.NewReader(body))
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.srv.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func studentOf(t *testing.T, env envelope) types.Student {
	t.Helper()
	var st types.Student
	require.NoError(t, json.Unmarshal(env.Data, &st))
	return st
}

func studentsOf(t *testing.T, env envelope) []types.Student {
	t.Helper()
	var list []types.Student
	require.NoError(t, json.Unmarshal(env.Data, &list))
	return list
}

func TestStudentLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	body := `{"name":"Ana Gomez","email":"ana@x.com","birthDate":"2000-01-01","program":"CS"}`

	code, env := s.do(http.MethodPost, "/api/students", body)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Student created successfully", env.Message)
	created := studentOf(t, env)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, types.NewDate(2000, 1, 1), created.BirthDate)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	code, env = s.do(http.MethodPost, "/api/students", body)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, env.Message, "already exists")

	code, env = s.do(http.MethodGet, "/api/students/email/ana@x.com", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Student found", env.Message)
	assert.Equal(t, created.ID, studentOf(t, env).ID)

	code, env = s.do(http.MethodPut, "/api/students/"+created.ID,
		`{"id":"ignored","name":"Ana Maria","email":"ana@x.com","birthDate":"1999-02-02","program":"Math"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Student updated successfully", env.Message)
	updated := studentOf(t, env)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Ana Maria", updated.Name)
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	code, env = s.do(http.MethodDelete, "/api/students/"+created.ID, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Student deleted successfully", env.Message)
	assert.Equal(t, "null", string(env.Data))

	code, env = s.do(http.MethodGet, "/api/students/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Student with ID "+created.ID+" not found", env.Message)
}

func TestQueries(t *testing.T) {
	s := newTestServer(t, nil)

	for _, body := range []string{
		`{"name":"Juan","email":"juan@x.com","birthDate":"1999-05-10","program":"CS"}`,
		`{"name":"Ana","email":"ana@x.com","birthDate":"2000-01-01","program":"CS"}`,
		`{"name":"ANA","email":"ANA@x.com","birthDate":"2000-12-31","program":"Law"}`,
	} {
		code, _ := s.do(http.MethodPost, "/api/students", body)
		require.Equal(t, http.StatusCreated, code)
	}

	code, env := s.do(http.MethodGet, "/api/students", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Retrieved 3 students", env.Message)

	_, env = s.do(http.MethodGet, "/api/students/program/CS", "")
	assert.Equal(t, "Found 2 students in program: CS", env.Message)

	_, env = s.do(http.MethodGet, "/api/students/count/program/CS", "")
	assert.Equal(t, "Student count for program CS: 2", env.Message)
	assert.Equal(t, "2", string(env.Data))

	_, env = s.do(http.MethodGet, "/api/students/search?name=an", "")
	assert.Equal(t, "Found 3 students matching: an", env.Message)

	_, env = s.do(http.MethodGet, "/api/students/birthdate-range?startDate=2000-01-01&endDate=2000-12-31", "")
	assert.Equal(t, "Found 2 students born between 2000-01-01 and 2000-12-31", env.Message)

	_, env = s.do(http.MethodGet, "/api/students/ordered-by-name", "")
	assert.Equal(t, "Retrieved 3 students ordered by name", env.Message)
	list := studentsOf(t, env)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"ANA", "Ana", "Juan"}, []string{list[0].Name, list[1].Name, list[2].Name})

	_, env = s.do(http.MethodGet, "/api/students/program/Medicine", "")
	assert.Equal(t, "[]", string(env.Data))
}

func TestHealthRouteIsNotAnID(t *testing.T) {
	s := newTestServer(t, nil)

	code, env := s.do(http.MethodGet, "/api/students/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, `"OK"`, string(env.Data))
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, nil)

	code, env := s.do(http.MethodGet, "/api/teachers", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodOptions, s.srv.URL+"/api/students", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestCORSDisallowedOrigin(t *testing.T) {
	s := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/api/students", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.example")

	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcardEchoesOrigin(t *testing.T) {
	h := newCORS([]string{"*"}).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/api/students", nil)
	req.Header.Set("Origin", "http://anywhere.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://anywhere.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "3600", rec.Header().Get("Access-Control-Max-Age"))
}

func TestEscapedPathParams(t *testing.T) {
	s := newTestServer(t, nil)

	code, env := s.do(http.MethodPost, "/api/students",
		`{"name":"Ana Gomez","email":"ana+cs@x.com","birthDate":"2000-01-01","program":"C++"}`)
	require.Equal(t, http.StatusCreated, code)
	created := studentOf(t, env)

	code, env = s.do(http.MethodGet, "/api/students/email/ana%2Bcs%40x.com", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Student found", env.Message)
	assert.Equal(t, created.ID, studentOf(t, env).ID)

	_, env = s.do(http.MethodGet, "/api/students/count/program/C%2B%2B", "")
	assert.Equal(t, "Student count for program C++: 1", env.Message)

	_, env = s.do(http.MethodGet, "/api/students/program/C%2B%2B", "")
	assert.Equal(t, "Found 1 students in program: C++", env.Message)

	// Already decoded by net/http; must not be unescaped twice.
	code, env = s.do(http.MethodGet, "/api/students/count/program/100%25", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Student count for program 100%: 0", env.Message)
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, nil)

	code, env := s.do(http.MethodPatch, "/api/students/abc", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	assert.False(t, env.Success)
	assert.Equal(t, "Method PATCH is not supported for /api/students/abc", env.Message)
}

func TestReadiness(t *testing.T) {
	s := newTestServer(t, nil)

	code, env := s.do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Database is reachable", env.Message)
	assert.Equal(t, `"OK"`, string(env.Data))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(http.MethodGet, "/api/students/health", "")

	resp, err := s.srv.Client().Get(s.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `student_records_http_requests_total{method="GET",path="/api/students/health",status="200"} 1`)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, middleware.NewRateLimiter(0.001, 1, zap.NewNop()))

	code, _ := s.do(http.MethodGet, "/api/students/health", "")
	assert.Equal(t, http.StatusOK, code)

	code, env := s.do(http.MethodGet, "/api/students/health", "")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.False(t, env.Success)
}
