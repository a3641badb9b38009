package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/IDGHIM/TaskFlow/domain"
	"github.com/IDGHIM/TaskFlow/taskstore"
)

type mockAuth struct{}

func (mockAuth) UserIDFromAuthHeader(string) (string, error) { return "user", nil }

type denyAuth struct{}

func (denyAuth) UserIDFromAuthHeader(string) (string, error) {
	return "", errMissingAuthorization
}

type failingStores struct{}

func (failingStores) Get(context.Context, string) (*taskstore.Store, error) {
	return nil, errors.New("table unavailable")
}

type memDeduper struct {
	seen map[string]bool
	err  error
}

func (m *memDeduper) Add(ctx context.Context, userID, key string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	k := userID + ":" + key
	if m.seen[k] {
		return false, nil
	}
	m.seen[k] = true
	return true, nil
}

func quietLogger() *log.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func newRegistry() *taskstore.Registry {
	return taskstore.NewRegistry(taskstore.Config{
		Clock:    taskstore.FixedClock{T: time.Date(2025, 9, 19, 9, 0, 0, 0, time.UTC)},
		SeedDemo: true,
		Logger:   quietLogger(),
	})
}

func postJSON(t *testing.T, h echo.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/commands", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec
}

func decodeCommandResponse(t *testing.T, rec *httptest.ResponseRecorder) postCommandResponse {
	t.Helper()
	var resp postCommandResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v (%s)", err, rec.Body.String())
	}
	return resp
}

func TestGetTasksAppliesQuery(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/tasks?filter=active&search=r%C3%A9union", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := getTasks(newRegistry(), mockAuth{}, quietLogger())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var view domain.View
	if err := sonic.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(view.Tasks) != 1 || view.Tasks[0].ID != 3 {
		t.Fatalf("unexpected tasks: %#v", view.Tasks)
	}
	if view.FilterLabel != "Active" {
		t.Fatalf("unexpected filter label: %s", view.FilterLabel)
	}
	if view.Counts != (domain.Counts{Total: 3, Completed: 1, Pending: 2}) {
		t.Fatalf("unexpected counts: %+v", view.Counts)
	}
	if view.Tasks[0].ColorHint != domain.ColorHigh || view.Tasks[0].IsOverdue {
		t.Fatalf("unexpected derived attributes: %+v", view.Tasks[0])
	}
}

func TestGetTasksUnauthorized(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := httptest.NewRecorder()

	if err := getTasks(newRegistry(), denyAuth{}, quietLogger())(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestGetTasksStoreFailure(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := httptest.NewRecorder()

	if err := getTasks(failingStores{}, mockAuth{}, quietLogger())(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}

func TestPostCommandsAppliesInOrder(t *testing.T) {
	reg := newRegistry()
	body := `[
		{"type":"add","data":{"text":"  Écrire le rapport ","priority":"high","category":"travail","dueDate":"2025-09-30"}},
		{"type":"toggle","data":{"id":4}},
		{"type":"toggle","data":{"id":99}}
	]`
	rec := postJSON(t, postCommands(reg, mockAuth{}, nil, quietLogger()), body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeCommandResponse(t, rec)
	if len(resp.IdempotencyKeys) != 3 || resp.IdempotencyKeys[0] == "" {
		t.Fatalf("expected generated keys, got %v", resp.IdempotencyKeys)
	}
	if !resp.Results[0].Applied || !resp.Results[1].Applied || resp.Results[2].Applied {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
	if resp.Counts == nil || *resp.Counts != (domain.Counts{Total: 4, Completed: 2, Pending: 2}) {
		t.Fatalf("unexpected counts: %+v", resp.Counts)
	}

	store, _ := reg.Get(context.Background(), "user")
	first := store.Snapshot().Tasks[0]
	if first.ID != 4 || first.Text != "Écrire le rapport" || first.Category != domain.CategoryWork || !first.Completed {
		t.Fatalf("unexpected new task: %+v", first)
	}
}

func TestPostCommandsRemoveRequiresConfirm(t *testing.T) {
	reg := newRegistry()
	h := postCommands(reg, mockAuth{}, nil, quietLogger())

	resp := decodeCommandResponse(t, postJSON(t, h, `[{"type":"remove","data":{"id":1}}]`))
	if resp.Results[0].Applied {
		t.Fatal("unconfirmed remove must not apply")
	}
	resp = decodeCommandResponse(t, postJSON(t, h, `[{"type":"remove","data":{"id":1,"confirm":true}}]`))
	if !resp.Results[0].Applied || resp.Counts.Total != 2 {
		t.Fatalf("expected confirmed remove, got %+v counts=%+v", resp.Results, resp.Counts)
	}
}

func TestPostCommandsRejectsInvalidBatch(t *testing.T) {
	reg := newRegistry()
	h := postCommands(reg, mockAuth{}, nil, quietLogger())

	rec := postJSON(t, h, `[{"type":"toggle","data":{"id":1}},{"type":"explode"}]`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if resp := decodeCommandResponse(t, rec); !strings.Contains(resp.Error, "explode") {
		t.Fatalf("unexpected error: %q", resp.Error)
	}
	store, _ := reg.Get(context.Background(), "user")
	if task, _ := domain.Find(store.Snapshot().Tasks, 1); task.Completed {
		t.Fatal("batch must not be partially applied")
	}

	rec = postJSON(t, h, `{"type":"toggle"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-array body, got %d", rec.Code)
	}
	rec = postJSON(t, h, `[{"type":"toggle","extra":1}]`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestPostCommandsSkipsDuplicates(t *testing.T) {
	reg := newRegistry()
	h := postCommands(reg, mockAuth{}, &memDeduper{}, quietLogger())
	body := `[{"idempotencyKey":"k1","type":"toggle","data":{"id":1}}]`

	first := decodeCommandResponse(t, postJSON(t, h, body))
	if !first.Results[0].Applied || first.IdempotencyKeys[0] != "k1" {
		t.Fatalf("unexpected first result: %+v", first.Results)
	}
	second := decodeCommandResponse(t, postJSON(t, h, body))
	if second.Results[0].Applied || !second.Results[0].Duplicate {
		t.Fatalf("expected duplicate, got %+v", second.Results)
	}

	store, _ := reg.Get(context.Background(), "user")
	if task, _ := domain.Find(store.Snapshot().Tasks, 1); !task.Completed {
		t.Fatal("task 1 should have been toggled exactly once")
	}
}

func TestPostCommandsUnconfirmedRemoveKeepsKey(t *testing.T) {
	reg := newRegistry()
	h := postCommands(reg, mockAuth{}, &memDeduper{}, quietLogger())

	resp := decodeCommandResponse(t, postJSON(t, h, `[{"idempotencyKey":"k1","type":"remove","data":{"id":2}}]`))
	if resp.Results[0].Applied || resp.Results[0].Duplicate {
		t.Fatalf("unconfirmed remove must be a plain no-op, got %+v", resp.Results)
	}

	resp = decodeCommandResponse(t, postJSON(t, h, `[{"idempotencyKey":"k1","type":"remove","data":{"id":2,"confirm":true}}]`))
	if !resp.Results[0].Applied || resp.Results[0].Duplicate {
		t.Fatalf("confirmed retry must apply, got %+v", resp.Results)
	}
	if resp.Counts.Total != 2 {
		t.Fatalf("expected task 2 removed, counts=%+v", resp.Counts)
	}

	resp = decodeCommandResponse(t, postJSON(t, h, `[{"idempotencyKey":"k1","type":"remove","data":{"id":2,"confirm":true}}]`))
	if !resp.Results[0].Duplicate {
		t.Fatalf("expected duplicate after the key was used, got %+v", resp.Results)
	}
}

func TestPostCommandsDeduperFailureStillApplies(t *testing.T) {
	reg := newRegistry()
	h := postCommands(reg, mockAuth{}, &memDeduper{err: errors.New("redis down")}, quietLogger())

	resp := decodeCommandResponse(t, postJSON(t, h, `[{"idempotencyKey":"k1","type":"toggle","data":{"id":2}}]`))
	if !resp.Results[0].Applied {
		t.Fatalf("expected command to apply, got %+v", resp.Results)
	}
}

func TestPostCommandsEditFlow(t *testing.T) {
	reg := newRegistry()
	h := postCommands(reg, mockAuth{}, nil, quietLogger())
	body := `[
		{"type":"edit-start","data":{"id":1}},
		{"type":"edit-change","data":{"text":"Apprendre Go"}}
	]`
	postJSON(t, h, body)

	e := echo.New()
	rec := httptest.NewRecorder()
	if err := getEdit(reg, mockAuth{})(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/edit", nil), rec)); err != nil {
		t.Fatalf("get edit: %v", err)
	}
	var session domain.EditSession
	if err := sonic.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !session.Active || session.TaskID != 1 || session.Draft != "Apprendre Go" {
		t.Fatalf("unexpected session: %+v", session)
	}

	postJSON(t, h, `[{"type":"edit-commit"}]`)
	store, _ := reg.Get(context.Background(), "user")
	if task, _ := domain.Find(store.Snapshot().Tasks, 1); task.Text != "Apprendre Go" {
		t.Fatalf("unexpected text after commit: %q", task.Text)
	}
}

func TestPostCommandsGzipBody(t *testing.T) {
	e := echo.New()
	e.Use(GzipRequestMiddleware())
	Register(e, newRegistry(), mockAuth{}, nil, quietLogger())

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(`[{"type":"add","data":{"text":"zipped"}}]`)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/commands", &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeCommandResponse(t, rec); !resp.Results[0].Applied {
		t.Fatalf("expected add to apply: %+v", resp.Results)
	}
}

func TestGzipMiddlewareRejectsBadBody(t *testing.T) {
	e := echo.New()
	e.Use(GzipRequestMiddleware())
	e.POST("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("plain"))
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := taskstore.NewMetrics(reg)
	stores := taskstore.NewRegistry(taskstore.Config{Metrics: m, SeedDemo: true, Logger: quietLogger()})

	e := echo.New()
	Register(e, stores, mockAuth{}, nil, quietLogger())
	RegisterMetrics(e, reg)

	req := httptest.NewRequest(http.MethodPost, "/api/commands", strings.NewReader(`[{"type":"toggle","data":{"id":1}}]`))
	e.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `taskflow_commands_total{result="applied",type="toggle"} 1`) {
		t.Fatalf("missing command counter in:\n%s", body)
	}
	if !strings.Contains(body, "taskflow_stores 1") {
		t.Fatalf("missing store gauge in:\n%s", body)
	}
}

func TestHealthz(t *testing.T) {
	e := echo.New()
	Register(e, newRegistry(), mockAuth{}, nil, quietLogger())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}
