package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"taskboard/internal/config"
	"taskboard/internal/db"
	"taskboard/internal/engine"
	"taskboard/internal/engine/auth"
	"taskboard/internal/migrate"
	"taskboard/internal/notify"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, settings *config.Config) (*testServer, func()) {
	t.Helper()
	if settings == nil {
		settings = config.Default()
		settings.Server.StaticDir = ""
	}
	conn, err := db.Open(db.Config{Path: filepath.Join(t.TempDir(), "tasks.db")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	logger := log.New(io.Discard, "", 0)
	gate := auth.Gate{
		Enabled:      settings.Security.Enabled,
		Password:     settings.Security.Password,
		PasswordHash: settings.Security.PasswordHash,
	}
	e := engine.New(conn, gate, notify.Webhook{Logger: logger})
	handler, err := New(Config{Engine: e, BasePath: "/api", Settings: settings, Logger: logger})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal %s: %v", string(data), err)
	}
	return out
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func TestProjectDeleteGuardedByTasks(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/projects", map[string]any{"name": "Website"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project status %d: %s", res.StatusCode, string(data))
	}
	project := decode[ProjectResponse](t, data)
	if project.Color != "#007bff" || project.ID == "" {
		t.Fatalf("unexpected project %+v", project)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks", map[string]any{
		"title":     "Landing page",
		"projectId": project.ID,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task status %d: %s", res.StatusCode, string(data))
	}
	task := decode[TaskResponse](t, data)
	if task.ProjectID == nil || *task.ProjectID != project.ID {
		t.Fatalf("task not assigned: %+v", task)
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/api/projects/"+project.ID, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 deleting referenced project, got %d: %s", res.StatusCode, string(data))
	}
	if env := decode[errorEnvelope](t, data); env.Error.Code != "conflict" {
		t.Fatalf("expected conflict code, got %+v", env)
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/api/tasks/"+task.ID, nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete task status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/api/projects/"+project.ID, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("delete project status %d: %s", res.StatusCode, string(data))
	}
	if ok := decode[SuccessResponse](t, data); !ok.Success {
		t.Fatalf("expected success body, got %s", string(data))
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/projects/"+project.ID, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected deleted project to be gone, got %d", res.StatusCode)
	}
}

func TestCreateTaskDefaultsAndValidation(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks", map[string]any{"title": "Buy milk"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}
	task := decode[TaskResponse](t, data)
	if task.Priority != "medium" || task.Status != "pending" || task.Description != "" || task.ProjectID != nil {
		t.Fatalf("defaults not applied: %+v", task)
	}
	if !strings.Contains(string(data), `"projectId":null`) {
		t.Fatalf("expected explicit null projectId: %s", string(data))
	}

	for name, body := range map[string]any{
		"empty title":     map[string]any{"title": ""},
		"blank title":     map[string]any{"title": "   "},
		"missing title":   map[string]any{"description": "x"},
		"bad priority":    map[string]any{"title": "x", "priority": "urgent"},
		"bad due date":    map[string]any{"title": "x", "dueDate": "tomorrow"},
		"unknown project": map[string]any{"title": "x", "projectId": "nope"},
		"empty body":      nil,
	} {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks", body)
		if res.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d: %s", name, res.StatusCode, string(data))
			continue
		}
		if env := decode[errorEnvelope](t, data); env.Error.Code != "bad_request" {
			t.Errorf("%s: expected bad_request, got %+v", name, env)
		}
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/tasks", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	if items := decode[[]TaskResponse](t, data); len(items) != 1 {
		t.Fatalf("rejected creates persisted rows: %d tasks", len(items))
	}
}

func TestUpdateTaskPartial(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/projects", map[string]any{"name": "Home"})
	project := decode[ProjectResponse](t, data)
	_, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks", map[string]any{
		"title":       "Paint fence",
		"description": "white",
		"priority":    "high",
		"dueDate":     "2030-01-31",
		"projectId":   project.ID,
	})
	created := decode[TaskResponse](t, data)

	res, data := doJSON(t, client, http.MethodPut, srv.URL+"/api/tasks/"+created.ID, map[string]any{"status": "in-progress"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update status %d: %s", res.StatusCode, string(data))
	}
	updated := decode[TaskResponse](t, data)
	if updated.Status != "in-progress" || updated.Title != "Paint fence" || updated.Priority != "high" || updated.DueDate != "2030-01-31" {
		t.Fatalf("omitted fields changed: %+v", updated)
	}
	if updated.ProjectID == nil || *updated.ProjectID != project.ID {
		t.Fatalf("omitted projectId changed: %+v", updated)
	}
	if updated.UpdatedAt <= created.UpdatedAt {
		t.Fatalf("updatedAt did not advance: %s -> %s", created.UpdatedAt, updated.UpdatedAt)
	}

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/api/tasks/"+created.ID, `{"projectId":null,"description":""}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("unassign status %d: %s", res.StatusCode, string(data))
	}
	cleared := decode[TaskResponse](t, data)
	if cleared.ProjectID != nil || cleared.Description != "" {
		t.Fatalf("expected unassigned task with cleared description: %+v", cleared)
	}

	res, _ = doJSON(t, client, http.MethodPut, srv.URL+"/api/tasks/"+created.ID, map[string]any{"status": "archived"})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodPut, srv.URL+"/api/tasks/missing", map[string]any{"title": "x"})
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing task, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodDelete, srv.URL+"/api/tasks/missing", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 deleting missing task, got %d", res.StatusCode)
	}
}

func TestUpdateTaskNullClearsFields(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks", map[string]any{
		"title":       "Renew passport",
		"description": "bring photos",
		"dueDate":     "2030-01-01",
	})
	created := decode[TaskResponse](t, data)

	res, data := doJSON(t, client, http.MethodPut, srv.URL+"/api/tasks/"+created.ID, `{"description":null,"dueDate":null}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update status %d: %s", res.StatusCode, string(data))
	}
	cleared := decode[TaskResponse](t, data)
	if cleared.Description != "" || cleared.DueDate != "" {
		t.Fatalf("expected description and dueDate cleared: %+v", cleared)
	}
	if cleared.Title != "Renew passport" {
		t.Fatalf("omitted title changed: %+v", cleared)
	}

	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/tasks/"+created.ID, nil)
	if stored := decode[TaskResponse](t, data); stored.Description != "" || stored.DueDate != "" {
		t.Fatalf("clear not persisted: %+v", stored)
	}
}

func TestOversizedBodyRejected(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	body := `{"title":"big","description":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks", body)
	if res.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d %s", res.StatusCode, string(data))
	}
	if env := decode[errorEnvelope](t, data); env.Error.Code == "" {
		t.Fatalf("expected error envelope: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/tasks", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list after rejected body: %d %s", res.StatusCode, string(data))
	}
	if items := decode[[]TaskResponse](t, data); len(items) != 0 {
		t.Fatalf("oversized task was stored: %+v", items)
	}
}

func TestListTasksFilters(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/projects", map[string]any{"name": "Work"})
	project := decode[ProjectResponse](t, data)
	doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks", map[string]any{"title": "a", "projectId": project.ID})
	doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks", map[string]any{"title": "b", "projectId": project.ID, "status": "completed"})
	doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks", map[string]any{"title": "c", "priority": "low"})

	cases := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?projectId=" + project.ID, 2},
		{"?unassigned=true", 1},
		{"?status=completed", 1},
		{"?projectId=" + project.ID + "&status=pending", 1},
		{"?priority=low", 1},
	}
	for _, tc := range cases {
		res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/tasks"+tc.query, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("%q: status %d: %s", tc.query, res.StatusCode, string(data))
		}
		if got := len(decode[[]TaskResponse](t, data)); got != tc.want {
			t.Errorf("%q: expected %d tasks, got %d", tc.query, tc.want, got)
		}
	}
}

func TestProjectUpdateStatsAndDescription(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/projects", map[string]any{
		"name":        "Launch",
		"description": "Q3",
		"color":       "#ff0000",
	})
	project := decode[ProjectResponse](t, data)
	for _, status := range []string{"pending", "pending", "completed"} {
		doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks", map[string]any{"title": status, "status": status, "projectId": project.ID})
	}

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/projects/"+project.ID+"/stats", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("stats status %d: %s", res.StatusCode, string(data))
	}
	stats := decode[StatsResponse](t, data)
	if stats != (StatsResponse{Total: 3, Pending: 2, InProgress: 0, Completed: 1}) {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !strings.Contains(string(data), `"in-progress":0`) {
		t.Fatalf("expected in-progress key: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/api/projects/"+project.ID, map[string]any{"name": "Launch v2"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update project status %d: %s", res.StatusCode, string(data))
	}
	updated := decode[ProjectResponse](t, data)
	if updated.Name != "Launch v2" || updated.Description != "Q3" || updated.Color != "#ff0000" {
		t.Fatalf("partial update lost fields: %+v", updated)
	}

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/api/projects/"+project.ID+"/description", map[string]any{"markdownDescription": "# Plan"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("description status %d: %s", res.StatusCode, string(data))
	}
	if p := decode[ProjectResponse](t, data); p.MarkdownDescription != "# Plan" || p.Name != "Launch v2" {
		t.Fatalf("unexpected project after description update: %+v", p)
	}

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/api/projects/"+project.ID+"/description", `{}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("empty description body status %d: %s", res.StatusCode, string(data))
	}
	if p := decode[ProjectResponse](t, data); p.MarkdownDescription != "" {
		t.Fatalf("expected description cleared by {}: %+v", p)
	}

	res, _ = doJSON(t, client, http.MethodPut, srv.URL+"/api/projects/missing/description", map[string]any{"markdownDescription": "x"})
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/api/projects", map[string]any{"name": " "})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank name, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodDelete, srv.URL+"/api/projects/missing", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 deleting missing project, got %d", res.StatusCode)
	}
}

func TestPasswordGate(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/auth", map[string]any{"password": "admin123"})
	if res.StatusCode != http.StatusOK || !decode[SuccessResponse](t, data).Success {
		t.Fatalf("correct password: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/auth", map[string]any{"password": "nope"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d %s", res.StatusCode, string(data))
	}
	if env := decode[errorEnvelope](t, data); env.Error.Code != "unauthorized" {
		t.Fatalf("unexpected error body %+v", env)
	}

	disabled := config.Default()
	disabled.Server.StaticDir = ""
	disabled.Security.Enabled = false
	open, cleanupOpen := newTestServer(t, disabled)
	defer cleanupOpen()
	res, data = doJSON(t, open.Client(), http.MethodPost, open.URL+"/api/auth", map[string]any{"password": "anything"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("disabled gate: expected 200, got %d %s", res.StatusCode, string(data))
	}
}

func TestPublicConfig(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/config", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("config status %d: %s", res.StatusCode, string(data))
	}
	if strings.Contains(string(data), "admin123") {
		t.Fatalf("config leaked password: %s", string(data))
	}
	cfg := decode[PublicConfigResponse](t, data)
	if !cfg.Security.Enabled || cfg.Security.SessionDuration != 24 || cfg.App.Version != "1.0.0" || cfg.App.Language != "zh-CN" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestTaskWebhook(t *testing.T) {
	var calls atomic.Int32
	var received map[string]any
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusForbidden)
	}))
	defer failing.Close()

	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()
	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks", map[string]any{"title": "Ship it"})
	task := decode[TaskResponse](t, data)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks/"+task.ID+"/webhook", map[string]any{"webhookUrl": hook.URL})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("webhook status %d: %s", res.StatusCode, string(data))
	}
	if ok := decode[SuccessResponse](t, data); !ok.Success || ok.Message == "" {
		t.Fatalf("unexpected body %s", string(data))
	}
	if calls.Load() != 1 || received["msgtype"] != "markdown" {
		t.Fatalf("expected one markdown call, got %d %v", calls.Load(), received)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks/"+task.ID+"/webhook", map[string]any{"webhookUrl": failing.URL})
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 for failing endpoint, got %d %s", res.StatusCode, string(data))
	}
	env := decode[errorEnvelope](t, data)
	if env.Error.Code != "webhook_failed" || !strings.Contains(env.Error.Message, "403") || !strings.Contains(env.Error.Message, "bad token") {
		t.Fatalf("failure not passed through: %+v", env)
	}

	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks/"+task.ID+"/webhook", map[string]any{})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without webhookUrl, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks/missing/webhook", map[string]any{"webhookUrl": hook.URL})
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing task, got %d", res.StatusCode)
	}
	if calls.Load() != 1 {
		t.Fatalf("unexpected extra webhook calls: %d", calls.Load())
	}
}

func TestHealthDocsAndStatic(t *testing.T) {
	static := t.TempDir()
	if err := os.WriteFile(filepath.Join(static, "index.html"), []byte("<h1>board</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	settings := config.Default()
	settings.Server.StaticDir = static
	srv, cleanup := newTestServer(t, settings)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/health", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), `"ok"`) {
		t.Fatalf("health: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/openapi.json", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "/api/tasks/{id}/webhook") {
		t.Fatalf("openapi: %d", res.StatusCode)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/docs", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "swagger-ui") {
		t.Fatalf("docs: %d", res.StatusCode)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "board") {
		t.Fatalf("static index: %d %s", res.StatusCode, string(data))
	}
}
