package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"runbox/internal/exec/model"
	"runbox/internal/exec/result"
	appErr "runbox/pkg/errors"

	"github.com/gin-gonic/gin"
)

type fakeExecutor struct {
	lastReq model.ExecutionRequest
	res     result.ExecutionResult
	err     error
	langs   []string
}

func (f *fakeExecutor) Execute(ctx context.Context, req model.ExecutionRequest) (result.ExecutionResult, error) {
	f.lastReq = req
	return f.res, f.err
}

func (f *fakeExecutor) Languages() []string { return f.langs }

func newTestRouter(exec *fakeExecutor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewExecuteController(exec)
	r.POST("/execute", h.Execute)
	r.GET("/languages", h.Languages)
	r.GET("/health", h.Health)
	return r
}

func postExecute(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestExecuteSuccessShape(t *testing.T) {
	exec := &fakeExecutor{res: result.ExecutionResult{
		Stdout:     "Hello, World!\n",
		DurationMs: 245,
		ExitCode:   0,
	}}
	r := newTestRouter(exec)

	w := postExecute(t, r, `{"code":"print(\"Hello, World!\")","language":"python","input":""}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["stdout"] != "Hello, World!\n" || body["stderr"] != "" {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["executionTime"] != float64(245) || body["exitCode"] != float64(0) {
		t.Fatalf("unexpected body: %v", body)
	}
	if _, present := body["error"]; present {
		t.Fatalf("success must not carry an error field: %v", body)
	}

	if exec.lastReq.Code != `print("Hello, World!")` || exec.lastReq.Language != "python" {
		t.Fatalf("request not passed through: %+v", exec.lastReq)
	}
}

func TestExecuteBindsInputField(t *testing.T) {
	exec := &fakeExecutor{}
	r := newTestRouter(exec)

	postExecute(t, r, `{"code":"x","language":"python","input":"42\n"}`)
	if exec.lastReq.Stdin != "42\n" {
		t.Fatalf("input field not bound to stdin, got %q", exec.lastReq.Stdin)
	}
}

func TestExecuteRuntimeErrorIsStill200(t *testing.T) {
	exec := &fakeExecutor{res: result.ExecutionResult{
		Kind:     result.KindRuntime,
		Stderr:   "Traceback (most recent call last): ...",
		ExitCode: 1,
	}}
	r := newTestRouter(exec)

	w := postExecute(t, r, `{"code":"boom","language":"python"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("runtime failure is an outcome, not an HTTP error: %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["exitCode"] != float64(1) {
		t.Fatalf("unexpected exit code: %v", body["exitCode"])
	}
}

func TestExecuteTimeoutShape(t *testing.T) {
	exec := &fakeExecutor{res: result.ExecutionResult{
		Kind:       result.KindTimeout,
		Stdout:     "partial",
		DurationMs: 5003,
		ExitCode:   result.TimeoutExitCode,
		TimedOut:   true,
	}}
	r := newTestRouter(exec)

	w := postExecute(t, r, `{"code":"while True: pass","language":"python"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["timeout"] != true {
		t.Fatalf("expected timeout flag: %v", body)
	}
	if body["exitCode"] != float64(-1) {
		t.Fatalf("expected sentinel exit code: %v", body["exitCode"])
	}
	if body["stdout"] != "partial" {
		t.Fatalf("partial output must survive a timeout: %v", body)
	}
	if s, _ := body["error"].(string); s == "" {
		t.Fatalf("timeout must name itself in the error field: %v", body)
	}
}

func TestExecuteMalformedJSONIs400(t *testing.T) {
	r := newTestRouter(&fakeExecutor{})

	w := postExecute(t, r, `{"code": `)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["error"] == nil || body["error"] == "" {
		t.Fatalf("expected error message: %v", body)
	}
}

func TestExecuteValidationErrorStatus(t *testing.T) {
	exec := &fakeExecutor{
		res: result.ExecutionResult{Kind: result.KindValidation},
		err: appErr.New(appErr.LanguageNotSupported),
	}
	r := newTestRouter(exec)

	w := postExecute(t, r, `{"code":"x","language":"cobol"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestExecuteInfrastructureErrorStatus(t *testing.T) {
	exec := &fakeExecutor{
		res: result.ExecutionResult{Kind: result.KindInfrastructure},
		err: appErr.New(appErr.SandboxUnavailable),
	}
	r := newTestRouter(exec)

	w := postExecute(t, r, `{"code":"x","language":"python"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["error"] == nil || body["error"] == "" {
		t.Fatalf("expected error message: %v", body)
	}
}

func TestExecuteInfrastructureErrorKeepsPartialOutput(t *testing.T) {
	exec := &fakeExecutor{
		res: result.ExecutionResult{
			Kind:       result.KindInfrastructure,
			Stdout:     "printed before the daemon died",
			Stderr:     "docker: Error response from daemon: oops.",
			DurationMs: 1200,
			ExitCode:   125,
		},
		err: appErr.New(appErr.SandboxUnavailable),
	}
	r := newTestRouter(exec)

	w := postExecute(t, r, `{"code":"x","language":"python"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["stdout"] != "printed before the daemon died" {
		t.Fatalf("partial stdout must survive an infrastructure failure: %v", body)
	}
	if body["stderr"] != "docker: Error response from daemon: oops." {
		t.Fatalf("partial stderr must survive an infrastructure failure: %v", body)
	}
	if body["executionTime"] != float64(1200) {
		t.Fatalf("unexpected executionTime: %v", body["executionTime"])
	}
	if s, _ := body["error"].(string); s == "" {
		t.Fatalf("expected error message: %v", body)
	}
}

func TestLanguagesEndpoint(t *testing.T) {
	exec := &fakeExecutor{langs: []string{"c", "cpp", "go", "javascript", "python"}}
	r := newTestRouter(exec)

	req := httptest.NewRequest(http.MethodGet, "/languages", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	langs, ok := body["languages"].([]any)
	if !ok || len(langs) != 5 {
		t.Fatalf("unexpected languages: %v", body)
	}
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(&fakeExecutor{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "ok" || body["timestamp"] == nil {
		t.Fatalf("unexpected health body: %v", body)
	}
}
