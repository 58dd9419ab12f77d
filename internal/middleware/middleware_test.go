package middleware

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLogging_RecordsStatusWrittenByHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rw := httptest.NewRecorder()
	handler.ServeHTTP(rw, req)

	if rw.Code != http.StatusTeapot {
		t.Fatalf("expected handler's status to pass through, got %d", rw.Code)
	}
	if buf.String() == "" {
		t.Fatal("expected a log line to be written")
	}
}

func TestCORS_RejectsDisallowedOrigin(t *testing.T) {
	handler := CORS([]string{"https://allowed.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://not-allowed.example")
	rw := httptest.NewRecorder()
	handler.ServeHTTP(rw, req)

	if rw.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("expected no Allow-Origin header for a disallowed origin")
	}
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	handler := CORS([]string{"https://allowed.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://allowed.example")
	rw := httptest.NewRecorder()
	handler.ServeHTTP(rw, req)

	if got := rw.Header().Get("Access-Control-Allow-Origin"); got != "https://allowed.example" {
		t.Errorf("expected origin echoed back, got %q", got)
	}
}

func TestRecovery_ConvertsPanicToInternalServerError(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	rw := httptest.NewRecorder()
	handler.ServeHTTP(rw, req)

	if rw.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after a panic, got %d", rw.Code)
	}
	if buf.String() == "" {
		t.Error("expected the panic to be logged")
	}
}

func TestCORS_HandlesPreflightWithoutCallingNext(t *testing.T) {
	called := false
	handler := CORS([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	rw := httptest.NewRecorder()
	handler.ServeHTTP(rw, req)

	if called {
		t.Error("expected OPTIONS preflight to short-circuit before reaching the handler")
	}
	if rw.Code != http.StatusOK {
		t.Errorf("expected preflight to return 200, got %d", rw.Code)
	}
}
