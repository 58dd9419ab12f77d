package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/dronesphere-dev/dronesphere-agent/internal/config"
	"github.com/dronesphere-dev/dronesphere-agent/internal/models"
)

func newTestContext(t *testing.T) *AgentContext {
	t.Helper()
	return NewAgentContext(config.Default(), nil)
}

func TestHandlePing(t *testing.T) {
	ctx := newTestContext(t)
	req := httptest.NewRequest("GET", "/ping", nil)
	rw := httptest.NewRecorder()

	ctx.handlePing(rw, req)

	if rw.Code != 200 {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rw.Body).Decode(&body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if _, ok := body["pong"]; !ok {
		t.Error("expected a pong field in the response")
	}
}

func TestHandleHealth_ReportsDisconnectedBackend(t *testing.T) {
	ctx := newTestContext(t)
	req := httptest.NewRequest("GET", "/health", nil)
	rw := httptest.NewRecorder()

	ctx.handleHealth(rw, req)

	var body map[string]any
	if err := json.NewDecoder(rw.Body).Decode(&body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["backend_connected"] != false {
		t.Errorf("expected backend_connected=false before any Connect call, got %v", body["backend_connected"])
	}
}

func TestHandleCommandsGet_ListsRegisteredCommands(t *testing.T) {
	ctx := newTestContext(t)
	req := httptest.NewRequest("GET", "/commands", nil)
	rw := httptest.NewRecorder()

	ctx.handleCommandsGet(rw, req)

	var body struct {
		Commands []map[string]any `json:"commands"`
	}
	if err := json.NewDecoder(rw.Body).Decode(&body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if len(body.Commands) == 0 {
		t.Fatal("expected a non-empty command catalog")
	}
}

func TestHandleCommandsPost_RejectsWrongTargetDrone(t *testing.T) {
	ctx := newTestContext(t)

	other := 999
	reqBody, _ := json.Marshal(models.CommandRequest{
		Commands:    []models.Command{{Name: "wait", Params: map[string]any{"duration": 0.01}}},
		TargetDrone: &other,
	})

	req := httptest.NewRequest("POST", "/commands", bytes.NewReader(reqBody))
	rw := httptest.NewRecorder()

	ctx.handleCommandsPost(rw, req)

	if rw.Code != 400 {
		t.Fatalf("expected 400 for a mismatched target_drone, got %d", rw.Code)
	}
}

func TestHandleCommandsPost_RejectsMalformedBody(t *testing.T) {
	ctx := newTestContext(t)

	req := httptest.NewRequest("POST", "/commands", bytes.NewReader([]byte("not json")))
	rw := httptest.NewRecorder()

	ctx.handleCommandsPost(rw, req)

	if rw.Code != 400 {
		t.Fatalf("expected 400 for a malformed body, got %d", rw.Code)
	}
}
