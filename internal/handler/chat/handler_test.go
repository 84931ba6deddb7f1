package chat

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	chatmodel "github.com/praxislabs/praxis/backend/internal/model/chat"
	"github.com/praxislabs/praxis/backend/internal/service/ai"
	chatservice "github.com/praxislabs/praxis/backend/internal/service/chat"
	"github.com/praxislabs/praxis/backend/internal/store"
)

// mockGenerator replays canned fragments and records the arguments of the
// last call.
type mockGenerator struct {
	streaming bool
	chunks    []string
	initErr   error
	midErr    error

	gotSystem  string
	gotHistory []chatmodel.Message
	gotQuery   string
}

func (m *mockGenerator) StreamingEnabled() bool { return m.streaming }

func (m *mockGenerator) GenerateReply(_ context.Context, system string, history []chatmodel.Message, query string) (*schema.Message, error) {
	m.record(system, history, query)
	if m.initErr != nil {
		return nil, m.initErr
	}
	return schema.AssistantMessage(strings.Join(m.chunks, ""), nil), nil
}

func (m *mockGenerator) StreamReply(_ context.Context, system string, history []chatmodel.Message, query string) (*schema.StreamReader[*schema.Message], error) {
	m.record(system, history, query)
	if m.initErr != nil {
		return nil, m.initErr
	}

	reader, writer := schema.Pipe[*schema.Message](len(m.chunks) + 1)
	go func() {
		defer writer.Close()
		for _, chunk := range m.chunks {
			writer.Send(schema.AssistantMessage(chunk, nil), nil)
		}
		if m.midErr != nil {
			writer.Send(nil, m.midErr)
		}
	}()
	return reader, nil
}

func (m *mockGenerator) record(system string, history []chatmodel.Message, query string) {
	m.gotSystem = system
	m.gotHistory = append([]chatmodel.Message(nil), history...)
	m.gotQuery = query
}

func setupRouter(t *testing.T, generator Generator) (*chi.Mux, *chatservice.Service, chatmodel.User) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// A single connection keeps every statement on the same in-memory db.
	db.SetMaxOpenConns(1)

	if err := store.InitSchema(db); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	chatSvc := chatservice.NewService(db)
	user, err := chatSvc.CreateUser(context.Background(), "Ada", "ada@example.com")
	if err != nil {
		t.Fatalf("CreateUser err: %v", err)
	}

	resolver := ai.NewResolver(map[string]string{
		"fundamentals": "You teach prompting fundamentals.",
	}, "")

	handler := New(chatSvc, generator, resolver)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, chatSvc, user
}

func postMessage(t *testing.T, r http.Handler, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/message", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestSendMessageStreamsAndPersists(t *testing.T) {
	gen := &mockGenerator{streaming: true, chunks: []string{"Hello", ", ", "learner!"}}
	r, chatSvc, user := setupRouter(t, gen)

	resp := postMessage(t, r, map[string]string{
		"user_id":   user.ID,
		"module_id": "fundamentals",
		"message":   "hi",
	})

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.Code, resp.Body.String())
	}
	if got := resp.Body.String(); got != "Hello, learner!" {
		t.Fatalf("unexpected body: %q", got)
	}

	sessionID := resp.Header().Get("X-Session-ID")
	if sessionID == "" {
		t.Fatal("expected X-Session-ID header on a new session")
	}

	transcript, err := chatSvc.LoadTranscript(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(transcript) != 2 {
		t.Fatalf("expected user + assistant messages, got %d", len(transcript))
	}
	if transcript[0].Role != chatmodel.RoleUser || transcript[0].Content != "hi" {
		t.Fatalf("unexpected user turn: %+v", transcript[0])
	}
	if transcript[1].Role != chatmodel.RoleAssistant || transcript[1].Content != resp.Body.String() {
		t.Fatalf("persisted assistant turn does not match streamed body: %+v", transcript[1])
	}

	if gen.gotSystem != "You teach prompting fundamentals." {
		t.Fatalf("unexpected system instruction: %q", gen.gotSystem)
	}
	if len(gen.gotHistory) != 0 {
		t.Fatalf("first exchange should carry no prior turns, got %d", len(gen.gotHistory))
	}
	if gen.gotQuery != "hi" {
		t.Fatalf("unexpected query: %q", gen.gotQuery)
	}
}

func TestSendMessageSecondTurnCarriesHistory(t *testing.T) {
	gen := &mockGenerator{streaming: true, chunks: []string{"first reply"}}
	r, _, user := setupRouter(t, gen)

	resp := postMessage(t, r, map[string]string{
		"user_id":   user.ID,
		"module_id": "fundamentals",
		"message":   "first question",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	sessionID := resp.Header().Get("X-Session-ID")

	gen.chunks = []string{"second reply"}
	resp = postMessage(t, r, map[string]string{
		"user_id":    user.ID,
		"module_id":  "fundamentals",
		"message":    "second question",
		"session_id": sessionID,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Header().Get("X-Session-ID") != sessionID {
		t.Fatal("expected the existing session id to be echoed")
	}

	if len(gen.gotHistory) != 2 {
		t.Fatalf("expected 2 prior turns, got %d", len(gen.gotHistory))
	}
	if gen.gotHistory[0].Content != "first question" || gen.gotHistory[1].Content != "first reply" {
		t.Fatalf("unexpected prior turns: %+v", gen.gotHistory)
	}
	if gen.gotQuery != "second question" {
		t.Fatalf("unexpected query: %q", gen.gotQuery)
	}
}

func TestSendMessageUnknownModuleUsesDefaultInstruction(t *testing.T) {
	gen := &mockGenerator{streaming: true, chunks: []string{"ok"}}
	r, _, user := setupRouter(t, gen)

	resp := postMessage(t, r, map[string]string{
		"user_id":   user.ID,
		"module_id": "no-such-module",
		"message":   "hi",
	})

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if gen.gotSystem != ai.DefaultInstruction {
		t.Fatalf("expected default instruction, got %q", gen.gotSystem)
	}
}

func TestSendMessageUnknownSession(t *testing.T) {
	gen := &mockGenerator{streaming: true, chunks: []string{"ok"}}
	r, _, user := setupRouter(t, gen)

	resp := postMessage(t, r, map[string]string{
		"user_id":    user.ID,
		"module_id":  "fundamentals",
		"message":    "hi",
		"session_id": "missing",
	})

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestSendMessageGenerationFailureStreamsFallback(t *testing.T) {
	gen := &mockGenerator{streaming: true, initErr: errors.New("quota exceeded")}
	r, chatSvc, user := setupRouter(t, gen)

	resp := postMessage(t, r, map[string]string{
		"user_id":   user.ID,
		"module_id": "fundamentals",
		"message":   "hi",
	})

	if resp.Code != http.StatusOK {
		t.Fatalf("provider failure must not surface as an HTTP error, got %d", resp.Code)
	}

	body := resp.Body.String()
	if !strings.Contains(body, fallbackMarker) {
		t.Fatalf("expected fallback marker in body, got %q", body)
	}
	if !strings.Contains(body, "quota exceeded") {
		t.Fatalf("expected error detail in body, got %q", body)
	}

	transcript, err := chatSvc.LoadTranscript(context.Background(), resp.Header().Get("X-Session-ID"))
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(transcript) != 2 || transcript[1].Content != body {
		t.Fatalf("expected fallback text persisted as assistant turn, got %+v", transcript)
	}
}

func TestSendMessageMidStreamFailureKeepsPartialReply(t *testing.T) {
	gen := &mockGenerator{streaming: true, chunks: []string{"partial "}, midErr: errors.New("connection reset")}
	r, chatSvc, user := setupRouter(t, gen)

	resp := postMessage(t, r, map[string]string{
		"user_id":   user.ID,
		"module_id": "fundamentals",
		"message":   "hi",
	})

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Body.String() != "partial " {
		t.Fatalf("unexpected body: %q", resp.Body.String())
	}

	transcript, err := chatSvc.LoadTranscript(context.Background(), resp.Header().Get("X-Session-ID"))
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(transcript) != 2 || transcript[1].Content != "partial " {
		t.Fatalf("expected partial reply persisted, got %+v", transcript)
	}
}

func TestSendMessageWithoutGeneratorStreamsFallback(t *testing.T) {
	r, chatSvc, user := setupRouter(t, nil)

	resp := postMessage(t, r, map[string]string{
		"user_id":   user.ID,
		"module_id": "fundamentals",
		"message":   "hi",
	})

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), fallbackMarker) {
		t.Fatalf("expected fallback marker, got %q", resp.Body.String())
	}

	transcript, err := chatSvc.LoadTranscript(context.Background(), resp.Header().Get("X-Session-ID"))
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(transcript) != 2 {
		t.Fatalf("expected user + assistant messages, got %d", len(transcript))
	}
}

func TestSendMessageNonStreamingSingleChunk(t *testing.T) {
	gen := &mockGenerator{streaming: false, chunks: []string{"whole reply"}}
	r, chatSvc, user := setupRouter(t, gen)

	resp := postMessage(t, r, map[string]string{
		"user_id":   user.ID,
		"module_id": "fundamentals",
		"message":   "hi",
	})

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Body.String() != "whole reply" {
		t.Fatalf("unexpected body: %q", resp.Body.String())
	}

	transcript, err := chatSvc.LoadTranscript(context.Background(), resp.Header().Get("X-Session-ID"))
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(transcript) != 2 || transcript[1].Content != "whole reply" {
		t.Fatalf("unexpected transcript: %+v", transcript)
	}
}

func TestSendMessageEmptyTextAccepted(t *testing.T) {
	gen := &mockGenerator{streaming: true, chunks: []string{"ok"}}
	r, chatSvc, user := setupRouter(t, gen)

	resp := postMessage(t, r, map[string]string{
		"user_id":   user.ID,
		"module_id": "fundamentals",
		"message":   "",
	})

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	transcript, err := chatSvc.LoadTranscript(context.Background(), resp.Header().Get("X-Session-ID"))
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if transcript[0].Content != "" {
		t.Fatalf("expected empty user turn to be persisted as-is, got %q", transcript[0].Content)
	}
}

func TestGetHistoryUnknownSession(t *testing.T) {
	r, _, _ := setupRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/history/missing", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestGetHistoryEmptySession(t *testing.T) {
	r, chatSvc, user := setupRouter(t, nil)

	session, err := chatSvc.CreateSession(context.Background(), user.ID, "fundamentals")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/history/"+session.ID, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got := strings.TrimSpace(resp.Body.String()); got != "[]" {
		t.Fatalf("expected empty list, got %q", got)
	}
}

func TestGetHistoryReturnsOrderedTurns(t *testing.T) {
	gen := &mockGenerator{streaming: true, chunks: []string{"answer"}}
	r, _, user := setupRouter(t, gen)

	resp := postMessage(t, r, map[string]string{
		"user_id":   user.ID,
		"module_id": "fundamentals",
		"message":   "question",
	})
	sessionID := resp.Header().Get("X-Session-ID")

	req := httptest.NewRequest(http.MethodGet, "/history/"+sessionID, nil)
	histResp := httptest.NewRecorder()
	r.ServeHTTP(histResp, req)

	if histResp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", histResp.Code)
	}

	var turns []chatmodel.Message
	if err := json.Unmarshal(histResp.Body.Bytes(), &turns); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != chatmodel.RoleUser || turns[1].Role != chatmodel.RoleAssistant {
		t.Fatalf("unexpected turn order: %+v", turns)
	}
}
