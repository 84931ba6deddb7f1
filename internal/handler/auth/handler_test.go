package auth

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	chatservice "github.com/praxislabs/praxis/backend/internal/service/chat"
	"github.com/praxislabs/praxis/backend/internal/store"
)

func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	if err := store.InitSchema(db); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	handler := New(chatservice.NewService(db))
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func login(t *testing.T, r http.Handler, name, email string) *httptest.ResponseRecorder {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{"name": name, "email": email})
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestLoginCreatesUser(t *testing.T) {
	r := setupRouter(t)

	resp := login(t, r, "Ada", "ada@example.com")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["id"] == "" {
		t.Fatal("expected user id in response")
	}
	if body["name"] != "Ada" || body["email"] != "ada@example.com" {
		t.Fatalf("unexpected response: %v", body)
	}
}

func TestLoginRepeatReturnsSameUser(t *testing.T) {
	r := setupRouter(t)

	first := login(t, r, "Ada", "ada@example.com")
	second := login(t, r, "Someone Else", "ada@example.com")

	var firstBody, secondBody map[string]string
	if err := json.Unmarshal(first.Body.Bytes(), &firstBody); err != nil {
		t.Fatalf("decode first response: %v", err)
	}
	if err := json.Unmarshal(second.Body.Bytes(), &secondBody); err != nil {
		t.Fatalf("decode second response: %v", err)
	}

	if firstBody["id"] != secondBody["id"] {
		t.Fatalf("expected same id on repeated login, got %s and %s", firstBody["id"], secondBody["id"])
	}
	// The original registration wins; the name is not overwritten.
	if secondBody["name"] != "Ada" {
		t.Fatalf("unexpected name on repeated login: %s", secondBody["name"])
	}
}

func TestLoginMissingEmail(t *testing.T) {
	r := setupRouter(t)

	resp := login(t, r, "Ada", "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestLoginInvalidBody(t *testing.T) {
	r := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader([]byte("not json")))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
