package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/parley/chat-relay/internal/clock"
	"github.com/parley/chat-relay/internal/message"
	"github.com/parley/chat-relay/internal/participant"
	"github.com/parley/chat-relay/internal/relay"
)

func newTestServer() *Server {
	clk := clock.NewFake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	registry := participant.NewMemoryRegistry(clk)
	msgLog := message.NewMemoryLog(clk)
	svc := relay.NewService(registry, msgLog, nil)
	return New(":0", svc)
}

func do(t *testing.T, s *Server, method, path, body, user string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req.Header.Set("User", user)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestJoinEndpoint(t *testing.T) {
	s := newTestServer()

	rec := do(t, s, http.MethodPost, "/participants", `{"name":"alice"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/participants", `{"name":"alice"}`, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate join, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/participants", `{"name":""}`, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 on empty name, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/participants", `not json`, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 on malformed body, got %d", rec.Code)
	}
}

func TestListParticipantsEndpoint(t *testing.T) {
	s := newTestServer()

	do(t, s, http.MethodPost, "/participants", `{"name":"alice"}`, "")

	rec := do(t, s, http.MethodGet, "/participants", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var members []participant.Participant
	if err := json.Unmarshal(rec.Body.Bytes(), &members); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(members) != 1 || members[0].Name != "alice" {
		t.Fatalf("expected [alice], got %v", members)
	}
	if members[0].LastActivity.IsZero() {
		t.Error("expected lastActivity to be set")
	}
}

func TestPostMessageEndpoint(t *testing.T) {
	s := newTestServer()

	do(t, s, http.MethodPost, "/participants", `{"name":"alice"}`, "")

	rec := do(t, s, http.MethodPost, "/messages", `{"to":"all","text":"hi","kind":"chat"}`, "alice")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/messages", `{"to":"all","text":"hi","kind":"bogus"}`, "alice")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 on bogus kind, got %d", rec.Code)
	}

	// Clients cannot author system status messages.
	rec = do(t, s, http.MethodPost, "/messages", `{"to":"all","text":"fake","kind":"status"}`, "alice")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 on client status kind, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/messages", `{"to":"all","text":"hi","kind":"chat"}`, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without User header, got %d", rec.Code)
	}
}

func TestListMessagesEndpoint(t *testing.T) {
	s := newTestServer()

	do(t, s, http.MethodPost, "/participants", `{"name":"alice"}`, "")
	for _, text := range []string{"one", "two", "three"} {
		do(t, s, http.MethodPost, "/messages", `{"to":"all","text":"`+text+`","kind":"chat"}`, "alice")
	}

	rec := do(t, s, http.MethodGet, "/messages", "", "alice")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var msgs []message.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	// Join notice plus three chat messages.
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[0].Kind != message.KindStatus {
		t.Errorf("expected the join notice first, got %+v", msgs[0])
	}

	rec = do(t, s, http.MethodGet, "/messages?limit=2", "", "alice")
	if err := json.Unmarshal(rec.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages with limit=2, got %d", len(msgs))
	}
	if msgs[0].Text != "two" || msgs[1].Text != "three" {
		t.Errorf("expected tail [two three], got [%s %s]", msgs[0].Text, msgs[1].Text)
	}

	rec = do(t, s, http.MethodGet, "/messages?limit=abc", "", "alice")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 on non-numeric limit, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/messages", "", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without User header, got %d", rec.Code)
	}
}

func TestHeartbeatEndpoint(t *testing.T) {
	s := newTestServer()

	rec := do(t, s, http.MethodPost, "/status", "", "ghost")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown participant, got %d", rec.Code)
	}

	do(t, s, http.MethodPost, "/participants", `{"name":"alice"}`, "")

	rec = do(t, s, http.MethodPost, "/status", "", "alice")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
