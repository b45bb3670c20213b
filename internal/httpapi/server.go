// Package httpapi is the routing and validation facade over the relay
// core. It maps the poll-based HTTP endpoints onto relay operations after
// structural validation and translates the relay error taxonomy to status
// codes: 409 for conflicts, 404 for unknown participants, 422 for
// validation failures, 500 otherwise.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/parley/chat-relay/internal/metrics"
	"github.com/parley/chat-relay/internal/relay"
)

// userHeader carries the requester identity on message and heartbeat
// endpoints.
const userHeader = "User"

// Server serves the relay HTTP API.
type Server struct {
	svc      *relay.Service
	validate *validator.Validate
	http     *http.Server
}

// New builds a server listening on addr.
func New(addr string, svc *relay.Service) *Server {
	s := &Server{
		svc:      svc,
		validate: validator.New(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /participants", s.handleJoin)
	mux.HandleFunc("GET /participants", s.handleListParticipants)
	mux.HandleFunc("POST /messages", s.handlePostMessage)
	mux.HandleFunc("GET /messages", s.handleListMessages)
	mux.HandleFunc("POST /status", s.handleHeartbeat)
	mux.Handle("GET /metrics", metrics.Handler())

	s.http = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Handler exposes the routing table for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	log.Printf("[http] listening on %s", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type joinRequest struct {
	Name string `json:"name" validate:"required,min=1"`
}

type postMessageRequest struct {
	To   string `json:"to" validate:"required,min=1"`
	Text string `json:"text" validate:"required,min=1"`
	Kind string `json:"kind" validate:"required,oneof=chat private_chat"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeValidationErrors(w, err)
		return
	}

	p, err := s.svc.Join(r.Context(), req.Name)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	members, err := s.svc.ListParticipants(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	from := r.Header.Get(userHeader)

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeValidationErrors(w, err)
		return
	}

	msg, err := s.svc.PostMessage(r.Context(), from, req.To, req.Text, req.Kind)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	user := r.Header.Get(userHeader)

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "limit must be an integer")
			return
		}
		limit = n
	}

	msgs, err := s.svc.ListMessagesFor(r.Context(), user, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	user := r.Header.Get(userHeader)

	if err := s.svc.Heartbeat(r.Context(), user); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// writeServiceError maps relay errors onto status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var verr *relay.ValidationError
	switch {
	case errors.Is(err, relay.ErrConflict):
		writeError(w, http.StatusConflict, "name already taken")
	case errors.Is(err, relay.ErrNotFound):
		writeError(w, http.StatusNotFound, "participant not found")
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("%s: %s", verr.Field, verr.Reason))
	default:
		log.Printf("[http] internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeValidationErrors reports each failing field of a request body.
func writeValidationErrors(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fmt.Sprintf("%s failed %s validation", strings.ToLower(fe.Field()), fe.Tag()))
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string][]string{"errors": details})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[http] encode response: %v", err)
	}
}
