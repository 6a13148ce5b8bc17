// Package httpapi exposes the mailbox services over a Gmail-shaped
// REST surface. It is a thin decode/dispatch/encode layer; all
// semantics live in the services package.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/mailsim/gmailsim/internal/db"
	"github.com/mailsim/gmailsim/internal/mimeutil"
	"github.com/mailsim/gmailsim/internal/services"
	"github.com/mailsim/gmailsim/internal/store"
)

// Server routes Gmail API style requests to the service registry.
type Server struct {
	registry *services.Registry
	store    *store.Store
	queries  *db.QueryStore
	log      zerolog.Logger
}

// New creates the HTTP server. queries may be nil when no database is
// configured; the saved-query endpoints then return 503.
func New(registry *services.Registry, st *store.Store, queries *db.QueryStore, logger zerolog.Logger) *Server {
	return &Server{registry: registry, store: st, queries: queries, log: logger}
}

// Handler builds the full route table with CORS enabled for browser
// clients.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/reset", s.handleReset).Methods("POST")
	r.HandleFunc("/internal/verify", s.handleVerify).Methods("POST")

	u := r.PathPrefix("/gmail/v1/users/{userId}").Subrouter()

	u.HandleFunc("/profile", s.handleGetProfile).Methods("GET")
	u.HandleFunc("/watch", s.handleWatch).Methods("POST")
	u.HandleFunc("/stop", s.handleStop).Methods("POST")
	u.HandleFunc("/history", s.handleListHistory).Methods("GET")

	u.HandleFunc("/messages", s.handleListMessages).Methods("GET")
	u.HandleFunc("/messages", s.handleInsertMessage).Methods("POST")
	u.HandleFunc("/messages/send", s.handleSendMessage).Methods("POST")
	u.HandleFunc("/messages/import", s.handleImportMessage).Methods("POST")
	u.HandleFunc("/messages/batchModify", s.handleBatchModify).Methods("POST")
	u.HandleFunc("/messages/batchDelete", s.handleBatchDelete).Methods("POST")
	u.HandleFunc("/messages/{id}", s.handleGetMessage).Methods("GET")
	u.HandleFunc("/messages/{id}", s.handleDeleteMessage).Methods("DELETE")
	u.HandleFunc("/messages/{id}/modify", s.handleModifyMessage).Methods("POST")
	u.HandleFunc("/messages/{id}/trash", s.handleTrashMessage).Methods("POST")
	u.HandleFunc("/messages/{id}/untrash", s.handleUntrashMessage).Methods("POST")
	u.HandleFunc("/messages/{messageId}/attachments/{id}", s.handleGetAttachment).Methods("GET")

	u.HandleFunc("/drafts", s.handleListDrafts).Methods("GET")
	u.HandleFunc("/drafts", s.handleCreateDraft).Methods("POST")
	u.HandleFunc("/drafts/send", s.handleSendDraft).Methods("POST")
	u.HandleFunc("/drafts/{id}", s.handleGetDraft).Methods("GET")
	u.HandleFunc("/drafts/{id}", s.handleUpdateDraft).Methods("PUT")
	u.HandleFunc("/drafts/{id}", s.handleDeleteDraft).Methods("DELETE")

	u.HandleFunc("/threads", s.handleListThreads).Methods("GET")
	u.HandleFunc("/threads/{id}", s.handleGetThread).Methods("GET")
	u.HandleFunc("/threads/{id}", s.handleDeleteThread).Methods("DELETE")
	u.HandleFunc("/threads/{id}/modify", s.handleModifyThread).Methods("POST")
	u.HandleFunc("/threads/{id}/trash", s.handleTrashThread).Methods("POST")
	u.HandleFunc("/threads/{id}/untrash", s.handleUntrashThread).Methods("POST")

	u.HandleFunc("/labels", s.handleListLabels).Methods("GET")
	u.HandleFunc("/labels", s.handleCreateLabel).Methods("POST")
	u.HandleFunc("/labels/{id}", s.handleGetLabel).Methods("GET")
	u.HandleFunc("/labels/{id}", s.handleUpdateLabel).Methods("PUT")
	u.HandleFunc("/labels/{id}", s.handlePatchLabel).Methods("PATCH")
	u.HandleFunc("/labels/{id}", s.handleDeleteLabel).Methods("DELETE")

	s.settingsRoutes(u)

	r.HandleFunc("/internal/queries/{userId}", s.handleListQueries).Methods("GET")
	r.HandleFunc("/internal/queries/{userId}", s.handleSaveQuery).Methods("POST")
	r.HandleFunc("/internal/queries/{userId}/{id}", s.handleDeleteQuery).Methods("DELETE")

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}).Handler(r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.store.ResetDB()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	fix := r.URL.Query().Get("fix") == "true"
	report, err := s.registry.VerifyCounts(fix)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// writeJSON serializes one response body.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

// errorBody mirrors the Gmail API error envelope.
type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// writeError maps service errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	status := "INTERNAL"
	switch {
	case services.IsNotFound(err):
		code, status = http.StatusNotFound, "NOT_FOUND"
	case services.IsInvalidArgument(err):
		code, status = http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, services.ErrConflict):
		code, status = http.StatusConflict, "ABORTED"
	}
	var body errorBody
	body.Error.Code = code
	body.Error.Message = err.Error()
	body.Error.Status = status
	s.writeJSON(w, code, body)
}

// decodeBody reads and decodes a JSON request body, normalizing
// phone-shaped fields to E.164 on the way in.
func (s *Server) decodeBody(r *http.Request, v any) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return services.ErrInvalidInput
	}
	if len(data) == 0 {
		return nil
	}
	data = mimeutil.NormalizeJSONPhones(data)
	if err := json.Unmarshal(data, v); err != nil {
		return services.ErrInvalidInput
	}
	return nil
}

func userID(r *http.Request) string {
	return mux.Vars(r)["userId"]
}

func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}
