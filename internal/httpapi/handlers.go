package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	gmail "google.golang.org/api/gmail/v1"

	"github.com/mailsim/gmailsim/internal/services"
)

// messageRequest is the wire shape accepted by message and draft
// mutations: either a raw MIME blob or structured fields.
type messageRequest struct {
	Raw          string   `json:"raw,omitempty"`
	ThreadID     string   `json:"threadId,omitempty"`
	LabelIDs     []string `json:"labelIds,omitempty"`
	InternalDate string   `json:"internalDate,omitempty"`
	Sender       string   `json:"sender,omitempty"`
	Recipient    string   `json:"recipient,omitempty"`
	Cc           string   `json:"cc,omitempty"`
	Bcc          string   `json:"bcc,omitempty"`
	Subject      string   `json:"subject,omitempty"`
	Body         string   `json:"body,omitempty"`
	FilePaths    []string `json:"filePaths,omitempty"`
}

func (m messageRequest) input() services.MessageInput {
	return services.MessageInput{
		Sender:       m.Sender,
		Recipient:    m.Recipient,
		Cc:           m.Cc,
		Bcc:          m.Bcc,
		Subject:      m.Subject,
		Body:         m.Body,
		LabelIDs:     m.LabelIDs,
		ThreadID:     m.ThreadID,
		InternalDate: m.InternalDate,
		Raw:          m.Raw,
		FilePaths:    m.FilePaths,
	}
}

// listOptions extracts the shared list parameters from the query
// string.
func listOptions(r *http.Request) (services.ListOptions, error) {
	q := r.URL.Query()
	opts := services.ListOptions{
		Query:            q.Get("q"),
		PageToken:        q.Get("pageToken"),
		IncludeSpamTrash: q.Get("includeSpamTrash") == "true",
	}
	if ids, ok := q["labelIds"]; ok {
		for _, id := range ids {
			for _, part := range strings.Split(id, ",") {
				if part != "" {
					opts.LabelIDs = append(opts.LabelIDs, part)
				}
			}
		}
	}
	if raw := q.Get("maxResults"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			return opts, services.ErrInvalidInput
		}
		opts.MaxResults = n
	}
	return opts, nil
}

// Profile, watch, history.

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.registry.Profile.GetProfile(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	var req gmail.WatchRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	resp, err := s.registry.Profile.Watch(r.Context(), userID(r), &req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Profile.Stop(r.Context(), userID(r)); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := services.HistoryOptions{
		StartHistoryID: q.Get("startHistoryId"),
		LabelID:        q.Get("labelId"),
		PageToken:      q.Get("pageToken"),
		HistoryTypes:   q["historyTypes"],
	}
	if raw := q.Get("maxResults"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			s.writeError(w, services.ErrInvalidInput)
			return
		}
		opts.MaxResults = n
	}
	resp, err := s.registry.Profile.ListHistory(r.Context(), userID(r), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// Messages.

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp, err := s.registry.Messages.List(r.Context(), userID(r), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) sendLike(w http.ResponseWriter, r *http.Request,
	op func(services.MessageInput) (*gmail.Message, error)) {
	var req messageRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	m, err := op(req.input())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	s.sendLike(w, r, func(in services.MessageInput) (*gmail.Message, error) {
		return s.registry.Messages.Send(r.Context(), userID(r), in)
	})
}

func (s *Server) handleImportMessage(w http.ResponseWriter, r *http.Request) {
	s.sendLike(w, r, func(in services.MessageInput) (*gmail.Message, error) {
		return s.registry.Messages.Import(r.Context(), userID(r), in)
	})
}

func (s *Server) handleInsertMessage(w http.ResponseWriter, r *http.Request) {
	deleted := r.URL.Query().Get("deleted") == "true"
	s.sendLike(w, r, func(in services.MessageInput) (*gmail.Message, error) {
		return s.registry.Messages.Insert(r.Context(), userID(r), in, deleted)
	})
}

func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	m, err := s.registry.Messages.Get(r.Context(), userID(r), pathID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleModifyMessage(w http.ResponseWriter, r *http.Request) {
	var req gmail.ModifyMessageRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	m, err := s.registry.Messages.Modify(r.Context(), userID(r), pathID(r), req.AddLabelIds, req.RemoveLabelIds)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleTrashMessage(w http.ResponseWriter, r *http.Request) {
	m, err := s.registry.Messages.Trash(r.Context(), userID(r), pathID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleUntrashMessage(w http.ResponseWriter, r *http.Request) {
	m, err := s.registry.Messages.Untrash(r.Context(), userID(r), pathID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Messages.Delete(r.Context(), userID(r), pathID(r)); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleBatchModify(w http.ResponseWriter, r *http.Request) {
	var req gmail.BatchModifyMessagesRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.registry.Messages.BatchModify(r.Context(), userID(r), &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleBatchDelete(w http.ResponseWriter, r *http.Request) {
	var req gmail.BatchDeleteMessagesRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.registry.Messages.BatchDelete(r.Context(), userID(r), &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	body, err := s.registry.Messages.GetAttachment(r.Context(), vars["userId"], vars["messageId"], vars["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, body)
}

// Drafts.

type draftRequest struct {
	ID      string         `json:"id,omitempty"`
	Message messageRequest `json:"message"`
}

func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	d, err := s.registry.Drafts.Create(r.Context(), userID(r), req.Message.input())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	d, err := s.registry.Drafts.Update(r.Context(), userID(r), pathID(r), req.Message.input())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := s.registry.Drafts.Get(r.Context(), userID(r), pathID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp, err := s.registry.Drafts.List(r.Context(), userID(r), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Drafts.Delete(r.Context(), userID(r), pathID(r)); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleSendDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.ID == "" {
		s.writeError(w, services.ErrInvalidInput)
		return
	}
	m, err := s.registry.Drafts.Send(r.Context(), userID(r), req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

// Threads.

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp, err := s.registry.Threads.List(r.Context(), userID(r), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	t, err := s.registry.Threads.Get(r.Context(), userID(r), pathID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleModifyThread(w http.ResponseWriter, r *http.Request) {
	var req gmail.ModifyThreadRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	t, err := s.registry.Threads.Modify(r.Context(), userID(r), pathID(r), req.AddLabelIds, req.RemoveLabelIds)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTrashThread(w http.ResponseWriter, r *http.Request) {
	t, err := s.registry.Threads.Trash(r.Context(), userID(r), pathID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUntrashThread(w http.ResponseWriter, r *http.Request) {
	t, err := s.registry.Threads.Untrash(r.Context(), userID(r), pathID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Threads.Delete(r.Context(), userID(r), pathID(r)); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

// Labels.

func (s *Server) handleListLabels(w http.ResponseWriter, r *http.Request) {
	resp, err := s.registry.Labels.List(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateLabel(w http.ResponseWriter, r *http.Request) {
	var label gmail.Label
	if err := s.decodeBody(r, &label); err != nil {
		s.writeError(w, err)
		return
	}
	l, err := s.registry.Labels.Create(r.Context(), userID(r), &label)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleGetLabel(w http.ResponseWriter, r *http.Request) {
	l, err := s.registry.Labels.Get(r.Context(), userID(r), pathID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleUpdateLabel(w http.ResponseWriter, r *http.Request) {
	var label gmail.Label
	if err := s.decodeBody(r, &label); err != nil {
		s.writeError(w, err)
		return
	}
	l, err := s.registry.Labels.Update(r.Context(), userID(r), pathID(r), &label)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, l)
}

func (s *Server) handlePatchLabel(w http.ResponseWriter, r *http.Request) {
	var label gmail.Label
	if err := s.decodeBody(r, &label); err != nil {
		s.writeError(w, err)
		return
	}
	l, err := s.registry.Labels.Patch(r.Context(), userID(r), pathID(r), &label)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleDeleteLabel(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Labels.Delete(r.Context(), userID(r), pathID(r)); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}
