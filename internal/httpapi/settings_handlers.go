package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	gmail "google.golang.org/api/gmail/v1"

	"github.com/mailsim/gmailsim/internal/services"
)

// settingsRoutes attaches the per-user settings endpoints, including
// send-as aliases and their S/MIME certificates.
func (s *Server) settingsRoutes(u *mux.Router) {
	st := u.PathPrefix("/settings").Subrouter()

	st.HandleFunc("/imap", s.handleGetImap).Methods("GET")
	st.HandleFunc("/imap", s.handleUpdateImap).Methods("PUT")
	st.HandleFunc("/pop", s.handleGetPop).Methods("GET")
	st.HandleFunc("/pop", s.handleUpdatePop).Methods("PUT")
	st.HandleFunc("/vacation", s.handleGetVacation).Methods("GET")
	st.HandleFunc("/vacation", s.handleUpdateVacation).Methods("PUT")
	st.HandleFunc("/language", s.handleGetLanguage).Methods("GET")
	st.HandleFunc("/language", s.handleUpdateLanguage).Methods("PUT")
	st.HandleFunc("/autoForwarding", s.handleGetAutoForwarding).Methods("GET")
	st.HandleFunc("/autoForwarding", s.handleUpdateAutoForwarding).Methods("PUT")

	st.HandleFunc("/sendAs", s.handleListSendAs).Methods("GET")
	st.HandleFunc("/sendAs", s.handleCreateSendAs).Methods("POST")
	st.HandleFunc("/sendAs/{sendAsEmail}", s.handleGetSendAs).Methods("GET")
	st.HandleFunc("/sendAs/{sendAsEmail}", s.handleUpdateSendAs).Methods("PUT")
	st.HandleFunc("/sendAs/{sendAsEmail}", s.handlePatchSendAs).Methods("PATCH")
	st.HandleFunc("/sendAs/{sendAsEmail}", s.handleDeleteSendAs).Methods("DELETE")
	st.HandleFunc("/sendAs/{sendAsEmail}/verify", s.handleVerifySendAs).Methods("POST")

	st.HandleFunc("/sendAs/{sendAsEmail}/smimeInfo", s.handleListSmime).Methods("GET")
	st.HandleFunc("/sendAs/{sendAsEmail}/smimeInfo", s.handleInsertSmime).Methods("POST")
	st.HandleFunc("/sendAs/{sendAsEmail}/smimeInfo/{id}", s.handleGetSmime).Methods("GET")
	st.HandleFunc("/sendAs/{sendAsEmail}/smimeInfo/{id}", s.handleUpdateSmime).Methods("PUT", "PATCH")
	st.HandleFunc("/sendAs/{sendAsEmail}/smimeInfo/{id}", s.handleDeleteSmime).Methods("DELETE")
	st.HandleFunc("/sendAs/{sendAsEmail}/smimeInfo/{id}/setDefault", s.handleSetDefaultSmime).Methods("POST")
}

func sendAsEmail(r *http.Request) string {
	return mux.Vars(r)["sendAsEmail"]
}

// get/update pairs share this shape; generics keep each endpoint a
// two-liner.

func get[T any](s *Server, w http.ResponseWriter, op func() (T, error)) {
	v, err := op()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

func update[T any](s *Server, w http.ResponseWriter, r *http.Request, op func(*T) (*T, error)) {
	var in T
	if err := s.decodeBody(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	v, err := op(&in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleGetImap(w http.ResponseWriter, r *http.Request) {
	get(s, w, func() (*gmail.ImapSettings, error) {
		return s.registry.Settings.GetImap(r.Context(), userID(r))
	})
}

func (s *Server) handleUpdateImap(w http.ResponseWriter, r *http.Request) {
	update(s, w, r, func(in *gmail.ImapSettings) (*gmail.ImapSettings, error) {
		return s.registry.Settings.UpdateImap(r.Context(), userID(r), in)
	})
}

func (s *Server) handleGetPop(w http.ResponseWriter, r *http.Request) {
	get(s, w, func() (*gmail.PopSettings, error) {
		return s.registry.Settings.GetPop(r.Context(), userID(r))
	})
}

func (s *Server) handleUpdatePop(w http.ResponseWriter, r *http.Request) {
	update(s, w, r, func(in *gmail.PopSettings) (*gmail.PopSettings, error) {
		return s.registry.Settings.UpdatePop(r.Context(), userID(r), in)
	})
}

func (s *Server) handleGetVacation(w http.ResponseWriter, r *http.Request) {
	get(s, w, func() (*gmail.VacationSettings, error) {
		return s.registry.Settings.GetVacation(r.Context(), userID(r))
	})
}

func (s *Server) handleUpdateVacation(w http.ResponseWriter, r *http.Request) {
	update(s, w, r, func(in *gmail.VacationSettings) (*gmail.VacationSettings, error) {
		return s.registry.Settings.UpdateVacation(r.Context(), userID(r), in)
	})
}

func (s *Server) handleGetLanguage(w http.ResponseWriter, r *http.Request) {
	get(s, w, func() (*gmail.LanguageSettings, error) {
		return s.registry.Settings.GetLanguage(r.Context(), userID(r))
	})
}

func (s *Server) handleUpdateLanguage(w http.ResponseWriter, r *http.Request) {
	update(s, w, r, func(in *gmail.LanguageSettings) (*gmail.LanguageSettings, error) {
		return s.registry.Settings.UpdateLanguage(r.Context(), userID(r), in)
	})
}

func (s *Server) handleGetAutoForwarding(w http.ResponseWriter, r *http.Request) {
	get(s, w, func() (*gmail.AutoForwarding, error) {
		return s.registry.Settings.GetAutoForwarding(r.Context(), userID(r))
	})
}

func (s *Server) handleUpdateAutoForwarding(w http.ResponseWriter, r *http.Request) {
	update(s, w, r, func(in *gmail.AutoForwarding) (*gmail.AutoForwarding, error) {
		return s.registry.Settings.UpdateAutoForwarding(r.Context(), userID(r), in)
	})
}

func (s *Server) handleListSendAs(w http.ResponseWriter, r *http.Request) {
	get(s, w, func() (*gmail.ListSendAsResponse, error) {
		return s.registry.Settings.ListSendAs(r.Context(), userID(r))
	})
}

func (s *Server) handleCreateSendAs(w http.ResponseWriter, r *http.Request) {
	update(s, w, r, func(in *gmail.SendAs) (*gmail.SendAs, error) {
		return s.registry.Settings.CreateSendAs(r.Context(), userID(r), in)
	})
}

func (s *Server) handleGetSendAs(w http.ResponseWriter, r *http.Request) {
	get(s, w, func() (*gmail.SendAs, error) {
		return s.registry.Settings.GetSendAs(r.Context(), userID(r), sendAsEmail(r))
	})
}

func (s *Server) handleUpdateSendAs(w http.ResponseWriter, r *http.Request) {
	update(s, w, r, func(in *gmail.SendAs) (*gmail.SendAs, error) {
		return s.registry.Settings.UpdateSendAs(r.Context(), userID(r), sendAsEmail(r), in)
	})
}

func (s *Server) handlePatchSendAs(w http.ResponseWriter, r *http.Request) {
	update(s, w, r, func(in *gmail.SendAs) (*gmail.SendAs, error) {
		return s.registry.Settings.PatchSendAs(r.Context(), userID(r), sendAsEmail(r), in)
	})
}

func (s *Server) handleDeleteSendAs(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Settings.DeleteSendAs(r.Context(), userID(r), sendAsEmail(r)); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleVerifySendAs(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Settings.VerifySendAs(r.Context(), userID(r), sendAsEmail(r)); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleListSmime(w http.ResponseWriter, r *http.Request) {
	get(s, w, func() (*gmail.ListSmimeInfoResponse, error) {
		return s.registry.Settings.ListSmime(r.Context(), userID(r), sendAsEmail(r))
	})
}

func (s *Server) handleInsertSmime(w http.ResponseWriter, r *http.Request) {
	update(s, w, r, func(in *gmail.SmimeInfo) (*gmail.SmimeInfo, error) {
		return s.registry.Settings.InsertSmime(r.Context(), userID(r), sendAsEmail(r), in)
	})
}

func (s *Server) handleGetSmime(w http.ResponseWriter, r *http.Request) {
	get(s, w, func() (*gmail.SmimeInfo, error) {
		return s.registry.Settings.GetSmime(r.Context(), userID(r), sendAsEmail(r), pathID(r))
	})
}

func (s *Server) handleUpdateSmime(w http.ResponseWriter, r *http.Request) {
	update(s, w, r, func(in *gmail.SmimeInfo) (*gmail.SmimeInfo, error) {
		return s.registry.Settings.UpdateSmime(r.Context(), userID(r), sendAsEmail(r), pathID(r), in)
	})
}

func (s *Server) handleDeleteSmime(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Settings.DeleteSmime(r.Context(), userID(r), sendAsEmail(r), pathID(r)); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleSetDefaultSmime(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Settings.SetDefaultSmime(r.Context(), userID(r), sendAsEmail(r), pathID(r)); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

// Saved queries (operator tooling, not part of the Gmail surface).

type savedQueryRequest struct {
	Name        string `json:"name"`
	Query       string `json:"query"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) {
	if s.queries == nil {
		http.Error(w, "saved queries unavailable: no database configured", http.StatusServiceUnavailable)
		return
	}
	list, err := s.queries.List(r.Context(), userID(r), r.URL.Query().Get("category"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSaveQuery(w http.ResponseWriter, r *http.Request) {
	if s.queries == nil {
		http.Error(w, "saved queries unavailable: no database configured", http.StatusServiceUnavailable)
		return
	}
	var req savedQueryRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	q, err := s.queries.Save(r.Context(), userID(r), req.Name, req.Query, req.Description, req.Category)
	if err != nil {
		s.writeError(w, services.ErrInvalidInput)
		return
	}
	s.writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleDeleteQuery(w http.ResponseWriter, r *http.Request) {
	if s.queries == nil {
		http.Error(w, "saved queries unavailable: no database configured", http.StatusServiceUnavailable)
		return
	}
	id, err := strconv.ParseInt(pathID(r), 10, 64)
	if err != nil {
		s.writeError(w, services.ErrInvalidInput)
		return
	}
	if err := s.queries.Delete(r.Context(), userID(r), id); err != nil {
		s.writeError(w, services.ErrNotFound)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}
