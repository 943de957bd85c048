package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/jrsteele09/go-chatter-roster/overlay"
)

const contentTypeJSON = "application/json; charset=utf-8"

type healthResponse struct {
	Status   string `json:"status"`
	Auth     string `json:"auth"`
	Chatters int    `json:"chatters"`
}

type chatterResponse struct {
	Login       string    `json:"login"`
	DisplayName *string   `json:"displayName"`
	Name        string    `json:"name"`
	LastSeen    time.Time `json:"lastSeen"`
}

type rosterResponse struct {
	BroadcasterID string            `json:"broadcasterId,omitempty"`
	Count         int               `json:"count"`
	Chatters      []chatterResponse `json:"chatters"`
}

type labelResponse struct {
	Entity      int     `json:"entity"`
	Login       string  `json:"login"`
	DisplayName *string `json:"displayName"`
	Text        string  `json:"text"`
	StyleIndex  int     `json:"styleIndex"`
	Color       string  `json:"color"`
	FontSize    int     `json:"fontSize"`
}

type promptResponse struct {
	State           string `json:"state"`
	Draw            bool   `json:"draw"`
	Code            string `json:"code,omitempty"`
	VerificationURI string `json:"verificationUri,omitempty"`
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status:   "ok",
			Auth:     s.deps.Auth.State().String(),
			Chatters: s.deps.Cache.Len(),
		})
	}
}

// RosterHandler returns every cached chatter ordered by login.
func (s *Server) RosterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := s.deps.Cache.Snapshot()
		resp := rosterResponse{
			BroadcasterID: s.deps.Cache.BroadcasterID(),
			Count:         len(entries),
			Chatters:      make([]chatterResponse, 0, len(entries)),
		}
		for _, e := range entries {
			resp.Chatters = append(resp.Chatters, chatterResponse{
				Login:       e.Login,
				DisplayName: e.DisplayName,
				Name:        e.Name(),
				LastSeen:    e.LastSeen,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// LabelHandler binds the entity to a chatter. 204 while the roster is empty.
func (s *Server) LabelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entity, ok := entityID(w, r)
		if !ok {
			return
		}

		label, found := s.deps.Labeler.Label(entity)
		if !found {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, s.labelResponse(label))
	}
}

func (s *Server) ForgetLabelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entity, ok := entityID(w, r)
		if !ok {
			return
		}
		s.deps.Labeler.Forget(entity)
		w.WriteHeader(http.StatusNoContent)
	}
}

// PromptHandler reports the auth state and, when drawing is enabled, the code
// the user has to enter.
func (s *Server) PromptHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := promptResponse{State: s.deps.Auth.State().String()}
		if code, ok := overlay.AuthPrompt(s.deps.Auth, s.config.GetDrawAuthCode()); ok {
			resp.Draw = true
			resp.Code = code
			resp.VerificationURI = s.deps.Auth.VerificationURI()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) labelResponse(l overlay.Label) labelResponse {
	return labelResponse{
		Entity:      l.EntityID,
		Login:       l.Login,
		DisplayName: l.DisplayName,
		Text:        l.Text(),
		StyleIndex:  l.StyleIndex,
		Color:       l.Color.Hex(),
		FontSize:    s.config.GetFontSize(),
	}
}

func entityID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.PathValue("entity")
	id, err := strconv.Atoi(raw)
	if err != nil {
		writeJSONError(w, "invalid_request", "entity must be an integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
