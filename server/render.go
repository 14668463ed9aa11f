package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// Message is the generic JSON reply of the API.
type Message struct {
	Success bool    `json:"success"`
	Message string  `json:"message,omitempty"`
	Error   string  `json:"error,omitempty"`
	Errors  []Error `json:"errors,omitempty"`
}

// Error locates a payload validation failure.
type Error struct {
	Location string `json:"location"`
	Error    string `json:"error"`
}

// render converts any value to JSON and sends the response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, value interface{}) {
	b := &bytes.Buffer{}
	enc := json.NewEncoder(b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		s.logger.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("failed to encode response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(b.Bytes())
}

// ok sends a success message.
func (s *Server) ok(w http.ResponseWriter, r *http.Request, msg string) {
	s.render(w, r, http.StatusOK, &Message{Success: true, Message: msg})
}

// fail sends an error message with the given status.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.render(w, r, status, &Message{Success: false, Error: msg})
}
