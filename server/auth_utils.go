package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/envention-steve/union-ui-sub002/session"
	"github.com/envention-steve/union-ui-sub002/users"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
)

// authResponse is the body of the /auth/* session endpoints
type authResponse struct {
	Success        bool        `json:"success"`
	User           *users.User `json:"user,omitempty"`
	ExpiresAt      int64       `json:"expiresAt,omitempty"`
	IsExpiringSoon bool        `json:"isExpiringSoon,omitempty"`
	Error          string      `json:"error,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresAt   int64  `json:"expiresAt"`
}

func (s *Server) sessionResponse(p session.Payload) authResponse {
	user := p.User
	return authResponse{
		Success:        true,
		User:           &user,
		ExpiresAt:      p.ExpiresAt,
		IsExpiringSoon: s.codec.IsExpiringSoon(p),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Err(err).Msg("Failed to write JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, authResponse{Success: false, Error: message})
}

// isFormRequest reports whether the request is a browser form post rather than an API call
func isFormRequest(r *http.Request) bool {
	contentType := r.Header.Get("Content-Type")
	return strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data")
}

// safeCallbackURL only accepts local absolute paths, so a login can never redirect off site
func safeCallbackURL(raw, fallback string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return fallback
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.IsAbs() || parsed.Host != "" {
		return fallback
	}
	return raw
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
