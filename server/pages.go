package server

import (
	"html/template"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const adminRole = "admin"

// loginErrorMessages maps login page error codes to messages
var loginErrorMessages = map[string]string{
	SessionExpiredError: "Your session has expired. Please sign in again.",
}

// loginPageData contains data for rendering the login page
type loginPageData struct {
	AppName     string
	Error       string
	Email       string // Preserve email on error
	CallbackURL string
}

// IndexHandler renders the public home page
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, s.indexTmpl, map[string]any{
			"AppName":   s.config.GetAppName(),
			"LoginPath": s.config.GetLoginPath(),
		})
	}
}

// LoginPageHandler displays the login page (GET /login)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		errorMsg := query.Get("error")
		if msg, ok := loginErrorMessages[errorMsg]; ok {
			errorMsg = msg
		}
		s.renderLogin(w, http.StatusOK, loginPageData{
			Error:       errorMsg,
			Email:       query.Get("email"),
			CallbackURL: safeCallbackURL(query.Get("callbackUrl"), ""),
		})
	}
}

func (s *Server) renderLogin(w http.ResponseWriter, status int, data loginPageData) {
	data.AppName = s.config.GetAppName()
	s.render(w, status, s.loginTmpl, data)
}

// DashboardHandler renders the authenticated landing page
func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.codec.ServerSession(r)
		if err != nil {
			http.Redirect(w, r, s.config.GetLoginPath(), http.StatusSeeOther)
			return
		}
		s.render(w, http.StatusOK, s.dashboardTmpl, map[string]any{
			"AppName":        s.config.GetAppName(),
			"User":           p.User,
			"ExpiresAt":      time.Unix(p.ExpiresAt, 0).UTC().Format(time.RFC1123),
			"IsExpiringSoon": s.codec.IsExpiringSoon(p),
			"IsAdmin":        p.User.HasRole(adminRole),
		})
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) render(w http.ResponseWriter, status int, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		log.Err(err).Str("template", tmpl.Name()).Msg("Failed to render template")
	}
}
