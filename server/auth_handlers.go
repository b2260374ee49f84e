package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/envention-steve/union-ui-sub002/idp"
	apperrors "github.com/envention-steve/union-ui-sub002/internal/errors"
	"github.com/envention-steve/union-ui-sub002/internal/metrics"
	"github.com/envention-steve/union-ui-sub002/internal/utils"
	"github.com/envention-steve/union-ui-sub002/session"
	"github.com/envention-steve/union-ui-sub002/users"
	"github.com/rs/zerolog/log"
)

// User facing messages of the session endpoints
const (
	msgCredentialsRequired = "Email and password are required"
	msgInvalidCredentials  = "Invalid email or password"
	msgAuthUnavailable     = "Authentication service unavailable"
	msgSessionFailed       = "Failed to create session"
	msgNotAuthenticated    = "Not authenticated"
	msgSessionExpired      = "Session expired"
	msgSessionInvalid      = "Session is no longer valid"
	msgNoRefreshToken      = "No refresh token"
	msgRefreshFailed       = "Failed to refresh session"
	msgLogoutIncomplete    = "Remote logout failed"
)

type loginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	CallbackURL string `json:"callbackUrl"`
}

func decodeLoginRequest(w http.ResponseWriter, r *http.Request) (loginRequest, error) {
	var req loginRequest
	if isFormRequest(r) {
		if err := r.ParseForm(); err != nil {
			return req, err
		}
		req.Email = r.FormValue("email")
		req.Password = r.FormValue("password")
		req.CallbackURL = r.FormValue("callbackUrl")
		return req, nil
	}
	if r.Body == nil || r.ContentLength == 0 {
		return req, nil
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req)
	return req, err
}

// LoginHandler authenticates with the identity provider and issues the session (POST /auth/login).
// API callers get JSON; form posts from the login page are answered with redirects.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeLoginRequest(w, r)
		formPost := isFormRequest(r)
		if err != nil {
			log.Debug().Err(err).Msg("Malformed login request")
		}
		req.Email = strings.TrimSpace(req.Email)

		fail := func(status int, message string) {
			if formPost {
				s.renderLogin(w, status, loginPageData{
					Error:       message,
					Email:       req.Email,
					CallbackURL: safeCallbackURL(req.CallbackURL, ""),
				})
				return
			}
			writeJSONError(w, status, message)
		}

		if req.Email == "" || req.Password == "" {
			fail(http.StatusBadRequest, msgCredentialsRequired)
			return
		}

		bundle, err := s.idp.Authenticate(r.Context(), req.Email, req.Password)
		if err != nil {
			status := apperrors.HTTPStatus(err)
			log.Info().Err(err).Str("email", req.Email).Int("status", status).Msg("Login failed")
			fail(status, loginFailureMessage(status))
			return
		}

		user, err := s.idp.ValidateToken(r.Context(), bundle.AccessToken)
		if err != nil {
			status := apperrors.HTTPStatus(err)
			log.Err(err).Str("email", req.Email).Msg("Identity provider rejected its own access token")
			fail(status, loginFailureMessage(status))
			return
		}

		p := s.newPayload(user, bundle, nil)
		if err := s.codec.Issue(w, p); err != nil {
			log.Err(err).Str("user_id", user.ID).Msg("Failed to issue session cookie")
			fail(http.StatusInternalServerError, msgSessionFailed)
			return
		}
		s.metrics.SessionIssued(metrics.ReasonLogin)
		log.Info().Str("user_id", user.ID).Msg("User logged in")

		if formPost {
			redirectSuccess(w, r, safeCallbackURL(req.CallbackURL, s.config.GetLandingPath()))
			return
		}
		writeJSON(w, http.StatusOK, s.sessionResponse(p))
	}
}

func loginFailureMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return msgCredentialsRequired
	case http.StatusUnauthorized:
		return msgInvalidCredentials
	default:
		return msgAuthUnavailable
	}
}

// newPayload builds the session for a fresh token bundle. The previous
// refresh token is kept when the provider did not rotate it.
func (s *Server) newPayload(user users.User, bundle idp.TokenBundle, previousRefreshToken *string) session.Payload {
	p := session.Payload{
		User:        user,
		AccessToken: bundle.AccessToken,
		ExpiresAt:   bundle.ExpiresAt(s.codec.Now()),
	}
	if bundle.RefreshToken != "" {
		p.RefreshToken = utils.Ptr(bundle.RefreshToken)
	} else {
		p.RefreshToken = previousRefreshToken
	}
	return p
}

// LogoutHandler ends the session (POST /auth/logout). It always succeeds;
// a failed remote logout is only reported in the error field.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := authResponse{Success: true}

		if p, err := s.codec.ServerSessionAllowExpired(r); err == nil && p.HasRefreshToken() {
			if err := s.idp.Logout(r.Context(), *p.RefreshToken); err != nil {
				log.Warn().Err(err).Str("user_id", p.User.ID).Msg("Remote logout failed")
				resp.Error = msgLogoutIncomplete
			}
		}
		s.codec.Clear(w)

		if isFormRequest(r) {
			redirectSuccess(w, r, s.config.GetLoginPath())
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// RefreshHandler exchanges the session's refresh token for a new session (POST /auth/refresh).
// Expired sessions are accepted since they still carry the refresh token.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.codec.ServerSessionAllowExpired(r)
		if err != nil {
			s.codec.Clear(w)
			writeJSONError(w, http.StatusUnauthorized, msgNotAuthenticated)
			return
		}
		if !p.HasRefreshToken() {
			s.codec.Clear(w)
			writeJSONError(w, http.StatusUnauthorized, msgNoRefreshToken)
			return
		}

		bundle, err := s.idp.Refresh(r.Context(), *p.RefreshToken)
		if err != nil {
			status := apperrors.HTTPStatus(err)
			log.Info().Err(err).Str("user_id", p.User.ID).Msg("Session refresh failed")
			if status == http.StatusInternalServerError {
				writeJSONError(w, status, msgRefreshFailed)
				return
			}
			s.codec.Clear(w)
			writeJSONError(w, http.StatusUnauthorized, msgSessionInvalid)
			return
		}

		user, err := s.idp.ValidateToken(r.Context(), bundle.AccessToken)
		if err != nil {
			log.Warn().Err(err).Str("user_id", p.User.ID).Msg("Could not reload profile after refresh, keeping previous profile")
			user = p.User
		}

		next := s.newPayload(user, bundle, p.RefreshToken)
		if err := s.codec.Issue(w, next); err != nil {
			log.Err(err).Str("user_id", user.ID).Msg("Failed to issue refreshed session cookie")
			writeJSONError(w, http.StatusInternalServerError, msgSessionFailed)
			return
		}
		s.metrics.SessionIssued(metrics.ReasonRefresh)
		writeJSON(w, http.StatusOK, s.sessionResponse(next))
	}
}

// MeHandler reports the current session (GET /auth/me). The access token is
// re-validated so that server side invalidation is noticed.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.codec.ServerSession(r)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, sessionErrorMessage(err))
			return
		}

		user, err := s.idp.ValidateToken(r.Context(), p.AccessToken)
		if err != nil {
			status := apperrors.HTTPStatus(err)
			if status == http.StatusInternalServerError {
				log.Err(err).Str("user_id", p.User.ID).Msg("Access token validation failed")
				writeJSONError(w, status, msgAuthUnavailable)
				return
			}
			writeJSONError(w, http.StatusUnauthorized, msgSessionInvalid)
			return
		}
		p.User = user
		writeJSON(w, http.StatusOK, s.sessionResponse(p))
	}
}

// TokenHandler returns the bare access token of the session (GET /auth/token)
func (s *Server) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.codec.ServerSession(r)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, sessionErrorMessage(err))
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{
			AccessToken: p.AccessToken,
			ExpiresAt:   p.ExpiresAt,
		})
	}
}

// PreflightHandler answers CORS preflight requests; the headers come from CorsMiddleware
func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func sessionErrorMessage(err error) string {
	if apperrors.Is(err, apperrors.ErrSessionExpired) {
		return msgSessionExpired
	}
	return msgNotAuthenticated
}
