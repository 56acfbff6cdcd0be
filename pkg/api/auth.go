package api

import (
	"net/http"
	"time"

	"intranet-portal/pkg/auth"
	"intranet-portal/pkg/identity"
)

var authErrors = errorMapping{auth.StatusCode, auth.Message}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in auth.Registration
	if err := decode(w, r, &in); err != nil {
		writeBadBody(w)
		return
	}
	user, err := s.auth.Register(r.Context(), in)
	if err != nil {
		s.fail(w, r, authErrors, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// handleLogin sets the session cookie and also returns the token for
// clients that send it as a bearer header.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(w, r, &body); err != nil {
		writeBadBody(w)
		return
	}
	session, err := s.auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.fail(w, r, authErrors, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.config.CookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   s.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handlePendingUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.auth.Pending(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		s.fail(w, r, authErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleApproveUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role string `json:"role"`
	}
	if err := decode(w, r, &body); err != nil {
		writeBadBody(w)
		return
	}
	user, err := s.auth.Approve(r.Context(), identity.FromContext(r.Context()), pathID(r, "id"), body.Role)
	if err != nil {
		s.fail(w, r, authErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleRejectUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.Reject(r.Context(), identity.FromContext(r.Context()), pathID(r, "id"))
	if err != nil {
		s.fail(w, r, authErrors, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
