package api

import (
	"net/http"

	"github.com/okian/quotaboard/internal/adapters/oauth"
)

// SessionCookie names the cookie holding the session id.
const SessionCookie = "quotaboard_session"

// session resolves the caller's session and (re)issues the cookie when the
// id changed.
func (s *Server) session(w http.ResponseWriter, r *http.Request) oauth.Session {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	sess := s.deps.Session(r.Context(), id)
	if sess.ID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.cookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}
