package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	authmw "github.com/mind-engage/labeld/internal/auth/middleware"
	"github.com/mind-engage/labeld/internal/client"
	"github.com/mind-engage/labeld/internal/dataset"
	"github.com/mind-engage/labeld/internal/rbac"
	"github.com/mind-engage/labeld/internal/session"
)

type authOut struct {
	Message string       `json:"message,omitempty"`
	Token   string       `json:"token,omitempty"`
	User    dataset.User `json:"user"`
}

// POST /auth/register
func (s *Server) registerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in client.Registration
		if err := decodeJSON(r, &in); err != nil {
			fail(w, r, err)
			return
		}
		res, err := s.Upstream.Register(r.Context(), in)
		if err != nil {
			fail(w, r, err)
			return
		}
		out := authOut{Message: res.Message, User: res.User}
		if res.Token != "" {
			tok, _, err := s.Auth.Open(r.Context(), s.Sessions, res.User, res.Token)
			if err != nil {
				fail(w, r, err)
				return
			}
			out.Token = tok
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

// POST /auth/login
//
// Signs in against the backend; the backend token stays server-side and the
// browser gets a labeld token bound to the stored session.
func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in client.Credentials
		if err := decodeJSON(r, &in); err != nil {
			fail(w, r, err)
			return
		}
		res, err := s.Upstream.Login(r.Context(), in)
		if err != nil {
			fail(w, r, err)
			return
		}
		if res.Token == "" {
			writeError(w, http.StatusBadGateway, "backend returned no token")
			return
		}
		tok, rec, err := s.Auth.Open(r.Context(), s.Sessions, res.User, res.Token)
		if err != nil {
			fail(w, r, err)
			return
		}
		slog.Info("user signed in", "user_id", rec.User.ID, "role", authmw.RoleFor(rec.User))
		writeJSON(w, http.StatusOK, authOut{Token: tok, User: res.User})
	}
}

// POST /auth/logout drops the stored session along with any labeling sheet
// and wizard project it owned.
func (s *Server) logoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, _ := authmw.SessionFromContext(r.Context())
		if err := s.Sessions.Delete(r.Context(), rec.ID); err != nil {
			fail(w, r, err)
			return
		}
		s.release(rec.ID)
		w.WriteHeader(http.StatusNoContent)
	}
}

// release drops the in-memory state of session sid and the wizard files it
// uploaded.
func (s *Server) release(sid string) {
	s.Desk.Drop(sid)
	if p := s.Wizards.Drop(sid); p != nil {
		s.deleteBlobs(p.BlobKeys())
	}
}

// SweepSessions removes expired sessions together with their labeling
// sheets and wizard projects. It returns how many sessions were removed.
func (s *Server) SweepSessions(ctx context.Context) (int, error) {
	ids, err := s.Sessions.Sweep(ctx)
	for _, sid := range ids {
		s.release(sid)
	}
	return len(ids), err
}

// GET /auth/me
func (s *Server) meHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, _ := authmw.SessionFromContext(r.Context())
		if rec.Local() {
			writeJSON(w, http.StatusOK, meBody(rec.User))
			return
		}
		u, err := s.Upstream.WithToken(rec.UpstreamToken).Me(r.Context())
		if err != nil {
			fail(w, r, err)
			return
		}
		if err := s.Sessions.UpdateUser(r.Context(), rec.ID, u); err != nil && !errors.Is(err, session.ErrNotFound) {
			slog.Error("failed to refresh session user", "error", err, "sid", rec.ID)
		}
		writeJSON(w, http.StatusOK, meBody(u))
	}
}

// meBody adds the caller's labeld role and permissions so the browser can
// decide which screens to show.
func meBody(u dataset.User) map[string]any {
	role := authmw.RoleFor(u)
	return map[string]any{"user": u, "role": role, "permissions": rbac.Default.Granted(role)}
}

// backend returns the upstream client bound to the caller's token. Local
// sessions have no backend account and get a 403.
func (s *Server) backend(w http.ResponseWriter, r *http.Request) (*client.Client, session.Record, bool) {
	rec, ok := authmw.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no session")
		return nil, session.Record{}, false
	}
	if rec.Local() {
		writeError(w, http.StatusForbidden, "local sessions cannot reach the dataset backend")
		return nil, rec, false
	}
	return s.Upstream.WithToken(rec.UpstreamToken), rec, true
}
