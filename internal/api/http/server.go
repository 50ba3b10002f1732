// Package http is labeld's HTTP surface: a server-side front end over the
// dataset backend plus the local labeling wizard.
package http

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	authmw "github.com/mind-engage/labeld/internal/auth/middleware"
	"github.com/mind-engage/labeld/internal/client"
	"github.com/mind-engage/labeld/internal/labeling"
	"github.com/mind-engage/labeld/internal/rbac"
	"github.com/mind-engage/labeld/internal/session"
	"github.com/mind-engage/labeld/internal/storage"
	syncx "github.com/mind-engage/labeld/internal/sync"
	"github.com/mind-engage/labeld/internal/wizard"
)

// Server holds the dependencies shared by the handlers.
type Server struct {
	DB         *sql.DB
	Upstream   *client.Client
	Auth       *authmw.AuthService
	Sessions   *session.Store
	Desk       *labeling.Desk
	Wizards    *wizard.Registry
	Blobs      storage.BlobStore
	Events     *syncx.EventRepo
	LocalLogin authmw.LocalLoginConfig

	CORSOrigins []string
	Now         func() time.Time
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Router builds the chi router with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", s.readyHandler())

	r.Post("/auth/register", s.registerHandler())
	r.Post("/auth/login", s.loginHandler())
	r.Post("/auth/local-login", authmw.LocalLoginHandler(s.Auth, s.Sessions, s.LocalLogin))

	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(s.Auth, s.Sessions))

		pr.Post("/auth/logout", s.logoutHandler())
		pr.Get("/auth/me", s.meHandler())

		pr.With(rbac.Require("dataset:list")).Get("/datasets", s.listDatasetsHandler())
		pr.Route("/datasets/{id}/labeling", func(lr chi.Router) {
			lr.With(rbac.Require("labeling:open")).Get("/", s.openLabelingHandler())
			lr.With(rbac.Require("labeling:answer")).Put("/answers", s.answerHandler())
			lr.With(rbac.Require("labeling:open")).Get("/progress", s.progressHandler())
			lr.With(rbac.Require("labeling:submit")).Post("/submit", s.submitHandler())
		})

		pr.Route("/admin", func(ar chi.Router) {
			ar.With(rbac.Require("dataset:create")).Post("/datasets", s.createDatasetHandler())
			ar.With(rbac.RequireAny("dataset:edit", "answers:view-all")).Get("/datasets/{id}", s.getDatasetHandler())
			ar.With(rbac.Require("dataset:edit")).Put("/datasets/{id}", s.updateDatasetHandler())
			ar.With(rbac.Require("dataset:delete")).Delete("/datasets/{id}", s.deleteDatasetHandler())
			ar.With(rbac.Require("dataset:edit")).Post("/datasets/{id}/publish", s.publishHandler())
			ar.With(rbac.Require("dataset:edit")).Post("/datasets/{id}/files", s.uploadFilesHandler())
			ar.With(rbac.Require("dataset:edit")).Delete("/datasets/{id}/files/{fileID}", s.deleteFileHandler())
			ar.With(rbac.Require("dataset:edit")).Get("/datasets/{id}/questions", s.listQuestionsHandler())
			ar.With(rbac.Require("dataset:edit")).Post("/questions", s.createQuestionHandler())
			ar.With(rbac.Require("dataset:edit")).Put("/questions/{id}", s.updateQuestionHandler())
			ar.With(rbac.Require("dataset:edit")).Delete("/questions/{id}", s.deleteQuestionHandler())
			ar.With(rbac.Require("answers:view-all")).Get("/datasets/{id}/answers", s.datasetAnswersHandler())
			ar.With(rbac.Require("answers:export")).Get("/datasets/{id}/export", s.exportSubmissionsHandler())
			ar.With(rbac.Require("events:view")).Get("/events", s.eventsHandler())
		})

		pr.Route("/wizard", func(wr chi.Router) {
			wr.Use(rbac.Require("wizard:use"))
			wr.Get("/", s.wizardSnapshotHandler())
			wr.Put("/config", s.wizardConfigHandler())
			wr.Post("/items", s.wizardAddItemsHandler())
			wr.Put("/items/{itemID}/file", s.wizardReplaceFileHandler())
			wr.Get("/items/{itemID}/file", s.wizardFileHandler())
			wr.Post("/items/{itemID}/questions", s.wizardAddQuestionHandler())
			wr.Patch("/items/{itemID}/questions/{questionID}", s.wizardEditQuestionHandler())
			wr.Delete("/items/{itemID}/questions/{questionID}", s.wizardRemoveQuestionHandler())
			wr.Put("/items/{itemID}/questions/{questionID}/answer", s.wizardAnswerHandler())
			wr.With(rbac.Require("wizard:export")).Get("/export", s.wizardExportHandler())
		})
	})

	return r
}

func (s *Server) readyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.DB.PingContext(ctx); err != nil {
			slog.Error("readiness check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// record appends an audit event; failures are logged, not returned.
func (s *Server) record(r *http.Request, typ, key string, data any) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Record(r.Context(), typ, key, authmw.SubjectFromContext(r.Context()), data); err != nil {
		slog.Error("failed to record event", "error", err, "type", typ, "key", key)
	}
}
