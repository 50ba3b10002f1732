package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/labeld/internal/dataset"
	"github.com/mind-engage/labeld/internal/export"
	syncx "github.com/mind-engage/labeld/internal/sync"
)

// GET /admin/datasets/{id}/answers
func (s *Server) datasetAnswersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _, ok := s.backend(w, r)
		if !ok {
			return
		}
		page, err := c.DatasetAnswers(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			fail(w, r, err)
			return
		}
		if page.Submissions == nil {
			page.Submissions = []dataset.Submission{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"submissions":       page.Submissions,
			"total_submissions": page.TotalSubmissions,
			"total_answers":     page.TotalAnswers,
			"total_users":       export.DistinctUsers(page.Submissions),
		})
	}
}

// GET /admin/datasets/{id}/export
//
// Downloads every submission of the dataset as one JSON document.
func (s *Server) exportSubmissionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _, ok := s.backend(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")

		var (
			d    dataset.Dataset
			page dataset.AnswersPage
		)
		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() (err error) {
			d, err = c.GetDataset(ctx, id)
			return err
		})
		g.Go(func() (err error) {
			page, err = c.DatasetAnswers(ctx, id)
			return err
		})
		if err := g.Wait(); err != nil {
			fail(w, r, err)
			return
		}

		doc := export.Admin(d, page.Submissions)
		raw, err := export.Encode(doc)
		if err != nil {
			fail(w, r, err)
			return
		}
		s.record(r, syncx.TypeSubmissionsExported, id, doc.Statistics)
		writeAttachment(w, export.AdminFilename(d.Name, s.now()), raw)
	}
}

func writeAttachment(w http.ResponseWriter, filename string, raw []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", contentDisposition("attachment", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}
