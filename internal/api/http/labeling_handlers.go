package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/labeld/internal/dataset"
	"github.com/mind-engage/labeld/internal/labeling"
	"github.com/mind-engage/labeld/internal/rbac"
	syncx "github.com/mind-engage/labeld/internal/sync"
)

var errNotPublished = errors.New("dataset is not published")

// GET /datasets/{id}/labeling
//
// Loads the dataset and the caller's earlier answers and starts a fresh
// answer sheet seeded with them.
func (s *Server) openLabelingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, rec, ok := s.backend(w, r)
		if !ok {
			return
		}
		admin := rbac.RoleFromContext(r.Context()) == rbac.RoleAdmin
		sess, err := s.Desk.Open(r.Context(), rec.ID, c, chi.URLParam(r, "id"), func(d dataset.Dataset) error {
			if !d.IsPublished && !admin {
				return errNotPublished
			}
			return nil
		})
		if errors.Is(err, errNotPublished) {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sess.View())
	}
}

// current returns the open sheet for the dataset in the URL, or writes 409.
func (s *Server) current(w http.ResponseWriter, r *http.Request) (*labeling.Session, bool) {
	_, rec, ok := s.backend(w, r)
	if !ok {
		return nil, false
	}
	sess, ok := s.Desk.Current(rec.ID, chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusConflict, "open the dataset for labeling first")
		return nil, false
	}
	return sess, true
}

// PUT /datasets/{id}/labeling/answers
// { "file_id": "..."|null, "question_id": "...", "answer_value": "..." }
func (s *Server) answerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.current(w, r)
		if !ok {
			return
		}
		var in labeling.Cell
		if err := decodeJSON(r, &in); err != nil {
			fail(w, r, err)
			return
		}
		p, err := sess.Answer(labeling.FileRefFromPtr(in.FileID), in.QuestionID, in.Value)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"progress": p})
	}
}

// GET /datasets/{id}/labeling/progress
func (s *Server) progressHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.current(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"progress": sess.Progress()})
	}
}

// POST /datasets/{id}/labeling/submit
func (s *Server) submitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, rec, ok := s.backend(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		sess, ok := s.Desk.Current(rec.ID, id)
		if !ok {
			writeError(w, http.StatusConflict, "open the dataset for labeling first")
			return
		}
		n, v, err := sess.Submit(r.Context(), c)
		if err != nil {
			fail(w, r, err)
			return
		}
		s.record(r, syncx.TypeAnswersSubmitted, id, map[string]int{"answers": n})
		writeJSON(w, http.StatusOK, map[string]any{"submitted": n, "view": v})
	}
}
