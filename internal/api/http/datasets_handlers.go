package http

import (
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/labeld/internal/client"
	"github.com/mind-engage/labeld/internal/dataset"
	"github.com/mind-engage/labeld/internal/rbac"
	syncx "github.com/mind-engage/labeld/internal/sync"
)

const maxUploadBytes = 512 << 20

// GET /datasets
//
// Annotators only see published datasets.
func (s *Server) listDatasetsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _, ok := s.backend(w, r)
		if !ok {
			return
		}
		list, err := c.ListDatasets(r.Context())
		if err != nil {
			fail(w, r, err)
			return
		}
		if rbac.RoleFromContext(r.Context()) != rbac.RoleAdmin {
			visible := list[:0]
			for _, d := range list {
				if d.IsPublished {
					visible = append(visible, d)
				}
			}
			list = visible
		}
		if list == nil {
			list = []dataset.Dataset{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"datasets": list})
	}
}

// GET /admin/datasets/{id}
func (s *Server) getDatasetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _, ok := s.backend(w, r)
		if !ok {
			return
		}
		d, err := c.GetDataset(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"dataset": d})
	}
}

// POST /admin/datasets
func (s *Server) createDatasetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _, ok := s.backend(w, r)
		if !ok {
			return
		}
		var in dataset.Input
		if err := decodeJSON(r, &in); err != nil {
			fail(w, r, err)
			return
		}
		if err := in.Normalize(); err != nil {
			fail(w, r, err)
			return
		}
		d, err := c.CreateDataset(r.Context(), in)
		if err != nil {
			fail(w, r, err)
			return
		}
		s.record(r, syncx.TypeDatasetSaved, d.ID, map[string]any{"name": d.Name, "questions": len(in.Questions), "created": true})
		writeJSON(w, http.StatusCreated, map[string]any{"dataset": d})
	}
}

// PUT /admin/datasets/{id}
//
// Updates the dataset fields, then replaces its questions with the ones in
// the body, in order.
func (s *Server) updateDatasetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _, ok := s.backend(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		var in dataset.Input
		if err := decodeJSON(r, &in); err != nil {
			fail(w, r, err)
			return
		}
		if err := in.Normalize(); err != nil {
			fail(w, r, err)
			return
		}
		patch := dataset.Patch{Name: &in.Name, Description: &in.Description, FileType: &in.FileType, IsPublished: &in.IsPublished}
		if err := c.UpdateDataset(r.Context(), id, patch); err != nil {
			fail(w, r, err)
			return
		}
		if err := c.ReplaceQuestions(r.Context(), id, in.Questions); err != nil {
			fail(w, r, fmt.Errorf("replace questions: %w", err))
			return
		}
		d, err := c.GetDataset(r.Context(), id)
		if err != nil {
			fail(w, r, err)
			return
		}
		s.record(r, syncx.TypeDatasetSaved, id, map[string]any{"name": d.Name, "questions": len(in.Questions), "created": false})
		writeJSON(w, http.StatusOK, map[string]any{"dataset": d})
	}
}

// DELETE /admin/datasets/{id}
func (s *Server) deleteDatasetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _, ok := s.backend(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		if err := c.DeleteDataset(r.Context(), id); err != nil {
			fail(w, r, err)
			return
		}
		s.record(r, syncx.TypeDatasetDeleted, id, struct{}{})
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /admin/datasets/{id}/publish  { "is_published": true|false }
//
// An empty body flips the current state.
func (s *Server) publishHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _, ok := s.backend(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		var in struct {
			IsPublished *bool `json:"is_published"`
		}
		if r.ContentLength != 0 {
			if err := decodeJSON(r, &in); err != nil {
				fail(w, r, err)
				return
			}
		}
		if in.IsPublished == nil {
			d, err := c.GetDataset(r.Context(), id)
			if err != nil {
				fail(w, r, err)
				return
			}
			flipped := !d.IsPublished
			in.IsPublished = &flipped
		}
		if err := c.UpdateDataset(r.Context(), id, dataset.Patch{IsPublished: in.IsPublished}); err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "is_published": *in.IsPublished})
	}
}

// POST /admin/datasets/{id}/files  multipart, field "files"
func (s *Server) uploadFilesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _, ok := s.backend(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		headers, release, err := multipartFiles(w, r, "files")
		if err != nil {
			fail(w, r, err)
			return
		}
		defer release()
		uploads := make([]client.Upload, 0, len(headers))
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				fail(w, r, err)
				return
			}
			defer f.Close()
			uploads = append(uploads, client.Upload{FileName: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Body: f})
		}
		files, err := c.UploadFiles(r.Context(), id, uploads)
		if err != nil {
			fail(w, r, err)
			return
		}
		s.record(r, syncx.TypeFilesUploaded, id, map[string]int{"files": len(files)})
		writeJSON(w, http.StatusCreated, map[string]any{"files": files})
	}
}

// multipartMemory is how much of a multipart body is held in memory; larger
// parts spill to temp files.
var multipartMemory int64 = 32 << 20

// multipartFiles parses a multipart body and returns the files under field.
// At least one file is required. The caller must run release once it is done
// with the files; it removes any temp files the parse created.
func multipartFiles(w http.ResponseWriter, r *http.Request, field string) ([]*multipart.FileHeader, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	err := r.ParseMultipartForm(multipartMemory)
	release := func() {
		if r.MultipartForm != nil {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				slog.Warn("failed to remove multipart temp files", "error", err)
			}
		}
	}
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("%w: multipart body required: %v", dataset.ErrValidation, err)
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		release()
		return nil, nil, fmt.Errorf("%w: no files in field %q", dataset.ErrValidation, field)
	}
	return headers, release, nil
}

// DELETE /admin/datasets/{id}/files/{fileID}
func (s *Server) deleteFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _, ok := s.backend(w, r)
		if !ok {
			return
		}
		if err := c.DeleteFile(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "fileID")); err != nil {
			fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /admin/datasets/{id}/questions
func (s *Server) listQuestionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _, ok := s.backend(w, r)
		if !ok {
			return
		}
		qs, err := c.ListQuestions(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			fail(w, r, err)
			return
		}
		if qs == nil {
			qs = []dataset.Question{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"questions": qs})
	}
}

// POST /admin/questions
func (s *Server) createQuestionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _, ok := s.backend(w, r)
		if !ok {
			return
		}
		var in dataset.QuestionInput
		if err := decodeJSON(r, &in); err != nil {
			fail(w, r, err)
			return
		}
		if in.DatasetID == "" {
			writeError(w, http.StatusBadRequest, "dataset_id is required")
			return
		}
		if err := in.Normalize(); err != nil {
			fail(w, r, err)
			return
		}
		q, err := c.CreateQuestion(r.Context(), in)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"question": q})
	}
}

// PUT /admin/questions/{id}
func (s *Server) updateQuestionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _, ok := s.backend(w, r)
		if !ok {
			return
		}
		var in dataset.QuestionInput
		if err := decodeJSON(r, &in); err != nil {
			fail(w, r, err)
			return
		}
		if err := in.Normalize(); err != nil {
			fail(w, r, err)
			return
		}
		q, err := c.UpdateQuestion(r.Context(), chi.URLParam(r, "id"), in)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"question": q})
	}
}

// DELETE /admin/questions/{id}
func (s *Server) deleteQuestionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _, ok := s.backend(w, r)
		if !ok {
			return
		}
		if err := c.DeleteQuestion(r.Context(), chi.URLParam(r, "id")); err != nil {
			fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
