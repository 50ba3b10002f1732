package http

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "github.com/mind-engage/labeld/internal/auth/middleware"
	"github.com/mind-engage/labeld/internal/dataset"
	"github.com/mind-engage/labeld/internal/export"
	syncx "github.com/mind-engage/labeld/internal/sync"
	"github.com/mind-engage/labeld/internal/wizard"
)

func (s *Server) project(r *http.Request) (*wizard.Project, string) {
	rec, _ := authmw.SessionFromContext(r.Context())
	return s.Wizards.Get(rec.ID), rec.ID
}

func (s *Server) deleteBlobs(keys []string) {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if err := s.Blobs.Delete(k); err != nil {
			slog.Warn("failed to delete wizard file", "error", err, "key", k)
		}
	}
}

// putBlob stores one uploaded file under the session's wizard prefix.
func (s *Server) putBlob(sid string, fh *multipart.FileHeader) (wizard.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return wizard.Upload{}, err
	}
	defer f.Close()
	key := path.Join("wizard", sid, uuid.NewString()+path.Ext(fh.Filename))
	key, err = s.Blobs.Put(key, f)
	if err != nil {
		return wizard.Upload{}, fmt.Errorf("store %s: %w", fh.Filename, err)
	}
	return wizard.Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		BlobKey:     key,
	}, nil
}

// GET /wizard
func (s *Server) wizardSnapshotHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := s.project(r)
		writeJSON(w, http.StatusOK, p.Snapshot())
	}
}

// PUT /wizard/config  { "fileType": "...", "templateQuestions": [...] }
//
// Starts the project over: existing items and their files are discarded.
func (s *Server) wizardConfigHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			FileType          dataset.FileType `json:"fileType"`
			TemplateQuestions []wizard.Draft   `json:"templateQuestions"`
		}
		if err := decodeJSON(r, &in); err != nil {
			fail(w, r, err)
			return
		}
		p, _ := s.project(r)
		cfg, dropped, err := p.UpdateConfig(in.FileType, in.TemplateQuestions)
		if err != nil {
			fail(w, r, err)
			return
		}
		s.deleteBlobs(dropped)
		writeJSON(w, http.StatusOK, cfg)
	}
}

// POST /wizard/items  multipart, field "files"
func (s *Server) wizardAddItemsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		headers, release, err := multipartFiles(w, r, "files")
		if err != nil {
			fail(w, r, err)
			return
		}
		defer release()
		p, sid := s.project(r)
		uploads := make([]wizard.Upload, 0, len(headers))
		for _, fh := range headers {
			u, err := s.putBlob(sid, fh)
			if err != nil {
				for _, done := range uploads {
					s.deleteBlobs([]string{done.BlobKey})
				}
				fail(w, r, err)
				return
			}
			uploads = append(uploads, u)
		}
		writeJSON(w, http.StatusCreated, map[string]any{"items": p.AddItems(uploads)})
	}
}

// PUT /wizard/items/{itemID}/file  multipart, field "file"
func (s *Server) wizardReplaceFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		headers, release, err := multipartFiles(w, r, "file")
		if err != nil {
			fail(w, r, err)
			return
		}
		defer release()
		p, sid := s.project(r)
		u, err := s.putBlob(sid, headers[0])
		if err != nil {
			fail(w, r, err)
			return
		}
		itemID := chi.URLParam(r, "itemID")
		old, err := p.ReplaceFile(itemID, u)
		if err != nil {
			s.deleteBlobs([]string{u.BlobKey})
			fail(w, r, err)
			return
		}
		s.deleteBlobs([]string{old})
		it, err := p.Item(itemID)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, it)
	}
}

// GET /wizard/items/{itemID}/file streams the stored file for preview.
func (s *Server) wizardFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := s.project(r)
		it, err := p.Item(chi.URLParam(r, "itemID"))
		if err != nil {
			fail(w, r, err)
			return
		}
		rc, err := s.Blobs.Get(it.BlobKey)
		if err != nil {
			fail(w, r, err)
			return
		}
		defer rc.Close()
		ct := it.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		w.Header().Set("Content-Disposition", contentDisposition("inline", it.FileName))
		if _, err := io.Copy(w, rc); err != nil {
			slog.Warn("failed to stream wizard file", "error", err, "item", it.ID)
		}
	}
}

// POST /wizard/items/{itemID}/questions
func (s *Server) wizardAddQuestionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in wizard.Draft
		if err := decodeJSON(r, &in); err != nil {
			fail(w, r, err)
			return
		}
		p, _ := s.project(r)
		q, err := p.AddQuestion(chi.URLParam(r, "itemID"), in)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

// PATCH /wizard/items/{itemID}/questions/{questionID}
func (s *Server) wizardEditQuestionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in wizard.Patch
		if err := decodeJSON(r, &in); err != nil {
			fail(w, r, err)
			return
		}
		p, _ := s.project(r)
		q, err := p.EditQuestion(chi.URLParam(r, "itemID"), chi.URLParam(r, "questionID"), in)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// DELETE /wizard/items/{itemID}/questions/{questionID}
func (s *Server) wizardRemoveQuestionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := s.project(r)
		if err := p.RemoveQuestion(chi.URLParam(r, "itemID"), chi.URLParam(r, "questionID")); err != nil {
			fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// PUT /wizard/items/{itemID}/questions/{questionID}/answer  { "answer": "..." }
func (s *Server) wizardAnswerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Answer string `json:"answer"`
		}
		if err := decodeJSON(r, &in); err != nil {
			fail(w, r, err)
			return
		}
		p, _ := s.project(r)
		q, err := p.SetAnswer(chi.URLParam(r, "itemID"), chi.URLParam(r, "questionID"), in.Answer)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// GET /wizard/export
func (s *Server) wizardExportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, sid := s.project(r)
		doc := export.Local(p.Snapshot())
		raw, err := export.Encode(doc)
		if err != nil {
			fail(w, r, err)
			return
		}
		s.record(r, syncx.TypeWizardExported, sid, map[string]any{"items": doc.TotalItems, "projectType": doc.ProjectType})
		writeAttachment(w, export.LocalFilename(s.now()), raw)
	}
}
