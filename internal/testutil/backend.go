// Package testutil provides an in-memory stand-in for the dataset backend
// and helpers for handler tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/labeld/internal/dataset"
)

// Backend mimics the REST API labeld consumes. Tokens are "tok-<userID>".
type Backend struct {
	Server *httptest.Server

	mu          sync.Mutex
	users       map[string]dataset.User
	passwords   map[string]string
	datasets    map[string]dataset.Dataset
	order       []string
	answers     map[string][]dataset.Answer // userID|datasetID
	submissions map[string][]dataset.Submission
	batches     []dataset.BatchRequest
	uploads     map[string][]string // datasetID -> file names
	seq         int

	// FailNext makes the next request to a matching path prefix fail.
	failPrefix string
	failStatus int
}

func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		users:       map[string]dataset.User{},
		passwords:   map[string]string{},
		datasets:    map[string]dataset.Dataset{},
		answers:     map[string][]dataset.Answer{},
		submissions: map[string][]dataset.Submission{},
		uploads:     map[string][]string{},
	}
	b.Server = httptest.NewServer(b.routes())
	t.Cleanup(b.Server.Close)
	return b
}

func (b *Backend) URL() string { return b.Server.URL }

// AddUser registers a user and returns its bearer token.
func (b *Backend) AddUser(u dataset.User, password string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[u.ID] = u
	b.passwords[u.Username] = password
	return "tok-" + u.ID
}

func (b *Backend) PutDataset(d dataset.Dataset) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.datasets[d.ID]; !ok {
		b.order = append(b.order, d.ID)
	}
	b.datasets[d.ID] = d
}

func (b *Backend) Dataset(id string) (dataset.Dataset, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.datasets[id]
	return d, ok
}

func (b *Backend) SetMyAnswers(userID, datasetID string, as []dataset.Answer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.answers[userID+"|"+datasetID] = as
}

func (b *Backend) AddSubmission(datasetID string, s dataset.Submission) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submissions[datasetID] = append(b.submissions[datasetID], s)
}

func (b *Backend) Batches() []dataset.BatchRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]dataset.BatchRequest(nil), b.batches...)
}

func (b *Backend) Uploads(datasetID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.uploads[datasetID]...)
}

// FailNext makes the next request whose path starts with prefix answer
// status with an {"error": ...} body.
func (b *Backend) FailNext(prefix string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failPrefix, b.failStatus = prefix, status
}

func (b *Backend) nextID(prefix string) string {
	b.seq++
	return fmt.Sprintf("%s%d", prefix, b.seq)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(b.injectFailure)

	r.Post("/auth/register", b.register)
	r.Post("/auth/login", b.login)

	r.Group(func(pr chi.Router) {
		pr.Use(b.requireUser)
		pr.Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, 200, map[string]any{"user": userFrom(r)})
		})
		pr.Get("/datasets", b.listDatasets)
		pr.Post("/datasets", b.createDataset)
		pr.Get("/datasets/{id}", b.getDataset)
		pr.Put("/datasets/{id}", b.updateDataset)
		pr.Delete("/datasets/{id}", b.deleteDataset)
		pr.Post("/datasets/{id}/files", b.uploadFiles)
		pr.Delete("/datasets/{id}/files/{fileID}", b.deleteFile)
		pr.Get("/datasets/{id}/answers", b.datasetAnswers)
		pr.Get("/questions/dataset/{id}", b.listQuestions)
		pr.Post("/questions", b.createQuestion)
		pr.Put("/questions/{id}", b.updateQuestion)
		pr.Delete("/questions/{id}", b.deleteQuestion)
		pr.Post("/answers/batch", b.submitBatch)
		pr.Get("/answers/my-answers/{id}", b.myAnswers)
	})
	return r
}

func (b *Backend) injectFailure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		prefix, status := b.failPrefix, b.failStatus
		hit := prefix != "" && strings.HasPrefix(r.URL.Path, prefix)
		if hit {
			b.failPrefix = ""
		}
		b.mu.Unlock()
		if hit {
			fail(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxUser struct{}

func userFrom(r *http.Request) dataset.User {
	u, _ := r.Context().Value(ctxUser{}).(dataset.User)
	return u
}

func (b *Backend) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		u, ok := b.users[strings.TrimPrefix(tok, "tok-")]
		b.mu.Unlock()
		if !ok || !strings.HasPrefix(tok, "tok-") {
			fail(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithUser(r, u)))
	})
}

func (b *Backend) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if !userFrom(r).IsAdmin() {
		fail(w, http.StatusForbidden, "Admin access required")
		return false
	}
	return true
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var in struct{ Username, Email, Password string }
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Username == "" {
		fail(w, 400, "username is required")
		return
	}
	b.mu.Lock()
	u := dataset.User{ID: b.nextID("u"), Username: in.Username, Email: in.Email, Role: dataset.RoleUser}
	b.users[u.ID] = u
	b.passwords[u.Username] = in.Password
	b.mu.Unlock()
	writeJSON(w, 201, map[string]any{"message": "registered", "user": u})
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var in struct{ Username, Email, Password string }
	_ = json.NewDecoder(r.Body).Decode(&in)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.users {
		if (u.Username == in.Username || (in.Email != "" && u.Email == in.Email)) && b.passwords[u.Username] == in.Password {
			writeJSON(w, 200, map[string]any{"token": "tok-" + u.ID, "user": u})
			return
		}
	}
	fail(w, http.StatusUnauthorized, "Invalid credentials")
}

func (b *Backend) listDatasets(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := make([]dataset.Dataset, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.datasets[id])
	}
	b.mu.Unlock()
	writeJSON(w, 200, map[string]any{"datasets": out})
}

func (b *Backend) getDataset(w http.ResponseWriter, r *http.Request) {
	d, ok := b.Dataset(chi.URLParam(r, "id"))
	if !ok {
		fail(w, 404, "Dataset not found")
		return
	}
	writeJSON(w, 200, map[string]any{"dataset": d})
}

func (b *Backend) createDataset(w http.ResponseWriter, r *http.Request) {
	if !b.requireAdmin(w, r) {
		return
	}
	var in struct {
		Name        string           `json:"name"`
		Description string           `json:"description"`
		FileType    dataset.FileType `json:"file_type"`
		IsPublished bool             `json:"is_published"`
		Questions   []struct {
			Text       string          `json:"text"`
			AnswerType json.RawMessage `json:"answerType"`
			Options    []string        `json:"options"`
		} `json:"questions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		fail(w, 400, err.Error())
		return
	}
	b.mu.Lock()
	d := dataset.Dataset{ID: b.nextID("d"), Name: in.Name, Description: in.Description, FileType: in.FileType, IsPublished: in.IsPublished, CreatedBy: userFrom(r).ID}
	for _, q := range in.Questions {
		var dq dataset.Question
		_ = json.Unmarshal(q.AnswerType, &dq.AnswerType)
		dq.ID, dq.DatasetID, dq.Text, dq.Options = b.nextID("q"), d.ID, q.Text, q.Options
		d.Questions = append(d.Questions, dq)
	}
	now := time.Now().UTC()
	d.CreatedAt = &now
	b.datasets[d.ID] = d
	b.order = append(b.order, d.ID)
	b.mu.Unlock()
	writeJSON(w, 201, map[string]any{"dataset": d})
}

func (b *Backend) updateDataset(w http.ResponseWriter, r *http.Request) {
	if !b.requireAdmin(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	var patch dataset.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		fail(w, 400, err.Error())
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.datasets[id]
	if !ok {
		fail(w, 404, "Dataset not found")
		return
	}
	if patch.Name != nil {
		d.Name = *patch.Name
	}
	if patch.Description != nil {
		d.Description = *patch.Description
	}
	if patch.FileType != nil {
		d.FileType = *patch.FileType
	}
	if patch.IsPublished != nil {
		d.IsPublished = *patch.IsPublished
	}
	b.datasets[id] = d
	writeJSON(w, 200, map[string]any{"dataset": d})
}

func (b *Backend) deleteDataset(w http.ResponseWriter, r *http.Request) {
	if !b.requireAdmin(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.datasets[id]; !ok {
		fail(w, 404, "Dataset not found")
		return
	}
	delete(b.datasets, id)
	for i, x := range b.order {
		if x == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	writeJSON(w, 200, map[string]string{"message": "deleted"})
}

func (b *Backend) uploadFiles(w http.ResponseWriter, r *http.Request) {
	if !b.requireAdmin(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	mr, err := r.MultipartReader()
	if err != nil {
		fail(w, 400, "multipart required")
		return
	}
	var added []dataset.File
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			fail(w, 400, err.Error())
			return
		}
		if part.FormName() != "files" {
			continue
		}
		n, _ := io.Copy(io.Discard, part)
		b.mu.Lock()
		f := dataset.File{ID: b.nextID("f"), FileName: part.FileName(), FileURL: "https://cdn.example/" + part.FileName(), FileSize: n}
		b.mu.Unlock()
		added = append(added, f)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.datasets[id]
	if !ok {
		fail(w, 404, "Dataset not found")
		return
	}
	for i := range added {
		added[i].FileType = d.FileType
		b.uploads[id] = append(b.uploads[id], added[i].FileName)
	}
	d.Files = append(d.Files, added...)
	b.datasets[id] = d
	writeJSON(w, 201, map[string]any{"files": added})
}

func (b *Backend) deleteFile(w http.ResponseWriter, r *http.Request) {
	if !b.requireAdmin(w, r) {
		return
	}
	id, fid := chi.URLParam(r, "id"), chi.URLParam(r, "fileID")
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.datasets[id]
	for i, f := range d.Files {
		if f.ID == fid {
			d.Files = append(d.Files[:i:i], d.Files[i+1:]...)
			b.datasets[id] = d
			writeJSON(w, 200, map[string]string{"message": "deleted"})
			return
		}
	}
	fail(w, 404, "File not found")
}

func (b *Backend) datasetAnswers(w http.ResponseWriter, r *http.Request) {
	if !b.requireAdmin(w, r) {
		return
	}
	b.mu.Lock()
	subs := b.submissions[chi.URLParam(r, "id")]
	b.mu.Unlock()
	total := 0
	for _, s := range subs {
		total += len(s.Answers)
	}
	if subs == nil {
		subs = []dataset.Submission{}
	}
	writeJSON(w, 200, dataset.AnswersPage{Submissions: subs, TotalSubmissions: len(subs), TotalAnswers: total})
}

func (b *Backend) listQuestions(w http.ResponseWriter, r *http.Request) {
	d, _ := b.Dataset(chi.URLParam(r, "id"))
	qs := d.Questions
	if qs == nil {
		qs = []dataset.Question{}
	}
	writeJSON(w, 200, map[string]any{"questions": qs})
}

func (b *Backend) createQuestion(w http.ResponseWriter, r *http.Request) {
	if !b.requireAdmin(w, r) {
		return
	}
	var in dataset.QuestionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		fail(w, 400, err.Error())
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.datasets[in.DatasetID]
	if !ok {
		fail(w, 404, "Dataset not found")
		return
	}
	q := dataset.Question{ID: b.nextID("q"), DatasetID: d.ID, Text: in.Text, AnswerType: in.AnswerType, Options: in.Options}
	d.Questions = append(d.Questions, q)
	b.datasets[d.ID] = d
	writeJSON(w, 201, map[string]any{"question": q})
}

func (b *Backend) updateQuestion(w http.ResponseWriter, r *http.Request) {
	if !b.requireAdmin(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	var in dataset.QuestionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		fail(w, 400, err.Error())
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for did, d := range b.datasets {
		for i, q := range d.Questions {
			if q.ID == id {
				q.Text, q.AnswerType, q.Options = in.Text, in.AnswerType, in.Options
				d.Questions[i] = q
				b.datasets[did] = d
				writeJSON(w, 200, map[string]any{"question": q})
				return
			}
		}
	}
	fail(w, 404, "Question not found")
}

func (b *Backend) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	if !b.requireAdmin(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	for did, d := range b.datasets {
		for i, q := range d.Questions {
			if q.ID == id {
				d.Questions = append(d.Questions[:i:i], d.Questions[i+1:]...)
				b.datasets[did] = d
				writeJSON(w, 200, map[string]string{"message": "deleted"})
				return
			}
		}
	}
	fail(w, 404, "Question not found")
}

func (b *Backend) submitBatch(w http.ResponseWriter, r *http.Request) {
	var req dataset.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, 400, err.Error())
		return
	}
	if len(req.Answers) == 0 {
		fail(w, 400, "answers must not be empty")
		return
	}
	u := userFrom(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches = append(b.batches, req)
	now := time.Now().UTC()
	sub := dataset.Submission{ID: b.nextID("s"), UserID: u.ID, Status: dataset.StatusCompleted, StartedAt: &now, SubmittedAt: &now, User: &u}
	for _, a := range req.Answers {
		sub.Answers = append(sub.Answers, dataset.SubmissionAnswer{ID: b.nextID("a"), AnswerValue: a.AnswerValue, CreatedAt: &now})
	}
	b.submissions[req.DatasetID] = append(b.submissions[req.DatasetID], sub)
	writeJSON(w, 201, map[string]any{"submission": map[string]any{"id": sub.ID}, "count": len(req.Answers)})
}

func (b *Backend) myAnswers(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	as := b.answers[userFrom(r).ID+"|"+chi.URLParam(r, "id")]
	b.mu.Unlock()
	if as == nil {
		as = []dataset.Answer{}
	}
	writeJSON(w, 200, map[string]any{"answers": as})
}
