package labeling

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/labeld/internal/answertype"
	"github.com/mind-engage/labeld/internal/dataset"
)

// Backend is the part of the dataset API a labeling session needs. It is
// already bound to the calling user's credentials.
type Backend interface {
	GetDataset(ctx context.Context, id string) (dataset.Dataset, error)
	MyAnswers(ctx context.Context, datasetID string) ([]dataset.Answer, error)
	SubmitBatch(ctx context.Context, req dataset.BatchRequest) error
}

// Session is the answering state of one user on one dataset.
type Session struct {
	mu      sync.Mutex
	dataset dataset.Dataset
	sheet   *Sheet
}

// Cell is one answered cell as shown to the browser.
type Cell struct {
	FileID     *string `json:"file_id"`
	QuestionID string  `json:"question_id"`
	Value      string  `json:"answer_value"`
}

type View struct {
	Dataset  dataset.Dataset `json:"dataset"`
	Answers  []Cell          `json:"answers"`
	Progress Progress        `json:"progress"`
}

// NewSession starts a session on d, seeded with the user's prior answers.
// Prior values are brought to their canonical form where they parse; values
// that do not are kept as the backend stored them.
func NewSession(d dataset.Dataset, prior []dataset.Answer) *Session {
	s := &Session{dataset: d, sheet: NewSheet()}
	for _, a := range prior {
		v := a.AnswerValue
		if q, ok := d.Question(a.QuestionID); ok {
			if nv, err := answertype.Normalize(q.AnswerType, q.Options, v); err == nil {
				v = nv
			}
		}
		s.sheet.Set(KeyFor(FileRefFromPtr(a.FileID), a.QuestionID), v)
	}
	return s
}

func (s *Session) DatasetID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataset.ID
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	keys := s.sheet.Keys()
	cells := make([]Cell, 0, len(keys))
	for _, k := range keys {
		v, _ := s.sheet.Get(k)
		cells = append(cells, Cell{FileID: k.File.Ptr(), QuestionID: k.Question, Value: v})
	}
	return View{Dataset: s.dataset, Answers: cells, Progress: ProgressOf(s.sheet, s.dataset)}
}

// Answer records raw for (file, question) after validating it against the
// question's answer type. An empty raw clears the cell.
func (s *Session) Answer(file FileRef, questionID, raw string) (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.dataset.Question(questionID)
	if !ok {
		return Progress{}, fmt.Errorf("%w: unknown question %q", dataset.ErrValidation, questionID)
	}
	if !q.AnswerType.Valid() {
		return Progress{}, fmt.Errorf("%w: question %q has no answer type", dataset.ErrValidation, questionID)
	}
	if err := s.checkFile(file); err != nil {
		return Progress{}, err
	}
	v, err := answertype.Normalize(q.AnswerType, q.Options, raw)
	if err != nil {
		return Progress{}, fmt.Errorf("%w: %v", dataset.ErrValidation, err)
	}
	s.sheet.Set(KeyFor(file, questionID), v)
	return ProgressOf(s.sheet, s.dataset), nil
}

func (s *Session) checkFile(file FileRef) error {
	if len(s.dataset.Files) == 0 {
		if file.IsFile() {
			return fmt.Errorf("%w: dataset has no files, file_id must be null", dataset.ErrValidation)
		}
		return nil
	}
	if !file.IsFile() || !s.dataset.HasFile(file.ID()) {
		return fmt.Errorf("%w: unknown file %s", dataset.ErrValidation, file)
	}
	return nil
}

func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ProgressOf(s.sheet, s.dataset)
}

// Submit sends every answered cell as one batch. On success the submitted
// cells are cleared and the dataset re-fetched; answers given while the
// request was in flight stay on the sheet. On failure the sheet is left as it
// was so the user can retry.
func (s *Session) Submit(ctx context.Context, b Backend) (int, View, error) {
	s.mu.Lock()
	d := s.dataset
	records, err := Batch(s.sheet, d)
	snap := s.sheet.Snapshot()
	s.mu.Unlock()
	if err != nil {
		return 0, View{}, err
	}

	if err := b.SubmitBatch(ctx, dataset.BatchRequest{DatasetID: d.ID, Answers: records}); err != nil {
		return 0, View{}, err
	}

	s.mu.Lock()
	s.sheet.Settle(snap)
	s.mu.Unlock()

	fresh, err := b.GetDataset(ctx, d.ID)
	if err != nil {
		// the batch went through; keep the old dataset rather than failing
		return len(records), s.View(), nil
	}
	s.mu.Lock()
	s.dataset = fresh
	v := s.viewLocked()
	s.mu.Unlock()
	return len(records), v, nil
}

// Desk holds the current labeling session of every browser session. A
// browser session works on one dataset at a time.
type Desk struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewDesk() *Desk { return &Desk{sessions: map[string]*Session{}} }

// Guard vets a fetched dataset before a session is opened on it.
type Guard func(dataset.Dataset) error

// Open fetches the dataset and the user's prior answers concurrently and
// starts a fresh session on them, replacing whatever the browser session was
// working on. Either fetch failing fails the whole load. When guard rejects
// the dataset the error is returned and the current session is left alone.
func (d *Desk) Open(ctx context.Context, sid string, b Backend, datasetID string, guard Guard) (*Session, error) {
	var (
		ds    dataset.Dataset
		prior []dataset.Answer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ds, err = b.GetDataset(gctx, datasetID)
		return err
	})
	g.Go(func() error {
		var err error
		prior, err = b.MyAnswers(gctx, datasetID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if guard != nil {
		if err := guard(ds); err != nil {
			return nil, err
		}
	}

	s := NewSession(ds, prior)
	d.mu.Lock()
	d.sessions[sid] = s
	d.mu.Unlock()
	return s, nil
}

// Current returns the session sid is working on if it is on datasetID.
func (d *Desk) Current(sid, datasetID string) (*Session, bool) {
	d.mu.Lock()
	s, ok := d.sessions[sid]
	d.mu.Unlock()
	if !ok || s.DatasetID() != datasetID {
		return nil, false
	}
	return s, true
}

// Drop forgets sid's session (logout).
func (d *Desk) Drop(sid string) {
	d.mu.Lock()
	delete(d.sessions, sid)
	d.mu.Unlock()
}
