// Package wizard holds the local three-step labeling flow: a template of
// questions, a list of uploaded files each carrying its own copy of the
// template, and the answers given per file. Nothing here is sent upstream.
package wizard

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mind-engage/labeld/internal/answertype"
	"github.com/mind-engage/labeld/internal/dataset"
)

var (
	ErrItemNotFound     = errors.New("item not found")
	ErrQuestionNotFound = errors.New("question not found")
)

type Question struct {
	ID         string          `json:"id"`
	Text       string          `json:"text"`
	AnswerType answertype.Kind `json:"answerType"`
	Options    []string        `json:"options"`
	Answer     string          `json:"answer"`
}

func (q Question) clone() Question {
	if q.Options != nil {
		q.Options = append([]string(nil), q.Options...)
	}
	return q
}

// Draft is a question as typed into a form, before it gets an id.
type Draft struct {
	Text       string          `json:"text"`
	AnswerType answertype.Kind `json:"answerType"`
	Options    []string        `json:"options"`
}

func (d Draft) build() (Question, error) {
	text := strings.TrimSpace(d.Text)
	if text == "" {
		return Question{}, fmt.Errorf("%w: question text is required", dataset.ErrValidation)
	}
	if !d.AnswerType.Valid() {
		return Question{}, fmt.Errorf("%w: answerType is required", dataset.ErrValidation)
	}
	opts, err := answertype.ValidateOptions(d.AnswerType, d.Options)
	if err != nil {
		return Question{}, fmt.Errorf("%w: %v", dataset.ErrValidation, err)
	}
	return Question{ID: uuid.NewString(), Text: text, AnswerType: d.AnswerType, Options: opts}, nil
}

// Patch edits one question; nil fields are left alone.
type Patch struct {
	Text       *string          `json:"text,omitempty"`
	AnswerType *answertype.Kind `json:"answerType,omitempty"`
	Options    *[]string        `json:"options,omitempty"`
}

type Config struct {
	FileType          dataset.FileType `json:"fileType"`
	TemplateQuestions []Question       `json:"templateQuestions"`
}

// Upload describes a file already written to the blob store.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	BlobKey     string
}

type Item struct {
	ID          string     `json:"id"`
	FileName    string     `json:"fileName"`
	ContentType string     `json:"contentType,omitempty"`
	Size        int64      `json:"size"`
	BlobKey     string     `json:"-"`
	Questions   []Question `json:"questions"`
}

func (it Item) clone() Item {
	qs := make([]Question, len(it.Questions))
	for i, q := range it.Questions {
		qs[i] = q.clone()
	}
	it.Questions = qs
	return it
}

// Snapshot is a deep copy of a project at one instant.
type Snapshot struct {
	Config Config `json:"config"`
	Items  []Item `json:"items"`
}

// Project is the wizard state of one browser session. All mutation goes
// through its methods.
type Project struct {
	mu     sync.Mutex
	config Config
	items  []Item
}

func NewProject() *Project {
	return &Project{config: Config{FileType: dataset.FileImage, TemplateQuestions: []Question{}}}
}

// UpdateConfig replaces the file type and template questions and starts over
// with no items. It returns the blob keys of the discarded items.
func (p *Project) UpdateConfig(fileType dataset.FileType, drafts []Draft) (Config, []string, error) {
	if !fileType.Valid() {
		return Config{}, nil, fmt.Errorf("%w: fileType must be image, video, audio or csv", dataset.ErrValidation)
	}
	qs := make([]Question, 0, len(drafts))
	for i, d := range drafts {
		q, err := d.build()
		if err != nil {
			return Config{}, nil, fmt.Errorf("template question %d: %w", i+1, err)
		}
		qs = append(qs, q)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	dropped := p.blobKeysLocked()
	p.config = Config{FileType: fileType, TemplateQuestions: qs}
	p.items = nil
	return p.configLocked(), dropped, nil
}

// AddItems appends one item per upload, each with its own copy of the
// template questions under fresh ids.
func (p *Project) AddItems(uploads []Upload) []Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Item, 0, len(uploads))
	for _, u := range uploads {
		it := Item{
			ID:          uuid.NewString(),
			FileName:    u.FileName,
			ContentType: u.ContentType,
			Size:        u.Size,
			BlobKey:     u.BlobKey,
			Questions:   make([]Question, len(p.config.TemplateQuestions)),
		}
		for i, tq := range p.config.TemplateQuestions {
			q := tq.clone()
			q.ID = uuid.NewString()
			q.Answer = ""
			it.Questions[i] = q
		}
		p.items = append(p.items, it)
		out = append(out, it.clone())
	}
	return out
}

// ReplaceFile swaps the file of one item and returns the old blob key.
func (p *Project) ReplaceFile(itemID string, u Upload) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	it, err := p.itemLocked(itemID)
	if err != nil {
		return "", err
	}
	old := it.BlobKey
	it.FileName, it.ContentType, it.Size, it.BlobKey = u.FileName, u.ContentType, u.Size, u.BlobKey
	return old, nil
}

// AddQuestion appends an ad hoc question to one item only.
func (p *Project) AddQuestion(itemID string, d Draft) (Question, error) {
	q, err := d.build()
	if err != nil {
		return Question{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	it, err := p.itemLocked(itemID)
	if err != nil {
		return Question{}, err
	}
	it.Questions = append(it.Questions, q)
	return q.clone(), nil
}

// EditQuestion applies patch to one question of one item. Changing the
// answer type or the options resets the answer.
func (p *Project) EditQuestion(itemID, questionID string, patch Patch) (Question, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, err := p.questionLocked(itemID, questionID)
	if err != nil {
		return Question{}, err
	}

	next := q.clone()
	if patch.Text != nil {
		next.Text = strings.TrimSpace(*patch.Text)
		if next.Text == "" {
			return Question{}, fmt.Errorf("%w: question text is required", dataset.ErrValidation)
		}
	}
	reset := false
	if patch.AnswerType != nil {
		if !patch.AnswerType.Valid() {
			return Question{}, fmt.Errorf("%w: unknown answer type", dataset.ErrValidation)
		}
		next.AnswerType = *patch.AnswerType
		reset = true
	}
	if patch.Options != nil {
		next.Options = *patch.Options
		reset = true
	}
	if reset {
		opts, err := answertype.ValidateOptions(next.AnswerType, next.Options)
		if err != nil {
			return Question{}, fmt.Errorf("%w: %v", dataset.ErrValidation, err)
		}
		next.Options = opts
		next.Answer = ""
	}
	*q = next
	return next.clone(), nil
}

func (p *Project) RemoveQuestion(itemID, questionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	it, err := p.itemLocked(itemID)
	if err != nil {
		return err
	}
	for i, q := range it.Questions {
		if q.ID == questionID {
			it.Questions = append(it.Questions[:i:i], it.Questions[i+1:]...)
			return nil
		}
	}
	return ErrQuestionNotFound
}

// SetAnswer records raw for one question after validating it against the
// question's answer type.
func (p *Project) SetAnswer(itemID, questionID, raw string) (Question, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, err := p.questionLocked(itemID, questionID)
	if err != nil {
		return Question{}, err
	}
	v, err := answertype.Normalize(q.AnswerType, q.Options, raw)
	if err != nil {
		return Question{}, fmt.Errorf("%w: %v", dataset.ErrValidation, err)
	}
	q.Answer = v
	return q.clone(), nil
}

func (p *Project) Item(itemID string) (Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	it, err := p.itemLocked(itemID)
	if err != nil {
		return Item{}, err
	}
	return it.clone(), nil
}

func (p *Project) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	items := make([]Item, len(p.items))
	for i, it := range p.items {
		items[i] = it.clone()
	}
	return Snapshot{Config: p.configLocked(), Items: items}
}

// BlobKeys lists the blob keys of all items.
func (p *Project) BlobKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.blobKeysLocked()
}

func (p *Project) blobKeysLocked() []string {
	out := make([]string, 0, len(p.items))
	for _, it := range p.items {
		if it.BlobKey != "" {
			out = append(out, it.BlobKey)
		}
	}
	return out
}

func (p *Project) configLocked() Config {
	qs := make([]Question, len(p.config.TemplateQuestions))
	for i, q := range p.config.TemplateQuestions {
		qs[i] = q.clone()
	}
	return Config{FileType: p.config.FileType, TemplateQuestions: qs}
}

func (p *Project) itemLocked(id string) (*Item, error) {
	for i := range p.items {
		if p.items[i].ID == id {
			return &p.items[i], nil
		}
	}
	return nil, ErrItemNotFound
}

func (p *Project) questionLocked(itemID, questionID string) (*Question, error) {
	it, err := p.itemLocked(itemID)
	if err != nil {
		return nil, err
	}
	for i := range it.Questions {
		if it.Questions[i].ID == questionID {
			return &it.Questions[i], nil
		}
	}
	return nil, ErrQuestionNotFound
}
