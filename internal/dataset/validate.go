package dataset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mind-engage/labeld/internal/answertype"
)

// ErrValidation marks client-side validation failures; nothing is sent
// upstream when it is returned.
var ErrValidation = errors.New("validation failed")

// Input is the editable part of a dataset as submitted by the dataset form.
type Input struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	FileType    FileType        `json:"file_type"`
	IsPublished bool            `json:"is_published"`
	Questions   []QuestionInput `json:"questions,omitempty"`
}

type QuestionInput struct {
	DatasetID  string          `json:"dataset_id,omitempty"`
	Text       string          `json:"question_text"`
	AnswerType answertype.Kind `json:"answer_type"`
	Options    []string        `json:"options"`
}

// Normalize checks in and cleans its questions in place.
func (in *Input) Normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !in.FileType.Valid() {
		return fmt.Errorf("%w: file_type must be image, video, audio or csv", ErrValidation)
	}
	for i := range in.Questions {
		if err := in.Questions[i].Normalize(); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return nil
}

// Normalize checks q for a backend dataset: non-empty text, one of the server
// answer types, options only (and always) where the type needs them.
func (q *QuestionInput) Normalize() error {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return fmt.Errorf("%w: question text is required", ErrValidation)
	}
	if !q.AnswerType.Valid() {
		return fmt.Errorf("%w: answer_type is required", ErrValidation)
	}
	if !q.AnswerType.ServerKind() {
		return fmt.Errorf("%w: answer type %s is only available in the local wizard", ErrValidation, q.AnswerType)
	}
	opts, err := answertype.ValidateOptions(q.AnswerType, q.Options)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	q.Options = opts
	return nil
}

// Patch is a partial dataset update; nil fields are left unchanged.
type Patch struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	FileType    *FileType `json:"file_type,omitempty"`
	IsPublished *bool     `json:"is_published,omitempty"`
}
