// Package dataset holds the entities exchanged with the dataset backend.
package dataset

import (
	"time"

	"github.com/mind-engage/labeld/internal/answertype"
)

type FileType string

const (
	FileImage FileType = "image"
	FileVideo FileType = "video"
	FileAudio FileType = "audio"
	FileCSV   FileType = "csv"
)

func (t FileType) Valid() bool {
	switch t {
	case FileImage, FileVideo, FileAudio, FileCSV:
		return true
	}
	return false
}

type Question struct {
	ID         string          `json:"id"`
	DatasetID  string          `json:"dataset_id,omitempty"`
	Text       string          `json:"question_text"`
	AnswerType answertype.Kind `json:"answer_type"`
	Options    []string        `json:"options"` // nil unless AnswerType needs options
}

type File struct {
	ID       string   `json:"id"`
	FileName string   `json:"file_name"`
	FileURL  string   `json:"file_url"`
	FileSize int64    `json:"file_size,omitempty"`
	FileType FileType `json:"file_type,omitempty"`
}

type Dataset struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	FileType    FileType   `json:"file_type"`
	IsPublished bool       `json:"is_published"`
	Questions   []Question `json:"questions"`
	Files       []File     `json:"dataset_files"`
	CreatedBy   string     `json:"created_by,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// Question looks up one of d's questions by id.
func (d Dataset) Question(id string) (Question, bool) {
	for _, q := range d.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// HasFile reports whether id names one of d's files.
func (d Dataset) HasFile(id string) bool {
	for _, f := range d.Files {
		if f.ID == id {
			return true
		}
	}
	return false
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"` // "user" | "admin"
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Answer is one stored answer as returned by /answers/my-answers.
type Answer struct {
	ID          string     `json:"id,omitempty"`
	QuestionID  string     `json:"question_id"`
	FileID      *string    `json:"file_id"`
	AnswerValue string     `json:"answer_value"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// AnswerInput is one record of a batch submission. FileID is nil when the
// dataset has no files.
type AnswerInput struct {
	QuestionID  string  `json:"question_id"`
	FileID      *string `json:"file_id"`
	AnswerValue string  `json:"answer_value"`
}

type BatchRequest struct {
	DatasetID string        `json:"dataset_id"`
	Answers   []AnswerInput `json:"answers"`
}

type SubmissionStatus string

const (
	StatusInProgress SubmissionStatus = "in_progress"
	StatusCompleted  SubmissionStatus = "completed"
)

// Submission is one batch of answers as listed by /datasets/:id/answers,
// with the related user, question and file rows embedded by the backend.
type Submission struct {
	ID          string             `json:"id"`
	UserID      string             `json:"user_id"`
	Status      SubmissionStatus   `json:"status"`
	StartedAt   *time.Time         `json:"started_at"`
	SubmittedAt *time.Time         `json:"submitted_at"`
	User        *User              `json:"users"`
	Answers     []SubmissionAnswer `json:"answers"`
}

type SubmissionAnswer struct {
	ID          string     `json:"id"`
	AnswerValue string     `json:"answer_value"`
	CreatedAt   *time.Time `json:"created_at"`
	Question    *Question  `json:"questions"`
	File        *File      `json:"dataset_files"`
}

// AnswersPage is the body of GET /datasets/:id/answers.
type AnswersPage struct {
	Submissions      []Submission `json:"submissions"`
	TotalSubmissions int          `json:"total_submissions"`
	TotalAnswers     int          `json:"total_answers"`
}
