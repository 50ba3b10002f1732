// Package export builds the JSON documents users download: the summary of a
// local wizard project and an admin's dump of all submissions of a dataset.
package export

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mind-engage/labeld/internal/answertype"
	"github.com/mind-engage/labeld/internal/dataset"
	"github.com/mind-engage/labeld/internal/wizard"
)

// ---- local wizard export ----

type LocalQuestion struct {
	Text       string   `json:"text"`
	AnswerType string   `json:"answerType"`
	Options    []string `json:"options"`
}

type LocalAnnotation struct {
	Question   string   `json:"question"`
	AnswerType string   `json:"answerType"`
	Options    []string `json:"options"`
	Answer     string   `json:"answer"`
}

type LocalItem struct {
	FileName    string            `json:"fileName"`
	Format      string            `json:"format"`
	Annotations []LocalAnnotation `json:"annotations"`
}

type LocalExport struct {
	ProjectType       string          `json:"projectType"`
	TotalItems        int             `json:"totalItems"`
	TemplateQuestions []LocalQuestion `json:"templateQuestions"`
	Items             []LocalItem     `json:"items"`
}

// Local summarizes a wizard snapshot. File contents and blob keys are left
// out; options are always arrays, answers always strings.
func Local(s wizard.Snapshot) LocalExport {
	out := LocalExport{
		ProjectType:       string(s.Config.FileType),
		TotalItems:        len(s.Items),
		TemplateQuestions: make([]LocalQuestion, len(s.Config.TemplateQuestions)),
		Items:             make([]LocalItem, len(s.Items)),
	}
	for i, q := range s.Config.TemplateQuestions {
		out.TemplateQuestions[i] = LocalQuestion{Text: q.Text, AnswerType: q.AnswerType.String(), Options: nonNil(q.Options)}
	}
	for i, it := range s.Items {
		anns := make([]LocalAnnotation, len(it.Questions))
		for j, q := range it.Questions {
			anns[j] = LocalAnnotation{
				Question:   q.Text,
				AnswerType: q.AnswerType.String(),
				Options:    nonNil(q.Options),
				Answer:     q.Answer,
			}
		}
		out.Items[i] = LocalItem{FileName: it.FileName, Format: string(s.Config.FileType), Annotations: anns}
	}
	return out
}

// ---- admin export ----

type AdminDataset struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	FileType    string     `json:"file_type"`
	CreatedAt   *time.Time `json:"created_at"`
}

type AdminFile struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
	FileType string `json:"file_type"`
}

type Statistics struct {
	TotalSubmissions int `json:"total_submissions"`
	TotalAnswers     int `json:"total_answers"`
	TotalUsers       int `json:"total_users"`
	TotalQuestions   int `json:"total_questions"`
}

type AdminUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type AdminQuestion struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Type    string   `json:"type"`
	Options []string `json:"options"`
}

type AdminAnswerFile struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
}

type AdminAnswer struct {
	AnswerID    string           `json:"answer_id"`
	Question    AdminQuestion    `json:"question"`
	AnswerValue string           `json:"answer_value"`
	File        *AdminAnswerFile `json:"file"`
	AnsweredAt  *time.Time       `json:"answered_at"`
}

type AdminSubmission struct {
	SubmissionID     string        `json:"submission_id"`
	SubmissionStatus string        `json:"submission_status"`
	StartedAt        *time.Time    `json:"started_at"`
	SubmittedAt      *time.Time    `json:"submitted_at"`
	User             AdminUser     `json:"user"`
	Answers          []AdminAnswer `json:"answers"`
	TotalAnswers     int           `json:"total_answers"`
}

type AdminExport struct {
	Dataset     AdminDataset       `json:"dataset"`
	Questions   []dataset.Question `json:"questions"`
	Files       []AdminFile        `json:"files"`
	Statistics  Statistics         `json:"statistics"`
	Submissions []AdminSubmission  `json:"submissions"`
}

// Admin flattens a dataset and its submissions. Users are counted by
// submitter id.
func Admin(d dataset.Dataset, subs []dataset.Submission) AdminExport {
	out := AdminExport{
		Dataset: AdminDataset{
			ID: d.ID, Name: d.Name, Description: d.Description,
			FileType: string(d.FileType), CreatedAt: d.CreatedAt,
		},
		Questions:   d.Questions,
		Files:       make([]AdminFile, len(d.Files)),
		Submissions: make([]AdminSubmission, len(subs)),
	}
	if out.Questions == nil {
		out.Questions = []dataset.Question{}
	}
	for i, f := range d.Files {
		out.Files[i] = AdminFile{ID: f.ID, FileName: f.FileName, FileURL: f.FileURL, FileType: string(f.FileType)}
	}

	for i, s := range subs {
		out.Statistics.TotalAnswers += len(s.Answers)
		out.Submissions[i] = adminSubmission(s)
	}
	out.Statistics.TotalSubmissions = len(subs)
	out.Statistics.TotalUsers = DistinctUsers(subs)
	out.Statistics.TotalQuestions = len(d.Questions)
	return out
}

// DistinctUsers counts the different submitters in subs.
func DistinctUsers(subs []dataset.Submission) int {
	users := map[string]struct{}{}
	for _, s := range subs {
		users[s.UserID] = struct{}{}
	}
	return len(users)
}

func adminSubmission(s dataset.Submission) AdminSubmission {
	as := AdminSubmission{
		SubmissionID:     s.ID,
		SubmissionStatus: string(s.Status),
		StartedAt:        s.StartedAt,
		SubmittedAt:      s.SubmittedAt,
		Answers:          make([]AdminAnswer, len(s.Answers)),
		TotalAnswers:     len(s.Answers),
	}
	if s.User != nil {
		as.User = AdminUser{ID: s.User.ID, Username: s.User.Username, Email: s.User.Email}
	}
	for i, a := range s.Answers {
		aa := AdminAnswer{AnswerID: a.ID, AnswerValue: a.AnswerValue, AnsweredAt: a.CreatedAt}
		if q := a.Question; q != nil {
			aa.Question = AdminQuestion{ID: q.ID, Text: q.Text, Type: kindName(q.AnswerType), Options: q.Options}
		}
		if f := a.File; f != nil {
			aa.File = &AdminAnswerFile{ID: f.ID, FileName: f.FileName, FileURL: f.FileURL}
		}
		as.Answers[i] = aa
	}
	return as
}

func kindName(k answertype.Kind) string {
	if !k.Valid() {
		return ""
	}
	return k.String()
}

// ---- encoding and filenames ----

// Encode renders v as indented JSON.
func Encode(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return append(b, '\n'), nil
}

// LocalFilename names a wizard export after the unix-millisecond instant.
func LocalFilename(now time.Time) string {
	return fmt.Sprintf("data_labels_%d.json", now.UnixMilli())
}

var unsafeName = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// AdminFilename names a submissions export after the dataset and the instant,
// down to the millisecond.
func AdminFilename(datasetName string, now time.Time) string {
	base := strings.Trim(unsafeName.ReplaceAllString(strings.TrimSpace(datasetName), "_"), "_.")
	if base == "" {
		base = "dataset"
	}
	return fmt.Sprintf("%s_submissions_%s.json", base, now.UTC().Format("20060102-150405.000"))
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
