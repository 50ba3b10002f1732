package labeling

import (
	"errors"
	"sort"

	"github.com/mind-engage/labeld/internal/dataset"
)

// ErrNothingToSubmit is returned by Batch when no cell holds an answer.
var ErrNothingToSubmit = errors.New("answer at least one question before submitting")

// Sheet is the flat answer mapping of one session. Values are canonical
// answer strings; "" and missing both mean unanswered.
type Sheet struct {
	cells map[Key]string
}

func NewSheet() *Sheet { return &Sheet{cells: map[Key]string{}} }

func (s *Sheet) Set(k Key, value string) {
	if value == "" {
		delete(s.cells, k)
		return
	}
	s.cells[k] = value
}

// Get returns the stored value and whether it counts as answered.
func (s *Sheet) Get(k Key) (string, bool) {
	v, ok := s.cells[k]
	return v, ok && v != ""
}

func (s *Sheet) Len() int { return len(s.cells) }

func (s *Sheet) Clear() { s.cells = map[Key]string{} }

// Snapshot copies the current cells.
func (s *Sheet) Snapshot() map[Key]string {
	out := make(map[Key]string, len(s.cells))
	for k, v := range s.cells {
		out[k] = v
	}
	return out
}

// Settle forgets every cell that still holds the value it had in snap.
// Cells written since snap was taken are kept.
func (s *Sheet) Settle(snap map[Key]string) {
	for k, v := range snap {
		if cur, ok := s.cells[k]; ok && cur == v {
			delete(s.cells, k)
		}
	}
}

// Keys returns the answered keys in Key.Less order.
func (s *Sheet) Keys() []Key {
	out := make([]Key, 0, len(s.cells))
	for k := range s.cells {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Cells lists the files of d (or NoFile when d has none): the rows of the
// answer grid in display order.
func Cells(d dataset.Dataset) []FileRef {
	if len(d.Files) == 0 {
		return []FileRef{NoFile()}
	}
	out := make([]FileRef, len(d.Files))
	for i, f := range d.Files {
		out[i] = File(f.ID)
	}
	return out
}

type Progress struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

// ProgressOf counts answers for d's current files and questions only; keys
// left over from other files or questions are ignored.
func ProgressOf(s *Sheet, d dataset.Dataset) Progress {
	rows := Cells(d)
	p := Progress{Total: len(rows) * len(d.Questions)}
	for _, f := range rows {
		for _, q := range d.Questions {
			if _, ok := s.Get(KeyFor(f, q.ID)); ok {
				p.Answered++
			}
		}
	}
	return p
}

// Batch flattens s into answer records for one batch submission, file-major
// then question-minor.
func Batch(s *Sheet, d dataset.Dataset) ([]dataset.AnswerInput, error) {
	var out []dataset.AnswerInput
	for _, f := range Cells(d) {
		for _, q := range d.Questions {
			v, ok := s.Get(KeyFor(f, q.ID))
			if !ok {
				continue
			}
			out = append(out, dataset.AnswerInput{
				QuestionID:  q.ID,
				FileID:      f.Ptr(),
				AnswerValue: v,
			})
		}
	}
	if len(out) == 0 {
		return nil, ErrNothingToSubmit
	}
	return out, nil
}
