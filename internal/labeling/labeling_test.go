package labeling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/labeld/internal/answertype"
	"github.com/mind-engage/labeld/internal/dataset"
)

func strp(s string) *string { return &s }

func twoByTwo() dataset.Dataset {
	return dataset.Dataset{
		ID:   "d1",
		Name: "pets",
		Questions: []dataset.Question{
			{ID: "q1", Text: "Describe", AnswerType: answertype.Text},
			{ID: "q2", Text: "Pick", AnswerType: answertype.SingleChoice, Options: []string{"A", "B"}},
		},
		Files: []dataset.File{{ID: "f1", FileName: "1.png"}, {ID: "f2", FileName: "2.png"}},
	}
}

func TestKeyInjective(t *testing.T) {
	files := []FileRef{NoFile(), File("no-file"), File(""), File("a_b"), File("a"), File("b")}
	questions := []string{"", "b", "c", "_c", "b_c"}
	seen := map[Key]string{}
	for _, f := range files {
		for _, q := range questions {
			k := KeyFor(f, q)
			label := fmt.Sprintf("%v|%v|%q", f.IsFile(), f.ID(), q)
			if prev, ok := seen[k]; ok {
				t.Fatalf("key collision between %s and %s", prev, label)
			}
			seen[k] = label
		}
	}
	assert.NotEqual(t, NoFile(), File("no-file"))
	assert.NotEqual(t, NoFile(), File(""))
	assert.Equal(t, File("x"), FileRefFromPtr(strp("x")))
	assert.Equal(t, NoFile(), FileRefFromPtr(nil))
	assert.Nil(t, NoFile().Ptr())
}

func TestKeyLess(t *testing.T) {
	keys := []Key{KeyFor(File("b"), "q1"), KeyFor(File("a"), "q2"), KeyFor(NoFile(), "q9"), KeyFor(File("a"), "q1")}
	s := NewSheet()
	for _, k := range keys {
		s.Set(k, "x")
	}
	assert.Equal(t, []Key{KeyFor(NoFile(), "q9"), KeyFor(File("a"), "q1"), KeyFor(File("a"), "q2"), KeyFor(File("b"), "q1")}, s.Keys())
}

func TestBatchExampleScenario(t *testing.T) {
	d := twoByTwo()
	s := NewSheet()
	s.Set(KeyFor(File("f2"), "q2"), "B")
	s.Set(KeyFor(File("f1"), "q1"), "hello")

	got, err := Batch(s, d)
	require.NoError(t, err)
	assert.Equal(t, []dataset.AnswerInput{
		{QuestionID: "q1", FileID: strp("f1"), AnswerValue: "hello"},
		{QuestionID: "q2", FileID: strp("f2"), AnswerValue: "B"},
	}, got)
}

func TestBatchCountsOnlyNonEmpty(t *testing.T) {
	d := twoByTwo()
	s := NewSheet()
	s.Set(KeyFor(File("f1"), "q1"), "a")
	s.Set(KeyFor(File("f1"), "q2"), "")
	s.Set(KeyFor(File("f2"), "q1"), "b")
	s.Set(KeyFor(File("gone"), "q1"), "stale")

	got, err := Batch(s, d)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, Progress{Answered: 2, Total: 4}, ProgressOf(s, d))
}

func TestBatchNoFilesUsesNullFileID(t *testing.T) {
	d := dataset.Dataset{ID: "d", Questions: []dataset.Question{{ID: "q1", AnswerType: answertype.Number}}}
	s := NewSheet()

	_, err := Batch(s, d)
	assert.ErrorIs(t, err, ErrNothingToSubmit)
	assert.Equal(t, Progress{Answered: 0, Total: 1}, ProgressOf(s, d))

	s.Set(KeyFor(NoFile(), "q1"), "42")
	got, err := Batch(s, d)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].FileID)
}

type fakeBackend struct {
	mu        sync.Mutex
	ds        dataset.Dataset
	prior     []dataset.Answer
	getErr    error
	priorErr  error
	submitErr error
	batches   []dataset.BatchRequest
	gets      int
}

func (f *fakeBackend) GetDataset(_ context.Context, id string) (dataset.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return dataset.Dataset{}, f.getErr
	}
	return f.ds, nil
}

func (f *fakeBackend) MyAnswers(context.Context, string) ([]dataset.Answer, error) {
	return f.prior, f.priorErr
}

func (f *fakeBackend) SubmitBatch(_ context.Context, req dataset.BatchRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.batches = append(f.batches, req)
	return nil
}

func TestDeskOpenPrefillsPriorAnswers(t *testing.T) {
	b := &fakeBackend{ds: twoByTwo(), prior: []dataset.Answer{
		{QuestionID: "q2", FileID: strp("f1"), AnswerValue: "A"},
	}}
	desk := NewDesk()
	s, err := desk.Open(context.Background(), "sid", b, "d1", nil)
	require.NoError(t, err)

	v := s.View()
	assert.Equal(t, Progress{Answered: 1, Total: 4}, v.Progress)
	require.Len(t, v.Answers, 1)
	assert.Equal(t, "A", v.Answers[0].Value)

	cur, ok := desk.Current("sid", "d1")
	require.True(t, ok)
	assert.Same(t, s, cur)
	_, ok = desk.Current("sid", "other")
	assert.False(t, ok)
}

func TestDeskOpenFailsWhenEitherFetchFails(t *testing.T) {
	desk := NewDesk()
	_, err := desk.Open(context.Background(), "sid", &fakeBackend{ds: twoByTwo(), priorErr: errors.New("boom")}, "d1", nil)
	assert.Error(t, err)
	_, err = desk.Open(context.Background(), "sid", &fakeBackend{getErr: errors.New("boom")}, "d1", nil)
	assert.Error(t, err)
	_, ok := desk.Current("sid", "d1")
	assert.False(t, ok)
}

func TestSessionAnswerValidates(t *testing.T) {
	s := NewSession(twoByTwo(), nil)

	_, err := s.Answer(File("f1"), "q2", "C")
	assert.ErrorIs(t, err, dataset.ErrValidation)
	_, err = s.Answer(File("f9"), "q1", "x")
	assert.ErrorIs(t, err, dataset.ErrValidation)
	_, err = s.Answer(NoFile(), "q1", "x")
	assert.ErrorIs(t, err, dataset.ErrValidation)
	_, err = s.Answer(File("f1"), "q9", "x")
	assert.ErrorIs(t, err, dataset.ErrValidation)

	p, err := s.Answer(File("f1"), "q2", "B")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Answered)

	p, err = s.Answer(File("f1"), "q2", "")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Answered)
}

func TestSessionSubmitClearsOnSuccess(t *testing.T) {
	b := &fakeBackend{ds: twoByTwo()}
	s := NewSession(twoByTwo(), nil)
	_, err := s.Answer(File("f1"), "q1", "hello")
	require.NoError(t, err)
	_, err = s.Answer(File("f2"), "q2", "B")
	require.NoError(t, err)

	n, v, err := s.Submit(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, b.batches, 1)
	assert.Equal(t, "d1", b.batches[0].DatasetID)
	assert.Len(t, b.batches[0].Answers, 2)
	assert.Equal(t, 1, b.gets)
	assert.Empty(t, v.Answers)
	assert.Equal(t, 0, s.Progress().Answered)
}

func TestSessionSubmitKeepsSheetOnFailure(t *testing.T) {
	b := &fakeBackend{ds: twoByTwo(), submitErr: errors.New("503")}
	s := NewSession(twoByTwo(), nil)
	_, err := s.Answer(File("f1"), "q1", "hello")
	require.NoError(t, err)

	_, _, err = s.Submit(context.Background(), b)
	require.Error(t, err)
	assert.Equal(t, 1, s.Progress().Answered)
}

func TestSessionSubmitNothingMakesNoCall(t *testing.T) {
	d := dataset.Dataset{ID: "d", Questions: []dataset.Question{{ID: "q1", AnswerType: answertype.Number}}}
	b := &fakeBackend{ds: d}
	s := NewSession(d, nil)
	_, err := s.Answer(NoFile(), "q1", " ")
	require.NoError(t, err)

	_, _, err = s.Submit(context.Background(), b)
	assert.ErrorIs(t, err, ErrNothingToSubmit)
	assert.Empty(t, b.batches)
	assert.Zero(t, b.gets)
}

func TestDeskOpenGuardKeepsCurrentSession(t *testing.T) {
	desk := NewDesk()
	b := &fakeBackend{ds: twoByTwo()}
	s, err := desk.Open(context.Background(), "sid", b, "d1", nil)
	require.NoError(t, err)
	_, err = s.Answer(File("f1"), "q1", "keep me")
	require.NoError(t, err)

	errDraft := errors.New("draft")
	other := twoByTwo()
	other.ID = "d2"
	_, err = desk.Open(context.Background(), "sid", &fakeBackend{ds: other}, "d2", func(dataset.Dataset) error { return errDraft })
	assert.ErrorIs(t, err, errDraft)

	cur, ok := desk.Current("sid", "d1")
	require.True(t, ok)
	assert.Equal(t, 1, cur.Progress().Answered)
}

func TestNewSessionCanonicalizesPriorAnswers(t *testing.T) {
	d := twoByTwo()
	d.Questions = append(d.Questions, dataset.Question{ID: "q3", Text: "Alive?", AnswerType: answertype.Binary})
	s := NewSession(d, []dataset.Answer{
		{QuestionID: "q3", FileID: strp("f1"), AnswerValue: "yes"},
		{QuestionID: "q3", FileID: strp("f2"), AnswerValue: "Có"},
		{QuestionID: "q2", FileID: strp("f1"), AnswerValue: "legacy"},
	})

	got := map[string]string{}
	for _, c := range s.View().Answers {
		got[*c.FileID+"/"+c.QuestionID] = c.Value
	}
	assert.Equal(t, map[string]string{"f1/q3": "Có", "f2/q3": "Có", "f1/q2": "legacy"}, got)
}

func TestSessionAnswerUntypedQuestion(t *testing.T) {
	var d dataset.Dataset
	require.NoError(t, json.Unmarshal([]byte(`{"id":"d1","questions":[{"id":"q1","question_text":"Notes"}]}`), &d))
	s := NewSession(d, nil)

	assert.NotPanics(t, func() {
		_, err := s.Answer(NoFile(), "q1", "a")
		assert.ErrorIs(t, err, dataset.ErrValidation)
	})
}

// gatedBackend holds SubmitBatch until release is closed.
type gatedBackend struct {
	fakeBackend
	entered chan struct{}
	release chan struct{}
}

func (g *gatedBackend) SubmitBatch(ctx context.Context, req dataset.BatchRequest) error {
	close(g.entered)
	<-g.release
	return g.fakeBackend.SubmitBatch(ctx, req)
}

func TestSessionSubmitKeepsAnswersGivenMidFlight(t *testing.T) {
	b := &gatedBackend{fakeBackend: fakeBackend{ds: twoByTwo()}, entered: make(chan struct{}), release: make(chan struct{})}
	s := NewSession(twoByTwo(), nil)
	_, err := s.Answer(File("f1"), "q1", "first")
	require.NoError(t, err)
	_, err = s.Answer(File("f1"), "q2", "A")
	require.NoError(t, err)

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, _, err := s.Submit(context.Background(), b)
		done <- result{n, err}
	}()
	<-b.entered

	// a new cell and a changed cell while the batch is on the wire
	_, err = s.Answer(File("f2"), "q1", "late")
	require.NoError(t, err)
	_, err = s.Answer(File("f1"), "q2", "B")
	require.NoError(t, err)
	close(b.release)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, 2, res.n)
	require.Len(t, b.batches, 1)
	assert.Len(t, b.batches[0].Answers, 2)

	assert.Equal(t, 2, s.Progress().Answered)
	got := map[string]string{}
	for _, c := range s.View().Answers {
		got[*c.FileID+"/"+c.QuestionID] = c.Value
	}
	assert.Equal(t, map[string]string{"f2/q1": "late", "f1/q2": "B"}, got)
}
