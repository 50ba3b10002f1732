package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/labeld/internal/answertype"
	"github.com/mind-engage/labeld/internal/dataset"
)

func configured(t *testing.T) *Project {
	t.Helper()
	p := NewProject()
	_, _, err := p.UpdateConfig(dataset.FileImage, []Draft{
		{Text: "Animal?", AnswerType: answertype.SingleChoice, Options: []string{"cat", "dog"}},
		{Text: "Caption", AnswerType: answertype.Text},
	})
	require.NoError(t, err)
	return p
}

func TestUpdateConfigValidatesAndResetsItems(t *testing.T) {
	p := configured(t)
	p.AddItems([]Upload{{FileName: "a.png", BlobKey: "k1"}})

	_, _, err := p.UpdateConfig(dataset.FileImage, []Draft{{Text: " ", AnswerType: answertype.Text}})
	assert.ErrorIs(t, err, dataset.ErrValidation)
	_, _, err = p.UpdateConfig("pdf", nil)
	assert.ErrorIs(t, err, dataset.ErrValidation)
	_, _, err = p.UpdateConfig(dataset.FileImage, []Draft{{Text: "pick", AnswerType: answertype.MultiChoice}})
	assert.ErrorIs(t, err, dataset.ErrValidation)
	assert.Len(t, p.Snapshot().Items, 1, "failed updates leave the project alone")

	cfg, dropped, err := p.UpdateConfig(dataset.FileAudio, []Draft{{Text: "Transcribe", AnswerType: answertype.AudioTranscription}})
	require.NoError(t, err)
	assert.Equal(t, []string{"k1"}, dropped)
	assert.Equal(t, dataset.FileAudio, cfg.FileType)
	assert.Empty(t, p.Snapshot().Items)
}

func TestAddItemsClonesTemplateWithFreshIDs(t *testing.T) {
	p := configured(t)
	items := p.AddItems([]Upload{{FileName: "a.png"}, {FileName: "b.png"}})
	require.Len(t, items, 2)

	tmpl := p.Snapshot().Config.TemplateQuestions
	ids := map[string]bool{tmpl[0].ID: true, tmpl[1].ID: true}
	for _, it := range items {
		require.Len(t, it.Questions, 2)
		for i, q := range it.Questions {
			assert.False(t, ids[q.ID], "question ids are unique across template and items")
			ids[q.ID] = true
			assert.Equal(t, tmpl[i].Text, q.Text)
			assert.Equal(t, tmpl[i].AnswerType, q.AnswerType)
		}
	}
}

func TestEditsTouchOneItemOnly(t *testing.T) {
	p := configured(t)
	items := p.AddItems([]Upload{{FileName: "a.png"}, {FileName: "b.png"}})
	a, b := items[0], items[1]

	text := "Which animal is this?"
	_, err := p.EditQuestion(a.ID, a.Questions[0].ID, Patch{Text: &text})
	require.NoError(t, err)
	opts := []string{"cat", "dog", "bird"}
	_, err = p.EditQuestion(a.ID, a.Questions[0].ID, Patch{Options: &opts})
	require.NoError(t, err)
	_, err = p.AddQuestion(a.ID, Draft{Text: "Count", AnswerType: answertype.Number})
	require.NoError(t, err)
	require.NoError(t, p.RemoveQuestion(a.ID, a.Questions[1].ID))

	snap := p.Snapshot()
	gotA, gotB := snap.Items[0], snap.Items[1]
	require.Len(t, gotA.Questions, 2)
	assert.Equal(t, text, gotA.Questions[0].Text)
	assert.Equal(t, opts, gotA.Questions[0].Options)
	assert.Equal(t, "Count", gotA.Questions[1].Text)

	assert.Equal(t, b.Questions, gotB.Questions)
	assert.Equal(t, []string{"cat", "dog"}, snap.Config.TemplateQuestions[0].Options)
	assert.Equal(t, "Animal?", snap.Config.TemplateQuestions[0].Text)
}

func TestChangingAnswerTypeAlwaysResetsAnswer(t *testing.T) {
	opts := []string{"A", "B"}
	sample := map[answertype.Kind]string{
		answertype.Binary:             "yes",
		answertype.SingleChoice:       "A",
		answertype.MultiChoice:        "A,B",
		answertype.Number:             "7",
		answertype.LikertScale:        "3",
		answertype.PairwiseComparison: "tie",
	}
	for _, from := range answertype.All() {
		for _, to := range answertype.All() {
			p := NewProject()
			_, _, err := p.UpdateConfig(dataset.FileCSV, []Draft{{Text: "q", AnswerType: from, Options: opts}})
			require.NoError(t, err)
			it := p.AddItems([]Upload{{FileName: "x.csv"}})[0]
			qid := it.Questions[0].ID

			v, ok := sample[from]
			if !ok {
				v = "free text"
			}
			q, err := p.SetAnswer(it.ID, qid, v)
			require.NoError(t, err)
			require.NotEmpty(t, q.Answer)

			kind := to
			q, err = p.EditQuestion(it.ID, qid, Patch{AnswerType: &kind, Options: &opts})
			require.NoError(t, err, "%s -> %s", from, to)
			assert.Equal(t, "", q.Answer, "%s -> %s", from, to)
			assert.Equal(t, to, q.AnswerType)
			if to.NeedsOptions() {
				assert.Equal(t, opts, q.Options)
			} else {
				assert.Nil(t, q.Options)
			}
		}
	}
}

func TestSetAnswerValidates(t *testing.T) {
	p := configured(t)
	it := p.AddItems([]Upload{{FileName: "a.png"}})[0]

	_, err := p.SetAnswer(it.ID, it.Questions[0].ID, "horse")
	assert.ErrorIs(t, err, dataset.ErrValidation)
	q, err := p.SetAnswer(it.ID, it.Questions[0].ID, "dog")
	require.NoError(t, err)
	assert.Equal(t, "dog", q.Answer)

	_, err = p.SetAnswer("nope", it.Questions[0].ID, "dog")
	assert.ErrorIs(t, err, ErrItemNotFound)
	_, err = p.SetAnswer(it.ID, "nope", "dog")
	assert.ErrorIs(t, err, ErrQuestionNotFound)
	assert.ErrorIs(t, p.RemoveQuestion(it.ID, "nope"), ErrQuestionNotFound)
}

func TestReplaceFile(t *testing.T) {
	p := configured(t)
	it := p.AddItems([]Upload{{FileName: "a.png", BlobKey: "old"}})[0]
	_, err := p.SetAnswer(it.ID, it.Questions[1].ID, "kept")
	require.NoError(t, err)

	old, err := p.ReplaceFile(it.ID, Upload{FileName: "b.png", BlobKey: "new", Size: 3})
	require.NoError(t, err)
	assert.Equal(t, "old", old)

	got, err := p.Item(it.ID)
	require.NoError(t, err)
	assert.Equal(t, "b.png", got.FileName)
	assert.Equal(t, "new", got.BlobKey)
	assert.Equal(t, "kept", got.Questions[1].Answer)
}

func TestSnapshotIsACopy(t *testing.T) {
	p := configured(t)
	p.AddItems([]Upload{{FileName: "a.png"}})
	snap := p.Snapshot()
	snap.Items[0].Questions[0].Options[0] = "mutated"
	snap.Config.TemplateQuestions[0].Text = "mutated"

	again := p.Snapshot()
	assert.Equal(t, "cat", again.Items[0].Questions[0].Options[0])
	assert.Equal(t, "Animal?", again.Config.TemplateQuestions[0].Text)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := r.Get("s1")
	assert.Same(t, a, r.Get("s1"))
	assert.NotSame(t, a, r.Get("s2"))
	assert.Same(t, a, r.Drop("s1"))
	assert.Nil(t, r.Drop("s1"))
}
