package answertype

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTripsEveryKind(t *testing.T) {
	for _, k := range All() {
		got, err := Parse(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
		// every kind is handled by each exhaustive switch
		assert.NotPanics(t, func() {
			_ = k.ServerKind()
			_ = k.NeedsOptions()
			_, _ = Normalize(k, []string{"A", "B"}, "")
		})
	}
	assert.Len(t, All(), 16)

	_, err := Parse("checkbox")
	assert.Error(t, err)
}

func TestServerKinds(t *testing.T) {
	var server []string
	for _, k := range All() {
		if k.ServerKind() {
			server = append(server, k.String())
		}
	}
	assert.Equal(t, []string{"text", "binary-classification", "single-choice", "multi-choice", "number"}, server)
}

func TestKindJSON(t *testing.T) {
	var v struct {
		T Kind `json:"t"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"t":"likert-scale"}`), &v))
	assert.Equal(t, LikertScale, v.T)

	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":"likert-scale"}`, string(b))

	assert.Error(t, json.Unmarshal([]byte(`{"t":"nope"}`), &v))

	// a question stored without a type decodes to the zero kind and writes back as ""
	var unset struct {
		T Kind `json:"t"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"t":""}`), &unset))
	assert.False(t, unset.T.Valid())
	b, err = json.Marshal(unset)
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":""}`, string(b))
}

func TestNormalizeRejectsZeroKind(t *testing.T) {
	assert.NotPanics(t, func() {
		_, err := Normalize(Kind(0), nil, "a")
		assert.ErrorIs(t, err, ErrInvalid)
	})
}

func TestNormalize(t *testing.T) {
	opts := []string{"A", "B", "C"}
	cases := []struct {
		name    string
		kind    Kind
		raw     string
		want    string
		wantErr bool
	}{
		{"empty is unanswered", Number, "  ", "", false},
		{"text kept verbatim", Text, " hello ", " hello ", false},
		{"binary stored label", Binary, "Có", "Có", false},
		{"binary english alias", Binary, "Yes", "Có", false},
		{"binary numeric alias", Binary, "0", "Không", false},
		{"binary lowercase label", Binary, "không", "Không", false},
		{"binary junk", Binary, "maybe", "", true},
		{"single in set", SingleChoice, "B", "B", false},
		{"single out of set", SingleChoice, "D", "", true},
		{"multi canonical order", MultiChoice, "C, A", "A,C", false},
		{"multi dedupe", MultiChoice, "B,B,A", "A,B", false},
		{"multi out of set", MultiChoice, "A,Z", "", true},
		{"number", Number, "3.5", "3.5", false},
		{"number junk", Number, "three", "", true},
		{"number inf", Number, "Inf", "", true},
		{"likert", LikertScale, "4", "4", false},
		{"likert range", LikertScale, "6", "", true},
		{"pairwise", PairwiseComparison, "LEFT", "left", false},
		{"pairwise junk", PairwiseComparison, "up", "", true},
		{"bounding box free form", BoundingBox, "[1,2,3,4]", "[1,2,3,4]", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.kind, opts, tc.raw)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidateOptions(t *testing.T) {
	got, err := ValidateOptions(SingleChoice, []string{" A ", "", "B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, got)

	_, err = ValidateOptions(MultiChoice, nil)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = ValidateOptions(MultiChoice, []string{"A", "A"})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = ValidateOptions(SingleChoice, []string{"a,b"})
	assert.ErrorIs(t, err, ErrInvalid)

	got, err = ValidateOptions(Text, []string{"ignored"})
	require.NoError(t, err)
	assert.Nil(t, got)
}
