// Package answertype holds the closed set of answer kinds a question can
// declare and the value rules attached to each of them.
package answertype

import (
	"encoding/json"
	"fmt"
)

// Kind is one answer type. The set is closed: every switch over Kind in this
// module lists all constants and falls through to an unreachable default.
type Kind uint8

const (
	Text Kind = iota + 1
	Binary
	SingleChoice
	MultiChoice
	Number

	// wizard-only kinds
	BoundingBox
	Polygon
	Segmentation
	Keypoints
	NER
	TextGeneration
	Relationship
	AudioTranscription
	OCR
	PairwiseComparison
	LikertScale
)

var names = map[Kind]string{
	Text:               "text",
	Binary:             "binary-classification",
	SingleChoice:       "single-choice",
	MultiChoice:        "multi-choice",
	Number:             "number",
	BoundingBox:        "bounding-box",
	Polygon:            "polygon",
	Segmentation:       "segmentation",
	Keypoints:          "keypoints",
	NER:                "ner",
	TextGeneration:     "text-generation",
	Relationship:       "relationship",
	AudioTranscription: "audio-transcription",
	OCR:                "ocr",
	PairwiseComparison: "pairwise-comparison",
	LikertScale:        "likert-scale",
}

// All lists every kind in declaration order.
func All() []Kind {
	out := make([]Kind, 0, len(names))
	for k := Text; k <= LikertScale; k++ {
		out = append(out, k)
	}
	return out
}

// Parse maps a wire name to its Kind.
func Parse(s string) (Kind, error) {
	for k, n := range names {
		if n == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown answer type %q", s)
}

func (k Kind) String() string {
	if n, ok := names[k]; ok {
		return n
	}
	return fmt.Sprintf("answertype(%d)", uint8(k))
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	_, ok := names[k]
	return ok
}

// ServerKind reports whether datasets on the backend may use k.
func (k Kind) ServerKind() bool {
	switch k {
	case Text, Binary, SingleChoice, MultiChoice, Number:
		return true
	case BoundingBox, Polygon, Segmentation, Keypoints, NER, TextGeneration,
		Relationship, AudioTranscription, OCR, PairwiseComparison, LikertScale:
		return false
	default:
		panic(unreachable(k))
	}
}

// NeedsOptions reports whether answers are picked from a declared option list.
func (k Kind) NeedsOptions() bool {
	switch k {
	case SingleChoice, MultiChoice:
		return true
	case Text, Binary, Number, BoundingBox, Polygon, Segmentation, Keypoints,
		NER, TextGeneration, Relationship, AudioTranscription, OCR,
		PairwiseComparison, LikertScale:
		return false
	default:
		panic(unreachable(k))
	}
}

// MarshalJSON writes the wire name. A kind the backend never set is written
// as "" so one bad question does not break a whole document.
func (k Kind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return []byte(`""`), nil
	}
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*k = 0
		return nil
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*k = v
	return nil
}

func unreachable(k Kind) string {
	return fmt.Sprintf("answertype: unhandled kind %d", uint8(k))
}
