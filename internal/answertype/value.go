package answertype

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalid wraps every value or option rejection.
var ErrInvalid = errors.New("invalid answer")

// Separator joins multi-choice selections in their canonical string form.
const Separator = ","

// Stored values of a binary-classification answer. The labeling forms have
// always written these labels, so older answers on the backend use them too.
const (
	BinaryYes = "Có"
	BinaryNo  = "Không"
)

// Normalize validates raw against kind and returns the canonical string form
// stored in an answer. Empty input means "unanswered" and is never an error.
func Normalize(kind Kind, options []string, raw string) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: question has no usable answer type (%s)", ErrInvalid, kind)
	}
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", nil
	}
	switch kind {
	case Text, TextGeneration, AudioTranscription, OCR, NER, Relationship,
		BoundingBox, Polygon, Segmentation, Keypoints:
		return raw, nil
	case Binary:
		switch strings.ToLower(v) {
		case "có", "yes", "true", "1":
			return BinaryYes, nil
		case "không", "no", "false", "0":
			return BinaryNo, nil
		}
		return "", fmt.Errorf("%w: %q is not yes/no", ErrInvalid, raw)
	case SingleChoice:
		for _, o := range options {
			if o == v {
				return o, nil
			}
		}
		return "", fmt.Errorf("%w: %q is not one of the options", ErrInvalid, v)
	case MultiChoice:
		return NormalizeSelection(options, strings.Split(v, Separator))
	case Number:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return "", fmt.Errorf("%w: %q is not a number", ErrInvalid, v)
		}
		return v, nil
	case LikertScale:
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 5 {
			return "", fmt.Errorf("%w: likert value must be 1..5, got %q", ErrInvalid, v)
		}
		return strconv.Itoa(n), nil
	case PairwiseComparison:
		switch strings.ToLower(v) {
		case "left", "right", "tie":
			return strings.ToLower(v), nil
		}
		return "", fmt.Errorf("%w: %q is not left/right/tie", ErrInvalid, v)
	default:
		panic(unreachable(kind))
	}
}

// NormalizeSelection turns a list of selected option labels into the canonical
// multi-choice value: members of options only, no duplicates, declared order.
func NormalizeSelection(options, selected []string) (string, error) {
	picked := make(map[string]bool, len(selected))
	for _, s := range selected {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !contains(options, s) {
			return "", fmt.Errorf("%w: %q is not one of the options", ErrInvalid, s)
		}
		picked[s] = true
	}
	out := make([]string, 0, len(picked))
	for _, o := range options {
		if picked[o] {
			out = append(out, o)
		}
	}
	return strings.Join(out, Separator), nil
}

// ValidateOptions checks an option list against kind and returns the list to
// store: nil for kinds without options.
func ValidateOptions(kind Kind, options []string) ([]string, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown answer type", ErrInvalid)
	}
	if !kind.NeedsOptions() {
		return nil, nil
	}
	out := make([]string, 0, len(options))
	seen := map[string]bool{}
	for _, o := range options {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if strings.Contains(o, Separator) {
			return nil, fmt.Errorf("%w: option %q contains %q", ErrInvalid, o, Separator)
		}
		if seen[o] {
			return nil, fmt.Errorf("%w: duplicate option %q", ErrInvalid, o)
		}
		seen[o] = true
		out = append(out, o)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s requires at least one option", ErrInvalid, kind)
	}
	return out, nil
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
