package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// invalidIndex marks a submitted option that could not be coerced to an integer.
// It never matches a real option index.
const invalidIndex = -1

// Answer holds one learner response. Its wire shape depends on the question type:
// a number for single, a list of numbers for multiple, a string for numerical and
// subjective, and an object of pair-index -> text for match.
type Answer struct {
	Choice  *int
	Choices []int
	Text    *string
	Pairs   map[int]string
}

// AnswerSet is keyed by question ID.
type AnswerSet map[uint]Answer

func ChoiceAnswer(index int) Answer {
	return Answer{Choice: &index}
}

func ChoicesAnswer(indexes ...int) Answer {
	if indexes == nil {
		indexes = []int{}
	}
	return Answer{Choices: indexes}
}

func TextAnswer(text string) Answer {
	return Answer{Text: &text}
}

func PairsAnswer(pairs map[int]string) Answer {
	return Answer{Pairs: pairs}
}

// Answered reports whether the learner supplied anything for the question.
func (a Answer) Answered() bool {
	switch {
	case a.Choice != nil:
		return true
	case a.Choices != nil:
		return len(a.Choices) > 0
	case a.Text != nil:
		return strings.TrimSpace(*a.Text) != ""
	case a.Pairs != nil:
		return len(a.Pairs) > 0
	}
	return false
}

// ChoiceIndex returns the single-choice index, coercing a numeric text answer.
func (a Answer) ChoiceIndex() (int, bool) {
	if a.Choice != nil {
		return *a.Choice, true
	}
	if a.Text != nil {
		return coerceIndex(*a.Text)
	}
	return 0, false
}

// ChoiceSet returns the multiple-choice indexes with duplicates removed.
func (a Answer) ChoiceSet() map[int]struct{} {
	set := make(map[int]struct{}, len(a.Choices))
	for _, idx := range a.Choices {
		set[idx] = struct{}{}
	}
	if len(a.Choices) == 0 && a.Choice != nil {
		set[*a.Choice] = struct{}{}
	}
	return set
}

func (a Answer) MarshalJSON() ([]byte, error) {
	switch {
	case a.Pairs != nil:
		return json.Marshal(a.Pairs)
	case a.Choices != nil:
		return json.Marshal(a.Choices)
	case a.Choice != nil:
		return json.Marshal(*a.Choice)
	case a.Text != nil:
		return json.Marshal(*a.Text)
	}
	return []byte("null"), nil
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	*a = Answer{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("failed to decode choices: %w", err)
		}
		choices := make([]int, 0, len(raw))
		for _, item := range raw {
			idx, ok := coerceRaw(item)
			if !ok {
				idx = invalidIndex
			}
			choices = append(choices, idx)
		}
		a.Choices = choices
	case '{':
		var raw map[string]string
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("failed to decode pairs: %w", err)
		}
		pairs := make(map[int]string, len(raw))
		for key, value := range raw {
			idx, err := strconv.Atoi(strings.TrimSpace(key))
			if err != nil {
				return fmt.Errorf("invalid pair index %q", key)
			}
			pairs[idx] = value
		}
		a.Pairs = pairs
	case '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return fmt.Errorf("failed to decode text: %w", err)
		}
		a.Text = &text
	default:
		idx, ok := coerceRaw(data)
		if !ok {
			idx = invalidIndex
		}
		a.Choice = &idx
	}
	return nil
}

func coerceRaw(raw json.RawMessage) (int, bool) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return coerceIndex(text)
	}
	var num float64
	if err := json.Unmarshal(raw, &num); err != nil {
		return 0, false
	}
	return integral(num)
}

func coerceIndex(text string) (int, bool) {
	num, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, false
	}
	return integral(num)
}

func integral(num float64) (int, bool) {
	if math.IsNaN(num) || math.IsInf(num, 0) || num != math.Trunc(num) {
		return 0, false
	}
	return int(num), true
}
