package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// Section names an exam section.
type Section string

const (
	SectionListening Section = "listening"
	SectionReading   Section = "reading"
	SectionWriting   Section = "writing"
)

// ParseSection validates a section name.
func ParseSection(s string) (Section, error) {
	switch sec := Section(strings.ToLower(strings.TrimSpace(s))); sec {
	case SectionListening, SectionReading, SectionWriting:
		return sec, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSection, s)
}

// Value is one submitted or accepted answer. A scalar holds exactly one item;
// a list holds the selections of a multi-select question or the accepted
// alternatives of a key entry.
type Value struct {
	Items []string
	List  bool
}

// Scalar builds a single-item value.
func Scalar(s string) Value { return Value{Items: []string{s}} }

// List builds a list value.
func List(items ...string) Value { return Value{Items: items, List: true} }

// Blank reports whether the value carries no non-whitespace item.
func (v Value) Blank() bool {
	for _, it := range v.Items {
		if strings.TrimSpace(it) != "" {
			return false
		}
	}
	return true
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.List {
		return json.Marshal(v.Items)
	}
	if len(v.Items) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(v.Items[0])
}

// UnmarshalJSON accepts a string, number, boolean, null or an array of those.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Value{}
	case []any:
		items := make([]string, 0, len(t))
		for _, e := range t {
			s, err := cast.ToStringE(e)
			if err != nil {
				return fmt.Errorf("answer item: %w", err)
			}
			items = append(items, s)
		}
		*v = Value{Items: items, List: true}
	default:
		s, err := cast.ToStringE(t)
		if err != nil {
			return fmt.Errorf("answer value: %w", err)
		}
		*v = Scalar(s)
	}
	return nil
}

// SectionAnswers is the payload of one section. It is implemented by
// ListeningAnswers, ReadingAnswers and WritingAnswers.
type SectionAnswers interface {
	Section() Section
	sectionAnswers()
}

// ListeningAnswers maps part id -> container id -> question number -> value.
type ListeningAnswers map[string]map[string]map[string]Value

// ReadingAnswers maps part id -> container id -> positional answers.
type ReadingAnswers map[string]map[string][]Value

// WritingAnswers holds the two writing task responses.
type WritingAnswers struct {
	Task1Answer *string `json:"task1_answer,omitempty"`
	Task2Answer *string `json:"task2_answer,omitempty"`
	WordCount   int     `json:"word_count"`
}

func (ListeningAnswers) Section() Section { return SectionListening }
func (ReadingAnswers) Section() Section   { return SectionReading }
func (WritingAnswers) Section() Section   { return SectionWriting }

func (ListeningAnswers) sectionAnswers() {}
func (ReadingAnswers) sectionAnswers()   {}
func (WritingAnswers) sectionAnswers()   {}

// Answers holds the stored payload of every section.
type Answers struct {
	Listening ListeningAnswers `json:"listening"`
	Reading   ReadingAnswers   `json:"reading"`
	Writing   *WritingAnswers  `json:"writing,omitempty"`
}

// Replace swaps in the payload of the section sa belongs to. Other sections
// are left untouched.
func (a *Answers) Replace(sa SectionAnswers) error {
	switch t := sa.(type) {
	case ListeningAnswers:
		a.Listening = t
	case ReadingAnswers:
		a.Reading = t
	case WritingAnswers:
		a.Writing = &t
	default:
		return ErrUnknownSection
	}
	return nil
}

// DecodeSectionAnswers parses a JSON payload into the shape of section.
func DecodeSectionAnswers(section Section, data []byte) (SectionAnswers, error) {
	switch section {
	case SectionListening:
		var la ListeningAnswers
		if err := json.Unmarshal(data, &la); err != nil {
			return nil, fmt.Errorf("decode listening answers: %w", err)
		}
		return la, nil
	case SectionReading:
		var ra ReadingAnswers
		if err := json.Unmarshal(data, &ra); err != nil {
			return nil, fmt.Errorf("decode reading answers: %w", err)
		}
		return ra, nil
	case SectionWriting:
		var wa WritingAnswers
		if err := json.Unmarshal(data, &wa); err != nil {
			return nil, fmt.Errorf("decode writing answers: %w", err)
		}
		return wa, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSection, section)
}
