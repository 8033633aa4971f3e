// Package answer defines the tagged union for questionnaire response values.
// A value is either a single selection, a multiple selection, or free text;
// consumers dispatch on Kind rather than inspecting runtime types.
package answer

import (
	"encoding/json"
	"fmt"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	// KindNone marks an absent answer.
	KindNone Kind = iota
	// KindSingle holds one selected option value.
	KindSingle
	// KindMulti holds a list of selected option values.
	KindMulti
	// KindText holds free text.
	KindText
)

// Value is the union of response representations. The zero Value means
// "unanswered".
type Value struct {
	kind       Kind
	text       string
	selections []string
}

// Single wraps a single-choice selection.
func Single(option string) Value {
	return Value{kind: KindSingle, text: option}
}

// Multi wraps a multiple-choice selection. The slice is copied.
func Multi(options []string) Value {
	return Value{kind: KindMulti, selections: append([]string(nil), options...)}
}

// FreeText wraps a text or text-area response.
func FreeText(text string) Value {
	return Value{kind: KindText, text: text}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind {
	return v.kind
}

// IsZero reports whether the value is unanswered.
// A present-but-empty answer is not zero: key existence is what counts as
// "answered" for completeness and merge semantics.
func (v Value) IsZero() bool {
	return v.kind == KindNone
}

// Text returns the wrapped string for single and text variants.
func (v Value) Text() string {
	return v.text
}

// Selections returns a copy of the wrapped list for the multi variant.
func (v Value) Selections() []string {
	if v.selections == nil {
		return nil
	}
	return append([]string(nil), v.selections...)
}

// Contains reports whether a multi value includes the given option.
func (v Value) Contains(option string) bool {
	for _, sel := range v.selections {
		if sel == option {
			return true
		}
	}
	return false
}

// Equal compares two values structurally.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind || v.text != other.text {
		return false
	}
	if len(v.selections) != len(other.selections) {
		return false
	}
	for i := range v.selections {
		if v.selections[i] != other.selections[i] {
			return false
		}
	}
	return true
}

// String renders the value for history display.
func (v Value) String() string {
	switch v.kind {
	case KindMulti:
		return fmt.Sprintf("%v", v.selections)
	default:
		return v.text
	}
}

// MarshalJSON encodes the wire form used by the API and the session store:
// a bare string for single/text, an array for multi, null when absent.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNone:
		return []byte("null"), nil
	case KindMulti:
		return json.Marshal(v.selections)
	case KindText:
		// Tag text answers so the union survives a round trip.
		return json.Marshal(map[string]string{"text": v.text})
	default:
		return json.Marshal(v.text)
	}
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch typed := raw.(type) {
	case nil:
		*v = Value{}
		return nil
	case string:
		*v = Single(typed)
		return nil
	case []interface{}:
		selections := make([]string, 0, len(typed))
		for _, item := range typed {
			text, ok := item.(string)
			if !ok {
				return fmt.Errorf("answer: non-string selection %v", item)
			}
			selections = append(selections, text)
		}
		*v = Value{kind: KindMulti, selections: selections}
		return nil
	case map[string]interface{}:
		text, ok := typed["text"].(string)
		if !ok {
			return fmt.Errorf("answer: malformed text value %v", typed)
		}
		*v = FreeText(text)
		return nil
	default:
		return fmt.Errorf("answer: unsupported value %v", raw)
	}
}

// Map is a response set keyed by question id.
type Map = map[string]Value

// MergeMaps overlays b on a without mutating either; b wins on collisions.
func MergeMaps(a, b Map) Map {
	merged := make(Map, len(a)+len(b))
	for key, value := range a {
		merged[key] = value
	}
	for key, value := range b {
		merged[key] = value
	}
	return merged
}
