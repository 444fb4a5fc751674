package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Answers maps question IDs to answer values. A value is a scalar (text,
// number or "HH:mm" string), an option ID, a Selection for an "other"
// choice, or a slice of those for multi-choice questions.
type Answers map[string]any

// Clone returns a shallow copy; answer values are treated as immutable.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Answered reports whether id has a non-blank answer.
func (a Answers) Answered(id string) bool {
	v, ok := a[id]
	return ok && !IsBlank(v)
}

// Selection is one chosen option; CustomText carries the free text of an
// "other" option.
type Selection struct {
	OptionID   string `json:"optionId" mapstructure:"optionId"`
	CustomText string `json:"customText,omitempty" mapstructure:"customText"`
}

// Selections extracts the chosen options from any supported answer shape.
func Selections(v any) ([]Selection, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		return []Selection{{OptionID: t}}, nil
	case Selection:
		return []Selection{t}, nil
	case *Selection:
		if t == nil {
			return nil, nil
		}
		return []Selection{*t}, nil
	case []Selection:
		return t, nil
	case []string:
		out := make([]Selection, 0, len(t))
		for _, id := range t {
			out = append(out, Selection{OptionID: id})
		}
		return out, nil
	case map[string]any:
		var s Selection
		if err := mapstructure.Decode(t, &s); err != nil {
			return nil, fmt.Errorf("decode selection: %w", err)
		}
		if s.OptionID == "" {
			return nil, fmt.Errorf("selection without optionId")
		}
		return []Selection{s}, nil
	case []any:
		var out []Selection
		for _, item := range t {
			sel, err := Selections(item)
			if err != nil {
				return nil, err
			}
			out = append(out, sel...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported answer shape %T", v)
}

// OptionIDs is Selections reduced to the option identifiers; unsupported
// shapes yield nothing.
func OptionIDs(v any) []string {
	sel, err := Selections(v)
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(sel))
	for _, s := range sel {
		ids = append(ids, s.OptionID)
	}
	return ids
}

// FirstOptionID returns the first selected option ID, or "".
func FirstOptionID(v any) string {
	if ids := OptionIDs(v); len(ids) > 0 {
		return ids[0]
	}
	return ""
}

// Text renders a scalar answer as trimmed text.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Number parses a numeric answer. NaN and infinities are not numbers.
func Number(v any) (float64, bool) {
	var (
		f  float64
		ok = true
	)
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		var err error
		f, err = t.Float64()
		ok = err == nil
	case string:
		var err error
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
		ok = err == nil
	default:
		return 0, false
	}
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// IsBlank reports whether v carries no answer at all.
func IsBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case []Selection:
		return len(t) == 0
	}
	return false
}
