package domain

import (
	"slices"
	"time"
)

// QuestionType tags the input shape of a Question.
type QuestionType string

const (
	TypeText         QuestionType = "text"
	TypeTimePicker   QuestionType = "time_picker"
	TypeNumeric      QuestionType = "numeric"
	TypeSlider       QuestionType = "slider"
	TypeSingleChoice QuestionType = "single_choice"
	TypeMultiChoice  QuestionType = "multi_choice"
)

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case TypeText, TypeTimePicker, TypeNumeric, TypeSlider, TypeSingleChoice, TypeMultiChoice:
		return true
	}
	return false
}

// IsChoice reports whether questions of this type carry Options.
func (t QuestionType) IsChoice() bool {
	return t == TypeSingleChoice || t == TypeMultiChoice
}

// Color is the reporting classification of an evening Option.
type Color string

const (
	ColorNone   Color = ""
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorRed    Color = "red"
)

// Valid reports whether c is empty or one of the three classifications.
func (c Color) Valid() bool {
	switch c {
	case ColorNone, ColorGreen, ColorYellow, ColorRed:
		return true
	}
	return false
}

// QuestionnaireType distinguishes the two diaries.
type QuestionnaireType string

const (
	QuestionnaireMorning QuestionnaireType = "morning"
	QuestionnaireEvening QuestionnaireType = "evening"
)

// Questionnaire groups the questions answered in one sitting.
type Questionnaire struct {
	ID   string            `json:"id" yaml:"id"`
	Type QuestionnaireType `json:"type" yaml:"type"`
	Name string            `json:"name" yaml:"name"`
}

// Option is a selectable choice of a choice-type Question.
type Option struct {
	ID           string            `json:"id" yaml:"id"`
	Text         string            `json:"text" yaml:"text"`
	Translations map[Locale]string `json:"translations,omitempty" yaml:"translations,omitempty"`
	IsOther      bool              `json:"isOther,omitempty" yaml:"isOther,omitempty"`
	Color        Color             `json:"colorCode,omitempty" yaml:"colorCode,omitempty"`
}

// Edge is a Conditional Edge: selecting OptionID on the owning question shows
// ChildQuestionID. Order is dense and 1-based within the OptionID bucket.
type Edge struct {
	OptionID        string `json:"optionId" yaml:"optionId"`
	ChildQuestionID string `json:"childQuestionId" yaml:"childQuestionId"`
	Order           int    `json:"order" yaml:"order"`
}

// Question is one node of the conditional question graph.
type Question struct {
	ID              string            `json:"id,omitempty" yaml:"id,omitempty"`
	QuestionnaireID string            `json:"questionnaireId" yaml:"questionnaireId"`
	Text            string            `json:"text" yaml:"text"`
	Translations    map[Locale]string `json:"translations,omitempty" yaml:"translations,omitempty"`
	Type            QuestionType      `json:"type" yaml:"type"`
	Order           int               `json:"order" yaml:"order"`
	Locked          bool              `json:"isLocked,omitempty" yaml:"isLocked,omitempty"`

	Options []Option `json:"options,omitempty" yaml:"options,omitempty"`
	Edges   []Edge   `json:"conditionalChildren,omitempty" yaml:"conditionalChildren,omitempty"`

	MinLength *int     `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	MinValue  *float64 `json:"minValue,omitempty" yaml:"minValue,omitempty"`
	MaxValue  *float64 `json:"maxValue,omitempty" yaml:"maxValue,omitempty"`
	MinTime   string   `json:"minTime,omitempty" yaml:"minTime,omitempty"`
	MaxTime   string   `json:"maxTime,omitempty" yaml:"maxTime,omitempty"`

	DeletedAt *time.Time `json:"deletedAt,omitempty" yaml:"-"`
}

// Archived reports whether the question was soft-deleted.
func (q *Question) Archived() bool {
	return q.DeletedAt != nil
}

// Option returns the option with the given ID.
func (q *Question) Option(id string) (Option, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// OtherOption returns the option flagged isOther, if any.
func (q *Question) OtherOption() (Option, bool) {
	for _, o := range q.Options {
		if o.IsOther {
			return o, true
		}
	}
	return Option{}, false
}

// Bucket returns the edges keyed by optionID sorted by their local order.
func (q *Question) Bucket(optionID string) []Edge {
	var out []Edge
	for _, e := range q.Edges {
		if e.OptionID == optionID {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b Edge) int { return a.Order - b.Order })
	return out
}

// HasEdge reports whether the exact (optionID, childID) edge exists.
func (q *Question) HasEdge(optionID, childID string) bool {
	return slices.ContainsFunc(q.Edges, func(e Edge) bool {
		return e.OptionID == optionID && e.ChildQuestionID == childID
	})
}

// Renumber rewrites every bucket's local order to the dense 1..n sequence,
// keeping the relative order of edges inside each bucket.
func (q *Question) Renumber() {
	idx := make([]int, len(q.Edges))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int { return q.Edges[a].Order - q.Edges[b].Order })
	next := make(map[string]int)
	for _, i := range idx {
		next[q.Edges[i].OptionID]++
		q.Edges[i].Order = next[q.Edges[i].OptionID]
	}
}

// Clone returns a deep copy of q.
func (q Question) Clone() Question {
	c := q
	c.Translations = cloneTexts(q.Translations)
	if q.Options != nil {
		c.Options = make([]Option, len(q.Options))
		for i, o := range q.Options {
			o.Translations = cloneTexts(o.Translations)
			c.Options[i] = o
		}
	}
	c.Edges = slices.Clone(q.Edges)
	if q.MinLength != nil {
		v := *q.MinLength
		c.MinLength = &v
	}
	if q.MaxLength != nil {
		v := *q.MaxLength
		c.MaxLength = &v
	}
	if q.MinValue != nil {
		v := *q.MinValue
		c.MinValue = &v
	}
	if q.MaxValue != nil {
		v := *q.MaxValue
		c.MaxValue = &v
	}
	if q.DeletedAt != nil {
		v := *q.DeletedAt
		c.DeletedAt = &v
	}
	return c
}

func cloneTexts(in map[Locale]string) map[Locale]string {
	if in == nil {
		return nil
	}
	out := make(map[Locale]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ChildOrder is the order assigned to a conditional child: the parent's order
// times 100 plus its 1-based position in the bucket.
func ChildOrder(parentOrder, localOrder int) int {
	return parentOrder*100 + localOrder
}
