package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuestion_BucketAndRenumber(t *testing.T) {
	q := Question{
		ID:   "q1",
		Type: TypeSingleChoice,
		Options: []Option{
			{ID: "a"}, {ID: "b"},
		},
		Edges: []Edge{
			{OptionID: "a", ChildQuestionID: "c2", Order: 7},
			{OptionID: "b", ChildQuestionID: "c3", Order: 2},
			{OptionID: "a", ChildQuestionID: "c1", Order: 3},
		},
	}

	q.Renumber()
	assert.Equal(t, []Edge{
		{OptionID: "a", ChildQuestionID: "c1", Order: 1},
		{OptionID: "a", ChildQuestionID: "c2", Order: 2},
	}, q.Bucket("a"))
	assert.Equal(t, 1, q.Bucket("b")[0].Order)
	assert.True(t, q.HasEdge("b", "c3"))
	assert.False(t, q.HasEdge("a", "c3"))
}

func TestQuestion_CloneIsDeep(t *testing.T) {
	lo := 1.0
	q := Question{
		ID:           "q1",
		Translations: map[Locale]string{LocaleEnglish: "Bedtime"},
		Options:      []Option{{ID: "a", Text: "A"}},
		Edges:        []Edge{{OptionID: "a", ChildQuestionID: "c", Order: 1}},
		MinValue:     &lo,
	}

	c := q.Clone()
	c.Options[0].Text = "changed"
	c.Edges[0].ChildQuestionID = "other"
	c.Translations[LocaleEnglish] = "x"
	*c.MinValue = 9

	assert.Equal(t, "A", q.Options[0].Text)
	assert.Equal(t, "c", q.Edges[0].ChildQuestionID)
	assert.Equal(t, "Bedtime", q.Translations[LocaleEnglish])
	assert.Equal(t, 1.0, *q.MinValue)
}

func TestLocalize(t *testing.T) {
	q := Question{
		Text:         "Hvornår gik du i seng?",
		Translations: map[Locale]string{LocaleDanish: "Hvornår gik du i seng?", LocaleEnglish: "When did you go to bed?"},
		Options: []Option{
			{ID: "o", Text: "Andet", Translations: map[Locale]string{LocaleEnglish: "Other"}},
		},
	}

	en := Localize(q, LocaleEnglish)
	assert.Equal(t, "When did you go to bed?", en.Text)
	assert.Equal(t, "Other", en.Options[0].Text)

	da := Localize(q, LocaleDanish)
	assert.Equal(t, "Hvornår gik du i seng?", da.Text)
	assert.Equal(t, "Andet", da.Options[0].Text)
	assert.Equal(t, LocaleDanish, ParseLocale("fr"))
}

func TestIDs(t *testing.T) {
	assert.True(t, IsTempID(NewTempID()))
	assert.False(t, IsTempID(NewID()))
	assert.Equal(t, 601, ChildOrder(6, 1))
}

func TestErrors(t *testing.T) {
	err := &StructuralError{Kind: ErrCycle, QuestionID: "q1", OptionID: "o", ChildID: "q2"}
	assert.ErrorIs(t, err, ErrCycle)
	assert.Contains(t, err.Error(), "child=q2")

	tr := Transient("store.get", errors.New("connection refused"))
	assert.ErrorIs(t, tr, ErrTransient)
	assert.Same(t, tr, Transient("again", tr))
	assert.Nil(t, Transient("noop", nil))

	v := &ValidationError{QuestionID: "q1", Reason: "required"}
	assert.Equal(t, "validation failed for q1: required", v.Error())
}
