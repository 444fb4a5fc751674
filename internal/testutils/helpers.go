package testutils

import (
	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
)

// Morning is the questionnaire used by the fixtures.
var Morning = domain.Questionnaire{ID: "qn-morning", Type: domain.QuestionnaireMorning, Name: "Morgenskema"}

// Evening is an empty evening questionnaire.
var Evening = domain.Questionnaire{ID: "qn-evening", Type: domain.QuestionnaireEvening, Name: "Aftenskema"}

func ptr[T any](v T) *T { return &v }

func texts(da, en string) map[domain.Locale]string {
	return map[domain.Locale]string{domain.LocaleDanish: da, domain.LocaleEnglish: en}
}

// MorningQuestions returns a fresh copy of the morning diary: a medication
// gate with a multi-choice branch, the bedtime/light-off/fell-asleep trio,
// the wake gate with its count and minutes branch, wake/out-of-bed times and
// a rating slider.
func MorningQuestions() []domain.Question {
	qid := Morning.ID
	return []domain.Question{
		{
			ID: "q1", QuestionnaireID: qid, Order: 1, Type: domain.TypeSingleChoice,
			Text: "Tog du sovemedicin i går?", Translations: texts("Tog du sovemedicin i går?", "Did you take sleep medication yesterday?"),
			Options: []domain.Option{
				{ID: "med_no", Text: "Nej", Translations: texts("Nej", "No")},
				{ID: "med_yes", Text: "Ja", Translations: texts("Ja", "Yes")},
			},
			Edges: []domain.Edge{{OptionID: "med_yes", ChildQuestionID: "q101", Order: 1}},
		},
		{
			ID: "q101", QuestionnaireID: qid, Order: 101, Type: domain.TypeMultiChoice,
			Text: "Hvilken medicin?", Translations: texts("Hvilken medicin?", "Which medication?"),
			Options: []domain.Option{
				{ID: "med_sleeping_pill", Text: "Sovepille", Translations: texts("Sovepille", "Sleeping pill")},
				{ID: "med_melatonin", Text: "Melatonin", Translations: texts("Melatonin", "Melatonin")},
				{ID: "med_other", Text: "Andet", Translations: texts("Andet", "Other"), IsOther: true},
			},
		},
		{
			ID: "q2", QuestionnaireID: qid, Order: 2, Type: domain.TypeText, MaxLength: ptr(500),
			Text: "Hvad lavede du den sidste time før sengetid?", Translations: texts("Hvad lavede du den sidste time før sengetid?", "What did you do in the last hour before bed?"),
		},
		{
			ID: "q3", QuestionnaireID: qid, Order: 3, Type: domain.TypeTimePicker, Locked: true,
			Text: "Hvornår gik du i seng?", Translations: texts("Hvornår gik du i seng?", "When did you go to bed?"),
		},
		{
			ID: "q4", QuestionnaireID: qid, Order: 4, Type: domain.TypeTimePicker, Locked: true,
			Text: "Hvornår slukkede du lyset?", Translations: texts("Hvornår slukkede du lyset?", "When did you turn off the light?"),
		},
		{
			ID: "q5", QuestionnaireID: qid, Order: 5, Type: domain.TypeNumeric, Locked: true,
			Text: "Hvor mange minutter gik der før du faldt i søvn?", Translations: texts("Hvor mange minutter gik der før du faldt i søvn?", "How many minutes did it take to fall asleep?"),
		},
		{
			ID: "q6", QuestionnaireID: qid, Order: 6, Type: domain.TypeSingleChoice, Locked: true,
			Text: "Vågnede du i løbet af natten?", Translations: texts("Vågnede du i løbet af natten?", "Did you wake up during the night?"),
			Options: []domain.Option{
				{ID: "wake_no", Text: "Nej", Translations: texts("Nej", "No")},
				{ID: "wake_yes", Text: "Ja", Translations: texts("Ja", "Yes")},
			},
			Edges: []domain.Edge{
				{OptionID: "wake_no", ChildQuestionID: "q602", Order: 1},
				{OptionID: "wake_yes", ChildQuestionID: "q601", Order: 1},
				{OptionID: "wake_yes", ChildQuestionID: "q602", Order: 2},
			},
		},
		{
			ID: "q601", QuestionnaireID: qid, Order: 601, Type: domain.TypeNumeric, Locked: true,
			Text: "Hvor mange gange vågnede du?", Translations: texts("Hvor mange gange vågnede du?", "How many times did you wake up?"),
		},
		{
			ID: "q602", QuestionnaireID: qid, Order: 602, Type: domain.TypeNumeric, Locked: true,
			Text: "Hvor mange minutter var du vågen i alt?", Translations: texts("Hvor mange minutter var du vågen i alt?", "How many minutes were you awake in total?"),
		},
		{
			ID: "q7", QuestionnaireID: qid, Order: 7, Type: domain.TypeTimePicker, Locked: true,
			Text: "Hvornår vågnede du?", Translations: texts("Hvornår vågnede du?", "When did you wake up?"),
		},
		{
			ID: "q8", QuestionnaireID: qid, Order: 8, Type: domain.TypeTimePicker, Locked: true,
			Text: "Hvornår stod du op?", Translations: texts("Hvornår stod du op?", "When did you get out of bed?"),
		},
		{
			ID: "q9", QuestionnaireID: qid, Order: 9, Type: domain.TypeSlider, MinValue: ptr(1.0), MaxValue: ptr(5.0),
			Text: "Hvordan vil du vurdere din søvn?", Translations: texts("Hvordan vil du vurdere din søvn?", "How would you rate your sleep?"),
		},
	}
}

// CompleteMorningAnswers is a valid answer set for MorningQuestions.
func CompleteMorningAnswers() domain.Answers {
	return domain.Answers{
		"q1": "med_no",
		"q2": "Læste en bog",
		"q3": "23:00",
		"q4": "23:15",
		"q5": 20.0,
		"q6": "wake_yes",
		"q601": 2.0,
		"q602": 15.0,
		"q7": "06:45",
		"q8": "07:00",
		"q9": 4.0,
	}
}
