/*
Package sleepdiary is a conditional questionnaire engine for morning and
evening sleep diaries.

A questionnaire is a graph of questions. Root questions form the main
sequence; conditional edges attach branch questions to the options of a
choice question, and a branch is shown only while its option is selected.

# Packages

  - pkg/graph: roots, option buckets, answer-driven children and structural checks.
  - pkg/validation: per-type rules, dynamic bounds and the cross-question sleep rules.
  - pkg/wizard: the respondent-facing navigator (answer, next, previous, review, submit).
  - pkg/editor: drafts of a question and its new branch questions, committed in two phases.
  - pkg/responses: the "next main question" and submit service over the stores.

# Usage

App wires a store to every service:

	app, err := sleepdiary.New(sleepdiary.WithStore(store))
	if err != nil {
		log.Fatal(err)
	}
	nav, step, err := app.NewNavigator(ctx, "session-1", domain.QuestionnaireMorning, "alice", domain.LocaleDanish)
	if err != nil {
		log.Fatal(err)
	}
	for step.State == domain.StatePresenting {
		// show step.Question and step.Children, collect answers
		nav.SetAnswer(step.Question.ID, answer)
		step, err = nav.Next(ctx)
	}
	resp, err := nav.Submit(ctx)
*/
package sleepdiary
