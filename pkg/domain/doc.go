/*
Package domain contains the core models of the sleep diary questionnaire engine.

It defines the conditional question graph (Questions, Options and Conditional
Edges), the answer shapes collected by the wizard, submitted Responses and the
error taxonomy shared by every layer. The package performs no I/O.

# Key Entities

  - Question: one node of a questionnaire, with per-type constraints.
  - Option: a selectable choice belonging to exactly one Question.
  - Edge: an option-scoped link from a parent Question to a branch-only child.
  - Answers: the accumulated answer set of a wizard session, keyed by question ID.
  - WizardSnapshot: the persisted state of one wizard session.
*/
package domain
