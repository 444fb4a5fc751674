/*
Package validation implements the answer rules of a questionnaire.

Per-type rules check one answer against the question's effective
constraints. Effective constraints are computed on every pass from the
static schema plus dynamic bounds taken from other answers, so the light-off
question's earliest time is whatever was entered as bedtime.

Cross rules couple designated questions (bedtime/light-off, wake/out of bed,
the wake yes/no gate with its count and minutes, fell asleep). They are
advisory in Interactive mode and complete in Submit mode.

Validation never returns Go errors for bad answers: it reports
*domain.ValidationError values with a Reason and Params; Localize renders
their messages for an explicit locale.
*/
package validation
