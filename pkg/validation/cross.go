package validation

import (
	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
)

// CrossCheck evaluates the cross-question rules. In Interactive mode only
// answered participants are compared, so a duration entered before its
// wake count is an accepted intermediate state. Submit mode also requires
// the wake details when the wake gate is "yes".
func (e *Engine) CrossCheck(answers domain.Answers, mode Mode) []*domain.ValidationError {
	answers = e.Normalize(answers)
	var errs []*domain.ValidationError
	d := e.designations

	if err := e.ordered(answers, d.Bedtime, d.LightOff, ReasonLightOffBeforeBedtime, "bedtime", "lightOff"); err != nil {
		errs = append(errs, err)
	}
	if err := e.ordered(answers, d.WakeTime, d.OutOfBed, ReasonOutOfBedBeforeWake, "wakeTime", "outOfBed"); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, e.wakeGate(answers, mode)...)
	if err := e.fellAsleep(answers); err != nil {
		errs = append(errs, err)
	}
	return e.report(errs...)
}

// ordered reports later < earlier for two answered time questions.
func (e *Engine) ordered(answers domain.Answers, earlierID, laterID string, reason domain.Reason, earlierKey, laterKey string) *domain.ValidationError {
	if earlierID == "" || laterID == "" {
		return nil
	}
	earlier := domain.Text(answers[earlierID])
	later := domain.Text(answers[laterID])
	a, okA := ParseClock(earlier)
	b, okB := ParseClock(later)
	if !okA || !okB || b >= a {
		return nil
	}
	return fail(laterID, reason, map[string]string{earlierKey: earlier, laterKey: later})
}

func (e *Engine) wakeGate(answers domain.Answers, mode Mode) []*domain.ValidationError {
	d := e.designations
	if d.WakeOccurred == "" || d.WakeDuration == "" {
		return nil
	}
	gate := domain.FirstOptionID(answers[d.WakeOccurred])
	duration, hasDuration := answers[d.WakeDuration]
	hasDuration = hasDuration && !domain.IsBlank(duration)

	switch gate {
	case d.WakeNo:
		if !hasDuration {
			return nil
		}
		v, ok := domain.Number(duration)
		if !ok {
			return []*domain.ValidationError{fail(d.WakeDuration, ReasonNotANumber, map[string]string{"value": domain.Text(duration)})}
		}
		if v != 0 {
			return []*domain.ValidationError{fail(d.WakeDuration, ReasonWakeDurationNotZero, map[string]string{"value": formatNumber(v)})}
		}
	case d.WakeYes:
		if d.WakeCount == "" {
			return nil
		}
		count, hasCount := answers[d.WakeCount]
		hasCount = hasCount && !domain.IsBlank(count)
		if mode == Submit && (!hasCount || !hasDuration) {
			return []*domain.ValidationError{fail(d.WakeOccurred, ReasonWakeDetailsRequired, nil)}
		}
		if !hasCount {
			return nil
		}
		c, ok := domain.Number(count)
		if !ok {
			return []*domain.ValidationError{fail(d.WakeCount, ReasonNotANumber, map[string]string{"value": domain.Text(count)})}
		}
		if c == 0 {
			return []*domain.ValidationError{fail(d.WakeCount, ReasonWakeCountZero, nil)}
		}
		if !hasDuration {
			return nil
		}
		v, ok := domain.Number(duration)
		if !ok {
			return []*domain.ValidationError{fail(d.WakeDuration, ReasonNotANumber, map[string]string{"value": domain.Text(duration)})}
		}
		if c >= 1 && v == 0 {
			return []*domain.ValidationError{fail(d.WakeDuration, ReasonWakeDurationRequired, map[string]string{"count": formatNumber(c)})}
		}
	}
	return nil
}

// fellAsleep compares by the question's configured type: a clock time must
// not precede bedtime, a duration in minutes must not be negative.
func (e *Engine) fellAsleep(answers domain.Answers) *domain.ValidationError {
	d := e.designations
	if d.FellAsleep == "" {
		return nil
	}
	q, ok := e.graph.Question(d.FellAsleep)
	if !ok || !answers.Answered(d.FellAsleep) {
		return nil
	}
	value := answers[d.FellAsleep]
	switch q.Type {
	case domain.TypeTimePicker:
		return e.ordered(answers, d.Bedtime, d.FellAsleep, ReasonFellAsleepBeforeBedtime, "bedtime", "fellAsleep")
	case domain.TypeNumeric:
		if v, ok := domain.Number(value); ok && v < 0 {
			return fail(d.FellAsleep, ReasonNegativeSleepLatency, map[string]string{"value": formatNumber(v)})
		}
	}
	return nil
}

// Normalize returns a copy of answers with derived values filled in: a "no"
// on the wake gate sets a missing wake duration to 0.
func (e *Engine) Normalize(answers domain.Answers) domain.Answers {
	out := answers.Clone()
	d := e.designations
	if d.WakeOccurred == "" || d.WakeDuration == "" {
		return out
	}
	if domain.FirstOptionID(out[d.WakeOccurred]) == d.WakeNo && !out.Answered(d.WakeDuration) {
		out[d.WakeDuration] = 0.0
	}
	return out
}

// ValidateAll validates the visible questions and the cross rules. Hidden
// conditional children are skipped even when they carry a stale answer.
func (e *Engine) ValidateAll(answers domain.Answers, mode Mode) []*domain.ValidationError {
	answers = e.Normalize(answers)
	var errs []*domain.ValidationError
	for _, q := range e.graph.VisibleFlow(answers) {
		if mode == Interactive && !answers.Answered(q.ID) {
			continue
		}
		if err := e.Check(q, answers[q.ID], answers); err != nil {
			errs = append(errs, err)
		}
	}
	e.report(errs...)
	return append(errs, e.CrossCheck(answers, mode)...)
}
