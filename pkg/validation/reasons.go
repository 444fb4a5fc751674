package validation

import "github.com/NicklasHM/P3-sleep-diary/pkg/domain"

// Failure reasons.
const (
	ReasonRequired          domain.Reason = "required"
	ReasonTooShort          domain.Reason = "too_short"
	ReasonTooLong           domain.Reason = "too_long"
	ReasonNotANumber        domain.Reason = "not_a_number"
	ReasonBelowMin          domain.Reason = "below_min"
	ReasonAboveMax          domain.Reason = "above_max"
	ReasonInvalidTime       domain.Reason = "invalid_time"
	ReasonTimeBeforeMin     domain.Reason = "time_before_min"
	ReasonTimeAfterMax      domain.Reason = "time_after_max"
	ReasonInvalidSelection  domain.Reason = "invalid_selection"
	ReasonTooManySelections domain.Reason = "too_many_selections"
	ReasonUnknownOption     domain.Reason = "unknown_option"
	ReasonOtherTextRequired domain.Reason = "other_text_required"

	ReasonLightOffBeforeBedtime   domain.Reason = "light_off_before_bedtime"
	ReasonOutOfBedBeforeWake      domain.Reason = "out_of_bed_before_wake"
	ReasonFellAsleepBeforeBedtime domain.Reason = "fell_asleep_before_bedtime"
	ReasonNegativeSleepLatency    domain.Reason = "negative_sleep_latency"
	ReasonWakeDetailsRequired     domain.Reason = "wake_details_required"
	ReasonWakeCountZero           domain.Reason = "wake_count_zero"
	ReasonWakeDurationRequired    domain.Reason = "wake_duration_required"
	ReasonWakeDurationNotZero     domain.Reason = "wake_duration_not_zero"
)

// Cross reports whether r comes from a cross-question rule.
func Cross(r domain.Reason) bool {
	switch r {
	case ReasonLightOffBeforeBedtime, ReasonOutOfBedBeforeWake, ReasonFellAsleepBeforeBedtime,
		ReasonNegativeSleepLatency, ReasonWakeDetailsRequired, ReasonWakeCountZero,
		ReasonWakeDurationRequired, ReasonWakeDurationNotZero:
		return true
	}
	return false
}

func fail(questionID string, reason domain.Reason, params map[string]string) *domain.ValidationError {
	return &domain.ValidationError{QuestionID: questionID, Reason: reason, Params: params}
}
