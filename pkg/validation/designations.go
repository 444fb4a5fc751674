package validation

import "github.com/NicklasHM/P3-sleep-diary/pkg/domain"

// Orders of the designated morning questions.
const (
	OrderBedtime      = 3
	OrderLightOff     = 4
	OrderFellAsleep   = 5
	OrderWakeOccurred = 6
	OrderWakeCount    = 601
	OrderWakeDuration = 602
	OrderWakeTime     = 7
	OrderOutOfBed     = 8

	OptionWakeYes = "wake_yes"
	OptionWakeNo  = "wake_no"
)

// Designations names the questions taking part in cross rules. Empty fields
// disable the rules that need them.
type Designations struct {
	Bedtime      string `json:"bedtime,omitempty" yaml:"bedtime,omitempty" mapstructure:"bedtime"`
	LightOff     string `json:"lightOff,omitempty" yaml:"lightOff,omitempty" mapstructure:"lightOff"`
	FellAsleep   string `json:"fellAsleep,omitempty" yaml:"fellAsleep,omitempty" mapstructure:"fellAsleep"`
	WakeOccurred string `json:"wakeOccurred,omitempty" yaml:"wakeOccurred,omitempty" mapstructure:"wakeOccurred"`
	WakeCount    string `json:"wakeCount,omitempty" yaml:"wakeCount,omitempty" mapstructure:"wakeCount"`
	WakeDuration string `json:"wakeDuration,omitempty" yaml:"wakeDuration,omitempty" mapstructure:"wakeDuration"`
	WakeTime     string `json:"wakeTime,omitempty" yaml:"wakeTime,omitempty" mapstructure:"wakeTime"`
	OutOfBed     string `json:"outOfBed,omitempty" yaml:"outOfBed,omitempty" mapstructure:"outOfBed"`

	WakeYes string `json:"wakeYes,omitempty" yaml:"wakeYes,omitempty" mapstructure:"wakeYes"`
	WakeNo  string `json:"wakeNo,omitempty" yaml:"wakeNo,omitempty" mapstructure:"wakeNo"`
}

// DesignateByOrder locates the designated questions by their conventional
// order and type. Archived questions are ignored.
func DesignateByOrder(questions []domain.Question) Designations {
	find := func(order int, types ...domain.QuestionType) string {
		for _, q := range questions {
			if q.Order != order || q.Archived() {
				continue
			}
			if len(types) == 0 {
				return q.ID
			}
			for _, t := range types {
				if q.Type == t {
					return q.ID
				}
			}
		}
		return ""
	}
	return Designations{
		Bedtime:      find(OrderBedtime, domain.TypeTimePicker),
		LightOff:     find(OrderLightOff, domain.TypeTimePicker),
		FellAsleep:   find(OrderFellAsleep, domain.TypeTimePicker, domain.TypeNumeric),
		WakeOccurred: find(OrderWakeOccurred, domain.TypeSingleChoice),
		WakeCount:    find(OrderWakeCount, domain.TypeNumeric),
		WakeDuration: find(OrderWakeDuration, domain.TypeNumeric),
		WakeTime:     find(OrderWakeTime, domain.TypeTimePicker),
		OutOfBed:     find(OrderOutOfBed, domain.TypeTimePicker),
		WakeYes:      OptionWakeYes,
		WakeNo:       OptionWakeNo,
	}
}

// CopyPairs returns the (source, target) pairs whose answers the wizard
// copies forward: bedtime to light-off and wake time to out of bed.
func (d Designations) CopyPairs() [][2]string {
	var pairs [][2]string
	if d.Bedtime != "" && d.LightOff != "" {
		pairs = append(pairs, [2]string{d.Bedtime, d.LightOff})
	}
	if d.WakeTime != "" && d.OutOfBed != "" {
		pairs = append(pairs, [2]string{d.WakeTime, d.OutOfBed})
	}
	return pairs
}
