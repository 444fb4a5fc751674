package validation

import (
	"strings"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
)

var templates = map[domain.Reason]map[domain.Locale]string{
	ReasonRequired: {
		domain.LocaleDanish:  "Dette spørgsmål skal besvares.",
		domain.LocaleEnglish: "This question must be answered.",
	},
	ReasonTooShort: {
		domain.LocaleDanish:  "Svaret skal være mindst {min} tegn.",
		domain.LocaleEnglish: "The answer must be at least {min} characters.",
	},
	ReasonTooLong: {
		domain.LocaleDanish:  "Svaret må højst være {max} tegn.",
		domain.LocaleEnglish: "The answer must be at most {max} characters.",
	},
	ReasonNotANumber: {
		domain.LocaleDanish:  "Indtast venligst et tal.",
		domain.LocaleEnglish: "Please enter a number.",
	},
	ReasonBelowMin: {
		domain.LocaleDanish:  "Værdien skal være mindst {min}.",
		domain.LocaleEnglish: "The value must be at least {min}.",
	},
	ReasonAboveMax: {
		domain.LocaleDanish:  "Værdien må højst være {max}.",
		domain.LocaleEnglish: "The value must be at most {max}.",
	},
	ReasonInvalidTime: {
		domain.LocaleDanish:  "Angiv tiden som TT:MM.",
		domain.LocaleEnglish: "Enter the time as HH:mm.",
	},
	ReasonTimeBeforeMin: {
		domain.LocaleDanish:  "Tiden ({value}) kan ikke være før {min}.",
		domain.LocaleEnglish: "The time ({value}) cannot be before {min}.",
	},
	ReasonTimeAfterMax: {
		domain.LocaleDanish:  "Tiden ({value}) kan ikke være efter {max}.",
		domain.LocaleEnglish: "The time ({value}) cannot be after {max}.",
	},
	ReasonInvalidSelection: {
		domain.LocaleDanish:  "Ugyldigt valg.",
		domain.LocaleEnglish: "Invalid selection.",
	},
	ReasonTooManySelections: {
		domain.LocaleDanish:  "Vælg kun én mulighed.",
		domain.LocaleEnglish: "Select only one option.",
	},
	ReasonUnknownOption: {
		domain.LocaleDanish:  "Den valgte mulighed findes ikke.",
		domain.LocaleEnglish: "The selected option does not exist.",
	},
	ReasonOtherTextRequired: {
		domain.LocaleDanish:  "Udfyld venligst feltet \"Andet\".",
		domain.LocaleEnglish: "Please fill in the \"Other\" field.",
	},
	ReasonLightOffBeforeBedtime: {
		domain.LocaleDanish:  "Du kan ikke have slukket lyset ({lightOff}) før du gik i seng ({bedtime}). Tjek venligst dine svar.",
		domain.LocaleEnglish: "You cannot have turned off the light ({lightOff}) before going to bed ({bedtime}). Please check your answers.",
	},
	ReasonOutOfBedBeforeWake: {
		domain.LocaleDanish:  "Du kan ikke være stået op ({outOfBed}) før du vågnede ({wakeTime}). Tjek venligst dine svar.",
		domain.LocaleEnglish: "You cannot have gotten out of bed ({outOfBed}) before you woke up ({wakeTime}). Please check your answers.",
	},
	ReasonFellAsleepBeforeBedtime: {
		domain.LocaleDanish:  "Du kan ikke være faldet i søvn ({fellAsleep}) før du gik i seng ({bedtime}). Tjek venligst dine svar.",
		domain.LocaleEnglish: "You cannot have fallen asleep ({fellAsleep}) before going to bed ({bedtime}). Please check your answers.",
	},
	ReasonNegativeSleepLatency: {
		domain.LocaleDanish:  "Antal minutter skal være positivt. Du indtastede: {value}",
		domain.LocaleEnglish: "Minutes must be positive. You entered: {value}",
	},
	ReasonWakeDetailsRequired: {
		domain.LocaleDanish:  "Hvis du vågnede i løbet af natten, skal du angive både hvor mange gange og hvor mange minutter du var vågen.",
		domain.LocaleEnglish: "If you woke up during the night, you must specify both how many times and how many minutes you were awake.",
	},
	ReasonWakeCountZero: {
		domain.LocaleDanish:  "Hvis du vågnede i løbet af natten, skal du angive hvor mange gange du vågnede. Værdien kan ikke være 0.",
		domain.LocaleEnglish: "If you woke up during the night, you must specify how many times you woke up. The value cannot be 0.",
	},
	ReasonWakeDurationRequired: {
		domain.LocaleDanish:  "Hvis du vågnede {count} gange i løbet af natten, skal du også angive hvor længe du var vågen. Værdien kan ikke være 0.",
		domain.LocaleEnglish: "If you woke up {count} times during the night, you must also specify how long you were awake. The value cannot be 0.",
	},
	ReasonWakeDurationNotZero: {
		domain.LocaleDanish:  "Hvis du ikke vågnede i løbet af natten, skal værdien være 0. Du indtastede: {value}",
		domain.LocaleEnglish: "If you did not wake up during the night, the value must be 0. You entered: {value}",
	},
}

// Message renders err for locale. Unknown reasons render the raw reason.
func Message(err *domain.ValidationError, locale domain.Locale) string {
	byLocale, ok := templates[err.Reason]
	if !ok {
		return string(err.Reason)
	}
	tmpl, ok := byLocale[locale]
	if !ok {
		tmpl = byLocale[domain.DefaultLocale]
	}
	if len(err.Params) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(err.Params)*2)
	for k, v := range err.Params {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Localize sets the Message of every error for locale and returns errs.
func Localize(errs []*domain.ValidationError, locale domain.Locale) []*domain.ValidationError {
	for _, err := range errs {
		err.Message = Message(err, locale)
	}
	return errs
}
