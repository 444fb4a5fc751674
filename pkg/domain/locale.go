package domain

// Locale selects the language of question and option texts.
type Locale string

const (
	LocaleDanish  Locale = "da"
	LocaleEnglish Locale = "en"

	// DefaultLocale is used when a text has no translation for the requested locale.
	DefaultLocale = LocaleDanish
)

// ParseLocale maps a request parameter to a Locale, falling back to DefaultLocale.
func ParseLocale(s string) Locale {
	switch Locale(s) {
	case LocaleDanish, LocaleEnglish:
		return Locale(s)
	}
	return DefaultLocale
}

func pick(base string, texts map[Locale]string, l Locale) string {
	if t, ok := texts[l]; ok && t != "" {
		return t
	}
	if t, ok := texts[DefaultLocale]; ok && t != "" {
		return t
	}
	if base != "" {
		return base
	}
	for _, t := range texts {
		if t != "" {
			return t
		}
	}
	return ""
}

// Localize returns a copy of q whose Text and option texts are resolved for l.
func Localize(q Question, l Locale) Question {
	c := q.Clone()
	c.Text = pick(q.Text, q.Translations, l)
	for i := range c.Options {
		c.Options[i].Text = pick(c.Options[i].Text, c.Options[i].Translations, l)
	}
	return c
}
