package validation

import (
	"regexp"
	"strconv"
)

var clockPattern = regexp.MustCompile(`^(\d{2}):(\d{2})$`)

// ParseClock parses an "HH:mm" value into minutes since midnight.
func ParseClock(s string) (int, bool) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if h > 23 || mm > 59 {
		return 0, false
	}
	return h*60 + mm, true
}
