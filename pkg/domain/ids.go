package domain

import (
	"strings"

	"github.com/google/uuid"
)

// TempPrefix marks identifiers of branch questions that only exist as editor
// drafts. Such identifiers must never reach a QuestionStore.
const TempPrefix = "temp_"

// OptionPrefix prefixes generated option identifiers.
const OptionPrefix = "opt_"

// NewID returns a fresh persisted identifier.
func NewID() string {
	return uuid.New().String()
}

// NewTempID returns a fresh temporary branch identifier.
func NewTempID() string {
	return TempPrefix + uuid.New().String()
}

// NewOptionID returns a fresh option identifier.
func NewOptionID() string {
	return OptionPrefix + uuid.New().String()
}

// IsTempID reports whether id is a temporary draft identifier.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}
