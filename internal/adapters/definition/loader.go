// Package definition reads questionnaire definitions from YAML or JSON files.
package definition

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/graph"
	"gopkg.in/yaml.v3"
)

// Definition is one questionnaire with its question graph.
type Definition struct {
	Questionnaire domain.Questionnaire `yaml:"questionnaire" json:"questionnaire"`
	Questions     []domain.Question    `yaml:"questions" json:"questions"`
}

// LoadFile reads a definition. Files ending in .json are parsed as JSON,
// everything else as YAML.
func LoadFile(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("failed to read definition: %w", err)
	}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		var def Definition
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			return Definition{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		return def.normalize()
	}
	def, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Definition{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return def, nil
}

// Decode reads a YAML definition from r. Unknown keys are rejected.
func Decode(r io.Reader) (Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return Definition{}, errors.New("empty definition")
		}
		return Definition{}, err
	}
	return def.normalize()
}

// normalize fills the questionnaire ID into the questions and checks the
// fields the stores rely on.
func (d Definition) normalize() (Definition, error) {
	qn := d.Questionnaire
	if qn.ID == "" {
		return Definition{}, errors.New("questionnaire.id is required")
	}
	if qn.Type != domain.QuestionnaireMorning && qn.Type != domain.QuestionnaireEvening {
		return Definition{}, fmt.Errorf("questionnaire.type must be morning or evening, got %q", qn.Type)
	}
	seen := make(map[string]bool, len(d.Questions))
	for i := range d.Questions {
		q := &d.Questions[i]
		if q.ID == "" {
			return Definition{}, fmt.Errorf("question %d: id is required", i+1)
		}
		if seen[q.ID] {
			return Definition{}, fmt.Errorf("question %s: duplicate id", q.ID)
		}
		seen[q.ID] = true
		if !q.Type.Valid() {
			return Definition{}, fmt.Errorf("question %s: unknown type %q", q.ID, q.Type)
		}
		if q.QuestionnaireID == "" {
			q.QuestionnaireID = qn.ID
		}
		if q.QuestionnaireID != qn.ID {
			return Definition{}, fmt.Errorf("question %s: belongs to %s, not %s", q.ID, q.QuestionnaireID, qn.ID)
		}
		for j, o := range q.Options {
			if o.ID == "" {
				return Definition{}, fmt.Errorf("question %s: option %d: id is required", q.ID, j+1)
			}
			if !o.Color.Valid() {
				return Definition{}, fmt.Errorf("question %s: option %s: unknown color %q", q.ID, o.ID, o.Color)
			}
		}
		q.Renumber()
	}
	return d, nil
}

// Graph builds the question graph of the definition.
func (d Definition) Graph() *graph.Graph {
	return graph.New(d.Questions)
}

// Check reports every structural violation of the definition's graph.
func (d Definition) Check() error {
	return d.Graph().Finalize()
}
