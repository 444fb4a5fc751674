package editor

import (
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/graph"
)

// ErrNotChoice is returned when options are edited on a non-choice question.
var ErrNotChoice = errors.New("question type has no options")

// ErrInvalidQuestion is returned for malformed questions handed to the editor.
var ErrInvalidQuestion = errors.New("invalid question")

var otherText = map[domain.Locale]string{
	domain.LocaleDanish:  "Andet",
	domain.LocaleEnglish: "Other",
}

// Draft is the working copy of one question and its pending branch
// questions. A Draft is not safe for concurrent use.
type Draft struct {
	question domain.Question
	// others are the remaining questions of the questionnaire.
	others []domain.Question

	pending map[string]domain.Question
	order   []string
	stray   []domain.Edge
}

func newDraft(q domain.Question, all []domain.Question) *Draft {
	d := &Draft{
		question: q.Clone(),
		pending:  make(map[string]domain.Question),
	}
	for _, o := range all {
		if o.ID != q.ID {
			d.others = append(d.others, o)
		}
	}
	// stray temporary edges left by an earlier failed save
	d.question.Edges = slices.DeleteFunc(d.question.Edges, func(e domain.Edge) bool {
		if domain.IsTempID(e.ChildQuestionID) {
			d.stray = append(d.stray, e)
			return true
		}
		return false
	})
	d.question.Renumber()
	return d
}

// Question returns a copy of the edited question. Its edges may reference
// temporary identifiers.
func (d *Draft) Question() domain.Question {
	return d.question.Clone()
}

// Edges returns the edited edge list.
func (d *Draft) Edges() []domain.Edge {
	return slices.Clone(d.question.Edges)
}

// Pending returns the branch questions created since the last commit.
func (d *Draft) Pending() []domain.Question {
	out := make([]domain.Question, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.pending[id].Clone())
	}
	return out
}

// Stray returns the temporary edges removed when the draft was opened.
func (d *Draft) Stray() []domain.Edge {
	return slices.Clone(d.stray)
}

func (d *Draft) editable() error {
	if d.question.Locked {
		return fmt.Errorf("edit %s: %w", d.question.ID, domain.ErrQuestionLocked)
	}
	return nil
}

// SetText sets the question text for locale.
func (d *Draft) SetText(locale domain.Locale, text string) error {
	if err := d.editable(); err != nil {
		return err
	}
	if locale == domain.DefaultLocale {
		d.question.Text = text
	}
	if d.question.Translations == nil {
		d.question.Translations = make(map[domain.Locale]string)
	}
	d.question.Translations[locale] = text
	return nil
}

// SetType changes the question type. Leaving the choice types discards
// every option and edge, which requires confirm when edges exist.
func (d *Draft) SetType(t domain.QuestionType, confirm bool) error {
	if err := d.editable(); err != nil {
		return err
	}
	if !t.Valid() {
		return fmt.Errorf("%w: unknown question type %q", ErrInvalidQuestion, t)
	}
	if t.IsChoice() || !d.question.Type.IsChoice() {
		d.question.Type = t
		return nil
	}
	if len(d.question.Edges) > 0 && !confirm {
		return fmt.Errorf("change %s to %s drops %d edge(s): %w", d.question.ID, t, len(d.question.Edges), domain.ErrConfirmationRequired)
	}
	d.question.Type = t
	d.question.Options = nil
	d.question.Edges = nil
	d.prune()
	return nil
}

// AddOption appends an option and returns it.
func (d *Draft) AddOption(text string) (domain.Option, error) {
	if err := d.editable(); err != nil {
		return domain.Option{}, err
	}
	if !d.question.Type.IsChoice() {
		return domain.Option{}, ErrNotChoice
	}
	o := domain.Option{ID: domain.NewOptionID(), Text: text}
	d.question.Options = append(d.question.Options, o)
	return o, nil
}

// AddOtherOption appends the free-text "other" option. text defaults to
// the localized "Other".
func (d *Draft) AddOtherOption(text string) (domain.Option, error) {
	if err := d.editable(); err != nil {
		return domain.Option{}, err
	}
	if !d.question.Type.IsChoice() {
		return domain.Option{}, ErrNotChoice
	}
	if _, exists := d.question.OtherOption(); exists {
		return domain.Option{}, fmt.Errorf("question %s: %w", d.question.ID, domain.ErrDuplicateOther)
	}
	o := domain.Option{
		ID:           domain.NewOptionID(),
		Text:         otherText[domain.DefaultLocale],
		Translations: map[domain.Locale]string{domain.LocaleDanish: otherText[domain.LocaleDanish], domain.LocaleEnglish: otherText[domain.LocaleEnglish]},
		IsOther:      true,
	}
	if text != "" {
		o.Text = text
		o.Translations = nil
	}
	d.question.Options = append(d.question.Options, o)
	return o, nil
}

// RemoveOption removes an option and exactly the edges keyed by it.
func (d *Draft) RemoveOption(optionID string) error {
	if err := d.editable(); err != nil {
		return err
	}
	idx := slices.IndexFunc(d.question.Options, func(o domain.Option) bool { return o.ID == optionID })
	if idx < 0 {
		return fmt.Errorf("option %s: %w", optionID, domain.ErrOptionNotFound)
	}
	d.question.Options = slices.Delete(d.question.Options, idx, idx+1)
	d.question.Edges = slices.DeleteFunc(d.question.Edges, func(e domain.Edge) bool { return e.OptionID == optionID })
	d.prune()
	return nil
}

// view is the graph seen by edge checks: the questionnaire plus the draft
// and its pending questions.
func (d *Draft) view() *graph.Graph {
	all := make([]domain.Question, 0, len(d.others)+len(d.pending)+1)
	all = append(all, d.others...)
	all = append(all, d.question)
	for _, id := range d.order {
		all = append(all, d.pending[id])
	}
	return graph.New(all)
}

// AddEdge attaches an existing or pending question to an option.
func (d *Draft) AddEdge(optionID, childID string) error {
	if domain.IsTempID(childID) {
		if _, ok := d.pending[childID]; !ok {
			return fmt.Errorf("child %s: %w", childID, domain.ErrQuestionNotFound)
		}
	}
	if err := d.view().CheckEdge(d.question.ID, optionID, childID); err != nil {
		return err
	}
	local := len(d.question.Bucket(optionID)) + 1
	d.question.Edges = append(d.question.Edges, domain.Edge{OptionID: optionID, ChildQuestionID: childID, Order: local})
	return nil
}

// RemoveEdge detaches a child from an option and renumbers the bucket.
func (d *Draft) RemoveEdge(optionID, childID string) error {
	next, err := graph.DropEdge(d.question, optionID, childID)
	if err != nil {
		return err
	}
	d.question = next
	d.prune()
	return nil
}

// MoveEdge swaps an edge with its neighbor in the bucket: delta -1 moves
// it up, +1 down. Moving past either end is a no-op.
func (d *Draft) MoveEdge(optionID, childID string, delta int) error {
	bucket := d.question.Bucket(optionID)
	pos := slices.IndexFunc(bucket, func(e domain.Edge) bool { return e.ChildQuestionID == childID })
	if pos < 0 {
		return fmt.Errorf("%s/%s -> %s: %w", d.question.ID, optionID, childID, domain.ErrEdgeNotFound)
	}
	target := pos + delta
	if delta == 0 || target < 0 || target >= len(bucket) {
		return nil
	}
	ordered := make([]string, len(bucket))
	for i, e := range bucket {
		ordered[i] = e.ChildQuestionID
	}
	ordered[pos], ordered[target] = ordered[target], ordered[pos]
	next, err := graph.ReorderBucket(d.question, optionID, ordered)
	if err != nil {
		return err
	}
	d.question = next
	return nil
}

// CreateBranchQuestion adds a new branch-only question under optionID and
// returns its temporary identifier. Choice questions need at least one
// option; options without an ID get one.
func (d *Draft) CreateBranchQuestion(optionID string, q domain.Question) (string, error) {
	if _, ok := d.question.Option(optionID); !ok {
		return "", fmt.Errorf("option %s: %w", optionID, domain.ErrOptionNotFound)
	}
	if q.Text == "" {
		return "", errors.New("branch question needs a text")
	}
	if !q.Type.Valid() {
		return "", fmt.Errorf("%w: unknown question type %q", ErrInvalidQuestion, q.Type)
	}
	c := q.Clone()
	if c.Type.IsChoice() {
		if len(c.Options) == 0 {
			return "", fmt.Errorf("%w: %s question needs at least one option", ErrInvalidQuestion, c.Type)
		}
		for i := range c.Options {
			if c.Options[i].ID == "" {
				c.Options[i].ID = domain.NewOptionID()
			}
		}
	} else {
		c.Options = nil
	}
	c.ID = domain.NewTempID()
	c.QuestionnaireID = d.question.QuestionnaireID
	c.Edges = nil
	c.Locked = false
	c.DeletedAt = nil

	d.pending[c.ID] = c
	d.order = append(d.order, c.ID)
	if err := d.AddEdge(optionID, c.ID); err != nil {
		d.forget(c.ID)
		return "", err
	}
	return c.ID, nil
}

func (d *Draft) forget(tempID string) {
	delete(d.pending, tempID)
	d.order = slices.DeleteFunc(d.order, func(id string) bool { return id == tempID })
}

// prune discards pending questions no edge refers to anymore.
func (d *Draft) prune() {
	for _, id := range slices.Clone(d.order) {
		if !slices.ContainsFunc(d.question.Edges, func(e domain.Edge) bool { return e.ChildQuestionID == id }) {
			d.forget(id)
		}
	}
}

// Check runs the structural checks a commit requires. Temporary edges must
// point at pending questions; everything else must form a final graph.
func (d *Draft) Check() error {
	var errs []error
	final := d.question.Clone()
	final.Edges = nil
	for _, e := range d.question.Edges {
		if !domain.IsTempID(e.ChildQuestionID) {
			final.Edges = append(final.Edges, e)
			continue
		}
		if _, ok := d.pending[e.ChildQuestionID]; !ok {
			errs = append(errs, &domain.StructuralError{Kind: domain.ErrOrphanedTemp, QuestionID: d.question.ID, OptionID: e.OptionID, ChildID: e.ChildQuestionID})
		}
		if _, ok := d.question.Option(e.OptionID); !ok {
			errs = append(errs, &domain.StructuralError{Kind: domain.ErrUnknownOption, QuestionID: d.question.ID, OptionID: e.OptionID, ChildID: e.ChildQuestionID})
		}
	}
	all := append(slices.Clone(d.others), final)
	if err := graph.New(all).Finalize(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// dirty reports whether the scalar fields or options differ from base.
func (d *Draft) dirty(base domain.Question) bool {
	a, b := d.question.Clone(), base.Clone()
	a.Edges, b.Edges = nil, nil
	return !reflect.DeepEqual(a, b)
}
