package validation

import (
	"strconv"
	"unicode/utf8"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/graph"
)

// Mode selects how strictly rules are applied.
type Mode int

const (
	// Interactive checks what has been answered so far; cross rules are advisory.
	Interactive Mode = iota
	// Submit requires every visible question and enforces every cross rule.
	Submit
)

// Bound derives a time bound of Target from the current answer to Source.
type Bound struct {
	Target string
	Source string
	// Max selects maxTime instead of minTime.
	Max bool
}

// Constraints are the constraints in force for one question and answer set.
type Constraints struct {
	MinLength *int
	MaxLength *int
	MinValue  *float64
	MaxValue  *float64
	MinTime   string
	MaxTime   string
}

// Engine validates answers for one questionnaire graph.
type Engine struct {
	graph        *graph.Graph
	designations Designations
	bounds       []Bound
	observe      func(domain.Reason)
}

// Option configures an Engine.
type Option func(*Engine)

// WithDesignations overrides the order-based designations.
func WithDesignations(d Designations) Option {
	return func(e *Engine) {
		e.designations = d
	}
}

// WithBounds adds dynamic time bounds on top of the designated ones.
func WithBounds(bounds ...Bound) Option {
	return func(e *Engine) {
		e.bounds = append(e.bounds, bounds...)
	}
}

// WithObserver registers a callback invoked for every reported failure.
func WithObserver(fn func(domain.Reason)) Option {
	return func(e *Engine) {
		e.observe = fn
	}
}

// New creates an Engine for g.
func New(g *graph.Graph, opts ...Option) *Engine {
	e := &Engine{
		graph:        g,
		designations: DesignateByOrder(g.Questions()),
	}
	for _, opt := range opts {
		opt(e)
	}
	d := e.designations
	if d.Bedtime != "" && d.LightOff != "" {
		e.bounds = append(e.bounds, Bound{Target: d.LightOff, Source: d.Bedtime})
	}
	if d.WakeTime != "" && d.OutOfBed != "" {
		e.bounds = append(e.bounds, Bound{Target: d.OutOfBed, Source: d.WakeTime})
	}
	return e
}

// Designations returns the questions taking part in cross rules.
func (e *Engine) Designations() Designations {
	return e.designations
}

// Graph returns the graph the engine validates against.
func (e *Engine) Graph() *graph.Graph {
	return e.graph
}

func (e *Engine) report(errs ...*domain.ValidationError) []*domain.ValidationError {
	if e.observe != nil {
		for _, err := range errs {
			e.observe(err.Reason)
		}
	}
	return errs
}

// Effective computes the constraints of q for the given answers. Dynamic
// bounds whose source is unanswered or unparsable fall back to the schema.
func (e *Engine) Effective(q domain.Question, answers domain.Answers) Constraints {
	c := Constraints{
		MinLength: q.MinLength,
		MaxLength: q.MaxLength,
		MinValue:  q.MinValue,
		MaxValue:  q.MaxValue,
		MinTime:   q.MinTime,
		MaxTime:   q.MaxTime,
	}
	if q.Type != domain.TypeTimePicker {
		return c
	}
	for _, b := range e.bounds {
		if b.Target != q.ID {
			continue
		}
		src := domain.Text(answers[b.Source])
		if _, ok := ParseClock(src); !ok {
			continue
		}
		if b.Max {
			c.MaxTime = src
		} else {
			c.MinTime = src
		}
	}
	return c
}

// ValidateAnswer checks the current answer of questionID. Unknown questions
// are not validated.
func (e *Engine) ValidateAnswer(questionID string, answers domain.Answers) *domain.ValidationError {
	q, ok := e.graph.Question(questionID)
	if !ok {
		return nil
	}
	if err := e.Check(q, answers[questionID], answers); err != nil {
		e.report(err)
		return err
	}
	return nil
}

// Check applies the per-type rule of q to value.
func (e *Engine) Check(q domain.Question, value any, answers domain.Answers) *domain.ValidationError {
	c := e.Effective(q, answers)
	switch q.Type {
	case domain.TypeText:
		return checkText(q.ID, value, c)
	case domain.TypeNumeric, domain.TypeSlider:
		return checkNumber(q.ID, value, c)
	case domain.TypeTimePicker:
		return checkTime(q.ID, value, c)
	case domain.TypeSingleChoice:
		return checkChoice(q, value, false)
	case domain.TypeMultiChoice:
		return checkChoice(q, value, true)
	}
	return nil
}

func checkText(id string, value any, c Constraints) *domain.ValidationError {
	s := domain.Text(value)
	if s == "" {
		return fail(id, ReasonRequired, nil)
	}
	n := utf8.RuneCountInString(s)
	if c.MinLength != nil && n < *c.MinLength {
		return fail(id, ReasonTooShort, map[string]string{"min": strconv.Itoa(*c.MinLength), "length": strconv.Itoa(n)})
	}
	if c.MaxLength != nil && n > *c.MaxLength {
		return fail(id, ReasonTooLong, map[string]string{"max": strconv.Itoa(*c.MaxLength), "length": strconv.Itoa(n)})
	}
	return nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func checkNumber(id string, value any, c Constraints) *domain.ValidationError {
	if domain.IsBlank(value) {
		return fail(id, ReasonRequired, nil)
	}
	v, ok := domain.Number(value)
	if !ok {
		return fail(id, ReasonNotANumber, map[string]string{"value": domain.Text(value)})
	}
	lo := 0.0
	if c.MinValue != nil {
		lo = *c.MinValue
	}
	if v < lo {
		return fail(id, ReasonBelowMin, map[string]string{"value": formatNumber(v), "min": formatNumber(lo)})
	}
	if c.MaxValue != nil && v > *c.MaxValue {
		return fail(id, ReasonAboveMax, map[string]string{"value": formatNumber(v), "max": formatNumber(*c.MaxValue)})
	}
	return nil
}

func checkTime(id string, value any, c Constraints) *domain.ValidationError {
	s := domain.Text(value)
	if s == "" {
		return fail(id, ReasonRequired, nil)
	}
	v, ok := ParseClock(s)
	if !ok {
		return fail(id, ReasonInvalidTime, map[string]string{"value": s})
	}
	if lo, ok := ParseClock(c.MinTime); ok && v < lo {
		return fail(id, ReasonTimeBeforeMin, map[string]string{"value": s, "min": c.MinTime})
	}
	if hi, ok := ParseClock(c.MaxTime); ok && v > hi {
		return fail(id, ReasonTimeAfterMax, map[string]string{"value": s, "max": c.MaxTime})
	}
	return nil
}

func checkChoice(q domain.Question, value any, multi bool) *domain.ValidationError {
	sel, err := domain.Selections(value)
	if err != nil {
		return fail(q.ID, ReasonInvalidSelection, nil)
	}
	if len(sel) == 0 {
		return fail(q.ID, ReasonRequired, nil)
	}
	if !multi && len(sel) > 1 {
		return fail(q.ID, ReasonTooManySelections, map[string]string{"count": strconv.Itoa(len(sel))})
	}
	for _, s := range sel {
		opt, ok := q.Option(s.OptionID)
		if !ok {
			return fail(q.ID, ReasonUnknownOption, map[string]string{"option": s.OptionID})
		}
		if opt.IsOther && domain.Text(s.CustomText) == "" {
			return fail(q.ID, ReasonOtherTextRequired, map[string]string{"option": opt.ID})
		}
	}
	return nil
}
