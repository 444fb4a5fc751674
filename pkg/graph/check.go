package graph

import (
	"errors"
	"fmt"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
)

// Reaches reports whether to is reachable from from through the edge relation.
func (g *Graph) Reaches(from, to string) bool {
	visited := make(map[string]bool)
	var dfs func(id string) bool
	dfs = func(id string) bool {
		if id == to {
			return true
		}
		if visited[id] {
			return false
		}
		visited[id] = true
		q, ok := g.questions[id]
		if !ok {
			return false
		}
		for _, e := range q.Edges {
			if dfs(e.ChildQuestionID) {
				return true
			}
		}
		return false
	}
	return dfs(from)
}

// CheckEdge validates a proposed edge against the current graph. Temporary
// child identifiers are accepted since their question is still a draft.
func (g *Graph) CheckEdge(parentID, optionID, childID string) error {
	parent, ok := g.questions[parentID]
	if !ok {
		return fmt.Errorf("parent %s: %w", parentID, domain.ErrQuestionNotFound)
	}
	if _, ok := parent.Option(optionID); !ok {
		return &domain.StructuralError{Kind: domain.ErrUnknownOption, QuestionID: parentID, OptionID: optionID, ChildID: childID}
	}
	if childID == parentID {
		return &domain.StructuralError{Kind: domain.ErrSelfEdge, QuestionID: parentID, OptionID: optionID, ChildID: childID}
	}
	if parent.HasEdge(optionID, childID) {
		return fmt.Errorf("%s/%s -> %s: %w", parentID, optionID, childID, domain.ErrEdgeExists)
	}
	if domain.IsTempID(childID) {
		return nil
	}
	if _, ok := g.questions[childID]; !ok {
		return &domain.StructuralError{Kind: domain.ErrDanglingEdge, QuestionID: parentID, OptionID: optionID, ChildID: childID}
	}
	// the new edge closes a cycle iff the parent is already reachable from the child
	if g.Reaches(childID, parentID) {
		return &domain.StructuralError{Kind: domain.ErrCycle, QuestionID: parentID, OptionID: optionID, ChildID: childID}
	}
	return nil
}

// Finalize checks every structural invariant and returns all violations
// joined. A graph that still references temporary identifiers is not final.
func (g *Graph) Finalize() error {
	var errs []error
	for _, q := range g.sorted() {
		others := 0
		for _, o := range q.Options {
			if o.IsOther {
				others++
			}
		}
		if others > 1 {
			errs = append(errs, &domain.StructuralError{Kind: domain.ErrOtherOptions, QuestionID: q.ID})
		}
		for _, e := range q.Edges {
			se := &domain.StructuralError{QuestionID: q.ID, OptionID: e.OptionID, ChildID: e.ChildQuestionID}
			switch _, hasOption := q.Option(e.OptionID); {
			case !hasOption:
				se.Kind = domain.ErrUnknownOption
			case domain.IsTempID(e.ChildQuestionID):
				se.Kind = domain.ErrOrphanedTemp
			case e.ChildQuestionID == q.ID:
				se.Kind = domain.ErrSelfEdge
			case g.questions[e.ChildQuestionID] == nil:
				se.Kind = domain.ErrDanglingEdge
			default:
				continue
			}
			errs = append(errs, se)
		}
	}
	if err := g.detectCycle(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// detectCycle is a depth-first search with temporary and permanent marks.
func (g *Graph) detectCycle() error {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(q *domain.Question) error
	visit = func(q *domain.Question) error {
		if permanent[q.ID] {
			return nil
		}
		if temporary[q.ID] {
			return &domain.StructuralError{Kind: domain.ErrCycle, QuestionID: q.ID}
		}
		temporary[q.ID] = true
		for _, e := range q.Edges {
			child, ok := g.questions[e.ChildQuestionID]
			if !ok || child.ID == q.ID {
				continue
			}
			if err := visit(child); err != nil {
				return err
			}
		}
		delete(temporary, q.ID)
		permanent[q.ID] = true
		return nil
	}

	for _, q := range g.sorted() {
		if err := visit(q); err != nil {
			return err
		}
	}
	return nil
}
