package graph

import (
	"fmt"
	"slices"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
)

// The functions below are the edge mutations shared by store adapters. They
// validate against the graph and return updated copies; persisting them is
// the caller's job.

// AppendEdge appends childID to the option bucket of parentID. It returns
// the updated parent and the child with its order set to the child order.
func (g *Graph) AppendEdge(parentID, optionID, childID string) (domain.Question, domain.Question, error) {
	if domain.IsTempID(childID) {
		return domain.Question{}, domain.Question{}, fmt.Errorf("child %s: %w", childID, domain.ErrTempIDRejected)
	}
	parent, ok := g.Question(parentID)
	if !ok {
		return domain.Question{}, domain.Question{}, fmt.Errorf("parent %s: %w", parentID, domain.ErrQuestionNotFound)
	}
	if _, ok := parent.Option(optionID); !ok {
		return domain.Question{}, domain.Question{}, fmt.Errorf("option %s on %s: %w", optionID, parentID, domain.ErrOptionNotFound)
	}
	child, ok := g.Question(childID)
	if !ok || child.Archived() {
		return domain.Question{}, domain.Question{}, fmt.Errorf("child %s: %w", childID, domain.ErrQuestionNotFound)
	}
	if err := g.CheckEdge(parentID, optionID, childID); err != nil {
		return domain.Question{}, domain.Question{}, err
	}
	local := len(parent.Bucket(optionID)) + 1
	parent.Edges = append(parent.Edges, domain.Edge{OptionID: optionID, ChildQuestionID: childID, Order: local})
	child.Order = domain.ChildOrder(parent.Order, local)
	return parent, child, nil
}

// DropEdge removes one edge from parent and renumbers its bucket.
func DropEdge(parent domain.Question, optionID, childID string) (domain.Question, error) {
	idx := slices.IndexFunc(parent.Edges, func(e domain.Edge) bool {
		return e.OptionID == optionID && e.ChildQuestionID == childID
	})
	if idx < 0 {
		return parent, fmt.Errorf("%s/%s -> %s: %w", parent.ID, optionID, childID, domain.ErrEdgeNotFound)
	}
	out := parent.Clone()
	out.Edges = slices.Delete(out.Edges, idx, idx+1)
	out.Renumber()
	return out, nil
}

// ReorderBucket sets the local order of one bucket. ordered must be a
// permutation of the bucket's child IDs.
func ReorderBucket(parent domain.Question, optionID string, ordered []string) (domain.Question, error) {
	bucket := parent.Bucket(optionID)
	if len(bucket) != len(ordered) {
		return parent, fmt.Errorf("reorder %s/%s: got %d ids for %d edges", parent.ID, optionID, len(ordered), len(bucket))
	}
	pos := make(map[string]int, len(ordered))
	for i, id := range ordered {
		if _, dup := pos[id]; dup {
			return parent, fmt.Errorf("reorder %s/%s: duplicate id %s", parent.ID, optionID, id)
		}
		pos[id] = i + 1
	}
	out := parent.Clone()
	for i, e := range out.Edges {
		if e.OptionID != optionID {
			continue
		}
		p, ok := pos[e.ChildQuestionID]
		if !ok {
			return parent, fmt.Errorf("reorder %s/%s: %s: %w", parent.ID, optionID, e.ChildQuestionID, domain.ErrEdgeNotFound)
		}
		out.Edges[i].Order = p
	}
	return out, nil
}

// ChildOrders maps every child of parent to its child order.
func ChildOrders(parent domain.Question) map[string]int {
	out := make(map[string]int, len(parent.Edges))
	for _, e := range parent.Edges {
		out[e.ChildQuestionID] = domain.ChildOrder(parent.Order, e.Order)
	}
	return out
}

// PruneEdges drops the edges of q keyed by options q no longer has.
func PruneEdges(q domain.Question) domain.Question {
	out := q.Clone()
	out.Edges = slices.DeleteFunc(out.Edges, func(e domain.Edge) bool {
		_, ok := out.Option(e.OptionID)
		return !ok
	})
	out.Renumber()
	return out
}

// ReplaceEdges validates a complete edge list for parentID and returns the
// parent carrying it, numbered by position within each bucket.
func (g *Graph) ReplaceEdges(parentID string, edges []domain.Edge) (domain.Question, error) {
	parent, ok := g.Question(parentID)
	if !ok {
		return domain.Question{}, fmt.Errorf("parent %s: %w", parentID, domain.ErrQuestionNotFound)
	}
	parent.Edges = nil
	next := make(map[string]int)
	for _, e := range edges {
		if domain.IsTempID(e.ChildQuestionID) {
			return domain.Question{}, fmt.Errorf("child %s: %w", e.ChildQuestionID, domain.ErrTempIDRejected)
		}
		if _, ok := parent.Option(e.OptionID); !ok {
			return domain.Question{}, fmt.Errorf("option %s on %s: %w", e.OptionID, parentID, domain.ErrOptionNotFound)
		}
		if e.ChildQuestionID == parentID {
			return domain.Question{}, &domain.StructuralError{Kind: domain.ErrSelfEdge, QuestionID: parentID, OptionID: e.OptionID, ChildID: parentID}
		}
		if child, ok := g.Question(e.ChildQuestionID); !ok || child.Archived() {
			return domain.Question{}, fmt.Errorf("child %s: %w", e.ChildQuestionID, domain.ErrQuestionNotFound)
		}
		if parent.HasEdge(e.OptionID, e.ChildQuestionID) {
			return domain.Question{}, fmt.Errorf("%s/%s -> %s: %w", parentID, e.OptionID, e.ChildQuestionID, domain.ErrEdgeExists)
		}
		next[e.OptionID]++
		parent.Edges = append(parent.Edges, domain.Edge{OptionID: e.OptionID, ChildQuestionID: e.ChildQuestionID, Order: next[e.OptionID]})
	}
	if err := g.With(parent).detectCycle(); err != nil {
		return domain.Question{}, err
	}
	return parent, nil
}

// Detach removes every edge pointing at childID from the questions of g and
// returns the parents that changed.
func (g *Graph) Detach(childID string) []domain.Question {
	var changed []domain.Question
	for _, p := range g.Parents(childID) {
		q, ok := g.Question(p.QuestionID)
		if !ok {
			continue
		}
		if slices.ContainsFunc(changed, func(c domain.Question) bool { return c.ID == q.ID }) {
			continue
		}
		q.Edges = slices.DeleteFunc(q.Edges, func(e domain.Edge) bool { return e.ChildQuestionID == childID })
		q.Renumber()
		changed = append(changed, q)
	}
	return changed
}
