package graph

import (
	"cmp"
	"slices"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/tidwall/btree"
)

// Parent identifies the incoming edge of a conditional child.
type Parent struct {
	QuestionID string
	OptionID   string
}

// Graph is an immutable view over one questionnaire's questions.
type Graph struct {
	questions map[string]*domain.Question
	parents   map[string][]Parent
	roots     *btree.BTreeG[*domain.Question]
}

func byOrder(a, b *domain.Question) bool {
	if a.Order != b.Order {
		return a.Order < b.Order
	}
	return a.ID < b.ID
}

// New builds a Graph. Questions without an ID are ignored; archived
// questions are kept so stale edges can still be diagnosed by Finalize.
func New(questions []domain.Question) *Graph {
	g := &Graph{
		questions: make(map[string]*domain.Question, len(questions)),
		parents:   make(map[string][]Parent),
		roots:     btree.NewBTreeG(byOrder),
	}
	for _, q := range questions {
		if q.ID == "" {
			continue
		}
		c := q.Clone()
		g.questions[c.ID] = &c
	}
	for _, q := range g.sorted() {
		for _, e := range q.Edges {
			g.parents[e.ChildQuestionID] = append(g.parents[e.ChildQuestionID], Parent{QuestionID: q.ID, OptionID: e.OptionID})
		}
	}
	for id, q := range g.questions {
		if _, isChild := g.parents[id]; !isChild && !q.Archived() {
			g.roots.Set(q)
		}
	}
	return g
}

// With returns a new Graph in which q replaces the question with the same ID
// (or is added when the ID is new).
func (g *Graph) With(q domain.Question) *Graph {
	all := make([]domain.Question, 0, len(g.questions)+1)
	for id, existing := range g.questions {
		if id != q.ID {
			all = append(all, *existing)
		}
	}
	return New(append(all, q))
}

func (g *Graph) sorted() []*domain.Question {
	out := make([]*domain.Question, 0, len(g.questions))
	for _, q := range g.questions {
		out = append(out, q)
	}
	slices.SortFunc(out, func(a, b *domain.Question) int {
		return cmp.Or(cmp.Compare(a.Order, b.Order), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// Len returns the number of questions in the graph.
func (g *Graph) Len() int { return len(g.questions) }

// Question returns a copy of the question with the given ID.
func (g *Graph) Question(id string) (domain.Question, bool) {
	q, ok := g.questions[id]
	if !ok {
		return domain.Question{}, false
	}
	return q.Clone(), true
}

// Questions returns every question sorted by order.
func (g *Graph) Questions() []domain.Question {
	out := make([]domain.Question, 0, len(g.questions))
	for _, q := range g.sorted() {
		out = append(out, q.Clone())
	}
	return out
}

// Roots returns the root sequence: every question that is nobody's
// conditional child, sorted by order.
func (g *Graph) Roots() []domain.Question {
	out := make([]domain.Question, 0, g.roots.Len())
	g.roots.Scan(func(q *domain.Question) bool {
		out = append(out, q.Clone())
		return true
	})
	return out
}

// RootIDs is Roots reduced to identifiers.
func (g *Graph) RootIDs() []string {
	ids := make([]string, 0, g.roots.Len())
	g.roots.Scan(func(q *domain.Question) bool {
		ids = append(ids, q.ID)
		return true
	})
	return ids
}

// IsRoot reports whether id is part of the root sequence.
func (g *Graph) IsRoot(id string) bool {
	q, ok := g.questions[id]
	if !ok {
		return false
	}
	_, found := g.roots.Get(q)
	return found
}

// Parent returns the first incoming edge of a conditional child.
func (g *Graph) Parent(id string) (Parent, bool) {
	ps := g.parents[id]
	if len(ps) == 0 {
		return Parent{}, false
	}
	return ps[0], true
}

// Parents returns every incoming edge of id.
func (g *Graph) Parents(id string) []Parent {
	return slices.Clone(g.parents[id])
}

// RootOf climbs parent links until it reaches a root question.
func (g *Graph) RootOf(id string) (string, bool) {
	seen := make(map[string]bool)
	for {
		if g.IsRoot(id) {
			return id, true
		}
		p, ok := g.Parent(id)
		if !ok || seen[id] {
			return "", false
		}
		seen[id] = true
		id = p.QuestionID
	}
}

// Children returns the child questions of one option bucket in local order.
// Edges pointing at unknown or temporary identifiers are skipped.
func (g *Graph) Children(questionID, optionID string) []domain.Question {
	q, ok := g.questions[questionID]
	if !ok {
		return nil
	}
	var out []domain.Question
	for _, e := range q.Bucket(optionID) {
		if child, ok := g.questions[e.ChildQuestionID]; ok && !child.Archived() {
			out = append(out, child.Clone())
		}
	}
	return out
}

// ChildrenForAnswer returns the children made visible by value, the current
// answer to questionID. With several selected options the buckets are
// concatenated in the order they first appear in the edge list, each bucket
// in its own local order.
func (g *Graph) ChildrenForAnswer(questionID string, value any) []domain.Question {
	q, ok := g.questions[questionID]
	if !ok || len(q.Edges) == 0 {
		return nil
	}
	selected := make(map[string]bool)
	for _, id := range domain.OptionIDs(value) {
		selected[id] = true
	}
	if len(selected) == 0 {
		return nil
	}
	var out []domain.Question
	seen := make(map[string]bool)
	buckets := make(map[string]bool)
	for _, e := range q.Edges {
		if !selected[e.OptionID] || buckets[e.OptionID] {
			continue
		}
		buckets[e.OptionID] = true
		for _, child := range g.Children(q.ID, e.OptionID) {
			if !seen[child.ID] {
				seen[child.ID] = true
				out = append(out, child)
			}
		}
	}
	return out
}

// Branch returns the visible descendants of questionID depth first: each
// child is followed by the children its own answer makes visible.
func (g *Graph) Branch(questionID string, answers domain.Answers) []domain.Question {
	var out []domain.Question
	visited := map[string]bool{questionID: true}
	var walk func(id string)
	walk = func(id string) {
		for _, child := range g.ChildrenForAnswer(id, answers[id]) {
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true
			out = append(out, child)
			walk(child.ID)
		}
	}
	walk(questionID)
	return out
}

// VisibleFlow is the full linear flow for the given answers: every root in
// order, each immediately followed by its visible branch.
func (g *Graph) VisibleFlow(answers domain.Answers) []domain.Question {
	var out []domain.Question
	for _, root := range g.Roots() {
		out = append(out, root)
		out = append(out, g.Branch(root.ID, answers)...)
	}
	return out
}

// Visible reports whether id is shown for the given answers.
func (g *Graph) Visible(id string, answers domain.Answers) bool {
	for _, q := range g.VisibleFlow(answers) {
		if q.ID == id {
			return true
		}
	}
	return false
}
