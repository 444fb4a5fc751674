package ports

import (
	"context"
	"testing"
	"time"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractQuestion(qnID string, order int, typ domain.QuestionType, options ...string) domain.Question {
	q := domain.Question{
		QuestionnaireID: qnID,
		Order:           order,
		Type:            typ,
		Text:            "spørgsmål",
		Translations:    map[domain.Locale]string{domain.LocaleEnglish: "question"},
	}
	for _, o := range options {
		q.Options = append(q.Options, domain.Option{ID: o, Text: o})
	}
	return q
}

// RunQuestionStoreContract runs a suite of tests to verify that a
// QuestionStore implementation adheres to the interface contract.
func RunQuestionStoreContract(t *testing.T, store QuestionStore) {
	ctx := context.Background()
	qnID := "contract-qn-" + time.Now().Format("20060102150405.000000000")

	mustCreate := func(t *testing.T, q domain.Question) domain.Question {
		t.Helper()
		created, err := store.Create(ctx, q)
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)
		return created
	}

	t.Run("Create assigns identifiers and ignores edges", func(t *testing.T) {
		q := contractQuestion(qnID, 1, domain.TypeSingleChoice, "a")
		q.ID = "caller-chosen"
		q.Edges = []domain.Edge{{OptionID: "a", ChildQuestionID: "x", Order: 1}}

		created := mustCreate(t, q)
		assert.NotEqual(t, "caller-chosen", created.ID)
		assert.False(t, domain.IsTempID(created.ID))
		assert.Empty(t, created.Edges)

		loaded, err := store.Get(ctx, created.ID, domain.LocaleDanish, false)
		require.NoError(t, err)
		assert.Equal(t, created.ID, loaded.ID)
		assert.Equal(t, qnID, loaded.QuestionnaireID)
	})

	t.Run("Get resolves locale", func(t *testing.T) {
		created := mustCreate(t, contractQuestion(qnID, 2, domain.TypeText))

		en, err := store.Get(ctx, created.ID, domain.LocaleEnglish, false)
		require.NoError(t, err)
		assert.Equal(t, "question", en.Text)

		da, err := store.Get(ctx, created.ID, domain.LocaleDanish, false)
		require.NoError(t, err)
		assert.Equal(t, "spørgsmål", da.Text)
	})

	t.Run("Get unknown", func(t *testing.T) {
		_, err := store.Get(ctx, "missing-"+qnID, domain.LocaleDanish, true)
		assert.ErrorIs(t, err, domain.ErrQuestionNotFound)
	})

	t.Run("Edges keep dense bucket order and child order", func(t *testing.T) {
		parent := mustCreate(t, contractQuestion(qnID, 5, domain.TypeSingleChoice, "yes", "no"))
		c1 := mustCreate(t, contractQuestion(qnID, 0, domain.TypeText))
		c2 := mustCreate(t, contractQuestion(qnID, 0, domain.TypeText))
		c3 := mustCreate(t, contractQuestion(qnID, 0, domain.TypeText))

		_, err := store.AddEdge(ctx, parent.ID, "yes", c1.ID)
		require.NoError(t, err)
		_, err = store.AddEdge(ctx, parent.ID, "yes", c2.ID)
		require.NoError(t, err)
		updated, err := store.AddEdge(ctx, parent.ID, "no", c3.ID)
		require.NoError(t, err)

		assert.Equal(t, []domain.Edge{
			{OptionID: "yes", ChildQuestionID: c1.ID, Order: 1},
			{OptionID: "yes", ChildQuestionID: c2.ID, Order: 2},
		}, updated.Bucket("yes"))
		assert.Equal(t, 1, updated.Bucket("no")[0].Order)

		child, err := store.Get(ctx, c2.ID, domain.LocaleDanish, false)
		require.NoError(t, err)
		assert.Equal(t, 502, child.Order)

		_, err = store.AddEdge(ctx, parent.ID, "yes", c1.ID)
		assert.ErrorIs(t, err, domain.ErrEdgeExists)

		reordered, err := store.ReorderEdges(ctx, parent.ID, "yes", []string{c2.ID, c1.ID})
		require.NoError(t, err)
		assert.Equal(t, []domain.Edge{
			{OptionID: "yes", ChildQuestionID: c2.ID, Order: 1},
			{OptionID: "yes", ChildQuestionID: c1.ID, Order: 2},
		}, reordered.Bucket("yes"))

		_, err = store.ReorderEdges(ctx, parent.ID, "yes", []string{c2.ID})
		assert.Error(t, err, "reorder must be a permutation")

		removed, err := store.RemoveEdge(ctx, parent.ID, "yes", c2.ID)
		require.NoError(t, err)
		assert.Equal(t, []domain.Edge{{OptionID: "yes", ChildQuestionID: c1.ID, Order: 1}}, removed.Bucket("yes"))

		_, err = store.RemoveEdge(ctx, parent.ID, "yes", c2.ID)
		assert.ErrorIs(t, err, domain.ErrEdgeNotFound)
	})

	t.Run("AddEdge rejects bad references", func(t *testing.T) {
		parent := mustCreate(t, contractQuestion(qnID, 6, domain.TypeSingleChoice, "a"))
		child := mustCreate(t, contractQuestion(qnID, 0, domain.TypeSingleChoice, "b"))

		_, err := store.AddEdge(ctx, parent.ID, "a", domain.NewTempID())
		assert.ErrorIs(t, err, domain.ErrTempIDRejected)

		_, err = store.AddEdge(ctx, parent.ID, "missing", child.ID)
		assert.ErrorIs(t, err, domain.ErrOptionNotFound)

		_, err = store.AddEdge(ctx, parent.ID, "a", "missing-"+qnID)
		assert.ErrorIs(t, err, domain.ErrQuestionNotFound)

		_, err = store.AddEdge(ctx, parent.ID, "a", child.ID)
		require.NoError(t, err)
		_, err = store.AddEdge(ctx, child.ID, "b", parent.ID)
		assert.ErrorIs(t, err, domain.ErrCycle)
	})

	t.Run("Update cascades removed options", func(t *testing.T) {
		parent := mustCreate(t, contractQuestion(qnID, 7, domain.TypeSingleChoice, "keep", "drop"))
		c1 := mustCreate(t, contractQuestion(qnID, 0, domain.TypeText))
		c2 := mustCreate(t, contractQuestion(qnID, 0, domain.TypeText))
		_, err := store.AddEdge(ctx, parent.ID, "keep", c1.ID)
		require.NoError(t, err)
		_, err = store.AddEdge(ctx, parent.ID, "drop", c2.ID)
		require.NoError(t, err)

		edit := parent.Clone()
		edit.Text = "changed"
		edit.Options = edit.Options[:1]
		updated, err := store.Update(ctx, parent.ID, edit)
		require.NoError(t, err)
		assert.Equal(t, "changed", updated.Text)
		assert.Equal(t, []domain.Edge{{OptionID: "keep", ChildQuestionID: c1.ID, Order: 1}}, updated.Edges)
	})

	t.Run("Locked questions refuse update and delete", func(t *testing.T) {
		q := contractQuestion(qnID, 8, domain.TypeText)
		q.Locked = true
		locked := mustCreate(t, q)

		_, err := store.Update(ctx, locked.ID, locked)
		assert.ErrorIs(t, err, domain.ErrQuestionLocked)
		assert.ErrorIs(t, store.Delete(ctx, locked.ID), domain.ErrQuestionLocked)
	})

	t.Run("Delete archives and detaches", func(t *testing.T) {
		parent := mustCreate(t, contractQuestion(qnID, 9, domain.TypeSingleChoice, "a"))
		child := mustCreate(t, contractQuestion(qnID, 0, domain.TypeText))
		_, err := store.AddEdge(ctx, parent.ID, "a", child.ID)
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, child.ID))

		_, err = store.Get(ctx, child.ID, domain.LocaleDanish, false)
		assert.ErrorIs(t, err, domain.ErrQuestionNotFound)
		archived, err := store.Get(ctx, child.ID, domain.LocaleDanish, true)
		require.NoError(t, err)
		assert.True(t, archived.Archived())

		p, err := store.Get(ctx, parent.ID, domain.LocaleDanish, false)
		require.NoError(t, err)
		assert.Empty(t, p.Edges)

		live, err := store.List(ctx, qnID, domain.LocaleDanish, false)
		require.NoError(t, err)
		all, err := store.List(ctx, qnID, domain.LocaleDanish, true)
		require.NoError(t, err)
		assert.Equal(t, len(live)+1, len(all))
		for i := 1; i < len(live); i++ {
			assert.LessOrEqual(t, live[i-1].Order, live[i].Order)
		}
	})

	if replacer, ok := store.(EdgeReplacer); ok {
		t.Run("ReplaceEdges", func(t *testing.T) {
			parent := mustCreate(t, contractQuestion(qnID, 10, domain.TypeSingleChoice, "a", "b"))
			c1 := mustCreate(t, contractQuestion(qnID, 0, domain.TypeText))
			c2 := mustCreate(t, contractQuestion(qnID, 0, domain.TypeText))
			_, err := store.AddEdge(ctx, parent.ID, "a", c1.ID)
			require.NoError(t, err)

			replaced, err := replacer.ReplaceEdges(ctx, parent.ID, []domain.Edge{
				{OptionID: "b", ChildQuestionID: c2.ID},
				{OptionID: "b", ChildQuestionID: c1.ID},
			})
			require.NoError(t, err)
			assert.Equal(t, []domain.Edge{
				{OptionID: "b", ChildQuestionID: c2.ID, Order: 1},
				{OptionID: "b", ChildQuestionID: c1.ID, Order: 2},
			}, replaced.Edges)

			_, err = replacer.ReplaceEdges(ctx, parent.ID, []domain.Edge{{OptionID: "a", ChildQuestionID: domain.NewTempID()}})
			assert.ErrorIs(t, err, domain.ErrTempIDRejected)
			unchanged, err := store.Get(ctx, parent.ID, domain.LocaleDanish, false)
			require.NoError(t, err)
			assert.Len(t, unchanged.Edges, 2, "failed replacement must not change the edges")
		})
	}
}

func contractSnapshot(id string) *domain.WizardSnapshot {
	return &domain.WizardSnapshot{
		SessionID:       id,
		QuestionnaireID: "qn",
		Locale:          domain.LocaleDanish,
		State:           domain.StatePresenting,
		CurrentID:       "q3",
		Answers:         domain.Answers{"q1": "med_no", "q3": "23:00"},
		History:         []string{"q1", "q2", "q3"},
	}
}

// RunSessionStoreContract verifies a SessionStore implementation.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		snap := contractSnapshot(sessionID)
		require.NoError(t, store.Save(ctx, sessionID, snap))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, snap.CurrentID, loaded.CurrentID)
		assert.Equal(t, snap.History, loaded.History)
		assert.Equal(t, "23:00", loaded.Answers["q3"])

		// the stored copy is isolated from later mutation
		snap.History = append(snap.History, "q4")
		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Len(t, again.History, 3)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sessionID, contractSnapshot(sessionID)))
		require.NoError(t, store.Delete(ctx, sessionID))

		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, id1, contractSnapshot(id1)))
		require.NoError(t, store.Save(ctx, id2, contractSnapshot(id2)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
