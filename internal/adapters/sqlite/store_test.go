package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/NicklasHM/P3-sleep-diary/internal/adapters/sqlite"
	"github.com/NicklasHM/P3-sleep-diary/internal/testutils"
	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/editor"
	"github.com/NicklasHM/P3-sleep-diary/pkg/ports"
	"github.com/NicklasHM/P3-sleep-diary/pkg/responses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), sqlite.DefaultFile))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	ports.RunQuestionStoreContract(t, openStore(t))
}

func TestSQLiteStore_ImplementsEdgeReplacer(t *testing.T) {
	var store ports.QuestionStore = openStore(t)
	_, ok := store.(ports.EdgeReplacer)
	assert.True(t, ok)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "diary", sqlite.DefaultFile)

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Seed(ctx, testutils.Morning, testutils.MorningQuestions()...))
	require.NoError(t, store.Close())

	store, err = sqlite.Open(path)
	require.NoError(t, err)
	defer store.Close()

	want := testutils.MorningQuestions()
	got, err := store.List(ctx, testutils.Morning.ID, domain.LocaleDanish, false)
	require.NoError(t, err)
	assert.Len(t, got, len(want))

	qn, err := store.FindQuestionnaire(ctx, domain.QuestionnaireMorning)
	require.NoError(t, err)
	assert.Equal(t, testutils.Morning, qn)

	for _, w := range want {
		q, err := store.Get(ctx, w.ID, domain.LocaleDanish, false)
		require.NoError(t, err)
		assert.Equal(t, w.Type, q.Type, w.ID)
		assert.Equal(t, w.Edges, q.Edges, w.ID)
		assert.Equal(t, w.MinValue, q.MinValue, w.ID)
		assert.Equal(t, len(w.Options), len(q.Options), w.ID)
	}
}

func TestSQLiteStore_SeedRejectsBrokenGraph(t *testing.T) {
	store := openStore(t)
	err := store.Seed(context.Background(), testutils.Evening,
		domain.Question{ID: "a", Type: domain.TypeSingleChoice, Text: "a",
			Options: []domain.Option{{ID: "x", Text: "x"}},
			Edges:   []domain.Edge{{OptionID: "x", ChildQuestionID: "missing", Order: 1}}},
	)
	assert.ErrorIs(t, err, domain.ErrDanglingEdge)
}

func TestSQLiteStore_Responses(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveResponse(ctx, domain.Response{ID: "r1", QuestionnaireID: "qn", RespondentID: "alice", CreatedAt: base,
		Answers: domain.Answers{"q1": "23:00", "q6": map[string]any{"optionId": "wake_yes"}}}))
	require.NoError(t, store.SaveResponse(ctx, domain.Response{ID: "r2", QuestionnaireID: "qn", RespondentID: "bob", CreatedAt: base.Add(500 * time.Millisecond)}))
	require.NoError(t, store.SaveResponse(ctx, domain.Response{ID: "r3", QuestionnaireID: "qn", RespondentID: "alice", CreatedAt: base.Add(24 * time.Hour)}))

	alice, err := store.ListResponses(ctx, "qn", "alice")
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, "r3", alice[0].ID)
	assert.Equal(t, "23:00", alice[1].Answers["q1"])
	assert.True(t, base.Equal(alice[1].CreatedAt))

	all, err := store.ListResponses(ctx, "qn", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"r3", "r2", "r1"}, []string{all[0].ID, all[1].ID, all[2].ID})
}

func TestSQLiteStore_ArchiveTimestamp(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	store, err := sqlite.Open(filepath.Join(t.TempDir(), sqlite.DefaultFile), sqlite.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	defer store.Close()

	q, err := store.Create(ctx, domain.Question{QuestionnaireID: "qn", Type: domain.TypeText, Text: "x"})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, q.ID))

	archived, err := store.Get(ctx, q.ID, domain.LocaleDanish, true)
	require.NoError(t, err)
	require.NotNil(t, archived.DeletedAt)
	assert.True(t, now.Equal(*archived.DeletedAt))
}

func TestSQLiteStore_OpenFailure(t *testing.T) {
	restore := sqlite.SetOpenDB(func(string, string) (*sql.DB, error) {
		return nil, errors.New("no driver")
	})
	defer restore()

	_, err := sqlite.Open(filepath.Join(t.TempDir(), sqlite.DefaultFile))
	assert.ErrorContains(t, err, "no driver")
}

func TestSQLiteStore_EditorCommitsAtomically(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	require.NoError(t, store.Seed(ctx, testutils.Morning, testutils.MorningQuestions()...))
	ed := editor.New(store)

	d, err := ed.Open(ctx, "q6")
	require.NoError(t, err)
	temp, err := d.CreateBranchQuestion("wake_yes", domain.Question{Text: "Hvad vækkede dig?", Type: domain.TypeText})
	require.NoError(t, err)

	final, err := ed.Commit(ctx, d)
	require.NoError(t, err)
	bucket := final.Bucket("wake_yes")
	require.Len(t, bucket, 3)
	assert.NotEqual(t, temp, bucket[2].ChildQuestionID)
	assert.False(t, domain.IsTempID(bucket[2].ChildQuestionID))

	child, err := store.Get(ctx, bucket[2].ChildQuestionID, domain.LocaleDanish, false)
	require.NoError(t, err)
	assert.Equal(t, domain.ChildOrder(final.Order, 3), child.Order)
}

func TestSQLiteStore_ServesResponses(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	require.NoError(t, store.Seed(ctx, testutils.Morning, testutils.MorningQuestions()...))
	svc := responses.New(store, store, store)

	resp, err := svc.Submit(ctx, testutils.Morning.ID, "alice", testutils.CompleteMorningAnswers())
	require.NoError(t, err)

	done, err := svc.CheckToday(ctx, testutils.Morning.ID, "alice")
	require.NoError(t, err)
	assert.True(t, done)

	_, err = svc.Submit(ctx, testutils.Morning.ID, "alice", testutils.CompleteMorningAnswers())
	assert.ErrorIs(t, err, domain.ErrResponseExists)

	stored, err := store.ListResponses(ctx, testutils.Morning.ID, "alice")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, resp.ID, stored[0].ID)
}
