package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/NicklasHM/P3-sleep-diary/internal/testutils"
	"github.com/NicklasHM/P3-sleep-diary/pkg/adapters/memory"
	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunQuestionStoreContract(t, memory.NewStore())
}

func TestMemorySessionStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, memory.NewSessionStore())
}

func TestMemoryStore_DoesNotReplaceEdges(t *testing.T) {
	// the editor's remove-then-add fallback is exercised through this store
	var store ports.QuestionStore = memory.NewStore()
	_, ok := store.(ports.EdgeReplacer)
	assert.False(t, ok)
}

func TestMemoryStore_Questionnaires(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	require.NoError(t, store.PutQuestionnaire(ctx, testutils.Morning))
	require.NoError(t, store.PutQuestionnaire(ctx, testutils.Evening))

	qn, err := store.FindQuestionnaire(ctx, domain.QuestionnaireEvening)
	require.NoError(t, err)
	assert.Equal(t, testutils.Evening.ID, qn.ID)

	_, err = store.GetQuestionnaire(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrQuestionnaireNotFound)

	assert.Error(t, store.PutQuestionnaire(ctx, domain.Questionnaire{}))
}

func TestMemoryStore_Responses(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveResponse(ctx, domain.Response{ID: "r1", QuestionnaireID: "qn", RespondentID: "alice", CreatedAt: base}))
	require.NoError(t, store.SaveResponse(ctx, domain.Response{ID: "r2", QuestionnaireID: "qn", RespondentID: "bob", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, store.SaveResponse(ctx, domain.Response{ID: "r3", QuestionnaireID: "qn", RespondentID: "alice", CreatedAt: base.Add(24 * time.Hour)}))
	require.NoError(t, store.SaveResponse(ctx, domain.Response{ID: "r4", QuestionnaireID: "other", RespondentID: "alice", CreatedAt: base}))

	alice, err := store.ListResponses(ctx, "qn", "alice")
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, "r3", alice[0].ID)
	assert.Equal(t, "r1", alice[1].ID)

	all, err := store.ListResponses(ctx, "qn", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
