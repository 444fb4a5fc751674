package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"testing"

	"github.com/NicklasHM/P3-sleep-diary/pkg/adapters/memory"
	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func snapshot() *domain.WizardSnapshot {
	return &domain.WizardSnapshot{
		SessionID:       "s-1",
		QuestionnaireID: "qn-morning",
		State:           domain.StatePresenting,
		CurrentID:       "q2",
		History:         []string{"q1", "q2"},
		Answers:         domain.Answers{"q1": "med_yes", "q2": "Læste om søvnløshed"},
	}
}

func secure(t *testing.T, cfg middleware.EncryptionConfig) middleware.Middleware {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewSessionStore()
	store := middleware.Chain(underlying, secure(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)}))

	original := snapshot()
	require.NoError(t, store.Save(ctx, "s-1", original))

	raw, err := underlying.Load(ctx, "s-1")
	require.NoError(t, err)
	assert.NotContains(t, raw.Answers, "q2")
	assert.Contains(t, raw.Answers, "__sealed__")
	assert.Equal(t, "q2", raw.CurrentID, "navigation stays readable")
	assert.Equal(t, "Læste om søvnløshed", original.Answers["q2"], "caller's snapshot is untouched")

	loaded, err := store.Load(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, original.Answers, loaded.Answers)
	assert.Equal(t, original.History, loaded.History)

	require.NoError(t, store.Delete(ctx, "s-1"))
	_, err = store.Load(ctx, "s-1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewSessionStore()
	oldKey, newKey := generateKey(t), generateKey(t)

	oldStore := secure(t, middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, oldStore.Save(ctx, "s-1", snapshot()))

	newStore := secure(t, middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)
	loaded, err := newStore.Load(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "med_yes", loaded.Answers["q1"])

	loaded.Answers["q1"] = "med_no"
	require.NoError(t, newStore.Save(ctx, "s-1", loaded))

	_, err = oldStore.Load(ctx, "s-1")
	assert.Error(t, err, "the old key alone cannot open a snapshot sealed with the new key")
}

func TestEncryptionMiddleware_RejectsPlainSnapshots(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewSessionStore()
	require.NoError(t, underlying.Save(ctx, "s-1", snapshot()))

	store := secure(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := store.Load(ctx, "s-1")
	assert.ErrorIs(t, err, middleware.ErrNotSealed)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.Error(t, err)
}

func TestParseKeys(t *testing.T) {
	a, b := generateKey(t), generateKey(t)
	cfg, err := middleware.ParseKeys(base64.StdEncoding.EncodeToString(a), base64.StdEncoding.EncodeToString(b))
	require.NoError(t, err)
	assert.Equal(t, a, cfg.ActiveKey)
	assert.Equal(t, [][]byte{b}, cfg.FallbackKeys)

	_, err = middleware.ParseKeys()
	assert.Error(t, err)
	_, err = middleware.ParseKeys("not base64!")
	assert.Error(t, err)
	_, err = middleware.ParseKeys(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}
