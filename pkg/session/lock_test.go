package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/stretchr/testify/assert"
)

type nopStore struct{}

func (nopStore) Save(ctx context.Context, sessionID string, snap *domain.WizardSnapshot) error {
	return nil
}
func (nopStore) Load(ctx context.Context, sessionID string) (*domain.WizardSnapshot, error) {
	return &domain.WizardSnapshot{SessionID: sessionID}, nil
}
func (nopStore) Delete(ctx context.Context, sessionID string) error { return nil }
func (nopStore) List(ctx context.Context) ([]string, error)         { return nil, nil }

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(nopStore{})
	ctx := context.Background()

	for i := 0; i < 10000; i++ {
		sid := fmt.Sprintf("session-%d", i)
		_ = mgr.Save(ctx, sid, &domain.WizardSnapshot{})
		_ = mgr.Delete(ctx, sid)
	}

	assert.Empty(t, mgr.locks, "lock entries must be released once unused")
}

func TestManager_LockOnlyMode(t *testing.T) {
	mgr := NewManager(nil)
	ctx := context.Background()

	called := false
	err := mgr.WithLock(ctx, "question:q1", func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)

	_, err = mgr.Load(ctx, "s1")
	assert.ErrorIs(t, err, errNoStore)
	assert.Empty(t, mgr.locks)
}
