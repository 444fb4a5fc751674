package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NicklasHM/P3-sleep-diary/pkg/adapters/memory"
	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/ports"
	"github.com/NicklasHM/P3-sleep-diary/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowStore simulates latency to provoke race conditions if locking is missing.
type slowStore struct {
	*memory.SessionStore
}

func (s slowStore) Load(ctx context.Context, sessionID string) (*domain.WizardSnapshot, error) {
	time.Sleep(2 * time.Millisecond)
	return s.SessionStore.Load(ctx, sessionID)
}

func TestManager_UpdateSerializes(t *testing.T) {
	mgr := session.NewManager(slowStore{memory.NewSessionStore()})
	ctx := context.Background()
	id := "race-test"
	require.NoError(t, mgr.Save(ctx, id, &domain.WizardSnapshot{SessionID: id, Answers: domain.Answers{}}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Update(ctx, id, func(s *domain.WizardSnapshot) error {
				s.History = append(s.History, "q")
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap, err := mgr.Load(ctx, id)
	require.NoError(t, err)
	assert.Len(t, snap.History, 20, "no update may be lost")
	assert.False(t, snap.UpdatedAt.IsZero())
}

func TestManager_UpdateFailureDoesNotSave(t *testing.T) {
	mgr := session.NewManager(memory.NewSessionStore())
	ctx := context.Background()
	require.NoError(t, mgr.Save(ctx, "s", &domain.WizardSnapshot{CurrentID: "q1"}))

	boom := errors.New("boom")
	_, err := mgr.Update(ctx, "s", func(s *domain.WizardSnapshot) error {
		s.CurrentID = "q2"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	snap, err := mgr.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "q1", snap.CurrentID)

	_, err = mgr.Update(ctx, "missing", func(*domain.WizardSnapshot) error { return nil })
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

type countingLocker struct {
	locks, unlocks atomic.Int32
	fail           error
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	if l.fail != nil {
		return nil, l.fail
	}
	l.locks.Add(1)
	return func(context.Context) error {
		l.unlocks.Add(1)
		return errors.New("already expired")
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &countingLocker{}
	mgr := session.NewManager(memory.NewSessionStore(), session.WithLocker(locker), session.WithLockTTL(time.Second))
	ctx := context.Background()

	require.NoError(t, mgr.Save(ctx, "s", &domain.WizardSnapshot{}))
	assert.Equal(t, int32(1), locker.locks.Load())
	assert.Equal(t, int32(1), locker.unlocks.Load(), "unlock errors are logged, not returned")

	locker.fail = errors.New("redis down")
	err := mgr.WithLock(ctx, "s", func(context.Context) error {
		t.Fatal("must not run without the lock")
		return nil
	})
	assert.ErrorContains(t, err, "redis down")
}
