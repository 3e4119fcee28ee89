package registry

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/conductor/internal/models"
	"github.com/harrison/conductor/internal/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s)
}

func TestRegisterHeartbeatDeregister(t *testing.T) {
	r := newTestRegistry(t)
	w := models.World{ID: uuid.New(), Kind: models.WorldKindClient, LastSeen: time.Now()}

	require.NoError(t, r.Register(w))
	loaded, err := r.Load(w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.Kind, loaded.Kind)

	later := time.Now().Add(time.Minute)
	require.NoError(t, r.Heartbeat(w.ID, later))
	loaded, err = r.Load(w.ID)
	require.NoError(t, err)
	assert.True(t, loaded.LastSeen.Equal(later))

	require.NoError(t, r.Deregister(w.ID))
	_, err = r.Load(w.ID)
	assert.True(t, models.IsNotFound(err))
}

func TestFindStale(t *testing.T) {
	r := newTestRegistry(t)
	now := time.Now()
	fresh := models.World{ID: uuid.New(), Kind: models.WorldKindExecutor, LastSeen: now}
	stale := models.World{ID: uuid.New(), Kind: models.WorldKindExecutor, LastSeen: now.Add(-time.Hour)}
	require.NoError(t, r.Register(fresh))
	require.NoError(t, r.Register(stale))

	found, err := r.FindStale(now, time.Second)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, stale.ID, found[0].ID)
}

func TestIsAliveAbsentWorld(t *testing.T) {
	r := newTestRegistry(t)
	alive, err := r.IsAlive(uuid.New(), time.Now(), time.Second)
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestFindLiveExecutorExcludesTarget(t *testing.T) {
	r := newTestRegistry(t)
	now := time.Now()
	target := models.World{ID: uuid.New(), Kind: models.WorldKindExecutor, LastSeen: now}
	other := models.World{ID: uuid.New(), Kind: models.WorldKindExecutor, LastSeen: now}
	require.NoError(t, r.Register(target))
	require.NoError(t, r.Register(other))

	found, err := r.FindLiveExecutor(now, time.Second, target.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, other.ID, found.ID)
}

func TestFindLiveExecutorNoneAlive(t *testing.T) {
	r := newTestRegistry(t)
	now := time.Now()
	stale := models.World{ID: uuid.New(), Kind: models.WorldKindExecutor, LastSeen: now.Add(-time.Hour)}
	require.NoError(t, r.Register(stale))

	found, err := r.FindLiveExecutor(now, time.Second, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, found)
}
