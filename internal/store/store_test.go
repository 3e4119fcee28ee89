package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/conductor/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWorldLifecycle(t *testing.T) {
	s := newTestStore(t)
	w := models.World{ID: uuid.New(), Kind: models.WorldKindExecutor, Meta: map[string]string{"host": "a"}, LastSeen: time.Now()}

	require.NoError(t, s.RegisterWorld(w))

	loaded, err := s.LoadWorld(w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.Kind, loaded.Kind)
	assert.Equal(t, "a", loaded.Meta["host"])

	later := w.LastSeen.Add(time.Second)
	require.NoError(t, s.Heartbeat(w.ID, later))
	loaded, err = s.LoadWorld(w.ID)
	require.NoError(t, err)
	assert.True(t, loaded.LastSeen.Equal(later))

	require.NoError(t, s.DeregisterWorld(w.ID))
	_, err = s.LoadWorld(w.ID)
	assert.True(t, models.IsNotFound(err))
}

func TestHeartbeatMissingWorldIsNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.Heartbeat(uuid.New(), time.Now())
	assert.True(t, models.IsNotFound(err))
}

func TestFindWorldsFilters(t *testing.T) {
	s := newTestStore(t)
	client := models.World{ID: uuid.New(), Kind: models.WorldKindClient, LastSeen: time.Now()}
	executor := models.World{ID: uuid.New(), Kind: models.WorldKindExecutor, LastSeen: time.Now()}
	require.NoError(t, s.RegisterWorld(client))
	require.NoError(t, s.RegisterWorld(executor))

	found, err := s.FindWorlds(WorldFilter{Kind: models.WorldKindExecutor})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, executor.ID, found[0].ID)
}

func TestPlanOptimisticConcurrency(t *testing.T) {
	s := newTestStore(t)
	plan := models.ExecutionPlan{
		ID:             uuid.New(),
		State:          models.PlanStatePlanning,
		Result:         models.PlanResultPending,
		PlannerWorldID: uuid.New(),
		RescueStrategy: models.RescueDefault,
		Steps:          []models.Step{{ID: "1", State: models.StepStatePending}},
	}

	saved, err := s.SavePlan(plan)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)

	saved.State = models.PlanStatePlanned
	saved, err = s.SavePlan(saved)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)

	stale := saved
	stale.Version = 1
	_, err = s.SavePlan(stale)
	assert.True(t, models.IsConflict(err))
}

func TestLoadPlanNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadPlan(uuid.New())
	assert.True(t, models.IsNotFound(err))
}

func TestStepCRUD(t *testing.T) {
	s := newTestStore(t)
	plan := models.ExecutionPlan{
		ID:             uuid.New(),
		State:          models.PlanStatePlanned,
		Result:         models.PlanResultPending,
		PlannerWorldID: uuid.New(),
		RescueStrategy: models.RescueDefault,
		Steps:          []models.Step{{ID: "a", State: models.StepStatePending}},
	}
	_, err := s.SavePlan(plan)
	require.NoError(t, err)

	step, err := s.LoadStep(plan.ID, "a")
	require.NoError(t, err)
	assert.Equal(t, models.StepStatePending, step.State)

	step.State = models.StepStateRunning
	require.NoError(t, s.SaveStep(plan.ID, step))

	step, err = s.LoadStep(plan.ID, "a")
	require.NoError(t, err)
	assert.Equal(t, models.StepStateRunning, step.State)
}

func TestHistoryMonotonic(t *testing.T) {
	s := newTestStore(t)
	plan := models.ExecutionPlan{ID: uuid.New(), State: models.PlanStateRunning, Result: models.PlanResultPending, PlannerWorldID: uuid.New(), RescueStrategy: models.RescueDefault}
	_, err := s.SavePlan(plan)
	require.NoError(t, err)

	now := time.Now()
	world := uuid.New()
	require.NoError(t, s.AppendHistory(plan.ID, models.EventStartExecution, world, now))
	require.NoError(t, s.AppendHistory(plan.ID, models.EventTerminateExecution, world, now)) // same timestamp

	loaded, err := s.LoadPlan(plan.ID)
	require.NoError(t, err)
	require.Len(t, loaded.History, 2)
	assert.False(t, loaded.History[1].Timestamp.Before(loaded.History[0].Timestamp))
}

func TestLockAcquireReleaseFindLocks(t *testing.T) {
	s := newTestStore(t)
	owner := uuid.New()
	planID := uuid.New()
	lock := models.NewLock(models.ExecutionPlanLockID(planID), owner, models.LockVariantExecution)

	held, err := s.AcquireLock(lock)
	require.NoError(t, err)
	assert.Nil(t, held)

	other := uuid.New()
	conflictLock := models.NewLock(models.ExecutionPlanLockID(planID), other, models.LockVariantExecution)
	held, err = s.AcquireLock(conflictLock)
	require.NoError(t, err)
	require.NotNil(t, held)
	assert.Equal(t, owner, *held.OwnerWorldID)

	released, err := s.ReleaseLock(lock.ID, other)
	require.Error(t, err)
	assert.False(t, released)

	released, err = s.ReleaseLock(lock.ID, owner)
	require.NoError(t, err)
	assert.True(t, released)

	found, err := s.FindLocks(LockFilter{IDPrefix: "execution-plan:"})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestTransferLockOwner(t *testing.T) {
	s := newTestStore(t)
	planID := uuid.New()
	from := uuid.New()
	to := uuid.New()
	lock := models.NewLock(models.ExecutionPlanLockID(planID), from, models.LockVariantExecution)
	_, err := s.AcquireLock(lock)
	require.NoError(t, err)

	require.NoError(t, s.TransferLockOwner(lock.ID, from, to))

	found, err := s.FindLocks(LockFilter{IDPrefix: models.ExecutionPlanLockID(planID)})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, to, *found[0].OwnerWorldID)

	err = s.TransferLockOwner(lock.ID, from, to)
	assert.True(t, models.IsConflict(err))
}

func TestFindPlansByState(t *testing.T) {
	s := newTestStore(t)
	planned := models.ExecutionPlan{ID: uuid.New(), State: models.PlanStatePlanned, Result: models.PlanResultPending, PlannerWorldID: uuid.New(), RescueStrategy: models.RescueDefault}
	running := models.ExecutionPlan{ID: uuid.New(), State: models.PlanStateRunning, Result: models.PlanResultPending, PlannerWorldID: uuid.New(), RescueStrategy: models.RescueDefault}
	_, err := s.SavePlan(planned)
	require.NoError(t, err)
	_, err = s.SavePlan(running)
	require.NoError(t, err)

	found, err := s.FindPlans(PlanFilter{State: models.PlanStatePlanned})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, planned.ID, found[0].ID)
}

func TestDeletePlans(t *testing.T) {
	s := newTestStore(t)
	plan := models.ExecutionPlan{ID: uuid.New(), State: models.PlanStateStopped, Result: models.PlanResultSuccess, PlannerWorldID: uuid.New(), RescueStrategy: models.RescueDefault}
	_, err := s.SavePlan(plan)
	require.NoError(t, err)

	require.NoError(t, s.DeletePlans(PlanFilter{State: models.PlanStateStopped}))

	_, err = s.LoadPlan(plan.ID)
	assert.True(t, models.IsNotFound(err))
}
