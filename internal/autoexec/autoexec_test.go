package autoexec

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/conductor/internal/locktable"
	"github.com/harrison/conductor/internal/models"
	"github.com/harrison/conductor/internal/store"
)

func newTestSweeper(t *testing.T) (*Sweeper, *store.Store, *locktable.Table, uuid.UUID) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	lt := locktable.New(s)
	self := uuid.New()
	return New(s, lt, nil, self), s, lt, self
}

func TestRun_ResumesPlannedPlanWithNoLock(t *testing.T) {
	sweeper, s, lt, self := newTestSweeper(t)
	plan := models.ExecutionPlan{ID: uuid.New(), State: models.PlanStatePlanned, Result: models.PlanResultPending, PlannerWorldID: uuid.New(), RescueStrategy: models.RescueDefault}
	_, err := s.SavePlan(plan)
	require.NoError(t, err)

	resumed, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, resumed, 1)
	assert.Equal(t, plan.ID, resumed[0].PlanID)

	found, err := lt.Find(store.LockFilter{IDPrefix: models.ExecutionPlanLockID(plan.ID)})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, self, *found[0].OwnerWorldID)
}

func TestRun_SkipsPausedWithErrorResult(t *testing.T) {
	sweeper, s, _, _ := newTestSweeper(t)
	plan := models.ExecutionPlan{ID: uuid.New(), State: models.PlanStatePaused, Result: models.PlanResultError, PlannerWorldID: uuid.New(), RescueStrategy: models.RescueDefault}
	_, err := s.SavePlan(plan)
	require.NoError(t, err)

	resumed, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, resumed)
}

func TestRun_ResumesPausedPlanWithoutErrorResult(t *testing.T) {
	sweeper, s, lt, self := newTestSweeper(t)
	plan := models.ExecutionPlan{ID: uuid.New(), State: models.PlanStatePaused, Result: models.PlanResultPending, PlannerWorldID: uuid.New(), RescueStrategy: models.RescueDefault}
	_, err := s.SavePlan(plan)
	require.NoError(t, err)

	resumed, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, resumed, 1)
	assert.Equal(t, plan.ID, resumed[0].PlanID)

	found, err := lt.Find(store.LockFilter{IDPrefix: models.ExecutionPlanLockID(plan.ID)})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, self, *found[0].OwnerWorldID)
}

func TestRun_SkipsRunningPlanWithExistingExecutionLock(t *testing.T) {
	sweeper, s, lt, _ := newTestSweeper(t)
	plan := models.ExecutionPlan{ID: uuid.New(), State: models.PlanStateRunning, Result: models.PlanResultPending, PlannerWorldID: uuid.New(), RescueStrategy: models.RescueDefault}
	_, err := s.SavePlan(plan)
	require.NoError(t, err)

	owner := uuid.New()
	_, err = lt.Acquire(models.NewLock(models.ExecutionPlanLockID(plan.ID), owner, models.LockVariantExecution))
	require.NoError(t, err)

	resumed, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, resumed)

	found, err := lt.Find(store.LockFilter{IDPrefix: models.ExecutionPlanLockID(plan.ID)})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, owner, *found[0].OwnerWorldID)
}

func TestRun_NoopWhenAlreadyHeld(t *testing.T) {
	sweeper, _, lt, _ := newTestSweeper(t)
	otherSweeper := uuid.New()
	_, err := lt.Acquire(models.NewLock(models.AutoExecuteLockID, otherSweeper, models.LockVariantNone))
	require.NoError(t, err)

	resumed, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, resumed)
}

func TestRun_ReleasesLockAfterDispatch(t *testing.T) {
	sweeper, _, lt, _ := newTestSweeper(t)
	resumed, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, resumed)

	found, err := lt.Find(store.LockFilter{IDPrefix: models.AutoExecuteLockID})
	require.NoError(t, err)
	assert.Empty(t, found)
}
