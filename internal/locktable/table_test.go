package locktable

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/conductor/internal/models"
	"github.com/harrison/conductor/internal/store"
)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s)
}

func TestAcquireReleaseRecordsLog(t *testing.T) {
	tbl := newTestTable(t)
	owner := uuid.New()
	planID := uuid.New()
	lockID := models.ExecutionPlanLockID(planID)
	lock := models.NewLock(lockID, owner, models.LockVariantExecution)

	res, err := tbl.Acquire(lock)
	require.NoError(t, err)
	assert.True(t, res.Acquired)

	released, err := tbl.Release(lockID, owner)
	require.NoError(t, err)
	assert.True(t, released)

	assert.Equal(t, []string{"lock " + lockID, "unlock " + lockID}, tbl.Log().Strings())
}

func TestAcquireHeldByOther(t *testing.T) {
	tbl := newTestTable(t)
	first := uuid.New()
	second := uuid.New()
	planID := uuid.New()
	lockID := models.ExecutionPlanLockID(planID)

	_, err := tbl.Acquire(models.NewLock(lockID, first, models.LockVariantExecution))
	require.NoError(t, err)

	res, err := tbl.Acquire(models.NewLock(lockID, second, models.LockVariantExecution))
	require.NoError(t, err)
	assert.False(t, res.Acquired)
	require.NotNil(t, res.HeldBy)
	assert.Equal(t, first, *res.HeldBy.OwnerWorldID)

	// only the successful acquire is logged
	assert.Equal(t, []string{"lock " + lockID}, tbl.Log().Strings())
}

func TestReleaseWrongOwnerIsConflict(t *testing.T) {
	tbl := newTestTable(t)
	owner := uuid.New()
	other := uuid.New()
	lockID := models.AutoExecuteLockID

	_, err := tbl.Acquire(models.NewLock(lockID, owner, models.LockVariantNone))
	require.NoError(t, err)

	_, err = tbl.Release(lockID, other)
	assert.True(t, models.IsConflict(err))
}

func TestReleaseAbsentLockIsNoop(t *testing.T) {
	tbl := newTestTable(t)
	released, err := tbl.Release("execution-plan:"+uuid.NewString(), uuid.New())
	require.NoError(t, err)
	assert.False(t, released)
	assert.Empty(t, tbl.Log().Strings())
}

func TestTransferSameID(t *testing.T) {
	tbl := newTestTable(t)
	from := uuid.New()
	to := uuid.New()
	planID := uuid.New()
	lockID := models.ExecutionPlanLockID(planID)

	_, err := tbl.Acquire(models.NewLock(lockID, from, models.LockVariantExecution))
	require.NoError(t, err)

	require.NoError(t, tbl.Transfer(lockID, lockID, from, to))

	found, err := tbl.Find(store.LockFilter{IDPrefix: lockID})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, to, *found[0].OwnerWorldID)
}

func TestTransferPlanningLockOwnerToExecutor(t *testing.T) {
	tbl := newTestTable(t)
	client := uuid.New()
	executor := uuid.New()
	planID := uuid.New()
	planningID := models.ExecutionPlanLockID(planID)
	executionID := models.ExecutionPlanLockID(planID)

	_, err := tbl.Acquire(models.NewLock(planningID, client, models.LockVariantPlanning))
	require.NoError(t, err)

	require.NoError(t, tbl.Transfer(planningID, executionID, client, executor))

	found, err := tbl.Find(store.LockFilter{IDPrefix: executionID})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, executor, *found[0].OwnerWorldID)
}

func TestFindByClassAndOwner(t *testing.T) {
	tbl := newTestTable(t)
	owner := uuid.New()
	planID := uuid.New()

	_, err := tbl.Acquire(models.NewLock(models.ExecutionPlanLockID(planID), owner, models.LockVariantExecution))
	require.NoError(t, err)
	_, err = tbl.Acquire(models.NewLock(models.AutoExecuteLockID, owner, models.LockVariantNone))
	require.NoError(t, err)

	found, err := tbl.Find(store.LockFilter{Class: models.LockClassExecutionPlan})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, models.LockClassExecutionPlan, found[0].Class)

	found, err = tbl.Find(store.LockFilter{Owner: &owner})
	require.NoError(t, err)
	assert.Len(t, found, 2)
}
