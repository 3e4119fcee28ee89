package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition_ValidDAG(t *testing.T) {
	cases := []struct {
		from, to PlanState
		want     bool
	}{
		{PlanStatePlanning, PlanStatePlanned, true},
		{PlanStatePlanning, PlanStateStopped, true},
		{PlanStatePlanned, PlanStateRunning, true},
		{PlanStateRunning, PlanStateStopped, true},
		{PlanStateRunning, PlanStatePaused, true},
		{PlanStateRunning, PlanStateRunning, true},
		{PlanStatePaused, PlanStateRunning, true},
		{PlanStateStopped, PlanStateRunning, false},
		{PlanStateStopped, PlanStatePaused, false},
		{PlanStatePlanning, PlanStateRunning, false},
		{PlanStatePaused, PlanStateStopped, false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(PlanStateStopped))
	assert.False(t, IsTerminal(PlanStatePaused))
	assert.False(t, IsTerminal(PlanStateRunning))
}

func TestWorldIsStale(t *testing.T) {
	now := time.Now()
	w := World{LastSeen: now.Add(-300 * time.Millisecond)}
	assert.True(t, w.IsStale(now, 200*time.Millisecond))
	assert.False(t, w.IsStale(now, 400*time.Millisecond))
}

func TestLockIDRoundTrip(t *testing.T) {
	planID := uuid.New()
	id := ExecutionPlanLockID(planID)
	class, payload := ClassifyLockID(id)
	assert.Equal(t, LockClassExecutionPlan, class)
	assert.Equal(t, planID.String(), payload)

	lock := NewLock(id, uuid.New(), LockVariantExecution)
	assert.Equal(t, LockClassExecutionPlan, lock.Class)
	if assert.NotNil(t, lock.PlanID) {
		assert.Equal(t, planID, *lock.PlanID)
	}
}

func TestSingletonActionLockCarriesPlanIDSeparately(t *testing.T) {
	id := SingletonActionLockID("SendWelcomeEmail")
	lock := NewLock(id, uuid.New(), LockVariantNone)
	assert.Equal(t, LockClassSingletonAction, lock.Class)
	assert.Equal(t, "SendWelcomeEmail", lock.ClassName)
	assert.Nil(t, lock.PlanID)

	planID := uuid.New()
	lock = lock.WithPlanID(planID)
	if assert.NotNil(t, lock.PlanID) {
		assert.Equal(t, planID, *lock.PlanID)
	}
}

func TestAnyStepNotPending(t *testing.T) {
	p := &ExecutionPlan{Steps: []Step{{ID: "1", State: StepStatePending}}}
	assert.False(t, p.AnyStepNotPending())

	p.Steps = append(p.Steps, Step{ID: "2", State: StepStateRunning})
	assert.True(t, p.AnyStepNotPending())
}

func TestStepByID(t *testing.T) {
	p := &ExecutionPlan{Steps: []Step{{ID: "a"}, {ID: "b"}}}
	assert.Equal(t, "b", p.StepByID("b").ID)
	assert.Nil(t, p.StepByID("missing"))
}

func TestErrorWrapping(t *testing.T) {
	err := NotFoundf("plan %s", "abc")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsConflict(err))
	assert.Contains(t, err.Error(), "plan abc")
}
