package report

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/conductor/internal/models"
)

func TestRenderMarkdown_EmptySnapshot(t *testing.T) {
	out := RenderMarkdown(ClusterSnapshot{Generated: time.Now(), Timeout: time.Second})
	assert.Contains(t, out, "# Cluster status")
	assert.Contains(t, out, "_none registered_")
	assert.Contains(t, out, "_none held_")
	assert.Contains(t, out, "_none_")
}

func TestRenderMarkdown_ListsWorldsLocksAndPlans(t *testing.T) {
	now := time.Now()
	worldID := uuid.New()
	planID := uuid.New()

	snap := ClusterSnapshot{
		Generated: now,
		Timeout:   time.Second,
		Worlds:    []models.World{{ID: worldID, Kind: models.WorldKindExecutor, LastSeen: now}},
		Locks:     []models.Lock{models.NewLock(models.ExecutionPlanLockID(planID), worldID, models.LockVariantExecution)},
		Plans:     []models.ExecutionPlan{{ID: planID, State: models.PlanStateRunning, Result: models.PlanResultPending, ExecutorWorldID: &worldID}},
	}

	out := RenderMarkdown(snap)
	assert.Contains(t, out, worldID.String())
	assert.Contains(t, out, models.ExecutionPlanLockID(planID))
	assert.Contains(t, out, planID.String())
	assert.Contains(t, out, "execution")
}

func TestRenderMarkdown_SanitizesOperatorNote(t *testing.T) {
	out := RenderMarkdown(ClusterSnapshot{
		Generated: time.Now(),
		Timeout:   time.Second,
		Note:      "invalidated after OOM kill <script>alert(1)</script>, see incident #482",
	})
	assert.Contains(t, out, "Operator note")
	assert.Contains(t, out, "incident #482")
	assert.NotContains(t, out, "<script>alert(1)</script>")
}

func TestRenderHTML_ConvertsHeadings(t *testing.T) {
	md := RenderMarkdown(ClusterSnapshot{Generated: time.Now(), Timeout: time.Second})
	html, err := RenderHTML(md)
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Cluster status</h1>")
	assert.Contains(t, html, "<h2>Worlds</h2>")
}
