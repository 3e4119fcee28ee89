package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/conductor/internal/config"
	"github.com/harrison/conductor/internal/models"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "state.db")
	lockPath := filepath.Join(dir, "state.db.lock")
	configPath := filepath.Join(dir, "conductor.yaml")

	contents := fmt.Sprintf(`
store:
  dsn: %q
local_lock_path: %q
log:
  level: error
  color: never
`, dbPath, lockPath)
	require.NoError(t, os.WriteFile(configPath, []byte(contents), 0o644))
	return configPath
}

// runCLI executes args against a fresh root command and returns combined
// stdout. Each invocation opens and closes its own app, matching how the
// real binary is invoked once per process.
func runCLI(t *testing.T, configPath string, args ...string) string {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", configPath}, args...))
	require.NoError(t, root.ExecuteContext(context.Background()))
	return out.String()
}

func TestRootCommand_HasAllSubcommands(t *testing.T) {
	root := NewRootCommand()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "world")
	assert.Contains(t, names, "plan")
	assert.Contains(t, names, "invalidate")
	assert.Contains(t, names, "auto-execute")
	assert.Contains(t, names, "validity")
	assert.Contains(t, names, "status")
}

func TestWorldRegisterHeartbeatList(t *testing.T) {
	cfg := writeTestConfig(t)

	out := runCLI(t, cfg, "world", "register", "--kind", "executor")
	worldID := strings.TrimSpace(out)
	require.NotEmpty(t, worldID)

	runCLI(t, cfg, "world", "heartbeat", "--id", worldID)

	out = runCLI(t, cfg, "world", "list", "--kind", "executor")
	assert.Contains(t, out, worldID)
}

func TestPlanFullLifecycleViaCLI(t *testing.T) {
	cfg := writeTestConfig(t)

	client := strings.TrimSpace(runCLI(t, cfg, "world", "register", "--kind", "client"))
	executor := strings.TrimSpace(runCLI(t, cfg, "world", "register", "--kind", "executor"))

	planID := strings.TrimSpace(runCLI(t, cfg, "plan", "begin-planning", "--client", client))
	require.NotEmpty(t, planID)

	runCLI(t, cfg, "plan", "finish-planning", "--client", client, "--plan", planID)
	runCLI(t, cfg, "plan", "begin-execution", "--executor", executor, "--plan", planID)
	runCLI(t, cfg, "plan", "finish-execution", "--executor", executor, "--plan", planID, "--result", "success")

	out := runCLI(t, cfg, "plan", "show", "--plan", planID)
	assert.Contains(t, out, "state:  stopped")
	assert.Contains(t, out, "result: success")
}

func TestStatusRendersMarkdown(t *testing.T) {
	cfg := writeTestConfig(t)
	runCLI(t, cfg, "world", "register", "--kind", "executor")

	out := runCLI(t, cfg, "status", "--format", "md")
	assert.Contains(t, out, "# Cluster status")
	assert.Contains(t, out, "## Worlds")
}

// TestAutoExecuteDispatchesToLiveExecutor exercises the actual dispatch path
// auto-execute relies on: a planned plan with no lock must be resumed and
// handed to a seeded, working executor rather than failing with a bogus
// NotFound from an empty one.
func TestAutoExecuteDispatchesToLiveExecutor(t *testing.T) {
	cfg := writeTestConfig(t)

	client := strings.TrimSpace(runCLI(t, cfg, "world", "register", "--kind", "client"))
	executor := strings.TrimSpace(runCLI(t, cfg, "world", "register", "--kind", "executor"))

	planID := strings.TrimSpace(runCLI(t, cfg, "plan", "begin-planning", "--client", client))
	require.NotEmpty(t, planID)
	runCLI(t, cfg, "plan", "finish-planning", "--client", client, "--plan", planID)

	out := runCLI(t, cfg, "auto-execute", "--self", executor)
	assert.Contains(t, out, planID)
}

// TestWorldRegisterRunsStartupValidityCheck confirms §4.6's "a world runs
// both checks before announcing itself ready" is actually wired into
// registration rather than just implemented and unit-tested in isolation:
// registering a new executor (auto_validity_check defaults true for
// executors) must clean up a pre-existing orphaned lock.
func TestWorldRegisterRunsStartupValidityCheck(t *testing.T) {
	cfg := writeTestConfig(t)

	a, err := newApp(cfg, config.WorldKindExecutor)
	require.NoError(t, err)
	orphanLockID := models.ExecutionPlanLockID(uuid.New())
	_, err = a.locks.Acquire(models.NewLock(orphanLockID, uuid.New(), models.LockVariantPlanning))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	runCLI(t, cfg, "world", "register", "--kind", "executor")

	out := runCLI(t, cfg, "status", "--format", "md")
	assert.NotContains(t, out, orphanLockID)
}

// TestWorldRegisterSkipsValidityCheckForClients confirms a client world
// (auto_validity_check defaults false) does not trip over the checker at
// all — registration must still succeed even with a dangling orphan lock
// present, since the check never runs for clients.
func TestWorldRegisterSkipsValidityCheckForClients(t *testing.T) {
	cfg := writeTestConfig(t)

	a, err := newApp(cfg, config.WorldKindClient)
	require.NoError(t, err)
	orphanLockID := models.ExecutionPlanLockID(uuid.New())
	_, err = a.locks.Acquire(models.NewLock(orphanLockID, uuid.New(), models.LockVariantPlanning))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	out := runCLI(t, cfg, "world", "register", "--kind", "client")
	require.NotEmpty(t, strings.TrimSpace(out))

	status := runCLI(t, cfg, "status", "--format", "md")
	assert.Contains(t, status, orphanLockID)
}

func TestValidityLocksPrintsNothingWithNoLocks(t *testing.T) {
	cfg := writeTestConfig(t)
	out := runCLI(t, cfg, "validity", "locks")
	assert.Empty(t, strings.TrimSpace(out))
}
