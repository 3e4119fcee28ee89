package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/harrison/conductor/internal/autoexec"
	"github.com/harrison/conductor/internal/config"
	"github.com/harrison/conductor/internal/contract"
	"github.com/harrison/conductor/internal/filelock"
	"github.com/harrison/conductor/internal/invalidator"
	"github.com/harrison/conductor/internal/locktable"
	"github.com/harrison/conductor/internal/logger"
	"github.com/harrison/conductor/internal/registry"
	"github.com/harrison/conductor/internal/store"
)

// Version is reported by --version. cmd/conductor's main sets it from its
// own Version constant before building the root command.
var Version = "dev"

// app bundles the components every subcommand wires together: one Store
// connection, one lock table and registry over it, plus an in-process
// contract implementation and logger. Built fresh per invocation from
// --config, guarded against concurrent local processes by a flock on
// LocalLockPath (§5, ambient).
type app struct {
	cfg      config.CoordinatorConfig
	log      *logger.Logger
	store    *store.Store
	locks    *locktable.Table
	reg      *registry.Registry
	lock     *filelock.FileLock
	executor *contract.InProcessExecutor
	closed   bool
}

func newApp(configPath string, kind config.WorldKind) (*app, error) {
	cfg, err := config.Load(configPath, kind)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	lg := logger.New(os.Stderr, cfg.Log.Level, logger.WithColor(cfg.Log.Color))

	fl := filelock.NewFileLock(cfg.LocalLockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire local instance lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another conductor process already holds %s", cfg.LocalLockPath)
	}

	s, err := store.Open(cfg.Store.DSN)
	if err != nil {
		fl.Unlock()
		return nil, fmt.Errorf("open store: %w", err)
	}

	return &app{
		cfg:      cfg,
		log:      lg,
		store:    s,
		locks:    locktable.New(s),
		reg:      registry.New(s),
		lock:     fl,
		executor: contract.NewStoreBackedExecutor(s),
	}, nil
}

func (a *app) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	storeErr := a.store.Close()
	lockErr := a.lock.Unlock()
	if storeErr != nil {
		return storeErr
	}
	return lockErr
}

// dispatcher returns the in-process contract.Dispatcher used by the
// invalidator and auto-execute sweeper to resume plans on a live executor.
// A single-binary CLI has no out-of-process transport, so the in-process
// executor/connector pair (internal/contract) stands in for it. It reuses
// a.executor, a single store-backed InProcessExecutor, rather than
// constructing a fresh unseeded one per call: an unseeded executor returns
// NotFound for every plan id, which would make every real dispatch fail.
func (a *app) dispatcher() contract.Dispatcher {
	return contract.NewInProcessDispatcher(a.store, a.executor, contract.NewInProcessConnector())
}

func (a *app) invalidatorFor(selfWorldID uuid.UUID) *invalidator.Invalidator {
	return invalidator.New(a.store, a.locks, a.reg, a.dispatcher(), selfWorldID, a.cfg.Duration())
}

func (a *app) sweeperFor(selfWorldID uuid.UUID) *autoexec.Sweeper {
	return autoexec.New(a.store, a.locks, a.dispatcher(), selfWorldID)
}

func (a *app) validityTimeout() time.Duration {
	return a.cfg.Duration()
}

// configPathFlag reads the --config flag shared by every subcommand.
func configPathFlag(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}
