// Package workflow orchestrates resumable migration workflows.
package workflow

import (
	"context"
	"fmt"

	"github.com/codebypatrickleung/ocimigrate/internal/config"
	"github.com/codebypatrickleung/ocimigrate/internal/logger"
	"github.com/codebypatrickleung/ocimigrate/internal/progress"
)

// Locker is implemented by stores that can be locked for the duration of a run.
type Locker interface {
	Lock() error
	Unlock() error
}

// Manager runs one workflow against one progress store. It owns the
// persistence policy: the record is flushed after the run whether the
// workflow succeeded or not, and never in dry-run mode.
type Manager struct {
	config   *config.Config
	logger   *logger.Logger
	handler  Handler
	store    progress.Store
	workflow string
	dryRun   bool
	version  string
}

// NewManager creates a manager for the named workflow.
func NewManager(cfg *config.Config, log *logger.Logger, workflowName string, dryRun bool, version string) (*Manager, error) {
	handler, err := NewDefaultRegistry().Get(workflowName)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow handler: %w", err)
	}

	if err := handler.Initialize(cfg, log, dryRun); err != nil {
		return nil, fmt.Errorf("failed to initialize workflow handler: %w", err)
	}

	store, err := NewStore(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create progress store: %w", err)
	}

	return newManager(cfg, log, handler, store, dryRun, version), nil
}

func newManager(cfg *config.Config, log *logger.Logger, handler Handler, store progress.Store, dryRun bool, version string) *Manager {
	return &Manager{
		config:   cfg,
		logger:   log,
		handler:  handler,
		store:    store,
		workflow: handler.Name(),
		dryRun:   dryRun,
		version:  version,
	}
}

// Run executes the workflow. On failure the progress committed so far is
// saved and the error is returned; rerunning resumes where this run stopped.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Banner(
		fmt.Sprintf("ocimigrate v%s", m.version),
		fmt.Sprintf("Workflow: %s", m.workflow),
		fmt.Sprintf("Source region: %s", m.config.SourceRegion),
		fmt.Sprintf("Target region: %s", m.config.TargetRegion),
		fmt.Sprintf("Progress: %s", m.store.Location()),
	)

	store := m.store
	if m.dryRun {
		m.logger.Warning("DRY RUN MODE: no resources will be created and progress will not be saved")
		record, err := store.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load progress: %w", err)
		}
		store = progress.NewMemoryStore(record)
	} else if locker, ok := store.(Locker); ok {
		if err := locker.Lock(); err != nil {
			return err
		}
		defer func() {
			if unlockErr := locker.Unlock(); unlockErr != nil {
				m.logger.Warningf("%v", unlockErr)
			}
		}()
	}

	journal, err := progress.OpenJournal(ctx, store, m.logger)
	if err != nil {
		return fmt.Errorf("failed to load progress: %w", err)
	}

	runErr := m.handler.Execute(ctx, journal)

	if !m.dryRun {
		if cpErr := journal.Checkpoint(ctx); cpErr != nil {
			m.logger.Errorf("Failed to save progress: %v", cpErr)
			if runErr == nil {
				runErr = cpErr
			}
		}
	}

	if runErr != nil {
		m.logger.Error("=========================================")
		m.logger.Error("MIGRATION FAILED")
		m.logger.Errorf("%v", runErr)
		m.logger.Error("=========================================")
		if m.dryRun {
			m.logger.Info("[DRY_RUN] No progress was saved")
		} else {
			m.logger.Infof("Progress saved to %s. Rerun the same command to resume.", m.store.Location())
		}
		return runErr
	}

	if m.dryRun {
		m.logger.Successf("[DRY_RUN] Workflow %s simulated successfully", m.workflow)
	}
	return nil
}
