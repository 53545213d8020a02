package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pulsecdp/backend/internal/application/scoring"
	"github.com/pulsecdp/backend/internal/domain/syncjob"
)

// MaintenanceConfig holds configuration for the background maintenance loops
type MaintenanceConfig struct {
	// DecayInterval is how often stale scores are recomputed
	DecayInterval time.Duration
	// DecayStaleAfter is the age past which a computed score counts as stale
	DecayStaleAfter time.Duration
	// DecayBatchSize bounds one sweep's work
	DecayBatchSize int
	// LeaseReapInterval is how often expired delivery claims are recovered
	LeaseReapInterval time.Duration
}

// DefaultMaintenanceConfig returns default configuration
func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		DecayInterval:     1 * time.Hour,
		DecayStaleAfter:   24 * time.Hour,
		DecayBatchSize:    200,
		LeaseReapInterval: 30 * time.Second,
	}
}

// Maintenance runs the periodic background work that keeps derived state
// honest: the score decay sweep, which re-ages recency for users who went
// quiet, and the lease reaper, which returns crashed workers' jobs to the
// queue.
type Maintenance struct {
	scores *scoring.ScoreService
	jobs   syncjob.SyncJobRepository
	config MaintenanceConfig
	logger *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMaintenance creates the maintenance scheduler
func NewMaintenance(scores *scoring.ScoreService, jobs syncjob.SyncJobRepository, config MaintenanceConfig, logger *zap.Logger) *Maintenance {
	defaults := DefaultMaintenanceConfig()
	if config.DecayInterval <= 0 {
		config.DecayInterval = defaults.DecayInterval
	}
	if config.DecayStaleAfter <= 0 {
		config.DecayStaleAfter = defaults.DecayStaleAfter
	}
	if config.DecayBatchSize <= 0 {
		config.DecayBatchSize = defaults.DecayBatchSize
	}
	if config.LeaseReapInterval <= 0 {
		config.LeaseReapInterval = defaults.LeaseReapInterval
	}
	return &Maintenance{
		scores: scores,
		jobs:   jobs,
		config: config,
		logger: logger,
	}
}

// Start starts the decay and lease-reap loops
func (m *Maintenance) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(2)
	go m.decayLoop(ctx)
	go m.reapLoop(ctx)

	m.logger.Info("maintenance scheduler started",
		zap.Duration("decay_interval", m.config.DecayInterval),
		zap.Duration("decay_stale_after", m.config.DecayStaleAfter),
		zap.Duration("lease_reap_interval", m.config.LeaseReapInterval),
	)

	return nil
}

// Stop gracefully stops the scheduler
func (m *Maintenance) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("maintenance scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Maintenance) decayLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.DecayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := m.scores.DecaySweep(ctx, m.config.DecayStaleAfter, m.config.DecayBatchSize)
			if err != nil {
				m.logger.Error("decay sweep failed", zap.Error(err))
				continue
			}
			if swept > 0 {
				m.logger.Info("decay sweep recomputed stale scores", zap.Int("count", swept))
			}
		}
	}
}

func (m *Maintenance) reapLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.LeaseReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			recovered, err := m.jobs.RequeueExpired(ctx, time.Now())
			if err != nil {
				m.logger.Error("lease reap failed", zap.Error(err))
				continue
			}
			if recovered > 0 {
				m.logger.Warn("recovered jobs from expired leases", zap.Int64("count", recovered))
			}
		}
	}
}
