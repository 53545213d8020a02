package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appsyncjob "github.com/pulsecdp/backend/internal/application/syncjob"
	"github.com/pulsecdp/backend/internal/domain/syncjob"
)

// PoolConfig holds configuration for the delivery worker pool
type PoolConfig struct {
	Workers           int
	PollInterval      time.Duration
	PerDestinationCap int
	CleanupEnabled    bool
	CleanupRetention  time.Duration
	CleanupInterval   time.Duration
}

// DefaultPoolConfig returns default configuration
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:           4,
		PollInterval:      5 * time.Second,
		PerDestinationCap: 2,
		CleanupEnabled:    true,
		CleanupRetention:  7 * 24 * time.Hour,
		CleanupInterval:   1 * time.Hour,
	}
}

// Pool drives the delivery service with a fixed set of workers. Each worker
// drains the queue on its poll tick; destinations already at their
// concurrency cap are passed over so one slow platform cannot occupy every
// worker.
type Pool struct {
	delivery *appsyncjob.DeliveryService
	jobs     syncjob.SyncJobRepository
	config   PoolConfig
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a new delivery worker pool
func NewPool(delivery *appsyncjob.DeliveryService, jobs syncjob.SyncJobRepository, config PoolConfig, logger *zap.Logger) *Pool {
	if config.Workers <= 0 {
		config.Workers = DefaultPoolConfig().Workers
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPoolConfig().PollInterval
	}
	return &Pool{
		delivery: delivery,
		jobs:     jobs,
		config:   config,
		logger:   logger,
	}
}

// Start starts the workers and, when enabled, the retention cleanup loop
func (p *Pool) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.config.Workers; i++ {
		workerID := fmt.Sprintf("worker-%d", i+1)
		p.wg.Add(1)
		go p.workerLoop(ctx, workerID)
	}

	if p.config.CleanupEnabled {
		p.wg.Add(1)
		go p.cleanupLoop(ctx)
	}

	p.logger.Info("delivery worker pool started",
		zap.Int("workers", p.config.Workers),
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Int("per_destination_cap", p.config.PerDestinationCap),
	)

	return nil
}

// Stop gracefully stops the pool, waiting for in-flight deliveries
func (p *Pool) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("delivery worker pool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) workerLoop(ctx context.Context, workerID string) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx, workerID)
		}
	}
}

// drain processes jobs until the queue is empty or the context ends. The
// busy-destination set is refreshed per claim so the cap tracks the other
// workers' progress.
func (p *Pool) drain(ctx context.Context, workerID string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		busy, err := p.saturatedDestinations(ctx)
		if err != nil {
			p.logger.Error("failed to read destination saturation", zap.Error(err))
			return
		}

		processed, err := p.delivery.ProcessNext(ctx, workerID, busy)
		if err != nil {
			p.logger.Error("job processing failed",
				zap.String("worker_id", workerID),
				zap.Error(err),
			)
			return
		}
		if !processed {
			return
		}
	}
}

// saturatedDestinations returns the destinations already running at their
// concurrency cap
func (p *Pool) saturatedDestinations(ctx context.Context) ([]uuid.UUID, error) {
	if p.config.PerDestinationCap <= 0 {
		return nil, nil
	}

	counts, err := p.jobs.CountRunningByDestination(ctx)
	if err != nil {
		return nil, err
	}

	var busy []uuid.UUID
	for destinationID, running := range counts {
		if running >= int64(p.config.PerDestinationCap) {
			busy = append(busy, destinationID)
		}
	}
	return busy, nil
}

func (p *Pool) cleanupLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-p.config.CleanupRetention)
			pruned, err := p.jobs.DeleteTerminalOlderThan(ctx, cutoff)
			if err != nil {
				p.logger.Error("terminal job cleanup failed", zap.Error(err))
				continue
			}
			if pruned > 0 {
				p.logger.Info("pruned terminal jobs",
					zap.Int64("count", pruned),
					zap.Time("cutoff", cutoff),
				)
			}
		}
	}
}
