package syncjob

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulsecdp/backend/internal/domain/shared"
	"github.com/pulsecdp/backend/internal/domain/syncjob"
)

// StatsService serves queue, destination and pipeline read models for the
// ops surface
type StatsService struct {
	jobs         syncjob.SyncJobRepository
	destinations syncjob.DestinationRepository
	pipeline     syncjob.PipelineStatsRepository
	logger       *zap.Logger
}

// NewStatsService creates a stats service
func NewStatsService(
	jobs syncjob.SyncJobRepository,
	destinations syncjob.DestinationRepository,
	pipeline syncjob.PipelineStatsRepository,
	logger *zap.Logger,
) *StatsService {
	return &StatsService{
		jobs:         jobs,
		destinations: destinations,
		pipeline:     pipeline,
		logger:       logger,
	}
}

// QueueStatsDTO is the queue depth breakdown for one workspace
type QueueStatsDTO struct {
	Pending   int64 `json:"pending"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Total     int64 `json:"total"`
}

// DestinationDTO is the operator view of a destination
type DestinationDTO struct {
	ID         uuid.UUID  `json:"id"`
	Type       string     `json:"type"`
	Name       string     `json:"name"`
	Enabled    bool       `json:"enabled"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// JobDTO is the operator view of one sync job
type JobDTO struct {
	ID            uuid.UUID  `json:"id"`
	Type          string     `json:"type"`
	DestinationID uuid.UUID  `json:"destination_id"`
	UnifiedUserID uuid.UUID  `json:"unified_user_id"`
	Status        string     `json:"status"`
	Outcome       string     `json:"outcome,omitempty"`
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"last_error,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// QueueStats returns the per-status job counts for a workspace
func (s *StatsService) QueueStats(ctx context.Context, workspaceID uuid.UUID) (*QueueStatsDTO, error) {
	counts, err := s.jobs.CountByStatus(ctx, workspaceID)
	if err != nil {
		s.logger.Error("failed to count jobs", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to compute queue stats")
	}
	return &QueueStatsDTO{
		Pending:   counts.Pending,
		Running:   counts.Running,
		Completed: counts.Completed,
		Failed:    counts.Failed,
		Total:     counts.Pending + counts.Running + counts.Completed + counts.Failed,
	}, nil
}

// PipelineStats returns the workspace-wide pipeline counts: event admissions
// and duplicates, identity graph size, and segment membership counts
func (s *StatsService) PipelineStats(ctx context.Context, workspaceID uuid.UUID) (*syncjob.PipelineStats, error) {
	stats, err := s.pipeline.PipelineStats(ctx, workspaceID)
	if err != nil {
		s.logger.Error("failed to compute pipeline stats", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to compute pipeline stats")
	}
	return stats, nil
}

// ListDestinations returns all destinations of a workspace
func (s *StatsService) ListDestinations(ctx context.Context, workspaceID uuid.UUID) ([]DestinationDTO, error) {
	destinations, err := s.destinations.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	out := make([]DestinationDTO, len(destinations))
	for i := range destinations {
		out[i] = toDestinationDTO(&destinations[i])
	}
	return out, nil
}

// RegisterDestinationRequest describes a new destination
type RegisterDestinationRequest struct {
	Type          string            `json:"type" binding:"required,destinationtype"`
	Name          string            `json:"name" binding:"required"`
	Config        map[string]string `json:"config"`
	EventMapping  map[string]string `json:"event_mapping"`
	BlockedEvents []string          `json:"blocked_events"`
}

// RegisterDestination creates a destination. New destinations start enabled.
func (s *StatsService) RegisterDestination(ctx context.Context, workspaceID uuid.UUID, req *RegisterDestinationRequest) (*DestinationDTO, error) {
	dest, err := syncjob.NewDestination(workspaceID, syncjob.DestinationType(req.Type), req.Name, req.Config)
	if err != nil {
		return nil, err
	}
	if req.EventMapping != nil {
		dest.EventMapping = req.EventMapping
	}
	dest.BlockedEvents = req.BlockedEvents

	if err := s.destinations.Create(ctx, dest); err != nil {
		s.logger.Error("failed to create destination", zap.Error(err))
		return nil, err
	}

	s.logger.Info("destination registered",
		zap.String("workspace_id", workspaceID.String()),
		zap.String("destination_id", dest.ID.String()),
		zap.String("type", req.Type))

	dto := toDestinationDTO(dest)
	return &dto, nil
}

// SetDestinationEnabled flips a destination on or off. Disabling stops new
// claims; jobs already running finish normally.
func (s *StatsService) SetDestinationEnabled(ctx context.Context, workspaceID, destinationID uuid.UUID, enabled bool) (*DestinationDTO, error) {
	dest, err := s.destinations.FindByID(ctx, workspaceID, destinationID)
	if err != nil {
		return nil, err
	}
	if enabled {
		dest.Enable(time.Now())
	} else {
		dest.Disable(time.Now())
	}
	if err := s.destinations.Save(ctx, dest); err != nil {
		return nil, err
	}
	dto := toDestinationDTO(dest)
	return &dto, nil
}

// RecentJobs returns a page of recent jobs, newest first
func (s *StatsService) RecentJobs(ctx context.Context, workspaceID uuid.UUID, filter shared.Filter) (*shared.Paginated[JobDTO], error) {
	page, err := s.jobs.ListRecent(ctx, workspaceID, filter)
	if err != nil {
		return nil, err
	}
	dtos := make([]JobDTO, len(page.Items))
	for i := range page.Items {
		dtos[i] = toJobDTO(&page.Items[i])
	}
	out := shared.NewPaginated(dtos, page.Total, page.Page, page.PageSize)
	return &out, nil
}

func toDestinationDTO(d *syncjob.Destination) DestinationDTO {
	return DestinationDTO{
		ID:         d.ID,
		Type:       string(d.Type),
		Name:       d.Name,
		Enabled:    d.Enabled,
		LastSyncAt: d.LastSyncAt,
		LastError:  d.LastError,
	}
}

func toJobDTO(j *syncjob.SyncJob) JobDTO {
	return JobDTO{
		ID:            j.ID,
		Type:          string(j.Type),
		DestinationID: j.DestinationID,
		UnifiedUserID: j.UnifiedUserID,
		Status:        string(j.Status),
		Outcome:       string(j.Outcome),
		Attempts:      j.Attempts,
		LastError:     j.LastError,
		NextAttemptAt: j.NextAttemptAt,
		CompletedAt:   j.CompletedAt,
		CreatedAt:     j.CreatedAt,
	}
}
