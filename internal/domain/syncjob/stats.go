package syncjob

import (
	"context"

	"github.com/google/uuid"
)

// PipelineStats is the workspace-wide pipeline read model served on the
// stats endpoints. Counts are grouped aggregates over the pipeline tables.
type PipelineStats struct {
	AdmittedEvents  int64            `json:"admitted_events"`
	DuplicateEvents int64            `json:"duplicate_events"`
	Identities      int64            `json:"identities"`
	UnifiedUsers    int64            `json:"unified_users"`
	MergedUsers     int64            `json:"merged_users"`
	SegmentMembers  map[string]int64 `json:"segment_members"`
}

// PipelineStatsRepository computes grouped pipeline counts. Read-only.
type PipelineStatsRepository interface {
	PipelineStats(ctx context.Context, workspaceID uuid.UUID) (*PipelineStats, error)
}
