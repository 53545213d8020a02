package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pulsecdp/backend/internal/domain/segment"
)

// setupSegmentTestDB creates an in-memory SQLite database for testing
func setupSegmentTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.Exec(`
		CREATE TABLE segments (
			id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			workspace_id TEXT NOT NULL,
			key TEXT NOT NULL,
			name TEXT NOT NULL,
			rules TEXT NOT NULL DEFAULT '[]',
			enabled INTEGER NOT NULL DEFAULT 1
		)
	`).Error
	require.NoError(t, err)

	err = db.Exec(`
		CREATE TABLE segment_memberships (
			workspace_id TEXT NOT NULL,
			unified_user_id TEXT NOT NULL,
			segment_id TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			UNIQUE(workspace_id, unified_user_id, segment_id)
		)
	`).Error
	require.NoError(t, err)

	return db
}

func newScoreSegment(t *testing.T, workspaceID uuid.UUID, key string) *segment.Segment {
	t.Helper()
	seg, err := segment.NewSegment(workspaceID, key, "High intent", []segment.Rule{
		{Attribute: "intent_score", Operator: segment.OperatorGreaterOrEq, Values: []string{"70"}},
	})
	require.NoError(t, err)
	return seg
}

func TestGormSegmentRepository_SaveAndListEnabled(t *testing.T) {
	db := setupSegmentTestDB(t)
	repo := NewGormSegmentRepository(db)
	ctx := context.Background()
	workspaceID := uuid.New()

	hot := newScoreSegment(t, workspaceID, "hot_leads")
	require.NoError(t, repo.Save(ctx, hot))

	dormant := newScoreSegment(t, workspaceID, "dormant")
	dormant.Enabled = false
	require.NoError(t, repo.Save(ctx, dormant))

	segments, err := repo.ListEnabled(ctx, workspaceID)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "hot_leads", segments[0].Key)
	require.Len(t, segments[0].Rules, 1)
	assert.Equal(t, segment.OperatorGreaterOrEq, segments[0].Rules[0].Operator)
	assert.Equal(t, []string{"70"}, segments[0].Rules[0].Values)
}

func TestGormSegmentRepository_ListEnabledScopedToWorkspace(t *testing.T) {
	db := setupSegmentTestDB(t)
	repo := NewGormSegmentRepository(db)
	ctx := context.Background()

	seg := newScoreSegment(t, uuid.New(), "hot_leads")
	require.NoError(t, repo.Save(ctx, seg))

	segments, err := repo.ListEnabled(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestGormSegmentRepository_ReplaceMemberships(t *testing.T) {
	db := setupSegmentTestDB(t)
	repo := NewGormSegmentRepository(db)
	ctx := context.Background()
	workspaceID := uuid.New()
	userID := uuid.New()

	hot := newScoreSegment(t, workspaceID, "hot_leads")
	cartAbandoners := newScoreSegment(t, workspaceID, "cart_abandoners")
	require.NoError(t, repo.Save(ctx, hot))
	require.NoError(t, repo.Save(ctx, cartAbandoners))

	require.NoError(t, repo.ReplaceMemberships(ctx, workspaceID, userID, []uuid.UUID{hot.ID, cartAbandoners.ID}))

	keys, err := repo.ListMemberships(ctx, workspaceID, userID)
	require.NoError(t, err)
	assert.Equal(t, []string{"cart_abandoners", "hot_leads"}, keys)

	// A recompute that drops one segment replaces the whole projection
	require.NoError(t, repo.ReplaceMemberships(ctx, workspaceID, userID, []uuid.UUID{hot.ID}))

	keys, err = repo.ListMemberships(ctx, workspaceID, userID)
	require.NoError(t, err)
	assert.Equal(t, []string{"hot_leads"}, keys)
}

func TestGormSegmentRepository_ReplaceMembershipsEmptyClears(t *testing.T) {
	db := setupSegmentTestDB(t)
	repo := NewGormSegmentRepository(db)
	ctx := context.Background()
	workspaceID := uuid.New()
	userID := uuid.New()

	seg := newScoreSegment(t, workspaceID, "hot_leads")
	require.NoError(t, repo.Save(ctx, seg))
	require.NoError(t, repo.ReplaceMemberships(ctx, workspaceID, userID, []uuid.UUID{seg.ID}))

	require.NoError(t, repo.ReplaceMemberships(ctx, workspaceID, userID, nil))

	keys, err := repo.ListMemberships(ctx, workspaceID, userID)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestGormSegmentRepository_DeleteMemberships(t *testing.T) {
	db := setupSegmentTestDB(t)
	repo := NewGormSegmentRepository(db)
	ctx := context.Background()
	workspaceID := uuid.New()
	userID := uuid.New()

	seg := newScoreSegment(t, workspaceID, "hot_leads")
	require.NoError(t, repo.Save(ctx, seg))
	require.NoError(t, repo.ReplaceMemberships(ctx, workspaceID, userID, []uuid.UUID{seg.ID}))

	require.NoError(t, repo.DeleteMemberships(ctx, workspaceID, userID))

	keys, err := repo.ListMemberships(ctx, workspaceID, userID)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
