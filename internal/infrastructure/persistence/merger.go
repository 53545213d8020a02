package persistence

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pulsecdp/backend/internal/domain/identity"
	"github.com/pulsecdp/backend/internal/domain/shared"
	"github.com/pulsecdp/backend/internal/infrastructure/persistence/models"
)

// GormMerger executes user merges atomically. Both user rows are locked
// with SELECT FOR UPDATE, always acquiring the lower id first so two
// overlapping merges cannot deadlock each other.
type GormMerger struct {
	db *gorm.DB
}

// NewGormMerger creates a new GormMerger
func NewGormMerger(db *gorm.DB) *GormMerger {
	return &GormMerger{db: db}
}

// Merge folds the losing user of the canonical ordering into the winner,
// re-points identities and events, and marks the loser merged, all in one
// transaction
func (m *GormMerger) Merge(ctx context.Context, workspaceID, aID, bID uuid.UUID) (*identity.MergeResult, error) {
	if aID == bID {
		return nil, shared.NewDomainError("INVALID_MERGE", "Cannot merge a user into itself")
	}

	var result identity.MergeResult
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		firstID, secondID := aID, bID
		if bytes.Compare(secondID[:], firstID[:]) < 0 {
			firstID, secondID = secondID, firstID
		}

		first, err := lockUser(tx, workspaceID, firstID)
		if err != nil {
			return err
		}
		second, err := lockUser(tx, workspaceID, secondID)
		if err != nil {
			return err
		}

		// A concurrent resolver may have merged one side already; follow
		// its forward pointer and treat an already-converged pair as done.
		first, err = followMergedInto(tx, workspaceID, first)
		if err != nil {
			return err
		}
		second, err = followMergedInto(tx, workspaceID, second)
		if err != nil {
			return err
		}
		if first.ID == second.ID {
			result = identity.MergeResult{CanonicalID: first.ID, MergedID: first.ID}
			return nil
		}

		winner, loser := identity.Canonical(first, second)
		if err := winner.Absorb(loser, time.Now().UTC()); err != nil {
			return err
		}

		moved := tx.Model(&models.IdentityModel{}).
			Where("workspace_id = ? AND unified_user_id = ?", workspaceID, loser.ID).
			Update("unified_user_id", winner.ID)
		if moved.Error != nil {
			return moved.Error
		}

		repointed := tx.Model(&models.EventModel{}).
			Where("workspace_id = ? AND unified_user_id = ?", workspaceID, loser.ID).
			Update("unified_user_id", winner.ID)
		if repointed.Error != nil {
			return repointed.Error
		}

		var winnerModel, loserModel models.UnifiedUserModel
		winnerModel.FromDomain(winner)
		loserModel.FromDomain(loser)
		if err := tx.Save(&winnerModel).Error; err != nil {
			return err
		}
		if err := tx.Save(&loserModel).Error; err != nil {
			return err
		}

		result = identity.MergeResult{
			CanonicalID:     winner.ID,
			MergedID:        loser.ID,
			EventsRepointed: repointed.RowsAffected,
			IdentitiesMoved: moved.RowsAffected,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func lockUser(tx *gorm.DB, workspaceID, id uuid.UUID) (*identity.UnifiedUser, error) {
	var model models.UnifiedUserModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("workspace_id = ? AND id = ?", workspaceID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func followMergedInto(tx *gorm.DB, workspaceID uuid.UUID, user *identity.UnifiedUser) (*identity.UnifiedUser, error) {
	for user.MergedInto != nil {
		next, err := lockUser(tx, workspaceID, *user.MergedInto)
		if err != nil {
			return nil, err
		}
		user = next
	}
	return user, nil
}
