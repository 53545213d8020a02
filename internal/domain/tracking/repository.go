package tracking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AdmitResult reports the outcome of an admission attempt
type AdmitResult struct {
	// Admitted is true when the event was stored as a new row. False means
	// the fingerprint was already known and the stored row's DupeCount was
	// incremented instead.
	Admitted  bool
	DupeCount int
	// StoredID is the id of the row owning the fingerprint (the new row on
	// admission, the pre-existing row on duplicate).
	StoredID uuid.UUID
}

// EventRepository defines the persistence port for the fingerprint store
type EventRepository interface {
	// Admit performs the atomic insert-if-absent-else-increment against the
	// event's dedupe key. It must be a single conditional statement, never a
	// read-then-write. Storage unavailability returns an error; the event is
	// then rejected and the producer told to retry.
	Admit(ctx context.Context, event *Event) (*AdmitResult, error)

	// FindByID finds an event within a workspace
	FindByID(ctx context.Context, workspaceID, id uuid.UUID) (*Event, error)

	// FindByUser returns a user's events with event_time >= since, ordered
	// by non-decreasing event_time (required by recency scoring)
	FindByUser(ctx context.Context, workspaceID, userID uuid.UUID, since time.Time) ([]Event, error)

	// AttachUser sets the unified user link on a stored event
	AttachUser(ctx context.Context, workspaceID, eventID, userID uuid.UUID) error

	// RepointUser moves every event from one unified user to another; used
	// by merge so no event keeps referencing the dead user id
	RepointUser(ctx context.Context, workspaceID, fromUserID, toUserID uuid.UUID) (int64, error)

	// ClearUserLink nulls the user reference on a user's events while
	// keeping the rows for audit; used by profile deletion
	ClearUserLink(ctx context.Context, workspaceID, userID uuid.UUID) (int64, error)
}
