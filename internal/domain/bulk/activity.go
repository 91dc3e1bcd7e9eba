package bulk

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActivityAction names an auditable mutation.
type ActivityAction string

const (
	ActivityRecordCreated   ActivityAction = "record_created"
	ActivityRecordUpdated   ActivityAction = "record_updated"
	ActivityImportCompleted ActivityAction = "import_completed"
	ActivityExportCompleted ActivityAction = "export_completed"
)

// ActivityEntry is one audit record.
type ActivityEntry struct {
	ID         uuid.UUID
	OrgID      uuid.UUID
	ActorID    uuid.UUID
	Entity     string
	RecordID   *uuid.UUID
	Action     ActivityAction
	Summary    string
	Details    map[string]string
	OccurredAt time.Time
}

// NewActivityEntry stamps a new entry.
func NewActivityEntry(orgID, actorID uuid.UUID, entity string, action ActivityAction, summary string) ActivityEntry {
	return ActivityEntry{
		ID:         uuid.New(),
		OrgID:      orgID,
		ActorID:    actorID,
		Entity:     entity,
		Action:     action,
		Summary:    summary,
		OccurredAt: time.Now(),
	}
}

// ActivityLogger receives fire-and-forget audit entries.
// Log must not block on I/O and has no failure mode visible to the caller.
type ActivityLogger interface {
	Log(ctx context.Context, entry ActivityEntry)
}

// NopActivityLogger discards every entry.
type NopActivityLogger struct{}

// Log implements ActivityLogger.
func (NopActivityLogger) Log(context.Context, ActivityEntry) {}

// ActivityRepository persists audit entries.
type ActivityRepository interface {
	Append(ctx context.Context, entries ...ActivityEntry) error
	Recent(ctx context.Context, orgID uuid.UUID, limit int) ([]ActivityEntry, error)
}
