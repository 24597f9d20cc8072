// Package usersink forwards settings activity events to a go-users
// ActivitySink.
package usersink

import (
	"context"
	"slices"
	"strings"
	"time"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"

	"github.com/goliatone/go-settings/pkg/activity"
)

// Hook adapts activity events to a go-users ActivitySink. The record object
// is the snapshot ref; events on a user scope whose id is a UUID also carry
// that user. Keys are written to the record data as a comma-separated "keys"
// string with a "key_count".
type Hook struct {
	Sink usertypes.ActivitySink
	// Verbs restricts forwarding to the listed verbs when non-empty.
	Verbs []string
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}

	normalized := activity.NormalizeEvent(event)
	if !normalized.Valid() {
		return nil
	}
	if len(h.Verbs) > 0 && !slices.Contains(h.Verbs, normalized.Verb) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	record := usertypes.ActivityRecord{
		ActorID:    parseUUID(normalized.ActorID),
		TenantID:   parseUUID(normalized.TenantID),
		Verb:       normalized.Verb,
		ObjectType: activity.ObjectTypeSettings,
		ObjectID:   normalized.Ref,
		Channel:    normalized.Channel,
		Data:       normalized.Fields(),
		OccurredAt: normalized.OccurredAt,
	}
	if normalized.Scope.Name == "user" {
		record.UserID = parseUUID(normalized.Scope.ID)
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now()
	}
	if len(normalized.Keys) > 0 {
		record.Data["key_count"] = len(normalized.Keys)
		record.Data["keys"] = strings.Join(normalized.Keys, ",")
	}

	return h.Sink.Log(ctx, record)
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}
