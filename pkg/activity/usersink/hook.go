package usersink

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-atoms/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook forwards activity events to a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
}

// New returns a Hook logging into sink.
func New(sink usertypes.ActivitySink) Hook {
	return Hook{Sink: sink}
}

// Notify implements activity.ActivityHook.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	record, ok := Record(event)
	if !ok {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, record)
}

// Record maps event into an ActivityRecord. It reports false for events that
// are not routable. Identifiers that are not UUIDs map to uuid.Nil.
func Record(event activity.Event) (usertypes.ActivityRecord, bool) {
	normalized := activity.NormalizeEvent(event)
	if !normalized.Routable() {
		return usertypes.ActivityRecord{}, false
	}

	data := map[string]any{}
	for key, value := range normalized.Metadata {
		data[key] = value
	}
	if normalized.DefinitionCode != "" {
		data["definition_code"] = normalized.DefinitionCode
	}
	if len(normalized.Recipients) > 0 {
		data["recipients"] = normalized.Recipients
	}
	if len(data) == 0 {
		data = nil
	}

	occurredAt := normalized.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	return usertypes.ActivityRecord{
		ActorID:    parseUUID(normalized.ActorID),
		UserID:     parseUUID(normalized.UserID),
		TenantID:   parseUUID(normalized.TenantID),
		Verb:       normalized.Verb,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		Data:       data,
		OccurredAt: occurredAt,
	}, true
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}
