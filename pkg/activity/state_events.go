package activity

import (
	"strings"
	"time"
)

const (
	// VerbStateMutated is the verb of events built from storage writes.
	VerbStateMutated = "state.mutated"
	// ObjectTypeAtom is the object type of events built from storage writes.
	ObjectTypeAtom = "atom"
)

// StateEventInput carries the fields of one storage mutation.
type StateEventInput struct {
	ActorID  string
	UserID   string
	TenantID string
	Channel  string
	Category string
	// Path is the mutated key's path; it becomes the event's object id.
	Path string
	// Owner is the path of the key that performed the write, if any.
	Owner      string
	Context    string
	Value      string
	Recipients []string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildStateMutatedEvent constructs the activity event for a storage write.
func BuildStateMutatedEvent(input StateEventInput) Event {
	metadata := cloneMap(input.Metadata)
	set := func(key string, value string) {
		if value == "" {
			return
		}
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[key] = value
	}
	set("category", strings.TrimSpace(input.Category))
	set("context", input.Context)
	set("owner", strings.TrimSpace(input.Owner))
	set("value", input.Value)

	var recipients []string
	if len(input.Recipients) > 0 {
		recipients = append(recipients, input.Recipients...)
	}

	return Event{
		Verb:       VerbStateMutated,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectTypeAtom,
		ObjectID:   strings.TrimSpace(input.Path),
		Channel:    strings.TrimSpace(input.Channel),
		Recipients: recipients,
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}
