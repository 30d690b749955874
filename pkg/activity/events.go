package activity

import (
	"fmt"
	"strings"
	"time"
)

// Verbs emitted by bindings.
const (
	VerbCreated = "resource.created"
	VerbUpdated = "resource.updated"
	VerbDeleted = "resource.deleted"
	VerbLogin   = "session.login"
	VerbLogout  = "session.logout"
)

// SessionObjectType is the object type of login/logout events.
const SessionObjectType = "session"

// MutationInput describes the common fields of a mutation event.
type MutationInput struct {
	Resource  string
	RecordKey string
	RecordID  any
	RequestID string
	API       string
	ActorID   string
	UserID    string
	TenantID  string
	Channel   string
	Errors    int
	Metadata  map[string]any
	At        time.Time
}

// BuildCreatedEvent constructs the event for a successful create.
func BuildCreatedEvent(input MutationInput) Event {
	return buildMutationEvent(VerbCreated, input.Resource, input)
}

// BuildUpdatedEvent constructs the event for a successful update.
func BuildUpdatedEvent(input MutationInput) Event {
	return buildMutationEvent(VerbUpdated, input.Resource, input)
}

// BuildDeletedEvent constructs the event for a successful delete.
func BuildDeletedEvent(input MutationInput) Event {
	return buildMutationEvent(VerbDeleted, input.Resource, input)
}

// BuildLoginEvent constructs the event for a successful login.
func BuildLoginEvent(input MutationInput) Event {
	return buildMutationEvent(VerbLogin, SessionObjectType, input)
}

// BuildLogoutEvent constructs the event for a successful logout.
func BuildLogoutEvent(input MutationInput) Event {
	return buildMutationEvent(VerbLogout, SessionObjectType, input)
}

func buildMutationEvent(verb, objectType string, input MutationInput) Event {
	metadata := cloneMap(input.Metadata)
	if api := strings.TrimSpace(input.API); api != "" {
		metadata = ensureMetadata(metadata)
		metadata["api"] = api
	}
	if input.RecordKey != "" && input.RecordID != nil {
		metadata = ensureMetadata(metadata)
		metadata["record_key"] = input.RecordKey
	}
	if input.Resource != "" && objectType != input.Resource {
		metadata = ensureMetadata(metadata)
		metadata["resource"] = input.Resource
	}

	objectID := ""
	if input.RecordID != nil {
		objectID = strings.TrimSpace(fmt.Sprint(input.RecordID))
	}
	if objectID == "" {
		objectID = strings.TrimSpace(input.RequestID)
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: strings.TrimSpace(objectType),
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		RequestID:  strings.TrimSpace(input.RequestID),
		Metadata:   metadata,
		OccurredAt: input.At,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
