// Package events publishes community moderation events for downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Moderation event types.
const (
	PostCreated  = "post.created"
	PostHidden   = "post.hidden"
	PostApproved = "post.approved"
)

// ModerationEvent describes a change to a post's moderation state.
type ModerationEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	PostID     string    `json:"postId"`
	ActorID    string    `json:"actorId,omitempty"`
	Tag        string    `json:"tag,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewModerationEvent stamps a fresh event id and time.
func NewModerationEvent(eventType, postID, actorID, tag string) ModerationEvent {
	return ModerationEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		PostID:     postID,
		ActorID:    actorID,
		Tag:        tag,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers moderation events. Publishing is fire-and-forget from the
// request's point of view: a failure never fails the request that caused it.
type Publisher interface {
	Publish(ctx context.Context, event ModerationEvent) error
}

// SyncPublisher is implemented by publishers that can wait for the broker to confirm
// delivery.
type SyncPublisher interface {
	PublishSync(ctx context.Context, event ModerationEvent) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, ModerationEvent) error { return nil }
