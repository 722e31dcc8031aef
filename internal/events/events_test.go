package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindsage/internal/logger"
)

func TestNewModerationEvent(t *testing.T) {
	before := time.Now().UTC()
	ev := NewModerationEvent(PostHidden, "p1", "admin-1", "Life")

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, PostHidden, ev.Type)
	assert.False(t, ev.OccurredAt.Before(before))

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "p1", decoded["postId"])
	assert.Equal(t, "admin-1", decoded["actorId"])
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), NewModerationEvent(PostCreated, "p1", "", "")))
}

func TestKafkaPublisher_Message(t *testing.T) {
	p := &KafkaPublisher{topic: "community-moderation", logger: logger.Discard()}
	ev := NewModerationEvent(PostApproved, "p9", "admin-1", "")

	msg, err := p.message(ev)
	require.NoError(t, err)
	assert.Equal(t, "community-moderation", *msg.TopicPartition.Topic)
	assert.Equal(t, []byte("p9"), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event-type", msg.Headers[0].Key)
	assert.Equal(t, []byte(PostApproved), msg.Headers[0].Value)

	var decoded ModerationEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, ev.ID, decoded.ID)
}
