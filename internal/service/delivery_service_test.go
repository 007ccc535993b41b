package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"codecollab-be/internal/dto"
	"codecollab-be/internal/entity"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticRooms serves one fixed snapshot; the delivery consumer only reads.
type staticRooms struct {
	room *entity.Room
}

func (s *staticRooms) Join(context.Context, string, string, uuid.UUID) (*JoinResult, error) {
	panic("not used")
}

func (s *staticRooms) Leave(context.Context, string, uuid.UUID) (*LeaveResult, error) {
	panic("not used")
}

func (s *staticRooms) AppendChat(context.Context, string, entity.ChatMessage) (*entity.Room, error) {
	panic("not used")
}

func (s *staticRooms) Snapshot(roomKey string) (*entity.Room, bool) {
	if s.room != nil && s.room.RoomKey == roomKey {
		return s.room, true
	}
	return nil, false
}

func newDeliveryFixture(t *testing.T, room *entity.Room) (IBroadcastService, *frameSink) {
	t.Helper()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	sink := newFrameSink()

	delivery := NewDeliveryService(pubSub, "test.deliveries", &staticRooms{room: room}, sink, nopLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, delivery.Consume(ctx))

	return NewBroadcastService(pubSub, "test.deliveries"), sink
}

func TestRoomFanOutExcludesSender(t *testing.T) {
	aliceConn, bobConn := uuid.New(), uuid.New()
	room := &entity.Room{
		RoomKey: "42",
		Participants: []entity.Participant{
			{Username: "alice", ConnectionId: aliceConn},
			{Username: "bob", ConnectionId: bobConn},
		},
	}
	broadcast, sink := newDeliveryFixture(t, room)

	require.NoError(t, broadcast.ToRoom("42", &aliceConn, "buffer-change", dto.BufferChangePayload{
		RoomKey: "42",
		Content: "package main",
	}))
	sink.waitForSend(t)

	assert.Empty(t, sink.framesFor(aliceConn), "sender must not receive its own edit")

	frames := sink.framesFor(bobConn)
	require.Len(t, frames, 1)
	var envelope dto.Envelope
	require.NoError(t, json.Unmarshal(frames[0], &envelope))
	assert.Equal(t, "buffer-change", envelope.Event)
	var payload dto.BufferChangePayload
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, "package main", payload.Content)
}

func TestTargetedDeliveryReachesListedConnectionsOnly(t *testing.T) {
	aliceConn, bobConn := uuid.New(), uuid.New()
	broadcast, sink := newDeliveryFixture(t, nil)

	require.NoError(t, broadcast.ToConnections([]uuid.UUID{aliceConn, bobConn}, "chat-message", dto.ChatMessageDTO{
		Username: "alice",
		Body:     "psst",
	}))
	sink.waitForSend(t)
	sink.waitForSend(t)

	assert.Len(t, sink.framesFor(aliceConn), 1)
	assert.Len(t, sink.framesFor(bobConn), 1)
}

func TestRoomFanOutForVanishedRoomIsDropped(t *testing.T) {
	broadcast, sink := newDeliveryFixture(t, nil)

	require.NoError(t, broadcast.ToRoom("gone", nil, "disconnected", dto.DisconnectedPayload{}))

	// Give the consumer a moment; nothing should arrive for an unknown room.
	select {
	case <-sink.sent:
		t.Fatal("expected no delivery for a vanished room")
	case <-time.After(200 * time.Millisecond):
	}
}
