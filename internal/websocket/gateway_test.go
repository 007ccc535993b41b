package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"codecollab-be/internal/constant"
	"codecollab-be/internal/dto"
	"codecollab-be/internal/entity"
	"codecollab-be/internal/repository/memory"
	"codecollab-be/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

type broadcastCall struct {
	RoomKey string
	Exclude *uuid.UUID
	Conns   []uuid.UUID
	Event   string
	Payload interface{}
}

// recordingBroadcast captures fan-out decisions instead of publishing.
type recordingBroadcast struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (r *recordingBroadcast) ToRoom(roomKey string, exclude *uuid.UUID, event string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, broadcastCall{RoomKey: roomKey, Exclude: exclude, Event: event, Payload: payload})
	return nil
}

func (r *recordingBroadcast) ToConnections(conns []uuid.UUID, event string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, broadcastCall{Conns: conns, Event: event, Payload: payload})
	return nil
}

func (r *recordingBroadcast) byEvent(event string) []broadcastCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []broadcastCall
	for _, c := range r.calls {
		if c.Event == event {
			out = append(out, c)
		}
	}
	return out
}

type scriptedRooms struct {
	joinResult  *service.JoinResult
	joinErr     error
	leaveResult *service.LeaveResult
	chatRoom    *entity.Room
	chatErr     error

	joinCalls  int
	leaveCalls int
}

func (s *scriptedRooms) Join(context.Context, string, string, uuid.UUID) (*service.JoinResult, error) {
	s.joinCalls++
	return s.joinResult, s.joinErr
}

func (s *scriptedRooms) Leave(context.Context, string, uuid.UUID) (*service.LeaveResult, error) {
	s.leaveCalls++
	return s.leaveResult, nil
}

func (s *scriptedRooms) AppendChat(_ context.Context, _ string, msg entity.ChatMessage) (*entity.Room, error) {
	if s.chatErr != nil {
		return nil, s.chatErr
	}
	room := *s.chatRoom
	msg.Recipient = orEveryone(msg.Recipient)
	room.ChatHistory = append(room.ChatHistory, msg)
	return &room, nil
}

func orEveryone(recipient string) string {
	if recipient == "" {
		return constant.RecipientEveryone
	}
	return recipient
}

func (s *scriptedRooms) Snapshot(string) (*entity.Room, bool) { return nil, false }

type recordingExecutions struct {
	submitErr error
	submits   []dto.ExecuteRequestPayload
}

func (r *recordingExecutions) Start(context.Context) {}

func (r *recordingExecutions) Submit(_ context.Context, _ uuid.UUID, language, source string) error {
	r.submits = append(r.submits, dto.ExecuteRequestPayload{Language: language, Source: source})
	return r.submitErr
}

func newTestClient() *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{ConnId: uuid.New(), ctx: ctx, cancel: cancel}
}

func frame(t *testing.T, event string, payload interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(dto.Envelope{Event: event, Data: data})
	require.NoError(t, err)
	return raw
}

func TestJoinRepliesAndBroadcastsAndHintsSync(t *testing.T) {
	aliceConn := uuid.New()
	client := newTestClient()

	rooms := &scriptedRooms{joinResult: &service.JoinResult{
		Room: &entity.Room{
			RoomKey: "42",
			Participants: []entity.Participant{
				{Username: "alice", ConnectionId: aliceConn},
				{Username: "bob", ConnectionId: client.ConnId},
			},
			ChatHistory: []entity.ChatMessage{{Username: "alice", Body: "hi", Recipient: constant.RecipientEveryone}},
		},
		SyncSource: &aliceConn,
	}}
	broadcast := &recordingBroadcast{}
	registry := memory.NewConnectionRegistry()
	g := NewGateway(rooms, broadcast, &recordingExecutions{}, registry, nopLogger{})

	g.Dispatch(client, frame(t, constant.EventJoin, dto.JoinPayload{RoomKey: "42", Username: "bob"}))

	identity, ok := registry.Get(client.ConnId)
	require.True(t, ok)
	assert.Equal(t, "bob", identity.Username)
	assert.Equal(t, "42", identity.RoomKey)

	joined := broadcast.byEvent(constant.EventJoined)
	require.Len(t, joined, 2)

	// Direct reply to the joiner carries history.
	reply := joined[0]
	assert.Equal(t, []uuid.UUID{client.ConnId}, reply.Conns)
	replyPayload := reply.Payload.(dto.JoinedPayload)
	assert.Len(t, replyPayload.ChatHistory, 1)
	assert.Len(t, replyPayload.Participants, 2)

	// Room broadcast excludes the joiner and omits history.
	broadcasted := joined[1]
	assert.Equal(t, "42", broadcasted.RoomKey)
	require.NotNil(t, broadcasted.Exclude)
	assert.Equal(t, client.ConnId, *broadcasted.Exclude)
	assert.Empty(t, broadcasted.Payload.(dto.JoinedPayload).ChatHistory)

	// Joiner is pointed at alice for the buffer sync.
	hints := broadcast.byEvent(constant.EventRequestSync)
	require.Len(t, hints, 1)
	assert.Equal(t, []uuid.UUID{client.ConnId}, hints[0].Conns)
	assert.Equal(t, aliceConn, hints[0].Payload.(dto.RequestSyncPayload).SourceConnectionId)
}

func TestJoinWithEmptyUsernameOnlyErrorsTheCaller(t *testing.T) {
	client := newTestClient()
	rooms := &scriptedRooms{}
	broadcast := &recordingBroadcast{}
	g := NewGateway(rooms, broadcast, &recordingExecutions{}, memory.NewConnectionRegistry(), nopLogger{})

	g.Dispatch(client, frame(t, constant.EventJoin, dto.JoinPayload{RoomKey: "42", Username: ""}))

	assert.Zero(t, rooms.joinCalls, "validation failures must not reach the registry")
	errs := broadcast.byEvent(constant.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, []uuid.UUID{client.ConnId}, errs[0].Conns)
	assert.Empty(t, broadcast.byEvent(constant.EventJoined))
}

func TestBufferChangeBroadcastNeverEchoesSender(t *testing.T) {
	client := newTestClient()
	broadcast := &recordingBroadcast{}
	g := NewGateway(&scriptedRooms{}, broadcast, &recordingExecutions{}, memory.NewConnectionRegistry(), nopLogger{})

	g.Dispatch(client, frame(t, constant.EventBufferChange, dto.BufferChangePayload{RoomKey: "42", Content: "x = 1"}))

	calls := broadcast.byEvent(constant.EventBufferChange)
	require.Len(t, calls, 1)
	assert.Equal(t, "42", calls[0].RoomKey)
	require.NotNil(t, calls[0].Exclude)
	assert.Equal(t, client.ConnId, *calls[0].Exclude)
}

func TestBufferChangeSyncReplyIsTargeted(t *testing.T) {
	client := newTestClient()
	requester := uuid.New()
	broadcast := &recordingBroadcast{}
	g := NewGateway(&scriptedRooms{}, broadcast, &recordingExecutions{}, memory.NewConnectionRegistry(), nopLogger{})

	g.Dispatch(client, frame(t, constant.EventBufferChange, dto.BufferChangePayload{
		RoomKey:            "42",
		Content:            "x = 1",
		TargetConnectionId: &requester,
	}))

	calls := broadcast.byEvent(constant.EventBufferChange)
	require.Len(t, calls, 1)
	assert.Equal(t, []uuid.UUID{requester}, calls[0].Conns)
	assert.Nil(t, calls[0].Payload.(dto.BufferChangePayload).TargetConnectionId)
}

func TestRequestSyncForwardsWithRequesterIdentity(t *testing.T) {
	client := newTestClient()
	source := uuid.New()
	broadcast := &recordingBroadcast{}
	g := NewGateway(&scriptedRooms{}, broadcast, &recordingExecutions{}, memory.NewConnectionRegistry(), nopLogger{})

	g.Dispatch(client, frame(t, constant.EventRequestSync, dto.RequestSyncPayload{
		RoomKey:            "42",
		SourceConnectionId: source,
	}))

	calls := broadcast.byEvent(constant.EventRequestSync)
	require.Len(t, calls, 1)
	assert.Equal(t, []uuid.UUID{source}, calls[0].Conns)
	assert.Equal(t, client.ConnId, calls[0].Payload.(dto.RequestSyncPayload).SourceConnectionId)
}

func TestChatTargetedDelivery(t *testing.T) {
	client := newTestClient()
	bobConn, carolConn := uuid.New(), uuid.New()
	rooms := &scriptedRooms{chatRoom: &entity.Room{
		RoomKey: "42",
		Participants: []entity.Participant{
			{Username: "alice", ConnectionId: client.ConnId},
			{Username: "bob", ConnectionId: bobConn},
			{Username: "carol", ConnectionId: carolConn},
		},
	}}
	broadcast := &recordingBroadcast{}
	g := NewGateway(rooms, broadcast, &recordingExecutions{}, memory.NewConnectionRegistry(), nopLogger{})

	g.Dispatch(client, frame(t, constant.EventChat, dto.ChatPayload{
		RoomKey:   "42",
		Username:  "alice",
		Body:      "psst",
		Recipient: "bob",
	}))

	calls := broadcast.byEvent(constant.EventChatMessage)
	require.Len(t, calls, 1)
	assert.ElementsMatch(t, []uuid.UUID{client.ConnId, bobConn}, calls[0].Conns)
	assert.NotContains(t, calls[0].Conns, carolConn)
}

func TestChatUnknownRecipientRecordedButUndelivered(t *testing.T) {
	client := newTestClient()
	rooms := &scriptedRooms{chatRoom: &entity.Room{
		RoomKey: "42",
		Participants: []entity.Participant{
			{Username: "alice", ConnectionId: client.ConnId},
		},
	}}
	broadcast := &recordingBroadcast{}
	g := NewGateway(rooms, broadcast, &recordingExecutions{}, memory.NewConnectionRegistry(), nopLogger{})

	g.Dispatch(client, frame(t, constant.EventChat, dto.ChatPayload{
		RoomKey:   "42",
		Username:  "alice",
		Body:      "anyone?",
		Recipient: "mallory",
	}))

	assert.Empty(t, broadcast.byEvent(constant.EventChatMessage))
	assert.Empty(t, broadcast.byEvent(constant.EventError), "unknown recipient is not an error to the sender")
}

func TestExecuteRequestQueueFullReportsToSender(t *testing.T) {
	client := newTestClient()
	broadcast := &recordingBroadcast{}
	executions := &recordingExecutions{submitErr: service.ErrExecutionQueueFull}
	g := NewGateway(&scriptedRooms{}, broadcast, executions, memory.NewConnectionRegistry(), nopLogger{})

	g.Dispatch(client, frame(t, constant.EventExecuteRequest, dto.ExecuteRequestPayload{
		Language: constant.LanguageCpp,
		Source:   "int main(){}",
	}))

	require.Len(t, executions.submits, 1)
	results := broadcast.byEvent(constant.EventExecuteResult)
	require.Len(t, results, 1)
	assert.Equal(t, []uuid.UUID{client.ConnId}, results[0].Conns)
}

func TestDisconnectBroadcastsDepartureOnce(t *testing.T) {
	client := newTestClient()
	rooms := &scriptedRooms{leaveResult: &service.LeaveResult{
		Found:    true,
		Username: "alice",
		Room:     &entity.Room{RoomKey: "42"},
	}}
	broadcast := &recordingBroadcast{}
	registry := memory.NewConnectionRegistry()
	registry.Put(client.ConnId, memory.Identity{Username: "alice", RoomKey: "42"})
	g := NewGateway(rooms, broadcast, &recordingExecutions{}, registry, nopLogger{})

	g.HandleDisconnect(client)
	g.HandleDisconnect(client) // second disconnect of the same id is a no-op

	assert.Equal(t, 1, rooms.leaveCalls)
	departures := broadcast.byEvent(constant.EventDisconnected)
	require.Len(t, departures, 1)
	payload := departures[0].Payload.(dto.DisconnectedPayload)
	assert.Equal(t, "alice", payload.Username)
	assert.Equal(t, client.ConnId, payload.ConnectionId)

	_, ok := registry.Get(client.ConnId)
	assert.False(t, ok)
}
