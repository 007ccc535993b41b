package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"codecollab-be/internal/constant"
	"codecollab-be/internal/dto"
	"codecollab-be/internal/entity"
	"codecollab-be/internal/pkg/logger"
	"codecollab-be/internal/repository/memory"
	"codecollab-be/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Gateway maps frames from live connections onto the room, broadcast and
// execution services. It owns the connection-to-identity registry; the hub
// only knows raw connections.
type Gateway struct {
	rooms      service.IRoomService
	broadcast  service.IBroadcastService
	executions service.IExecutionService
	registry   *memory.ConnectionRegistry
	validate   *validator.Validate
	logger     logger.ILogger
}

func NewGateway(
	rooms service.IRoomService,
	broadcast service.IBroadcastService,
	executions service.IExecutionService,
	registry *memory.ConnectionRegistry,
	log logger.ILogger,
) *Gateway {
	return &Gateway{
		rooms:      rooms,
		broadcast:  broadcast,
		executions: executions,
		registry:   registry,
		validate:   validator.New(),
		logger:     log,
	}
}

// Dispatch routes one inbound frame. A malformed frame only affects its
// sender; nothing here may take the event loop down.
func (g *Gateway) Dispatch(c *Client, raw []byte) {
	var envelope dto.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		g.sendError(c, "malformed frame")
		return
	}

	switch envelope.Event {
	case constant.EventJoin:
		g.handleJoin(c, envelope.Data)
	case constant.EventBufferChange:
		g.handleBufferChange(c, envelope.Data)
	case constant.EventRequestSync:
		g.handleRequestSync(c, envelope.Data)
	case constant.EventChat:
		g.handleChat(c, envelope.Data)
	case constant.EventExecuteRequest:
		g.handleExecuteRequest(c, envelope.Data)
	default:
		g.logger.Debug("Gateway", "Unknown event", map[string]interface{}{
			"event":         envelope.Event,
			"connection_id": c.ConnId,
		})
	}
}

func (g *Gateway) handleJoin(c *Client, data json.RawMessage) {
	var payload dto.JoinPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		g.sendError(c, "malformed join payload")
		return
	}
	if err := g.validate.Struct(payload); err != nil {
		g.sendError(c, "room key and username are required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Context(), 10*time.Second)
	defer cancel()

	result, err := g.rooms.Join(ctx, payload.RoomKey, payload.Username, c.ConnId)
	if err != nil && !g.tolerable(err, "join") {
		g.sendError(c, "failed to join room")
		return
	}

	g.registry.Put(c.ConnId, memory.Identity{
		Username: payload.Username,
		RoomKey:  payload.RoomKey,
	})

	participants := toParticipantDTOs(result.Room.Participants)

	// Direct reply carries the chat history; the room-wide broadcast does not.
	g.send(c, constant.EventJoined, dto.JoinedPayload{
		Participants: participants,
		Username:     payload.Username,
		ConnectionId: c.ConnId,
		ChatHistory:  toChatMessageDTOs(result.Room.ChatHistory),
	})

	excluded := c.ConnId
	if err := g.broadcast.ToRoom(payload.RoomKey, &excluded, constant.EventJoined, dto.JoinedPayload{
		Participants: participants,
		Username:     payload.Username,
		ConnectionId: c.ConnId,
	}); err != nil {
		g.logger.Error("Gateway", "Failed to broadcast join", map[string]interface{}{"error": err.Error()})
	}

	// Point the joiner at a peer that can provide the current buffer.
	if result.SyncSource != nil {
		g.send(c, constant.EventRequestSync, dto.RequestSyncPayload{
			RoomKey:            payload.RoomKey,
			SourceConnectionId: *result.SyncSource,
		})
	}

	g.logger.Info("Gateway", "Participant joined", map[string]interface{}{
		"room_key":      payload.RoomKey,
		"username":      payload.Username,
		"connection_id": c.ConnId,
		"room_created":  result.RoomCreated,
	})
}

func (g *Gateway) handleBufferChange(c *Client, data json.RawMessage) {
	var payload dto.BufferChangePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}

	if payload.TargetConnectionId != nil {
		// Sync reply: the source addresses the requester only. If the
		// requester is gone the frame is dropped silently.
		target := *payload.TargetConnectionId
		payload.TargetConnectionId = nil
		if err := g.broadcast.ToConnections([]uuid.UUID{target}, constant.EventBufferChange, payload); err != nil {
			g.logger.Error("Gateway", "Failed to forward sync reply", map[string]interface{}{"error": err.Error()})
		}
		return
	}

	// Regular edit: everyone else in the room, never echoed to the sender.
	excluded := c.ConnId
	if err := g.broadcast.ToRoom(payload.RoomKey, &excluded, constant.EventBufferChange, payload); err != nil {
		g.logger.Error("Gateway", "Failed to broadcast buffer change", map[string]interface{}{"error": err.Error()})
	}
}

func (g *Gateway) handleRequestSync(c *Client, data json.RawMessage) {
	var payload dto.RequestSyncPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}

	// Forward to the chosen source with the requester's id swapped in, so the
	// source knows where to address its buffer-change reply. Best effort: a
	// vanished source simply means no delivery.
	if err := g.broadcast.ToConnections(
		[]uuid.UUID{payload.SourceConnectionId},
		constant.EventRequestSync,
		dto.RequestSyncPayload{
			RoomKey:            payload.RoomKey,
			SourceConnectionId: c.ConnId,
		},
	); err != nil {
		g.logger.Error("Gateway", "Failed to forward sync request", map[string]interface{}{"error": err.Error()})
	}
}

func (g *Gateway) handleChat(c *Client, data json.RawMessage) {
	var payload dto.ChatPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	if err := g.validate.Struct(payload); err != nil {
		g.sendError(c, "chat requires room key, username and body")
		return
	}

	ctx, cancel := context.WithTimeout(c.Context(), 10*time.Second)
	defer cancel()

	msg := entity.ChatMessage{
		Username:  payload.Username,
		Body:      payload.Body,
		Recipient: payload.Recipient,
	}

	room, err := g.rooms.AppendChat(ctx, payload.RoomKey, msg)
	if err != nil {
		if errors.Is(err, service.ErrUnknownRoom) {
			return
		}
		if !g.tolerable(err, "chat") {
			g.sendError(c, "failed to send message")
			return
		}
	}

	// The message is durably recorded at this point; find the recorded copy
	// so the delivered timestamp matches the history.
	recorded := room.ChatHistory[len(room.ChatHistory)-1]

	targets, err := service.ChatTargets(room, c.ConnId, recorded)
	if err != nil {
		// Unknown recipient: recorded but undelivered, by design.
		g.logger.Warn("Gateway", "Chat recipient not in room", map[string]interface{}{
			"room_key":  payload.RoomKey,
			"recipient": payload.Recipient,
		})
		return
	}

	if err := g.broadcast.ToConnections(targets, constant.EventChatMessage, dto.ChatMessageDTO{
		Username:  recorded.Username,
		Body:      recorded.Body,
		Timestamp: recorded.Timestamp,
		Recipient: recorded.Recipient,
	}); err != nil {
		g.logger.Error("Gateway", "Failed to deliver chat", map[string]interface{}{"error": err.Error()})
	}
}

func (g *Gateway) handleExecuteRequest(c *Client, data json.RawMessage) {
	var payload dto.ExecuteRequestPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	if err := g.validate.Struct(payload); err != nil {
		g.sendError(c, "unsupported language or empty source")
		return
	}

	err := g.executions.Submit(c.Context(), c.ConnId, payload.Language, payload.Source)
	if errors.Is(err, service.ErrExecutionQueueFull) {
		g.send(c, constant.EventExecuteResult, dto.ExecuteResultPayload{
			Stderr: "execution queue is full, try again shortly",
		})
	}
}

// HandleDisconnect tears down a connection's membership. Safe to call for
// connections that never joined, and idempotent for repeated disconnects.
func (g *Gateway) HandleDisconnect(c *Client) {
	identity, ok := g.registry.Get(c.ConnId)
	g.registry.Delete(c.ConnId)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := g.rooms.Leave(ctx, identity.RoomKey, c.ConnId)
	if err != nil && !g.tolerable(err, "leave") {
		g.logger.Error("Gateway", "Failed to process leave", map[string]interface{}{"error": err.Error()})
		return
	}
	if !result.Found {
		return
	}

	if err := g.broadcast.ToRoom(identity.RoomKey, nil, constant.EventDisconnected, dto.DisconnectedPayload{
		ConnectionId: c.ConnId,
		Username:     result.Username,
	}); err != nil {
		g.logger.Error("Gateway", "Failed to broadcast departure", map[string]interface{}{"error": err.Error()})
	}

	g.logger.Info("Gateway", "Participant left", map[string]interface{}{
		"room_key":      identity.RoomKey,
		"username":      result.Username,
		"connection_id": c.ConnId,
		"room_deleted":  result.RoomDeleted,
	})
}

// tolerable reports whether err is a persistence failure the session can
// survive. Live state is already mutated; the failure is logged and the
// request proceeds.
func (g *Gateway) tolerable(err error, op string) bool {
	var persistErr *service.PersistenceError
	if errors.As(err, &persistErr) {
		g.logger.Error("Gateway", "Room store write failed", map[string]interface{}{
			"op":    op,
			"error": persistErr.Error(),
		})
		return true
	}
	return false
}

// send delivers an event to the calling connection only.
func (g *Gateway) send(c *Client, event string, payload interface{}) {
	if err := g.broadcast.ToConnections([]uuid.UUID{c.ConnId}, event, payload); err != nil {
		g.logger.Error("Gateway", "Failed to send frame", map[string]interface{}{"error": err.Error()})
	}
}

func (g *Gateway) sendError(c *Client, message string) {
	g.send(c, constant.EventError, dto.ErrorPayload{Message: message})
}

func toParticipantDTOs(participants []entity.Participant) []dto.ParticipantDTO {
	out := make([]dto.ParticipantDTO, 0, len(participants))
	for _, p := range participants {
		out = append(out, dto.ParticipantDTO{
			Username:     p.Username,
			ConnectionId: p.ConnectionId,
		})
	}
	return out
}

func toChatMessageDTOs(history []entity.ChatMessage) []dto.ChatMessageDTO {
	out := make([]dto.ChatMessageDTO, 0, len(history))
	for _, m := range history {
		out = append(out, dto.ChatMessageDTO{
			Username:  m.Username,
			Body:      m.Body,
			Timestamp: m.Timestamp,
			Recipient: m.Recipient,
		})
	}
	return out
}
