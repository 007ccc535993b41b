package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"codecollab-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "cluster_frames"

// Hub tracks live connections by connection id and pushes frames to them.
// It knows nothing about rooms; membership lives in the room service. When a
// redis client is configured, frames for connections not present locally are
// mirrored to other instances.
type Hub struct {
	clients map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ConnId] = client
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"connection_id": client.ConnId})

		case client := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[client.ConnId]; ok && cur == client {
				delete(h.clients, client.ConnId)
				close(client.Send)
				h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"connection_id": client.ConnId})
			}
			h.mu.Unlock()
		}
	}
}

// SendTo pushes a frame to one connection. Returns false when the connection
// is not registered locally; in that case the frame is mirrored to the
// cluster channel so another instance can deliver it.
func (h *Hub) SendTo(connId uuid.UUID, frame []byte) bool {
	h.mu.RLock()
	client, ok := h.clients[connId]
	h.mu.RUnlock()

	if ok {
		select {
		case client.Send <- frame:
		default:
			h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{"connection_id": connId})
			client.cancel()
		}
		return true
	}

	if h.rdb != nil {
		payload, _ := json.Marshal(map[string]interface{}{
			"target_connection_id": connId.String(),
			"frame":                json.RawMessage(frame),
		})
		h.rdb.Publish(context.Background(), clusterChannel, payload)
	}
	return false
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload struct {
			TargetConnectionId string          `json:"target_connection_id"`
			Frame              json.RawMessage `json:"frame"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Failed to parse cluster frame", map[string]interface{}{"error": err.Error()})
			continue
		}

		connId, err := uuid.Parse(payload.TargetConnectionId)
		if err != nil {
			continue
		}

		h.mu.RLock()
		client, ok := h.clients[connId]
		h.mu.RUnlock()
		if ok {
			select {
			case client.Send <- []byte(payload.Frame):
			default:
				client.cancel()
			}
		}
	}
}
