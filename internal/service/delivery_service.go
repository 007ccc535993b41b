package service

import (
	"context"
	"encoding/json"

	"codecollab-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// FrameSender pushes an encoded frame to one connection. Implemented by the
// websocket hub; returns false when the connection is not (or no longer)
// present, which the router treats as a silent drop.
type FrameSender interface {
	SendTo(connId uuid.UUID, frame []byte) bool
}

type IDeliveryService interface {
	Consume(ctx context.Context) error
}

// deliveryService drains the in-process bus and resolves each Delivery to
// concrete connections. Room fan-out reads the membership snapshot at
// delivery time, so a participant who left between publish and consume is
// skipped rather than erred on.
type deliveryService struct {
	pubSub *gochannel.GoChannel
	topic  string
	rooms  IRoomService
	sender FrameSender
	logger logger.ILogger
}

func NewDeliveryService(
	pubSub *gochannel.GoChannel,
	topic string,
	rooms IRoomService,
	sender FrameSender,
	log logger.ILogger,
) IDeliveryService {
	return &deliveryService{
		pubSub: pubSub,
		topic:  topic,
		rooms:  rooms,
		sender: sender,
		logger: log,
	}
}

func (s *deliveryService) Consume(ctx context.Context) error {
	messages, err := s.pubSub.Subscribe(ctx, s.topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.processMessage(msg)
		}
	}()

	return nil
}

func (s *deliveryService) processMessage(msg *message.Message) {
	defer msg.Ack()

	var d Delivery
	if err := json.Unmarshal(msg.Payload, &d); err != nil {
		s.logger.Error("DeliveryService", "Failed to unmarshal delivery", map[string]interface{}{"error": err.Error()})
		return
	}

	frame, err := EncodeFrame(d.Event, d.Payload)
	if err != nil {
		s.logger.Error("DeliveryService", "Failed to encode frame", map[string]interface{}{"error": err.Error()})
		return
	}

	if len(d.TargetConnectionIds) > 0 {
		for _, connId := range d.TargetConnectionIds {
			s.sender.SendTo(connId, frame)
		}
		return
	}

	if d.RoomKey == "" {
		return
	}
	room, ok := s.rooms.Snapshot(d.RoomKey)
	if !ok {
		// Room emptied between publish and consume; nothing left to notify.
		return
	}
	for _, p := range room.Participants {
		if d.ExcludeConnectionId != nil && p.ConnectionId == *d.ExcludeConnectionId {
			continue
		}
		s.sender.SendTo(p.ConnectionId, frame)
	}
}
