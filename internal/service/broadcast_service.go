package service

import (
	"encoding/json"

	"codecollab-be/internal/dto"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// Delivery is the envelope carried over the in-process bus between producers
// (gateway, execution worker) and the delivery consumer that owns the fan-out.
// Exactly one of RoomKey or TargetConnectionIds is set.
type Delivery struct {
	Event               string          `json:"event"`
	RoomKey             string          `json:"room_key,omitempty"`
	ExcludeConnectionId *uuid.UUID      `json:"exclude_connection_id,omitempty"`
	TargetConnectionIds []uuid.UUID     `json:"target_connection_ids,omitempty"`
	Payload             json.RawMessage `json:"payload"`
}

type IBroadcastService interface {
	// ToRoom fans the event out to every current member of the room,
	// optionally excluding one connection (the sender of a buffer change).
	ToRoom(roomKey string, exclude *uuid.UUID, event string, payload interface{}) error

	// ToConnections delivers the event to an explicit set of connections.
	ToConnections(conns []uuid.UUID, event string, payload interface{}) error
}

type broadcastService struct {
	pubSub *gochannel.GoChannel
	topic  string
}

func NewBroadcastService(pubSub *gochannel.GoChannel, topic string) IBroadcastService {
	return &broadcastService{pubSub: pubSub, topic: topic}
}

func (s *broadcastService) ToRoom(roomKey string, exclude *uuid.UUID, event string, payload interface{}) error {
	return s.publish(Delivery{
		Event:               event,
		RoomKey:             roomKey,
		ExcludeConnectionId: exclude,
	}, payload)
}

func (s *broadcastService) ToConnections(conns []uuid.UUID, event string, payload interface{}) error {
	if len(conns) == 0 {
		return nil
	}
	return s.publish(Delivery{
		Event:               event,
		TargetConnectionIds: conns,
	}, payload)
}

func (s *broadcastService) publish(d Delivery, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	d.Payload = raw

	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.pubSub.Publish(s.topic, message.NewMessage(watermill.NewUUID(), data))
}

// EncodeFrame builds the wire frame a client receives for a delivery.
func EncodeFrame(event string, payload json.RawMessage) ([]byte, error) {
	return json.Marshal(dto.Envelope{Event: event, Data: payload})
}
