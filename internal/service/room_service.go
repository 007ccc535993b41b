package service

import (
	"context"
	"sync"
	"time"

	"codecollab-be/internal/constant"
	"codecollab-be/internal/entity"
	"codecollab-be/internal/pkg/logger"
	"codecollab-be/internal/repository/contract"
	"codecollab-be/pkg/events"
	pktNats "codecollab-be/pkg/nats"

	"github.com/google/uuid"
)

// JoinResult describes a completed join. Room is a snapshot taken while the
// room lock was held; SyncSource is set when the room already had members, in
// which case the joiner should ask that connection for the current buffer.
type JoinResult struct {
	Room        *entity.Room
	RoomCreated bool
	SyncSource  *uuid.UUID
}

// LeaveResult describes a completed leave. Found is false when the connection
// was not a member (second disconnect of the same id is a no-op).
type LeaveResult struct {
	Found       bool
	Username    string
	Room        *entity.Room
	RoomDeleted bool
}

type IRoomService interface {
	Join(ctx context.Context, roomKey, username string, connId uuid.UUID) (*JoinResult, error)
	Leave(ctx context.Context, roomKey string, connId uuid.UUID) (*LeaveResult, error)
	AppendChat(ctx context.Context, roomKey string, msg entity.ChatMessage) (*entity.Room, error)
	Snapshot(roomKey string) (*entity.Room, bool)
}

// roomService is the registry of live rooms. Mutations are serialized per
// room key: two clients joining the same fresh room concurrently both end up
// in the participant list. Every mutation is written through to the room
// store; a store failure is reported as *PersistenceError without rolling
// back the in-memory state.
type roomService struct {
	mu    sync.RWMutex
	rooms map[string]*roomState

	repo    contract.RoomRepository
	natsPub *pktNats.Publisher
	logger  logger.ILogger
}

type roomState struct {
	mu      sync.Mutex
	deleted bool
	room    entity.Room
}

func NewRoomService(repo contract.RoomRepository, natsPub *pktNats.Publisher, log logger.ILogger) IRoomService {
	return &roomService{
		rooms:   make(map[string]*roomState),
		repo:    repo,
		natsPub: natsPub,
		logger:  log,
	}
}

// lockRoom returns the state for key with its mutex held, creating the room
// if needed. The retry loop covers the window where another goroutine empties
// and deletes the room between the map lookup and the state lock.
func (s *roomService) lockRoom(key string) (*roomState, bool) {
	for {
		s.mu.Lock()
		st, ok := s.rooms[key]
		created := false
		if !ok {
			now := time.Now()
			st = &roomState{room: entity.Room{
				RoomKey:      key,
				Participants: []entity.Participant{},
				ChatHistory:  []entity.ChatMessage{},
				CreatedAt:    now,
				UpdatedAt:    now,
			}}
			s.rooms[key] = st
			created = true
		}
		s.mu.Unlock()

		st.mu.Lock()
		if !st.deleted {
			return st, created
		}
		st.mu.Unlock()
	}
}

// lookupRoom is lockRoom without the create path.
func (s *roomService) lookupRoom(key string) *roomState {
	s.mu.RLock()
	st, ok := s.rooms[key]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	st.mu.Lock()
	if st.deleted {
		st.mu.Unlock()
		return nil
	}
	return st
}

// dropRoom removes an emptied room from the registry. Caller holds st.mu.
func (s *roomService) dropRoom(key string, st *roomState) {
	st.deleted = true
	s.mu.Lock()
	if cur, ok := s.rooms[key]; ok && cur == st {
		delete(s.rooms, key)
	}
	s.mu.Unlock()
}

func snapshotRoom(r *entity.Room) *entity.Room {
	cp := *r
	cp.Participants = append([]entity.Participant(nil), r.Participants...)
	cp.ChatHistory = append([]entity.ChatMessage(nil), r.ChatHistory...)
	return &cp
}

func (s *roomService) Join(ctx context.Context, roomKey, username string, connId uuid.UUID) (*JoinResult, error) {
	if username == "" {
		return nil, ErrEmptyUsername
	}

	st, created := s.lockRoom(roomKey)
	defer st.mu.Unlock()

	// Oldest member by insertion order, excluding the joiner, answers sync
	// requests. The rule just has to be deterministic.
	var syncSource *uuid.UUID
	for i := range st.room.Participants {
		if st.room.Participants[i].Username != username {
			id := st.room.Participants[i].ConnectionId
			syncSource = &id
			break
		}
	}

	if p := st.room.Participant(username); p != nil {
		// Rejoin under the same username swaps the connection in place.
		p.ConnectionId = connId
	} else {
		st.room.Participants = append(st.room.Participants, entity.Participant{
			Username:     username,
			ConnectionId: connId,
		})
	}
	st.room.UpdatedAt = time.Now()

	result := &JoinResult{
		Room:        snapshotRoom(&st.room),
		RoomCreated: created,
		SyncSource:  syncSource,
	}

	if created {
		go s.publishEvent(events.NewRoomCreated(roomKey))
	}

	if err := s.repo.Upsert(ctx, result.Room); err != nil {
		return result, &PersistenceError{Op: "join", Err: err}
	}
	return result, nil
}

func (s *roomService) Leave(ctx context.Context, roomKey string, connId uuid.UUID) (*LeaveResult, error) {
	st := s.lookupRoom(roomKey)
	if st == nil {
		return &LeaveResult{}, nil
	}
	defer st.mu.Unlock()

	idx := -1
	for i := range st.room.Participants {
		if st.room.Participants[i].ConnectionId == connId {
			idx = i
			break
		}
	}
	if idx == -1 {
		return &LeaveResult{}, nil
	}

	username := st.room.Participants[idx].Username
	st.room.Participants = append(st.room.Participants[:idx], st.room.Participants[idx+1:]...)
	st.room.UpdatedAt = time.Now()

	result := &LeaveResult{
		Found:    true,
		Username: username,
		Room:     snapshotRoom(&st.room),
	}

	if len(st.room.Participants) == 0 {
		s.dropRoom(roomKey, st)
		result.RoomDeleted = true
		go s.publishEvent(events.NewRoomDeleted(roomKey))
		if err := s.repo.Delete(ctx, roomKey); err != nil {
			return result, &PersistenceError{Op: "leave", Err: err}
		}
		return result, nil
	}

	if err := s.repo.Upsert(ctx, result.Room); err != nil {
		return result, &PersistenceError{Op: "leave", Err: err}
	}
	return result, nil
}

func (s *roomService) AppendChat(ctx context.Context, roomKey string, msg entity.ChatMessage) (*entity.Room, error) {
	st := s.lookupRoom(roomKey)
	if st == nil {
		return nil, ErrUnknownRoom
	}
	defer st.mu.Unlock()

	if msg.Recipient == "" {
		msg.Recipient = constant.RecipientEveryone
	}
	// Arrival order at the registry is the authoritative order.
	msg.Timestamp = time.Now()

	st.room.ChatHistory = append(st.room.ChatHistory, msg)
	st.room.UpdatedAt = msg.Timestamp

	snapshot := snapshotRoom(&st.room)

	// Persist before the caller publishes: a crash after this point loses
	// only the live notification, never the record.
	if err := s.repo.Upsert(ctx, snapshot); err != nil {
		return snapshot, &PersistenceError{Op: "chat", Err: err}
	}
	return snapshot, nil
}

func (s *roomService) Snapshot(roomKey string) (*entity.Room, bool) {
	st := s.lookupRoom(roomKey)
	if st == nil {
		return nil, false
	}
	defer st.mu.Unlock()
	return snapshotRoom(&st.room), true
}

// publishEvent runs off the room lock; lifecycle events are best effort and
// must not slow down membership changes.
func (s *roomService) publishEvent(event events.Event) {
	if s.natsPub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.natsPub.Publish(ctx, event); err != nil {
		s.logger.Warn("RoomService", "Failed to publish lifecycle event", map[string]interface{}{
			"event": event.EventType(),
			"error": err.Error(),
		})
	}
}

// ChatTargets resolves the delivery set for a recorded chat message.
// Everyone-messages go to every member including the sender; targeted
// messages go to the sender and the named recipient only. An unknown
// recipient yields ErrUnknownRecipient with no targets: the message stays
// recorded, delivery silently no-ops.
func ChatTargets(room *entity.Room, senderConn uuid.UUID, msg entity.ChatMessage) ([]uuid.UUID, error) {
	if msg.Recipient == "" || msg.Recipient == constant.RecipientEveryone {
		targets := make([]uuid.UUID, 0, len(room.Participants))
		for _, p := range room.Participants {
			targets = append(targets, p.ConnectionId)
		}
		return targets, nil
	}

	recipient := room.Participant(msg.Recipient)
	if recipient == nil {
		return nil, ErrUnknownRecipient
	}
	if recipient.ConnectionId == senderConn {
		return []uuid.UUID{senderConn}, nil
	}
	return []uuid.UUID{senderConn, recipient.ConnectionId}, nil
}
