package memory

import (
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Identity is what the gateway knows about a live connection once it has
// joined a room.
type Identity struct {
	Username string
	RoomKey  string
}

// ConnectionRegistry maps connection ids to identities. It is an owned object
// with an explicit lifecycle: entries are inserted on join and removed on
// disconnect; a second removal of the same id is a no-op.
type ConnectionRegistry struct {
	cache *cache.Cache
}

func NewConnectionRegistry() *ConnectionRegistry {
	// Entries never expire on their own; disconnect is the only eviction path.
	return &ConnectionRegistry{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

func (r *ConnectionRegistry) Put(connId uuid.UUID, identity Identity) {
	r.cache.Set(connId.String(), identity, cache.NoExpiration)
}

func (r *ConnectionRegistry) Get(connId uuid.UUID) (Identity, bool) {
	if x, found := r.cache.Get(connId.String()); found {
		return x.(Identity), true
	}
	return Identity{}, false
}

func (r *ConnectionRegistry) Delete(connId uuid.UUID) {
	r.cache.Delete(connId.String())
}

func (r *ConnectionRegistry) Len() int {
	return r.cache.ItemCount()
}
