package room

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry owns every Room, keyed by case-sensitive name. Rooms are never
// removed, even when empty.
type Registry struct {
	logger *zap.SugaredLogger
	mu     sync.Mutex
	rooms  map[string]*Room
}

// NewRegistry creates an empty registry. A nil logger disables logging.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger: logger.Named("room").Sugar(),
		rooms:  make(map[string]*Room),
	}
}

// GetOrCreate returns the room called name, creating it on first use.
// Concurrent callers asking for the same name always get the same Room.
func (r *Registry) GetOrCreate(name string) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[name]; ok {
		return room
	}

	room := newRoom(name, r.logger)
	r.rooms[name] = room
	r.logger.Infow("room created", "room", name, "rooms", len(r.rooms))
	return room
}

// Len returns the number of rooms created so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.rooms)
}

// Names returns the sorted room names.
func (r *Registry) Names() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.rooms))
	for name := range r.rooms {
		names = append(names, name)
	}
	r.mu.Unlock()

	sort.Strings(names)
	return names
}
