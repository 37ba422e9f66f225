package registry

import (
	"context"
	"sync"

	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/domain"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/metrics"
)

type roomEntry struct {
	room *domain.Room
	// initPending is non-nil while a create-call RPC is in flight, so
	// concurrent joins of an uninitialized room wait instead of issuing
	// a duplicate create-call.
	initPending chan struct{}
}

// RoomRegistry creates and looks up rooms by call id. Rooms are created
// lazily and retained for the life of the call to tolerate reconnects.
type RoomRegistry struct {
	relay domain.MediaRelay
	mu    sync.Mutex
	rooms map[string]*roomEntry
}

func NewRoomRegistry(relay domain.MediaRelay) *RoomRegistry {
	return &RoomRegistry{
		relay: relay,
		rooms: make(map[string]*roomEntry),
	}
}

func (r *RoomRegistry) Get(roomID string) (*domain.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}
	return e.room, true
}

func (r *RoomRegistry) Rooms() []*domain.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	rooms := make([]*domain.Room, 0, len(r.rooms))
	for _, e := range r.rooms {
		rooms = append(rooms, e.room)
	}
	return rooms
}

// EnsureMediaRoom returns the room with MediaCapabilities populated,
// issuing the one-time create-call RPC on first use. Single-flight per
// room id.
func (r *RoomRegistry) EnsureMediaRoom(ctx context.Context, roomID, hostID string) (*domain.Room, error) {
	for {
		r.mu.Lock()
		e := r.getOrCreateLocked(roomID, hostID)
		if e.room.MediaCapabilities != nil {
			r.mu.Unlock()
			return e.room, nil
		}
		if e.initPending != nil {
			wait := e.initPending
			r.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		done := make(chan struct{})
		e.initPending = done
		r.mu.Unlock()

		caps, err := r.relay.CreateCall(ctx, roomID)

		r.mu.Lock()
		e.initPending = nil
		if err == nil {
			e.room.MediaCapabilities = caps
		}
		r.mu.Unlock()
		close(done)

		if err != nil {
			return nil, err
		}
		return e.room, nil
	}
}

func (r *RoomRegistry) getOrCreateLocked(roomID, hostID string) *roomEntry {
	e, ok := r.rooms[roomID]
	if !ok {
		e = &roomEntry{room: domain.NewRoom(roomID, hostID)}
		r.rooms[roomID] = e
		metrics.ActiveRooms.Set(float64(len(r.rooms)))
	}
	return e
}
