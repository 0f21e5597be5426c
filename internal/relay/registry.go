package relay

import (
	"sort"
	"sync"

	"github.com/Tyrowin/roomrelay/internal/metrics"
)

// RoomInfo is a point-in-time view of one room.
type RoomInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// Registry tracks which connections belong to which room. A connection is a
// member of at most one room at a time and appears in it at most once.
// Rooms are created on first join and dropped when their last member leaves.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Conn // room -> conn id -> conn
	roomOf map[string]string          // conn id -> room
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]map[string]Conn),
		roomOf: make(map[string]string),
	}
}

// Join adds c to room. If c already belongs to another room it is moved.
// Joining the same room twice is a no-op.
func (r *Registry) Join(room string, c Conn) {
	if c == nil {
		return
	}
	id := c.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.roomOf[id]; ok {
		if prev == room {
			return
		}
		r.removeLocked(prev, id)
	}

	members := r.rooms[room]
	if members == nil {
		members = make(map[string]Conn)
		r.rooms[room] = members
	}
	members[id] = c
	r.roomOf[id] = room
	r.reportLocked()
}

// Leave removes c from room and reports whether it was a member.
func (r *Registry) Leave(room string, c Conn) bool {
	if c == nil {
		return false
	}
	id := c.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.roomOf[id]; !ok || cur != room {
		return false
	}
	r.removeLocked(room, id)
	r.reportLocked()
	return true
}

func (r *Registry) removeLocked(room, id string) {
	delete(r.roomOf, id)
	members := r.rooms[room]
	if members == nil {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

func (r *Registry) reportLocked() {
	metrics.Rooms.Set(float64(len(r.rooms)))
	metrics.Connections.Set(float64(len(r.roomOf)))
}

// Members returns a copy of the member set of room, ordered by connection ID.
// Unknown rooms yield an empty, non-nil slice.
func (r *Registry) Members(room string) []Conn {
	r.mu.RLock()
	members := r.rooms[room]
	out := make([]Conn, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// RoomOf returns the room c currently belongs to.
func (r *Registry) RoomOf(c Conn) (string, bool) {
	if c == nil {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.roomOf[c.ID()]
	return room, ok
}

// RoomCount returns the number of non-empty rooms.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// ConnCount returns the number of connections joined to any room.
func (r *Registry) ConnCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.roomOf)
}

// Rooms returns every non-empty room with its member count, sorted by name.
func (r *Registry) Rooms() []RoomInfo {
	r.mu.RLock()
	out := make([]RoomInfo, 0, len(r.rooms))
	for name, members := range r.rooms {
		out = append(out, RoomInfo{Name: name, Members: len(members)})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
