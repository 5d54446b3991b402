package server

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

const (
	sweepInterval = time.Minute
	// rooms get one warning inside this window before expiry
	expiryWarning = 10 * time.Minute
)

// sweepRooms runs one expiry pass: first the one-time pre-expiry warning,
// then teardown of rooms whose expiry has passed. It iterates a stable
// snapshot of room ids because teardown mutates the directory.
func (cs *ChatServer) sweepRooms(now time.Time) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for _, id := range slices.Sorted(maps.Keys(cs.rooms)) {
		r := cs.rooms[id]
		if r == nil || r.ExpiresAt.IsZero() {
			continue
		}

		if !r.warned && !now.Before(r.ExpiresAt.Add(-expiryWarning)) && now.Before(r.ExpiresAt) {
			r.warned = true
			warning := NewSystemMessage(fmt.Sprintf("Room %s will be deleted soon", r.Name))
			for _, mc := range cs.roomMemberClientsLocked(id) {
				mc.queueMessage(warning)
			}
		}

		if id != GlobalRoomId && !now.Before(r.ExpiresAt) {
			cs.expireRoomLocked(r)
		}
	}
}

func (cs *ChatServer) expireRoomLocked(r *Room) {
	notice := NewSystemMessage(fmt.Sprintf("Room %s expired and was deleted", r.Name))
	for _, mc := range cs.roomMemberClientsLocked(r.Id) {
		mc.queueMessage(notice)
	}

	cs.migrateMembersLocked(r)

	delete(cs.rooms, r.Id)
	cs.stats.Decr("NumRooms")
	cs.log.Printf("room %q expired", r.Id)
}
