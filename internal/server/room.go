package server

import (
	"fmt"
	"time"

	"github.com/teris-io/shortid"
)

const (
	// GlobalRoomId is reserved. The global room always exists, never
	// expires and cannot be closed.
	GlobalRoomId   = "global"
	globalRoomName = "Global Chat"

	defaultRoomTTL = time.Hour
)

type Room struct {
	Id        string
	Name      string
	members   map[string]struct{}
	CreatedAt time.Time
	// ExpiresAt is zero for rooms that never expire.
	ExpiresAt time.Time
	// warned is set once the pre-expiry notice has been sent
	warned bool
}

func newRoom(id, name string, createdAt, expiresAt time.Time) *Room {
	return &Room{
		Id:        id,
		Name:      name,
		members:   make(map[string]struct{}),
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}
}

func newGlobalRoom(createdAt time.Time) *Room {
	return newRoom(GlobalRoomId, globalRoomName, createdAt, time.Time{})
}

// joinRoomLocked atomically moves username from its current room to the
// target room. This is the only path that changes membership for a live
// user; it fails without side effects when the room does not exist.
func (cs *ChatServer) joinRoomLocked(username, id string) bool {
	target, ok := cs.rooms[id]
	if !ok {
		return false
	}

	if cur, ok := cs.userRoom[username]; ok {
		if r := cs.rooms[cur]; r != nil {
			delete(r.members, username)
		}
	}
	target.members[username] = struct{}{}
	cs.userRoom[username] = id

	return true
}

func (cs *ChatServer) roomInfoLocked(username string) *RoomInfoMessage {
	current := cs.userRoom[username]
	name := ""
	if r := cs.rooms[current]; r != nil {
		name = r.Name
	}

	rooms := make(map[string]string, len(cs.rooms))
	for id, r := range cs.rooms {
		rooms[id] = r.Name
	}

	return NewRoomInfo(current, name, rooms)
}

// roomMemberClientsLocked resolves the connections whose bound user is a
// member of the room right now; membership is evaluated at delivery time.
func (cs *ChatServer) roomMemberClientsLocked(roomId string) []*Client {
	r := cs.rooms[roomId]
	if r == nil {
		return nil
	}

	var members []*Client
	for c := range cs.clients {
		if c.username == "" {
			continue
		}
		if _, ok := r.members[c.username]; ok {
			members = append(members, c)
		}
	}
	return members
}

func (cs *ChatServer) createRoomLocked(c *Client, msg *ClientMessage) {
	id := msg.RoomId
	if id == "" {
		var err error
		id, err = shortid.Generate()
		if err != nil {
			c.queueMessage(NewError("create room: " + err.Error()))
			return
		}
	}

	if _, exists := cs.rooms[id]; exists {
		c.queueMessage(NewError("room already exists"))
		return
	}

	name := msg.RoomName
	if name == "" {
		name = id
	}

	now := cs.now()
	cs.rooms[id] = newRoom(id, name, now, now.Add(defaultRoomTTL))
	cs.stats.Incr("NumRooms")
	cs.log.Printf("%q created room %q", c.username, id)

	c.queueMessage(cs.roomInfoLocked(c.username))
	cs.broadcastLocked(NewSystemMessage(fmt.Sprintf("%s created room %s", c.username, name)))
}

func (cs *ChatServer) joinRoomRequestLocked(c *Client, msg *ClientMessage) {
	if !cs.joinRoomLocked(c.username, msg.RoomId) {
		c.queueMessage(NewError("room not found"))
		return
	}

	c.queueMessage(cs.roomInfoLocked(c.username))

	room := cs.rooms[msg.RoomId]
	joined := NewSystemMessage(fmt.Sprintf("%s joined %s", c.username, room.Name))
	for _, mc := range cs.roomMemberClientsLocked(msg.RoomId) {
		mc.queueMessage(joined)
	}
}

// closeRoomLocked tears down a room on the owner's request. The global room
// and unknown ids are silent no-ops. Members are migrated to global before
// the room disappears from the directory.
func (cs *ChatServer) closeRoomLocked(c *Client, msg *ClientMessage) {
	id := msg.RoomId
	if id == GlobalRoomId {
		return
	}
	room, ok := cs.rooms[id]
	if !ok {
		return
	}

	notice := NewSystemMessage(fmt.Sprintf("Room %s was closed by the owner", room.Name))
	for _, mc := range cs.roomMemberClientsLocked(id) {
		mc.queueMessage(notice)
	}

	cs.migrateMembersLocked(room)

	delete(cs.rooms, id)
	cs.stats.Decr("NumRooms")
	cs.log.Printf("room %q closed by %q", id, c.username)
}

// migrateMembersLocked moves every member of room into global, pushing each
// affected user a refreshed room_info. Iterates over a snapshot since the
// join path mutates the member set.
func (cs *ChatServer) migrateMembersLocked(room *Room) {
	members := make([]string, 0, len(room.members))
	for name := range room.members {
		members = append(members, name)
	}

	for _, name := range members {
		cs.joinRoomLocked(name, GlobalRoomId)
		info := cs.roomInfoLocked(name)
		for _, mc := range cs.clientsForUserLocked(name) {
			mc.queueMessage(info)
		}
	}
}
