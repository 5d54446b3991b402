package server

import (
	"encoding/json"
	"maps"
	"slices"
)

// ownerOnly lists the message types routed only when the sender holds the
// owner slot. Anyone else's messages of these types are dropped without a
// reply, so non-owners cannot probe which operations exist.
var ownerOnly = map[string]bool{
	"close_room":         true,
	"kick_user":          true,
	"mute_user":          true,
	"unmute_user":        true,
	"add_banned_word":    true,
	"remove_banned_word": true,
	"owner_broadcast":    true,
	"get_banned_words":   true,
	"get_muted_users":    true,
	"get_kicked_users":   true,
}

// route dispatches one inbound envelope. Everything except register is
// ignored until the connection has bound a username. State transitions run
// under the server lock, so each handler is atomic with respect to every
// other connection and the expiry sweep.
func (cs *ChatServer) route(c *Client, msg *ClientMessage) {
	if msg.Type == "register" {
		cs.register(c, msg.Username)
		return
	}

	if c.username == "" {
		return
	}

	switch msg.Type {
	case "file_upload":
		// file I/O happens outside the state lock
		cs.handleFileUpload(c, msg)
		return
	case "set_preference":
		cs.setPreference(c, msg)
		return
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if ownerOnly[msg.Type] && c.username != cs.owner {
		return
	}

	switch msg.Type {
	case "verify_owner":
		cs.verifyOwnerLocked(c, msg)
	case "message":
		cs.chatMessageLocked(c, msg)
	case "private_message":
		cs.privateMessageLocked(c, msg)
	case "create_room":
		cs.createRoomLocked(c, msg)
	case "join_room":
		cs.joinRoomRequestLocked(c, msg)
	case "close_room":
		cs.closeRoomLocked(c, msg)
	case "get_rooms":
		c.queueMessage(cs.roomInfoLocked(c.username))
	case "kick_user":
		cs.kickUserLocked(c, msg.Target)
	case "mute_user":
		cs.muteUserLocked(c, msg.Target, true)
	case "unmute_user":
		cs.muteUserLocked(c, msg.Target, false)
	case "add_banned_word":
		cs.addBannedWordLocked(c, msg.Word)
	case "remove_banned_word":
		cs.removeBannedWordLocked(c, msg.Word)
	case "owner_broadcast":
		cs.broadcastLocked(NewOwnerBroadcast(msg.Content))
	case "get_banned_words":
		c.queueMessage(NewBannedWordsList(cs.bannedWordsLocked()))
	case "get_muted_users":
		c.queueMessage(NewMutedUsersList(cs.mutedUsersLocked()))
	case "get_kicked_users":
		c.queueMessage(NewKickedUsersList(slices.Clone(cs.kicked)))
	default:
		// unknown message types are ignored
	}
}

// chatMessageLocked broadcasts to the sender's current room. Muted senders
// and banned-word matches are rejected privately; rejected content is never
// forwarded anywhere.
func (cs *ChatServer) chatMessageLocked(c *Client, msg *ClientMessage) {
	if cs.isMutedLocked(c.username) {
		c.queueMessage(NewError("you are muted"))
		return
	}
	if cs.matchesBannedLocked(msg.Content) {
		c.queueMessage(NewBannedWord("message contains a banned word"))
		return
	}

	roomId := cs.userRoom[c.username]
	out := NewChatMessage(c.username, msg.Content, roomId, c.username == cs.owner && cs.owner != "")
	for _, mc := range cs.roomMemberClientsLocked(roomId) {
		mc.queueMessage(out)
	}
	cs.stats.Incr("MessagesRouted")
}

// privateMessageLocked delivers to the earliest-registered connection bound
// to the target and echoes a confirmation to the sender. A missing target
// is a silent drop.
func (cs *ChatServer) privateMessageLocked(c *Client, msg *ClientMessage) {
	if cs.isMutedLocked(c.username) {
		c.queueMessage(NewError("you are muted"))
		return
	}
	if cs.matchesBannedLocked(msg.Content) {
		c.queueMessage(NewBannedWord("message contains a banned word"))
		return
	}

	tc := cs.findClientLocked(msg.Target)
	if tc == nil {
		return
	}

	tc.queueMessage(NewPrivateMessage(c.username, msg.Content, cs.userRoom[c.username]))
	c.queueMessage(NewPrivateMessageSent(msg.Target, msg.Content))
	cs.stats.Incr("MessagesRouted")
}

// setPreference merges every key of the envelope except the type tag into
// the sender's preference map. No broadcast follows.
func (cs *ChatServer) setPreference(c *Client, msg *ClientMessage) {
	var prefs map[string]any
	if err := json.Unmarshal(msg.raw, &prefs); err != nil {
		return
	}
	delete(prefs, "type")

	cs.mu.Lock()
	defer cs.mu.Unlock()

	m := cs.prefs[c.username]
	if m == nil {
		m = make(map[string]any)
		cs.prefs[c.username] = m
	}
	maps.Copy(m, prefs)
}

// receiveFilesLocked reports whether the user accepts file notifications.
// The preference defaults to enabled.
func (cs *ChatServer) receiveFilesLocked(username string) bool {
	p := cs.prefs[username]
	if p == nil {
		return true
	}
	v, ok := p["receive_files"]
	if !ok {
		return true
	}
	b, ok := v.(bool)
	if !ok {
		return true
	}
	return b
}
