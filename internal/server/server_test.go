package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tmchat/tmchat/internal/config"
	"github.com/tmchat/tmchat/internal/stats"
	"github.com/tmchat/tmchat/internal/testutil"
)

const testOwnerPassword = "opensesame"

// newTestChatServer creates a ChatServer with a permissive stats mock and a
// temp files directory.
func newTestChatServer(t *testing.T) *ChatServer {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Times(4)
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	cfg, err := config.NewConfig("localhost", 8765, hashPassword(testOwnerPassword), t.TempDir(), nil)
	if err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	cs, err := NewChatServer(testutil.TestLogger(t), cfg, su)
	if err != nil {
		t.Fatalf("failed to create test ChatServer: %v", err)
	}
	return cs
}

// newTestClient attaches a connection-less client and optionally registers
// a username for it.
func newTestClient(t *testing.T, cs *ChatServer, username string) *Client {
	c := newClient(nil, cs, testutil.TestLogger(t))

	cs.mu.Lock()
	c.seq = cs.nextSeq
	cs.nextSeq++
	cs.clients[c] = struct{}{}
	cs.mu.Unlock()

	if username != "" {
		cs.register(c, username)
	}
	return c
}

// drainMessages decodes and empties everything queued on the client's send
// buffer.
func drainMessages(t *testing.T, c *Client) []map[string]any {
	t.Helper()

	var msgs []map[string]any
	for {
		select {
		case raw := <-c.send:
			var m map[string]any
			if err := json.Unmarshal(raw, &m); err != nil {
				t.Fatalf("failed to decode queued message: %v", err)
			}
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func messagesOfType(msgs []map[string]any, typ string) []map[string]any {
	var out []map[string]any
	for _, m := range msgs {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

// userRoomOf reports which room the user currently belongs to plus how many
// rooms hold it as a member.
func userRoomOf(cs *ChatServer, username string) (string, int) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	count := 0
	for _, r := range cs.rooms {
		if _, ok := r.members[username]; ok {
			count++
		}
	}
	return cs.userRoom[username], count
}

func TestNewChatServer(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", mock.Anything).Times(4)

	cfg, err := config.NewConfig("localhost", 8765, "", t.TempDir(), nil)
	assert.NoError(t, err, "expected no error creating config")

	cs, err := NewChatServer(testutil.TestLogger(t), cfg, su)
	assert.NoError(t, err, "expected no error creating ChatServer")
	assert.NotNil(t, cs, "expected ChatServer to be non-nil")
	assert.NotNil(t, cs.clients, "expected clients map to be initialized")
	assert.NotNil(t, cs.rooms[GlobalRoomId], "expected the global room to exist")
	assert.True(t, cs.rooms[GlobalRoomId].ExpiresAt.IsZero(), "expected the global room to never expire")
	assert.NotNil(t, cs.stop, "expected stop channel to be initialized")
	assert.NotNil(t, cs.done, "expected done channel to be initialized")
}

func TestRegister(t *testing.T) {
	cs := newTestChatServer(t)

	c := newTestClient(t, cs, "")
	cs.register(c, "alice")

	msgs := drainMessages(t, c)
	userLists := messagesOfType(msgs, "user_list")
	assert.Len(t, userLists, 1, "expected one user_list broadcast")
	assert.Equal(t, []any{"alice"}, userLists[0]["users"], "expected alice in the user list")

	roomInfos := messagesOfType(msgs, "room_info")
	assert.Len(t, roomInfos, 1, "expected a private room_info reply")
	assert.Equal(t, GlobalRoomId, roomInfos[0]["current_room"], "expected alice to be placed in global")

	room, count := userRoomOf(cs, "alice")
	assert.Equal(t, GlobalRoomId, room, "expected alice's room to be global")
	assert.Equal(t, 1, count, "expected alice to be a member of exactly one room")
}

func TestRegisterEmptyUsernameIgnored(t *testing.T) {
	cs := newTestChatServer(t)

	c := newTestClient(t, cs, "")
	cs.register(c, "")

	assert.Empty(t, drainMessages(t, c), "expected no reply for an empty username")
	assert.Empty(t, c.username, "expected the connection to stay unbound")
}

func TestRegisterDuplicateUsername(t *testing.T) {
	cs := newTestChatServer(t)

	c1 := newTestClient(t, cs, "alice")
	c2 := newTestClient(t, cs, "alice")

	msgs := drainMessages(t, c2)
	userLists := messagesOfType(msgs, "user_list")
	assert.NotEmpty(t, userLists, "expected a user_list broadcast")
	last := userLists[len(userLists)-1]
	assert.Equal(t, []any{"alice"}, last["users"], "expected alice listed once despite two connections")

	cs.mu.Lock()
	first := cs.findClientLocked("alice")
	cs.mu.Unlock()
	assert.Same(t, c1, first, "expected first-registered connection to win lookups")
}

func TestUnregister(t *testing.T) {
	cs := newTestChatServer(t)

	alice := newTestClient(t, cs, "alice")
	bob := newTestClient(t, cs, "bob")
	drainMessages(t, alice)
	drainMessages(t, bob)

	cs.unregister(bob)

	msgs := drainMessages(t, alice)
	userLists := messagesOfType(msgs, "user_list")
	assert.Len(t, userLists, 1, "expected a refreshed user_list broadcast")
	assert.Equal(t, []any{"alice"}, userLists[0]["users"], "expected bob removed from the user list")

	_, count := userRoomOf(cs, "bob")
	assert.Zero(t, count, "expected bob removed from all rooms")

	// unregistering an absent connection is a no-op
	cs.unregister(bob)
	assert.Empty(t, drainMessages(t, alice), "expected no broadcast for a repeated unregister")
}

func TestUnregisterClearsOwnerFirst(t *testing.T) {
	cs := newTestChatServer(t)

	alice := newTestClient(t, cs, "alice")
	bob := newTestClient(t, cs, "bob")
	cs.route(bob, &ClientMessage{Type: "verify_owner", Username: "bob", Password: testOwnerPassword})
	drainMessages(t, alice)
	drainMessages(t, bob)

	cs.unregister(bob)

	msgs := drainMessages(t, alice)
	var sawOwnerChanged bool
	for _, m := range msgs {
		switch m["type"] {
		case "owner_changed":
			assert.Nil(t, m["owner"], "expected the owner slot to be cleared")
			assert.False(t, sawOwnerChanged, "expected a single owner_changed")
			sawOwnerChanged = true
		case "user_list":
			assert.True(t, sawOwnerChanged, "expected owner_changed before the departure user_list")
		}
	}
	assert.True(t, sawOwnerChanged, "expected an owner_changed broadcast")

	cs.mu.Lock()
	owner := cs.owner
	cs.mu.Unlock()
	assert.Empty(t, owner, "expected no owner after the owner disconnected")
}

func TestShutdown(t *testing.T) {
	t.Run("successful shutdown", func(t *testing.T) {
		cs := newTestChatServer(t)
		go cs.Run()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err := cs.Shutdown(ctx)
		assert.NoError(t, err, "expected successful shutdown without error")
	})

	t.Run("fails with context deadline exceeded", func(t *testing.T) {
		cs := newTestChatServer(t)
		// Run is never started, so the sweep cancellation is never observed

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := cs.Shutdown(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded, "expected context deadline exceeded")
	})
}
