package server

import (
	"context"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tmchat/tmchat/internal/config"
	"github.com/tmchat/tmchat/internal/stats"
	"github.com/tmchat/tmchat/internal/types"
)

const apiVersion = "1.0"

// ChatServer owns all shared chat state: the connection registry, the room
// directory and the moderation records. A single coarse lock guards every
// mutation; outbound delivery is a non-blocking enqueue on each client's
// send buffer, so the lock is never held across I/O.
type ChatServer struct {
	log   *log.Logger
	stats stats.StatsProvider

	filesDir  string
	ownerHash string

	mu      sync.Mutex
	nextSeq uint64
	clients map[*Client]struct{}
	// userOrder preserves first-registration order for user_list display
	userOrder []string
	userRoom  map[string]string
	rooms     map[string]*Room
	owner     string
	muted     map[string]struct{}
	banned    []bannedWord
	kicked    []types.KickRecord
	prefs     map[string]map[string]any

	// now is replaceable so expiry behavior can be driven in tests
	now func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewChatServer(logger *log.Logger, cfg *config.Config, sp stats.StatsProvider) (*ChatServer, error) {
	cs := &ChatServer{
		log:       logger,
		stats:     sp,
		filesDir:  cfg.FilesDir,
		ownerHash: cfg.OwnerPasswordHash,
		clients:   make(map[*Client]struct{}),
		userRoom:  make(map[string]string),
		rooms:     make(map[string]*Room),
		muted:     make(map[string]struct{}),
		prefs:     make(map[string]map[string]any),
		now:       Now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	cs.rooms[GlobalRoomId] = newGlobalRoom(cs.now())

	for _, name := range []string{"NumConnections", "NumRooms", "MessagesRouted", "FilesShared"} {
		sp.RegisterMetric(name)
	}

	return cs, nil
}

// HandleConnection adopts an upgraded websocket connection and starts its
// pumps. The connection is tracked immediately so shutdown can reach it
// even before a register message arrives.
func (cs *ChatServer) HandleConnection(conn *websocket.Conn) {
	c := newClient(conn, cs, cs.log)

	cs.mu.Lock()
	c.seq = cs.nextSeq
	cs.nextSeq++
	cs.clients[c] = struct{}{}
	cs.mu.Unlock()

	cs.stats.Incr("NumConnections")
	cs.log.Printf("session %s: connected", c.sessionId)

	c.queueMessage(NewApiVersion())

	go c.writePump()
	go c.readPump()
}

// register binds the connection to a username, placing the user into the
// global room on first registration. Duplicate usernames are accepted.
func (cs *ChatServer) register(c *Client, username string) {
	if username == "" {
		return
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	c.username = username
	if !slices.Contains(cs.userOrder, username) {
		cs.userOrder = append(cs.userOrder, username)
	}
	if _, ok := cs.userRoom[username]; !ok {
		cs.rooms[GlobalRoomId].members[username] = struct{}{}
		cs.userRoom[username] = GlobalRoomId
	}

	cs.log.Printf("session %s: registered as %q", c.sessionId, username)
	cs.broadcastUserListLocked()
	c.queueMessage(cs.roomInfoLocked(username))
}

func (cs *ChatServer) unregister(c *Client) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.unregisterLocked(c)
}

// unregisterLocked removes the connection and, when it was the last one
// bound to its username, retires the user's room membership and join-order
// entry. Clearing the owner slot happens strictly before the departure is
// announced so observers never see a stale owner next to a fresh user list.
func (cs *ChatServer) unregisterLocked(c *Client) {
	if _, ok := cs.clients[c]; !ok {
		return
	}

	delete(cs.clients, c)
	cs.stats.Decr("NumConnections")

	name := c.username
	if name == "" {
		return
	}

	if name == cs.owner {
		cs.owner = ""
		cs.broadcastLocked(NewOwnerChanged(""))
	}

	if cs.findClientLocked(name) == nil {
		if roomId, ok := cs.userRoom[name]; ok {
			if r := cs.rooms[roomId]; r != nil {
				delete(r.members, name)
			}
			delete(cs.userRoom, name)
		}
		if i := slices.Index(cs.userOrder, name); i >= 0 {
			cs.userOrder = slices.Delete(cs.userOrder, i, i+1)
		}
	}

	cs.log.Printf("session %s: %q left", c.sessionId, name)
	cs.broadcastUserListLocked()
}

// findClientLocked returns the earliest-registered live connection bound to
// username, or nil.
func (cs *ChatServer) findClientLocked(username string) *Client {
	var match *Client
	for c := range cs.clients {
		if c.username != username {
			continue
		}
		if match == nil || c.seq < match.seq {
			match = c
		}
	}
	return match
}

func (cs *ChatServer) clientsForUserLocked(username string) []*Client {
	var matches []*Client
	for c := range cs.clients {
		if c.username == username {
			matches = append(matches, c)
		}
	}
	return matches
}

func (cs *ChatServer) broadcastLocked(msg any) {
	for c := range cs.clients {
		c.queueMessage(msg)
	}
}

func (cs *ChatServer) broadcastUserListLocked() {
	cs.broadcastLocked(NewUserList(slices.Clone(cs.userOrder), cs.owner))
}

// Run drives the room expiry sweep. It is the only long-lived background
// task and exits when Shutdown is called.
func (cs *ChatServer) Run() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cs.sweepRooms(cs.now())
		case <-cs.stop:
			close(cs.done)
			return
		}
	}
}

// Shutdown cancels the expiry sweep, waits for it to observe the
// cancellation, then stops every client connection.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.stopOnce.Do(func() { close(cs.stop) })

	select {
	case <-cs.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	cs.mu.Lock()
	clients := make([]*Client, 0, len(cs.clients))
	for c := range cs.clients {
		clients = append(clients, c)
	}
	cs.mu.Unlock()

	for _, c := range clients {
		c.stopClient()
	}

	return nil
}
