package relay

import (
	"time"

	"github.com/samber/lo"

	"chat-relay/internal/presence"
)

// Sender is the transport capability the coordinator drives: channel
// membership plus the four delivery modes. Delivery is fire and forget;
// the coordinator never learns whether a client actually received an
// event.
type Sender interface {
	// Join subscribes a connection to a room channel.
	Join(id, room string)
	// Leave unsubscribes a connection from a room channel.
	Leave(id, room string)
	// Unicast delivers to exactly one connection.
	Unicast(id string, event Event)
	// ToRoom delivers to every connection in a room channel.
	ToRoom(room string, event Event)
	// ToRoomExcept delivers to every connection in a room channel except one.
	ToRoomExcept(room, exceptID string, event Event)
	// ToAll delivers to every connection.
	ToAll(event Event)
}

// Coordinator owns all registry mutation and decides which broadcasts each
// session transition produces. Callers must serialize calls into it; the
// websocket hub does so by invoking it only from its event loop.
type Coordinator struct {
	registry  *presence.Registry
	directory *presence.Directory
	sender    Sender
	now       func() time.Time
}

// NewCoordinator wires a coordinator to its registry and transport.
func NewCoordinator(registry *presence.Registry, directory *presence.Directory, sender Sender) *Coordinator {
	return &Coordinator{
		registry:  registry,
		directory: directory,
		sender:    sender,
		now:       time.Now,
	}
}

// SetClock overrides the message timestamp source. Intended for tests.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// Connect greets a newly accepted connection: the current room list, an
// empty user list (the connection occupies no room yet), and the admin
// welcome.
func (c *Coordinator) Connect(id string) {
	c.sender.Unicast(id, roomListEvent(c.directory.ActiveRooms()))
	c.sender.Unicast(id, userListEvent(nil))
	c.sender.Unicast(id, c.adminMessage("Welcome to Chat App!"))
}

// CreateRoom joins a room that must not already be occupied. It fails with
// ErrRoomExists when the room is active; otherwise it behaves exactly like
// EnterRoom.
func (c *Coordinator) CreateRoom(id, name, room string) error {
	if lo.Contains(c.directory.ActiveRooms(), room) {
		return ErrRoomExists
	}
	return c.EnterRoom(id, name, room)
}

// EnterRoom registers the connection under the given display name and
// room. Name uniqueness is registry-wide and case-sensitive, which keeps
// admin notices unambiguous; it also means a connection switching rooms
// must present a name not currently registered, including its own.
//
// A switch is leave-old-then-full-join: the old room gets a leave notice
// and a user-list update, then the join side effects run for the new room.
func (c *Coordinator) EnterRoom(id, name, room string) error {
	if _, taken := c.registry.AllNames()[name]; taken {
		return ErrNameTaken
	}

	prevRoom := ""
	if prev, ok := c.registry.Get(id); ok {
		prevRoom = prev.Room
	}
	if prevRoom != "" {
		c.sender.Leave(id, prevRoom)
		c.sender.ToRoom(prevRoom, c.adminMessage(name+" has left the room"))
	}

	user := c.registry.Upsert(id, name, room)

	if prevRoom != "" {
		c.sender.ToRoom(prevRoom, userListEvent(c.roomUsers(prevRoom)))
	}

	c.sender.Join(id, user.Room)
	c.sender.Unicast(id, c.adminMessage("You have joined the "+user.Room+" chat room"))
	c.sender.ToRoomExcept(user.Room, id, c.adminMessage(user.Name+" has joined the room"))
	c.sender.ToRoom(user.Room, userListEvent(c.roomUsers(user.Room)))
	c.sender.ToAll(roomListEvent(c.directory.ActiveRooms()))
	return nil
}

// SendMessage broadcasts a chat message to the sender's current room,
// sender included. The display name comes from the payload, matching what
// the client renders locally. A message from a connection with no room
// (for example one racing its own disconnect) is dropped silently.
func (c *Coordinator) SendMessage(id, name, text string) {
	user, ok := c.registry.Get(id)
	if !ok || user.Room == "" {
		return
	}
	c.sender.ToRoom(user.Room, buildMessage(name, text, c.now()))
}

// Typing broadcasts a typing notice to everyone else in the sender's
// current room. Dropped silently when the connection occupies no room.
func (c *Coordinator) Typing(id, name string) {
	user, ok := c.registry.Get(id)
	if !ok || user.Room == "" {
		return
	}
	c.sender.ToRoomExcept(user.Room, id, typingEvent(name))
}

// Disconnect removes the connection's user, then tells the room it left
// and refreshes the global room list. Idempotent: a second disconnect for
// the same id finds no user and does nothing, so transport timeouts and
// explicit closes may both fire safely.
func (c *Coordinator) Disconnect(id string) {
	user, ok := c.registry.Get(id)
	c.registry.Remove(id)
	if !ok {
		return
	}

	c.sender.Leave(id, user.Room)
	c.sender.ToRoom(user.Room, c.adminMessage(user.Name+" has left the room"))
	c.sender.ToRoom(user.Room, userListEvent(c.roomUsers(user.Room)))
	c.sender.ToAll(roomListEvent(c.directory.ActiveRooms()))
}

func (c *Coordinator) adminMessage(text string) Event {
	return buildMessage(AdminName, text, c.now())
}

func (c *Coordinator) roomUsers(room string) []RoomUser {
	return lo.Map(c.directory.UsersIn(room), func(user presence.RoomUser, _ int) RoomUser {
		return RoomUser{Name: user.Name}
	})
}
