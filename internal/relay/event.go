// Package relay implements the session coordination logic of the chat
// relay: how joins, room switches, messages, typing notices, and
// disconnects mutate the presence registry and which broadcasts each
// transition produces. The transport layer feeds inbound client events to
// the Coordinator and carries out its deliveries through the Sender
// interface.
package relay

import "time"

// AdminName is the reserved sender name for server-authored messages.
// Clients style messages from this sender differently from user messages.
const AdminName = "Admin"

// Outbound event names.
const (
	EventMessage  = "message"
	EventActivity = "activity"
	EventUserList = "userList"
	EventRoomList = "roomList"
)

// timeLayout renders hour:minute:second the way the chat UI displays
// message timestamps.
const timeLayout = "3:04:05 PM"

// Event is one outbound delivery: a named event plus its payload. The
// transport marshals it onto the wire.
type Event struct {
	Name string
	Data any
}

// Message is the payload of a chat message event. Messages are built at
// broadcast time and never retained.
type Message struct {
	Name string `json:"name"`
	Text string `json:"text"`
	Time string `json:"time"`
}

// TypingNotice is the payload of a typing-activity event; it carries only
// the typer's display name.
type TypingNotice struct {
	Name string `json:"name"`
}

// UserListUpdate carries the current occupants of a room.
type UserListUpdate struct {
	Users []RoomUser `json:"users"`
}

// RoomUser mirrors presence.RoomUser for the wire; declared here so the
// event model is self-contained.
type RoomUser struct {
	Name string `json:"name"`
}

// RoomListUpdate carries the set of currently occupied rooms.
type RoomListUpdate struct {
	Rooms []string `json:"rooms"`
}

func buildMessage(name, text string, at time.Time) Event {
	return Event{
		Name: EventMessage,
		Data: Message{Name: name, Text: text, Time: at.Format(timeLayout)},
	}
}

func userListEvent(users []RoomUser) Event {
	if users == nil {
		users = []RoomUser{}
	}
	return Event{Name: EventUserList, Data: UserListUpdate{Users: users}}
}

func roomListEvent(rooms []string) Event {
	if rooms == nil {
		rooms = []string{}
	}
	return Event{Name: EventRoomList, Data: RoomListUpdate{Rooms: rooms}}
}

func typingEvent(name string) Event {
	return Event{Name: EventActivity, Data: TypingNotice{Name: name}}
}
