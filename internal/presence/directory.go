package presence

import "github.com/samber/lo"

// RoomUser is the name-only projection of a User sent to clients in
// user-list updates.
type RoomUser struct {
	Name string `json:"name"`
}

// Directory answers room-level queries by deriving them from the registry
// on every call. It keeps no state of its own, so its answers can never go
// stale or drift from the registry.
type Directory struct {
	registry *Registry
}

// NewDirectory returns a directory backed by the given registry.
func NewDirectory(registry *Registry) *Directory {
	return &Directory{registry: registry}
}

// ActiveRooms lists the rooms that currently have at least one occupant.
func (d *Directory) ActiveRooms() []string {
	return d.registry.ActiveRooms()
}

// UsersIn lists the occupants of a room as display projections, in the
// registry's iteration order.
func (d *Directory) UsersIn(room string) []RoomUser {
	return lo.Map(d.registry.ListByRoom(room), func(user User, _ int) RoomUser {
		return RoomUser{Name: user.Name}
	})
}
