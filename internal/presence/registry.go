// Package presence holds the registry of connected users and the room
// views derived from it. The registry is the single source of truth for
// who is online and which room they occupy; rooms have no storage of
// their own and exist exactly while at least one user occupies them.
package presence

import (
	"sync"

	"github.com/samber/lo"
)

// User is the registry record for one live connection.
type User struct {
	ID   string
	Name string
	Room string
}

// Registry maps connection identity to a User. Entries are kept in
// insertion/update order so user lists render stably on clients: Upsert
// removes any previous entry for the same connection before appending,
// which moves an updated user to the end.
//
// All mutation goes through the session coordinator; the lock exists so
// read-only callers on other goroutines stay safe.
type Registry struct {
	mu    sync.RWMutex
	users []User
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Upsert inserts or replaces the user for the given connection id and
// returns the stored record. A connection always maps to exactly one user.
func (r *Registry) Upsert(id, name, room string) User {
	r.mu.Lock()
	defer r.mu.Unlock()

	user := User{ID: id, Name: name, Room: room}
	r.users = append(removeByID(r.users, id), user)
	return user
}

// Remove deletes the user for the given connection id. Removing an absent
// id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users = removeByID(r.users, id)
}

// Get looks up the user for a connection id.
func (r *Registry) Get(id string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.ID == id {
			return user, true
		}
	}
	return User{}, false
}

// ListByRoom returns the users currently in the given room, in registry
// insertion/update order.
func (r *Registry) ListByRoom(room string) []User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Filter(r.users, func(user User, _ int) bool {
		return user.Room == room
	})
}

// AllNames returns a snapshot of every registered display name, used for
// the registry-wide uniqueness check on join.
func (r *Registry) AllNames() map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make(map[string]struct{}, len(r.users))
	for _, user := range r.users {
		names[user.Name] = struct{}{}
	}
	return names
}

// ActiveRooms returns the distinct room values of registered users in
// first-occurrence order. Computed fresh on every call, so a room vanishes
// the moment its last member is removed.
func (r *Registry) ActiveRooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Uniq(lo.Map(r.users, func(user User, _ int) string {
		return user.Room
	}))
}

// Len reports the number of registered users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users)
}

func removeByID(users []User, id string) []User {
	return lo.Filter(users, func(user User, _ int) bool {
		return user.ID != id
	})
}
