package chathub

import "sync"

// Detachment describes what Detach removed.
type Detachment struct {
	UserID    string
	Remaining int
}

// Registry maps authenticated users to their live connection ids and back.
// A user key exists only while at least one of its connections is attached.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]struct{} // user -> conn ids
	byConn map[string]string              // conn id -> user
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]map[string]struct{}),
		byConn: make(map[string]string),
	}
}

// Attach adds connID to userID's set and returns the resulting set size.
// Attaching a connection that already belongs to another user moves it.
func (r *Registry) Attach(connID, userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byConn[connID]; ok && prev != userID {
		r.removeLocked(connID, prev)
	}

	set := r.byUser[userID]
	if set == nil {
		set = make(map[string]struct{})
		r.byUser[userID] = set
	}
	set[connID] = struct{}{}
	r.byConn[connID] = userID
	return len(set)
}

// Detach removes connID. The second return value is false when the connection
// was never attached or was already detached.
func (r *Registry) Detach(connID string) (Detachment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[connID]
	if !ok {
		return Detachment{}, false
	}
	remaining := r.removeLocked(connID, userID)
	return Detachment{UserID: userID, Remaining: remaining}, true
}

func (r *Registry) removeLocked(connID, userID string) int {
	delete(r.byConn, connID)
	set := r.byUser[userID]
	delete(set, connID)
	if len(set) == 0 {
		delete(r.byUser, userID)
		return 0
	}
	return len(set)
}

// CountFor returns the number of live connections of userID.
func (r *Registry) CountFor(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}

// UserOf returns the user a connection is attached to.
func (r *Registry) UserOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.byConn[connID]
	return userID, ok
}

// OnlineUsers returns how many distinct users have at least one connection.
func (r *Registry) OnlineUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
