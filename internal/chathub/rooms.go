package chathub

const (
	channelRoomPrefix = "channel:"
	userRoomPrefix    = "user:"
)

// ChannelRoom names the fanout room of a chat channel.
func ChannelRoom(channelID string) string { return channelRoomPrefix + channelID }

// UserRoom names the notification room shared by all connections of a user.
func UserRoom(userID string) string { return userRoomPrefix + userID }

// RoomTracker keeps room membership independently of the transport.
// A connection sits in at most one channel room and at most one user room.
// It is owned by the ManagerService run-loop and is not safe for concurrent use.
type RoomTracker struct {
	channelOf  map[string]string              // conn id -> channel id
	userRoomOf map[string]string              // conn id -> user room
	members    map[string]map[string]struct{} // room -> conn ids
}

func NewRoomTracker() *RoomTracker {
	return &RoomTracker{
		channelOf:  make(map[string]string),
		userRoomOf: make(map[string]string),
		members:    make(map[string]map[string]struct{}),
	}
}

// JoinChannel moves connID into channelID's room, leaving the previous channel first.
// It returns false only for an empty channel id.
func (t *RoomTracker) JoinChannel(connID, channelID string) bool {
	if channelID == "" {
		return false
	}
	if current, ok := t.channelOf[connID]; ok {
		if current == channelID {
			return true
		}
		t.remove(ChannelRoom(current), connID)
	}
	t.channelOf[connID] = channelID
	t.add(ChannelRoom(channelID), connID)
	return true
}

// LeaveChannel leaves channelID, or the current channel when channelID is empty.
// It reports whether a leave actually happened.
func (t *RoomTracker) LeaveChannel(connID, channelID string) bool {
	current, ok := t.channelOf[connID]
	if !ok {
		return false
	}
	if channelID != "" && channelID != current {
		return false
	}
	delete(t.channelOf, connID)
	t.remove(ChannelRoom(current), connID)
	return true
}

// ChannelOf returns the channel connID is currently in.
func (t *RoomTracker) ChannelOf(connID string) (string, bool) {
	channelID, ok := t.channelOf[connID]
	return channelID, ok
}

// JoinUserRoom puts connID into userID's notification room. It is left only by Release.
func (t *RoomTracker) JoinUserRoom(connID, userID string) {
	room := UserRoom(userID)
	if prev, ok := t.userRoomOf[connID]; ok {
		if prev == room {
			return
		}
		t.remove(prev, connID)
	}
	t.userRoomOf[connID] = room
	t.add(room, connID)
}

// Release drops every membership of connID.
func (t *RoomTracker) Release(connID string) {
	t.LeaveChannel(connID, "")
	if room, ok := t.userRoomOf[connID]; ok {
		delete(t.userRoomOf, connID)
		t.remove(room, connID)
	}
}

// Members returns the connection ids currently in room.
func (t *RoomTracker) Members(room string) []string {
	set := t.members[room]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for connID := range set {
		out = append(out, connID)
	}
	return out
}

func (t *RoomTracker) add(room, connID string) {
	set := t.members[room]
	if set == nil {
		set = make(map[string]struct{})
		t.members[room] = set
	}
	set[connID] = struct{}{}
}

func (t *RoomTracker) remove(room, connID string) {
	set := t.members[room]
	delete(set, connID)
	if len(set) == 0 {
		delete(t.members, room)
	}
}
