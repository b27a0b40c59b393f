package session

import (
	"strconv"
	"time"
)

// UserIdentity identifies a player across the app backend and this
// server. Equality is by ID alone; Nickname is display-only. In this
// domain the ID is the app server's numeric user number in string form.
type UserIdentity struct {
	ID       string
	Nickname string
}

func (u UserIdentity) Same(other UserIdentity) bool { return u.ID == other.ID }

// UserID parses the numeric form used by the persistence layer and the
// app backend.
func (u UserIdentity) UserID() (int, error) {
	return strconv.Atoi(u.ID)
}

// ownerRef is the participant's weak handle to the session hosting it.
// Sessions are pooled and reused, so the room id alone is not enough;
// the activation id tells a stale participant apart from one belonging
// to the room's current game.
type ownerRef struct {
	roomID       int
	activationID string
}

// SessionUser is one user's membership record within one room
// activation. It is created on the first successful join and survives
// leave/disconnect until the session is reclaimed, so a resuming player
// gets the same record (and the same JoinedAt tie-break) back.
//
// All fields are guarded by the owning session's lock.
type SessionUser struct {
	Identity UserIdentity
	JoinedAt time.Time

	HasJoined bool
	HasLeft   bool
	HasQuit   bool
	IsPlaying bool

	LastActiveAt time.Time

	// CachedStatus is the last status snapshot reported to the app
	// backend; the next report sends only the delta against it.
	CachedStatus *UserStatus

	owner *ownerRef
}

func newSessionUser(identity UserIdentity, joinedAt time.Time) *SessionUser {
	return &SessionUser{
		Identity:     identity,
		JoinedAt:     joinedAt,
		LastActiveAt: joinedAt,
	}
}

// JoinedAtTick is the ranking tie-break key, unique per activation
// because joins are serialized by the session lock.
func (u *SessionUser) JoinedAtTick() int64 { return u.JoinedAt.UnixNano() }

func (u *SessionUser) attach(roomID int, activationID string) {
	u.owner = &ownerRef{roomID: roomID, activationID: activationID}
}

func (u *SessionUser) detach() { u.owner = nil }

// ownedBy reports whether the record currently belongs to the given
// room activation.
func (u *SessionUser) ownedBy(roomID int, activationID string) bool {
	return u.owner != nil && u.owner.roomID == roomID && u.owner.activationID == activationID
}

// RoomID returns the owning room id, or false when detached.
func (u *SessionUser) RoomID() (int, bool) {
	if u.owner == nil {
		return 0, false
	}
	return u.owner.roomID, true
}

func (u *SessionUser) markJoined() {
	u.HasQuit = false
	u.HasLeft = false
	u.HasJoined = true
}

func (u *SessionUser) markLeft(isQuit bool) {
	if isQuit {
		u.HasQuit = true
	}
	u.HasLeft = true
	u.IsPlaying = false
}
