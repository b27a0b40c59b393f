package session

import (
	"context"
	"errors"
	"time"
)

// ErrNoActiveRoom is returned by PlayStore.FindPlayingRoom when the
// user has no recorded in-progress game.
var ErrNoActiveRoom = errors.New("no active room for user")

// PlayStatus is the per-user-per-room state persisted for crash
// recovery and resume lookups.
type PlayStatus string

const (
	StatusReady        PlayStatus = "ready"
	StatusPlaying      PlayStatus = "playing"
	StatusQuit         PlayStatus = "quit"
	StatusDisconnected PlayStatus = "disconnected"
	StatusDone         PlayStatus = "done"
)

// RoomInfo is the slice of the app backend's room record the core
// needs to run a game.
type RoomInfo struct {
	RoomID      int
	PlayerCount int
	GameStartAt time.Time
	GameEndAt   time.Time
}

// UserStatus is a cumulative resource-usage snapshot for one user.
// Reports to the app backend carry the delta between two snapshots.
type UserStatus struct {
	UserID      int
	SpentItems  map[int]int
	SpentEnergy int
	Timestamp   time.Time
}

// Delta returns the consumption between this snapshot and a later one.
func (s UserStatus) Delta(after UserStatus) UserStatus {
	spent := make(map[int]int, len(after.SpentItems))
	for item, count := range after.SpentItems {
		spent[item] = count
	}
	for item, count := range s.SpentItems {
		spent[item] -= count
	}
	return UserStatus{
		UserID:      s.UserID,
		SpentItems:  spent,
		SpentEnergy: after.SpentEnergy - s.SpentEnergy,
		Timestamp:   after.Timestamp,
	}
}

// GameResult is the final payload for one finished room.
type GameResult struct {
	RoomID  int
	UserIDs []int
	Winner  GameResultWinner
}

type GameResultWinner struct {
	UserID     int
	SpentItems map[int]int
	HostTime   float64
}

// PlayStore is the persistence port. It backs resume lookups after the
// in-memory state was lost or ambiguous, and records per-user play
// rows for idempotent external reporting.
type PlayStore interface {
	// FindPlayingRoom returns the room id of the user's most recent
	// in-progress game, or ErrNoActiveRoom.
	FindPlayingRoom(ctx context.Context, userID int) (int, error)
	// MarkUserStatus updates the user's play row for the room.
	MarkUserStatus(ctx context.Context, roomID, userID int, status PlayStatus, leavedAt *time.Time) error
	// GetPlayData returns the user's recorded spent items and the
	// timestamp of the last record.
	GetPlayData(ctx context.Context, roomID, userID int) (map[int]int, time.Time, error)
}

// StageSource picks the content a freshly activated room plays.
type StageSource interface {
	RandomStage(ctx context.Context) (string, error)
}

// StatusReporter pushes a consumption delta to the app backend.
type StatusReporter interface {
	ReportStatus(ctx context.Context, delta UserStatus) error
}

// ResultReporter pushes a finished room's result to the app backend.
type ResultReporter interface {
	ReportResult(ctx context.Context, result GameResult) error
}
