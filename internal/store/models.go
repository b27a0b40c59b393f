package store

import "time"

// GameUser is the per-user-per-room play row, keyed (room_id, user_id).
// It survives process restarts and is what resume lookups and result
// reporting lean on when the in-memory session state is gone.
type GameUser struct {
	RoomID   int
	UserID   int
	Status   string
	JoinedAt *time.Time
	LeavedAt *time.Time
}

// GamePlayData is the latest reported item usage for one play row.
type GamePlayData struct {
	RoomID    int
	UserID    int
	UseItems  map[int]int
	Timestamp time.Time
}

// GameStage is one playable content entry; rooms pick one at random on
// activation.
type GameStage struct {
	StageID   string
	MaxPlayer int
	Time      int
	AIPoolID  string
}

// GameConstant is a tunable exposed to clients through the loading
// response.
type GameConstant struct {
	Key   string
	Value int
}

// GameLog is one audit row per API call.
type GameLog struct {
	ID            string
	LogType       string
	UserID        string
	RoomID        *int
	ClientVersion string
	Message       string
	CreatedAt     time.Time
}
