package store

import "context"

// Audit log types, one per game API operation.
const (
	LogLoading   = "loading"
	LogGameStart = "gamestart"
	LogGameEnd   = "gameend"
	LogGameQuit  = "gamequit"
	LogPlayData  = "playdata"
	LogRanking   = "ranking"
	LogResult    = "result"
)

// InsertLog appends one audit row. Logging failures must never fail the
// request, so callers fire-and-forget this with a logged error at most.
func (s *Store) InsertLog(ctx context.Context, entry GameLog) error {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO game_logs (id, log_type, user_id, room_id, client_version, message)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.LogType, entry.UserID, entry.RoomID, entry.ClientVersion, entry.Message)
	return err
}
