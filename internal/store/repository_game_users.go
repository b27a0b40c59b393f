package store

import (
	"context"
	"errors"
	"time"

	"tori-server/internal/session"
)

// UpsertGameUser records that a user entered a room, resetting the row
// when the same (room, user) pair starts a new game.
func (s *Store) UpsertGameUser(ctx context.Context, roomID, userID int, status session.PlayStatus, joinedAt time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO game_users (room_id, user_id, status, joined_at, leaved_at)
		VALUES ($1, $2, $3, $4, NULL)
		ON CONFLICT (room_id, user_id)
		DO UPDATE SET status = EXCLUDED.status, joined_at = EXCLUDED.joined_at, leaved_at = NULL`,
		roomID, userID, string(status), joinedAt)
	return err
}

// MarkUserStatus updates the play row's status; a terminal status also
// records when the user left.
func (s *Store) MarkUserStatus(ctx context.Context, roomID, userID int, status session.PlayStatus, leavedAt *time.Time) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE game_users SET status = $3, leaved_at = $4
		WHERE room_id = $1 AND user_id = $2`,
		roomID, userID, string(status), leavedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindPlayingRoom returns the room of the user's most recent
// in-progress game, for resume routing.
func (s *Store) FindPlayingRoom(ctx context.Context, userID int) (int, error) {
	var roomID int
	err := s.Pool.QueryRow(ctx, `
		SELECT room_id FROM game_users
		WHERE user_id = $1 AND status = $2
		ORDER BY joined_at DESC NULLS LAST
		LIMIT 1`,
		userID, string(session.StatusPlaying)).Scan(&roomID)
	if err != nil {
		if errors.Is(mapNotFound(err), ErrNotFound) {
			return 0, session.ErrNoActiveRoom
		}
		return 0, err
	}
	return roomID, nil
}

// GetGameUser fetches one play row.
func (s *Store) GetGameUser(ctx context.Context, roomID, userID int) (*GameUser, error) {
	var u GameUser
	err := s.Pool.QueryRow(ctx, `
		SELECT room_id, user_id, status, joined_at, leaved_at
		FROM game_users WHERE room_id = $1 AND user_id = $2`,
		roomID, userID).Scan(&u.RoomID, &u.UserID, &u.Status, &u.JoinedAt, &u.LeavedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &u, nil
}
