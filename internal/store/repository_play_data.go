package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// UpsertPlayData replaces the user's cumulative item usage for a room.
// Clients report cumulative counts, so last write wins.
func (s *Store) UpsertPlayData(ctx context.Context, roomID, userID int, useItems map[int]int, timestamp time.Time) error {
	raw, err := json.Marshal(useItems)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO game_play_data (room_id, user_id, use_items, ts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (room_id, user_id)
		DO UPDATE SET use_items = EXCLUDED.use_items, ts = EXCLUDED.ts`,
		roomID, userID, raw, timestamp)
	return err
}

// GetPlayData returns the user's recorded spent items and the moment of
// the last record. Missing rows come back empty rather than as errors;
// a participant who never reported anything simply spent nothing.
func (s *Store) GetPlayData(ctx context.Context, roomID, userID int) (map[int]int, time.Time, error) {
	var raw []byte
	row := GamePlayData{RoomID: roomID, UserID: userID}
	err := s.Pool.QueryRow(ctx, `
		SELECT use_items, ts FROM game_play_data
		WHERE room_id = $1 AND user_id = $2`,
		roomID, userID).Scan(&raw, &row.Timestamp)
	if err != nil {
		if errors.Is(mapNotFound(err), ErrNotFound) {
			return map[int]int{}, time.Time{}, nil
		}
		return nil, time.Time{}, err
	}
	row.UseItems = map[int]int{}
	if err := json.Unmarshal(raw, &row.UseItems); err != nil {
		return nil, time.Time{}, err
	}
	return row.UseItems, row.Timestamp, nil
}
