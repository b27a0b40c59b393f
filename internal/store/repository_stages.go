package store

import "context"

// RandomStage picks one stage row uniformly; rooms get their content
// assigned this way on activation.
func (s *Store) RandomStage(ctx context.Context) (string, error) {
	var stageID string
	err := s.Pool.QueryRow(ctx,
		`SELECT stage_id FROM game_stages ORDER BY random() LIMIT 1`).Scan(&stageID)
	if err != nil {
		return "", mapNotFound(err)
	}
	return stageID, nil
}

// Constants returns the client-facing tunables for the loading response.
func (s *Store) Constants(ctx context.Context) (map[string]int, error) {
	rows, err := s.Pool.Query(ctx, `SELECT key, value FROM game_constants`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	constants := map[string]int{}
	for rows.Next() {
		var c GameConstant
		if err := rows.Scan(&c.Key, &c.Value); err != nil {
			return nil, err
		}
		constants[c.Key] = c.Value
	}
	return constants, rows.Err()
}

// EnsureStage seeds a stage row if it is missing, so a fresh database
// can serve games before content is loaded.
func (s *Store) EnsureStage(ctx context.Context, stage GameStage) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO game_stages (stage_id, max_player, play_time, ai_pool_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (stage_id) DO NOTHING`,
		stage.StageID, stage.MaxPlayer, stage.Time, stage.AIPoolID)
	return err
}
