package game

import (
	"time"

	"tori-server/internal/backend"
	"tori-server/internal/session"
)

// LoadingResult is everything a client needs to enter a room: the game
// token for all later calls plus the room's schedule and prize.
type LoadingResult struct {
	Token       string
	Constants   map[string]int
	StageID     string
	Reward      backend.GoodsInfo
	GameStartAt time.Time
	GameEndAt   time.Time
}

// StartResult lists the co-players visible at game start.
type StartResult struct {
	PlayerNicknames []string
}

// RankingResult pairs the caller's standing with the room leader's.
type RankingResult struct {
	MyRank  *session.RankEntry
	TopRank *session.RankEntry
}

// EndResult carries the room prize shown on the game-over screen.
type EndResult struct {
	Reward backend.GoodsInfo
}
