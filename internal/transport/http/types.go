package httptransport

import (
	"time"

	"tori-server/internal/backend"
	"tori-server/internal/session"
)

// Every response carries the result code and the server clock so the
// client can sync its countdowns.
type apiEnvelope struct {
	Code        int    `json:"code"`
	Message     string `json:"message,omitempty"`
	CurrentTick int64  `json:"currentTick"`
}

func envelope(code session.ResultCode, now time.Time) apiEnvelope {
	env := apiEnvelope{Code: int(code), CurrentTick: now.UnixMilli()}
	if code != session.Ok {
		env.Message = code.String()
	}
	return env
}

type loadingRequest struct {
	UserID string `json:"userId"`
	RoomID int    `json:"roomId"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type playDataRequest struct {
	Token     string      `json:"token"`
	UsedItems map[int]int `json:"usedItems"`
}

type rankingRequest struct {
	Token     string  `json:"token"`
	HostTime  float64 `json:"hostTime"`
	ItemCount int     `json:"itemCount"`
}

type loadingResponse struct {
	apiEnvelope
	Token         string            `json:"token"`
	Constants     map[string]int    `json:"constants"`
	StageID       string            `json:"stageId"`
	Reward        backend.GoodsInfo `json:"reward"`
	GameStartTick int64             `json:"gameStartTick"`
	GameEndTick   int64             `json:"gameEndTick"`
}

type startResponse struct {
	apiEnvelope
	PlayerNicknames []string `json:"playerNicknames"`
}

type rankEntry struct {
	Rank      int     `json:"rank"`
	UserID    string  `json:"userId"`
	Nickname  string  `json:"nickname"`
	HostTime  float64 `json:"hostTime"`
	ItemCount int     `json:"itemCount"`
}

func toRankEntry(e *session.RankEntry) *rankEntry {
	if e == nil {
		return nil
	}
	return &rankEntry{
		Rank:      e.Rank,
		UserID:    e.Identity.ID,
		Nickname:  e.Identity.Nickname,
		HostTime:  e.HostTime,
		ItemCount: e.ItemCount,
	}
}

type rankingResponse struct {
	apiEnvelope
	MyRank  *rankEntry `json:"myRank"`
	TopRank *rankEntry `json:"topRank"`
}

type endResponse struct {
	apiEnvelope
	Reward backend.GoodsInfo `json:"reward"`
}
