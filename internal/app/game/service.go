package game

import (
	"context"
	"strconv"
	"time"

	"tori-server/internal/backend"
	"tori-server/internal/session"
	"tori-server/internal/store"
	"tori-server/internal/token"

	"github.com/rs/zerolog/log"
)

// AppBackend is the outbound app-server API the service reads room and
// user records from.
type AppBackend interface {
	RoomInfo(ctx context.Context, roomID int) (*backend.RoomInfo, error)
	UserInfo(ctx context.Context, userID string) (*backend.UserInfo, error)
}

// Store is the persistence surface the service writes through; it
// contains the core's PlayStore port plus the rows only the service
// touches.
type Store interface {
	session.PlayStore
	UpsertGameUser(ctx context.Context, roomID, userID int, status session.PlayStatus, joinedAt time.Time) error
	UpsertPlayData(ctx context.Context, roomID, userID int, useItems map[int]int, timestamp time.Time) error
	Constants(ctx context.Context) (map[string]int, error)
	InsertLog(ctx context.Context, entry store.GameLog) error
}

// Service implements the game API operations on top of the session
// registry. Handlers stay thin; every rule that is not pure room state
// lives here.
type Service struct {
	registry *session.Registry
	store    Store
	backend  AppBackend
	tokens   *token.Issuer
	status   session.StatusReporter
	now      func() time.Time
}

func NewService(registry *session.Registry, st Store, be AppBackend, tokens *token.Issuer, status session.StatusReporter) *Service {
	return &Service{
		registry: registry,
		store:    st,
		backend:  be,
		tokens:   tokens,
		status:   status,
		now:      time.Now,
	}
}

// Loading routes a user into a room and hands back the game token. A
// player with an unfinished game in a still-open room resumes it, even
// when the requested room differs.
func (s *Service) Loading(ctx context.Context, userID string, roomID int) (*LoadingResult, session.ResultCode) {
	numericID, err := strconv.Atoi(userID)
	if err != nil || roomID <= 0 {
		return nil, session.InvalidParameter
	}

	userInfo, err := s.backend.UserInfo(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("loading: user info fetch failed")
		return nil, session.InvalidParameter
	}
	roomInfo, err := s.backend.RoomInfo(ctx, roomID)
	if err != nil {
		log.Error().Err(err).Int("room_id", roomID).Msg("loading: room info fetch failed")
		return nil, session.InvalidParameter
	}

	identity := session.UserIdentity{ID: userID, Nickname: userInfo.Nickname}
	code, user, sess := s.registry.Join(ctx, identity, session.RoomInfo{
		RoomID:      roomID,
		PlayerCount: roomInfo.PlayerCount,
		GameStartAt: roomInfo.BeginRunningTime,
		GameEndAt:   roomInfo.EndRunningTime,
	})
	if code != session.Ok {
		return nil, code
	}

	joinedRoomID, _ := user.RoomID()
	if err := s.store.UpsertGameUser(ctx, joinedRoomID, numericID, session.StatusReady, user.JoinedAt); err != nil {
		log.Error().Err(err).Int("user_id", numericID).Int("room_id", joinedRoomID).
			Msg("loading: game user upsert failed")
		return nil, session.UnhandledError
	}

	gameToken, err := s.tokens.Issue(identity, joinedRoomID)
	if err != nil {
		log.Error().Err(err).Int("user_id", numericID).Msg("loading: token issue failed")
		return nil, session.UnhandledError
	}

	constants, err := s.store.Constants(ctx)
	if err != nil {
		log.Error().Err(err).Msg("loading: constants fetch failed")
		constants = map[string]int{}
	}

	s.audit(ctx, store.LogLoading, userID, &joinedRoomID, "")

	return &LoadingResult{
		Token:       gameToken,
		Constants:   constants,
		StageID:     sess.StageID(),
		Reward:      roomInfo.GoodsInfo,
		GameStartAt: sess.GameStartAt(),
		GameEndAt:   sess.GameEndAt(),
	}, session.Ok
}

// GameStart moves the caller into active play and returns who they are
// playing against.
func (s *Service) GameStart(ctx context.Context, tok token.Data) (*StartResult, session.ResultCode) {
	code, user, sess := s.registry.GetUser(tok.User, tok.RoomID)
	if code != session.Ok {
		return nil, code
	}
	if code, _ := s.registry.StartPlay(user); code != session.Ok {
		return nil, code
	}

	if numericID, err := tok.User.UserID(); err == nil {
		if err := s.store.MarkUserStatus(ctx, tok.RoomID, numericID, session.StatusPlaying, nil); err != nil {
			log.Error().Err(err).Int("user_id", numericID).Int("room_id", tok.RoomID).
				Msg("gamestart: status update failed")
		}
	}
	s.audit(ctx, store.LogGameStart, tok.User.ID, &tok.RoomID, "")

	return &StartResult{PlayerNicknames: sess.Nicknames()}, session.Ok
}

// PlayData records the caller's cumulative item usage and counts as
// play activity for the inactivity sweep.
func (s *Service) PlayData(ctx context.Context, tok token.Data, usedItems map[int]int) (session.ResultCode, error) {
	code, user, sess := s.registry.GetUser(tok.User, tok.RoomID)
	if code != session.Ok {
		return code, nil
	}
	sess.TouchUser(user)

	numericID, err := tok.User.UserID()
	if err != nil {
		return session.InvalidParameter, nil
	}
	if err := s.store.UpsertPlayData(ctx, tok.RoomID, numericID, usedItems, s.now()); err != nil {
		return session.UnhandledError, err
	}
	s.audit(ctx, store.LogPlayData, tok.User.ID, &tok.RoomID, "")
	return session.Ok, nil
}

// Ranking records the caller's latest scores and returns the standings.
func (s *Service) Ranking(ctx context.Context, tok token.Data, hostTime float64, itemCount int) (*RankingResult, session.ResultCode) {
	code, _, sess := s.registry.GetUser(tok.User, tok.RoomID)
	if code != session.Ok {
		return nil, code
	}
	code, first, mine := sess.UpdateRanking(tok.User, hostTime, itemCount)
	if code != session.Ok {
		return nil, code
	}
	s.audit(ctx, store.LogRanking, tok.User.ID, &tok.RoomID, "")
	return &RankingResult{MyRank: mine, TopRank: first}, session.Ok
}

// GameEnd finishes the caller's run: final play data is recorded, the
// consumption delta is pushed, and the room's aggregation deadline is
// reserved.
func (s *Service) GameEnd(ctx context.Context, tok token.Data, usedItems map[int]int) (*EndResult, session.ResultCode) {
	code, user, sess := s.registry.GetUser(tok.User, tok.RoomID)
	if code != session.Ok {
		return nil, code
	}

	numericID, err := tok.User.UserID()
	if err != nil {
		return nil, session.InvalidParameter
	}
	now := s.now()
	if err := s.store.UpsertPlayData(ctx, tok.RoomID, numericID, usedItems, now); err != nil {
		log.Error().Err(err).Int("user_id", numericID).Int("room_id", tok.RoomID).
			Msg("gameend: play data upsert failed")
	}

	if code, _ := s.registry.Leave(user, false); code != session.Ok {
		return nil, code
	}
	if err := s.store.MarkUserStatus(ctx, tok.RoomID, numericID, session.StatusDone, &now); err != nil {
		log.Error().Err(err).Int("user_id", numericID).Int("room_id", tok.RoomID).
			Msg("gameend: status update failed")
	}
	if err := sess.ReportStatusDelta(ctx, user, usedItems, now, s.status); err != nil {
		log.Error().Err(err).Int("user_id", numericID).Int("room_id", tok.RoomID).
			Msg("gameend: status report failed")
	}
	sess.ReserveClose()
	s.audit(ctx, store.LogGameEnd, tok.User.ID, &tok.RoomID, "")

	reward := backend.GoodsInfo{}
	if roomInfo, err := s.backend.RoomInfo(ctx, tok.RoomID); err == nil {
		reward = roomInfo.GoodsInfo
	} else {
		log.Error().Err(err).Int("room_id", tok.RoomID).Msg("gameend: room info fetch failed")
	}
	return &EndResult{Reward: reward}, session.Ok
}

// GameQuit abandons the run for good: the participant can never rejoin
// this activation, and no close deadline is reserved on their behalf.
func (s *Service) GameQuit(ctx context.Context, tok token.Data, usedItems map[int]int) (session.ResultCode, error) {
	code, user, sess := s.registry.GetUser(tok.User, tok.RoomID)
	if code != session.Ok {
		return code, nil
	}
	if !sess.IsActive(user) {
		return session.NotJoinedUser, nil
	}

	numericID, err := tok.User.UserID()
	if err != nil {
		return session.InvalidParameter, nil
	}
	now := s.now()
	if err := s.store.UpsertPlayData(ctx, tok.RoomID, numericID, usedItems, now); err != nil {
		log.Error().Err(err).Int("user_id", numericID).Int("room_id", tok.RoomID).
			Msg("gamequit: play data upsert failed")
	}

	if code, _ := s.registry.Leave(user, true); code != session.Ok {
		return code, nil
	}
	if err := s.store.MarkUserStatus(ctx, tok.RoomID, numericID, session.StatusQuit, &now); err != nil {
		log.Error().Err(err).Int("user_id", numericID).Int("room_id", tok.RoomID).
			Msg("gamequit: status update failed")
	}
	if err := sess.ReportStatusDelta(ctx, user, usedItems, now, s.status); err != nil {
		log.Error().Err(err).Int("user_id", numericID).Int("room_id", tok.RoomID).
			Msg("gamequit: status report failed")
	}
	s.audit(ctx, store.LogGameQuit, tok.User.ID, &tok.RoomID, "")
	return session.Ok, nil
}

// Result serves post-close polling for the final standings.
func (s *Service) Result(ctx context.Context, tok token.Data) (*RankingResult, session.ResultCode) {
	code, _, sess := s.registry.GetUser(tok.User, tok.RoomID)
	if code != session.Ok {
		return nil, code
	}
	code, first, mine := sess.Ranking(tok.User)
	if code != session.Ok {
		return nil, code
	}
	s.audit(ctx, store.LogResult, tok.User.ID, &tok.RoomID, "")
	return &RankingResult{MyRank: mine, TopRank: first}, session.Ok
}

func (s *Service) audit(ctx context.Context, logType, userID string, roomID *int, message string) {
	err := s.store.InsertLog(ctx, store.GameLog{
		LogType: logType,
		UserID:  userID,
		RoomID:  roomID,
		Message: message,
	})
	if err != nil {
		log.Error().Err(err).Str("log_type", logType).Msg("audit log insert failed")
	}
}
