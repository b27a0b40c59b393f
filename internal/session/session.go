package session

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
)

// Config carries the durations and constants the session lifecycle
// depends on. All of it comes from the composition root.
type Config struct {
	// ForceCloseGrace is how long the room waits for stragglers after
	// the first participant finishes before aggregating anyway.
	ForceCloseGrace time.Duration
	// DeferRecycleWindow is the minimum idle time after close before
	// the session object may be reclaimed for a new room, giving late
	// result queries time to complete.
	DeferRecycleWindow time.Duration
	// EnergyCostPerMinute is the energy drained per minute of play,
	// reported to the app backend in status deltas.
	EnergyCostPerMinute int
}

var (
	ulidEntropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	ulidEntropyMu sync.Mutex
)

func newActivationID() string {
	ulidEntropyMu.Lock()
	defer ulidEntropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}

// GameSession is one pooled room instance. Its state machine is derived
// from timestamps and set sizes rather than a stored enum: not yet
// activated means reusable, before gameStartAt means lobby, after means
// play, closeAt set means closing/closed, closeAt plus the defer window
// elapsed means reusable again.
//
// All mutable state is guarded by mu. A session never calls back into
// the registry, which keeps the registry-then-session lock order
// one-directional.
type GameSession struct {
	mu  sync.Mutex
	cfg Config
	now func() time.Time

	roomID       int
	stageID      string
	activationID string
	capacity     int

	activated   bool
	createdAt   time.Time
	gameStartAt time.Time
	gameEndAt   time.Time
	closeAt     *time.Time
	resultSent  bool

	// active holds the participants between gamestart and
	// gameend/gamequit; they count against capacity and are ranked.
	active []*SessionUser
	// users holds everyone who ever joined this activation, kept until
	// the session is reclaimed so leavers can resume.
	users []*SessionUser

	ranking *Ranking
}

func NewGameSession(roomID int, cfg Config, now func() time.Time) *GameSession {
	if now == nil {
		now = time.Now
	}
	return &GameSession{
		roomID:  roomID,
		cfg:     cfg,
		now:     now,
		ranking: NewRanking(),
	}
}

// Activate binds the session to a fresh game. The active set must be
// empty; a session mid-game can never be reinitialized.
func (s *GameSession) Activate(room RoomInfo, stageID string) ResultCode {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.active) != 0 {
		return UnhandledError
	}

	for _, u := range s.users {
		u.detach()
	}

	s.stageID = stageID
	s.activationID = newActivationID()
	s.capacity = room.PlayerCount
	s.activated = true
	s.createdAt = s.now()
	s.gameStartAt = room.GameStartAt
	s.gameEndAt = room.GameEndAt
	s.closeAt = nil
	s.resultSent = false

	s.active = s.active[:0]
	s.users = nil
	s.ranking.Clear()
	return Ok
}

func (s *GameSession) RoomID() int { return s.roomID }

func (s *GameSession) StageID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stageID
}

func (s *GameSession) GameStartAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameStartAt
}

func (s *GameSession) GameEndAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameEndAt
}

// CloseAt returns the aggregation deadline, or false while the room is
// still open-ended.
func (s *GameSession) CloseAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeAt == nil {
		return time.Time{}, false
	}
	return *s.closeAt, true
}

func (s *GameSession) ResultSent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultSent
}

func (s *GameSession) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Nicknames lists the active participants, for the gamestart response.
func (s *GameSession) Nicknames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.active))
	for _, u := range s.active {
		names = append(names, u.Identity.Nickname)
	}
	return names
}

// CanAcceptNewJoin reports whether a first-time participant may enter
// the lobby right now.
func (s *GameSession) CanAcceptNewJoin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canAcceptNewJoinLocked()
}

func (s *GameSession) canAcceptNewJoinLocked() bool {
	if !s.activated {
		return false
	}
	now := s.now()
	if now.Before(s.createdAt) {
		return false
	}
	if !now.Before(s.gameStartAt) {
		return false
	}
	return len(s.active) < s.capacity
}

// IsReusable reports whether the session may be reinitialized for a
// brand-new game.
func (s *GameSession) IsReusable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isReusableLocked()
}

func (s *GameSession) isReusableLocked() bool {
	if len(s.active) != 0 {
		return false
	}
	if !s.activated {
		return true
	}
	if s.closeAt != nil && !s.now().Before(s.closeAt.Add(s.cfg.DeferRecycleWindow)) {
		return true
	}
	return false
}

// Join admits a participant. A first-time joiner needs an open lobby
// seat; a returning one gets their original record back, and if the
// game already started they re-enter active play directly rather than
// waiting in a second lobby.
func (s *GameSession) Join(identity UserIdentity) (ResultCode, *SessionUser) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findActiveLocked(identity) != nil {
		return AlreadyJoined, nil
	}
	// A room past its aggregation deadline takes no one back.
	if s.closeAt != nil && !s.now().Before(*s.closeAt) {
		return JoinRejected, nil
	}

	user := s.findUserLocked(identity)
	switch {
	case user == nil:
		if !s.canAcceptNewJoinLocked() {
			return JoinRejected, nil
		}
		user = newSessionUser(identity, s.now())
		s.users = append(s.users, user)
	default:
		// A quit is final for this activation.
		if user.HasQuit {
			return JoinRejected, nil
		}
		// Resume: a single lobby phase exists per activation, so a
		// returning participant goes straight back into play once the
		// game has started.
		if !s.now().Before(s.gameStartAt) {
			if _, ok := s.ranking.Lookup(identity); !ok {
				s.ranking.Register(identity, user.JoinedAtTick())
			}
			s.active = append(s.active, user)
			user.IsPlaying = true
		}
	}

	user.attach(s.roomID, s.activationID)
	user.markJoined()
	user.LastActiveAt = s.now()
	return Ok, user
}

// StartPlay moves a joined participant into the active set and
// registers them for ranking under their original join tick.
func (s *GameSession) StartPlay(user *SessionUser) ResultCode {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !user.HasJoined || s.findUserLocked(user.Identity) == nil {
		return NotJoinedUser
	}
	if s.findActiveLocked(user.Identity) != nil {
		return AlreadyJoined
	}
	if code := s.ranking.Register(user.Identity, user.JoinedAtTick()); code != Ok {
		return code
	}
	s.active = append(s.active, user)
	user.IsPlaying = true
	user.LastActiveAt = s.now()
	return Ok
}

// Leave removes a participant from active play. A quit is permanent
// for this activation; a plain leave keeps the record eligible for
// resume until the room closes.
func (s *GameSession) Leave(user *SessionUser, isQuit bool) ResultCode {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !user.ownedBy(s.roomID, s.activationID) {
		return NotJoinedUser
	}
	if user.HasLeft {
		return NotJoinedUser
	}
	s.leaveLocked(user, isQuit)
	return Ok
}

func (s *GameSession) leaveLocked(user *SessionUser, isQuit bool) {
	user.markLeft(isQuit)
	for i, u := range s.active {
		if u.Identity.Same(user.Identity) {
			s.active = append(s.active[:i], s.active[i+1:]...)
			break
		}
	}
}

// IsActive reports whether the participant is currently in active play
// of this session.
func (s *GameSession) IsActive(user *SessionUser) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findActiveLocked(user.Identity) != nil
}

// ReserveClose sets the aggregation deadline after a finishing leave.
// With the room empty it closes immediately; otherwise the first
// straggler timer wins and later leaves never reset it.
func (s *GameSession) ReserveClose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if len(s.active) == 0 {
		s.closeAt = &now
		return
	}
	if s.closeAt == nil {
		deadline := now.Add(s.cfg.ForceCloseGrace)
		s.closeAt = &deadline
	}
}

// TouchUser refreshes the participant's activity clock; the inactivity
// sweep disconnects anyone whose clock goes stale.
func (s *GameSession) TouchUser(user *SessionUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.LastActiveAt = s.now()
}

// FindUser looks up the all-time participant record for an identity.
func (s *GameSession) FindUser(identity UserIdentity) (ResultCode, *SessionUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.findUserLocked(identity)
	if user == nil {
		return NotJoinedUser, nil
	}
	return Ok, user
}

func (s *GameSession) findUserLocked(identity UserIdentity) *SessionUser {
	for _, u := range s.users {
		if u.Identity.Same(identity) {
			return u
		}
	}
	return nil
}

func (s *GameSession) findActiveLocked(identity UserIdentity) *SessionUser {
	for _, u := range s.active {
		if u.Identity.Same(identity) {
			return u
		}
	}
	return nil
}

// UpdateRanking records a participant's latest scores and returns the
// post-update leader alongside their own entry.
func (s *GameSession) UpdateRanking(identity UserIdentity, hostTime float64, itemCount int) (ResultCode, *RankEntry, *RankEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.findUserLocked(identity)
	if user == nil {
		return NotJoinedUser, nil, nil
	}
	user.LastActiveAt = s.now()
	mine := s.ranking.Update(identity, user.JoinedAtTick(), hostTime, itemCount)
	first, err := s.ranking.First()
	if err != nil {
		return UnhandledError, nil, nil
	}
	return Ok, first, mine
}

// Ranking is the read-only lookup used for result polling after close.
func (s *GameSession) Ranking(identity UserIdentity) (ResultCode, *RankEntry, *RankEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mine, ok := s.ranking.Lookup(identity)
	if !ok {
		return NotJoinedUser, nil, nil
	}
	first, err := s.ranking.First()
	if err != nil {
		return UnhandledError, nil, nil
	}
	return Ok, first, mine
}

// DisconnectInactive force-quits every active participant whose last
// activity is older than the threshold, then persists and reports each
// disconnect outside the session lock. Returns how many were dropped.
func (s *GameSession) DisconnectInactive(ctx context.Context, now time.Time, threshold time.Duration, plays PlayStore, status StatusReporter) int {
	s.mu.Lock()
	var stale []*SessionUser
	for _, u := range append([]*SessionUser(nil), s.active...) {
		if now.Sub(u.LastActiveAt) < threshold {
			continue
		}
		if !u.ownedBy(s.roomID, s.activationID) || u.HasLeft {
			continue
		}
		s.leaveLocked(u, true)
		stale = append(stale, u)
	}
	s.mu.Unlock()

	for _, u := range stale {
		userID, err := u.Identity.UserID()
		if err != nil {
			log.Error().Str("user_id", u.Identity.ID).Int("room_id", s.roomID).
				Msg("disconnect sweep: malformed user id")
			continue
		}
		if err := plays.MarkUserStatus(ctx, s.roomID, userID, StatusDisconnected, &now); err != nil {
			log.Error().Err(err).Int("user_id", userID).Int("room_id", s.roomID).
				Msg("disconnect sweep: mark status failed")
		}
		items, ts, err := plays.GetPlayData(ctx, s.roomID, userID)
		if err != nil {
			log.Error().Err(err).Int("user_id", userID).Int("room_id", s.roomID).
				Msg("disconnect sweep: play data fetch failed")
			items, ts = map[int]int{}, now
		}
		if err := s.ReportStatusDelta(ctx, u, items, ts, status); err != nil {
			log.Error().Err(err).Int("user_id", userID).Int("room_id", s.roomID).
				Msg("disconnect sweep: status report failed")
		}
	}
	return len(stale)
}

// ReportStatusDelta pushes the participant's consumption since the last
// report. The cached snapshot only advances after a successful send, so
// a failed push is retried in full on the next attempt.
func (s *GameSession) ReportStatusDelta(ctx context.Context, user *SessionUser, spentItems map[int]int, timestamp time.Time, status StatusReporter) error {
	userID, err := user.Identity.UserID()
	if err != nil {
		return err
	}

	s.mu.Lock()
	playMinutes := int(timestamp.Sub(s.gameStartAt).Minutes())
	if playMinutes < 0 {
		playMinutes = 0
	}
	current := UserStatus{
		UserID:      userID,
		SpentItems:  spentItems,
		SpentEnergy: playMinutes * s.cfg.EnergyCostPerMinute,
		Timestamp:   timestamp,
	}
	delta := current
	if user.CachedStatus != nil {
		delta = user.CachedStatus.Delta(current)
	}
	s.mu.Unlock()

	if err := status.ReportStatus(ctx, delta); err != nil {
		return err
	}

	s.mu.Lock()
	user.CachedStatus = &current
	s.mu.Unlock()
	return nil
}

// SendResultOnce reports the finished room to the app backend. Only the
// first successful call has effect; the flush sweep may retry freely
// until then. The external call happens outside the session lock, so
// delivery is at-least-once and the receiver dedupes by room id.
func (s *GameSession) SendResultOnce(ctx context.Context, plays PlayStore, results ResultReporter) (bool, error) {
	s.mu.Lock()
	if s.resultSent {
		s.mu.Unlock()
		return false, nil
	}
	first, err := s.ranking.First()
	if err != nil {
		// Nobody ever entered play; there is no result to deliver.
		s.resultSent = true
		s.mu.Unlock()
		log.Warn().Int("room_id", s.roomID).Msg("closing room with no ranked participants")
		return false, nil
	}
	userIDs := make([]int, 0, len(s.users))
	for _, u := range s.users {
		if id, err := u.Identity.UserID(); err == nil {
			userIDs = append(userIDs, id)
		}
	}
	winner := *first
	s.mu.Unlock()

	winnerID, err := winner.Identity.UserID()
	if err != nil {
		return false, err
	}
	spentItems, _, err := plays.GetPlayData(ctx, s.roomID, winnerID)
	if err != nil {
		// Leave resultSent unset; the flush sweep retries with the
		// winner's real item usage once the store recovers.
		return false, err
	}

	result := GameResult{
		RoomID:  s.roomID,
		UserIDs: userIDs,
		Winner: GameResultWinner{
			UserID:     winnerID,
			SpentItems: spentItems,
			HostTime:   winner.HostTime,
		},
	}
	if err := results.ReportResult(ctx, result); err != nil {
		return false, err
	}

	s.mu.Lock()
	s.resultSent = true
	s.mu.Unlock()
	return true, nil
}
