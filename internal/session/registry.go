package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Registry owns the pool of room sessions. It is the only holder of the
// room-id map and the only component allowed to allocate, reactivate or
// hand out sessions, which is what keeps the at-most-one-live-session
// invariant under concurrent joins.
//
// Lock order is Registry then GameSession, never the reverse, and the
// registry lock is never held across store or backend I/O.
type Registry struct {
	mu       sync.Mutex
	sessions map[int]*GameSession

	cfg     Config
	plays   PlayStore
	stages  StageSource
	status  StatusReporter
	results ResultReporter
	now     func() time.Time
}

func NewRegistry(cfg Config, plays PlayStore, stages StageSource, status StatusReporter, results ResultReporter) *Registry {
	return &Registry{
		sessions: map[int]*GameSession{},
		cfg:      cfg,
		plays:    plays,
		stages:   stages,
		status:   status,
		results:  results,
		now:      time.Now,
	}
}

// SetClock swaps the wall clock for tests. New sessions inherit it.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
	for _, s := range r.sessions {
		s.mu.Lock()
		s.now = now
		s.mu.Unlock()
	}
}

// Join routes a user into a room: a still-open game they previously
// left resumes in place, otherwise the room named by roomInfo is found,
// reactivated or created.
func (r *Registry) Join(ctx context.Context, identity UserIdentity, room RoomInfo) (ResultCode, *SessionUser, *GameSession) {
	if identity.ID == "" {
		return InvalidParameter, nil, nil
	}

	session := r.findResumableSession(ctx, identity)
	if session == nil {
		var code ResultCode
		code, session = r.getOrCreateActiveSession(ctx, room)
		if code != Ok {
			return code, nil, nil
		}
	}

	code, user := session.Join(identity)
	if code != Ok {
		return code, nil, session
	}
	return Ok, user, session
}

// findResumableSession returns the session a previously-joined,
// non-quit user should re-enter, or nil. The persistence port names the
// candidate room; the in-memory session then has to confirm it.
func (r *Registry) findResumableSession(ctx context.Context, identity UserIdentity) *GameSession {
	userID, err := identity.UserID()
	if err != nil {
		return nil
	}
	roomID, err := r.plays.FindPlayingRoom(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNoActiveRoom) {
			log.Error().Err(err).Int("user_id", userID).Msg("resume lookup failed")
		}
		return nil
	}

	r.mu.Lock()
	session, ok := r.sessions[roomID]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	// A room waiting to be recycled cannot be resumed.
	if session.IsReusable() {
		return nil
	}
	code, user := session.FindUser(identity)
	if code != Ok {
		return nil
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if !user.HasJoined || user.HasQuit {
		return nil
	}
	if session.closeAt != nil && !session.now().Before(*session.closeAt) {
		return nil
	}
	return session
}

// getOrCreateActiveSession returns the live session for the room,
// reinitializing a reclaimed one or allocating fresh as needed.
func (r *Registry) getOrCreateActiveSession(ctx context.Context, room RoomInfo) (ResultCode, *GameSession) {
	r.mu.Lock()
	if session, ok := r.sessions[room.RoomID]; ok && !session.IsReusable() {
		r.mu.Unlock()
		return Ok, session
	}
	r.mu.Unlock()

	// Stage selection hits the store, so it happens outside the
	// registry lock; the map is re-checked before any mutation.
	stageID, err := r.stages.RandomStage(ctx)
	if err != nil {
		log.Error().Err(err).Int("room_id", room.RoomID).Msg("stage selection failed")
		return UnhandledError, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[room.RoomID]
	if ok && !session.IsReusable() {
		return Ok, session
	}
	if !ok {
		session = NewGameSession(room.RoomID, r.cfg, r.now)
		r.sessions[room.RoomID] = session
	}
	if code := session.Activate(room, stageID); code != Ok {
		return code, nil
	}
	return Ok, session
}

// Session returns the registered session for a room id.
func (r *Registry) Session(roomID int) (*GameSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[roomID]
	return session, ok
}

// sessionFor validates that the participant's owner handle still maps
// to a registered session of the same activation.
func (r *Registry) sessionFor(user *SessionUser) (*GameSession, ResultCode) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.owner == nil {
		return nil, SessionNotFound
	}
	session, ok := r.sessions[user.owner.roomID]
	if !ok {
		return nil, SessionNotFound
	}
	session.mu.Lock()
	same := user.ownedBy(session.roomID, session.activationID)
	session.mu.Unlock()
	if !same {
		return nil, SessionNotFound
	}
	return session, Ok
}

// StartPlay begins active play for a joined participant.
func (r *Registry) StartPlay(user *SessionUser) (ResultCode, *GameSession) {
	session, code := r.sessionFor(user)
	if code != Ok {
		return code, nil
	}
	return session.StartPlay(user), session
}

// Leave removes the participant from their session; isQuit makes the
// departure permanent for this activation.
func (r *Registry) Leave(user *SessionUser, isQuit bool) (ResultCode, *GameSession) {
	session, code := r.sessionFor(user)
	if code != Ok {
		return code, nil
	}
	return session.Leave(user, isQuit), session
}

// GetUser resolves a token's identity and room id to the participant
// record, for authenticated per-request lookups.
func (r *Registry) GetUser(identity UserIdentity, roomID int) (ResultCode, *SessionUser, *GameSession) {
	r.mu.Lock()
	session, ok := r.sessions[roomID]
	r.mu.Unlock()
	if !ok {
		return SessionNotFound, nil, nil
	}
	code, user := session.FindUser(identity)
	if code != Ok {
		return code, nil, nil
	}
	return Ok, user, session
}

// DisconnectInactiveUsers runs the inactivity sweep over every session.
func (r *Registry) DisconnectInactiveUsers(ctx context.Context, threshold time.Duration) int {
	now := r.clock()()
	total := 0
	for _, session := range r.snapshot() {
		total += session.DisconnectInactive(ctx, now, threshold, r.plays, r.status)
	}
	return total
}

// FlushFinishedResults reports every room past its aggregation deadline
// whose result has not been delivered yet, returning the sessions that
// were newly flushed in this pass. A failing room is logged and left
// for the next interval without blocking the rest of the sweep.
func (r *Registry) FlushFinishedResults(ctx context.Context) []*GameSession {
	now := r.clock()()
	var flushed []*GameSession
	for _, session := range r.snapshot() {
		closeAt, ok := session.CloseAt()
		if !ok || now.Before(closeAt) {
			continue
		}
		if session.ResultSent() {
			continue
		}
		sent, err := session.SendResultOnce(ctx, r.plays, r.results)
		if err != nil {
			log.Error().Err(err).Int("room_id", session.RoomID()).Msg("result post failed")
			continue
		}
		if sent {
			flushed = append(flushed, session)
		}
	}
	return flushed
}

func (r *Registry) snapshot() []*GameSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions := make([]*GameSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

func (r *Registry) clock() func() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now
}

// StartSweeps launches the inactivity and result-flush loops. Both stop
// with ctx; an in-flight pass finishes before the stop is honored.
func (r *Registry) StartSweeps(ctx context.Context, healthInterval, threshold, resultInterval time.Duration) {
	if healthInterval <= 0 {
		healthInterval = 30 * time.Second
	}
	if resultInterval <= 0 {
		resultInterval = 30 * time.Second
	}
	healthTicker := time.NewTicker(healthInterval)
	resultTicker := time.NewTicker(resultInterval)
	go func() {
		defer healthTicker.Stop()
		defer resultTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-healthTicker.C:
				if n := r.DisconnectInactiveUsers(ctx, threshold); n > 0 {
					log.Info().Int("count", n).Msg("disconnected inactive users")
				}
			case <-resultTicker.C:
				if flushed := r.FlushFinishedResults(ctx); len(flushed) > 0 {
					log.Info().Int("count", len(flushed)).Msg("posted game results")
				}
			}
		}
	}()
}
