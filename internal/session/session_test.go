package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		ForceCloseGrace:     5 * time.Second,
		DeferRecycleWindow:  30 * time.Second,
		EnergyCostPerMinute: 10,
	}
}

// newTestSession returns an activated room with a one-minute lobby and
// a ten-minute play window.
func newTestSession(t *testing.T, clk *fakeClock, capacity int) *GameSession {
	t.Helper()
	s := NewGameSession(7, testConfig(), clk.Now)
	room := RoomInfo{
		RoomID:      7,
		PlayerCount: capacity,
		GameStartAt: clk.Now().Add(time.Minute),
		GameEndAt:   clk.Now().Add(11 * time.Minute),
	}
	if code := s.Activate(room, "stage-1"); code != Ok {
		t.Fatalf("activate: got %v", code)
	}
	return s
}

func mustJoin(t *testing.T, s *GameSession, id string) *SessionUser {
	t.Helper()
	code, user := s.Join(UserIdentity{ID: id, Nickname: "u" + id})
	if code != Ok {
		t.Fatalf("join %s: got %v", id, code)
	}
	return user
}

func mustStartPlay(t *testing.T, s *GameSession, user *SessionUser) {
	t.Helper()
	if code := s.StartPlay(user); code != Ok {
		t.Fatalf("start play %s: got %v", user.Identity.ID, code)
	}
}

func TestJoinCapacity(t *testing.T) {
	clk := newFakeClock()
	s := newTestSession(t, clk, 2)

	mustStartPlay(t, s, mustJoin(t, s, "1"))
	mustStartPlay(t, s, mustJoin(t, s, "2"))

	code, _ := s.Join(UserIdentity{ID: "3"})
	if code != JoinRejected {
		t.Fatalf("expected JoinRejected at capacity, got %v", code)
	}
}

func TestJoinRejectedAfterGameStart(t *testing.T) {
	clk := newFakeClock()
	s := newTestSession(t, clk, 4)

	clk.Advance(2 * time.Minute)
	code, _ := s.Join(UserIdentity{ID: "1"})
	if code != JoinRejected {
		t.Fatalf("expected JoinRejected after start, got %v", code)
	}
}

func TestJoinWhileActiveIsAlreadyJoined(t *testing.T) {
	clk := newFakeClock()
	s := newTestSession(t, clk, 4)

	mustStartPlay(t, s, mustJoin(t, s, "1"))
	code, _ := s.Join(UserIdentity{ID: "1"})
	if code != AlreadyJoined {
		t.Fatalf("expected AlreadyJoined, got %v", code)
	}
}

func TestStartPlayRequiresJoin(t *testing.T) {
	clk := newFakeClock()
	s := newTestSession(t, clk, 4)

	stranger := newSessionUser(UserIdentity{ID: "99"}, clk.Now())
	if code := s.StartPlay(stranger); code != NotJoinedUser {
		t.Fatalf("expected NotJoinedUser, got %v", code)
	}

	user := mustJoin(t, s, "1")
	mustStartPlay(t, s, user)
	if code := s.StartPlay(user); code != AlreadyJoined {
		t.Fatalf("expected AlreadyJoined on second start, got %v", code)
	}
}

func TestResumeReturnsSameRecord(t *testing.T) {
	clk := newFakeClock()
	s := newTestSession(t, clk, 4)

	user := mustJoin(t, s, "1")
	joinedAt := user.JoinedAt
	mustStartPlay(t, s, user)
	if code := s.Leave(user, false); code != Ok {
		t.Fatalf("leave: got %v", code)
	}
	if s.ActiveCount() != 0 {
		t.Fatalf("expected empty active set, got %d", s.ActiveCount())
	}

	clk.Advance(2 * time.Minute)
	code, resumed := s.Join(UserIdentity{ID: "1"})
	if code != Ok {
		t.Fatalf("resume join: got %v", code)
	}
	if resumed != user {
		t.Fatal("expected resume to return the original record")
	}
	if !resumed.JoinedAt.Equal(joinedAt) {
		t.Fatalf("expected original JoinedAt %v, got %v", joinedAt, resumed.JoinedAt)
	}
	// Past game start there is no second lobby; the player is back in
	// active play immediately.
	if !resumed.IsPlaying || s.ActiveCount() != 1 {
		t.Fatalf("expected resumed player active, playing=%v active=%d", resumed.IsPlaying, s.ActiveCount())
	}
}

func TestQuitIsPermanentForActivation(t *testing.T) {
	clk := newFakeClock()
	s := newTestSession(t, clk, 4)

	user := mustJoin(t, s, "1")
	mustStartPlay(t, s, user)
	if code := s.Leave(user, true); code != Ok {
		t.Fatalf("quit: got %v", code)
	}
	if code, _ := s.Join(UserIdentity{ID: "1"}); code != JoinRejected {
		t.Fatalf("expected JoinRejected after quit, got %v", code)
	}
}

func TestLeaveTwiceIsNotJoinedUser(t *testing.T) {
	clk := newFakeClock()
	s := newTestSession(t, clk, 4)

	user := mustJoin(t, s, "1")
	mustStartPlay(t, s, user)
	if code := s.Leave(user, false); code != Ok {
		t.Fatalf("leave: got %v", code)
	}
	if code := s.Leave(user, false); code != NotJoinedUser {
		t.Fatalf("expected NotJoinedUser on double leave, got %v", code)
	}
}

func TestReserveCloseFirstTimerWins(t *testing.T) {
	clk := newFakeClock()
	s := newTestSession(t, clk, 4)

	u1 := mustJoin(t, s, "1")
	u2 := mustJoin(t, s, "2")
	u3 := mustJoin(t, s, "3")
	mustStartPlay(t, s, u1)
	mustStartPlay(t, s, u2)
	mustStartPlay(t, s, u3)

	s.Leave(u1, false)
	s.ReserveClose()
	deadline, ok := s.CloseAt()
	if !ok {
		t.Fatal("expected close deadline after first leave")
	}
	if want := clk.Now().Add(5 * time.Second); !deadline.Equal(want) {
		t.Fatalf("expected deadline %v, got %v", want, deadline)
	}

	clk.Advance(time.Second)
	s.Leave(u2, false)
	s.ReserveClose()
	if got, _ := s.CloseAt(); !got.Equal(deadline) {
		t.Fatalf("expected later leave to keep deadline %v, got %v", deadline, got)
	}
}

func TestReserveCloseEmptyRoomClosesNow(t *testing.T) {
	clk := newFakeClock()
	s := newTestSession(t, clk, 4)

	user := mustJoin(t, s, "1")
	mustStartPlay(t, s, user)
	s.Leave(user, false)
	s.ReserveClose()

	deadline, ok := s.CloseAt()
	if !ok || !deadline.Equal(clk.Now()) {
		t.Fatalf("expected immediate close at %v, got %v (ok=%v)", clk.Now(), deadline, ok)
	}
}

func TestReusableTiming(t *testing.T) {
	clk := newFakeClock()
	s := newTestSession(t, clk, 4)

	user := mustJoin(t, s, "1")
	mustStartPlay(t, s, user)
	s.Leave(user, false)
	s.ReserveClose()

	if s.IsReusable() {
		t.Fatal("freshly closed room must not be reusable yet")
	}
	clk.Advance(29 * time.Second)
	if s.IsReusable() {
		t.Fatal("room must stay reserved inside the recycle window")
	}
	clk.Advance(time.Second)
	if !s.IsReusable() {
		t.Fatal("room must be reusable after the recycle window")
	}
}

func TestActivateRejectsMidGame(t *testing.T) {
	clk := newFakeClock()
	s := newTestSession(t, clk, 4)

	mustStartPlay(t, s, mustJoin(t, s, "1"))
	room := RoomInfo{RoomID: 7, PlayerCount: 4, GameStartAt: clk.Now().Add(time.Minute), GameEndAt: clk.Now().Add(time.Hour)}
	if code := s.Activate(room, "stage-2"); code != UnhandledError {
		t.Fatalf("expected UnhandledError reactivating a live room, got %v", code)
	}
}

func TestActivateDetachesOldParticipants(t *testing.T) {
	clk := newFakeClock()
	s := newTestSession(t, clk, 4)

	user := mustJoin(t, s, "1")
	mustStartPlay(t, s, user)
	s.Leave(user, false)
	s.ReserveClose()
	clk.Advance(time.Minute)

	room := RoomInfo{RoomID: 7, PlayerCount: 4, GameStartAt: clk.Now().Add(time.Minute), GameEndAt: clk.Now().Add(time.Hour)}
	if code := s.Activate(room, "stage-2"); code != Ok {
		t.Fatalf("reactivate: got %v", code)
	}
	if _, ok := user.RoomID(); ok {
		t.Fatal("expected stale participant to be detached")
	}
}

func TestUpdateRankingRequiresMembership(t *testing.T) {
	clk := newFakeClock()
	s := newTestSession(t, clk, 4)

	if code, _, _ := s.UpdateRanking(UserIdentity{ID: "1"}, 10, 0); code != NotJoinedUser {
		t.Fatalf("expected NotJoinedUser, got %v", code)
	}

	u1 := mustJoin(t, s, "1")
	u2 := mustJoin(t, s, "2")
	mustStartPlay(t, s, u1)
	mustStartPlay(t, s, u2)

	code, first, mine := s.UpdateRanking(u1.Identity, 10, 0)
	if code != Ok || first.Identity.ID != "1" || mine.Rank != 1 {
		t.Fatalf("unexpected ranking: code=%v first=%v mine=%v", code, first, mine)
	}
	code, first, mine = s.UpdateRanking(u2.Identity, 20, 0)
	if code != Ok || first.Identity.ID != "2" || mine.Rank != 1 {
		t.Fatalf("expected new leader 2, got code=%v first=%v mine=%v", code, first, mine)
	}
}

func TestDisconnectInactive(t *testing.T) {
	clk := newFakeClock()
	s := newTestSession(t, clk, 4)
	plays := newFakePlayStore()
	status := &fakeStatusReporter{}

	u1 := mustJoin(t, s, "1")
	u2 := mustJoin(t, s, "2")
	mustStartPlay(t, s, u1)
	mustStartPlay(t, s, u2)

	clk.Advance(61 * time.Second)
	s.TouchUser(u2)

	dropped := s.DisconnectInactive(context.Background(), clk.Now(), time.Minute, plays, status)
	if dropped != 1 {
		t.Fatalf("expected 1 disconnect, got %d", dropped)
	}
	if !u1.HasQuit {
		t.Fatal("expected disconnected user marked quit")
	}
	if u2.HasQuit || !u2.IsPlaying {
		t.Fatal("expected touched user untouched by the sweep")
	}
	mark, ok := plays.lastMark()
	if !ok || mark.userID != 1 || mark.status != StatusDisconnected {
		t.Fatalf("expected disconnected mark for user 1, got %+v (ok=%v)", mark, ok)
	}
	if status.callCount() != 1 {
		t.Fatalf("expected 1 status report, got %d", status.callCount())
	}
}

func TestDisconnectInactiveSurvivesPlayDataFailure(t *testing.T) {
	clk := newFakeClock()
	s := newTestSession(t, clk, 4)
	plays := newFakePlayStore()
	plays.getErr = errors.New("db down")
	status := &fakeStatusReporter{}

	u1 := mustJoin(t, s, "1")
	mustStartPlay(t, s, u1)
	clk.Advance(61 * time.Second)

	dropped := s.DisconnectInactive(context.Background(), clk.Now(), time.Minute, plays, status)
	if dropped != 1 {
		t.Fatalf("expected 1 disconnect, got %d", dropped)
	}
	if status.callCount() != 1 {
		t.Fatalf("expected the delta reported despite the fetch failure, got %d", status.callCount())
	}
	if got := status.calls[0].SpentItems; len(got) != 0 {
		t.Fatalf("expected empty spent items fallback, got %v", got)
	}
}

func TestSendResultOnce(t *testing.T) {
	clk := newFakeClock()
	s := newTestSession(t, clk, 4)
	plays := newFakePlayStore()
	plays.playData[1] = map[int]int{3: 2}
	results := &fakeResultReporter{}

	u1 := mustJoin(t, s, "1")
	u2 := mustJoin(t, s, "2")
	mustStartPlay(t, s, u1)
	mustStartPlay(t, s, u2)
	s.UpdateRanking(u1.Identity, 42, 1)
	s.UpdateRanking(u2.Identity, 17, 0)

	sent, err := s.SendResultOnce(context.Background(), plays, results)
	if err != nil || !sent {
		t.Fatalf("first send: sent=%v err=%v", sent, err)
	}
	sent, err = s.SendResultOnce(context.Background(), plays, results)
	if err != nil || sent {
		t.Fatalf("second send must be a no-op: sent=%v err=%v", sent, err)
	}
	if results.callCount() != 1 {
		t.Fatalf("expected exactly 1 result post, got %d", results.callCount())
	}

	got := results.results[0]
	if got.RoomID != 7 || got.Winner.UserID != 1 || got.Winner.HostTime != 42 {
		t.Fatalf("unexpected result payload: %+v", got)
	}
	if len(got.UserIDs) != 2 {
		t.Fatalf("expected both participants listed, got %v", got.UserIDs)
	}
	if got.Winner.SpentItems[3] != 2 {
		t.Fatalf("expected winner play data attached, got %v", got.Winner.SpentItems)
	}
}

func TestSendResultRetriesAfterFailure(t *testing.T) {
	clk := newFakeClock()
	s := newTestSession(t, clk, 4)
	plays := newFakePlayStore()
	results := &fakeResultReporter{fail: true}

	u1 := mustJoin(t, s, "1")
	mustStartPlay(t, s, u1)
	s.UpdateRanking(u1.Identity, 5, 0)

	if sent, err := s.SendResultOnce(context.Background(), plays, results); sent || err == nil {
		t.Fatalf("expected failed send, got sent=%v err=%v", sent, err)
	}
	if s.ResultSent() {
		t.Fatal("failed send must not latch resultSent")
	}

	results.fail = false
	if sent, err := s.SendResultOnce(context.Background(), plays, results); !sent || err != nil {
		t.Fatalf("retry: sent=%v err=%v", sent, err)
	}
}

func TestSendResultRetriesAfterPlayDataFailure(t *testing.T) {
	clk := newFakeClock()
	s := newTestSession(t, clk, 4)
	plays := newFakePlayStore()
	plays.playData[1] = map[int]int{3: 2}
	plays.getErr = errors.New("db down")
	results := &fakeResultReporter{}

	u1 := mustJoin(t, s, "1")
	mustStartPlay(t, s, u1)
	s.UpdateRanking(u1.Identity, 5, 0)

	if sent, err := s.SendResultOnce(context.Background(), plays, results); sent || err == nil {
		t.Fatalf("expected failed send, got sent=%v err=%v", sent, err)
	}
	if s.ResultSent() {
		t.Fatal("failed play data fetch must not latch resultSent")
	}
	if results.callCount() != 0 {
		t.Fatalf("expected no result post while the store is down, got %d", results.callCount())
	}

	plays.getErr = nil
	if sent, err := s.SendResultOnce(context.Background(), plays, results); !sent || err != nil {
		t.Fatalf("retry: sent=%v err=%v", sent, err)
	}
	if got := results.results[0].Winner.SpentItems; got[3] != 2 {
		t.Fatalf("expected winner play data on the retry, got %v", got)
	}
}

func TestSendResultEmptyRankingLatchesWithoutPost(t *testing.T) {
	clk := newFakeClock()
	s := newTestSession(t, clk, 4)
	plays := newFakePlayStore()
	results := &fakeResultReporter{}

	sent, err := s.SendResultOnce(context.Background(), plays, results)
	if err != nil || sent {
		t.Fatalf("expected silent latch, got sent=%v err=%v", sent, err)
	}
	if !s.ResultSent() {
		t.Fatal("empty room must still latch resultSent")
	}
	if results.callCount() != 0 {
		t.Fatalf("expected no result post, got %d", results.callCount())
	}
}

func TestReportStatusDeltaCachesOnlyAfterSuccess(t *testing.T) {
	clk := newFakeClock()
	s := newTestSession(t, clk, 4)
	status := &fakeStatusReporter{fail: true}

	user := mustJoin(t, s, "1")
	mustStartPlay(t, s, user)

	// Two and a half minutes into play; energy accrues per whole minute.
	ts := s.GameStartAt().Add(150 * time.Second)
	items := map[int]int{2: 4}
	if err := s.ReportStatusDelta(context.Background(), user, items, ts, status); err == nil {
		t.Fatal("expected failing report to error")
	}
	if user.CachedStatus != nil {
		t.Fatal("failed report must not advance the cached snapshot")
	}

	status.fail = false
	if err := s.ReportStatusDelta(context.Background(), user, items, ts, status); err != nil {
		t.Fatalf("report: %v", err)
	}
	first := status.calls[0]
	if first.SpentEnergy != 20 || first.SpentItems[2] != 4 {
		t.Fatalf("expected full snapshot (energy 20, items 4), got %+v", first)
	}

	ts2 := s.GameStartAt().Add(210 * time.Second)
	if err := s.ReportStatusDelta(context.Background(), user, map[int]int{2: 7}, ts2, status); err != nil {
		t.Fatalf("second report: %v", err)
	}
	second := status.calls[1]
	if second.SpentEnergy != 10 || second.SpentItems[2] != 3 {
		t.Fatalf("expected delta (energy 10, items 3), got %+v", second)
	}
}
