package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type statusMark struct {
	roomID int
	userID int
	status PlayStatus
}

type fakePlayStore struct {
	mu          sync.Mutex
	playingRoom map[int]int
	playData    map[int]map[int]int
	marks       []statusMark
	getErr      error
}

func newFakePlayStore() *fakePlayStore {
	return &fakePlayStore{
		playingRoom: map[int]int{},
		playData:    map[int]map[int]int{},
	}
}

func (f *fakePlayStore) FindPlayingRoom(_ context.Context, userID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	roomID, ok := f.playingRoom[userID]
	if !ok {
		return 0, ErrNoActiveRoom
	}
	return roomID, nil
}

func (f *fakePlayStore) MarkUserStatus(_ context.Context, roomID, userID int, status PlayStatus, _ *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks = append(f.marks, statusMark{roomID: roomID, userID: userID, status: status})
	return nil
}

func (f *fakePlayStore) GetPlayData(_ context.Context, _, userID int) (map[int]int, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, time.Time{}, f.getErr
	}
	items, ok := f.playData[userID]
	if !ok {
		return map[int]int{}, time.Time{}, nil
	}
	out := make(map[int]int, len(items))
	for k, v := range items {
		out[k] = v
	}
	return out, time.Time{}, nil
}

func (f *fakePlayStore) lastMark() (statusMark, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.marks) == 0 {
		return statusMark{}, false
	}
	return f.marks[len(f.marks)-1], true
}

type fakeStageSource struct {
	stage string
	err   error
}

func (f *fakeStageSource) RandomStage(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.stage, nil
}

type fakeStatusReporter struct {
	mu    sync.Mutex
	calls []UserStatus
	fail  bool
}

func (f *fakeStatusReporter) ReportStatus(_ context.Context, delta UserStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("status push failed")
	}
	f.calls = append(f.calls, delta)
	return nil
}

func (f *fakeStatusReporter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeResultReporter struct {
	mu      sync.Mutex
	results []GameResult
	fail    bool
}

func (f *fakeResultReporter) ReportResult(_ context.Context, result GameResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("result push failed")
	}
	f.results = append(f.results, result)
	return nil
}

func (f *fakeResultReporter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.results)
}
