package session

import (
	"errors"
	"sort"
)

var errNoEntries = errors.New("ranking has no entries")

// RankEntry is one participant's standing inside a room. Rank is
// reassigned on every update; HostTime and ItemCount are the latest
// reported cumulative values, not deltas.
type RankEntry struct {
	Identity     UserIdentity
	JoinedAtTick int64
	Rank         int
	HostTime     float64
	ItemCount    int
}

// Ranking keeps the total order for one room. The comparator is total:
// host time descending, then item count descending, then join tick
// ascending. Join ticks are unique per activation, so no two entries
// ever compare equal.
//
// Ranking is not safe for concurrent use on its own; the owning
// GameSession serializes access.
type Ranking struct {
	entries []*RankEntry
	byUser  map[string]*RankEntry
}

func NewRanking() *Ranking {
	return &Ranking{byUser: map[string]*RankEntry{}}
}

// Register creates a zero-score entry for a participant entering play.
// Callers register each identity at most once per activation.
func (r *Ranking) Register(identity UserIdentity, joinedAtTick int64) ResultCode {
	if _, ok := r.byUser[identity.ID]; ok {
		return DuplicateEntry
	}
	entry := &RankEntry{Identity: identity, JoinedAtTick: joinedAtTick}
	r.entries = append(r.entries, entry)
	r.byUser[identity.ID] = entry
	r.resort()
	return Ok
}

// Update upserts the participant's scores and reassigns all ranks.
func (r *Ranking) Update(identity UserIdentity, joinedAtTick int64, hostTime float64, itemCount int) *RankEntry {
	entry, ok := r.byUser[identity.ID]
	if !ok {
		entry = &RankEntry{Identity: identity, JoinedAtTick: joinedAtTick}
		r.entries = append(r.entries, entry)
		r.byUser[identity.ID] = entry
	}
	entry.HostTime = hostTime
	entry.ItemCount = itemCount
	r.resort()
	return entry
}

// First returns the current leader. Callers must not ask before at
// least one participant has been registered or updated.
func (r *Ranking) First() (*RankEntry, error) {
	if len(r.entries) == 0 {
		return nil, errNoEntries
	}
	return r.entries[0], nil
}

func (r *Ranking) Lookup(identity UserIdentity) (*RankEntry, bool) {
	entry, ok := r.byUser[identity.ID]
	return entry, ok
}

func (r *Ranking) Len() int { return len(r.entries) }

// Clear drops every entry; called when the room is reactivated.
func (r *Ranking) Clear() {
	r.entries = nil
	r.byUser = map[string]*RankEntry{}
}

func (r *Ranking) resort() {
	sort.SliceStable(r.entries, func(i, j int) bool {
		a, b := r.entries[i], r.entries[j]
		if a.HostTime != b.HostTime {
			return a.HostTime > b.HostTime
		}
		if a.ItemCount != b.ItemCount {
			return a.ItemCount > b.ItemCount
		}
		return a.JoinedAtTick < b.JoinedAtTick
	})
	for i, entry := range r.entries {
		entry.Rank = i + 1
	}
}
