package fleet

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store publishes immutable Snapshots.  Readers call Snapshot() from any
// goroutine; only the ingestion boundary calls the Replace methods.  Every
// replace swaps whole collections and bumps the version.
type Store struct {
	cur atomic.Pointer[Snapshot]

	writeMu sync.Mutex
	now     func() time.Time

	subMu   sync.Mutex
	subs    map[int]chan uint64
	nextSub int
}

// NewStore returns an empty store at version 0.
func NewStore() *Store {
	s := &Store{
		now:  func() time.Time { return time.Now().UTC() },
		subs: make(map[int]chan uint64),
	}
	s.cur.Store(newSnapshot(0, nil, nil, nil, s.now()))
	return s
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.cur.Load()
}

// Version is shorthand for Snapshot().Version().
func (s *Store) Version() uint64 {
	return s.cur.Load().version
}

// Replace swaps all three collections.
func (s *Store) Replace(trackers []Tracker, facilities []Facility, alerts []Alert) *Snapshot {
	return s.swap(func(*Snapshot) ([]Tracker, []Facility, []Alert) {
		return trackers, facilities, alerts
	})
}

// ReplaceTrackers swaps the tracker collection only.
func (s *Store) ReplaceTrackers(trackers []Tracker) *Snapshot {
	return s.swap(func(prev *Snapshot) ([]Tracker, []Facility, []Alert) {
		return trackers, prev.facilities, prev.alerts
	})
}

// ReplaceFacilities swaps the facility collection only.
func (s *Store) ReplaceFacilities(facilities []Facility) *Snapshot {
	return s.swap(func(prev *Snapshot) ([]Tracker, []Facility, []Alert) {
		return prev.trackers, facilities, prev.alerts
	})
}

// ReplaceAlerts swaps the alert collection only.
func (s *Store) ReplaceAlerts(alerts []Alert) *Snapshot {
	return s.swap(func(prev *Snapshot) ([]Tracker, []Facility, []Alert) {
		return prev.trackers, prev.facilities, alerts
	})
}

// Update derives the next collections from the current snapshot under the
// write lock.  fn must not retain the slices it is given.
func (s *Store) Update(fn func(prev *Snapshot) ([]Tracker, []Facility, []Alert)) *Snapshot {
	return s.swap(fn)
}

func (s *Store) swap(next func(prev *Snapshot) ([]Tracker, []Facility, []Alert)) *Snapshot {
	s.writeMu.Lock()
	prev := s.cur.Load()
	t, f, a := next(prev)
	snap := newSnapshot(prev.version+1, t, f, a, s.now())
	s.cur.Store(snap)
	s.writeMu.Unlock()

	s.notify(snap.version)
	return snap
}

// Subscribe returns a channel that receives the new version after every
// replace, and a cancel func.  Slow subscribers miss intermediate versions
// rather than blocking writers.
func (s *Store) Subscribe(buffer int) (<-chan uint64, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan uint64, buffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) notify(version uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- version:
		default:
		}
	}
}

//Personal.AI order the ending
