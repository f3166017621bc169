// Package session holds the engine-wide shared state (spec §3) and the
// past/live workers built around it (spec §4.6, §4.7).
package session

import (
	"slices"
	"sync"

	"github.com/qwer-lives/instarec/internal/manifest"
	"github.com/qwer-lives/instarec/internal/store"
)

// LiveItem is either a timestamp to fetch or the end-of-stream sentinel
// (IsEnd == true), carried on Session.LiveQueue.
type LiveItem struct {
	T     uint64
	IsEnd bool
}

// Session is the mutable state shared by every worker for one run. Field
// discipline (spec §3):
//   - BaseURL, StreamInfo, Store are written once during startup and
//     are read-only thereafter.
//   - LiveQueue is produced solely by the live poller and consumed solely
//     by the live downloader.
//   - QueuedLiveTimestamps is owned by the live poller and never exposed.
//   - FirstSegmentT, TotalExpectedSegments, MissingSegmentTimestamps are
//     written by at most the past and live workers, guarded by mu.
type Session struct {
	BaseURL    string
	StreamInfo manifest.StreamInfo
	Store      *store.Store

	LiveQueue chan LiveItem

	manifestURL string

	mu                       sync.Mutex
	firstSegmentT            *uint64
	totalExpectedSegments    int
	missingSegmentTimestamps map[uint64]struct{}
}

// New builds a Session with its live queue and counters ready to use.
func New(baseURL string, info manifest.StreamInfo, st *store.Store, liveQueueCapacity int) *Session {
	return &Session{
		BaseURL:                  baseURL,
		StreamInfo:               info,
		Store:                    st,
		LiveQueue:                make(chan LiveItem, liveQueueCapacity),
		missingSegmentTimestamps: make(map[uint64]struct{}),
	}
}

// RecordAttempt increments the total-expected-segments counter. Call once
// per attempted segment, past or live (spec §3).
func (s *Session) RecordAttempt() {
	s.mu.Lock()
	s.totalExpectedSegments++
	s.mu.Unlock()
}

// RecordSuccess updates FirstSegmentT if t is the earliest success seen so
// far.
func (s *Session) RecordSuccess(t uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firstSegmentT == nil || t < *s.firstSegmentT {
		v := t
		s.firstSegmentT = &v
	}
}

// RecordMiss adds t to the set of timestamps whose paired fetch failed.
func (s *Session) RecordMiss(t uint64) {
	s.mu.Lock()
	s.missingSegmentTimestamps[t] = struct{}{}
	s.mu.Unlock()
}

// Snapshot is a consistent read of the run's counters, for the summary
// writer.
type Snapshot struct {
	FirstSegmentT         *uint64
	TotalExpectedSegments int
	MissingSegments       []uint64
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	missing := make([]uint64, 0, len(s.missingSegmentTimestamps))
	for t := range s.missingSegmentTimestamps {
		missing = append(missing, t)
	}
	slices.Sort(missing)

	var first *uint64
	if s.firstSegmentT != nil {
		v := *s.firstSegmentT
		first = &v
	}

	return Snapshot{
		FirstSegmentT:         first,
		TotalExpectedSegments: s.totalExpectedSegments,
		MissingSegments:       missing,
	}
}
