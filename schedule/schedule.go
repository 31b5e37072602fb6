// Package schedule caches one contiguous window of the slot leader
// schedule and decides when that window needs to be refreshed.
package schedule

import (
	"sync/atomic"

	sgo "github.com/SolmateDev/solana-go"
)

// WindowSize is the number of contiguous slots fetched per
// get_slot_leaders request.
const WindowSize = 32

// PrefetchThreshold is how many slots of headroom are kept against RPC
// latency before a new window is requested.
const PrefetchThreshold = 16

// window is one immutable [firstSlot, lastSlot] snapshot of
// slot->identity mappings. Replaced wholesale by Fill, never mutated in
// place, mirroring cluster.Table's swap-on-refresh discipline.
type window struct {
	hasResponse bool
	firstSlot   uint64
	leaders     []sgo.PublicKey // leaders[i] is the leader of firstSlot+i
}

// Schedule caches at most one leader-schedule window. rpcctl's control
// -plane actor calls MarkRequested/Fill/Fail; the forwarder's own
// goroutine calls LeaderOf/NeedsPrefetch through the resolver. The
// window is swapped atomically so both sides see a consistent snapshot
// without a torn read between firstSlot and leaders.
type Schedule struct {
	win      atomic.Pointer[window]
	inFlight atomic.Bool
}

func New() *Schedule {
	s := &Schedule{}
	s.win.Store(&window{})
	return s
}

func (s *Schedule) HasResponse() bool {
	return s.win.Load().hasResponse
}

func (s *Schedule) LastSlot() uint64 {
	w := s.win.Load()
	if !w.hasResponse {
		return 0
	}
	return w.firstSlot + uint64(len(w.leaders)) - 1
}

// LeaderOf returns the identity key scheduled for slot, if slot falls
// inside the cached window.
func (s *Schedule) LeaderOf(slot uint64) (sgo.PublicKey, bool) {
	w := s.win.Load()
	if !w.hasResponse || slot < w.firstSlot {
		return sgo.PublicKey{}, false
	}
	idx := slot - w.firstSlot
	if idx >= uint64(len(w.leaders)) {
		return sgo.PublicKey{}, false
	}
	return w.leaders[idx], true
}

// NeedsPrefetch reports whether currentSlot warrants issuing a new
// get_slot_leaders request, per §4.4: only once a response has been
// received, once headroom has shrunk below the threshold, and only if
// no request is already in flight.
func (s *Schedule) NeedsPrefetch(currentSlot uint64) bool {
	if s.inFlight.Load() {
		return false
	}
	w := s.win.Load()
	if !w.hasResponse {
		return false
	}
	last := w.firstSlot + uint64(len(w.leaders)) - 1
	if last < PrefetchThreshold {
		return currentSlot > 0
	}
	return currentSlot > last-PrefetchThreshold
}

// MarkRequested suppresses further prefetch issuance until Fill or Fail
// is called with the response.
func (s *Schedule) MarkRequested() {
	s.inFlight.Store(true)
}

// Fill installs a freshly fetched window, replacing whatever was cached
// before (the window is expected to satisfy last-first+1 == len(leaders)
// by construction of the request).
func (s *Schedule) Fill(firstSlot uint64, leaders []sgo.PublicKey) {
	s.win.Store(&window{hasResponse: true, firstSlot: firstSlot, leaders: leaders})
	s.inFlight.Store(false)
}

// Fail clears the in-flight flag without discarding the previously
// cached window (stale but usable).
func (s *Schedule) Fail() {
	s.inFlight.Store(false)
}
