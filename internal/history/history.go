// Package history keeps a trailing time window of samples per node.
package history

import (
	"errors"
	"iter"
	"slices"
	"sync"
	"time"
)

// DefaultWindow is how far back samples are retained by default.
const DefaultWindow = 24 * time.Hour

// ErrOutOfOrder is returned when a sample is older than the newest one
// already stored for that node. Such samples are rejected, not re-sorted.
var ErrOutOfOrder = errors.New("history: sample older than newest retained sample")

// Sample is one observation, stamped with time elapsed since client start.
type Sample struct {
	Elapsed time.Duration
	Value   float64
}

// Store holds one series per node id. Each series has its own lock, so
// writers and readers of different nodes never contend; the store-level
// lock only guards the id-to-series map.
type Store struct {
	mu     sync.RWMutex
	window time.Duration
	nodes  map[int]*series
}

// series is append-only at the tail; eviction advances head. The dead
// prefix is compacted away once it is at least as long as the live part,
// which keeps both memory and per-append cost amortised constant.
type series struct {
	mu   sync.RWMutex
	data []Sample
	head int
}

// NewStore creates a store retaining samples for window. A non-positive
// window selects DefaultWindow.
func NewStore(window time.Duration) *Store {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Store{
		window: window,
		nodes:  make(map[int]*series),
	}
}

func (s *Store) Window() time.Duration {
	return s.window
}

// Append adds sample at the tail of nodeID's series and then evicts from
// the head every sample more than one window older than it. Eviction stops
// at the first retained sample.
func (s *Store) Append(nodeID int, sample Sample) error {
	ser := s.getOrCreate(nodeID)

	ser.mu.Lock()
	defer ser.mu.Unlock()

	if n := len(ser.data); n > ser.head && sample.Elapsed < ser.data[n-1].Elapsed {
		return ErrOutOfOrder
	}
	ser.data = append(ser.data, sample)

	for ser.head < len(ser.data) && sample.Elapsed-ser.data[ser.head].Elapsed > s.window {
		ser.head++
	}
	if ser.head > 0 && ser.head >= len(ser.data)-ser.head {
		n := copy(ser.data, ser.data[ser.head:])
		ser.data = ser.data[:n]
		ser.head = 0
	}
	return nil
}

// Get returns a view of nodeID's series. The view is lazy: nothing is read
// until it is iterated, and every iteration sees the contents current at
// that moment. Unknown ids give an empty view that fills in once samples
// arrive.
func (s *Store) Get(nodeID int) View {
	return View{store: s, nodeID: nodeID}
}

// Nodes returns the ids that have a series, in ascending order.
func (s *Store) Nodes() []int {
	s.mu.RLock()
	ids := make([]int, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// Remove drops nodeID's series.
func (s *Store) Remove(nodeID int) {
	s.mu.Lock()
	delete(s.nodes, nodeID)
	s.mu.Unlock()
}

func (s *Store) lookup(nodeID int) *series {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes[nodeID]
}

func (s *Store) getOrCreate(nodeID int) *series {
	if ser := s.lookup(nodeID); ser != nil {
		return ser
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ser, ok := s.nodes[nodeID]
	if !ok {
		ser = &series{}
		s.nodes[nodeID] = ser
	}
	return ser
}

// View is a read-only handle on one node's series.
type View struct {
	store  *Store
	nodeID int
}

// Samples copies the current contents, oldest first.
func (v View) Samples() []Sample {
	ser := v.store.lookup(v.nodeID)
	if ser == nil {
		return nil
	}
	ser.mu.RLock()
	defer ser.mu.RUnlock()
	return slices.Clone(ser.data[ser.head:])
}

// All iterates the contents current when iteration starts. The series is
// not locked while the loop body runs.
func (v View) All() iter.Seq[Sample] {
	return func(yield func(Sample) bool) {
		for _, s := range v.Samples() {
			if !yield(s) {
				return
			}
		}
	}
}

func (v View) Len() int {
	ser := v.store.lookup(v.nodeID)
	if ser == nil {
		return 0
	}
	ser.mu.RLock()
	defer ser.mu.RUnlock()
	return len(ser.data) - ser.head
}

// Last returns the newest sample.
func (v View) Last() (Sample, bool) {
	ser := v.store.lookup(v.nodeID)
	if ser == nil {
		return Sample{}, false
	}
	ser.mu.RLock()
	defer ser.mu.RUnlock()
	if len(ser.data) == ser.head {
		return Sample{}, false
	}
	return ser.data[len(ser.data)-1], true
}
