// Package nodes defines the identity of a monitored host and the
// allocator that hands out their ids.
package nodes

import (
	"errors"
	"math"
	"math/rand/v2"
)

var ErrIDSpaceExhausted = errors.New("node id space exhausted")

// Identity is a monitored target. ID is unique among the identities
// produced by one Allocator.
type Identity struct {
	ID       int
	Hostname string
	Address  string
}

// Allocator hands out random, collision-free ids in [1, max]. It carries
// the set of ids in use, so pass the same Allocator to every identity
// created during registration. Not safe for concurrent use.
type Allocator struct {
	used map[int]struct{}
	max  int
	rng  *rand.Rand
}

// NewAllocator returns an allocator over [1, max]. max <= 0 selects the
// full positive int32 range.
func NewAllocator(max int) *Allocator {
	if max <= 0 {
		max = math.MaxInt32
	}
	return &Allocator{
		used: make(map[int]struct{}),
		max:  max,
		rng:  rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Next draws ids until one is free. Once every id is taken it returns
// ErrIDSpaceExhausted instead of spinning.
func (a *Allocator) Next() (int, error) {
	if len(a.used) >= a.max {
		return 0, ErrIDSpaceExhausted
	}
	for {
		id := a.rng.IntN(a.max) + 1
		if _, taken := a.used[id]; !taken {
			a.used[id] = struct{}{}
			return id, nil
		}
	}
}

// Release makes id available again.
func (a *Allocator) Release(id int) {
	delete(a.used, id)
}

func (a *Allocator) Len() int {
	return len(a.used)
}

// New builds an Identity with a fresh id from a.
func New(a *Allocator, hostname, address string) (Identity, error) {
	id, err := a.Next()
	if err != nil {
		return Identity{}, err
	}
	return Identity{ID: id, Hostname: hostname, Address: address}, nil
}
