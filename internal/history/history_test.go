package history

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreWindow(t *testing.T) {
	tests := []struct {
		name   string
		window time.Duration
		want   time.Duration
	}{
		{"default", 0, DefaultWindow},
		{"negative", -time.Hour, DefaultWindow},
		{"custom", time.Hour, time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewStore(tt.window).Window())
		})
	}
}

func TestTimelineWindowScenario(t *testing.T) {
	s := NewStore(24 * time.Hour)
	const timeline = 7
	for h := 0; h <= 30; h++ {
		require.NoError(t, s.Append(timeline, Sample{Elapsed: time.Duration(h) * time.Hour, Value: 50.0}))
	}

	got := s.Get(timeline).Samples()
	require.Len(t, got, 25)
	for i, sample := range got {
		assert.Equal(t, time.Duration(i+6)*time.Hour, sample.Elapsed)
		assert.Equal(t, 50.0, sample.Value)
	}
}

func TestWindowBoundaryIsInclusive(t *testing.T) {
	s := NewStore(time.Minute)
	require.NoError(t, s.Append(1, Sample{Elapsed: 0}))
	require.NoError(t, s.Append(1, Sample{Elapsed: time.Minute}))
	assert.Equal(t, 2, s.Get(1).Len(), "a sample exactly one window old is kept")

	require.NoError(t, s.Append(1, Sample{Elapsed: time.Minute + time.Nanosecond}))
	assert.Equal(t, 2, s.Get(1).Len())
}

// After every append the retained set must be exactly the appended samples
// within one window of the newest: nothing stale kept, nothing fresh lost.
func TestRetentionMatchesReference(t *testing.T) {
	window := 10 * time.Second
	s := NewStore(window)
	rng := rand.New(rand.NewPCG(1, 2))

	var all []Sample
	var now time.Duration
	for i := 0; i < 5000; i++ {
		// Mostly steady ticks, occasional bursts and long gaps.
		switch rng.IntN(20) {
		case 0:
			now += 30 * time.Second
		case 1:
		default:
			now += time.Duration(rng.IntN(2000)) * time.Millisecond
		}
		sample := Sample{Elapsed: now, Value: float64(i)}
		require.NoError(t, s.Append(3, sample))
		all = append(all, sample)

		var want []Sample
		for _, a := range all {
			if now-a.Elapsed <= window {
				want = append(want, a)
			}
		}
		got := s.Get(3).Samples()
		require.Equal(t, want, got, "after append %d", i)
	}
}

func TestOutOfOrderRejected(t *testing.T) {
	s := NewStore(time.Hour)
	require.NoError(t, s.Append(1, Sample{Elapsed: 10 * time.Second, Value: 1}))
	require.NoError(t, s.Append(1, Sample{Elapsed: 10 * time.Second, Value: 2}), "equal timestamps are ordered")

	err := s.Append(1, Sample{Elapsed: 9 * time.Second, Value: 3})
	assert.ErrorIs(t, err, ErrOutOfOrder)
	assert.Equal(t, []Sample{{10 * time.Second, 1}, {10 * time.Second, 2}}, s.Get(1).Samples())

	// Other nodes have their own ordering.
	assert.NoError(t, s.Append(2, Sample{Elapsed: time.Second}))
}

func TestViewIsLazyAndRestartable(t *testing.T) {
	s := NewStore(time.Hour)
	v := s.Get(42)
	assert.Equal(t, 0, v.Len())
	_, ok := v.Last()
	assert.False(t, ok)

	require.NoError(t, s.Append(42, Sample{Elapsed: time.Second, Value: 1}))
	require.NoError(t, s.Append(42, Sample{Elapsed: 2 * time.Second, Value: 2}))

	var first []float64
	for sample := range v.All() {
		first = append(first, sample.Value)
	}
	assert.Equal(t, []float64{1, 2}, first)

	require.NoError(t, s.Append(42, Sample{Elapsed: 3 * time.Second, Value: 3}))
	var second []float64
	for sample := range v.All() {
		second = append(second, sample.Value)
	}
	assert.Equal(t, []float64{1, 2, 3}, second)

	last, ok := v.Last()
	require.True(t, ok)
	assert.Equal(t, 3.0, last.Value)
}

func TestIterationStopsEarly(t *testing.T) {
	s := NewStore(time.Hour)
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Append(1, Sample{Elapsed: time.Duration(i) * time.Second}))
	}
	n := 0
	for range s.Get(1).All() {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}

func TestIterationDoesNotBlockWriters(t *testing.T) {
	s := NewStore(time.Hour)
	require.NoError(t, s.Append(1, Sample{Elapsed: time.Second}))
	require.NoError(t, s.Append(2, Sample{Elapsed: time.Second}))

	for range s.Get(1).All() {
		// Appending to the node being read, and to another node, from
		// inside the loop body must not deadlock.
		require.NoError(t, s.Append(1, Sample{Elapsed: 2 * time.Second}))
		require.NoError(t, s.Append(2, Sample{Elapsed: 2 * time.Second}))
	}
	assert.Equal(t, 2, s.Get(1).Len())
	assert.Equal(t, 2, s.Get(2).Len())
}

func TestNodesAreIsolated(t *testing.T) {
	s := NewStore(time.Minute)
	var wg sync.WaitGroup
	for _, id := range []int{1, 2} {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				assert.NoError(t, s.Append(id, Sample{Elapsed: time.Duration(i) * time.Second, Value: float64(id)}))
			}
		}(id)
	}
	// Concurrent readers.
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				for sample := range s.Get(1).All() {
					assert.Equal(t, 1.0, sample.Value)
				}
			}
		}()
	}
	wg.Wait()

	for _, id := range []int{1, 2} {
		got := s.Get(id).Samples()
		require.Len(t, got, 61)
		for _, sample := range got {
			assert.Equal(t, float64(id), sample.Value)
		}
	}
	assert.Equal(t, []int{1, 2}, s.Nodes())
}

func TestRemove(t *testing.T) {
	s := NewStore(time.Hour)
	require.NoError(t, s.Append(5, Sample{Elapsed: time.Second}))
	s.Remove(5)
	assert.Empty(t, s.Nodes())
	assert.Nil(t, s.Get(5).Samples())
}

func TestCompactionKeepsContents(t *testing.T) {
	s := NewStore(100 * time.Second)
	for i := 0; i < 10_000; i++ {
		require.NoError(t, s.Append(1, Sample{Elapsed: time.Duration(i) * time.Second, Value: float64(i)}))
	}
	got := s.Get(1).Samples()
	require.Len(t, got, 101)
	assert.Equal(t, 9899.0, got[0].Value)
	assert.Equal(t, 9999.0, got[100].Value)

	ser := s.lookup(1)
	assert.LessOrEqual(t, ser.head, len(ser.data)-ser.head, "dead prefix stays bounded")
}
