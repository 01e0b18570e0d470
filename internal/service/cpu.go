package service

import (
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
)

// cpuBaseline turns cumulative CPU times into utilisation over the span
// since its own previous reading. Every stream owns one, so one stream's
// reading never shortens another's span. The first reading is measured
// against zero, which is the average since boot.
type cpuBaseline struct {
	mu      sync.Mutex
	last    cpu.TimesStat
	percent float64
}

func (b *cpuBaseline) update(now cpu.TimesStat) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	busy0, total0 := busyTotal(b.last)
	busy1, total1 := busyTotal(now)
	b.last = now
	// Two readings inside one clock tick: repeat the previous value.
	if dt := total1 - total0; dt > 0 {
		b.percent = (busy1 - busy0) * 100 / dt
	}
	return b.percent
}

// busyTotal counts iowait as idle. Guest time is already part of User.
func busyTotal(t cpu.TimesStat) (busy, total float64) {
	busy = t.User + t.System + t.Nice + t.Irq + t.Softirq + t.Steal
	return busy, busy + t.Idle + t.Iowait
}
