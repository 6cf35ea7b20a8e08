package volume

import (
	"time"

	"github.com/shirou/gopsutil/v3/disk"
)

// Sampler reports a relative busyness score per volume. Higher means more
// contended. The scheduler picks the volume with the lowest score so
// encoding interferes as little as possible with foreground use.
type Sampler interface {
	Busyness(volIDs []string) (map[string]float64, error)
}

// DiskSampler measures busyness as the delta in milliseconds each backing
// device spent doing I/O across a short sampling interval, via the OS disk
// counters.
type DiskSampler struct {
	resolver *Resolver
	interval time.Duration

	// Test seams.
	counters func() (map[string]disk.IOCountersStat, error)
	sleep    func(time.Duration)
}

// NewDiskSampler samples over the given interval (a few hundred
// milliseconds is plenty; the score only needs to rank volumes).
func NewDiskSampler(r *Resolver, interval time.Duration) *DiskSampler {
	return &DiskSampler{
		resolver: r,
		interval: interval,
		counters: func() (map[string]disk.IOCountersStat, error) { return disk.IOCounters() },
		sleep:    time.Sleep,
	}
}

// Busyness returns the per-volume I/O time delta. Volumes with no local
// device (network sentinel, unknown mounts) score zero: with nothing to
// measure, they are assumed available.
func (s *DiskSampler) Busyness(volIDs []string) (map[string]float64, error) {
	before, err := s.counters()
	if err != nil {
		return nil, err
	}
	s.sleep(s.interval)
	after, err := s.counters()
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64, len(volIDs))
	for _, id := range volIDs {
		dev := s.resolver.Device(id)
		if dev == "" {
			scores[id] = 0
			continue
		}
		b, okB := before[dev]
		a, okA := after[dev]
		if !okB || !okA {
			scores[id] = 0
			continue
		}
		scores[id] = float64(a.IoTime - b.IoTime)
	}
	return scores, nil
}
