package gc

import (
	"fmt"
	"time"

	"github.com/inhies/go-bytesize"
)

// MemStats describes the heap's memory usage.
type MemStats struct {
	// Sys is the total number of bytes reserved from the platform for
	// regions, large objects and handle groups.
	Sys uint64

	// Per-region bytes in use by allocated objects.
	EdenInuse     uint64
	SurvivorInuse uint64
	TenuredInuse  uint64
	LargeInuse    uint64

	// LargeObjects is the number of nodes on the large-object list.
	LargeObjects uint64

	// TotalAlloc is the cumulative number of bytes allocated, Mallocs the
	// number of allocations, Frees the number of objects reclaimed.
	TotalAlloc uint64
	Mallocs    uint64
	Frees      uint64
}

// ReadMemStats populates m. The statistics are up to date as of the call;
// no collection is triggered.
func (h *Heap) ReadMemStats(m *MemStats) {
	*m = MemStats{}

	spaces := []struct {
		s     *memorySpace
		inuse *uint64
	}{
		{h.eden, &m.EdenInuse},
		{h.survivorFrom, &m.SurvivorInuse},
		{h.survivorTo, &m.SurvivorInuse},
		{h.tenured, &m.TenuredInuse},
	}
	for _, sp := range spaces {
		for s := sp.s; s != nil; s = s.next {
			m.Sys += uint64(s.capacity)
			*sp.inuse += uint64(s.top - spaceHeaderSize)
		}
	}

	for node := h.largeHead.next; node != &h.largeHead; node = node.next {
		size := uint64(node.object().header().size)
		m.Sys += uint64(largeNodeSize) + size
		m.LargeInuse += size
		m.LargeObjects++
	}

	for g := h.handles; g != nil; g = g.next {
		m.Sys += uint64(handleGroupSize)
	}

	m.TotalAlloc = h.totalAlloc
	m.Mallocs = h.mallocs
	m.Frees = h.frees
}

// String renders the statistics with human-readable sizes.
func (m *MemStats) String() string {
	return fmt.Sprintf("sys %s, eden %s, survivor %s, tenured %s, large %s (%d objects), total %s, %d mallocs, %d frees",
		bytesize.New(float64(m.Sys)),
		bytesize.New(float64(m.EdenInuse)),
		bytesize.New(float64(m.SurvivorInuse)),
		bytesize.New(float64(m.TenuredInuse)),
		bytesize.New(float64(m.LargeInuse)),
		m.LargeObjects,
		bytesize.New(float64(m.TotalAlloc)),
		m.Mallocs, m.Frees)
}

// GCStats describes the collector's activity.
type GCStats struct {
	LastGC     time.Time // time of the last collection
	NumMinorGC int64     // number of minor collections
	NumMajorGC int64     // number of major collections
	Pause      time.Duration
	PauseTotal time.Duration
}

// ReadGCStats populates stats.
func (h *Heap) ReadGCStats(stats *GCStats) {
	stats.LastGC = h.lastGC
	stats.NumMinorGC = int64(h.minorCount)
	stats.NumMajorGC = int64(h.majorCount)
	stats.Pause = h.lastPause
	stats.PauseTotal = h.totalPause
}
