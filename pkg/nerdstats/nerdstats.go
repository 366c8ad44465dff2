package nerdstats

import (
	"runtime"
	"time"
)

// NerdStats is a small snapshot of the Go runtime, logged when the process exits
type NerdStats struct {
	LastGC        time.Time
	GoVersion     string
	HeapAlloc     uint64
	HeapSys       uint64
	HeapInuse     uint64
	TotalAlloc    uint64
	Mallocs       uint64
	Frees         uint64
	TotalGCTime   time.Duration
	Uptime        time.Duration
	NumGoroutines int
	NumGC         uint32
}

func Snapshot(startTime time.Time) *NerdStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := &NerdStats{
		HeapAlloc:     m.HeapAlloc,
		HeapSys:       m.HeapSys,
		HeapInuse:     m.HeapInuse,
		TotalAlloc:    m.TotalAlloc,
		Mallocs:       m.Mallocs,
		Frees:         m.Frees,
		NumGC:         m.NumGC,
		NumGoroutines: runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
		Uptime:        time.Since(startTime),
	}

	if m.LastGC > 0 {
		stats.LastGC = time.Unix(0, int64(m.LastGC))
		stats.TotalGCTime = time.Duration(m.PauseTotalNs)
	}
	return stats
}

// AverageGCPause is zero until the first collection
func (ns *NerdStats) AverageGCPause() time.Duration {
	if ns.NumGC == 0 {
		return 0
	}
	return ns.TotalGCTime / time.Duration(ns.NumGC)
}

// LiveObjects is mallocs minus frees
func (ns *NerdStats) LiveObjects() int64 {
	return int64(ns.Mallocs) - int64(ns.Frees)
}
