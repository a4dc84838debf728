package audio

import (
	"math"
	"sync"
	"time"
)

const (
	// LevelFloorDB is the quietest level that still registers above zero.
	LevelFloorDB = -50.0
	// DefaultLevelInterval caps level updates at 10 Hz.
	DefaultLevelInterval = 100 * time.Millisecond
)

// Level is a normalized loudness reading in [0,1].
type Level struct {
	Value float64
	At    time.Time
}

// LevelOf computes the RMS of the frame in dBFS, clamps it to LevelFloorDB
// and maps it linearly into [0,1]. Silence and other non-finite results
// yield 0.
func LevelOf(frame Frame) float64 {
	if frame.IsEmpty() {
		return 0
	}

	var total float64
	for _, sample := range frame.samples {
		normalized := float64(sample) / math.MaxInt16
		total += normalized * normalized
	}
	rms := math.Sqrt(total / float64(len(frame.samples)))

	return normalizeDB(20 * math.Log10(rms))
}

func normalizeDB(db float64) float64 {
	if math.IsNaN(db) || math.IsInf(db, 0) {
		return 0
	}

	value := (db - LevelFloorDB) / (0 - LevelFloorDB)
	value = max(0, min(1, value))
	if math.IsNaN(value) {
		return 0
	}
	return value
}

// LevelThrottle admits at most one level reading per interval. Readings in
// between are skipped, so callers should check Allow before computing a
// level.
type LevelThrottle struct {
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func NewLevelThrottle(interval time.Duration) *LevelThrottle {
	if interval <= 0 {
		interval = DefaultLevelInterval
	}
	return &LevelThrottle{interval: interval}
}

func (t *LevelThrottle) Allow(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}

func (t *LevelThrottle) Reset() {
	t.mu.Lock()
	t.last = time.Time{}
	t.mu.Unlock()
}
