package audio

import (
	"math"
	"testing"
	"time"
)

func TestLevelOfSilenceIsZero(t *testing.T) {
	frame := NewFrame(make([]int16, 480), 1)

	if got := LevelOf(frame); got != 0 {
		t.Fatalf("expected silence to produce level 0, got %v", got)
	}
}

func TestLevelOfEmptyFrameIsZero(t *testing.T) {
	if got := LevelOf(Frame{}); got != 0 {
		t.Fatalf("expected empty frame to produce level 0, got %v", got)
	}
}

func TestLevelOfFullScaleIsOne(t *testing.T) {
	samples := make([]int16, 480)
	for i := range samples {
		samples[i] = math.MaxInt16
	}

	if got := LevelOf(NewFrame(samples, 1)); math.Abs(got-1) > 1e-9 {
		t.Fatalf("expected full scale to produce level 1, got %v", got)
	}
}

func TestLevelOfMapsDecibelsLinearly(t *testing.T) {
	// -25 dBFS sits halfway between the -50 dB floor and 0 dB.
	amplitude := math.Pow(10, -25.0/20) * math.MaxInt16
	samples := make([]int16, 480)
	for i := range samples {
		samples[i] = int16(math.Round(amplitude))
	}

	if got := LevelOf(NewFrame(samples, 1)); math.Abs(got-0.5) > 0.01 {
		t.Fatalf("expected level close to 0.5, got %v", got)
	}
}

func TestLevelOfClampsBelowFloor(t *testing.T) {
	samples := make([]int16, 480)
	samples[0] = 1

	if got := LevelOf(NewFrame(samples, 1)); got != 0 {
		t.Fatalf("expected level below the floor to clamp to 0, got %v", got)
	}
}

func TestNormalizeDBCoercesNonFinite(t *testing.T) {
	for _, db := range []float64{math.Inf(-1), math.Inf(1), math.NaN()} {
		if got := normalizeDB(db); got != 0 {
			t.Fatalf("expected non-finite %v to produce 0, got %v", db, got)
		}
	}
}

func TestLevelThrottleCapsRate(t *testing.T) {
	throttle := NewLevelThrottle(100 * time.Millisecond)
	start := time.Now()

	allowed := 0
	for i := range 32 {
		// 32 frames at ~31 Hz over one second
		if throttle.Allow(start.Add(time.Duration(i) * 31 * time.Millisecond)) {
			allowed++
		}
	}

	if allowed > 10 || allowed < 8 {
		t.Fatalf("expected between 8 and 10 level readings per second, got %d", allowed)
	}
}

func TestLevelThrottleResetAllowsImmediately(t *testing.T) {
	throttle := NewLevelThrottle(time.Second)
	now := time.Now()

	if !throttle.Allow(now) {
		t.Fatalf("expected first reading to be allowed")
	}
	if throttle.Allow(now.Add(time.Millisecond)) {
		t.Fatalf("expected second reading within interval to be skipped")
	}

	throttle.Reset()
	if !throttle.Allow(now.Add(2 * time.Millisecond)) {
		t.Fatalf("expected reading after reset to be allowed")
	}
}
