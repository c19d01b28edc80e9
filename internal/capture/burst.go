package capture

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"sentinel/internal/sanitize"
)

const (
	// DefaultWindowSize is how long repeats of one error are counted together.
	DefaultWindowSize = 60 * time.Second

	// DefaultBurstThreshold is the count at which an error_burst is reported.
	DefaultBurstThreshold = 10

	maxKeyMessageLength = 100
)

// Clock abstracts time for the tracker so tests can drive it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// BurstConfig tunes the BurstTracker.
type BurstConfig struct {
	WindowSize     time.Duration
	BurstThreshold int
}

// DefaultBurstConfig returns the 60s / 10 occurrence configuration.
func DefaultBurstConfig() BurstConfig {
	return BurstConfig{
		WindowSize:     DefaultWindowSize,
		BurstThreshold: DefaultBurstThreshold,
	}
}

type window struct {
	count int
	start time.Time
}

// Observation is the outcome of counting one error occurrence.
type Observation struct {
	Count int
	// First is true when this occurrence opened a new window.
	First bool
	// Burst is true when this occurrence reached the threshold. The window is
	// discarded at that point, so the next occurrence starts again at 1.
	Burst bool
}

// BurstTracker counts occurrences per error key in fixed windows that reset
// when they expire. It is owned by one Capturer; there is no package state.
type BurstTracker struct {
	mu      sync.Mutex
	cfg     BurstConfig
	clock   Clock
	windows map[string]*window
}

// NewBurstTracker creates a tracker. Zero config fields take the defaults.
func NewBurstTracker(cfg BurstConfig, clock Clock) *BurstTracker {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	if cfg.BurstThreshold <= 0 {
		cfg.BurstThreshold = DefaultBurstThreshold
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &BurstTracker{
		cfg:     cfg,
		clock:   clock,
		windows: make(map[string]*window),
	}
}

// Observe records one occurrence of key.
func (t *BurstTracker) Observe(key string) Observation {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.pruneLocked(now)

	w, ok := t.windows[key]
	if !ok {
		t.windows[key] = &window{count: 1, start: now}
		return Observation{Count: 1, First: true}
	}

	if now.Sub(w.start) > t.cfg.WindowSize {
		w.count = 1
		w.start = now
		return Observation{Count: 1, First: true}
	}

	w.count++
	if w.count >= t.cfg.BurstThreshold {
		delete(t.windows, key)
		return Observation{Count: w.count, Burst: true}
	}
	return Observation{Count: w.count}
}

// Count returns the current count for key, or 0 when it is not tracked.
func (t *BurstTracker) Count(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok := t.windows[key]; ok {
		return w.count
	}
	return 0
}

// Len returns the number of tracked keys.
func (t *BurstTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows)
}

// pruneLocked drops windows that expired more than twice the window size ago,
// i.e. whose start plus WindowSize lies before now minus 2*WindowSize.
func (t *BurstTracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-2 * t.cfg.WindowSize)
	for k, w := range t.windows {
		if w.start.Add(t.cfg.WindowSize).Before(cutoff) {
			delete(t.windows, k)
		}
	}
}

// ErrorKey builds the burst key from a truncated message, the path of the
// script URL without its query string, and the line and column.
func ErrorKey(message, path string, line, column int) string {
	msg := strings.TrimSpace(message)
	if utf8.RuneCountInString(msg) > maxKeyMessageLength {
		msg = string([]rune(msg)[:maxKeyMessageLength])
	}
	return fmt.Sprintf("%s|%s|%d|%d", msg, sanitize.URI(path), line, column)
}
