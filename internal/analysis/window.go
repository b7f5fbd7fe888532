package analysis

import (
	"sort"
	"sync"
	"time"

	"tremor-monitor-backend/config"
)

// ClosedWindow is a finalized window ready for feature extraction. Samples
// are deduplicated and ordered by timestamp.
type ClosedWindow struct {
	DeviceID string
	Start    time.Time
	End      time.Time
	Samples  []Sample
}

// Windower buffers raw samples per device into non-overlapping fixed-length
// time windows. A window is finalized only once the grace period after its
// end has elapsed, which tolerates bounded out-of-order arrival; samples
// older than the finalized frontier are dropped.
type Windower struct {
	window time.Duration
	grace  time.Duration

	mu      sync.Mutex
	buffers map[string]*deviceBuffer
}

// deviceBuffer holds the open windows for one device. Each device's stream
// is single-writer, but buffers are still guarded because the flusher runs
// on its own goroutine.
type deviceBuffer struct {
	windows map[int64]*openWindow // keyed by window start (unix nanos)
	// frontier is the end of the newest finalized window; anything at or
	// before it arrives too late to be windowed.
	frontier time.Time
}

type openWindow struct {
	start   time.Time
	end     time.Time
	samples map[int64]Sample // keyed by sample timestamp for dedupe
}

// NewWindower creates a windower from the analysis settings.
func NewWindower(cfg config.AnalysisConfig) *Windower {
	return &Windower{
		window:  cfg.Window,
		grace:   cfg.Grace,
		buffers: make(map[string]*deviceBuffer),
	}
}

// Add buffers one sample. It reports whether the sample was accepted;
// duplicates (same device and timestamp) and samples behind the finalized
// frontier are rejected.
func (w *Windower) Add(deviceID string, s Sample) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	buf, ok := w.buffers[deviceID]
	if !ok {
		buf = &deviceBuffer{windows: make(map[int64]*openWindow)}
		w.buffers[deviceID] = buf
	}

	if !buf.frontier.IsZero() && !s.Timestamp.After(buf.frontier) {
		return false // too late, its window is already finalized
	}

	start := s.Timestamp.Truncate(w.window)
	key := start.UnixNano()
	win, ok := buf.windows[key]
	if !ok {
		win = &openWindow{
			start:   start,
			end:     start.Add(w.window),
			samples: make(map[int64]Sample),
		}
		buf.windows[key] = win
	}

	ts := s.Timestamp.UnixNano()
	if _, dup := win.samples[ts]; dup {
		return false // duplicate delivery must not double-count
	}
	win.samples[ts] = s
	return true
}

// CloseDue finalizes and returns every window whose grace period has elapsed
// at the given instant. Windows for different devices are independent; the
// returned order is stable per device (oldest first).
func (w *Windower) CloseDue(now time.Time) []ClosedWindow {
	w.mu.Lock()
	defer w.mu.Unlock()

	var closed []ClosedWindow
	for deviceID, buf := range w.buffers {
		var due []*openWindow
		for key, win := range buf.windows {
			if now.Sub(win.end) >= w.grace {
				due = append(due, win)
				delete(buf.windows, key)
			}
		}
		sort.Slice(due, func(i, j int) bool { return due[i].start.Before(due[j].start) })
		for _, win := range due {
			if win.end.After(buf.frontier) {
				buf.frontier = win.end
			}
			closed = append(closed, ClosedWindow{
				DeviceID: deviceID,
				Start:    win.start,
				End:      win.end,
				Samples:  sortedSamples(win.samples),
			})
		}
	}
	return closed
}

// Drop discards all buffered state for a device. Used when a session ends so
// stale partial windows cannot leak into a later binding.
func (w *Windower) Drop(deviceID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.buffers, deviceID)
}

func sortedSamples(m map[int64]Sample) []Sample {
	samples := make([]Sample, 0, len(m))
	for _, s := range m {
		samples = append(samples, s)
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Timestamp.Before(samples[j].Timestamp) })
	return samples
}
