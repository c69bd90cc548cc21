package trend

// LeakSignal describes sustained memory growth over the retained window.
// The baseline is the oldest retained sample, so the comparison horizon is
// roughly window-size check intervals, not a fixed wall-clock span.
type LeakSignal struct {
	OldestMB float64
	LatestMB float64
	GrowthMB float64
	Window   int
}

// Tracker keeps a fixed-size sliding window of memory samples and flags
// coarse slope-over-window growth. It is a heuristic, not a trend fit;
// false positives are acceptable and deduplicated downstream.
type Tracker struct {
	window   []float64
	startIdx int
	count    int
	growthMB float64
}

// New returns a tracker holding size samples that signals once
// latest-oldest exceeds growthMB.
func New(size int, growthMB float64) *Tracker {
	if size < 2 {
		size = 2
	}
	return &Tracker{window: make([]float64, size), growthMB: growthMB}
}

// Observe appends a sample, evicting the oldest once the window is full,
// and reports a leak signal when the full-window growth exceeds the
// threshold. ok is false while the window is still filling or growth is
// within bounds.
func (t *Tracker) Observe(mb float64) (LeakSignal, bool) {
	if t.count < len(t.window) {
		t.window[(t.startIdx+t.count)%len(t.window)] = mb
		t.count++
	} else {
		t.window[t.startIdx] = mb
		t.startIdx = (t.startIdx + 1) % len(t.window)
	}
	if t.count < len(t.window) {
		return LeakSignal{}, false
	}
	oldest := t.window[t.startIdx]
	growth := mb - oldest
	if growth <= t.growthMB {
		return LeakSignal{}, false
	}
	return LeakSignal{OldestMB: oldest, LatestMB: mb, GrowthMB: growth, Window: len(t.window)}, true
}

// Len reports how many samples are currently retained.
func (t *Tracker) Len() int { return t.count }

// Samples returns the retained window oldest-first, for persistence.
func (t *Tracker) Samples() []float64 {
	out := make([]float64, 0, t.count)
	for i := 0; i < t.count; i++ {
		out = append(out, t.window[(t.startIdx+i)%len(t.window)])
	}
	return out
}

// Restore refills the window from a persisted oldest-first slice, keeping
// only the most recent entries when the slice is larger than the window.
func (t *Tracker) Restore(samples []float64) {
	t.startIdx, t.count = 0, 0
	if len(samples) > len(t.window) {
		samples = samples[len(samples)-len(t.window):]
	}
	for i, v := range samples {
		t.window[i] = v
	}
	t.count = len(samples)
}
