package health

import (
	"sort"
	"sync"
	"time"
)

// Series health states.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusFailed   = "failed"
)

// SeriesStatus is the health of one snapshot series.
type SeriesStatus struct {
	Status              string    `json:"status"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	LastFailure         time.Time `json:"last_failure,omitempty"`
}

type seriesRecord struct {
	failures int
	lastErr  string
	lastFail time.Time
}

// SeriesTracker counts consecutive build failures per series. A series is
// degraded once it fails threshold times in a row and recovers on the next
// success. Fields are protected by mu because every session's publisher
// reports into the same tracker.
type SeriesTracker struct {
	mu        sync.Mutex
	threshold int
	series    map[string]*seriesRecord
	now       func() time.Time
}

func NewSeriesTracker(threshold int) *SeriesTracker {
	if threshold < 1 {
		threshold = 1
	}
	return &SeriesTracker{
		threshold: threshold,
		series:    make(map[string]*seriesRecord),
		now:       time.Now,
	}
}

// Record notes the outcome of one series computation; err is nil on success.
func (t *SeriesTracker) Record(field string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.series[field]
	if !ok {
		rec = &seriesRecord{}
		t.series[field] = rec
	}
	if err == nil {
		rec.failures = 0
		rec.lastErr = ""
		return
	}
	rec.failures++
	rec.lastErr = err.Error()
	rec.lastFail = t.now()
}

func (t *SeriesTracker) statusLocked(rec *seriesRecord) string {
	if rec.failures >= t.threshold {
		return StatusDegraded
	}
	return StatusHealthy
}

// Snapshot returns a consistent copy of every tracked series.
func (t *SeriesTracker) Snapshot() map[string]SeriesStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]SeriesStatus, len(t.series))
	for field, rec := range t.series {
		out[field] = SeriesStatus{
			Status:              t.statusLocked(rec),
			ConsecutiveFailures: rec.failures,
			LastError:           rec.lastErr,
			LastFailure:         rec.lastFail,
		}
	}
	return out
}

// Overall is failed when every tracked series is degraded, degraded when
// some are, and healthy otherwise.
func (t *SeriesTracker) Overall() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	degraded := 0
	for _, rec := range t.series {
		if t.statusLocked(rec) == StatusDegraded {
			degraded++
		}
	}
	switch {
	case degraded == 0:
		return StatusHealthy
	case degraded == len(t.series):
		return StatusFailed
	default:
		return StatusDegraded
	}
}

// Degraded lists the degraded series in name order.
func (t *SeriesTracker) Degraded() []string {
	var out []string
	for field, st := range t.Snapshot() {
		if st.Status == StatusDegraded {
			out = append(out, field)
		}
	}
	sort.Strings(out)
	return out
}
