// Package health reports process resource usage for the /api/health
// endpoint.
package health

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Report is the JSON body of /api/health.
type Report struct {
	Status     string  `json:"status"`
	Sessions   int     `json:"sessions"`
	Goroutines int     `json:"goroutines"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	UptimeSec  float64 `json:"uptime_sec"`
	Backend    string  `json:"backend"`

	Series map[string]SeriesStatus `json:"series,omitempty"`
}

// Probe samples the current process.
type Probe struct {
	proc    *process.Process
	started time.Time
	series  *SeriesTracker
}

// NewProbe attaches to the running process.
func NewProbe() (*Probe, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("attaching to own process: %w", err)
	}
	return &Probe{proc: proc, started: time.Now()}, nil
}

// TrackSeries includes t's per-series health in every Report.
func (p *Probe) TrackSeries(t *SeriesTracker) {
	p.series = t
}

// Collect fills a Report. Resource figures that cannot be read are left at
// zero and the status becomes "degraded"; so does a tracked series that
// keeps failing. The endpoint still answers.
func (p *Probe) Collect(ctx context.Context, sessions int, backend string) Report {
	r := Report{
		Status:     "ok",
		Sessions:   sessions,
		Goroutines: runtime.NumGoroutine(),
		UptimeSec:  time.Since(p.started).Seconds(),
		Backend:    backend,
	}

	if mem, err := p.proc.MemoryInfoWithContext(ctx); err == nil {
		r.RSSBytes = mem.RSS
	} else {
		r.Status = "degraded"
	}
	if cpu, err := p.proc.CPUPercentWithContext(ctx); err == nil {
		r.CPUPercent = cpu
	} else {
		r.Status = "degraded"
	}
	if p.series != nil {
		r.Series = p.series.Snapshot()
		if p.series.Overall() != StatusHealthy {
			r.Status = "degraded"
		}
	}
	return r
}
