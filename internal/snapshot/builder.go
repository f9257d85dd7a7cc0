package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lapislui/Nixkart/internal/aggregate"
)

const (
	trendMonths          = 12
	revenueDays          = 7
	defaultSeriesTimeout = 2 * time.Second
)

// SeriesError reports one series that could not be computed.
type SeriesError struct {
	Field string
	Err   error
}

func (e *SeriesError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *SeriesError) Unwrap() error {
	return e.Err
}

// Builder computes Snapshots from an aggregate reader.
type Builder struct {
	reader        aggregate.Reader
	now           func() time.Time
	seriesTimeout time.Duration
	observe       func(field string, err error)
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock overrides time.Now. The returned time's location decides month
// and day boundaries.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithSeriesTimeout bounds how long one series may take before it is
// reported stale. Zero disables the bound.
func WithSeriesTimeout(d time.Duration) Option {
	return func(b *Builder) { b.seriesTimeout = d }
}

// WithObserver registers fn to be called once per series per Build with the
// series field name and its error, nil on success. fn must be safe for
// concurrent use.
func WithObserver(fn func(field string, err error)) Option {
	return func(b *Builder) { b.observe = fn }
}

func NewBuilder(reader aggregate.Reader, opts ...Option) *Builder {
	b := &Builder{
		reader:        reader,
		now:           time.Now,
		seriesTimeout: defaultSeriesTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type window struct {
	from, to time.Time
}

func monthWindow(now time.Time) window {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return window{from: start.AddDate(0, -(trendMonths - 1), 0), to: start.AddDate(0, 1, 0)}
}

func dayWindow(now time.Time) window {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return window{from: start.AddDate(0, 0, -(revenueDays - 1)), to: start.AddDate(0, 0, 1)}
}

// Build computes every series concurrently. It always returns a snapshot
// with all six series; the error joins a *SeriesError for each series that
// was marked stale.
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	now := b.now()
	months := monthWindow(now)
	days := dayWindow(now)

	snap := &Snapshot{}
	jobs := []struct {
		field string
		dst   *Series
		multi bool
		fn    func(context.Context) (Series, error)
	}{
		{"sales_data", &snap.Sales, false, func(ctx context.Context) (Series, error) { return b.sales(ctx, months) }},
		{"product_data", &snap.Products, false, func(ctx context.Context) (Series, error) { return b.productMix(ctx, months) }},
		{"customer_data", &snap.Customers, true, func(ctx context.Context) (Series, error) { return b.customers(ctx, months) }},
		{"category_data", &snap.Categories, true, func(ctx context.Context) (Series, error) { return b.categories(ctx, months) }},
		{"order_status_data", &snap.OrderStatus, false, b.orderStatus},
		{"revenue_data", &snap.Revenue, false, func(ctx context.Context) (Series, error) { return b.revenue(ctx, days) }},
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, job := range jobs {
		job := job
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := b.compute(ctx, job.fn)
			if b.observe != nil {
				b.observe(job.field, err)
			}
			if err != nil {
				s = staleSeries(job.multi)
				mu.Lock()
				errs = append(errs, &SeriesError{Field: job.field, Err: err})
				mu.Unlock()
			}
			*job.dst = s
		}()
	}
	wg.Wait()

	return snap, errors.Join(errs...)
}

type result struct {
	series Series
	err    error
}

// compute runs fn with the per-series timeout. A reader that ignores ctx is
// abandoned once the timeout passes; a panic becomes an error.
func (b *Builder) compute(ctx context.Context, fn func(context.Context) (Series, error)) (Series, error) {
	if b.seriesTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.seriesTimeout)
		defer cancel()
	}

	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		s, err := fn(ctx)
		ch <- result{series: s, err: err}
	}()

	select {
	case r := <-ch:
		return r.series, r.err
	case <-ctx.Done():
		return Series{}, ctx.Err()
	}
}

func monthLabels(w window) ([]string, []string) {
	var labels, keys []string
	for m := w.from; m.Before(w.to); m = m.AddDate(0, 1, 0) {
		labels = append(labels, m.Format("Jan"))
		keys = append(keys, aggregate.Month.Key(m))
	}
	return labels, keys
}

func (b *Builder) sales(ctx context.Context, w window) (Series, error) {
	totals, err := b.reader.OrderTotals(ctx, w.from, w.to, aggregate.Month)
	if err != nil {
		return Series{}, err
	}
	labels, keys := monthLabels(w)
	values := make([]float64, len(keys))
	for i, k := range keys {
		values[i] = totals[k]
	}
	return Single(labels, values), nil
}

func (b *Builder) productMix(ctx context.Context, w window) (Series, error) {
	stats, err := b.reader.CategoryStats(ctx, w.from, w.to)
	if err != nil {
		return Series{}, err
	}
	var total float64
	for _, st := range stats {
		total += st.Sales
	}
	labels := make([]string, len(stats))
	values := make([]float64, len(stats))
	for i, st := range stats {
		labels[i] = st.Name
		if total > 0 {
			values[i] = st.Sales / total * 100
		}
	}
	return Single(labels, values), nil
}

func (b *Builder) customers(ctx context.Context, w window) (Series, error) {
	counts, err := b.reader.CustomerCounts(ctx, w.from, w.to)
	if err != nil {
		return Series{}, err
	}
	labels, keys := monthLabels(w)
	newVals := make([]float64, len(keys))
	retVals := make([]float64, len(keys))
	for i, k := range keys {
		newVals[i] = float64(counts[k].New)
		retVals[i] = float64(counts[k].Returning)
	}
	return Multi(labels,
		Dataset{Label: "New Customers", Values: newVals},
		Dataset{Label: "Returning Customers", Values: retVals},
	), nil
}

func (b *Builder) categories(ctx context.Context, w window) (Series, error) {
	stats, err := b.reader.CategoryStats(ctx, w.from, w.to)
	if err != nil {
		return Series{}, err
	}
	labels := make([]string, len(stats))
	sales := make([]float64, len(stats))
	views := make([]float64, len(stats))
	stock := make([]float64, len(stats))
	for i, st := range stats {
		labels[i] = st.Name
		sales[i] = st.Sales
		views[i] = float64(st.Views)
		stock[i] = float64(st.Stock)
	}
	return Multi(labels,
		Dataset{Label: "Sales", Values: sales},
		Dataset{Label: "Views", Values: views},
		Dataset{Label: "Inventory", Values: stock},
	), nil
}

func (b *Builder) orderStatus(ctx context.Context) (Series, error) {
	counts, err := b.reader.StatusCounts(ctx)
	if err != nil {
		return Series{}, err
	}
	labels := make([]string, len(aggregate.Statuses))
	values := make([]float64, len(aggregate.Statuses))
	for i, st := range aggregate.Statuses {
		name := string(st)
		labels[i] = strings.ToUpper(name[:1]) + name[1:]
		values[i] = float64(counts[st])
	}
	return Single(labels, values), nil
}

func (b *Builder) revenue(ctx context.Context, w window) (Series, error) {
	totals, err := b.reader.OrderTotals(ctx, w.from, w.to, aggregate.Day)
	if err != nil {
		return Series{}, err
	}
	var labels []string
	var values []float64
	for d := w.from; d.Before(w.to); d = d.AddDate(0, 0, 1) {
		labels = append(labels, d.Format("Mon"))
		values = append(values, totals[aggregate.Day.Key(d)])
	}
	return Single(labels, values), nil
}
