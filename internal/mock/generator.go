// Package mock provides a demo aggregate reader that produces plausible
// storefront figures without a dataset. Every read jitters a fixed base
// curve, so a connected dashboard visibly moves.
package mock

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/lapislui/Nixkart/internal/aggregate"
)

// Base curves, indexed by calendar month (January first) or weekday
// (Monday first).
var (
	monthlySales     = [12]float64{5400, 5800, 6200, 6800, 7400, 8000, 8600, 9200, 9800, 10400, 10800, 11200}
	newCustomers     = [12]int{120, 150, 170, 190, 210, 250, 280, 300, 330, 350, 370, 390}
	returningBuyers  = [12]int{80, 100, 120, 140, 160, 190, 210, 230, 250, 270, 290, 310}
	weekdayRevenue   = [7]float64{1200, 1900, 1500, 1800, 2200, 2600, 2300}
	statusBase       = map[aggregate.Status]int{aggregate.StatusPending: 15, aggregate.StatusProcessing: 25, aggregate.StatusShipped: 30, aggregate.StatusDelivered: 25, aggregate.StatusCancelled: 5}
	categoryBaseline = []aggregate.CategoryStat{
		{Name: "Beauty", Sales: 40, Views: 50, Stock: 30},
		{Name: "Books", Sales: 30, Views: 40, Stock: 20},
		{Name: "Clothing", Sales: 60, Views: 70, Stock: 50},
		{Name: "Electronics", Sales: 70, Views: 80, Stock: 60},
		{Name: "Furniture", Sales: 50, Views: 60, Stock: 40},
		{Name: "Sports", Sales: 20, Views: 30, Stock: 10},
	}
)

// Jitter bounds, applied as a uniform offset in [-n, n].
const (
	salesJitter    = 200
	customerJitter = 10
	revenueJitter  = 100
	statusJitter   = 2
	categoryJitter = 5
	stockJitter    = 3
)

// Generator is a demo aggregate.Reader. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a generator drawing from rng. A nil rng seeds one
// from the clock.
func NewGenerator(rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{rng: rng}
}

// jitter returns a uniform integer in [-n, n].
func (g *Generator) jitter(n int) int {
	if n <= 0 {
		return 0
	}
	return g.rng.Intn(2*n+1) - n
}

func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func (g *Generator) OrderTotals(ctx context.Context, from, to time.Time, b aggregate.Bucket) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]float64)
	if b == aggregate.Day {
		for d := startOfDay(from); d.Before(to); d = d.AddDate(0, 0, 1) {
			out[b.Key(d)] = weekdayRevenue[weekdayIndex(d)] + float64(g.jitter(revenueJitter))
		}
		return out, nil
	}
	for m := startOfMonth(from); m.Before(to); m = m.AddDate(0, 1, 0) {
		out[b.Key(m)] = monthlySales[m.Month()-1] + float64(g.jitter(salesJitter))
	}
	return out, nil
}

func (g *Generator) CustomerCounts(ctx context.Context, from, to time.Time) (map[string]aggregate.Customers, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]aggregate.Customers)
	for m := startOfMonth(from); m.Before(to); m = m.AddDate(0, 1, 0) {
		i := m.Month() - 1
		out[aggregate.Month.Key(m)] = aggregate.Customers{
			New:       newCustomers[i] + g.jitter(customerJitter),
			Returning: returningBuyers[i] + g.jitter(customerJitter),
		}
	}
	return out, nil
}

func (g *Generator) CategoryStats(ctx context.Context, from, to time.Time) ([]aggregate.CategoryStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]aggregate.CategoryStat, len(categoryBaseline))
	for i, base := range categoryBaseline {
		out[i] = aggregate.CategoryStat{
			Name:  base.Name,
			Sales: base.Sales + float64(g.jitter(categoryJitter)),
			Views: base.Views + g.jitter(categoryJitter),
			Stock: base.Stock + g.jitter(stockJitter),
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (g *Generator) StatusCounts(ctx context.Context) (map[aggregate.Status]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[aggregate.Status]int, len(statusBase))
	for _, st := range aggregate.Statuses {
		out[st] = statusBase[st] + g.jitter(statusJitter)
	}
	return out, nil
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
