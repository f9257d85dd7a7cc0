package mock

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/lapislui/Nixkart/internal/aggregate"
	"github.com/lapislui/Nixkart/internal/snapshot"
)

var _ aggregate.Reader = (*Generator)(nil)

func within(got, base float64, spread int) bool {
	return got >= base-float64(spread) && got <= base+float64(spread)
}

func TestGenerator_MonthlyTotalsFollowBaseCurve(t *testing.T) {
	g := NewGenerator(rand.New(rand.NewSource(1)))
	from := time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)

	totals, err := g.OrderTotals(context.Background(), from, to, aggregate.Month)
	if err != nil {
		t.Fatalf("OrderTotals: %v", err)
	}
	if len(totals) != 12 {
		t.Fatalf("got %d months, want 12", len(totals))
	}
	if got := totals["2026-01"]; !within(got, 5400, salesJitter) {
		t.Errorf("January = %v, want 5400±%d", got, salesJitter)
	}
	if got := totals["2025-12"]; !within(got, 11200, salesJitter) {
		t.Errorf("December = %v, want 11200±%d", got, salesJitter)
	}
}

func TestGenerator_RevenueByWeekday(t *testing.T) {
	g := NewGenerator(rand.New(rand.NewSource(2)))
	monday := time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)

	totals, err := g.OrderTotals(context.Background(), monday, monday.AddDate(0, 0, 7), aggregate.Day)
	if err != nil {
		t.Fatalf("OrderTotals: %v", err)
	}
	if len(totals) != 7 {
		t.Fatalf("got %d days, want 7", len(totals))
	}
	if got := totals["2026-10-19"]; !within(got, 1200, revenueJitter) {
		t.Errorf("Monday = %v, want 1200±%d", got, revenueJitter)
	}
	if got := totals["2026-10-24"]; !within(got, 2600, revenueJitter) {
		t.Errorf("Saturday = %v, want 2600±%d", got, revenueJitter)
	}
}

func TestGenerator_Deterministic(t *testing.T) {
	a := NewGenerator(rand.New(rand.NewSource(7)))
	b := NewGenerator(rand.New(rand.NewSource(7)))
	ctx := context.Background()

	sa, _ := a.StatusCounts(ctx)
	sb, _ := b.StatusCounts(ctx)
	for _, st := range aggregate.Statuses {
		if sa[st] != sb[st] {
			t.Fatalf("%s: %d != %d with the same seed", st, sa[st], sb[st])
		}
		if !within(float64(sa[st]), float64(statusBase[st]), statusJitter) {
			t.Errorf("%s = %d, out of range", st, sa[st])
		}
	}
}

func TestGenerator_CategoryStatsSorted(t *testing.T) {
	g := NewGenerator(nil)
	stats, err := g.CategoryStats(context.Background(), time.Time{}, time.Now())
	if err != nil {
		t.Fatalf("CategoryStats: %v", err)
	}
	if len(stats) != len(categoryBaseline) {
		t.Fatalf("got %d categories", len(stats))
	}
	for i := 1; i < len(stats); i++ {
		if stats[i-1].Name >= stats[i].Name {
			t.Fatalf("categories not sorted: %q before %q", stats[i-1].Name, stats[i].Name)
		}
	}
}

func TestGenerator_CancelledContext(t *testing.T) {
	g := NewGenerator(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.StatusCounts(ctx); err == nil {
		t.Error("StatusCounts ignored a cancelled context")
	}
	if _, err := g.CustomerCounts(ctx, time.Now(), time.Now()); err == nil {
		t.Error("CustomerCounts ignored a cancelled context")
	}
}

func TestGenerator_FeedsBuilder(t *testing.T) {
	now := time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)
	b := snapshot.NewBuilder(NewGenerator(rand.New(rand.NewSource(3))), snapshot.WithClock(func() time.Time { return now }))

	snap, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if stale := snap.StaleFields(); len(stale) != 0 {
		t.Fatalf("stale series: %v", stale)
	}
	if len(snap.Sales.Values) != 12 || snap.Sales.Labels[11] != "Oct" {
		t.Errorf("sales labels = %v", snap.Sales.Labels)
	}
	if len(snap.Revenue.Values) != 7 || snap.Revenue.Labels[6] != "Mon" {
		t.Errorf("revenue labels = %v", snap.Revenue.Labels)
	}
	var share float64
	for _, v := range snap.Products.Values {
		share += v
	}
	if share < 99.9 || share > 100.1 {
		t.Errorf("product shares sum to %v, want 100", share)
	}
}
