// Package aggregate defines the read-only accessor the dashboard feed uses to
// query storefront figures, together with its backends: an in-memory
// dataset (optionally persisted to a JSON file) and a Redis mirror of
// precomputed aggregates.
package aggregate

import (
	"context"
	"time"
)

// Bucket selects the time granularity for grouped totals.
type Bucket int

const (
	Month Bucket = iota
	Day
)

// Key returns the bucket key for t, e.g. "2026-10" for Month and
// "2026-10-19" for Day.
func (b Bucket) Key(t time.Time) string {
	if b == Day {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01")
}

func (b Bucket) String() string {
	if b == Day {
		return "day"
	}
	return "month"
}

// Status is an order lifecycle status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every order status in display order.
var Statuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

// Customers counts distinct customers who ordered within one bucket.
type Customers struct {
	New       int `json:"new"`
	Returning int `json:"returning"`
}

// CategoryStat holds per-category figures for a time window.
type CategoryStat struct {
	Name  string  `json:"name"`
	Sales float64 `json:"sales"`
	Views int     `json:"views"`
	Stock int     `json:"stock"`
}

// Reader is the read contract the snapshot builder depends on.
// Implementations must be safe for concurrent use. Time ranges are
// half-open: [from, to). Bucket keys are computed in from's location.
type Reader interface {
	// OrderTotals sums non-cancelled order totals grouped by bucket key.
	OrderTotals(ctx context.Context, from, to time.Time, b Bucket) (map[string]float64, error)
	// CustomerCounts splits ordering customers per month into first-time
	// and returning buyers.
	CustomerCounts(ctx context.Context, from, to time.Time) (map[string]Customers, error)
	// CategoryStats returns one entry per category, sorted by name.
	CategoryStats(ctx context.Context, from, to time.Time) ([]CategoryStat, error)
	// StatusCounts counts all orders by status.
	StatusCounts(ctx context.Context) (map[Status]int, error)
}
