package aggregate

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key the Redis reader touches.
const DefaultRedisPrefix = "nixkart:dashboard:"

// Redis reads aggregates that were precomputed into Redis hashes by
// Materialize (or by an upstream job using the same layout):
//
//	<prefix>orders:month          month key -> order total
//	<prefix>orders:day            day key   -> order total
//	<prefix>customers:new         month key -> first-time buyers
//	<prefix>customers:returning   month key -> returning buyers
//	<prefix>orders:status         status    -> order count
//	<prefix>categories            set of category names
//	<prefix>category:<name>       views, stock
//	<prefix>category:<name>:sales month key -> item sales
//
// Month-bucketed figures are only exact for windows aligned to month
// boundaries, which is how the snapshot builder queries them.
type Redis struct {
	client *redis.Client
	prefix string
}

var _ Reader = (*Redis)(nil)

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

// DialRedis connects to addr and verifies the connection with a PING.
func DialRedis(addr, prefix string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	log.Printf("[aggregate] Redis reader connected to %s", addr)
	return NewRedis(client, prefix), nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Empty reports whether no aggregates exist under the prefix.
func (r *Redis) Empty(ctx context.Context) (bool, error) {
	n, err := r.client.Exists(ctx, r.key("orders", "status"), r.key("orders", "month"), r.key("categories")).Result()
	if err != nil {
		return false, fmt.Errorf("checking for aggregates: %w", err)
	}
	return n == 0, nil
}

func (r *Redis) key(parts ...string) string {
	k := r.prefix
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += p
	}
	return k
}

// bucketRange returns the inclusive first and last bucket keys of [from, to).
func bucketRange(from, to time.Time, b Bucket) (string, string) {
	last := to.Add(-time.Nanosecond).In(from.Location())
	return b.Key(from), b.Key(last)
}

func parseFloatHash(h map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(h))
	for k, v := range h {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", k, err)
		}
		out[k] = f
	}
	return out, nil
}

func parseIntHash(h map[string]string) (map[string]int, error) {
	out := make(map[string]int, len(h))
	for k, v := range h {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

func (r *Redis) OrderTotals(ctx context.Context, from, to time.Time, b Bucket) (map[string]float64, error) {
	raw, err := r.client.HGetAll(ctx, r.key("orders", b.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("reading order totals: %w", err)
	}
	all, err := parseFloatHash(raw)
	if err != nil {
		return nil, fmt.Errorf("order totals: %w", err)
	}

	lo, hi := bucketRange(from, to, b)
	out := make(map[string]float64)
	for k, v := range all {
		if k >= lo && k <= hi {
			out[k] = v
		}
	}
	return out, nil
}

func (r *Redis) CustomerCounts(ctx context.Context, from, to time.Time) (map[string]Customers, error) {
	pipe := r.client.Pipeline()
	newCmd := pipe.HGetAll(ctx, r.key("customers", "new"))
	retCmd := pipe.HGetAll(ctx, r.key("customers", "returning"))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("reading customer counts: %w", err)
	}

	newCounts, err := parseIntHash(newCmd.Val())
	if err != nil {
		return nil, fmt.Errorf("new customers: %w", err)
	}
	retCounts, err := parseIntHash(retCmd.Val())
	if err != nil {
		return nil, fmt.Errorf("returning customers: %w", err)
	}

	lo, hi := bucketRange(from, to, Month)
	out := make(map[string]Customers)
	for k, n := range newCounts {
		if k >= lo && k <= hi {
			c := out[k]
			c.New = n
			out[k] = c
		}
	}
	for k, n := range retCounts {
		if k >= lo && k <= hi {
			c := out[k]
			c.Returning = n
			out[k] = c
		}
	}
	return out, nil
}

func (r *Redis) CategoryStats(ctx context.Context, from, to time.Time) ([]CategoryStat, error) {
	names, err := r.client.SMembers(ctx, r.key("categories")).Result()
	if err != nil {
		return nil, fmt.Errorf("reading categories: %w", err)
	}
	sort.Strings(names)

	pipe := r.client.Pipeline()
	info := make([]*redis.MapStringStringCmd, len(names))
	sales := make([]*redis.MapStringStringCmd, len(names))
	for i, name := range names {
		info[i] = pipe.HGetAll(ctx, r.key("category", name))
		sales[i] = pipe.HGetAll(ctx, r.key("category", name, "sales"))
	}
	if len(names) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("reading category stats: %w", err)
		}
	}

	lo, hi := bucketRange(from, to, Month)
	out := make([]CategoryStat, 0, len(names))
	for i, name := range names {
		st := CategoryStat{Name: name}
		fields, err := parseIntHash(info[i].Val())
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", name, err)
		}
		st.Views = fields["views"]
		st.Stock = fields["stock"]

		monthly, err := parseFloatHash(sales[i].Val())
		if err != nil {
			return nil, fmt.Errorf("category %s sales: %w", name, err)
		}
		for k, v := range monthly {
			if k >= lo && k <= hi {
				st.Sales += v
			}
		}
		out = append(out, st)
	}
	return out, nil
}

func (r *Redis) StatusCounts(ctx context.Context) (map[Status]int, error) {
	raw, err := r.client.HGetAll(ctx, r.key("orders", "status")).Result()
	if err != nil {
		return nil, fmt.Errorf("reading status counts: %w", err)
	}
	counts, err := parseIntHash(raw)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	out := make(map[Status]int, len(counts))
	for k, v := range counts {
		out[Status(k)] = v
	}
	return out, nil
}

// Materialize computes aggregates from src for the months and days ending
// with now and replaces the Redis copy in one transaction. Category sales
// are stored per month so the reader can re-slice them.
func (r *Redis) Materialize(ctx context.Context, src Reader, now time.Time, months, days int) error {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	mFrom := monthStart.AddDate(0, -(months - 1), 0)
	mTo := monthStart.AddDate(0, 1, 0)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dFrom := dayStart.AddDate(0, 0, -(days - 1))
	dTo := dayStart.AddDate(0, 0, 1)

	monthly, err := src.OrderTotals(ctx, mFrom, mTo, Month)
	if err != nil {
		return fmt.Errorf("materialize monthly totals: %w", err)
	}
	daily, err := src.OrderTotals(ctx, dFrom, dTo, Day)
	if err != nil {
		return fmt.Errorf("materialize daily totals: %w", err)
	}
	customers, err := src.CustomerCounts(ctx, mFrom, mTo)
	if err != nil {
		return fmt.Errorf("materialize customers: %w", err)
	}
	statuses, err := src.StatusCounts(ctx)
	if err != nil {
		return fmt.Errorf("materialize statuses: %w", err)
	}

	type monthCats struct {
		key   string
		stats []CategoryStat
	}
	var perMonth []monthCats
	for m := mFrom; m.Before(mTo); m = m.AddDate(0, 1, 0) {
		stats, err := src.CategoryStats(ctx, m, m.AddDate(0, 1, 0))
		if err != nil {
			return fmt.Errorf("materialize categories %s: %w", Month.Key(m), err)
		}
		perMonth = append(perMonth, monthCats{key: Month.Key(m), stats: stats})
	}

	oldNames, err := r.client.SMembers(ctx, r.key("categories")).Result()
	if err != nil {
		return fmt.Errorf("reading categories: %w", err)
	}

	pipe := r.client.TxPipeline()
	for _, name := range oldNames {
		pipe.Del(ctx, r.key("category", name), r.key("category", name, "sales"))
	}
	pipe.Del(ctx,
		r.key("orders", "month"), r.key("orders", "day"), r.key("orders", "status"),
		r.key("customers", "new"), r.key("customers", "returning"), r.key("categories"))

	for k, v := range monthly {
		pipe.HSet(ctx, r.key("orders", "month"), k, strconv.FormatFloat(v, 'f', -1, 64))
	}
	for k, v := range daily {
		pipe.HSet(ctx, r.key("orders", "day"), k, strconv.FormatFloat(v, 'f', -1, 64))
	}
	for k, c := range customers {
		pipe.HSet(ctx, r.key("customers", "new"), k, c.New)
		pipe.HSet(ctx, r.key("customers", "returning"), k, c.Returning)
	}
	for st, n := range statuses {
		pipe.HSet(ctx, r.key("orders", "status"), string(st), n)
	}
	for _, mc := range perMonth {
		for _, st := range mc.stats {
			pipe.SAdd(ctx, r.key("categories"), st.Name)
			pipe.HSet(ctx, r.key("category", st.Name), "views", st.Views, "stock", st.Stock)
			pipe.HSet(ctx, r.key("category", st.Name, "sales"), mc.key, strconv.FormatFloat(st.Sales, 'f', -1, 64))
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing aggregates: %w", err)
	}
	return nil
}
