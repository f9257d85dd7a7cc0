package aggregate

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Category is a product category.
type Category struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Product is a catalog entry. Views counts product page visits.
type Product struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	Views    int     `json:"views"`
}

// OrderItem is one line of an order. Product refers to Product.Name.
type OrderItem struct {
	Product  string  `json:"product"`
	Quantity int     `json:"quantity"`
	Subtotal float64 `json:"subtotal"`
}

// Order is a placed order.
type Order struct {
	ID        int         `json:"id"`
	Email     string      `json:"email"`
	Status    Status      `json:"status"`
	Total     float64     `json:"total"`
	CreatedAt time.Time   `json:"createdAt"`
	Items     []OrderItem `json:"items,omitempty"`
}

// Dataset is the set of storefront records the memory reader aggregates.
type Dataset struct {
	Version    int        `json:"version"`
	Categories []Category `json:"categories"`
	Products   []Product  `json:"products"`
	Orders     []Order    `json:"orders"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (d *Dataset) clone() *Dataset {
	cp := *d
	cp.Categories = append([]Category(nil), d.Categories...)
	cp.Products = append([]Product(nil), d.Products...)
	cp.Orders = make([]Order, len(d.Orders))
	for i, o := range d.Orders {
		o.Items = append([]OrderItem(nil), o.Items...)
		cp.Orders[i] = o
	}
	return &cp
}

// Memory aggregates a Dataset held in memory. Reads take a shared lock so
// many dashboard sessions can query at once.
type Memory struct {
	mu              sync.RWMutex
	data            *Dataset
	productCategory map[string]string
}

var _ Reader = (*Memory)(nil)

// NewMemory returns a reader over a copy of d. A nil d yields an empty
// dataset.
func NewMemory(d *Dataset) *Memory {
	if d == nil {
		d = &Dataset{Version: datasetVersion}
	}
	cp := d.clone()

	index := make(map[string]string, len(cp.Products))
	for _, p := range cp.Products {
		index[p.Name] = p.Category
	}
	return &Memory{data: cp, productCategory: index}
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func (m *Memory) OrderTotals(ctx context.Context, from, to time.Time, b Bucket) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	loc := from.Location()
	totals := make(map[string]float64)
	for _, o := range m.data.Orders {
		if o.Status == StatusCancelled || !inRange(o.CreatedAt, from, to) {
			continue
		}
		totals[b.Key(o.CreatedAt.In(loc))] += o.Total
	}
	return totals, nil
}

func (m *Memory) CustomerCounts(ctx context.Context, from, to time.Time) (map[string]Customers, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	loc := from.Location()

	// First purchase month per customer, across the whole history.
	first := make(map[string]string)
	for _, o := range m.data.Orders {
		if o.Email == "" || o.Status == StatusCancelled {
			continue
		}
		key := Month.Key(o.CreatedAt.In(loc))
		if cur, ok := first[o.Email]; !ok || key < cur {
			first[o.Email] = key
		}
	}

	seen := make(map[string]map[string]bool)
	counts := make(map[string]Customers)
	for _, o := range m.data.Orders {
		if o.Email == "" || o.Status == StatusCancelled || !inRange(o.CreatedAt, from, to) {
			continue
		}
		key := Month.Key(o.CreatedAt.In(loc))
		if seen[key] == nil {
			seen[key] = make(map[string]bool)
		}
		if seen[key][o.Email] {
			continue
		}
		seen[key][o.Email] = true

		c := counts[key]
		if first[o.Email] == key {
			c.New++
		} else {
			c.Returning++
		}
		counts[key] = c
	}
	return counts, nil
}

func (m *Memory) CategoryStats(ctx context.Context, from, to time.Time) ([]CategoryStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	byName := make(map[string]*CategoryStat, len(m.data.Categories))
	for _, c := range m.data.Categories {
		byName[c.Name] = &CategoryStat{Name: c.Name}
	}
	for _, p := range m.data.Products {
		st, ok := byName[p.Category]
		if !ok {
			continue
		}
		st.Views += p.Views
		st.Stock += p.Stock
	}
	for _, o := range m.data.Orders {
		if o.Status == StatusCancelled || !inRange(o.CreatedAt, from, to) {
			continue
		}
		for _, it := range o.Items {
			if st, ok := byName[m.productCategory[it.Product]]; ok {
				st.Sales += it.Subtotal
			}
		}
	}

	out := make([]CategoryStat, 0, len(byName))
	for _, st := range byName {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) StatusCounts(ctx context.Context) (map[Status]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[Status]int, len(Statuses))
	for _, o := range m.data.Orders {
		counts[o.Status]++
	}
	return counts, nil
}
