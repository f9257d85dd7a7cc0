package client

import "encoding/json"

// Dataset is one named line of a multi-series chart.
type Dataset struct {
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
}

// Series is one chart as sent by the feed. Single-valued charts fill Values;
// multi-series charts fill Datasets.
type Series struct {
	Labels   []string  `json:"labels"`
	Values   []float64 `json:"values,omitempty"`
	Datasets []Dataset `json:"datasets,omitempty"`
	Stale    bool      `json:"stale,omitempty"`
}

// Lines returns the series as datasets, wrapping single-valued series in one
// unnamed dataset.
func (s Series) Lines() []Dataset {
	if len(s.Datasets) > 0 {
		return s.Datasets
	}
	return []Dataset{{Values: s.Values}}
}

// Snapshot is one feed message.
type Snapshot struct {
	Sales       Series `json:"sales_data"`
	Products    Series `json:"product_data"`
	Customers   Series `json:"customer_data"`
	Categories  Series `json:"category_data"`
	OrderStatus Series `json:"order_status_data"`
	Revenue     Series `json:"revenue_data"`
}

// Chart pairs a series with its display title.
type Chart struct {
	Field  string
	Title  string
	Series Series
}

// Charts lists the snapshot's series in display order.
func (s *Snapshot) Charts() []Chart {
	return []Chart{
		{"sales_data", "Sales (12 months)", s.Sales},
		{"revenue_data", "Revenue (7 days)", s.Revenue},
		{"product_data", "Product mix (%)", s.Products},
		{"order_status_data", "Order status", s.OrderStatus},
		{"customer_data", "Customers", s.Customers},
		{"category_data", "Categories", s.Categories},
	}
}

// StaleFields lists the fields the server could not compute.
func (s *Snapshot) StaleFields() []string {
	var out []string
	for _, c := range s.Charts() {
		if c.Series.Stale {
			out = append(out, c.Field)
		}
	}
	return out
}

// DecodeSnapshot parses one feed frame.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Health mirrors the server's /api/health body.
type Health struct {
	Status     string  `json:"status"`
	Sessions   int     `json:"sessions"`
	Goroutines int     `json:"goroutines"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	UptimeSec  float64 `json:"uptime_sec"`
	Backend    string  `json:"backend"`
}
