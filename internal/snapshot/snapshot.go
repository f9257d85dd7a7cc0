// Package snapshot assembles the dashboard's chart series from an
// aggregate.Reader into one immutable Snapshot per publish.
package snapshot

import (
	"encoding/json"
)

// Dataset is one named line of a multi-series chart.
type Dataset struct {
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
}

// Series is the data for one chart. A single-valued series carries Values; a
// multi-series chart carries Datasets over the same Labels. A Stale series
// could not be computed and is sent empty.
type Series struct {
	Labels   []string
	Values   []float64
	Datasets []Dataset
	Stale    bool

	multi bool
}

// Single returns a single-valued series.
func Single(labels []string, values []float64) Series {
	return Series{Labels: labels, Values: values}
}

// Multi returns a multi-series chart.
func Multi(labels []string, datasets ...Dataset) Series {
	return Series{Labels: labels, Datasets: datasets, multi: true}
}

func staleSeries(multi bool) Series {
	return Series{Stale: true, multi: multi}
}

// IsMulti reports whether the series carries datasets rather than values.
func (s Series) IsMulti() bool {
	return s.multi
}

func (s Series) MarshalJSON() ([]byte, error) {
	labels := s.Labels
	if labels == nil {
		labels = []string{}
	}

	if s.multi {
		datasets := s.Datasets
		if datasets == nil {
			datasets = []Dataset{}
		}
		return json.Marshal(struct {
			Labels   []string  `json:"labels"`
			Datasets []Dataset `json:"datasets"`
			Stale    bool      `json:"stale,omitempty"`
		}{labels, datasets, s.Stale})
	}

	values := s.Values
	if values == nil {
		values = []float64{}
	}
	return json.Marshal(struct {
		Labels []string  `json:"labels"`
		Values []float64 `json:"values"`
		Stale  bool      `json:"stale,omitempty"`
	}{labels, values, s.Stale})
}

// Snapshot is one complete set of dashboard series. It is never modified
// after Build returns it.
type Snapshot struct {
	Sales       Series `json:"sales_data"`
	Products    Series `json:"product_data"`
	Customers   Series `json:"customer_data"`
	Categories  Series `json:"category_data"`
	OrderStatus Series `json:"order_status_data"`
	Revenue     Series `json:"revenue_data"`
}

// Field names of the outbound message, in wire order.
var Fields = []string{
	"sales_data",
	"product_data",
	"customer_data",
	"category_data",
	"order_status_data",
	"revenue_data",
}

// Encode serializes the snapshot as the outbound text payload.
func (s *Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// StaleFields lists the series that failed to compute.
func (s *Snapshot) StaleFields() []string {
	var out []string
	for i, series := range s.series() {
		if series.Stale {
			out = append(out, Fields[i])
		}
	}
	return out
}

func (s *Snapshot) series() []*Series {
	return []*Series{&s.Sales, &s.Products, &s.Customers, &s.Categories, &s.OrderStatus, &s.Revenue}
}
