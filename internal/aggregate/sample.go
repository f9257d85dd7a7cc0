package aggregate

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

var sampleCategories = []string{
	"Books",
	"Electronics",
	"Fashion",
	"Home & Kitchen",
	"Sports & Outdoors",
}

var sampleProducts = []Product{
	{Name: "Smart Watch Pro", Category: "Electronics", Price: 199.99, Stock: 50},
	{Name: "Wireless Earbuds", Category: "Electronics", Price: 129.99, Stock: 75},
	{Name: "Ultra HD 4K TV", Category: "Electronics", Price: 899.99, Stock: 20},
	{Name: "Premium Denim Jacket", Category: "Fashion", Price: 89.99, Stock: 40},
	{Name: "Designer Sunglasses", Category: "Fashion", Price: 149.99, Stock: 35},
	{Name: "Smart Coffee Maker", Category: "Home & Kitchen", Price: 159.99, Stock: 30},
	{Name: "Non-stick Cookware Set", Category: "Home & Kitchen", Price: 199.99, Stock: 25},
	{Name: "Future Technology Trends", Category: "Books", Price: 24.99, Stock: 100},
	{Name: "Healthy Cooking Guide", Category: "Books", Price: 19.99, Stock: 90},
	{Name: "Ultra-light Hiking Backpack", Category: "Sports & Outdoors", Price: 79.99, Stock: 45},
}

// statusWeights is the rough share of each status among sample orders,
// indexed like Statuses.
var statusWeights = []int{15, 25, 30, 25, 5}

func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// SampleDataset builds a demo catalog with a year of generated orders ending
// at now. The same seed always yields the same dataset.
func SampleDataset(now time.Time, seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))

	d := &Dataset{Version: datasetVersion}
	for _, name := range sampleCategories {
		d.Categories = append(d.Categories, Category{Name: name, Slug: slugify(name)})
	}
	for _, p := range sampleProducts {
		p.Views = 50 + rng.Intn(450)
		d.Products = append(d.Products, p)
	}

	customers := make([]string, 80)
	for i := range customers {
		customers[i] = fmt.Sprintf("customer%02d@example.com", i+1)
	}

	start := now.AddDate(-1, 0, 0)
	id := 1
	for day := start; day.Before(now); day = day.AddDate(0, 0, 1) {
		// Order volume grows through the year.
		progress := float64(day.Sub(start)) / float64(now.Sub(start))
		n := 1 + rng.Intn(2+int(math.Round(progress*4)))
		for i := 0; i < n; i++ {
			o := Order{
				ID:        id,
				Email:     customers[rng.Intn(len(customers))],
				Status:    pickStatus(rng),
				CreatedAt: day.Add(time.Duration(rng.Intn(86400)) * time.Second),
			}
			if o.CreatedAt.After(now) {
				o.CreatedAt = now
			}
			lines := 1 + rng.Intn(3)
			for j := 0; j < lines; j++ {
				p := sampleProducts[rng.Intn(len(sampleProducts))]
				qty := 1 + rng.Intn(2)
				sub := math.Round(p.Price*float64(qty)*100) / 100
				o.Items = append(o.Items, OrderItem{Product: p.Name, Quantity: qty, Subtotal: sub})
				o.Total += sub
			}
			d.Orders = append(d.Orders, o)
			id++
		}
	}
	return d
}

func pickStatus(rng *rand.Rand) Status {
	total := 0
	for _, w := range statusWeights {
		total += w
	}
	n := rng.Intn(total)
	for i, w := range statusWeights {
		if n < w {
			return Statuses[i]
		}
		n -= w
	}
	return StatusPending
}
