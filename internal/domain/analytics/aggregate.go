package analytics

import (
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
)

// ItemSummary is the per-item row shown inside a category.
type ItemSummary struct {
	Name       string           `json:"name"`
	Change     float64          `json:"change"`
	Unit       string           `json:"unit"`
	ChangeType model.ChangeType `json:"changeType"`
}

// CategoryBucket accumulates the changes of one category.
type CategoryBucket struct {
	Category string        `json:"category"`
	Total    float64       `json:"total"`
	Count    int           `json:"count"`
	Items    []ItemSummary `json:"items"`
}

// ImpactBucket accumulates the changes of one impact kind.
type ImpactBucket struct {
	Impact model.ImpactType `json:"impact"`
	Total  float64          `json:"total"`
	Count  int              `json:"count"`
}

// Aggregates holds both partitions of a canonical diff.
type Aggregates struct {
	Categories []CategoryBucket `json:"categories"`
	Impacts    []ImpactBucket   `json:"impacts"`
}

// Aggregate computes the category and impact partitions. The two folds share nothing but the
// read-only input, so they run concurrently.
func Aggregate(changes []model.MaterialQuantityDiff) Aggregates {
	var agg Aggregates
	var g errgroup.Group
	g.Go(func() error {
		agg.Categories = ByCategory(changes)
		return nil
	})
	g.Go(func() error {
		agg.Impacts = ByImpact(changes)
		return nil
	})
	_ = g.Wait() // folds never fail
	return agg
}

// ByCategory partitions changes by category in first-seen order. Members keep reporting order.
func ByCategory(changes []model.MaterialQuantityDiff) []CategoryBucket {
	buckets := []CategoryBucket{}
	index := make(map[string]int)
	for i := range changes {
		c := &changes[i]
		pos, ok := index[c.Category]
		if !ok {
			pos = len(buckets)
			index[c.Category] = pos
			buckets = append(buckets, CategoryBucket{Category: c.Category, Items: []ItemSummary{}})
		}
		b := &buckets[pos]
		b.Total += math.Abs(c.Change)
		b.Count++
		b.Items = append(b.Items, ItemSummary{
			Name:       c.ItemName,
			Change:     c.Change,
			Unit:       c.Unit,
			ChangeType: c.ChangeType,
		})
	}
	return buckets
}

// ByImpact partitions changes by impact kind in first-seen order.
func ByImpact(changes []model.MaterialQuantityDiff) []ImpactBucket {
	buckets := []ImpactBucket{}
	index := make(map[model.ImpactType]int)
	for i := range changes {
		c := &changes[i]
		pos, ok := index[c.ImpactType]
		if !ok {
			pos = len(buckets)
			index[c.ImpactType] = pos
			buckets = append(buckets, ImpactBucket{Impact: c.ImpactType})
		}
		buckets[pos].Total += math.Abs(c.Change)
		buckets[pos].Count++
	}
	return buckets
}

// CategoryTotal sums every category total.
func (a Aggregates) CategoryTotal() float64 {
	var sum float64
	for _, b := range a.Categories {
		sum += b.Total
	}
	return sum
}

// ImpactTotal sums every impact total.
func (a Aggregates) ImpactTotal() float64 {
	var sum float64
	for _, b := range a.Impacts {
		sum += b.Total
	}
	return sum
}

// Impact returns the bucket for kind, if any change carried it.
func (a Aggregates) Impact(kind model.ImpactType) (ImpactBucket, bool) {
	for _, b := range a.Impacts {
		if b.Impact == kind {
			return b, true
		}
	}
	return ImpactBucket{}, false
}

// Category returns the bucket for name, if present.
func (a Aggregates) Category(name string) (CategoryBucket, bool) {
	for _, b := range a.Categories {
		if b.Category == name {
			return b, true
		}
	}
	return CategoryBucket{}, false
}

// AbsoluteChange is Σ|change| over the canonical changes; both partition totals must equal it.
func AbsoluteChange(changes []model.MaterialQuantityDiff) float64 {
	var sum float64
	for i := range changes {
		sum += math.Abs(changes[i].Change)
	}
	return sum
}
