package analytics

import (
	"cmp"
	"math"
	"slices"

	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
)

// ImpactBar is one bar of the impact distribution chart. Width is a percentage of the largest total.
type ImpactBar struct {
	Impact model.ImpactType `json:"impact"`
	Total  float64          `json:"total"`
	Width  float64          `json:"width"`
}

// ChartItem is an item row inside a category series.
type ChartItem struct {
	Name       string           `json:"name"`
	Delta      float64          `json:"delta"`
	Sign       int              `json:"sign"`
	Unit       string           `json:"unit"`
	ChangeType model.ChangeType `json:"changeType"`
}

// CategorySeries is one category of the breakdown chart. Share is its percentage of all absolute change.
type CategorySeries struct {
	Category string      `json:"category"`
	Total    float64     `json:"total"`
	Share    float64     `json:"share"`
	Count    int         `json:"count"`
	Items    []ChartItem `json:"items"`
}

// Chart holds the render-ready series.
type Chart struct {
	Impacts    []ImpactBar      `json:"impacts"`
	Categories []CategorySeries `json:"categories"`
}

// Project maps aggregates to chart series.
func Project(agg Aggregates) Chart {
	return Chart{
		Impacts:    ImpactBars(agg.Impacts),
		Categories: CategoryBreakdown(agg.Categories),
	}
}

// ImpactBars scales impact totals against the largest one. Bars are ordered by total, largest first;
// ties keep first-seen order. When every total is 0 all widths are 0.
func ImpactBars(impacts []ImpactBucket) []ImpactBar {
	var peak float64
	for _, b := range impacts {
		peak = max(peak, b.Total)
	}
	bars := make([]ImpactBar, len(impacts))
	for i, b := range impacts {
		bars[i] = ImpactBar{Impact: b.Impact, Total: b.Total, Width: percentOf(b.Total, peak)}
	}
	slices.SortStableFunc(bars, func(a, b ImpactBar) int {
		return cmp.Compare(b.Total, a.Total)
	})
	return bars
}

// CategoryBreakdown keeps categories in first-seen order and items in reporting order. An item's sign
// is taken from its change as reported, never re-derived from changeType.
func CategoryBreakdown(categories []CategoryBucket) []CategorySeries {
	var all float64
	for _, c := range categories {
		all += c.Total
	}
	out := make([]CategorySeries, len(categories))
	for i, c := range categories {
		items := make([]ChartItem, len(c.Items))
		for j, it := range c.Items {
			items[j] = ChartItem{
				Name:       it.Name,
				Delta:      it.Change,
				Sign:       sign(it.Change),
				Unit:       it.Unit,
				ChangeType: it.ChangeType,
			}
		}
		out[i] = CategorySeries{
			Category: c.Category,
			Total:    c.Total,
			Share:    percentOf(c.Total, all),
			Count:    c.Count,
			Items:    items,
		}
	}
	return out
}

// percentOf returns part/whole*100 clamped to [0,100] and rounded to one decimal.
func percentOf(part, whole float64) float64 {
	if whole <= 0 || math.IsNaN(part) || math.IsNaN(whole) {
		return 0
	}
	return round1(clamp(part/whole*100, 0, 100))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
