// Package analytics turns raw optimization results into validated, reconciled, chart-ready aggregates.
//
// Every function in this package is pure: it reads an immutable snapshot of its input and returns
// freshly allocated output, so identical input always yields identical output.
package analytics

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
)

// DefaultChangeTolerance is the absolute tolerance for a supplied change before it is recomputed.
const DefaultChangeTolerance = 1e-6

// MaxQuantity bounds before and after so that totals over any realistic payload stay finite.
const MaxQuantity = 1e15

// IngestOptions tunes ingestion.
type IngestOptions struct {
	// ChangeTolerance is the absolute difference allowed between a supplied change and after-before.
	ChangeTolerance float64
	// MaxWeek is the mission duration in weeks. Zero means unknown and disables the range check.
	MaxWeek int
}

func (o IngestOptions) tolerance() float64 {
	if o.ChangeTolerance > 0 {
		return o.ChangeTolerance
	}
	return DefaultChangeTolerance
}

// IngestResult is the canonical diff plus everything the ingester had to fix or drop.
type IngestResult struct {
	Diff        model.OptimizationDiff `json:"diff"`
	Corrections []Correction           `json:"corrections"`
	Skipped     []ValidationError      `json:"skipped"`
	Warnings    []string               `json:"warnings"`
}

// Ingest validates and normalizes a raw diff. Invalid entries are skipped and reported; if none
// survive, the partial result is returned together with an *EmptyResultError.
func Ingest(raw *model.RawOptimizationDiff, opts IngestOptions) (*IngestResult, error) {
	if raw == nil {
		raw = &model.RawOptimizationDiff{}
	}

	res := &IngestResult{
		Diff: model.OptimizationDiff{
			MaterialChanges: make([]model.MaterialQuantityDiff, 0, len(raw.MaterialChanges)),
			Summary:         raw.Summary,
			Justification:   normalizeJustification(raw.Justification),
		},
		Corrections: []Correction{},
		Skipped:     []ValidationError{},
		Warnings:    []string{},
	}

	for i := range raw.MaterialChanges {
		entry, corrections, verr := canonicalize(i, &raw.MaterialChanges[i], opts)
		if verr != nil {
			res.Skipped = append(res.Skipped, *verr)
			continue
		}
		res.Diff.MaterialChanges = append(res.Diff.MaterialChanges, entry)
		res.Corrections = append(res.Corrections, corrections...)
	}

	if res.Diff.Justification.PrimaryStrategy == "" {
		res.Warnings = append(res.Warnings, ErrEmptyJustification.Error())
	}

	if len(res.Diff.MaterialChanges) == 0 {
		return res, &EmptyResultError{Skipped: res.Skipped}
	}
	return res, nil
}

func canonicalize(
	index int,
	in *model.RawMaterialChange,
	opts IngestOptions,
) (model.MaterialQuantityDiff, []Correction, *ValidationError) {
	itemID := strings.TrimSpace(in.ItemID)
	skip := func(field, reason string) (model.MaterialQuantityDiff, []Correction, *ValidationError) {
		return model.MaterialQuantityDiff{}, nil, &ValidationError{Index: index, ItemID: itemID, Field: field, Reason: reason}
	}

	if in.Malformed != "" {
		return skip("entry", "is malformed: "+in.Malformed)
	}

	required := []struct{ field, value string }{
		{"itemId", itemID},
		{"itemName", strings.TrimSpace(in.ItemName)},
		{"category", strings.TrimSpace(in.Category)},
		{"unit", strings.TrimSpace(in.Unit)},
	}
	for _, r := range required {
		if r.value == "" {
			return skip(r.field, "is required")
		}
	}
	if field, reason, ok := checkQuantity("before", in.Before); !ok {
		return skip(field, reason)
	}
	if field, reason, ok := checkQuantity("after", in.After); !ok {
		return skip(field, reason)
	}
	impact := model.ImpactType(strings.ToLower(strings.TrimSpace(in.ImpactType)))
	if !impact.Valid() {
		return skip("impactType", "must be one of mass_saving, recycling_gain, safety_improvement, efficiency_gain")
	}

	before, after := *in.Before, *in.After
	change := after - before

	var corrections []Correction
	fix := func(field, supplied, derived string) {
		corrections = append(corrections, Correction{
			Index: index, ItemID: itemID, Field: field, Supplied: supplied, Derived: derived,
		})
	}

	if in.Change != nil && (math.IsNaN(*in.Change) || math.Abs(*in.Change-change) > opts.tolerance()) {
		fix("change", formatNumber(*in.Change), formatNumber(change))
	}

	supplied := model.ChangeType(strings.ToLower(strings.TrimSpace(in.ChangeType)))
	changeType := DeriveChangeType(before, after, supplied)
	if in.ChangeType != "" && supplied != changeType {
		fix("changeType", in.ChangeType, string(changeType))
	}

	weeks, dropped := normalizeWeeks(in.WeekApplied, opts.MaxWeek)
	if len(dropped) > 0 {
		fix("weekApplied", formatWeeks(in.WeekApplied), formatWeeks(weeks))
	}

	return model.MaterialQuantityDiff{
		ItemID:        itemID,
		ItemName:      strings.TrimSpace(in.ItemName),
		Category:      strings.TrimSpace(in.Category),
		Unit:          strings.TrimSpace(in.Unit),
		Before:        before,
		After:         after,
		Change:        change,
		ChangeType:    changeType,
		ImpactType:    impact,
		Justification: strings.TrimSpace(in.Justification),
		WeekApplied:   weeks,
	}, corrections, nil
}

func checkQuantity(field string, v *float64) (string, string, bool) {
	switch {
	case v == nil:
		return field, "is required", false
	case math.IsNaN(*v) || math.IsInf(*v, 0):
		return field, "must be finite", false
	case *v < 0:
		return field, "must be non-negative", false
	case *v > MaxQuantity:
		return field, "must not exceed " + formatNumber(MaxQuantity), false
	}
	return "", "", true
}

// DeriveChangeType classifies a delta. The rules are evaluated in order:
// before = 0 ⇒ added; after = 0 ⇒ eliminated; change < 0 ⇒ reduced; change > 0 ⇒ increased.
// An unchanged quantity keeps a supplied reduced/increased label and otherwise reads as reduced.
func DeriveChangeType(before, after float64, supplied model.ChangeType) model.ChangeType {
	change := after - before
	switch {
	case before == 0:
		return model.ChangeTypeAdded
	case after == 0:
		return model.ChangeTypeEliminated
	case change < 0:
		return model.ChangeTypeReduced
	case change > 0:
		return model.ChangeTypeIncreased
	}
	if supplied == model.ChangeTypeIncreased {
		return model.ChangeTypeIncreased
	}
	return model.ChangeTypeReduced
}

// normalizeWeeks returns the ascending, de-duplicated set of valid week indices and the rejected ones.
func normalizeWeeks(weeks []int, maxWeek int) ([]int, []int) {
	if len(weeks) == 0 {
		return nil, nil
	}
	var kept, dropped []int
	for _, w := range weeks {
		if w < 1 || (maxWeek > 0 && w > maxWeek) {
			dropped = append(dropped, w)
			continue
		}
		kept = append(kept, w)
	}
	slices.Sort(kept)
	return slices.Compact(kept), dropped
}

func normalizeJustification(j model.DiffJustification) model.DiffJustification {
	out := model.DiffJustification{
		PrimaryStrategy: strings.TrimSpace(j.PrimaryStrategy),
		KeyDecisions:    nonEmpty(j.KeyDecisions),
		TradeOffs:       nonEmpty(j.TradeOffs),
	}
	return out
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatWeeks(weeks []int) string {
	parts := make([]string, len(weeks))
	for i, w := range weeks {
		parts[i] = strconv.Itoa(w)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
