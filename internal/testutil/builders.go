package testutil

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
)

// JobBuilder provides a fluent interface for building JobRecord fixtures.
type JobBuilder struct {
	rec *model.JobRecord
}

// NewJob creates a draft optimization job with a fresh id.
func NewJob(missionID string) *JobBuilder {
	now := TestTime()
	return &JobBuilder{rec: &model.JobRecord{
		ID:        uuid.NewString(),
		Type:      model.JobTypeOptimization,
		Status:    model.JobStatusDraft,
		MissionID: missionID,
		CreatedAt: now,
		UpdatedAt: now,
	}}
}

// WithID sets the job id.
func (b *JobBuilder) WithID(id string) *JobBuilder {
	b.rec.ID = id
	return b
}

// WithType sets the job type.
func (b *JobBuilder) WithType(t model.JobType) *JobBuilder {
	b.rec.Type = t
	return b
}

// WithStatus sets the status. Running and terminal statuses get the timestamps the state machine
// would have stamped.
func (b *JobBuilder) WithStatus(s model.JobStatus) *JobBuilder {
	b.rec.Status = s
	if s == model.JobStatusRunning || s.Terminal() {
		started := b.rec.CreatedAt.Add(time.Minute)
		b.rec.StartedAt = &started
	}
	if s.Terminal() {
		done := b.rec.CreatedAt.Add(2 * time.Minute)
		b.rec.CompletedAt = &done
	}
	switch s {
	case model.JobStatusCompleted:
		b.rec.Progress = 100
		b.rec.Result = &model.JobResult{Success: true, Data: json.RawMessage(`{}`)}
	case model.JobStatusFailed:
		msg := "solver failed"
		b.rec.Error = &msg
	}
	return b
}

// WithProgress sets the progress.
func (b *JobBuilder) WithProgress(p int) *JobBuilder {
	b.rec.Progress = p
	return b
}

// WithUpdatedAt sets the last write time.
func (b *JobBuilder) WithUpdatedAt(t time.Time) *JobBuilder {
	b.rec.UpdatedAt = t
	return b
}

// Build returns a copy of the built record.
func (b *JobBuilder) Build() *model.JobRecord {
	return b.rec.Clone()
}

// NewMission returns a ten-week mission fixture.
func NewMission(id string) *model.Mission {
	start := TestTime()
	end := start.AddDate(0, 0, 70)
	return &model.Mission{
		ID:               id,
		Name:             "Mission " + id,
		DurationWeeks:    10,
		CrewHoursPerWeek: 40,
		StartDate:        &start,
		EndDate:          &end,
	}
}

// ChangeBuilder builds one raw material change entry.
type ChangeBuilder struct {
	entry map[string]any
}

// NewChange starts a change entry with the required descriptive fields filled in.
func NewChange(itemID, name, category string) *ChangeBuilder {
	return &ChangeBuilder{entry: map[string]any{
		"itemId":        itemID,
		"itemName":      name,
		"category":      category,
		"unit":          "units",
		"justification": "test change",
	}}
}

// Quantities sets before and after.
func (b *ChangeBuilder) Quantities(before, after float64) *ChangeBuilder {
	b.entry["before"] = before
	b.entry["after"] = after
	return b
}

// Impact sets the impact type.
func (b *ChangeBuilder) Impact(kind string) *ChangeBuilder {
	b.entry["impactType"] = kind
	return b
}

// Set overrides or adds any field, including ones with the wrong JSON type.
func (b *ChangeBuilder) Set(field string, value any) *ChangeBuilder {
	b.entry[field] = value
	return b
}

// Without removes a field.
func (b *ChangeBuilder) Without(field string) *ChangeBuilder {
	delete(b.entry, field)
	return b
}

// DiffPayloadBuilder builds raw solver result documents.
type DiffPayloadBuilder struct {
	changes   []map[string]any
	summary   map[string]any
	narrative map[string]any
	extra     map[string]any
	wrapped   bool
}

// NewDiffPayload starts an empty payload with a non-empty narrative.
func NewDiffPayload() *DiffPayloadBuilder {
	return &DiffPayloadBuilder{
		changes: []map[string]any{},
		narrative: map[string]any{
			"primaryStrategy": "test strategy",
			"keyDecisions":    []string{},
			"tradeOffs":       []string{},
		},
		extra: map[string]any{},
	}
}

// WithChange appends a change entry.
func (b *DiffPayloadBuilder) WithChange(c *ChangeBuilder) *DiffPayloadBuilder {
	b.changes = append(b.changes, c.entry)
	return b
}

// WithSummary sets the declared summary.
func (b *DiffPayloadBuilder) WithSummary(massSaved float64, items, recycling, safety int) *DiffPayloadBuilder {
	b.summary = map[string]any{
		"totalMassSaved":      massSaved,
		"totalItemsAffected":  items,
		"recyclingTasksAdded": recycling,
		"safetyImprovements":  safety,
	}
	return b
}

// WithField adds a top-level document field next to the diff, e.g. a "kpis" object.
func (b *DiffPayloadBuilder) WithField(name string, value any) *DiffPayloadBuilder {
	b.extra[name] = value
	return b
}

// Wrapped nests the diff under "optimizationDiff".
func (b *DiffPayloadBuilder) Wrapped() *DiffPayloadBuilder {
	b.wrapped = true
	return b
}

// JSON renders the payload.
func (b *DiffPayloadBuilder) JSON(t TestingTB) []byte {
	t.Helper()
	diff := map[string]any{
		"materialChanges": b.changes,
		"justification":   b.narrative,
	}
	if b.summary != nil {
		diff["summary"] = b.summary
	}
	doc := diff
	if b.wrapped {
		doc = map[string]any{"optimizationDiff": diff}
	}
	for k, v := range b.extra {
		doc[k] = v
	}
	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return out
}
