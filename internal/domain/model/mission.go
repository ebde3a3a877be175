package model

import (
	"errors"
	"time"
)

// ErrMissionNotFound is returned when a mission lookup misses.
var ErrMissionNotFound = errors.New("mission not found")

// Mission is the read-only view of a mission that jobs reference.
type Mission struct {
	ID               string     `json:"id"                    db:"id"`
	Name             string     `json:"name"                  db:"name"`
	DurationWeeks    int        `json:"duration_weeks"        db:"duration_weeks"`
	CrewHoursPerWeek float64    `json:"crew_hours_per_week"   db:"crew_hours_per_week"`
	StartDate        *time.Time `json:"start_date,omitempty"  db:"start_date"`
	EndDate          *time.Time `json:"end_date,omitempty"    db:"end_date"`
}
