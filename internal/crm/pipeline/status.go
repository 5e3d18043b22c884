// Package pipeline defines the recruiting pipeline stages a (job, resource)
// pairing moves through, their display metadata, the recommended transition
// graph and the derived status-history view.
package pipeline

import (
	"fmt"
	"time"

	e "github.com/gartstein/staffing/internal/crm/errors"
)

// Status is one stage of the recruiting pipeline.
type Status string

const (
	ResumeSubmitted          Status = "resume-submitted"
	ScreeningScheduled       Status = "screening-scheduled"
	ScreeningCleared         Status = "screening-cleared"
	ClientScreeningScheduled Status = "client-screening-scheduled"
	ClientScreeningCleared   Status = "client-screening-cleared"
	FinalInterviewScheduled  Status = "final-interview-scheduled"
	Cleared                  Status = "cleared"
	Rejected                 Status = "rejected"
)

// StatusInfo is the display metadata of a Status.
type StatusInfo struct {
	Status Status `json:"status"`
	Label  string `json:"label"`
	Color  string `json:"color"`
}

// ordered is the pipeline in stage order; the index of an entry is the
// index of its status.
var ordered = []StatusInfo{
	{Status: ResumeSubmitted, Label: "Resume Submitted", Color: "blue"},
	{Status: ScreeningScheduled, Label: "Screening Scheduled", Color: "yellow"},
	{Status: ScreeningCleared, Label: "Screening Cleared", Color: "green"},
	{Status: ClientScreeningScheduled, Label: "Client Screening Scheduled", Color: "orange"},
	{Status: ClientScreeningCleared, Label: "Client Screening Cleared", Color: "purple"},
	{Status: FinalInterviewScheduled, Label: "Final Interview Scheduled", Color: "indigo"},
	{Status: Cleared, Label: "Cleared", Color: "green-600"},
	{Status: Rejected, Label: "Rejected", Color: "red"},
}

// All returns every stage in pipeline order.
func All() []StatusInfo {
	out := make([]StatusInfo, len(ordered))
	copy(out, ordered)
	return out
}

// Index returns the position of s in the pipeline, or -1 if s is unknown.
func Index(s Status) int {
	for i, info := range ordered {
		if info.Status == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is one of the eight pipeline stages.
func Valid(s Status) bool {
	return Index(s) >= 0
}

// Info returns the display metadata for s. Unknown statuses get their raw
// value as label and a neutral color.
func Info(s Status) StatusInfo {
	if i := Index(s); i >= 0 {
		return ordered[i]
	}
	return StatusInfo{Status: s, Label: string(s), Color: "gray"}
}

// Parse converts a raw string into a Status.
func Parse(raw string) (Status, error) {
	s := Status(raw)
	if !Valid(s) {
		return "", fmt.Errorf("%w: unknown pipeline status %q", e.ErrInvalidInput, raw)
	}
	return s, nil
}

// IsTerminal reports whether s is a conceptual end state. Nothing in the data
// model stops a terminal record from being moved again unless strict
// transitions are enabled.
func IsTerminal(s Status) bool {
	return s == Cleared || s == Rejected
}

// Active reports whether a record in status s is still in progress.
func Active(s Status) bool {
	return Valid(s) && !IsTerminal(s)
}

// CanTransition reports whether moving from one stage to another follows the
// recommended graph: staying put, moving forward (skipping stages is fine) or
// rejecting from any open stage. Terminal stages have no exits.
func CanTransition(from, to Status) bool {
	fi, ti := Index(from), Index(to)
	if fi < 0 || ti < 0 {
		return false
	}
	if from == to {
		return true
	}
	if IsTerminal(from) {
		return false
	}
	if to == Rejected {
		return true
	}
	return ti > fi
}

// HistoryEntry is one row of a status timeline.
type HistoryEntry struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Notes     string    `json:"notes"`
	UpdatedBy string    `json:"updatedBy"`
}

const systemActor = "system"

// SynthesizeHistory builds the display-only timeline for a record that has
// no recorded history. The current status comes first, followed by every
// earlier stage walking backward to the first one, each stamped one day
// further in the past. The result is placeholder data, not an audit trail.
func SynthesizeHistory(current Status, updatedAt time.Time, notes, updatedBy string) []HistoryEntry {
	idx := Index(current)
	if idx < 0 {
		return nil
	}
	if updatedBy == "" {
		updatedBy = systemActor
	}

	history := make([]HistoryEntry, 0, idx+1)
	history = append(history, HistoryEntry{
		Status:    current,
		Timestamp: updatedAt,
		Notes:     notes,
		UpdatedBy: updatedBy,
	})
	for i := idx - 1; i >= 0; i-- {
		info := ordered[i]
		history = append(history, HistoryEntry{
			Status:    info.Status,
			Timestamp: updatedAt.AddDate(0, 0, -(idx - i)),
			Notes:     "Status updated to " + info.Label,
			UpdatedBy: systemActor,
		})
	}
	return history
}
