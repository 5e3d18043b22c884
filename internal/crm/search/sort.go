package search

import (
	"fmt"
	"slices"
	"time"

	"github.com/gartstein/staffing/internal/crm/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Direction is the sort order of a list view.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection maps "desc" to Desc and anything else to Asc.
func ParseDirection(raw string) Direction {
	if raw == string(Desc) {
		return Desc
	}
	return Asc
}

// Field extracts one sortable value from a record. Exactly one of the
// extractors is set.
type Field[T any] struct {
	String func(T) string
	Number func(T) float64
	Time   func(T) time.Time
}

// Sort orders items in place by a single field. Strings are collated for
// English, numbers subtract and times compare by epoch millisecond. Ties keep
// their input order; there is no secondary key.
func Sort[T any](items []T, field Field[T], dir Direction) {
	var cmp func(a, b T) int
	switch {
	case field.String != nil:
		col := collate.New(language.English)
		cmp = func(a, b T) int { return col.CompareString(field.String(a), field.String(b)) }
	case field.Number != nil:
		cmp = func(a, b T) int {
			d := field.Number(a) - field.Number(b)
			switch {
			case d < 0:
				return -1
			case d > 0:
				return 1
			}
			return 0
		}
	case field.Time != nil:
		cmp = func(a, b T) int {
			d := field.Time(a).UnixMilli() - field.Time(b).UnixMilli()
			switch {
			case d < 0:
				return -1
			case d > 0:
				return 1
			}
			return 0
		}
	default:
		return
	}

	if dir == Desc {
		asc := cmp
		cmp = func(a, b T) int { return asc(b, a) }
	}
	slices.SortStableFunc(items, cmp)
}

// SortBy looks up name in fields and sorts items with it.
func SortBy[T any](items []T, fields map[string]Field[T], name string, dir Direction) error {
	f, ok := fields[name]
	if !ok {
		return fmt.Errorf("unknown sort field %q", name)
	}
	Sort(items, f, dir)
	return nil
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func floatOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// VendorFields are the sortable vendor columns.
var VendorFields = map[string]Field[models.Vendor]{
	"name":      {String: func(v models.Vendor) string { return v.Name }},
	"company":   {String: func(v models.Vendor) string { return v.Company }},
	"email":     {String: func(v models.Vendor) string { return v.Email }},
	"status":    {String: func(v models.Vendor) string { return string(v.Status) }},
	"category":  {String: func(v models.Vendor) string { return v.Category }},
	"createdAt": {Time: func(v models.Vendor) time.Time { return v.CreatedAt }},
	"updatedAt": {Time: func(v models.Vendor) time.Time { return v.UpdatedAt }},
}

// ResourceFields are the sortable resource columns.
var ResourceFields = map[string]Field[models.Resource]{
	"name":       {String: func(r models.Resource) string { return r.Name }},
	"email":      {String: func(r models.Resource) string { return r.Email }},
	"type":       {String: func(r models.Resource) string { return string(r.Type) }},
	"status":     {String: func(r models.Resource) string { return string(r.Status) }},
	"location":   {String: func(r models.Resource) string { return r.Location }},
	"experience": {Number: func(r models.Resource) float64 { return float64(r.Experience) }},
	"hourlyRate": {Number: func(r models.Resource) float64 { return floatOrZero(r.HourlyRate) }},
	"createdAt":  {Time: func(r models.Resource) time.Time { return r.CreatedAt }},
	"startDate":  {Time: func(r models.Resource) time.Time { return timeOrZero(r.StartDate) }},
}

// JobFields are the sortable job requirement columns.
var JobFields = map[string]Field[models.JobRequirement]{
	"title":      {String: func(j models.JobRequirement) string { return j.Title }},
	"clientName": {String: func(j models.JobRequirement) string { return j.ClientName }},
	"priority":   {String: func(j models.JobRequirement) string { return string(j.Priority) }},
	"status":     {String: func(j models.JobRequirement) string { return string(j.Status) }},
	"location":   {String: func(j models.JobRequirement) string { return j.Location }},
	"experience": {Number: func(j models.JobRequirement) float64 { return float64(j.Experience) }},
	"budget":     {Number: func(j models.JobRequirement) float64 { return floatOrZero(j.Budget) }},
	"createdAt":  {Time: func(j models.JobRequirement) time.Time { return j.CreatedAt }},
	"startDate":  {Time: func(j models.JobRequirement) time.Time { return timeOrZero(j.StartDate) }},
}

// ProcessFlowFields are the sortable process flow columns.
var ProcessFlowFields = map[string]Field[models.ProcessFlow]{
	"status":        {String: func(f models.ProcessFlow) string { return string(f.Status) }},
	"jobId":         {String: func(f models.ProcessFlow) string { return f.JobID }},
	"resourceId":    {String: func(f models.ProcessFlow) string { return f.ResourceID }},
	"notes":         {String: func(f models.ProcessFlow) string { return f.Notes }},
	"updatedAt":     {Time: func(f models.ProcessFlow) time.Time { return f.UpdatedAt }},
	"scheduledDate": {Time: func(f models.ProcessFlow) time.Time { return timeOrZero(f.ScheduledDate) }},
}

// FileFields are the sortable file columns.
var FileFields = map[string]Field[models.FileRecord]{
	"name":        {String: func(f models.FileRecord) string { return f.Name }},
	"contentType": {String: func(f models.FileRecord) string { return f.ContentType }},
	"size":        {Number: func(f models.FileRecord) float64 { return float64(f.Size) }},
	"uploadedAt":  {Time: func(f models.FileRecord) time.Time { return f.UploadedAt }},
}
