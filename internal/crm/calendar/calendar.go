// Package calendar builds the read models of the dashboard and the
// scheduling calendar from a store snapshot.
package calendar

import (
	"slices"
	"strings"
	"time"

	"github.com/gartstein/staffing/internal/crm/models"
	"github.com/gartstein/staffing/internal/crm/pipeline"
)

const (
	// UpcomingWindow is how far ahead Upcoming looks.
	UpcomingWindow = 5 * 24 * time.Hour
	// UpcomingLimit caps the number of upcoming activities.
	UpcomingLimit = 10

	unknownJob      = "Unknown Job"
	unknownResource = "Unknown Resource"
)

// Activity is a scheduled process flow with its display names resolved.
type Activity struct {
	Flow         models.ProcessFlow `json:"flow"`
	JobTitle     string             `json:"jobTitle"`
	ResourceName string             `json:"resourceName"`
	StatusLabel  string             `json:"statusLabel"`
}

type names struct {
	jobs      map[string]string
	resources map[string]string
}

func indexNames(s *models.Snapshot) names {
	n := names{jobs: map[string]string{}, resources: map[string]string{}}
	for _, j := range s.JobRequirements {
		n.jobs[j.ID] = j.Title
	}
	for _, r := range s.Resources {
		n.resources[r.ID] = r.Name
	}
	return n
}

func (n names) activity(f models.ProcessFlow) Activity {
	a := Activity{
		Flow:         f,
		JobTitle:     n.jobs[f.JobID],
		ResourceName: n.resources[f.ResourceID],
		StatusLabel:  pipeline.Info(f.Status).Label,
	}
	if a.JobTitle == "" {
		a.JobTitle = unknownJob
	}
	if a.ResourceName == "" {
		a.ResourceName = unknownResource
	}
	return a
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func byScheduledDate(a, b Activity) int {
	return a.Flow.ScheduledDate.Compare(*b.Flow.ScheduledDate)
}

// OnDate returns the flows scheduled on the calendar day of day, compared in
// day's location, earliest first.
func OnDate(s *models.Snapshot, day time.Time) []Activity {
	n := indexNames(s)
	out := []Activity{}
	for _, f := range s.ProcessFlows {
		if f.ScheduledDate != nil && sameDay(f.ScheduledDate.In(day.Location()), day) {
			out = append(out, n.activity(f))
		}
	}
	slices.SortStableFunc(out, byScheduledDate)
	return out
}

// Upcoming returns up to limit flows scheduled within UpcomingWindow from
// now, earliest first. A limit of zero or less means UpcomingLimit.
func Upcoming(s *models.Snapshot, now time.Time, limit int) []Activity {
	if limit <= 0 {
		limit = UpcomingLimit
	}
	until := now.Add(UpcomingWindow)
	n := indexNames(s)
	out := []Activity{}
	for _, f := range s.ProcessFlows {
		if f.ScheduledDate == nil {
			continue
		}
		if at := *f.ScheduledDate; !at.Before(now) && !at.After(until) {
			out = append(out, n.activity(f))
		}
	}
	slices.SortStableFunc(out, byScheduledDate)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// MonthCounts returns the number of scheduled flows per day of month, in
// loc. Days without activity are absent.
func MonthCounts(s *models.Snapshot, year int, month time.Month, loc *time.Location) map[int]int {
	counts := map[int]int{}
	for _, f := range s.ProcessFlows {
		if f.ScheduledDate == nil {
			continue
		}
		y, m, d := f.ScheduledDate.In(loc).Date()
		if y == year && m == month {
			counts[d]++
		}
	}
	return counts
}

type JobStats struct {
	Total        int                      `json:"total"`
	ByStatus     map[models.JobStatus]int `json:"byStatus"`
	HighPriority int                      `json:"highPriority"`
}

type VendorStats struct {
	Total                int `json:"total"`
	Active               int `json:"active"`
	Inactive             int `json:"inactive"`
	WithMultipleContacts int `json:"withMultipleContacts"`
}

type ResourceStats struct {
	Total      int `json:"total"`
	Available  int `json:"available"`
	Busy       int `json:"busy"`
	Inactive   int `json:"inactive"`
	InHouse    int `json:"inHouse"`
	External   int `json:"external"`
	WithResume int `json:"withResume"`
}

type ProcessStats struct {
	Total     int                     `json:"total"`
	Active    int                     `json:"active"`
	Cleared   int                     `json:"cleared"`
	Rejected  int                     `json:"rejected"`
	Scheduled int                     `json:"scheduled"`
	ByStatus  map[pipeline.Status]int `json:"byStatus"`
}

// Stats is the dashboard summary.
type Stats struct {
	Jobs      JobStats      `json:"jobs"`
	Vendors   VendorStats   `json:"vendors"`
	Resources ResourceStats `json:"resources"`
	Processes ProcessStats  `json:"processes"`
	Files     int           `json:"files"`
	Skills    int           `json:"skills"`
}

// Dashboard counts the snapshot. Scheduled counts flows whose date lies
// after now.
func Dashboard(s *models.Snapshot, now time.Time) Stats {
	st := Stats{
		Jobs:      JobStats{Total: len(s.JobRequirements), ByStatus: map[models.JobStatus]int{}},
		Vendors:   VendorStats{Total: len(s.Vendors)},
		Resources: ResourceStats{Total: len(s.Resources)},
		Processes: ProcessStats{Total: len(s.ProcessFlows), ByStatus: map[pipeline.Status]int{}},
		Files:     len(s.Files),
		Skills:    len(s.TechStackSkills),
	}

	for _, j := range s.JobRequirements {
		st.Jobs.ByStatus[j.Status]++
		if j.Priority == models.PriorityHigh || j.Priority == models.PriorityUrgent {
			st.Jobs.HighPriority++
		}
	}

	for _, v := range s.Vendors {
		switch v.Status {
		case models.VendorActive:
			st.Vendors.Active++
		case models.VendorInactive:
			st.Vendors.Inactive++
		}
		if len(v.Contacts) > 1 {
			st.Vendors.WithMultipleContacts++
		}
	}

	for _, r := range s.Resources {
		switch r.Status {
		case models.ResourceAvailable:
			st.Resources.Available++
		case models.ResourceBusy:
			st.Resources.Busy++
		case models.ResourceInactive:
			st.Resources.Inactive++
		}
		if r.Type == models.ResourceInHouse {
			st.Resources.InHouse++
		}
		if strings.HasPrefix(string(r.Type), "External") {
			st.Resources.External++
		}
		if r.Resume != nil {
			st.Resources.WithResume++
		}
	}

	for _, f := range s.ProcessFlows {
		st.Processes.ByStatus[f.Status]++
		switch f.Status {
		case pipeline.Cleared:
			st.Processes.Cleared++
		case pipeline.Rejected:
			st.Processes.Rejected++
		default:
			st.Processes.Active++
		}
		if f.ScheduledDate != nil && f.ScheduledDate.After(now) {
			st.Processes.Scheduled++
		}
	}
	return st
}
