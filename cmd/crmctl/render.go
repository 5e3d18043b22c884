package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gartstein/staffing/internal/crm/calendar"
	"github.com/gartstein/staffing/internal/crm/controller"
	"github.com/gartstein/staffing/internal/crm/pipeline"
	"github.com/gartstein/staffing/internal/crm/search"
	"github.com/gartstein/staffing/internal/crm/store"
	"github.com/gartstein/staffing/internal/crm/upload"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(22)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func row(label string, value any) string {
	return labelStyle.Render(label) + fmt.Sprint(value)
}

func box(title string, rows ...string) string {
	return boxStyle.Render(titleStyle.Render(title) + "\n" + strings.Join(rows, "\n"))
}

func renderStats(st calendar.Stats) string {
	jobs := box("Jobs",
		row("total", st.Jobs.Total),
		row("high priority", st.Jobs.HighPriority),
	)
	vendors := box("Vendors",
		row("total", st.Vendors.Total),
		row("active", st.Vendors.Active),
		row("multiple contacts", st.Vendors.WithMultipleContacts),
	)
	resources := box("Resources",
		row("total", st.Resources.Total),
		row("available", st.Resources.Available),
		row("busy", st.Resources.Busy),
		row("with resume", st.Resources.WithResume),
	)

	flows := []string{
		row("total", st.Processes.Total),
		row("active", st.Processes.Active),
		row("scheduled", st.Processes.Scheduled),
	}
	for _, info := range pipeline.All() {
		if n := st.Processes.ByStatus[info.Status]; n > 0 {
			flows = append(flows, row(info.Label, n))
		}
	}
	processes := box("Pipeline", flows...)

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, jobs, vendors, resources),
		processes,
		dimStyle.Render(fmt.Sprintf("%d files, %d skills", st.Files, st.Skills)),
	)
}

func renderSearch(res search.Results) string {
	if res.Total() == 0 {
		return dimStyle.Render("no matches")
	}
	var b strings.Builder
	section := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		b.WriteString(titleStyle.Render(fmt.Sprintf("%s (%d)", title, len(lines))))
		b.WriteString("\n")
		for _, l := range lines {
			b.WriteString("  " + l + "\n")
		}
	}

	var lines []string
	for _, v := range res.Vendors {
		lines = append(lines, fmt.Sprintf("%s  %s", v.Name, dimStyle.Render(v.Company)))
	}
	section("Vendors", lines)

	lines = nil
	for _, r := range res.Resources {
		lines = append(lines, fmt.Sprintf("%s  %s", r.Name, dimStyle.Render(strings.Join(r.TechStack, ", "))))
	}
	section("Resources", lines)

	lines = nil
	for _, j := range res.Jobs {
		lines = append(lines, fmt.Sprintf("%s  %s", j.Title, dimStyle.Render(string(j.Status))))
	}
	section("Jobs", lines)

	return strings.TrimRight(b.String(), "\n")
}

func renderIssues(issues []store.IntegrityIssue) string {
	if len(issues) == 0 {
		return successStyle.Render("no dangling references")
	}
	lines := make([]string, 0, len(issues)+1)
	lines = append(lines, warningStyle.Render(fmt.Sprintf("%d issue(s)", len(issues))))
	for _, is := range issues {
		lines = append(lines, fmt.Sprintf("  %s %s %s -> %s  %s",
			is.Entity, is.ID, is.Field, is.Ref, dimStyle.Render(is.Message)))
	}
	return strings.Join(lines, "\n")
}

func renderReconcile(r controller.ReconcileReport, removed bool) string {
	lines := []string{
		row("objects scanned", r.Scanned),
		row("orphan objects", len(r.Orphans)),
		row("missing objects", len(r.Missing)),
	}
	if removed {
		lines = append(lines, row("removed", r.Removed))
	}
	for _, o := range r.Orphans {
		lines = append(lines, warningStyle.Render("orphan  ")+o.Pathname+dimStyle.Render("  "+upload.FormatFileSize(o.Size)))
	}
	for _, f := range r.Missing {
		lines = append(lines, errorStyle.Render("missing ")+f.Pathname+dimStyle.Render("  "+f.Name))
	}
	return box("Reconcile", lines...)
}

func renderHistory(entries []pipeline.HistoryEntry) string {
	if len(entries) == 0 {
		return dimStyle.Render("no history")
	}
	lines := make([]string, 0, len(entries))
	for _, h := range entries {
		info := pipeline.Info(h.Status)
		line := fmt.Sprintf("%s  %s  %s",
			dimStyle.Render(h.Timestamp.Format("2006-01-02 15:04")),
			lipgloss.NewStyle().Bold(true).Render(info.Label),
			dimStyle.Render("by "+h.UpdatedBy),
		)
		if h.Notes != "" {
			line += "\n    " + h.Notes
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
