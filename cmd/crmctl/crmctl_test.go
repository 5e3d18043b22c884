package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gartstein/staffing/internal/crm/blob"
	"github.com/gartstein/staffing/internal/crm/calendar"
	"github.com/gartstein/staffing/internal/crm/controller"
	"github.com/gartstein/staffing/internal/crm/models"
	"github.com/gartstein/staffing/internal/crm/pipeline"
	"github.com/gartstein/staffing/internal/crm/search"
	"github.com/gartstein/staffing/internal/crm/snapshot"
	"github.com/gartstein/staffing/internal/crm/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeSnapshot(t *testing.T, snap *models.Snapshot) string {
	t.Helper()
	raw, err := snapshot.Encode(snap)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "import.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func sample() *models.Snapshot {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	return &models.Snapshot{
		Vendors: []models.Vendor{{ID: "v1", Name: "Acme", Company: "Acme Ltd", Email: "hr@acme.test",
			Status: models.VendorActive, Contacts: []models.VendorContact{}, CreatedAt: now, UpdatedAt: now}},
		Resources: []models.Resource{{ID: "r1", Name: "Ann Gopher", Email: "ann@x.test", TechStack: []string{"Go"},
			Type: models.ResourceInHouse, Status: models.ResourceAvailable, CreatedAt: now, UpdatedAt: now}},
		JobRequirements: []models.JobRequirement{},
		ProcessFlows: []models.ProcessFlow{{ID: "p1", JobID: "missing", ResourceID: "r1",
			Status: pipeline.ScreeningScheduled, CreatedAt: now, UpdatedAt: now}},
		FileCategories:  []models.FileCategory{},
		Files:           []models.FileRecord{},
		TechStackSkills: []string{"Go"},
	}
}

func TestImportThenQuery(t *testing.T) {
	dir := t.TempDir()
	path := writeSnapshot(t, sample())

	out, err := run(t, "import", path, "--data", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 vendors")

	_, err = run(t, "import", path, "--data", dir)
	assert.ErrorContains(t, err, "use --force")

	_, err = run(t, "import", path, "--data", dir, "--force")
	require.NoError(t, err)

	out, err = run(t, "search", "gopher", "--data", dir, "--json")
	require.NoError(t, err)
	var res search.Results
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Resources, 1)
	assert.Equal(t, "r1", res.Resources[0].ID)

	out, err = run(t, "integrity", "--data", dir, "--json")
	require.NoError(t, err)
	var issues []store.IntegrityIssue
	require.NoError(t, json.Unmarshal([]byte(out), &issues))
	require.Len(t, issues, 1)
	assert.Equal(t, "missing", issues[0].Ref)

	out, err = run(t, "stats", "--data", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Pipeline")
	assert.Contains(t, out, "Screening Scheduled")
}

func TestFlagsDoNotLeakBetweenRuns(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "import", writeSnapshot(t, sample()), "--data", dir)
	require.NoError(t, err)

	out, err := run(t, "stats", "--data", dir, "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))

	out, err = run(t, "stats", "--data", dir)
	require.NoError(t, err)
	assert.False(t, json.Valid([]byte(out)))
	assert.Contains(t, out, "Pipeline")

	_, err = run(t, "import", writeSnapshot(t, sample()), "--data", dir, "--force")
	require.NoError(t, err)
	_, err = run(t, "import", writeSnapshot(t, sample()), "--data", dir)
	assert.ErrorContains(t, err, "use --force", "--force is not remembered")
}

func TestImportRejectsInvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":1,"state":{"vendors":"nope"}}`), 0o644))

	_, err := run(t, "import", path, "--data", t.TempDir())
	assert.Error(t, err)
}

func TestRenderStats(t *testing.T) {
	out := renderStats(calendar.Dashboard(sample(), time.Now()))
	for _, want := range []string{"Jobs", "Vendors", "Resources", "Pipeline", "1 skills"} {
		assert.Contains(t, out, want)
	}
}

func TestRenderIssues(t *testing.T) {
	assert.Contains(t, renderIssues(nil), "no dangling references")
	out := renderIssues([]store.IntegrityIssue{{Entity: "processFlow", ID: "p1", Field: "jobId", Ref: "j9", Message: "job not found"}})
	assert.Contains(t, out, "1 issue(s)")
	assert.Contains(t, out, "j9")
}

func TestRenderReconcile(t *testing.T) {
	out := renderReconcile(controller.ReconcileReport{
		Scanned: 2,
		Orphans: []blob.Object{{Pathname: "general/1_a.pdf", Size: 2048}},
		Missing: []models.FileRecord{{Name: "Brief", Pathname: "general/2_b.pdf"}},
		Removed: 1,
	}, true)
	assert.Contains(t, out, "general/1_a.pdf")
	assert.Contains(t, out, "2 KB")
	assert.Contains(t, out, "general/2_b.pdf")
	assert.Contains(t, out, "removed")
}

func TestRenderHistory(t *testing.T) {
	assert.Contains(t, renderHistory(nil), "no history")
	out := renderHistory([]pipeline.HistoryEntry{{
		Status: pipeline.Cleared, Timestamp: time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC),
		Notes: "offer sent", UpdatedBy: "admin",
	}})
	assert.True(t, strings.Contains(out, "Cleared") && strings.Contains(out, "offer sent"), out)
	assert.Contains(t, out, "2024-03-10 09:30")
}
