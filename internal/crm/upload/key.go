package upload

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/gartstein/staffing/internal/crm/models"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// SanitizeFilename replaces every character outside [A-Za-z0-9.-] with '_'.
func SanitizeFilename(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// FolderFor maps an owner entity type to its default folder.
func FolderFor(t models.EntityType) string {
	switch t {
	case models.EntityVendor:
		return "vendors"
	case models.EntityResource:
		return "resources"
	case models.EntityJob:
		return "jobs"
	case models.EntityProcess:
		return "processes"
	default:
		return "general"
	}
}

// ObjectKey names the stored object. folder overrides the policy folder;
// when both are empty "general" is used. A user-scoped key without a user
// id uses "none".
func ObjectKey(p Policy, folder, userID string, at time.Time, filename string) string {
	if folder == "" {
		folder = p.Folder
	}
	if folder == "" {
		folder = "general"
	}
	ts := at.UnixMilli()
	name := SanitizeFilename(filename)

	if p.KeyStyle == KeyUserScoped {
		if userID == "" {
			userID = "none"
		}
		return fmt.Sprintf("%s/%s/%d-%s", folder, userID, ts, name)
	}
	return fmt.Sprintf("%s/%d_%s", folder, ts, name)
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatFileSize renders bytes with a 1024 base and at most two decimals,
// trailing zeros dropped: 1536 -> "1.5 KB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	v := float64(bytes) / math.Pow(1024, float64(i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}
