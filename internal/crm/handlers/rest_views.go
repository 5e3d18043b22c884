package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gartstein/staffing/internal/crm/calendar"
	e "github.com/gartstein/staffing/internal/crm/errors"
	"github.com/gartstein/staffing/internal/crm/pipeline"
	"github.com/gartstein/staffing/internal/crm/search"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

type searchResponse struct {
	search.Results
	Total int `json:"total"`
}

func (h *RESTHandler) searchAll(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	res := h.service.Search(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, searchResponse{Results: res, Total: res.Total()})
}

// calendarDay lists activities on ?date=YYYY-MM-DD, today by default.
func (h *RESTHandler) calendarDay(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	now := h.now()
	day := now
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := time.ParseInLocation(dateLayout, raw, now.Location())
		if err != nil {
			h.writeError(w, fmt.Errorf("%w: date must be YYYY-MM-DD", e.ErrInvalidInput))
			return
		}
		day = d
	}
	writeJSON(w, http.StatusOK, calendar.OnDate(h.service.Snapshot(), day))
}

func (h *RESTHandler) calendarUpcoming(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, calendar.Upcoming(h.service.Snapshot(), h.now(), limit))
}

type monthView struct {
	Year   int         `json:"year"`
	Month  int         `json:"month"`
	Counts map[int]int `json:"counts"`
}

// calendarMonth counts scheduled activities per day of ?year&month, the
// current month by default.
func (h *RESTHandler) calendarMonth(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	now := h.now()
	year, err := intParam(r, "year", now.Year())
	if err != nil {
		h.writeError(w, err)
		return
	}
	month, err := intParam(r, "month", int(now.Month()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if month < 1 || month > 12 {
		h.writeError(w, fmt.Errorf("%w: month must be between 1 and 12", e.ErrInvalidInput))
		return
	}
	counts := calendar.MonthCounts(h.service.Snapshot(), year, time.Month(month), now.Location())
	writeJSON(w, http.StatusOK, monthView{Year: year, Month: month, Counts: counts})
}

// dashboardView is the snapshot counters plus, with a mirror configured,
// the per-status counts the mirror database holds.
type dashboardView struct {
	calendar.Stats
	Mirror map[pipeline.Status]int64 `json:"mirror,omitempty"`
}

func (h *RESTHandler) dashboard(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	view := dashboardView{Stats: calendar.Dashboard(h.service.Snapshot(), h.now())}
	if h.counter != nil {
		counts, err := h.counter.StatusCounts(r.Context())
		if err != nil {
			h.logger.Warn("Mirror status counts unavailable", zap.Error(err))
		} else {
			view.Mirror = counts
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *RESTHandler) integrity(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, h.service.Integrity())
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", e.ErrInvalidInput, name)
	}
	return n, nil
}
