package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"revo/internal/ai"
	"revo/internal/auth"
	"revo/internal/calendar"
	"revo/internal/summary"

	"github.com/go-chi/chi/v5"
)

// LocationSource resolves the timezone governing a user's period boundaries.
type LocationSource interface {
	ResolveLocation(ctx context.Context, userID uint64, browserGuess string) (*time.Location, error)
}

type SummaryHandler struct {
	Machine *summary.Machine
	Store   summary.Store
	Account LocationSource
}

type weeklySummaryDTO struct {
	WeekID     string    `json:"week_id"`
	WeekStart  time.Time `json:"week_start"`
	Summary    string    `json:"summary"`
	Wins       []string  `json:"wins"`
	Challenges []string  `json:"challenges"`
	NextWeek   []string  `json:"next_week"`
	CreatedAt  time.Time `json:"created_at"`
}

func toWeeklyDTO(rec *summary.WeeklySummary) *weeklySummaryDTO {
	if rec == nil {
		return nil
	}
	return &weeklySummaryDTO{
		WeekID:     rec.WeekID,
		WeekStart:  rec.WeekStart,
		Summary:    rec.Summary,
		Wins:       []string(rec.Wins),
		Challenges: []string(rec.Challenges),
		NextWeek:   []string(rec.NextWeek),
		CreatedAt:  rec.CreatedAt,
	}
}

type monthlySummaryDTO struct {
	Month             string    `json:"month"`
	WeeksIncluded     []string  `json:"weeks_included"`
	WeeksMissing      []string  `json:"weeks_missing"`
	Summary           string    `json:"summary"`
	Patterns          string    `json:"patterns"`
	EmotionalTrend    string    `json:"emotional_trend"`
	RoleTrend         string    `json:"role_trend"`
	ProductivityTrend string    `json:"productivity_trend"`
	ActionSteps       []string  `json:"action_steps"`
	CreatedAt         time.Time `json:"created_at"`
}

func toMonthlyDTO(rec *summary.MonthlySummary) *monthlySummaryDTO {
	if rec == nil {
		return nil
	}
	return &monthlySummaryDTO{
		Month:             rec.Month,
		WeeksIncluded:     []string(rec.WeeksIncluded),
		WeeksMissing:      []string(rec.WeeksMissing),
		Summary:           rec.Summary,
		Patterns:          rec.Patterns,
		EmotionalTrend:    rec.EmotionalTrend,
		RoleTrend:         rec.RoleTrend,
		ProductivityTrend: rec.ProductivityTrend,
		ActionSteps:       []string(rec.ActionSteps),
		CreatedAt:         rec.CreatedAt,
	}
}

// CurrentWeek returns the stored summary for the week now falls in, or null.
// The current week is never complete, so no status machinery is involved.
func (h *SummaryHandler) CurrentWeek(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	loc, err := h.Account.ResolveLocation(r.Context(), uid, r.URL.Query().Get("tz"))
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	weekID := calendar.WeekIDOf(time.Now(), loc)
	rec, err := h.Store.GetWeekly(r.Context(), uid, weekID)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"week_id": string(weekID),
		"summary": toWeeklyDTO(rec),
	})
}

type modeReq struct {
	Mode string `json:"mode"`
}

// requestMode reads a mode override from the query or body of a POST.
// GET routes never call this; reads must not generate.
func requestMode(r *http.Request, fallback summary.Mode) (summary.Mode, error) {
	raw := r.URL.Query().Get("mode")
	if raw == "" && r.Body != nil {
		var req modeReq
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			raw = req.Mode
		}
	}
	if raw == "" {
		return fallback, nil
	}
	return summary.ParseMode(raw)
}

func (h *SummaryHandler) WeekStatus(w http.ResponseWriter, r *http.Request) {
	h.week(w, r, summary.ModeCheck)
}

func (h *SummaryHandler) WeekGenerate(w http.ResponseWriter, r *http.Request) {
	mode, err := requestMode(r, summary.ModeGenerate)
	if err != nil {
		http.Error(w, "mode must be check or generate", http.StatusBadRequest)
		return
	}
	h.week(w, r, mode)
}

func (h *SummaryHandler) week(w http.ResponseWriter, r *http.Request, mode summary.Mode) {
	uid, _ := auth.UserIDFromContext(r.Context())

	weekID, err := calendar.ParseWeekID(chi.URLParam(r, "weekId"))
	if err != nil {
		http.Error(w, "malformed week id", http.StatusBadRequest)
		return
	}

	loc, err := h.Account.ResolveLocation(r.Context(), uid, r.URL.Query().Get("tz"))
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	status, err := h.Machine.Week(r.Context(), uid, weekID, mode, loc)
	if err != nil {
		writeSummaryErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"state":   status.State,
		"reason":  status.Reason,
		"summary": toWeeklyDTO(status.Summary),
	})
}

func (h *SummaryHandler) Month(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	mode, err := requestMode(r, summary.ModeCheck)
	if err != nil {
		http.Error(w, "mode must be check or generate", http.StatusBadRequest)
		return
	}

	month, err := calendar.ParseMonthID(chi.URLParam(r, "month"))
	if err != nil {
		http.Error(w, "malformed month id", http.StatusBadRequest)
		return
	}

	loc, err := h.Account.ResolveLocation(r.Context(), uid, r.URL.Query().Get("tz"))
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	status, err := h.Machine.Month(r.Context(), uid, month, mode, loc)
	if err != nil {
		writeSummaryErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"state":          status.State,
		"reason":         status.Reason,
		"summary":        toMonthlyDTO(status.Summary),
		"weeks_included": weekIDsOut(status.WeeksIncluded),
		"weeks_missing":  weekIDsOut(status.WeeksMissing),
	})
}

func weekIDsOut(ids []calendar.WeekID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func writeSummaryErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, calendar.ErrMalformedPeriodID):
		http.Error(w, "malformed period id", http.StatusBadRequest)
	case errors.Is(err, ai.ErrSummarizationFailed):
		http.Error(w, "summarization failed", http.StatusBadGateway)
	default:
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}
