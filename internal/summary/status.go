package summary

import (
	"context"
	"errors"
	"time"

	"revo/internal/ai"
	"revo/internal/calendar"
	"revo/internal/metrics"
	"revo/internal/reflection"
)

// State is the per-period lifecycle position. Blocked and ready are expected,
// user-visible states, not failures; callers branch on them.
type State string

const (
	StateExists    State = "exists"
	StateBlocked   State = "blocked"
	StateReady     State = "ready"
	StateGenerated State = "generated"
)

type Mode string

const (
	ModeCheck    Mode = "check"
	ModeGenerate Mode = "generate"
)

var ErrInvalidMode = errors.New("invalid mode")

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCheck, ModeGenerate:
		return Mode(s), nil
	}
	return "", ErrInvalidMode
}

const (
	ReasonPeriodNotComplete = "period not fully completed"
	ReasonNoData            = "no data available"
)

// WeeklyStatus is the outcome of a weekly check/generate request.
type WeeklyStatus struct {
	State   State
	Reason  string
	Summary *WeeklySummary
}

// MonthlyStatus additionally carries the month's week coverage.
type MonthlyStatus struct {
	State         State
	Reason        string
	Summary       *MonthlySummary
	WeeksIncluded []calendar.WeekID
	WeeksMissing  []calendar.WeekID
}

// ReflectionSource supplies the raw entries for a weekly payload.
type ReflectionSource interface {
	ListRange(ctx context.Context, userID uint64, from, to time.Time) ([]reflection.Reflection, error)
}

// Machine drives the period lifecycle: blocked -> ready -> generated/exists.
// The only state-advancing side effect is the conditional persist; a failed
// summarizer call leaves the period untouched and retryable.
type Machine struct {
	Store       Store
	Reflections ReflectionSource
	AI          ai.Summarizer

	// Now is injectable for tests; nil means time.Now.
	Now func() time.Time
}

func (m *Machine) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Week evaluates one ISO week in the user's zone. Malformed ids fail before
// any I/O. An existing record wins over everything, including mode.
func (m *Machine) Week(ctx context.Context, uid uint64, weekID calendar.WeekID, mode Mode, loc *time.Location) (WeeklyStatus, error) {
	rng, err := calendar.RangeOfWeekID(weekID, loc)
	if err != nil {
		return WeeklyStatus{}, err
	}

	existing, err := m.Store.GetWeekly(ctx, uid, weekID)
	if err != nil {
		return WeeklyStatus{}, err
	}
	if existing != nil {
		return WeeklyStatus{State: StateExists, Summary: existing}, nil
	}

	if !calendar.IsComplete(rng.EndExclusive, m.now()) {
		return WeeklyStatus{State: StateBlocked, Reason: ReasonPeriodNotComplete}, nil
	}

	entries, err := m.Reflections.ListRange(ctx, uid, rng.Start, rng.EndExclusive)
	if err != nil {
		return WeeklyStatus{}, err
	}
	if len(entries) == 0 {
		return WeeklyStatus{State: StateBlocked, Reason: ReasonNoData}, nil
	}

	if mode == ModeCheck {
		return WeeklyStatus{State: StateReady}, nil
	}

	payload := make([]ai.WeeklyReflection, 0, len(entries))
	for _, e := range entries {
		payload = append(payload, ai.WeeklyReflection{
			ID:    e.ID.String(),
			Date:  e.CreatedAt.UTC().Format(time.RFC3339),
			Text:  e.Text,
			Roles: e.RolesInvolved,
			Title: e.Title,
		})
	}

	result, err := m.AI.WeeklyAnalysis(ctx, payload)
	if err != nil {
		return WeeklyStatus{}, err
	}

	rec := &WeeklySummary{
		UID:        uid,
		WeekID:     string(weekID),
		WeekStart:  rng.Start,
		Summary:    result.Summary,
		Wins:       result.Wins,
		Challenges: result.Challenges,
		NextWeek:   result.NextWeek,
		CreatedAt:  m.now(),
	}

	stored, created, err := m.Store.CreateWeeklyIfAbsent(ctx, rec)
	if err != nil {
		return WeeklyStatus{}, err
	}
	if !created {
		// Lost a concurrent generate race; the winner's record stands.
		return WeeklyStatus{State: StateExists, Summary: stored}, nil
	}

	metrics.SummariesGenerated.WithLabelValues("week").Inc()
	return WeeklyStatus{State: StateGenerated, Summary: stored}, nil
}

// Month evaluates one calendar month. Coverage reconciles the month's ISO
// weeks against persisted weekly summaries; generation proceeds with partial
// coverage but blocks when no covering week has a summary at all.
func (m *Machine) Month(ctx context.Context, uid uint64, month calendar.MonthID, mode Mode, loc *time.Location) (MonthlyStatus, error) {
	rng, err := calendar.RangeOfMonthID(month, loc)
	if err != nil {
		return MonthlyStatus{}, err
	}

	existing, err := m.Store.GetMonthly(ctx, uid, month)
	if err != nil {
		return MonthlyStatus{}, err
	}
	if existing != nil {
		return MonthlyStatus{State: StateExists, Summary: existing}, nil
	}

	if !calendar.IsComplete(rng.EndExclusive, m.now()) {
		return MonthlyStatus{State: StateBlocked, Reason: ReasonPeriodNotComplete}, nil
	}

	expected, err := calendar.WeeksCoveringMonth(month, loc)
	if err != nil {
		return MonthlyStatus{}, err
	}

	weeklies, err := m.Store.GetWeeklyByIDs(ctx, uid, expected)
	if err != nil {
		return MonthlyStatus{}, err
	}
	byID := make(map[calendar.WeekID]WeeklySummary, len(weeklies))
	persisted := make(map[calendar.WeekID]bool, len(weeklies))
	for _, w := range weeklies {
		byID[calendar.WeekID(w.WeekID)] = w
		persisted[calendar.WeekID(w.WeekID)] = true
	}

	included, missing := calendar.Reconcile(expected, persisted)
	if len(included) == 0 {
		return MonthlyStatus{State: StateBlocked, Reason: ReasonNoData}, nil
	}

	if mode == ModeCheck {
		return MonthlyStatus{State: StateReady, WeeksIncluded: included, WeeksMissing: missing}, nil
	}

	payload := make([]ai.MonthlyWeek, 0, len(included))
	for _, id := range included {
		payload = append(payload, ai.MonthlyWeek{
			WeekID:  string(id),
			Summary: byID[id].Summary,
		})
	}
	missingIDs := make([]string, len(missing))
	for i, id := range missing {
		missingIDs[i] = string(id)
	}

	result, err := m.AI.MonthlyAnalysis(ctx, payload, missingIDs)
	if err != nil {
		return MonthlyStatus{}, err
	}

	rec := &MonthlySummary{
		UID:               uid,
		Month:             string(month),
		WeeksIncluded:     weekIDStrings(included),
		WeeksMissing:      missingIDs,
		Summary:           result.Summary,
		Patterns:          result.Patterns,
		EmotionalTrend:    result.EmotionalTrend,
		RoleTrend:         result.RoleTrend,
		ProductivityTrend: result.ProductivityTrend,
		ActionSteps:       result.ActionSteps,
		CreatedAt:         m.now(),
	}

	stored, created, err := m.Store.CreateMonthlyIfAbsent(ctx, rec)
	if err != nil {
		return MonthlyStatus{}, err
	}
	if !created {
		return MonthlyStatus{State: StateExists, Summary: stored}, nil
	}

	metrics.SummariesGenerated.WithLabelValues("month").Inc()
	return MonthlyStatus{State: StateGenerated, Summary: stored, WeeksIncluded: included, WeeksMissing: missing}, nil
}

func weekIDStrings(ids []calendar.WeekID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
