package summary

import (
	"context"
	"testing"
	"time"

	"revo/internal/ai"
	"revo/internal/calendar"
	"revo/internal/reflection"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	weekly  map[string]*WeeklySummary
	monthly map[string]*MonthlySummary

	weeklyCreates  int
	monthlyCreates int

	// beforeCreate simulates a concurrent writer landing between the
	// existence check and the conditional create.
	beforeCreate func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		weekly:  map[string]*WeeklySummary{},
		monthly: map[string]*MonthlySummary{},
	}
}

func (f *fakeStore) GetWeekly(_ context.Context, _ uint64, weekID calendar.WeekID) (*WeeklySummary, error) {
	return f.weekly[string(weekID)], nil
}

func (f *fakeStore) GetWeeklyByIDs(_ context.Context, _ uint64, weekIDs []calendar.WeekID) ([]WeeklySummary, error) {
	var out []WeeklySummary
	for _, id := range weekIDs {
		if rec := f.weekly[string(id)]; rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateWeeklyIfAbsent(_ context.Context, rec *WeeklySummary) (*WeeklySummary, bool, error) {
	if f.beforeCreate != nil {
		f.beforeCreate()
		f.beforeCreate = nil
	}
	f.weeklyCreates++
	if existing := f.weekly[rec.WeekID]; existing != nil {
		return existing, false, nil
	}
	f.weekly[rec.WeekID] = rec
	return rec, true, nil
}

func (f *fakeStore) GetMonthly(_ context.Context, _ uint64, month calendar.MonthID) (*MonthlySummary, error) {
	return f.monthly[string(month)], nil
}

func (f *fakeStore) CreateMonthlyIfAbsent(_ context.Context, rec *MonthlySummary) (*MonthlySummary, bool, error) {
	f.monthlyCreates++
	if existing := f.monthly[rec.Month]; existing != nil {
		return existing, false, nil
	}
	f.monthly[rec.Month] = rec
	return rec, true, nil
}

type fakeReflections struct {
	entries []reflection.Reflection
}

func (f *fakeReflections) ListRange(_ context.Context, _ uint64, from, to time.Time) ([]reflection.Reflection, error) {
	var out []reflection.Reflection
	for _, e := range f.entries {
		if !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeAI struct {
	weekly  ai.WeeklyResult
	monthly ai.MonthlyResult
	err     error

	weeklyCalls   int
	monthlyCalls  int
	gotWeekly     []ai.WeeklyReflection
	gotWeeks      []ai.MonthlyWeek
	gotMissing    []string
	suggestionErr error
}

func (f *fakeAI) WeeklyAnalysis(_ context.Context, reflections []ai.WeeklyReflection) (ai.WeeklyResult, error) {
	f.weeklyCalls++
	f.gotWeekly = reflections
	return f.weekly, f.err
}

func (f *fakeAI) MonthlyAnalysis(_ context.Context, weeks []ai.MonthlyWeek, missing []string) (ai.MonthlyResult, error) {
	f.monthlyCalls++
	f.gotWeeks = weeks
	f.gotMissing = missing
	return f.monthly, f.err
}

func (f *fakeAI) RoleSuggestions(_ context.Context, _ string, _ []string) (map[string]ai.RoleSuggestion, error) {
	return nil, f.suggestionErr
}

const testUID = uint64(7)

// Week 2024-W07 runs Feb 12 through Feb 18, 2024 (UTC).
var (
	w07Start = time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC)
	w07End   = time.Date(2024, 2, 19, 0, 0, 0, 0, time.UTC)
)

func entryAt(t time.Time, text string) reflection.Reflection {
	return reflection.Reflection{
		ID:        uuid.New(),
		UID:       testUID,
		Text:      text,
		CreatedAt: t,
	}
}

func newMachine(store *fakeStore, refl *fakeReflections, aiSvc *fakeAI, now time.Time) *Machine {
	return &Machine{
		Store:       store,
		Reflections: refl,
		AI:          aiSvc,
		Now:         func() time.Time { return now },
	}
}

func TestWeek_BlockedWhileInProgress(t *testing.T) {
	store := newFakeStore()
	aiSvc := &fakeAI{}
	refl := &fakeReflections{entries: []reflection.Reflection{entryAt(w07Start.Add(24*time.Hour), "midweek")}}

	// Wednesday of the week being requested.
	m := newMachine(store, refl, aiSvc, w07Start.Add(72*time.Hour))

	got, err := m.Week(context.Background(), testUID, "2024-W07", ModeGenerate, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, StateBlocked, got.State)
	assert.Equal(t, ReasonPeriodNotComplete, got.Reason)
	assert.Zero(t, aiSvc.weeklyCalls, "summarizer must not run for an incomplete week")
	assert.Zero(t, store.weeklyCreates)
}

func TestWeek_CompletionBoundary(t *testing.T) {
	store := newFakeStore()
	aiSvc := &fakeAI{}
	refl := &fakeReflections{entries: []reflection.Reflection{entryAt(w07Start.Add(time.Hour), "x")}}

	m := newMachine(store, refl, aiSvc, w07End.Add(-time.Millisecond))
	got, err := m.Week(context.Background(), testUID, "2024-W07", ModeCheck, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, StateBlocked, got.State)

	m.Now = func() time.Time { return w07End }
	got, err = m.Week(context.Background(), testUID, "2024-W07", ModeCheck, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, StateReady, got.State)
}

func TestWeek_BlockedWithoutReflections(t *testing.T) {
	store := newFakeStore()
	aiSvc := &fakeAI{}
	m := newMachine(store, &fakeReflections{}, aiSvc, w07End.Add(time.Hour))

	got, err := m.Week(context.Background(), testUID, "2024-W07", ModeGenerate, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, StateBlocked, got.State)
	assert.Equal(t, ReasonNoData, got.Reason)
	assert.Zero(t, aiSvc.weeklyCalls)
}

func TestWeek_CheckDoesNotGenerate(t *testing.T) {
	store := newFakeStore()
	aiSvc := &fakeAI{}
	refl := &fakeReflections{entries: []reflection.Reflection{entryAt(w07Start.Add(time.Hour), "x")}}
	m := newMachine(store, refl, aiSvc, w07End.Add(time.Hour))

	got, err := m.Week(context.Background(), testUID, "2024-W07", ModeCheck, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, StateReady, got.State)
	assert.Zero(t, aiSvc.weeklyCalls)
	assert.Zero(t, store.weeklyCreates)
}

func TestWeek_GenerateIsIdempotent(t *testing.T) {
	store := newFakeStore()
	aiSvc := &fakeAI{weekly: ai.WeeklyResult{
		Summary:    "good week",
		Wins:       []string{"launch"},
		Challenges: []string{"sleep"},
		NextWeek:   []string{"plan"},
	}}
	refl := &fakeReflections{entries: []reflection.Reflection{
		entryAt(w07Start.Add(2*time.Hour), "monday"),
		entryAt(w07End.Add(-2*time.Hour), "sunday"),
		entryAt(w07End.Add(2*time.Hour), "next week, out of range"),
	}}
	now := w07End.Add(time.Hour)
	m := newMachine(store, refl, aiSvc, now)

	first, err := m.Week(context.Background(), testUID, "2024-W07", ModeGenerate, time.UTC)
	require.NoError(t, err)
	require.Equal(t, StateGenerated, first.State)
	require.NotNil(t, first.Summary)
	assert.Equal(t, "2024-W07", first.Summary.WeekID)
	assert.Equal(t, w07Start, first.Summary.WeekStart)
	assert.Equal(t, "good week", first.Summary.Summary)
	assert.Equal(t, now, first.Summary.CreatedAt)
	assert.Len(t, aiSvc.gotWeekly, 2, "payload must only contain the week's reflections")

	second, err := m.Week(context.Background(), testUID, "2024-W07", ModeGenerate, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, StateExists, second.State)
	assert.Same(t, first.Summary, second.Summary)
	assert.Equal(t, 1, aiSvc.weeklyCalls, "second generate must be a pure read")
}

func TestWeek_SummarizerFailureLeavesPeriodRetryable(t *testing.T) {
	store := newFakeStore()
	aiSvc := &fakeAI{err: ai.ErrSummarizationFailed}
	refl := &fakeReflections{entries: []reflection.Reflection{entryAt(w07Start.Add(time.Hour), "x")}}
	m := newMachine(store, refl, aiSvc, w07End.Add(time.Hour))

	_, err := m.Week(context.Background(), testUID, "2024-W07", ModeGenerate, time.UTC)
	assert.ErrorIs(t, err, ai.ErrSummarizationFailed)
	assert.Zero(t, store.weeklyCreates, "no partial record on failure")

	// Retry succeeds once the summarizer recovers.
	aiSvc.err = nil
	got, err := m.Week(context.Background(), testUID, "2024-W07", ModeGenerate, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, StateGenerated, got.State)
}

func TestWeek_RaceLoserSeesExists(t *testing.T) {
	store := newFakeStore()
	winner := &WeeklySummary{UID: testUID, WeekID: "2024-W07", Summary: "winner"}
	store.beforeCreate = func() { store.weekly["2024-W07"] = winner }

	aiSvc := &fakeAI{}
	refl := &fakeReflections{entries: []reflection.Reflection{entryAt(w07Start.Add(time.Hour), "x")}}
	m := newMachine(store, refl, aiSvc, w07End.Add(time.Hour))

	got, err := m.Week(context.Background(), testUID, "2024-W07", ModeGenerate, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, StateExists, got.State)
	assert.Same(t, winner, got.Summary)
}

func TestWeek_MalformedID(t *testing.T) {
	m := newMachine(newFakeStore(), &fakeReflections{}, &fakeAI{}, time.Now())

	for _, bad := range []calendar.WeekID{"2024-W60", "2024-02", "garbage"} {
		_, err := m.Week(context.Background(), testUID, bad, ModeCheck, time.UTC)
		assert.ErrorIs(t, err, calendar.ErrMalformedPeriodID, string(bad))
	}
}

func TestWeek_ExistingRecordWinsEvenMidPeriod(t *testing.T) {
	store := newFakeStore()
	rec := &WeeklySummary{UID: testUID, WeekID: "2024-W07", Summary: "stored"}
	store.weekly["2024-W07"] = rec
	aiSvc := &fakeAI{}

	// Now is inside the week; exists still short-circuits completeness.
	m := newMachine(store, &fakeReflections{}, aiSvc, w07Start.Add(time.Hour))

	got, err := m.Week(context.Background(), testUID, "2024-W07", ModeGenerate, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, StateExists, got.State)
	assert.Same(t, rec, got.Summary)
	assert.Zero(t, aiSvc.weeklyCalls)
}

// March 1, 2024 onwards means February 2024 is complete.
var afterFeb = time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

func TestMonth_BlockedWithoutAnyWeeklySummaries(t *testing.T) {
	store := newFakeStore()
	aiSvc := &fakeAI{}
	m := newMachine(store, &fakeReflections{}, aiSvc, afterFeb)

	got, err := m.Month(context.Background(), testUID, "2024-02", ModeGenerate, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, StateBlocked, got.State)
	assert.Equal(t, ReasonNoData, got.Reason)
	assert.Zero(t, aiSvc.monthlyCalls)
}

func TestMonth_BlockedWhileInProgress(t *testing.T) {
	m := newMachine(newFakeStore(), &fakeReflections{}, &fakeAI{}, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC))

	got, err := m.Month(context.Background(), testUID, "2024-02", ModeGenerate, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, StateBlocked, got.State)
	assert.Equal(t, ReasonPeriodNotComplete, got.Reason)
}

func TestMonth_CheckReportsCoverage(t *testing.T) {
	store := newFakeStore()
	store.weekly["2024-W06"] = &WeeklySummary{UID: testUID, WeekID: "2024-W06", Summary: "six"}
	store.weekly["2024-W09"] = &WeeklySummary{UID: testUID, WeekID: "2024-W09", Summary: "nine"}

	aiSvc := &fakeAI{}
	m := newMachine(store, &fakeReflections{}, aiSvc, afterFeb)

	got, err := m.Month(context.Background(), testUID, "2024-02", ModeCheck, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, StateReady, got.State)
	assert.Equal(t, []calendar.WeekID{"2024-W06", "2024-W09"}, got.WeeksIncluded)
	assert.Equal(t, []calendar.WeekID{"2024-W05", "2024-W07", "2024-W08"}, got.WeeksMissing)
	assert.Zero(t, aiSvc.monthlyCalls)
}

func TestMonth_GenerateRecordsCoverage(t *testing.T) {
	store := newFakeStore()
	store.weekly["2024-W06"] = &WeeklySummary{UID: testUID, WeekID: "2024-W06", Summary: "six"}

	aiSvc := &fakeAI{monthly: ai.MonthlyResult{
		Summary:     "february",
		Patterns:    "patterns",
		ActionSteps: []string{"step"},
	}}
	now := afterFeb
	m := newMachine(store, &fakeReflections{}, aiSvc, now)

	got, err := m.Month(context.Background(), testUID, "2024-02", ModeGenerate, time.UTC)
	require.NoError(t, err)
	require.Equal(t, StateGenerated, got.State)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "2024-02", got.Summary.Month)
	assert.Equal(t, []string{"2024-W06"}, []string(got.Summary.WeeksIncluded))
	assert.Equal(t, []string{"2024-W05", "2024-W07", "2024-W08", "2024-W09"}, []string(got.Summary.WeeksMissing))
	assert.Equal(t, now, got.Summary.CreatedAt)

	// The summarizer got the included summaries and the missing list.
	require.Len(t, aiSvc.gotWeeks, 1)
	assert.Equal(t, "six", aiSvc.gotWeeks[0].Summary)
	assert.Equal(t, []string{"2024-W05", "2024-W07", "2024-W08", "2024-W09"}, aiSvc.gotMissing)

	// Second generate is a pure read of the same record.
	again, err := m.Month(context.Background(), testUID, "2024-02", ModeGenerate, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, StateExists, again.State)
	assert.Same(t, got.Summary, again.Summary)
	assert.Equal(t, 1, aiSvc.monthlyCalls)
}

func TestMonth_MalformedID(t *testing.T) {
	m := newMachine(newFakeStore(), &fakeReflections{}, &fakeAI{}, time.Now())

	for _, bad := range []calendar.MonthID{"2024-13", "2024-00", "2024-W07", "x"} {
		_, err := m.Month(context.Background(), testUID, bad, ModeCheck, time.UTC)
		assert.ErrorIs(t, err, calendar.ErrMalformedPeriodID, string(bad))
	}
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("check")
	require.NoError(t, err)
	assert.Equal(t, ModeCheck, mode)

	mode, err = ParseMode("generate")
	require.NoError(t, err)
	assert.Equal(t, ModeGenerate, mode)

	_, err = ParseMode("regen")
	assert.ErrorIs(t, err, ErrInvalidMode)
}
