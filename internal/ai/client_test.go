package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		require.Len(t, req.Messages, 2)

		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}))
}

func newTestClient(url string) *Client {
	return NewClient(url, "test-key", "gpt-4o-mini", 5*time.Second)
}

func TestWeeklyAnalysis(t *testing.T) {
	srv := chatServer(t, `{
		"summary": "A strong week overall.",
		"wins": ["shipped the launch", "  kept the routine  "],
		"challenges": ["sleep"],
		"nextWeek": ["plan earlier"]
	}`, http.StatusOK)
	defer srv.Close()

	got, err := newTestClient(srv.URL).WeeklyAnalysis(context.Background(), []WeeklyReflection{
		{ID: "r1", Date: "2024-02-12T08:00:00Z", Text: "good day", Roles: []string{"founder"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "A strong week overall.", got.Summary)
	assert.Equal(t, []string{"shipped the launch", "kept the routine"}, got.Wins)
	assert.Equal(t, []string{"sleep"}, got.Challenges)
	assert.Equal(t, []string{"plan earlier"}, got.NextWeek)
}

func TestWeeklyAnalysis_CoercesMissingFields(t *testing.T) {
	// Wrong-typed and missing fields default to empty, never error.
	srv := chatServer(t, `{"summary": 42, "wins": "not-a-list"}`, http.StatusOK)
	defer srv.Close()

	got, err := newTestClient(srv.URL).WeeklyAnalysis(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got.Summary)
	assert.Empty(t, got.Wins)
	assert.Empty(t, got.Challenges)
	assert.Empty(t, got.NextWeek)
}

func TestWeeklyAnalysis_NonOKStatus(t *testing.T) {
	srv := chatServer(t, `{}`, http.StatusBadGateway)
	defer srv.Close()

	_, err := newTestClient(srv.URL).WeeklyAnalysis(context.Background(), nil)
	assert.ErrorIs(t, err, ErrSummarizationFailed)
}

func TestWeeklyAnalysis_InvalidModelJSON(t *testing.T) {
	srv := chatServer(t, `not json at all`, http.StatusOK)
	defer srv.Close()

	_, err := newTestClient(srv.URL).WeeklyAnalysis(context.Background(), nil)
	assert.ErrorIs(t, err, ErrSummarizationFailed)
}

func TestWeeklyAnalysis_EmptyModelOutput(t *testing.T) {
	srv := chatServer(t, "   ", http.StatusOK)
	defer srv.Close()

	_, err := newTestClient(srv.URL).WeeklyAnalysis(context.Background(), nil)
	assert.ErrorIs(t, err, ErrSummarizationFailed)
}

func TestMonthlyAnalysis(t *testing.T) {
	srv := chatServer(t, `{
		"summary": "February themes.",
		"patterns": "early mornings",
		"emotionalTrend": "steadier",
		"roleTrend": "parent role grew",
		"productivityTrend": "strong finish",
		"actionSteps": ["block deep work", "weekly review"]
	}`, http.StatusOK)
	defer srv.Close()

	got, err := newTestClient(srv.URL).MonthlyAnalysis(context.Background(),
		[]MonthlyWeek{{WeekID: "2024-W06", Summary: "good week"}},
		[]string{"2024-W05"})
	require.NoError(t, err)
	assert.Equal(t, "February themes.", got.Summary)
	assert.Equal(t, "early mornings", got.Patterns)
	assert.Equal(t, []string{"block deep work", "weekly review"}, got.ActionSteps)
}

func TestRoleSuggestions(t *testing.T) {
	srv := chatServer(t, `{
		"founder": {"title": "Delegate", "suggestion": "Hand off the reporting work."},
		"parent": "Spend one evening fully offline."
	}`, http.StatusOK)
	defer srv.Close()

	got, err := newTestClient(srv.URL).RoleSuggestions(context.Background(), "long week", []string{"founder", "parent"})
	require.NoError(t, err)
	assert.Equal(t, RoleSuggestion{Title: "Delegate", Suggestion: "Hand off the reporting work."}, got["founder"])
	// Plain string values are tolerated.
	assert.Equal(t, RoleSuggestion{Suggestion: "Spend one evening fully offline."}, got["parent"])
}

func TestRoleSuggestions_FencedJSON(t *testing.T) {
	srv := chatServer(t, "```json\n{\"founder\": {\"title\": \"T\", \"suggestion\": \"S\"}}\n```", http.StatusOK)
	defer srv.Close()

	got, err := newTestClient(srv.URL).RoleSuggestions(context.Background(), "text", []string{"founder"})
	require.NoError(t, err)
	assert.Equal(t, "S", got["founder"].Suggestion)
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSON("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSON(`  {"a":1}  `))
}
