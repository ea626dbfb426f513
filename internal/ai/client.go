package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"revo/internal/metrics"
)

// ErrSummarizationFailed wraps any summarizer failure: network errors,
// non-2xx responses, empty or unparseable model output. Nothing is persisted
// on failure, so callers can always retry.
var ErrSummarizationFailed = errors.New("summarization failed")

// WeeklyReflection is one reflection in the weekly analysis payload.
type WeeklyReflection struct {
	ID    string   `json:"id"`
	Date  string   `json:"date"`
	Text  string   `json:"text"`
	Roles []string `json:"roles"`
	Title string   `json:"title,omitempty"`
}

// WeeklyResult is the coerced shape of a weekly analysis.
type WeeklyResult struct {
	Summary    string
	Wins       []string
	Challenges []string
	NextWeek   []string
}

// MonthlyWeek is one covering weekly summary in the monthly payload.
type MonthlyWeek struct {
	WeekID  string `json:"weekId"`
	Summary string `json:"summary"`
}

// MonthlyResult is the coerced shape of a monthly analysis.
type MonthlyResult struct {
	Summary           string
	Patterns          string
	EmotionalTrend    string
	RoleTrend         string
	ProductivityTrend string
	ActionSteps       []string
}

// RoleSuggestion is one per-role coaching suggestion.
type RoleSuggestion struct {
	Title      string `json:"title"`
	Suggestion string `json:"suggestion"`
}

// Summarizer is the external AI collaborator.
type Summarizer interface {
	WeeklyAnalysis(ctx context.Context, reflections []WeeklyReflection) (WeeklyResult, error)
	MonthlyAnalysis(ctx context.Context, weeks []MonthlyWeek, missing []string) (MonthlyResult, error)
	RoleSuggestions(ctx context.Context, text string, roles []string) (map[string]RoleSuggestion, error)
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	httpc   *http.Client
}

func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpc:   &http.Client{Timeout: timeout},
	}
}

const weeklyPrompt = `You are an expert reflective coach. You will receive a JSON array of user reflections for a week. Each item contains a date, text, roles, and any previous AI suggestions.

Return ONLY valid JSON using this exact shape:
{
  "summary": "...",
  "wins": ["..."],
  "challenges": ["..."],
  "nextWeek": ["..."]
}

Guidelines:
- Provide a concise overall summary (5-8 sentences).
- Include the most important wins and challenges as bullet points.
- Focus nextWeek on clear, actionable steps.
- Do not include any commentary outside the JSON object.`

const monthlyPrompt = `You are an expert personal reflection coach.
Your job is to analyze a set of weekly summaries and produce a meaningful monthly review.

Using the provided weekly summaries, produce:

1. Monthly Summary: a clear narrative describing the major themes of the month.
2. Patterns: recurring ideas, repeated problems, habits, or mindsets.
3. Emotional Trend: emotional highs/lows, stress patterns, and mindset shifts.
4. Role Trend: how each role (entrepreneur, agent, parent, etc.) showed up or changed.
5. Productivity Trend: focus, execution, energy, blockers, and momentum.
6. Action Steps: give 3-5 very practical, achievable recommendations for the next month.

If some weeks are missing data, add a short friendly note acknowledging incomplete data but still provide the best analysis possible.

Return your final output in strict JSON:
{
  "summary": "...",
  "patterns": "...",
  "emotionalTrend": "...",
  "roleTrend": "...",
  "productivityTrend": "...",
  "actionSteps": ["...", "...", "..."]
}`

const suggestionsSystemPrompt = "You are a focused coaching assistant. Return only JSON objects without additional formatting."

func (c *Client) WeeklyAnalysis(ctx context.Context, reflections []WeeklyReflection) (WeeklyResult, error) {
	started := time.Now()
	payload, err := json.Marshal(reflections)
	if err != nil {
		return WeeklyResult{}, fmt.Errorf("%w: encode payload: %v", ErrSummarizationFailed, err)
	}

	raw, err := c.chat(ctx, weeklyPrompt, string(payload), 0.5)
	metrics.RecordSummarizerCall("weekly", time.Since(started).Seconds(), err)
	if err != nil {
		return WeeklyResult{}, err
	}

	var shape map[string]any
	if err := json.Unmarshal([]byte(raw), &shape); err != nil {
		return WeeklyResult{}, fmt.Errorf("%w: invalid model JSON: %v", ErrSummarizationFailed, err)
	}

	return WeeklyResult{
		Summary:    asString(shape["summary"]),
		Wins:       asStringSlice(shape["wins"]),
		Challenges: asStringSlice(shape["challenges"]),
		NextWeek:   asStringSlice(shape["nextWeek"]),
	}, nil
}

func (c *Client) MonthlyAnalysis(ctx context.Context, weeks []MonthlyWeek, missing []string) (MonthlyResult, error) {
	started := time.Now()
	if missing == nil {
		missing = []string{}
	}
	payload, err := json.Marshal(map[string]any{
		"weeklySummaries": weeks,
		"weeksMissing":    missing,
	})
	if err != nil {
		return MonthlyResult{}, fmt.Errorf("%w: encode payload: %v", ErrSummarizationFailed, err)
	}

	raw, err := c.chat(ctx, monthlyPrompt, string(payload), 0.6)
	metrics.RecordSummarizerCall("monthly", time.Since(started).Seconds(), err)
	if err != nil {
		return MonthlyResult{}, err
	}

	var shape map[string]any
	if err := json.Unmarshal([]byte(raw), &shape); err != nil {
		return MonthlyResult{}, fmt.Errorf("%w: invalid model JSON: %v", ErrSummarizationFailed, err)
	}

	return MonthlyResult{
		Summary:           asString(shape["summary"]),
		Patterns:          asString(shape["patterns"]),
		EmotionalTrend:    asString(shape["emotionalTrend"]),
		RoleTrend:         asString(shape["roleTrend"]),
		ProductivityTrend: asString(shape["productivityTrend"]),
		ActionSteps:       asStringSlice(shape["actionSteps"]),
	}, nil
}

func (c *Client) RoleSuggestions(ctx context.Context, text string, roles []string) (map[string]RoleSuggestion, error) {
	started := time.Now()

	var b strings.Builder
	b.WriteString("You are an executive coach who provides concise, actionable guidance. ")
	b.WriteString("For each role listed, write a single coaching suggestion of 5-7 sentences tailored to the provided reflection, ")
	b.WriteString(`plus a short title for it. If a role is not applicable, use "Not applicable" as the suggestion. `)
	b.WriteString("Respond ONLY with valid JSON where each key is the role name and each value is an object ")
	b.WriteString(`{"title": "...", "suggestion": "..."}. Do not include any additional commentary or formatting.`)
	b.WriteString("\n\nReflection:\n")
	b.WriteString(text)
	b.WriteString("\n\nRoles:\n")
	for _, role := range roles {
		b.WriteString("- ")
		b.WriteString(role)
		b.WriteString("\n")
	}

	raw, err := c.chat(ctx, suggestionsSystemPrompt, b.String(), 0.7)
	metrics.RecordSummarizerCall("suggestions", time.Since(started).Seconds(), err)
	if err != nil {
		return nil, err
	}

	var shape map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &shape); err != nil {
		return nil, fmt.Errorf("%w: invalid model JSON: %v", ErrSummarizationFailed, err)
	}

	out := make(map[string]RoleSuggestion, len(shape))
	for role, v := range shape {
		// Tolerate plain-string values for a role.
		var s RoleSuggestion
		if err := json.Unmarshal(v, &s); err != nil {
			var plain string
			if err := json.Unmarshal(v, &plain); err != nil {
				continue
			}
			s = RoleSuggestion{Suggestion: plain}
		}
		out[role] = s
	}
	return out, nil
}

type chatRequest struct {
	Model          string        `json:"model"`
	Temperature    float64       `json:"temperature"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat respFormat    `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) chat(ctx context.Context, system, user string, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Temperature: temperature,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: respFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrSummarizationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrSummarizationFailed, err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("%w: chat API status %d: %s", ErrSummarizationFailed, resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrSummarizationFailed, err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty model output", ErrSummarizationFailed)
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// cleanJSON strips markdown code fences some models wrap around JSON.
func cleanJSON(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if i := strings.LastIndex(trimmed, "```"); i != -1 {
		trimmed = trimmed[:i]
	}
	return strings.TrimSpace(trimmed)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
