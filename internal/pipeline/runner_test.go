package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/jonathan/resume-tailor/internal/ats"
	"github.com/jonathan/resume-tailor/internal/generation"
	"github.com/jonathan/resume-tailor/internal/guardrail"
	"github.com/jonathan/resume-tailor/internal/jobprofile"
	"github.com/jonathan/resume-tailor/internal/llm"
	"github.com/jonathan/resume-tailor/internal/session"
	"github.com/jonathan/resume-tailor/internal/snippets"
	"github.com/jonathan/resume-tailor/internal/store"
	"github.com/jonathan/resume-tailor/internal/types"
)

type scriptedResponse struct {
	text string
	err  error
}

// scriptedClient replays canned responses in order. onCall fires before the
// nth response is returned, which lets tests flip external state mid-run.
type scriptedClient struct {
	script   []scriptedResponse
	requests []llm.Request
	onCall   func(n int)
}

func (c *scriptedClient) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	c.requests = append(c.requests, req)
	if c.onCall != nil {
		c.onCall(len(c.requests))
	}
	if len(c.script) == 0 {
		return nil, errors.New("script exhausted")
	}
	next := c.script[0]
	c.script = c.script[1:]
	if next.err != nil {
		return nil, next.err
	}
	return &llm.Response{Text: next.text, Usage: types.TokenUsage{Prompt: 10, Completion: 10, Total: 20}}, nil
}

func (c *scriptedClient) Close() error { return nil }

const resumeDoc = `{
  "title": "Data Engineer",
  "summary": "Engineer with ETL focus.",
  "sections": [
    {"name": "Professional Experience", "bullets": [
      {"id": "b1", "text": "Cut ETL runtime by 40% using Python", "snippet_ids": ["work-1"], "stretch": 1, "has_metrics": true}
    ]}
  ]
}`

const passAudit = `{"findings": [{"bullet_ref": "b1", "verdict": "pass"}]}`

func noSleep(context.Context, time.Duration) error { return nil }

func testHarness(t *testing.T, client llm.Client) (*Runner, *store.Memory, *session.Lifecycle) {
	t.Helper()
	st := store.NewMemory()
	lc := session.New(st, nil)
	orch := generation.New(client, nil)
	orch.Caller().SetSleep(noSleep)

	runner := New(Deps{
		Lifecycle: lc,
		Store:     st,
		Builder:   jobprofile.New(nil, nil, nil),
		Selector: snippets.New(snippets.Config{
			Now: func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) },
		}, nil, nil),
		Orch:    orch,
		Auditor: guardrail.New(orch, nil),
		Scorer:  ats.New(nil),
	})
	return runner, st, lc
}

func testParams() types.Parameters {
	return types.Parameters{IncludeSummary: true}
}

func createSession(t *testing.T, lc *session.Lifecycle, params types.Parameters) *types.TailoringSession {
	t.Helper()
	sess, err := lc.Create(context.Background(), uuid.New(),
		types.JobSnapshot{
			Title:   "Data Engineer",
			Company: "Acme",
			RawText: "Requirements:\nPython and SQL required",
		},
		types.ExperienceSnapshot{Nodes: []types.ExperienceNode{{
			ID: "work-1", Type: types.NodeWork, Title: "Data Engineer",
			Description: "Built ETL pipelines in Python", Skills: []string{"Python", "SQL"},
			StartDate: "2023-01", Current: true,
		}}},
		params)
	require.NoError(t, err)
	return sess
}

func TestProcessCompletesSession(t *testing.T) {
	client := &scriptedClient{script: []scriptedResponse{
		{text: resumeDoc},
		{text: passAudit},
	}}
	runner, st, lc := testHarness(t, client)
	sess := createSession(t, lc, testParams())

	require.NoError(t, runner.Process(context.Background(), sess.ID, "w1"))

	got, err := st.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, got.Status)
	require.NotNil(t, got.Output)

	out := got.Output
	assert.Equal(t, "Engineer with ETL focus.", out.Summary)
	require.Len(t, out.BulletDetails, 1)
	assert.Equal(t, types.GuardrailPass, out.BulletDetails[0].Guardrail)
	require.Len(t, out.Guardrails, 1)
	assert.Equal(t, types.GuardrailPass, out.Guardrails[0].Status)
	require.NotNil(t, out.ATS)
	assert.Equal(t, 100.0, out.ATS.RequiredCoverage)
	assert.NotEmpty(t, out.SelectedSnippets)
	assert.Greater(t, out.WordsGenerated, 0)
	// Two calls at 20 tokens each.
	assert.Equal(t, 40, got.TokenUsage.Total)
	require.NotNil(t, got.FinishedAt)

	quota, err := st.GetUserQuota(context.Background(), got.UserID)
	require.NoError(t, err)
	assert.Equal(t, 40, quota.TokensUsed)
	assert.Equal(t, out.WordsGenerated, quota.WordsGenerated)
}

func TestProcessBlanksSummaryWhenNotRequested(t *testing.T) {
	client := &scriptedClient{script: []scriptedResponse{
		{text: resumeDoc},
		{text: passAudit},
	}}
	runner, st, lc := testHarness(t, client)
	sess := createSession(t, lc, types.Parameters{})

	require.NoError(t, runner.Process(context.Background(), sess.ID, "w1"))

	got, err := st.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Output)
	assert.Empty(t, got.Output.Summary)
	assert.Len(t, got.Output.BulletDetails, 1)

	// The words ledger covers delivered text only: the bullet's seven
	// words, not the suppressed summary.
	assert.Equal(t, 7, got.Output.WordsGenerated)
}

func TestProcessSurvivesMalformedResponses(t *testing.T) {
	client := &scriptedClient{script: []scriptedResponse{
		{text: "garbage"},
		{text: `{"summary": "x"}`}, // parses but violates the contract: no sections
		{text: resumeDoc},
		{text: passAudit},
	}}
	runner, st, lc := testHarness(t, client)
	sess := createSession(t, lc, testParams())

	require.NoError(t, runner.Process(context.Background(), sess.ID, "w1"))

	got, err := st.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, got.Status)

	malformed := 0
	for _, entry := range got.DebugLog {
		if entry.Stage == "generate_resume" {
			malformed++
		}
	}
	assert.Equal(t, 2, malformed)
	// All four responses count toward usage, including the two discarded.
	assert.Equal(t, 80, got.TokenUsage.Total)
}

func TestProcessFailsAfterMalformedExhaustion(t *testing.T) {
	client := &scriptedClient{script: []scriptedResponse{
		{text: "garbage"}, {text: "garbage"}, {text: "garbage"},
	}}
	runner, st, lc := testHarness(t, client)
	sess := createSession(t, lc, testParams())

	err := runner.Process(context.Background(), sess.ID, "w1")
	var merr *types.MalformedResponseError
	require.ErrorAs(t, err, &merr)

	got, gerr := st.GetSession(context.Background(), sess.ID)
	require.NoError(t, gerr)
	assert.Equal(t, types.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "malformed")
	// Discarded usage is still charged.
	assert.Equal(t, 60, got.TokenUsage.Total)

	quota, qerr := st.GetUserQuota(context.Background(), got.UserID)
	require.NoError(t, qerr)
	assert.Equal(t, 60, quota.TokensUsed)
}

func TestProcessFailsOnTransientExhaustion(t *testing.T) {
	client := &scriptedClient{script: []scriptedResponse{
		{err: &googleapi.Error{Code: 503}},
		{err: &googleapi.Error{Code: 503}},
		{err: &googleapi.Error{Code: 503}},
	}}
	runner, st, lc := testHarness(t, client)
	sess := createSession(t, lc, testParams())

	err := runner.Process(context.Background(), sess.ID, "w1")
	var serr *types.ExternalServiceError
	require.ErrorAs(t, err, &serr)

	got, gerr := st.GetSession(context.Background(), sess.ID)
	require.NoError(t, gerr)
	assert.Equal(t, types.StatusFailed, got.Status)
	assert.Zero(t, got.TokenUsage.Total)
}

func TestProcessLostClaimMakesNoChange(t *testing.T) {
	client := &scriptedClient{}
	runner, st, lc := testHarness(t, client)
	sess := createSession(t, lc, testParams())

	_, err := lc.Claim(context.Background(), sess.ID, "other")
	require.NoError(t, err)

	err = runner.Process(context.Background(), sess.ID, "w1")
	var conflict *types.ConcurrencyConflict
	require.ErrorAs(t, err, &conflict)
	assert.Empty(t, client.requests)

	got, gerr := st.GetSession(context.Background(), sess.ID)
	require.NoError(t, gerr)
	assert.Equal(t, types.StatusProcessing, got.Status)
	assert.Nil(t, got.Output)
}

func TestProcessHonorsCancelAtStageBoundary(t *testing.T) {
	client := &scriptedClient{script: []scriptedResponse{
		{text: resumeDoc},
	}}
	runner, st, lc := testHarness(t, client)
	sess := createSession(t, lc, testParams())

	// Cancel lands while the resume call is in flight; the audit checkpoint
	// must observe it and stop before any further model call.
	client.onCall = func(n int) {
		if n == 1 {
			require.NoError(t, st.RequestCancel(context.Background(), sess.ID))
		}
	}

	require.NoError(t, runner.Process(context.Background(), sess.ID, "w1"))

	got, err := st.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCanceled, got.Status)
	assert.Nil(t, got.Output)
	assert.Len(t, client.requests, 1)
	// Usage from the completed call is still recorded.
	assert.Equal(t, 20, got.TokenUsage.Total)

	last := got.DebugLog[len(got.DebugLog)-1]
	assert.Contains(t, last.Message, "canceled at stage boundary")
}

func TestProcessFailsWhenQuotaExhausted(t *testing.T) {
	client := &scriptedClient{}
	runner, st, lc := testHarness(t, client)
	sess := createSession(t, lc, testParams())
	// Quota runs out between creation and processing.
	st.SetQuota(store.UserQuota{UserID: sess.UserID, TokenLimit: 10, TokensUsed: 10})

	err := runner.Process(context.Background(), sess.ID, "w1")
	var qerr *types.QuotaExceeded
	require.ErrorAs(t, err, &qerr)
	// No model call was dispatched.
	assert.Empty(t, client.requests)

	got, gerr := st.GetSession(context.Background(), sess.ID)
	require.NoError(t, gerr)
	assert.Equal(t, types.StatusFailed, got.Status)
	assert.Zero(t, got.TokenUsage.Total)
}

func TestProcessGeneratesCoverLetterWhenRequested(t *testing.T) {
	client := &scriptedClient{script: []scriptedResponse{
		{text: resumeDoc},
		{text: passAudit},
		{text: "Acme builds data tools."}, // company research
		{text: `{"cover_letter": "Dear Acme team,", "talking_points": ["etl"]}`},
	}}
	runner, st, lc := testHarness(t, client)
	params := testParams()
	params.IncludeCoverLetter = true
	sess := createSession(t, lc, params)

	require.NoError(t, runner.Process(context.Background(), sess.ID, "w1"))

	got, err := st.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Output)
	assert.Equal(t, "Dear Acme team,", got.Output.CoverLetter)
	assert.Equal(t, []string{"etl"}, got.Output.CoverLetterTalkingPoints)

	// Research runs with the retrieval tool; everything else is strict JSON.
	require.Len(t, client.requests, 4)
	assert.Equal(t, llm.ModeFetchTool, client.requests[2].Mode)
	assert.Equal(t, llm.ModeStrictJSON, client.requests[3].Mode)
}
