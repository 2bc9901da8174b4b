package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-tailor/internal/ats"
	"github.com/jonathan/resume-tailor/internal/generation"
	"github.com/jonathan/resume-tailor/internal/guardrail"
	"github.com/jonathan/resume-tailor/internal/jobprofile"
	"github.com/jonathan/resume-tailor/internal/llm"
	"github.com/jonathan/resume-tailor/internal/pipeline"
	"github.com/jonathan/resume-tailor/internal/session"
	"github.com/jonathan/resume-tailor/internal/snippets"
	"github.com/jonathan/resume-tailor/internal/store"
	"github.com/jonathan/resume-tailor/internal/types"
)

const resumeDoc = `{
  "title": "Data Engineer",
  "summary": "Engineer with ETL focus.",
  "sections": [
    {"name": "Professional Experience", "bullets": [
      {"id": "b1", "text": "Cut ETL runtime by 40% using Python", "snippet_ids": ["work-1"], "stretch": 1}
    ]}
  ]
}`

const passAudit = `{"findings": [{"bullet_ref": "b1", "verdict": "pass"}]}`

// routingClient answers by model tier so concurrent workers can interleave
// calls without a shared script: resume generation runs on the standard
// tier, the guardrail audit on lite.
type routingClient struct {
	mu    sync.Mutex
	calls int
}

func (c *routingClient) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	text := passAudit
	if req.Tier == llm.TierStandard {
		text = resumeDoc
	}
	return &llm.Response{Text: text, Usage: types.TokenUsage{Prompt: 5, Completion: 5, Total: 10}}, nil
}

func (c *routingClient) Close() error { return nil }

func newTestPool(t *testing.T, st *store.Memory, opts Options) (*Pool, *session.Lifecycle) {
	t.Helper()
	lc := session.New(st, nil)
	orch := generation.New(&routingClient{}, nil)
	runner := pipeline.New(pipeline.Deps{
		Lifecycle: lc,
		Store:     st,
		Builder:   jobprofile.New(nil, nil, nil),
		Selector:  snippets.New(snippets.Config{}, nil, nil),
		Orch:      orch,
		Auditor:   guardrail.New(orch, nil),
		Scorer:    ats.New(nil),
	})
	return NewPool(runner, lc, st, nil, opts), lc
}

func createPending(t *testing.T, lc *session.Lifecycle, n int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		sess, err := lc.Create(context.Background(), uuid.New(),
			types.JobSnapshot{RawText: "Requirements:\nPython required"},
			types.ExperienceSnapshot{Nodes: []types.ExperienceNode{{
				ID: "work-1", Type: types.NodeWork, Title: "Engineer",
				Description: "Python pipelines", Skills: []string{"Python"},
				StartDate: "2023-01", Current: true,
			}}},
			types.Parameters{IncludeSummary: true})
		require.NoError(t, err)
		ids = append(ids, sess.ID)
	}
	return ids
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPoolProcessesPendingSessions(t *testing.T) {
	st := store.NewMemory()
	pool, lc := newTestPool(t, st, Options{
		Workers:       2,
		PollInterval:  10 * time.Millisecond,
		SweepInterval: time.Hour,
	})
	ids := createPending(t, lc, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	waitFor(t, func() bool {
		for _, id := range ids {
			sess, err := st.GetSession(context.Background(), id)
			if err != nil || sess.Status != types.StatusCompleted {
				return false
			}
		}
		return true
	})

	cancel()
	require.NoError(t, <-done)

	for _, id := range ids {
		sess, err := st.GetSession(context.Background(), id)
		require.NoError(t, err)
		assert.NotNil(t, sess.Output)
		assert.Equal(t, 20, sess.TokenUsage.Total)
	}
}

func TestPoolShutsDownCleanly(t *testing.T) {
	st := store.NewMemory()
	pool, _ := newTestPool(t, st, Options{
		Workers:      1,
		PollInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not shut down")
	}
}

func TestPoolSweepsStuckSessions(t *testing.T) {
	st := store.NewMemory()
	pool, lc := newTestPool(t, st, Options{
		Workers:       1,
		PollInterval:  time.Hour, // never dispatch; only the sweeper runs
		SweepInterval: 10 * time.Millisecond,
	})

	// A session claimed long ago with no heartbeat since.
	base := time.Now().UTC()
	st.SetNow(func() time.Time { return base.Add(-time.Hour) })
	ids := createPending(t, lc, 1)
	_, err := lc.Claim(context.Background(), ids[0], "dead-worker")
	require.NoError(t, err)
	st.SetNow(time.Now)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	waitFor(t, func() bool {
		sess, gerr := st.GetSession(context.Background(), ids[0])
		return gerr == nil && sess.Status == types.StatusFailed
	})

	cancel()
	require.NoError(t, <-done)

	sess, err := st.GetSession(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Contains(t, sess.ErrorMessage, "worker lost")
}
