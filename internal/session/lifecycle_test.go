package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-tailor/internal/store"
	"github.com/jonathan/resume-tailor/internal/types"
)

func validJob() types.JobSnapshot {
	return types.JobSnapshot{RawText: "Requirements:\nPython required"}
}

func validSnapshot() types.ExperienceSnapshot {
	return types.ExperienceSnapshot{
		Nodes: []types.ExperienceNode{{ID: "n1", Type: types.NodeWork, Title: "Engineer"}},
	}
}

func TestCreateAppliesDefaults(t *testing.T) {
	l := New(store.NewMemory(), nil)

	session, err := l.Create(context.Background(), uuid.New(), validJob(), validSnapshot(), types.Parameters{})
	require.NoError(t, err)

	assert.Equal(t, types.StatusPending, session.Status)
	assert.Equal(t, DefaultSections, session.Parameters.Sections)
	assert.Equal(t, DefaultSections, session.Parameters.SectionLayout)
	assert.Equal(t, DefaultBulletsPerSection, session.Parameters.BulletsPerSection)
	assert.Equal(t, DefaultTone, session.Parameters.Tone)
	assert.InDelta(t, DefaultTemperature, session.Parameters.Temperature, 0.001)
	assert.Equal(t, DefaultMaxOutputTokens, session.Parameters.MaxOutputTokens)
}

func TestCreateClampsOutputTokens(t *testing.T) {
	l := New(store.NewMemory(), nil)

	low, err := l.Create(context.Background(), uuid.New(), validJob(), validSnapshot(),
		types.Parameters{MaxOutputTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, MinOutputTokens, low.Parameters.MaxOutputTokens)

	high, err := l.Create(context.Background(), uuid.New(), validJob(), validSnapshot(),
		types.Parameters{MaxOutputTokens: 100000})
	require.NoError(t, err)
	assert.Equal(t, MaxOutputTokens, high.Parameters.MaxOutputTokens)
}

func TestCreateRejectsMissingJobInput(t *testing.T) {
	l := New(store.NewMemory(), nil)

	_, err := l.Create(context.Background(), uuid.New(), types.JobSnapshot{}, validSnapshot(), types.Parameters{})
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestCreateRejectsEmptyExperience(t *testing.T) {
	l := New(store.NewMemory(), nil)

	_, err := l.Create(context.Background(), uuid.New(), validJob(), types.ExperienceSnapshot{}, types.Parameters{})
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestCreateRejectsOutOfRangeParameters(t *testing.T) {
	l := New(store.NewMemory(), nil)

	_, err := l.Create(context.Background(), uuid.New(), validJob(), validSnapshot(),
		types.Parameters{StretchLevel: 7})
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestCreateRejectsExhaustedQuota(t *testing.T) {
	st := store.NewMemory()
	userID := uuid.New()
	st.SetQuota(store.UserQuota{UserID: userID, TokenLimit: 100, TokensUsed: 100})

	l := New(st, nil)
	_, err := l.Create(context.Background(), userID, validJob(), validSnapshot(), types.Parameters{})

	var qerr *types.QuotaExceeded
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, userID, qerr.UserID)
}

func TestClaimConflictSurfaces(t *testing.T) {
	st := store.NewMemory()
	l := New(st, nil)

	session, err := l.Create(context.Background(), uuid.New(), validJob(), validSnapshot(), types.Parameters{})
	require.NoError(t, err)

	_, err = l.Claim(context.Background(), session.ID, "w1")
	require.NoError(t, err)

	_, err = l.Claim(context.Background(), session.ID, "w2")
	var conflict *types.ConcurrencyConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, session.ID, conflict.SessionID)
}

func TestIsStuck(t *testing.T) {
	l := New(store.NewMemory(), nil)
	now := time.Now()

	fresh := now.Add(-time.Minute)
	stale := now.Add(-DefaultStuckAfter - time.Minute)
	expired := now.Add(-DefaultPendingAfter - time.Minute)

	assert.False(t, l.IsStuck(&types.TailoringSession{Status: types.StatusPending, CreatedAt: fresh}, now))
	assert.True(t, l.IsStuck(&types.TailoringSession{Status: types.StatusPending, CreatedAt: expired}, now))
	assert.False(t, l.IsStuck(&types.TailoringSession{Status: types.StatusProcessing, HeartbeatAt: &fresh}, now))
	assert.True(t, l.IsStuck(&types.TailoringSession{Status: types.StatusProcessing, HeartbeatAt: &stale}, now))
	// Never heartbeat: fall back to the claim time.
	assert.True(t, l.IsStuck(&types.TailoringSession{Status: types.StatusProcessing, StartedAt: &stale}, now))
	assert.False(t, l.IsStuck(&types.TailoringSession{Status: types.StatusCompleted, HeartbeatAt: &stale}, now))
}

func TestSweepStuckFailsLostSessions(t *testing.T) {
	st := store.NewMemory()
	l := New(st, nil)

	base := time.Now()

	// The first session was claimed long ago and never heartbeat since.
	st.SetNow(func() time.Time { return base.Add(-DefaultStuckAfter - time.Minute) })
	stuck, err := l.Create(context.Background(), uuid.New(), validJob(), validSnapshot(), types.Parameters{})
	require.NoError(t, err)
	_, err = l.Claim(context.Background(), stuck.ID, "w1")
	require.NoError(t, err)

	// The second was claimed just now.
	st.SetNow(func() time.Time { return base })
	healthy, err := l.Create(context.Background(), uuid.New(), validJob(), validSnapshot(), types.Parameters{})
	require.NoError(t, err)
	_, err = l.Claim(context.Background(), healthy.ID, "w2")
	require.NoError(t, err)

	l.now = func() time.Time { return base }
	swept, err := l.SweepStuck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	got, err := st.GetSession(context.Background(), stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "worker lost")

	ok, err := st.GetSession(context.Background(), healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusProcessing, ok.Status)
}

func TestSweepStuckExpiresUnclaimedPending(t *testing.T) {
	st := store.NewMemory()
	l := New(st, nil)

	base := time.Now()

	// Created long ago, never claimed.
	l.now = func() time.Time { return base.Add(-DefaultPendingAfter - time.Minute) }
	expired, err := l.Create(context.Background(), uuid.New(), validJob(), validSnapshot(), types.Parameters{})
	require.NoError(t, err)

	// Created just now.
	l.now = func() time.Time { return base }
	waiting, err := l.Create(context.Background(), uuid.New(), validJob(), validSnapshot(), types.Parameters{})
	require.NoError(t, err)

	swept, err := l.SweepStuck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	got, err := st.GetSession(context.Background(), expired.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "pending timeout")

	ok, err := st.GetSession(context.Background(), waiting.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, ok.Status)
}
