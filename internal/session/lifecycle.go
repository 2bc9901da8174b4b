package session

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/store"
	"github.com/jonathan/resume-tailor/internal/types"
)

// DefaultStuckAfter is how long a processing session may go without a
// heartbeat before the sweeper declares its worker lost.
const DefaultStuckAfter = 10 * time.Minute

// DefaultPendingAfter is how long a pending session may wait unclaimed
// before the sweeper expires it.
const DefaultPendingAfter = 30 * time.Minute

// Lifecycle manages session state transitions over a Store.
type Lifecycle struct {
	store        store.Store
	validate     *validator.Validate
	logger       *zap.Logger
	stuckAfter   time.Duration
	pendingAfter time.Duration

	// now is swappable under test.
	now func() time.Time
}

// New builds a Lifecycle. A nil logger disables logging.
func New(st store.Store, logger *zap.Logger) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{
		store:        st,
		validate:     validator.New(),
		logger:       logger,
		stuckAfter:   DefaultStuckAfter,
		pendingAfter: DefaultPendingAfter,
		now:          time.Now,
	}
}

// SetPendingAfter overrides the pending expiry threshold. Non-positive
// values are ignored.
func (l *Lifecycle) SetPendingAfter(d time.Duration) {
	if d > 0 {
		l.pendingAfter = d
	}
}

// SetStuckAfter overrides the heartbeat age threshold for stuck detection.
// Non-positive values are ignored.
func (l *Lifecycle) SetStuckAfter(d time.Duration) {
	if d > 0 {
		l.stuckAfter = d
	}
}

// Create validates and persists a new pending session. The job snapshot
// must carry text or a URL, the experience snapshot at least one node, and
// the user must have token budget left; parameters are normalized before
// validation.
func (l *Lifecycle) Create(ctx context.Context, userID uuid.UUID, job types.JobSnapshot, snapshot types.ExperienceSnapshot, params types.Parameters) (*types.TailoringSession, error) {
	if job.RawText == "" && job.SourceURL == "" {
		return nil, &types.ValidationError{
			Component: "session",
			Message:   "job snapshot needs raw text or a source URL",
		}
	}
	if len(snapshot.Nodes) == 0 {
		return nil, &types.ValidationError{
			Component: "session",
			Message:   "experience snapshot has no nodes",
		}
	}

	params = Normalize(params)
	if err := l.validate.Struct(params); err != nil {
		return nil, &types.ValidationError{
			Component: "session",
			Message:   fmt.Sprintf("invalid parameters: %v", err),
		}
	}

	quota, err := l.store.GetUserQuota(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check quota: %w", err)
	}
	if quota.Exhausted() {
		return nil, &types.QuotaExceeded{UserID: userID, Available: 0}
	}

	session := &types.TailoringSession{
		ID:                 uuid.New(),
		UserID:             userID,
		Status:             types.StatusPending,
		JobSnapshot:        job,
		ExperienceSnapshot: snapshot,
		Parameters:         params,
		CreatedAt:          l.now().UTC(),
	}
	if err := l.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	l.logger.Info("session created",
		zap.String("session_id", session.ID.String()),
		zap.String("user_id", userID.String()))
	return session, nil
}

// Claim moves a pending session to processing for workerID. Exactly one
// concurrent claimer succeeds; the rest get *types.ConcurrencyConflict.
func (l *Lifecycle) Claim(ctx context.Context, id uuid.UUID, workerID string) (*types.TailoringSession, error) {
	session, err := l.store.ClaimSession(ctx, id, workerID)
	if err != nil {
		return nil, err
	}
	l.logger.Info("session claimed",
		zap.String("session_id", id.String()),
		zap.String("worker_id", workerID))
	return session, nil
}

// Cancel requests cooperative cancellation. Pending sessions cancel
// immediately; processing sessions stop at the next stage boundary.
func (l *Lifecycle) Cancel(ctx context.Context, id uuid.UUID) error {
	return l.store.RequestCancel(ctx, id)
}

// Heartbeat stamps the session's liveness marker.
func (l *Lifecycle) Heartbeat(ctx context.Context, id uuid.UUID) error {
	return l.store.Heartbeat(ctx, id)
}

// Finalize writes a terminal state and charges the user's ledger.
func (l *Lifecycle) Finalize(ctx context.Context, id uuid.UUID, fin store.Finalization) error {
	return l.store.FinalizeSession(ctx, id, fin)
}

// IsStuck reports whether a session needs sweeping: a processing session
// whose last heartbeat (or start, if it never beat) is older than the stuck
// threshold, or a pending session nobody claimed within the pending timeout.
func (l *Lifecycle) IsStuck(session *types.TailoringSession, now time.Time) bool {
	switch session.Status {
	case types.StatusPending:
		return now.Sub(session.CreatedAt) > l.pendingAfter
	case types.StatusProcessing:
		last := session.HeartbeatAt
		if last == nil {
			last = session.StartedAt
		}
		if last == nil {
			return true
		}
		return now.Sub(*last) > l.stuckAfter
	}
	return false
}

// SweepStuck fails every stuck session and returns how many were swept.
// Racing workers are safe: a processing session that finalizes between the
// list and the sweep loses its status and the conditional finalize becomes
// a no-op conflict; an expired pending session is claimed first, so a
// worker grabbing it concurrently wins or loses atomically.
func (l *Lifecycle) SweepStuck(ctx context.Context) (int, error) {
	now := l.now()
	swept := 0

	processing, err := l.store.ListByStatus(ctx, types.StatusProcessing, 0)
	if err != nil {
		return 0, err
	}
	for _, session := range processing {
		if !l.IsStuck(session, now) {
			continue
		}
		err := l.store.FinalizeSession(ctx, session.ID, store.Finalization{
			Status:       types.StatusFailed,
			ErrorMessage: "worker lost: no heartbeat within threshold",
			TokenUsage:   session.TokenUsage,
			DebugLog:     session.DebugLog,
		})
		if err != nil {
			l.logger.Warn("sweep skipped session",
				zap.String("session_id", session.ID.String()),
				zap.Error(err))
			continue
		}
		swept++
		l.logger.Info("swept stuck session", zap.String("session_id", session.ID.String()))
	}

	pending, err := l.store.ListByStatus(ctx, types.StatusPending, 0)
	if err != nil {
		return swept, err
	}
	for _, session := range pending {
		if !l.IsStuck(session, now) {
			continue
		}
		if _, err := l.store.ClaimSession(ctx, session.ID, "sweeper"); err != nil {
			l.logger.Warn("sweep lost claim on expired session",
				zap.String("session_id", session.ID.String()),
				zap.Error(err))
			continue
		}
		err := l.store.FinalizeSession(ctx, session.ID, store.Finalization{
			Status:       types.StatusFailed,
			ErrorMessage: "expired: not claimed within pending timeout",
		})
		if err != nil {
			l.logger.Warn("sweep skipped session",
				zap.String("session_id", session.ID.String()),
				zap.Error(err))
			continue
		}
		swept++
		l.logger.Info("swept expired session", zap.String("session_id", session.ID.String()))
	}

	return swept, nil
}
