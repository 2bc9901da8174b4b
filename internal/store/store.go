// Package store persists tailoring sessions and user usage ledgers. Two
// implementations exist: Postgres for production and an in-memory store for
// tests and single-process inline runs. Both enforce the same claim
// semantics: a pending session is claimed by exactly one worker.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jonathan/resume-tailor/internal/types"
)

// ErrNotFound is returned when a session or quota row does not exist.
var ErrNotFound = errors.New("not found")

// Finalization carries everything written when a session reaches a terminal
// state. Output and ErrorMessage are mutually exclusive in practice.
type Finalization struct {
	Status         types.Status
	Output         *types.OutputMetadata
	ErrorMessage   string
	TokenUsage     types.TokenUsage
	DebugLog       []types.DebugEntry
	WordsGenerated int
}

// UserQuota is the per-user usage ledger.
type UserQuota struct {
	UserID         uuid.UUID
	TokenLimit     int // zero means unlimited
	TokensUsed     int
	WordsGenerated int
}

// Remaining returns the unused token budget; unlimited quotas report a
// negative value.
func (q *UserQuota) Remaining() int {
	if q.TokenLimit <= 0 {
		return -1
	}
	return q.TokenLimit - q.TokensUsed
}

// Exhausted reports whether the budget is spent.
func (q *UserQuota) Exhausted() bool {
	return q.TokenLimit > 0 && q.TokensUsed >= q.TokenLimit
}

// Store is the persistence boundary for sessions and quotas.
type Store interface {
	// CreateSession persists a new pending session.
	CreateSession(ctx context.Context, session *types.TailoringSession) error
	// GetSession returns the session or ErrNotFound.
	GetSession(ctx context.Context, id uuid.UUID) (*types.TailoringSession, error)
	// ListByStatus returns sessions in the given status, oldest first,
	// capped at limit. A limit of zero or less means no cap; the sweeper
	// relies on that to see every candidate session.
	ListByStatus(ctx context.Context, status types.Status, limit int) ([]*types.TailoringSession, error)

	// ClaimSession atomically moves a pending session to processing on
	// behalf of workerID. A session that is not pending yields
	// *types.ConcurrencyConflict; exactly one concurrent claimer wins.
	ClaimSession(ctx context.Context, id uuid.UUID, workerID string) (*types.TailoringSession, error)
	// Heartbeat stamps the session's liveness marker.
	Heartbeat(ctx context.Context, id uuid.UUID) error

	// RequestCancel flags the session for cooperative cancellation. A
	// still-pending session is canceled immediately.
	RequestCancel(ctx context.Context, id uuid.UUID) error
	// IsCancelRequested reads the cancellation flag.
	IsCancelRequested(ctx context.Context, id uuid.UUID) (bool, error)

	// FinalizeSession moves a processing session to a terminal state and,
	// in the same transaction, charges the user's usage ledger.
	FinalizeSession(ctx context.Context, id uuid.UUID, fin Finalization) error

	// GetUserQuota returns the user's ledger, creating an empty one for
	// unknown users.
	GetUserQuota(ctx context.Context, userID uuid.UUID) (*UserQuota, error)

	Close()
}
