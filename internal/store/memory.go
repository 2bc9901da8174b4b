package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/resume-tailor/internal/types"
)

// Memory is an in-process Store for tests and inline single-session runs.
// All methods are safe for concurrent use and claim semantics match the
// Postgres implementation.
type Memory struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*types.TailoringSession
	quotas   map[uuid.UUID]*UserQuota

	// now is swappable under test.
	now func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[uuid.UUID]*types.TailoringSession),
		quotas:   make(map[uuid.UUID]*UserQuota),
		now:      time.Now,
	}
}

// Close is a no-op.
func (s *Memory) Close() {}

// SetNow overrides the store clock, for tests.
func (s *Memory) SetNow(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = fn
}

// SetQuota seeds a user ledger, mainly for tests.
func (s *Memory) SetQuota(q UserQuota) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := q
	s.quotas[q.UserID] = &copied
}

// CreateSession persists a new pending session.
func (s *Memory) CreateSession(_ context.Context, session *types.TailoringSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	copied, err := cloneSession(session)
	if err != nil {
		return err
	}
	s.sessions[session.ID] = copied
	return nil
}

// GetSession returns a copy of the session or ErrNotFound.
func (s *Memory) GetSession(_ context.Context, id uuid.UUID) (*types.TailoringSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(session)
}

// ListByStatus returns sessions in the given status, oldest first. A
// limit of zero or less means no cap, matching the PostgreSQL store.
func (s *Memory) ListByStatus(_ context.Context, status types.Status, limit int) ([]*types.TailoringSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*types.TailoringSession
	for _, session := range s.sessions {
		if session.Status == status {
			matched = append(matched, session)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*types.TailoringSession, 0, len(matched))
	for _, session := range matched {
		copied, err := cloneSession(session)
		if err != nil {
			return nil, err
		}
		out = append(out, copied)
	}
	return out, nil
}

// ClaimSession atomically claims a pending session; losers get
// *types.ConcurrencyConflict.
func (s *Memory) ClaimSession(_ context.Context, id uuid.UUID, _ string) (*types.TailoringSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if session.Status != types.StatusPending {
		return nil, &types.ConcurrencyConflict{SessionID: id}
	}

	now := s.now()
	session.Status = types.StatusProcessing
	session.StartedAt = &now
	session.HeartbeatAt = &now
	return cloneSession(session)
}

// Heartbeat stamps the session's liveness marker.
func (s *Memory) Heartbeat(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if session.Status == types.StatusProcessing {
		now := s.now()
		session.HeartbeatAt = &now
	}
	return nil
}

// RequestCancel flags cancellation; a pending session cancels immediately.
func (s *Memory) RequestCancel(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if session.Status.Terminal() {
		return nil
	}
	session.CancelRequested = true
	if session.Status == types.StatusPending {
		now := s.now()
		session.Status = types.StatusCanceled
		session.FinishedAt = &now
	}
	return nil
}

// IsCancelRequested reads the cancellation flag.
func (s *Memory) IsCancelRequested(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return false, ErrNotFound
	}
	return session.CancelRequested, nil
}

// FinalizeSession writes the terminal state and charges the ledger
// atomically under the store lock.
func (s *Memory) FinalizeSession(_ context.Context, id uuid.UUID, fin Finalization) error {
	if !fin.Status.Terminal() {
		return fmt.Errorf("finalize requires a terminal status, got %q", fin.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if session.Status != types.StatusProcessing {
		return &types.ConcurrencyConflict{SessionID: id}
	}

	now := s.now()
	session.Status = fin.Status
	session.Output = fin.Output
	session.TokenUsage = fin.TokenUsage
	session.DebugLog = fin.DebugLog
	session.ErrorMessage = fin.ErrorMessage
	session.FinishedAt = &now

	quota, ok := s.quotas[session.UserID]
	if !ok {
		quota = &UserQuota{UserID: session.UserID}
		s.quotas[session.UserID] = quota
	}
	quota.TokensUsed += fin.TokenUsage.Total
	quota.WordsGenerated += fin.WordsGenerated
	return nil
}

// GetUserQuota returns the ledger, defaulting to an empty row.
func (s *Memory) GetUserQuota(_ context.Context, userID uuid.UUID) (*UserQuota, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quota, ok := s.quotas[userID]; ok {
		copied := *quota
		return &copied, nil
	}
	return &UserQuota{UserID: userID}, nil
}

// cloneSession deep-copies via JSON so callers can never mutate stored
// state through a returned pointer.
func cloneSession(session *types.TailoringSession) (*types.TailoringSession, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to clone session: %w", err)
	}
	var copied types.TailoringSession
	if err := json.Unmarshal(data, &copied); err != nil {
		return nil, fmt.Errorf("failed to clone session: %w", err)
	}
	return &copied, nil
}
