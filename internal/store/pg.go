package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/resume-tailor/internal/types"
)

// PG is the Postgres-backed store.
type PG struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool and verifies it.
func Connect(ctx context.Context, databaseURL string) (*PG, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PG{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PG) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const sessionColumns = `id, user_id, status, job_snapshot, experience_snapshot, parameters,
	output_metadata, token_usage, debug_log, error_message, cancel_requested,
	created_at, started_at, finished_at, heartbeat_at`

// CreateSession persists a new pending session.
func (s *PG) CreateSession(ctx context.Context, session *types.TailoringSession) error {
	jobJSON, err := json.Marshal(session.JobSnapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal job snapshot: %w", err)
	}
	expJSON, err := json.Marshal(session.ExperienceSnapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal experience snapshot: %w", err)
	}
	paramsJSON, err := json.Marshal(session.Parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO tailoring_sessions (id, user_id, status, job_snapshot, experience_snapshot, parameters, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		session.ID, session.UserID, session.Status, jobJSON, expJSON, paramsJSON, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession returns the session or ErrNotFound.
func (s *PG) GetSession(ctx context.Context, id uuid.UUID) (*types.TailoringSession, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM tailoring_sessions WHERE id = $1`, id)
	return scanSession(row)
}

// ListByStatus returns sessions in the given status, oldest first. A
// limit of zero or less means no cap, matching the memory store.
func (s *PG) ListByStatus(ctx context.Context, status types.Status, limit int) ([]*types.TailoringSession, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM tailoring_sessions
		 WHERE status = $1 ORDER BY created_at ASC LIMIT NULLIF($2, 0)`,
		status, max(limit, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*types.TailoringSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// ClaimSession atomically claims a pending session. The conditional UPDATE
// is the whole concurrency story: under any number of racing workers the
// row transitions pending to processing exactly once.
func (s *PG) ClaimSession(ctx context.Context, id uuid.UUID, workerID string) (*types.TailoringSession, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE tailoring_sessions
		 SET status = $2, claimed_by = $3, started_at = NOW(), heartbeat_at = NOW()
		 WHERE id = $1 AND status = $4
		 RETURNING `+sessionColumns,
		id, types.StatusProcessing, workerID, types.StatusPending)

	session, err := scanSession(row)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// Distinguish a lost race from a session that does not exist.
	if _, gerr := s.GetSession(ctx, id); gerr != nil {
		return nil, gerr
	}
	return nil, &types.ConcurrencyConflict{SessionID: id}
}

// Heartbeat stamps the session's liveness marker.
func (s *PG) Heartbeat(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE tailoring_sessions SET heartbeat_at = NOW() WHERE id = $1 AND status = $2`,
		id, types.StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to heartbeat session: %w", err)
	}
	return nil
}

// RequestCancel flags cancellation; a still-pending session cancels at once.
func (s *PG) RequestCancel(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tailoring_sessions
		 SET cancel_requested = TRUE,
		     status = CASE WHEN status = $2 THEN $3 ELSE status END,
		     finished_at = CASE WHEN status = $2 THEN NOW() ELSE finished_at END
		 WHERE id = $1 AND status NOT IN ($4, $5)`,
		id, types.StatusPending, types.StatusCanceled, types.StatusCompleted, types.StatusFailed)
	if err != nil {
		return fmt.Errorf("failed to request cancel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetSession(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// IsCancelRequested reads the cancellation flag.
func (s *PG) IsCancelRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	var flag bool
	err := s.pool.QueryRow(ctx,
		`SELECT cancel_requested FROM tailoring_sessions WHERE id = $1`, id).Scan(&flag)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("failed to read cancel flag: %w", err)
	}
	return flag, nil
}

// FinalizeSession writes the terminal state and charges the user ledger in
// one transaction. Only a processing session can be finalized; a cancel or
// sweep that got there first wins.
func (s *PG) FinalizeSession(ctx context.Context, id uuid.UUID, fin Finalization) error {
	if !fin.Status.Terminal() {
		return fmt.Errorf("finalize requires a terminal status, got %q", fin.Status)
	}

	outputJSON, err := json.Marshal(fin.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	usageJSON, err := json.Marshal(fin.TokenUsage)
	if err != nil {
		return fmt.Errorf("failed to marshal token usage: %w", err)
	}
	debugJSON, err := json.Marshal(fin.DebugLog)
	if err != nil {
		return fmt.Errorf("failed to marshal debug log: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var userID uuid.UUID
	err = tx.QueryRow(ctx,
		`UPDATE tailoring_sessions
		 SET status = $2, output_metadata = $3, token_usage = $4, debug_log = $5,
		     error_message = $6, finished_at = NOW()
		 WHERE id = $1 AND status = $7
		 RETURNING user_id`,
		id, fin.Status, outputJSON, usageJSON, debugJSON, fin.ErrorMessage, types.StatusProcessing,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &types.ConcurrencyConflict{SessionID: id}
		}
		return fmt.Errorf("failed to finalize session: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO user_quotas (user_id, tokens_used, words_generated)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE
		 SET tokens_used = user_quotas.tokens_used + $2,
		     words_generated = user_quotas.words_generated + $3`,
		userID, fin.TokenUsage.Total, fin.WordsGenerated)
	if err != nil {
		return fmt.Errorf("failed to charge quota: %w", err)
	}

	return tx.Commit(ctx)
}

// GetUserQuota returns the ledger, defaulting to an empty row for unknown
// users.
func (s *PG) GetUserQuota(ctx context.Context, userID uuid.UUID) (*UserQuota, error) {
	quota := &UserQuota{UserID: userID}
	err := s.pool.QueryRow(ctx,
		`SELECT token_limit, tokens_used, words_generated FROM user_quotas WHERE user_id = $1`,
		userID).Scan(&quota.TokenLimit, &quota.TokensUsed, &quota.WordsGenerated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return quota, nil
		}
		return nil, fmt.Errorf("failed to get user quota: %w", err)
	}
	return quota, nil
}

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*types.TailoringSession, error) {
	var (
		session   types.TailoringSession
		jobJSON   []byte
		expJSON   []byte
		prmJSON   []byte
		outJSON   []byte
		usageJSON []byte
		debugJSON []byte
		errMsg    *string
		started   *time.Time
		finished  *time.Time
		heartbeat *time.Time
	)

	err := row.Scan(&session.ID, &session.UserID, &session.Status, &jobJSON, &expJSON, &prmJSON,
		&outJSON, &usageJSON, &debugJSON, &errMsg, &session.CancelRequested,
		&session.CreatedAt, &started, &finished, &heartbeat)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if err := json.Unmarshal(jobJSON, &session.JobSnapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job snapshot: %w", err)
	}
	if err := json.Unmarshal(expJSON, &session.ExperienceSnapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal experience snapshot: %w", err)
	}
	if err := json.Unmarshal(prmJSON, &session.Parameters); err != nil {
		return nil, fmt.Errorf("failed to unmarshal parameters: %w", err)
	}
	if len(outJSON) > 0 {
		if err := json.Unmarshal(outJSON, &session.Output); err != nil {
			return nil, fmt.Errorf("failed to unmarshal output: %w", err)
		}
	}
	if len(usageJSON) > 0 {
		if err := json.Unmarshal(usageJSON, &session.TokenUsage); err != nil {
			return nil, fmt.Errorf("failed to unmarshal token usage: %w", err)
		}
	}
	if len(debugJSON) > 0 {
		if err := json.Unmarshal(debugJSON, &session.DebugLog); err != nil {
			return nil, fmt.Errorf("failed to unmarshal debug log: %w", err)
		}
	}
	if errMsg != nil {
		session.ErrorMessage = *errMsg
	}
	session.StartedAt = started
	session.FinishedAt = finished
	session.HeartbeatAt = heartbeat
	return &session, nil
}
