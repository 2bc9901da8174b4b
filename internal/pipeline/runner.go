// Package pipeline runs claimed tailoring sessions end to end: profile
// extraction, snippet selection, staged generation, the guardrail audit,
// ATS scoring, and finalization. Cancellation is checked and the heartbeat
// stamped at every stage boundary.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/ats"
	"github.com/jonathan/resume-tailor/internal/generation"
	"github.com/jonathan/resume-tailor/internal/guardrail"
	"github.com/jonathan/resume-tailor/internal/jobprofile"
	"github.com/jonathan/resume-tailor/internal/session"
	"github.com/jonathan/resume-tailor/internal/snippets"
	"github.com/jonathan/resume-tailor/internal/store"
	"github.com/jonathan/resume-tailor/internal/types"
)

// errCanceled threads a cooperative stop through the stage sequence.
var errCanceled = errors.New("cancel requested")

// Runner processes sessions.
type Runner struct {
	lifecycle *session.Lifecycle
	store     store.Store
	builder   *jobprofile.Builder
	selector  *snippets.Selector
	orch      *generation.Orchestrator
	auditor   *guardrail.Auditor
	scorer    *ats.Scorer
	logger    *zap.Logger
}

// Deps bundles the runner's collaborators.
type Deps struct {
	Lifecycle *session.Lifecycle
	Store     store.Store
	Builder   *jobprofile.Builder
	Selector  *snippets.Selector
	Orch      *generation.Orchestrator
	Auditor   *guardrail.Auditor
	Scorer    *ats.Scorer
	Logger    *zap.Logger
}

// New builds a Runner.
func New(deps Deps) *Runner {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		lifecycle: deps.Lifecycle,
		store:     deps.Store,
		builder:   deps.Builder,
		selector:  deps.Selector,
		orch:      deps.Orch,
		auditor:   deps.Auditor,
		scorer:    deps.Scorer,
		logger:    logger,
	}
}

// Process claims and runs one session to a terminal state. A lost claim
// race returns *types.ConcurrencyConflict with no state change; any other
// error has already been written to the session as its failure.
func (r *Runner) Process(ctx context.Context, sessionID uuid.UUID, workerID string) error {
	sess, err := r.lifecycle.Claim(ctx, sessionID, workerID)
	if err != nil {
		var conflict *types.ConcurrencyConflict
		if errors.As(err, &conflict) {
			r.logger.Info("claim lost", zap.String("session_id", sessionID.String()))
		}
		return err
	}

	trace := generation.NewTrace()
	output, err := r.run(ctx, sess, trace)

	switch {
	case err == nil:
		return r.finish(ctx, sess, store.Finalization{
			Status:         types.StatusCompleted,
			Output:         output,
			TokenUsage:     trace.Usage,
			DebugLog:       trace.Debug,
			WordsGenerated: output.WordsGenerated,
		})
	case errors.Is(err, errCanceled):
		trace.Record("pipeline", "canceled at stage boundary")
		return r.finish(ctx, sess, store.Finalization{
			Status:     types.StatusCanceled,
			TokenUsage: trace.Usage,
			DebugLog:   trace.Debug,
		})
	default:
		r.logger.Error("session failed",
			zap.String("session_id", sess.ID.String()),
			zap.Error(err))
		ferr := r.finish(ctx, sess, store.Finalization{
			Status:       types.StatusFailed,
			ErrorMessage: err.Error(),
			TokenUsage:   trace.Usage,
			DebugLog:     trace.Debug,
		})
		if ferr != nil {
			return ferr
		}
		return err
	}
}

// run executes the stage sequence and assembles the output.
func (r *Runner) run(ctx context.Context, sess *types.TailoringSession, trace *generation.Trace) (*types.OutputMetadata, error) {
	params := sess.Parameters

	if err := r.checkpoint(ctx, sess.ID, "job_profile"); err != nil {
		return nil, err
	}
	profile, err := r.builder.Build(ctx, sess.JobSnapshot)
	if err != nil {
		return nil, err
	}
	trace.Record("job_profile", "extracted %d required, %d preferred terms",
		len(profile.RequiredSkills), len(profile.PreferredSkills))

	if err := r.checkpoint(ctx, sess.ID, "snippet_selection"); err != nil {
		return nil, err
	}
	snips, err := r.selector.Select(profile, sess.ExperienceSnapshot)
	if err != nil {
		return nil, err
	}
	trace.Record("snippet_selection", "selected %d snippets", len(snips))

	// Token budget is checked before the first model call so an exhausted
	// quota never costs anything.
	quota, err := r.store.GetUserQuota(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check quota: %w", err)
	}
	if quota.Exhausted() {
		return nil, &types.QuotaExceeded{UserID: sess.UserID, Available: 0}
	}

	if err := r.checkpoint(ctx, sess.ID, "generate_resume"); err != nil {
		return nil, err
	}
	draft, err := r.orch.GenerateResume(ctx, trace, profile, snips, params)
	if err != nil {
		return nil, err
	}

	if err := r.checkpoint(ctx, sess.ID, "guardrail_audit"); err != nil {
		return nil, err
	}
	findings, err := r.auditor.Audit(ctx, trace, draft, snips, params)
	if err != nil {
		return nil, err
	}

	var coverLetter string
	var talkingPoints []string
	if params.IncludeCoverLetter {
		if err := r.checkpoint(ctx, sess.ID, "cover_letter"); err != nil {
			return nil, err
		}
		research := r.orch.ResearchCompany(ctx, trace, sess.JobSnapshot.Company)
		coverLetter, talkingPoints, err = r.orch.GenerateCoverLetter(ctx, trace, profile, draft, research, params)
		if err != nil {
			return nil, err
		}
	}

	userSkills := snapshotSkills(sess.ExperienceSnapshot)
	breakdown := r.scorer.Score(profile, draft.Bullets, userSkills)
	trace.Record("ats_score", "overall %.1f (required %.1f)", breakdown.Overall, breakdown.RequiredCoverage)

	return assembleOutput(sess, draft, findings, coverLetter, talkingPoints, breakdown, snips, trace), nil
}

// checkpoint is the per-stage boundary: honor cancellation, then heartbeat.
func (r *Runner) checkpoint(ctx context.Context, id uuid.UUID, stage string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	canceled, err := r.store.IsCancelRequested(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read cancel flag before %s: %w", stage, err)
	}
	if canceled {
		return errCanceled
	}
	return r.lifecycle.Heartbeat(ctx, id)
}

func (r *Runner) finish(ctx context.Context, sess *types.TailoringSession, fin store.Finalization) error {
	if err := r.lifecycle.Finalize(ctx, sess.ID, fin); err != nil {
		return fmt.Errorf("failed to finalize session %s: %w", sess.ID, err)
	}
	r.logger.Info("session finished",
		zap.String("session_id", sess.ID.String()),
		zap.String("status", string(fin.Status)),
		zap.Int("tokens", fin.TokenUsage.Total))
	return nil
}

func assembleOutput(sess *types.TailoringSession, draft *generation.Draft, findings []types.GuardrailFinding, coverLetter string, talkingPoints []string, breakdown *types.ATSBreakdown, snips []types.ExperienceSnippet, trace *generation.Trace) *types.OutputMetadata {
	layout := draft.SectionLayout
	if len(layout) == 0 {
		layout = sess.Parameters.SectionLayout
	}

	refs := make([]types.SnippetRef, 0, len(snips))
	for _, s := range snips {
		refs = append(refs, types.SnippetRef{NodeID: s.NodeID, Bucket: s.Bucket, Score: s.Score})
	}

	summary := draft.Summary
	if !sess.Parameters.IncludeSummary {
		summary = ""
	}

	// Only delivered text counts toward the words ledger; a suppressed
	// summary is never charged.
	texts := []string{summary, coverLetter}
	for _, b := range draft.Bullets {
		texts = append(texts, b.Text)
	}

	return &types.OutputMetadata{
		Title:                    draft.Title,
		Summary:                  summary,
		BulletDetails:            draft.Bullets,
		Guardrails:               findings,
		SectionLayout:            layout,
		CoverLetter:              coverLetter,
		CoverLetterTalkingPoints: talkingPoints,
		JobLocation:              draft.JobLocation,
		ATS:                      breakdown,
		TokenUsage:               trace.Usage,
		DebugLog:                 trace.Debug,
		SelectedSnippets:         refs,
		Suggestions:              draft.Suggestions,
		WordsGenerated:           generation.CountWords(texts...),
	}
}

// snapshotSkills flattens the distinct skills tagged across the snapshot.
func snapshotSkills(snapshot types.ExperienceSnapshot) []string {
	seen := map[string]bool{}
	var skills []string
	for _, node := range snapshot.Nodes {
		for _, skill := range node.Skills {
			if !seen[skill] {
				seen[skill] = true
				skills = append(skills, skill)
			}
		}
	}
	return skills
}
