// Package guardrail audits generated bullets against the experience snippets
// they cite. Bullets whose claims the snippets cannot support are regenerated
// a bounded number of times; whatever still fails is surfaced as unresolved
// rather than failing the session.
package guardrail

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/generation"
	"github.com/jonathan/resume-tailor/internal/llm"
	"github.com/jonathan/resume-tailor/internal/prompts"
	"github.com/jonathan/resume-tailor/internal/schemas"
	"github.com/jonathan/resume-tailor/internal/types"
)

// MaxRegenRounds bounds how many times failing bullets are regenerated.
const MaxRegenRounds = 2

// Auditor runs the grounding audit over a draft.
type Auditor struct {
	orch   *generation.Orchestrator
	logger *zap.Logger
}

// New builds an Auditor sharing the orchestrator's model caller.
func New(orch *generation.Orchestrator, logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{orch: orch, logger: logger}
}

// auditResponse mirrors the audit_response.json contract.
type auditResponse struct {
	Findings []struct {
		BulletRef  string `json:"bullet_ref"`
		Verdict    string `json:"verdict"`
		ReasonCode string `json:"reason_code"`
		Note       string `json:"note"`
	} `json:"findings"`
}

// Audit checks every bullet in the draft, regenerating failures up to
// MaxRegenRounds times. Bullets are mutated in place when regenerated and
// their Guardrail status is set. The returned findings follow draft order.
func (a *Auditor) Audit(ctx context.Context, trace *generation.Trace, draft *generation.Draft, snips []types.ExperienceSnippet, params types.Parameters) ([]types.GuardrailFinding, error) {
	byNode := make(map[string]types.ExperienceSnippet, len(snips))
	for _, s := range snips {
		byNode[s.NodeID] = s
	}

	// Bullets citing no known snippet have nothing to audit against and
	// nothing to regenerate from. They go straight to unresolved.
	reasons := map[string]types.ReasonCode{}
	regenerated := map[string]bool{}
	var pending []int
	for i := range draft.Bullets {
		b := &draft.Bullets[i]
		if !hasGrounding(b, byNode) {
			b.Guardrail = types.GuardrailUnresolved
			reasons[b.ID] = types.ReasonMissingSnippet
			trace.Record("guardrail", "bullet %s cites no known snippet", b.ID)
			continue
		}
		pending = append(pending, i)
	}

	for round := 0; round <= MaxRegenRounds && len(pending) > 0; round++ {
		verdicts, err := a.auditBatch(ctx, trace, draft, pending, snips, params)
		if err != nil {
			return nil, err
		}

		var failing []int
		for _, idx := range pending {
			b := &draft.Bullets[idx]
			verdict, ok := verdicts[b.ID]
			if !ok {
				// The model skipped this bullet; treat as a failure so
				// it gets another look rather than a silent pass.
				verdict = bulletVerdict{pass: false, reason: types.ReasonUnsupportedClaim}
			}
			if verdict.pass {
				if regenerated[b.ID] {
					b.Guardrail = types.GuardrailRegeneratedPass
				} else {
					b.Guardrail = types.GuardrailPass
				}
				delete(reasons, b.ID)
				continue
			}
			reasons[b.ID] = verdict.reason
			failing = append(failing, idx)
		}

		if round == MaxRegenRounds {
			for _, idx := range failing {
				draft.Bullets[idx].Guardrail = types.GuardrailUnresolved
			}
			pending = nil
			break
		}

		pending = pending[:0]
		for _, idx := range failing {
			b := &draft.Bullets[idx]
			patched, err := a.orch.RegenerateBullet(ctx, trace, *b, citedSnippets(b, byNode), reasons[b.ID], params)
			if err != nil {
				return nil, err
			}
			*b = *patched
			regenerated[b.ID] = true
			trace.Record("guardrail", "bullet %s regenerated (round %d, %s)", b.ID, round+1, reasons[b.ID])
			if !hasGrounding(b, byNode) {
				b.Guardrail = types.GuardrailUnresolved
				reasons[b.ID] = types.ReasonMissingSnippet
				continue
			}
			pending = append(pending, idx)
		}
	}

	findings := make([]types.GuardrailFinding, 0, len(draft.Bullets))
	for i := range draft.Bullets {
		b := &draft.Bullets[i]
		f := types.GuardrailFinding{BulletRef: b.ID, Status: b.Guardrail}
		if b.Guardrail == types.GuardrailUnresolved {
			f.ReasonCode = reasons[b.ID]
			a.logger.Warn("unresolved guardrail finding",
				zap.String("bullet", b.ID),
				zap.String("reason", string(f.ReasonCode)))
		}
		findings = append(findings, f)
	}
	return findings, nil
}

type bulletVerdict struct {
	pass   bool
	reason types.ReasonCode
}

// auditBatch sends one audit call covering the pending bullets and returns
// per-bullet verdicts keyed by bullet id.
func (a *Auditor) auditBatch(ctx context.Context, trace *generation.Trace, draft *generation.Draft, pending []int, snips []types.ExperienceSnippet, params types.Parameters) (map[string]bulletVerdict, error) {
	batch := make([]types.BulletRecord, 0, len(pending))
	for _, idx := range pending {
		batch = append(batch, draft.Bullets[idx])
	}

	bulletJSON, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal bullets: %w", err)
	}
	snippetJSON, err := json.MarshalIndent(snips, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snippets: %w", err)
	}

	payload := prompts.Format(prompts.MustGet("guardrail.json", "audit-bullets"), map[string]string{
		"Snippets":     string(snippetJSON),
		"Bullets":      string(bulletJSON),
		"StretchLevel": strconv.Itoa(params.StretchLevel),
	})

	doc, err := a.orch.Caller().Call(ctx, trace, generation.CallSpec{
		Stage:           "guardrail_audit",
		Schema:          schemas.AuditResponse,
		Payload:         payload,
		Tier:            llm.TierLite,
		Temperature:     0,
		MaxOutputTokens: 2048,
	})
	if err != nil {
		return nil, err
	}

	var resp auditResponse
	if err := json.Unmarshal([]byte(doc), &resp); err != nil {
		return nil, &types.MalformedResponseError{Stage: "guardrail_audit", Attempts: 1, Cause: err}
	}

	verdicts := make(map[string]bulletVerdict, len(resp.Findings))
	for _, f := range resp.Findings {
		v := bulletVerdict{pass: f.Verdict == "pass"}
		if !v.pass {
			v.reason = types.ReasonCode(f.ReasonCode)
			if v.reason == "" {
				v.reason = types.ReasonUnsupportedClaim
			}
		}
		verdicts[f.BulletRef] = v
	}
	return verdicts, nil
}

func hasGrounding(b *types.BulletRecord, byNode map[string]types.ExperienceSnippet) bool {
	for _, id := range b.SnippetIDs {
		if _, ok := byNode[id]; ok {
			return true
		}
	}
	return false
}

func citedSnippets(b *types.BulletRecord, byNode map[string]types.ExperienceSnippet) []types.ExperienceSnippet {
	var cited []types.ExperienceSnippet
	for _, id := range b.SnippetIDs {
		if s, ok := byNode[id]; ok {
			cited = append(cited, s)
		}
	}
	return cited
}
