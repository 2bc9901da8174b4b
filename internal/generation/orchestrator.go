package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/llm"
	"github.com/jonathan/resume-tailor/internal/prompts"
	"github.com/jonathan/resume-tailor/internal/schemas"
	"github.com/jonathan/resume-tailor/internal/types"
)

// Draft is the parsed result of the resume generation stage, before the
// guardrail audit runs.
type Draft struct {
	Title         string
	Summary       string
	Bullets       []types.BulletRecord
	SectionLayout []string
	JobLocation   *types.JobLocation
	Suggestions   []string
}

// Orchestrator runs the staged model calls of a tailoring session.
type Orchestrator struct {
	caller *Caller
	logger *zap.Logger
}

// New builds an Orchestrator over the given client.
func New(client llm.Client, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		caller: NewCaller(client, logger),
		logger: logger,
	}
}

// Caller exposes the shared retrying caller so the guardrail stage can issue
// its own schema-constrained calls with the same discipline.
func (o *Orchestrator) Caller() *Caller {
	return o.caller
}

// resumeResponse mirrors the resume_response.json contract.
type resumeResponse struct {
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Sections []struct {
		Name    string `json:"name"`
		Bullets []struct {
			ID         string   `json:"id"`
			Text       string   `json:"text"`
			SnippetIDs []string `json:"snippet_ids"`
			Stretch    int      `json:"stretch"`
			HasMetrics bool     `json:"has_metrics"`
		} `json:"bullets"`
	} `json:"sections"`
	JobLocation *types.JobLocation `json:"job_location"`
	Suggestions []string           `json:"suggestions"`
}

// GenerateResume runs the main drafting stage: one schema-constrained call
// producing the tailored sections, summary, and optional job location.
func (o *Orchestrator) GenerateResume(ctx context.Context, trace *Trace, profile *types.JobProfile, snips []types.ExperienceSnippet, params types.Parameters) (*Draft, error) {
	payload, err := resumePayload(profile, snips, params)
	if err != nil {
		return nil, err
	}

	// Strict JSON when the posting text is already known. When only a URL
	// survived extraction the call carries the fetch tool instead, so the
	// model can retrieve the posting itself; the prompt's formatting
	// contract plus the repair pass covers the lost enforcement.
	mode := llm.ModeStrictJSON
	if profile.Description == "" && profile.SourceURL != "" {
		mode = llm.ModeFetchTool
		trace.Record("generate_resume", "posting text unavailable, generating with fetch tool for %s", profile.SourceURL)
	}

	doc, err := o.caller.Call(ctx, trace, CallSpec{
		Stage:           "generate_resume",
		Schema:          schemas.ResumeResponse,
		Instructions:    systemInstructions(params),
		Payload:         payload,
		Mode:            mode,
		Tier:            llm.TierStandard,
		Temperature:     float32(params.Temperature),
		MaxOutputTokens: int32(params.MaxOutputTokens),
	})
	if err != nil {
		return nil, err
	}

	var resp resumeResponse
	if err := json.Unmarshal([]byte(doc), &resp); err != nil {
		// Unreachable in practice: the document already passed the schema.
		return nil, &types.MalformedResponseError{Stage: "generate_resume", Attempts: 1, Cause: err}
	}

	return draftFromResponse(&resp, params), nil
}

func draftFromResponse(resp *resumeResponse, params types.Parameters) *Draft {
	draft := &Draft{
		Title:       resp.Title,
		Summary:     resp.Summary,
		JobLocation: resp.JobLocation,
		Suggestions: resp.Suggestions,
	}
	seen := map[string]bool{}
	for si, section := range resp.Sections {
		draft.SectionLayout = append(draft.SectionLayout, section.Name)
		bullets := section.Bullets
		if params.BulletsPerSection > 0 && len(bullets) > params.BulletsPerSection {
			bullets = bullets[:params.BulletsPerSection]
		}
		for bi, b := range bullets {
			id := b.ID
			if id == "" || seen[id] {
				id = fmt.Sprintf("s%d-b%d", si+1, bi+1)
			}
			seen[id] = true
			draft.Bullets = append(draft.Bullets, types.BulletRecord{
				ID:           id,
				Section:      section.Name,
				Text:         b.Text,
				SnippetIDs:   b.SnippetIDs,
				StretchLevel: b.Stretch,
				HasMetrics:   b.HasMetrics,
			})
		}
	}
	return draft
}

// coverLetterResponse mirrors the cover_letter_response.json contract.
type coverLetterResponse struct {
	CoverLetter   string   `json:"cover_letter"`
	TalkingPoints []string `json:"talking_points"`
}

// GenerateCoverLetter drafts a cover letter grounded in the already-audited
// resume content. Optional research context, when present, is appended to
// the payload.
func (o *Orchestrator) GenerateCoverLetter(ctx context.Context, trace *Trace, profile *types.JobProfile, draft *Draft, research string, params types.Parameters) (string, []string, error) {
	resume, err := json.MarshalIndent(map[string]any{
		"summary": draft.Summary,
		"bullets": draft.Bullets,
	}, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("marshal resume content: %w", err)
	}

	profileJSON, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("marshal job profile: %w", err)
	}

	payload := prompts.Format(prompts.MustGet("tailoring.json", "cover-letter"), map[string]string{
		"JobProfile": string(profileJSON),
		"Resume":     string(resume),
		"Tone":       params.Tone,
	})
	if research != "" {
		payload += "\n\nCOMPANY RESEARCH NOTES:\n" + research
	}
	if len(params.CoverLetterInserts) > 0 {
		payload += "\n\nTHE CANDIDATE ASKS YOU TO WORK IN THESE POINTS:\n- " +
			strings.Join(params.CoverLetterInserts, "\n- ")
	}

	doc, err := o.caller.Call(ctx, trace, CallSpec{
		Stage:           "cover_letter",
		Schema:          schemas.CoverLetterResponse,
		Instructions:    systemInstructions(params),
		Payload:         payload,
		Tier:            llm.TierStandard,
		Temperature:     float32(params.Temperature),
		MaxOutputTokens: int32(params.MaxOutputTokens),
	})
	if err != nil {
		return "", nil, err
	}

	var resp coverLetterResponse
	if err := json.Unmarshal([]byte(doc), &resp); err != nil {
		return "", nil, &types.MalformedResponseError{Stage: "cover_letter", Attempts: 1, Cause: err}
	}
	return resp.CoverLetter, resp.TalkingPoints, nil
}

// ResearchCompany gathers public context about the employer with the web
// retrieval tool enabled. Free-form text, no schema. Failures here degrade
// to an empty result; research never blocks the pipeline.
func (o *Orchestrator) ResearchCompany(ctx context.Context, trace *Trace, company string) string {
	if company == "" {
		return ""
	}

	text, err := o.caller.CallText(ctx, trace, "company_research", llm.Request{
		Payload: "Summarize, in under 150 words, what " + company +
			" does, its products, and anything notable about its engineering culture. Facts only.",
		Mode: llm.ModeFetchTool,
		Tier: llm.TierLite,
	})
	if err != nil {
		trace.Record("company_research", "research skipped: %v", err)
		o.logger.Warn("company research failed", zap.String("company", company), zap.Error(err))
		return ""
	}
	return text
}

// bulletResponse mirrors the bullet_response.json contract.
type bulletResponse struct {
	Text       string   `json:"text"`
	SnippetIDs []string `json:"snippet_ids"`
	Stretch    int      `json:"stretch"`
	HasMetrics bool     `json:"has_metrics"`
}

// RegenerateBullet rewrites one rejected bullet against its source snippets.
func (o *Orchestrator) RegenerateBullet(ctx context.Context, trace *Trace, bullet types.BulletRecord, snips []types.ExperienceSnippet, reason types.ReasonCode, params types.Parameters) (*types.BulletRecord, error) {
	bulletJSON, err := json.Marshal(bullet)
	if err != nil {
		return nil, fmt.Errorf("marshal bullet: %w", err)
	}
	snippetJSON, err := json.MarshalIndent(snips, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snippets: %w", err)
	}

	payload := prompts.Format(prompts.MustGet("guardrail.json", "regenerate-bullet"), map[string]string{
		"Snippets":     string(snippetJSON),
		"Bullet":       string(bulletJSON),
		"Reason":       string(reason),
		"StretchLevel": strconv.Itoa(params.StretchLevel),
	})

	doc, err := o.caller.Call(ctx, trace, CallSpec{
		Stage:           "regenerate_bullet",
		Schema:          schemas.BulletResponse,
		Instructions:    systemInstructions(params),
		Payload:         payload,
		Tier:            llm.TierStandard,
		Temperature:     float32(params.Temperature),
		MaxOutputTokens: 1024,
	})
	if err != nil {
		return nil, err
	}

	var resp bulletResponse
	if err := json.Unmarshal([]byte(doc), &resp); err != nil {
		return nil, &types.MalformedResponseError{Stage: "regenerate_bullet", Attempts: 1, Cause: err}
	}

	out := bullet
	out.Text = resp.Text
	out.SnippetIDs = resp.SnippetIDs
	out.StretchLevel = resp.Stretch
	out.HasMetrics = resp.HasMetrics
	return &out, nil
}

func systemInstructions(params types.Parameters) string {
	return prompts.Format(prompts.MustGet("tailoring.json", "system"), map[string]string{
		"Tone": params.Tone,
	})
}

func resumePayload(profile *types.JobProfile, snips []types.ExperienceSnippet, params types.Parameters) (string, error) {
	profileJSON, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal job profile: %w", err)
	}
	snippetJSON, err := json.MarshalIndent(snips, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snippets: %w", err)
	}

	return prompts.Format(prompts.MustGet("tailoring.json", "generate-resume"), map[string]string{
		"JobProfile":        string(profileJSON),
		"Snippets":          string(snippetJSON),
		"Sections":          strings.Join(params.Sections, ", "),
		"BulletsPerSection": strconv.Itoa(params.BulletsPerSection),
		"StretchLevel":      strconv.Itoa(params.StretchLevel),
	}), nil
}

// CountWords counts whitespace-separated words across the given texts. Used
// for the per-session words_generated total that feeds the usage ledger.
func CountWords(texts ...string) int {
	total := 0
	for _, t := range texts {
		total += len(strings.Fields(t))
	}
	return total
}
