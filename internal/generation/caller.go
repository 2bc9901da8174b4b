package generation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/llm"
	"github.com/jonathan/resume-tailor/internal/prompts"
	"github.com/jonathan/resume-tailor/internal/schemas"
	"github.com/jonathan/resume-tailor/internal/types"
)

const (
	// maxTransientAttempts bounds retries of provider-side failures for a
	// single logical call.
	maxTransientAttempts = 3
	// maxCorrectiveRetries bounds how many times a malformed response may
	// be sent back to the model with a corrective prompt.
	maxCorrectiveRetries = 2

	baseBackoff = time.Second

	// previousExcerptLen bounds how much of a rejected response is echoed
	// back in the corrective prompt.
	previousExcerptLen = 1500
)

// CallSpec describes one schema-constrained model call.
type CallSpec struct {
	Stage        string
	Schema       string
	Instructions string
	Payload      string
	// Mode defaults to strict JSON. Stages that need the fetch tool give
	// up strict enforcement (the two are mutually exclusive) and rely on
	// the repair pass plus schema validation instead.
	Mode            llm.CallMode
	Tier            llm.ModelTier
	Temperature     float32
	MaxOutputTokens int32
}

// Caller wraps the model client with the retry discipline shared by all
// stages: exponential backoff for transient provider errors and corrective
// re-prompts for responses that fail the output contract.
type Caller struct {
	client llm.Client
	logger *zap.Logger

	// sleep is swappable under test. It must honor ctx.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCaller wraps a client. A nil logger disables logging.
func NewCaller(client llm.Client, logger *zap.Logger) *Caller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Caller{
		client: client,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// SetSleep replaces the backoff sleeper. Test hook.
func (c *Caller) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	c.sleep = fn
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Call performs one schema-constrained call. The returned string is the
// repaired, schema-valid JSON document. Token usage of every response is
// added to the trace, including responses later rejected as malformed.
func (c *Caller) Call(ctx context.Context, trace *Trace, spec CallSpec) (string, error) {
	instructions := spec.Instructions
	payload := spec.Payload

	var lastProblem string
	for parse := 0; parse <= maxCorrectiveRetries; parse++ {
		resp, err := c.generateWithBackoff(ctx, trace, spec, instructions, payload)
		if err != nil {
			return "", err
		}

		repaired := RepairJSON(resp.Text)

		problem := ""
		if err := CheckSyntax(repaired); err != nil {
			problem = err.Error()
		} else if err := schemas.Validate(spec.Schema, repaired); err != nil {
			problem = err.Error()
		}

		if problem == "" {
			return repaired, nil
		}

		lastProblem = problem
		trace.Record(spec.Stage, "malformed response (attempt %d): %s", parse+1, problem)
		c.logger.Warn("malformed model response",
			zap.String("stage", spec.Stage),
			zap.Int("attempt", parse+1),
			zap.String("problem", problem))

		// Re-prompt with the full task input plus the diagnosis and an
		// excerpt of the rejected response, so the model keeps the source
		// material while seeing what it got wrong.
		correction := prompts.Format(prompts.MustGet("tailoring.json", "corrective-retry"), map[string]string{
			"Problem":  problem,
			"Previous": truncate(resp.Text, previousExcerptLen),
		})
		payload = spec.Payload + "\n\n" + correction
	}

	return "", &types.MalformedResponseError{
		Stage:    spec.Stage,
		Attempts: maxCorrectiveRetries + 1,
		Cause:    &types.ValidationError{Component: spec.Stage, Message: lastProblem},
	}
}

// CallText performs one free-form call with transient retry but no response
// contract. Used for stages whose output feeds a later prompt rather than
// the structured result, such as company research with the retrieval tool.
func (c *Caller) CallText(ctx context.Context, trace *Trace, stage string, req llm.Request) (string, error) {
	var lastErr error
	delay := baseBackoff

	for attempt := 1; attempt <= maxTransientAttempts; attempt++ {
		resp, err := c.client.Generate(ctx, req)
		if err == nil {
			trace.AddUsage(resp.Usage)
			return resp.Text, nil
		}

		lastErr = err
		if !llm.IsRetryable(err) {
			return "", &types.ExternalServiceError{Op: stage, Attempts: attempt, Cause: err}
		}
		if attempt < maxTransientAttempts {
			if err := c.sleep(ctx, delay); err != nil {
				return "", &types.ExternalServiceError{Op: stage, Attempts: attempt, Cause: err}
			}
			delay *= 2
		}
	}
	return "", &types.ExternalServiceError{Op: stage, Attempts: maxTransientAttempts, Cause: lastErr}
}

// generateWithBackoff retries transient provider errors with exponential
// backoff. Non-retryable errors and attempt exhaustion surface as
// ExternalServiceError.
func (c *Caller) generateWithBackoff(ctx context.Context, trace *Trace, spec CallSpec, instructions, payload string) (*llm.Response, error) {
	var lastErr error
	delay := baseBackoff

	mode := spec.Mode
	if mode == llm.ModeText {
		mode = llm.ModeStrictJSON
	}

	for attempt := 1; attempt <= maxTransientAttempts; attempt++ {
		resp, err := c.client.Generate(ctx, llm.Request{
			Instructions:    instructions,
			Payload:         payload,
			Mode:            mode,
			Tier:            spec.Tier,
			Temperature:     spec.Temperature,
			MaxOutputTokens: spec.MaxOutputTokens,
		})
		if err == nil {
			trace.AddUsage(resp.Usage)
			return resp, nil
		}

		lastErr = err
		if !llm.IsRetryable(err) {
			return nil, &types.ExternalServiceError{Op: spec.Stage, Attempts: attempt, Cause: err}
		}

		c.logger.Warn("transient model error",
			zap.String("stage", spec.Stage),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < maxTransientAttempts {
			if err := c.sleep(ctx, delay); err != nil {
				return nil, &types.ExternalServiceError{Op: spec.Stage, Attempts: attempt, Cause: err}
			}
			delay *= 2
		}
	}

	return nil, &types.ExternalServiceError{Op: spec.Stage, Attempts: maxTransientAttempts, Cause: lastErr}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
