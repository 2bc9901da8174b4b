// Package generation orchestrates the staged model calls that draft tailored
// resume content. Every call goes through a single retrying caller that
// enforces the response contract, accounts tokens, and records diagnostics.
package generation

import (
	"fmt"
	"time"

	"github.com/jonathan/resume-tailor/internal/types"
)

// Trace accumulates token usage and debug entries across the model calls of
// one session run. Token usage grows monotonically: responses that are later
// discarded as malformed still count.
type Trace struct {
	Usage types.TokenUsage
	Debug []types.DebugEntry

	// now supplies debug entry timestamps; nil means time.Now.
	now func() time.Time
}

// NewTrace returns an empty trace.
func NewTrace() *Trace {
	return &Trace{}
}

// Record appends a debug entry for the given stage.
func (t *Trace) Record(stage, format string, args ...any) {
	nowFn := t.now
	if nowFn == nil {
		nowFn = time.Now
	}
	t.Debug = append(t.Debug, types.DebugEntry{
		Timestamp: nowFn().UTC(),
		Stage:     stage,
		Message:   fmt.Sprintf(format, args...),
	})
}

// AddUsage folds a response's token counts into the running totals.
func (t *Trace) AddUsage(u types.TokenUsage) {
	t.Usage.Add(u)
}
