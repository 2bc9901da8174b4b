// Package types provides type definitions for structured data used throughout the resume-tailor system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a tailoring session
type Status string

// Session lifecycle states. Pending sessions may be claimed by exactly one
// worker; completed, failed and canceled are terminal.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Terminal reports whether the status admits no further transitions
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Parameters holds the tailoring preferences supplied by the user at session
// creation. Once a session leaves pending, parameters are never mutated.
type Parameters struct {
	Sections           []string `json:"sections" validate:"omitempty,dive,min=1"`
	SectionLayout      []string `json:"section_layout" validate:"omitempty,dive,min=1"`
	BulletsPerSection  int      `json:"bullets_per_section" validate:"gte=0,lte=10"`
	Tone               string   `json:"tone"`
	StretchLevel       int      `json:"stretch_level" validate:"gte=0,lte=3"`
	IncludeSummary     bool     `json:"include_summary"`
	IncludeCoverLetter bool     `json:"include_cover_letter"`
	CoverLetterInserts []string `json:"cover_letter_inserts"`
	Temperature        float64  `json:"temperature" validate:"gte=0,lte=2"`
	MaxOutputTokens    int      `json:"max_output_tokens" validate:"gte=0"`
}

// TokenUsage tracks prompt/completion token counts for LLM calls.
// Totals are cumulative for a session and only ever increase, including
// usage from calls whose output was later discarded as malformed.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// Add accumulates another usage record into the receiver
func (u *TokenUsage) Add(other TokenUsage) {
	u.Prompt += other.Prompt
	u.Completion += other.Completion
	u.Total += other.Total
}

// DebugEntry is one append-only diagnostic record from a session run
type DebugEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
}

// JobSnapshot captures the job posting data at session creation time.
// At least one of RawText or SourceURL must be present.
type JobSnapshot struct {
	Title     string `json:"title,omitempty"`
	Company   string `json:"company,omitempty"`
	RawText   string `json:"raw_text,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
}

// TailoringSession is the unit of work: one attempt to tailor a user's
// experience snapshot to a specific job posting.
type TailoringSession struct {
	ID                 uuid.UUID          `json:"id"`
	UserID             uuid.UUID          `json:"user_id"`
	Status             Status             `json:"status"`
	JobSnapshot        JobSnapshot        `json:"job_snapshot"`
	ExperienceSnapshot ExperienceSnapshot `json:"experience_snapshot"`
	Parameters         Parameters         `json:"parameters"`
	Output             *OutputMetadata    `json:"output_metadata,omitempty"`
	TokenUsage         TokenUsage         `json:"token_usage"`
	DebugLog           []DebugEntry       `json:"debug_log,omitempty"`
	ErrorMessage       string             `json:"error_message,omitempty"`
	CancelRequested    bool               `json:"cancel_requested,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	StartedAt          *time.Time         `json:"started_at,omitempty"`
	FinishedAt         *time.Time         `json:"finished_at,omitempty"`
	HeartbeatAt        *time.Time         `json:"heartbeat_at,omitempty"`
}
