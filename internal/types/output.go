//nolint:revive // types is a standard Go package name pattern
package types

// GuardrailStatus is the audit outcome for one generated bullet
type GuardrailStatus string

// Guardrail statuses. Unresolved bullets are kept and surfaced, never
// silently dropped, and never fatal to the session.
const (
	GuardrailPass            GuardrailStatus = "pass"
	GuardrailRegeneratedPass GuardrailStatus = "regenerated-pass"
	GuardrailUnresolved      GuardrailStatus = "unresolved"
)

// ReasonCode explains why a bullet failed its guardrail audit
type ReasonCode string

// Guardrail failure reason codes
const (
	ReasonUnsupportedClaim ReasonCode = "unsupported_claim"
	ReasonExceedsStretch   ReasonCode = "exceeds_stretch_policy"
	ReasonMissingSnippet   ReasonCode = "missing_grounding_snippet"
)

// BulletRecord is one generated resume line with its provenance
type BulletRecord struct {
	ID           string          `json:"id"`
	Section      string          `json:"section"`
	Text         string          `json:"text"`
	SnippetIDs   []string        `json:"snippet_ids"`
	StretchLevel int             `json:"stretch_level"`
	HasMetrics   bool            `json:"has_metrics"`
	Guardrail    GuardrailStatus `json:"guardrail"`
}

// GuardrailFinding is the per-bullet audit outcome surfaced to the consumer
type GuardrailFinding struct {
	BulletRef  string          `json:"bullet_ref"`
	Status     GuardrailStatus `json:"status"`
	ReasonCode ReasonCode      `json:"reason_code,omitempty"`
}

// ATSBreakdown is the deterministic applicant-tracking-system compatibility
// score. Coverage values are percentages in [0, 100].
type ATSBreakdown struct {
	RequiredCoverage  float64  `json:"required_coverage"`
	KeywordCoverage   float64  `json:"keyword_coverage"`
	PreferredCoverage float64  `json:"preferred_coverage"`
	Overall           float64  `json:"overall"`
	Suggestions       []string `json:"suggestions"`
}

// JobLocation is an approximate job location extracted during generation
type JobLocation struct {
	Name string   `json:"name"`
	Lat  *float64 `json:"lat,omitempty"`
	Lon  *float64 `json:"lon,omitempty"`
}

// SnippetRef records which snippet was sent to the LLM, by id and score
type SnippetRef struct {
	NodeID string  `json:"id"`
	Bucket string  `json:"bucket"`
	Score  float64 `json:"score"`
}

// OutputMetadata is the structured result of a completed session run,
// consumed by the presentation layer. It is the only derived entity that
// outlives a run.
type OutputMetadata struct {
	Title                    string             `json:"title,omitempty"`
	Summary                  string             `json:"summary,omitempty"`
	BulletDetails            []BulletRecord     `json:"bullet_details"`
	Guardrails               []GuardrailFinding `json:"guardrails"`
	SectionLayout            []string           `json:"section_layout"`
	CoverLetter              string             `json:"cover_letter,omitempty"`
	CoverLetterTalkingPoints []string           `json:"cover_letter_talking_points"`
	JobLocation              *JobLocation       `json:"job_location,omitempty"`
	ATS                      *ATSBreakdown      `json:"ats"`
	TokenUsage               TokenUsage         `json:"token_usage"`
	DebugLog                 []DebugEntry       `json:"debug_log"`
	SelectedSnippets         []SnippetRef       `json:"selected_snippets,omitempty"`
	Suggestions              []string           `json:"suggestions,omitempty"`
	WordsGenerated           int                `json:"words_generated"`
}
