//nolint:revive // types is a standard Go package name pattern
package types

// NodeType classifies an experience-graph node
type NodeType string

// Experience node types, ordered by default selection weight
const (
	NodeWork      NodeType = "work"
	NodeProject   NodeType = "project"
	NodeVolunteer NodeType = "volunteer"
	NodeEducation NodeType = "education"
)

// ExperienceNode is one entry in the user's experience graph: a job,
// project, volunteer role, or education record.
type ExperienceNode struct {
	ID           string   `json:"id"`
	Type         NodeType `json:"type"`
	Title        string   `json:"title"`
	Organization string   `json:"organization,omitempty"`
	Description  string   `json:"description,omitempty"`
	Achievements []string `json:"achievements,omitempty"`
	Skills       []string `json:"skills,omitempty"`
	StartDate    string   `json:"start_date,omitempty"` // YYYY-MM
	EndDate      string   `json:"end_date,omitempty"`   // YYYY-MM, empty when ongoing
	Current      bool     `json:"current,omitempty"`
}

// ExperienceSnapshot is the read-only, ordered experience graph captured at
// session creation. Never refreshed mid-run.
type ExperienceSnapshot struct {
	Nodes []ExperienceNode `json:"nodes"`
}

// ExperienceSnippet is a condensed, bounded summary of one experience node,
// produced per run for LLM context. Never persisted verbatim; only the ids
// and scores of the subset actually sent to the LLM are recorded.
type ExperienceSnippet struct {
	NodeID     string   `json:"id"`
	Bucket     string   `json:"bucket"`
	Type       NodeType `json:"type"`
	Title      string   `json:"title"`
	TimeFrame  string   `json:"time_frame,omitempty"`
	Summary    string   `json:"summary"`
	Skills     []string `json:"skills,omitempty"`
	HasMetrics bool     `json:"has_metrics"`
	Recency    float64  `json:"-"`
	Score      float64  `json:"-"`
}
