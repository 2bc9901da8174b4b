//nolint:revive // types is a standard Go package name pattern
package types

import "sort"

// Bucket names for the requirement categories extracted from a job posting
const (
	BucketRequiredSkills  = "required_skills"
	BucketPreferredSkills = "preferred_skills"
	BucketActionVerbs     = "action_verbs"
	BucketCertifications  = "certifications"
	BucketExperienceLevel = "experience_level"
	BucketEducation       = "education"
	BucketRawText         = "raw_text"
)

// JobProfile represents normalized requirement buckets extracted from a job
// posting. Each bucket is a set of case-folded, synonym-collapsed strings;
// empty buckets are valid. RawText is the fallback bucket holding frequent
// capitalized phrases when structured extraction finds nothing.
type JobProfile struct {
	RequiredSkills  []string `json:"required_skills"`
	PreferredSkills []string `json:"preferred_skills"`
	ActionVerbs     []string `json:"action_verbs"`
	Certifications  []string `json:"certifications"`
	ExperienceLevel []string `json:"experience_level"`
	Education       []string `json:"education"`
	RawText         []string `json:"raw_text"`

	SourceURL   string `json:"source_url,omitempty"`
	Description string `json:"description,omitempty"`
}

// BucketOrder is the canonical iteration order for requirement buckets
var BucketOrder = []string{
	BucketRequiredSkills,
	BucketPreferredSkills,
	BucketActionVerbs,
	BucketCertifications,
	BucketExperienceLevel,
	BucketEducation,
	BucketRawText,
}

// Buckets returns the requirement buckets keyed by name. Iterate with
// BucketOrder when deterministic ordering matters.
func (p *JobProfile) Buckets() map[string][]string {
	return map[string][]string{
		BucketRequiredSkills:  p.RequiredSkills,
		BucketPreferredSkills: p.PreferredSkills,
		BucketActionVerbs:     p.ActionVerbs,
		BucketCertifications:  p.Certifications,
		BucketExperienceLevel: p.ExperienceLevel,
		BucketEducation:       p.Education,
		BucketRawText:         p.RawText,
	}
}

// AllKeywords returns the sorted union of every bucket's terms
func (p *JobProfile) AllKeywords() []string {
	seen := make(map[string]bool)
	buckets := p.Buckets()
	for _, name := range BucketOrder {
		for _, term := range buckets[name] {
			seen[term] = true
		}
	}
	keywords := make([]string, 0, len(seen))
	for term := range seen {
		keywords = append(keywords, term)
	}
	sort.Strings(keywords)
	return keywords
}
