// Package ats computes a deterministic compatibility score between the
// tailored resume content and the job profile. Scoring is a pure function of
// its inputs: no model calls, no clock, no randomness.
package ats

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jonathan/resume-tailor/internal/types"
	"github.com/jonathan/resume-tailor/internal/vocab"
)

// Component weights. Required skill coverage dominates the overall score.
const (
	requiredWeight  = 0.60
	keywordWeight   = 0.25
	preferredWeight = 0.15
)

// metricsTarget is the share of bullets that should carry a quantified
// outcome before the scorer stops suggesting more metrics.
const metricsTarget = 0.8

// Word-count band for a well-formed bullet.
const (
	bulletMinWords = 6
	bulletMaxWords = 32
)

var metricsPattern = regexp.MustCompile(`\d+(\.\d+)?%|\$\s?\d|\d+(\.\d+)?x\b|\b\d{2,}\b`)

// Scorer evaluates resumes against job profiles.
type Scorer struct {
	vocab *vocab.Vocabulary
}

// New builds a Scorer. A nil vocabulary selects the built-in tables.
func New(v *vocab.Vocabulary) *Scorer {
	if v == nil {
		v = vocab.Default()
	}
	return &Scorer{vocab: v}
}

// Score computes the ATS breakdown for the given bullets and user skills.
// Calling it twice with the same inputs yields identical results, and the
// inputs are never mutated.
func (s *Scorer) Score(profile *types.JobProfile, bullets []types.BulletRecord, userSkills []string) *types.ATSBreakdown {
	corpus := s.buildCorpus(bullets, userSkills)

	requiredCov, missingRequired := coverage(profile.RequiredSkills, corpus)
	preferredCov, _ := coverage(profile.PreferredSkills, corpus)
	keywordCov, _ := coverage(profile.AllKeywords(), corpus)

	breakdown := &types.ATSBreakdown{
		RequiredCoverage:  requiredCov,
		PreferredCoverage: preferredCov,
		KeywordCoverage:   keywordCov,
		Overall: round1(requiredWeight*requiredCov +
			keywordWeight*keywordCov +
			preferredWeight*preferredCov),
	}
	breakdown.Suggestions = s.suggestions(breakdown, missingRequired, bullets)
	return breakdown
}

// corpus is the searchable text and skill set derived from the resume.
type corpus struct {
	text   string
	skills map[string]bool
}

func (s *Scorer) buildCorpus(bullets []types.BulletRecord, userSkills []string) corpus {
	var b strings.Builder
	for _, bullet := range bullets {
		b.WriteString(bullet.Text)
		b.WriteString(" ")
	}

	skills := make(map[string]bool, len(userSkills))
	for _, skill := range userSkills {
		if n := s.vocab.Normalize(skill); n != "" {
			skills[n] = true
		}
	}
	return corpus{text: strings.ToLower(b.String()), skills: skills}
}

// coverage returns the percentage of terms present in the corpus and the
// sorted list of missing terms. An empty term list means nothing is asked
// for, so coverage is total.
func coverage(terms []string, c corpus) (float64, []string) {
	if len(terms) == 0 {
		return 100.0, nil
	}

	matched := 0
	var missing []string
	for _, term := range terms {
		if c.skills[term] || containsTerm(c.text, term) {
			matched++
		} else {
			missing = append(missing, term)
		}
	}
	return round1(100.0 * float64(matched) / float64(len(terms))), missing
}

// suggestions derives actionable advice from the breakdown. Missing required
// skills come first, in sorted order, each marked critical.
func (s *Scorer) suggestions(breakdown *types.ATSBreakdown, missingRequired []string, bullets []types.BulletRecord) []string {
	var out []string
	for _, skill := range missingRequired {
		out = append(out, fmt.Sprintf("critical: missing required skill: %s", skill))
	}

	if len(bullets) > 0 {
		withMetrics := 0
		weakStarts := 0
		offLength := 0
		for _, b := range bullets {
			if b.HasMetrics || metricsPattern.MatchString(b.Text) {
				withMetrics++
			}
			if !s.startsWithActionVerb(b.Text) {
				weakStarts++
			}
			if n := len(strings.Fields(b.Text)); n < bulletMinWords || n > bulletMaxWords {
				offLength++
			}
		}
		if float64(withMetrics) < metricsTarget*float64(len(bullets)) {
			out = append(out, "add quantified outcomes to more bullets")
		}
		if weakStarts > 0 {
			out = append(out, fmt.Sprintf("start with an action verb: %d bullet(s) open weakly", weakStarts))
		}
		if offLength > 0 {
			out = append(out, fmt.Sprintf("rework bullet length: %d bullet(s) outside the %d-%d word range", offLength, bulletMinWords, bulletMaxWords))
		}
	}

	switch {
	case breakdown.Overall < 50:
		out = append(out, "low match: consider whether this role fits the experience profile")
	case breakdown.Overall < 85:
		out = append(out, "moderate match: work the missing terms into existing bullets where truthful")
	default:
		out = append(out, "strong match: the resume aligns well with the job requirements")
	}
	return out
}

// startsWithActionVerb reports whether the bullet opens with a known action
// verb. Trailing punctuation on the first word is ignored.
func (s *Scorer) startsWithActionVerb(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	first := strings.ToLower(strings.Trim(fields[0], ",.;:"))
	return s.vocab.ActionVerbs[first]
}

// containsTerm reports whether term occurs in text on word boundaries.
func containsTerm(text, term string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], term)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(term)
		beforeOK := start == 0 || !isWordByte(text[start-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
