// Package jobprofile turns a raw job posting into a structured profile of
// requirement buckets. Extraction is fully deterministic: it relies on
// curated vocabularies and lexical cues, never on model calls, so the same
// posting always yields the same profile.
package jobprofile

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/types"
	"github.com/jonathan/resume-tailor/internal/vocab"
)

// Fetcher retrieves the text of a posting URL. Implementations bound their
// own retries and timeouts.
type Fetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Builder extracts requirement buckets from job postings.
type Builder struct {
	vocab   *vocab.Vocabulary
	fetcher Fetcher
	logger  *zap.Logger
}

// New builds a Builder. A nil vocabulary selects the built-in tables; a nil
// fetcher disables URL retrieval.
func New(v *vocab.Vocabulary, fetcher Fetcher, logger *zap.Logger) *Builder {
	if v == nil {
		v = vocab.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{vocab: v, fetcher: fetcher, logger: logger}
}

var (
	yearsPattern     = regexp.MustCompile(`(?i)(\d{1,2})\s*\+?\s*(?:-\s*\d{1,2}\s*)?years?(?:\s+of)?(?:\s+\w+){0,2}\s+experience`)
	seniorityPattern = regexp.MustCompile(`(?i)\b(senior|junior|staff|principal|lead|entry[- ]level|mid[- ]level|intern)\b`)
	degreePattern    = regexp.MustCompile(`(?i)\b(bachelor'?s?|master'?s?|phd|ph\.d\.?|doctorate|associate'?s?|b\.?s\.?c?|m\.?s\.?c?|mba)\b[^.\n]{0,60}`)
	properPhrase     = regexp.MustCompile(`\b[A-Z][a-zA-Z+#.]*(?:\s+[A-Z][a-zA-Z+#.]*)+\b`)
	tokenPattern     = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+#./-]*`)
)

// section classifications for requirement proximity
type sectionKind int

const (
	sectionNeutral sectionKind = iota
	sectionRequired
	sectionPreferred
)

// Build extracts a JobProfile from the posting snapshot. When the snapshot
// carries no text but has a source URL, the page is fetched; a failed fetch
// degrades to an empty raw text rather than failing the build.
func (b *Builder) Build(ctx context.Context, job types.JobSnapshot) (*types.JobProfile, error) {
	text := strings.TrimSpace(job.RawText)

	if text == "" && job.SourceURL == "" {
		return nil, &types.ValidationError{
			Component: "jobprofile",
			Message:   "job posting has neither raw text nor a source URL",
		}
	}

	if text == "" && b.fetcher != nil {
		fetched, err := b.fetcher.FetchText(ctx, job.SourceURL)
		if err != nil {
			b.logger.Warn("posting fetch failed, building profile from empty text",
				zap.String("url", job.SourceURL),
				zap.Error(err))
		} else {
			text = fetched
		}
	}

	profile := b.extract(text)
	profile.SourceURL = job.SourceURL
	profile.Description = text
	return profile, nil
}

// extract runs the deterministic bucket extraction over the posting text.
func (b *Builder) extract(text string) *types.JobProfile {
	profile := &types.JobProfile{}
	if strings.TrimSpace(text) == "" {
		return profile
	}

	required := map[string]bool{}
	preferred := map[string]bool{}
	verbs := map[string]bool{}
	certs := map[string]bool{}
	rawTerms := map[string]bool{}
	var levels []string
	var education []string
	seenLevel := map[string]bool{}
	seenEdu := map[string]bool{}

	section := sectionNeutral
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if kind, ok := classifyHeader(trimmed); ok {
			section = kind
			continue
		}

		lineKind := section
		switch {
		case hasRequiredCue(trimmed):
			lineKind = sectionRequired
		case hasPreferredCue(trimmed):
			lineKind = sectionPreferred
		}

		for _, m := range yearsPattern.FindAllString(trimmed, -1) {
			level := strings.ToLower(strings.Join(strings.Fields(m), " "))
			if !seenLevel[level] {
				seenLevel[level] = true
				levels = append(levels, level)
			}
		}
		if m := seniorityPattern.FindString(trimmed); m != "" {
			level := strings.ToLower(m)
			if !seenLevel[level] {
				seenLevel[level] = true
				levels = append(levels, level)
			}
		}
		for _, m := range degreePattern.FindAllString(trimmed, -1) {
			edu := strings.ToLower(strings.Join(strings.Fields(m), " "))
			if !seenEdu[edu] {
				seenEdu[edu] = true
				education = append(education, edu)
			}
		}

		lower := strings.ToLower(trimmed)
		for cert := range b.vocab.Certifications {
			if containsTerm(lower, cert) {
				certs[cert] = true
			}
		}

		for _, token := range b.tokenize(trimmed) {
			switch {
			case b.vocab.ActionVerbs[token]:
				verbs[token] = true
			case b.vocab.IsSkill(token):
				switch lineKind {
				case sectionRequired:
					required[token] = true
				case sectionPreferred:
					preferred[token] = true
				default:
					rawTerms[token] = true
				}
			}
		}

		// Multi-word skills ("machine learning") never tokenize cleanly,
		// so probe the whole line for them.
		for skill := range b.vocab.TechKeywords {
			if !strings.Contains(skill, " ") {
				continue
			}
			if containsTerm(lower, skill) {
				switch lineKind {
				case sectionRequired:
					required[skill] = true
				case sectionPreferred:
					preferred[skill] = true
				default:
					rawTerms[skill] = true
				}
			}
		}
	}

	// Proper-noun phrases catch product and team names the vocabularies
	// do not know about.
	for _, phrase := range properPhrase.FindAllString(text, -1) {
		normalized := strings.ToLower(phrase)
		if len(normalized) > 40 || allStopwords(b.vocab, normalized) {
			continue
		}
		rawTerms[normalized] = true
	}

	// A skill claimed as required never also counts as preferred or raw.
	for skill := range required {
		delete(preferred, skill)
		delete(rawTerms, skill)
	}
	for skill := range preferred {
		delete(rawTerms, skill)
	}

	profile.RequiredSkills = sortedKeys(required)
	profile.PreferredSkills = sortedKeys(preferred)
	profile.ActionVerbs = sortedKeys(verbs)
	profile.Certifications = sortedKeys(certs)
	profile.ExperienceLevel = levels
	profile.Education = education
	profile.RawText = sortedKeys(rawTerms)
	return profile
}

// tokenize splits a line into normalized candidate terms.
func (b *Builder) tokenize(line string) []string {
	raw := tokenPattern.FindAllString(line, -1)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		normalized := b.vocab.Normalize(t)
		if normalized == "" || b.vocab.IsStopword(normalized) {
			continue
		}
		tokens = append(tokens, normalized)
	}
	return tokens
}

var requiredHeaders = []string{
	"requirements", "required qualifications", "minimum qualifications",
	"what you'll need", "what you need", "must have", "basic qualifications",
	"qualifications",
}

var preferredHeaders = []string{
	"preferred qualifications", "nice to have", "nice-to-have", "bonus points",
	"preferred", "it's a plus", "desirable",
}

// classifyHeader reports whether the line is a section heading and which
// requirement strength it introduces. Headings are short lines, typically
// ending with a colon.
func classifyHeader(line string) (sectionKind, bool) {
	lower := strings.ToLower(strings.TrimRight(line, ": "))
	if len(lower) > 48 {
		return sectionNeutral, false
	}
	for _, h := range preferredHeaders {
		if strings.Contains(lower, h) {
			return sectionPreferred, true
		}
	}
	for _, h := range requiredHeaders {
		if strings.Contains(lower, h) {
			return sectionRequired, true
		}
	}
	if strings.Contains(lower, "responsibilit") || strings.Contains(lower, "about") ||
		strings.Contains(lower, "benefits") || strings.Contains(lower, "what you'll do") {
		return sectionNeutral, true
	}
	return sectionNeutral, false
}

func hasRequiredCue(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, "required") ||
		strings.Contains(lower, "must have") ||
		strings.Contains(lower, "must-have")
}

func hasPreferredCue(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, "preferred") ||
		strings.Contains(lower, "nice to have") ||
		strings.Contains(lower, "a plus") ||
		strings.Contains(lower, "bonus")
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

func allStopwords(v *vocab.Vocabulary, phrase string) bool {
	for _, w := range strings.Fields(phrase) {
		if !v.IsStopword(w) {
			return false
		}
	}
	return true
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
