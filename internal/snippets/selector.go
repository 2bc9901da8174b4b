// Package snippets selects the experience evidence most relevant to a job
// profile. Selection is deterministic: identical inputs always produce the
// same snippets in the same order.
package snippets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/types"
	"github.com/jonathan/resume-tailor/internal/vocab"
)

// Weights for scoring components. Required skill matches dominate so that
// evidence for hard requirements always outranks tangential experience.
const (
	requiredMatchWeight  = 6.0
	preferredMatchWeight = 3.0
	keywordMatchWeight   = 1.5
	recencyWeight        = 1.5
	currentRoleBonus     = 1.5
)

// DefaultTopK is the number of snippets kept per requirement bucket.
const DefaultTopK = 5

// maxSummaryLen bounds snippet summaries so prompt payloads stay small.
const maxSummaryLen = 280

// metricsPattern spots quantified outcomes in achievement text.
var metricsPattern = regexp.MustCompile(`\d+(\.\d+)?%|\$\s?\d|\d+(\.\d+)?x\b|\b\d{2,}\b`)

// Config tunes snippet selection.
type Config struct {
	TopK        int
	TypeWeights map[types.NodeType]float64
	// Now supplies the reference time for recency scoring. Injected so
	// selection stays reproducible under test.
	Now func() time.Time
}

// DefaultTypeWeights orders node types by how strongly employers weigh them.
func DefaultTypeWeights() map[types.NodeType]float64 {
	return map[types.NodeType]float64{
		types.NodeWork:      1.0,
		types.NodeProject:   0.8,
		types.NodeVolunteer: 0.6,
		types.NodeEducation: 0.4,
	}
}

// Selector ranks experience nodes against a job profile.
type Selector struct {
	cfg    Config
	vocab  *vocab.Vocabulary
	logger *zap.Logger
}

// New builds a Selector, filling in defaults for zero-value config fields.
func New(cfg Config, v *vocab.Vocabulary, logger *zap.Logger) *Selector {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.TypeWeights == nil {
		cfg.TypeWeights = DefaultTypeWeights()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if v == nil {
		v = vocab.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{cfg: cfg, vocab: v, logger: logger}
}

// candidate pairs a node with its score for one requirement bucket.
type candidate struct {
	node    *types.ExperienceNode
	order   int // position in the snapshot, for stable tie-breaking
	bucket  string
	score   float64
	recency float64
}

// Select returns the top-scoring snippets for each requirement bucket,
// deduplicated so each experience node appears at most once.
func (s *Selector) Select(profile *types.JobProfile, snapshot types.ExperienceSnapshot) ([]types.ExperienceSnippet, error) {
	if len(snapshot.Nodes) == 0 {
		return nil, &types.ValidationError{
			Component: "snippets",
			Message:   "experience snapshot has no nodes",
		}
	}

	now := s.cfg.Now()
	byBucket := map[string][]candidate{}

	for i := range snapshot.Nodes {
		node := &snapshot.Nodes[i]
		recency := s.recencyScore(node, now)
		base := s.cfg.TypeWeights[node.Type]
		text := nodeText(node)
		skills := s.normalizedSkills(node)

		reqMatches := countMatches(profile.RequiredSkills, skills, text)
		prefMatches := countMatches(profile.PreferredSkills, skills, text)
		rawMatches := countMatches(profile.RawText, skills, text)

		common := recency*recencyWeight + boolBonus(node.Current, currentRoleBonus)

		if reqMatches > 0 {
			byBucket[types.BucketRequiredSkills] = append(byBucket[types.BucketRequiredSkills], candidate{
				node: node, order: i, bucket: types.BucketRequiredSkills, recency: recency,
				score: float64(reqMatches)*requiredMatchWeight*base + common,
			})
		}
		if prefMatches > 0 {
			byBucket[types.BucketPreferredSkills] = append(byBucket[types.BucketPreferredSkills], candidate{
				node: node, order: i, bucket: types.BucketPreferredSkills, recency: recency,
				score: float64(prefMatches)*preferredMatchWeight*base + common,
			})
		}
		if rawMatches > 0 {
			byBucket[types.BucketRawText] = append(byBucket[types.BucketRawText], candidate{
				node: node, order: i, bucket: types.BucketRawText, recency: recency,
				score: float64(rawMatches)*keywordMatchWeight*base + common,
			})
		}
	}

	var selected []candidate
	for _, bucket := range []string{types.BucketRequiredSkills, types.BucketPreferredSkills, types.BucketRawText} {
		cands := byBucket[bucket]
		sortCandidates(cands)
		if len(cands) > s.cfg.TopK {
			cands = cands[:s.cfg.TopK]
		}
		selected = append(selected, cands...)
	}

	// Nothing matched the profile at all. Fall back to the freshest nodes
	// so generation still has grounding material to work from.
	if len(selected) == 0 {
		s.logger.Debug("no profile matches, falling back to recency selection")
		for i := range snapshot.Nodes {
			node := &snapshot.Nodes[i]
			recency := s.recencyScore(node, now)
			selected = append(selected, candidate{
				node: node, order: i, bucket: types.BucketRawText, recency: recency,
				score: recency*recencyWeight + s.cfg.TypeWeights[node.Type],
			})
		}
		sortCandidates(selected)
		if len(selected) > s.cfg.TopK {
			selected = selected[:s.cfg.TopK]
		}
	}

	selected = dedupeByNode(selected)
	sortCandidates(selected)

	snippets := make([]types.ExperienceSnippet, 0, len(selected))
	for _, c := range selected {
		snippets = append(snippets, s.toSnippet(c))
	}
	return snippets, nil
}

// sortCandidates orders by score descending, then recency descending, then
// snapshot order. The final key makes ordering total and deterministic.
func sortCandidates(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		if cands[i].recency != cands[j].recency {
			return cands[i].recency > cands[j].recency
		}
		return cands[i].order < cands[j].order
	})
}

// dedupeByNode keeps only the best-scoring bucket entry for each node.
func dedupeByNode(cands []candidate) []candidate {
	best := map[string]candidate{}
	for _, c := range cands {
		prev, ok := best[c.node.ID]
		if !ok || c.score > prev.score {
			best[c.node.ID] = c
		}
	}
	out := make([]candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	return out
}

func (s *Selector) toSnippet(c candidate) types.ExperienceSnippet {
	summary := c.node.Description
	if len(c.node.Achievements) > 0 {
		summary = strings.Join(c.node.Achievements, " ")
	}
	summary = truncate(summary, maxSummaryLen)

	return types.ExperienceSnippet{
		NodeID:     c.node.ID,
		Bucket:     c.bucket,
		Type:       c.node.Type,
		Title:      c.node.Title,
		TimeFrame:  timeFrame(c.node),
		Summary:    summary,
		Skills:     c.node.Skills,
		HasMetrics: metricsPattern.MatchString(summary),
		Recency:    c.recency,
		Score:      c.score,
	}
}

// recencyScore decays linearly from 1.0 now to 0.0 at ten years out,
// keyed on when the experience ended. Current roles always score 1.0.
func (s *Selector) recencyScore(node *types.ExperienceNode, now time.Time) float64 {
	if node.Current {
		return 1.0
	}
	ref := node.EndDate
	if ref == "" {
		ref = node.StartDate
	}
	if ref == "" {
		return 0.5
	}
	date, err := time.Parse("2006-01", ref)
	if err != nil {
		return 0.5
	}

	yearsSince := now.Sub(date).Hours() / (24 * 365.25)
	const maxYears = 10.0
	if yearsSince < 0 {
		return 1.0
	}
	if yearsSince >= maxYears {
		return 0.0
	}
	return 1.0 - yearsSince/maxYears
}

func (s *Selector) normalizedSkills(node *types.ExperienceNode) map[string]bool {
	set := make(map[string]bool, len(node.Skills))
	for _, skill := range node.Skills {
		if n := s.vocab.Normalize(skill); n != "" {
			set[n] = true
		}
	}
	return set
}

// countMatches counts profile terms found in the node's tagged skills or,
// failing that, its free text.
func countMatches(terms []string, skills map[string]bool, text string) int {
	matches := 0
	for _, term := range terms {
		if skills[term] || strings.Contains(text, term) {
			matches++
		}
	}
	return matches
}

func nodeText(node *types.ExperienceNode) string {
	var b strings.Builder
	b.WriteString(node.Title)
	b.WriteString(" ")
	b.WriteString(node.Description)
	for _, a := range node.Achievements {
		b.WriteString(" ")
		b.WriteString(a)
	}
	return strings.ToLower(b.String())
}

func timeFrame(node *types.ExperienceNode) string {
	start := node.StartDate
	if start == "" {
		start = "?"
	}
	end := node.EndDate
	if node.Current {
		end = "present"
	} else if end == "" {
		end = "?"
	}
	return fmt.Sprintf("%s to %s", start, end)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if i := strings.LastIndex(cut, " "); i > max/2 {
		cut = cut[:i]
	}
	return cut + "..."
}

func boolBonus(b bool, bonus float64) float64 {
	if b {
		return bonus
	}
	return 0
}
