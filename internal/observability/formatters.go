package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/resume-tailor/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func (p *Printer) writeTermList(sb *strings.Builder, label string, terms []string, limit int) {
	if len(terms) == 0 {
		return
	}
	sb.WriteString(label + ":\n")
	count := min(len(terms), limit)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", terms[i]))
	}
	if len(terms) > limit {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(terms)-limit))
	}
	sb.WriteString("\n")
}

// PrintJobProfile outputs a human-readable summary of the extracted
// requirement buckets.
func (p *Printer) PrintJobProfile(profile *types.JobProfile) {
	if profile == nil {
		return
	}

	var sb strings.Builder
	p.writeTermList(&sb, "Required", profile.RequiredSkills, maxItemsToShow)
	p.writeTermList(&sb, "Preferred", profile.PreferredSkills, 3)
	p.writeTermList(&sb, "Certifications", profile.Certifications, 3)

	if len(profile.ExperienceLevel) > 0 {
		sb.WriteString(fmt.Sprintf("Experience: %s\n", strings.Join(profile.ExperienceLevel, ", ")))
	}
	if len(profile.Education) > 0 {
		sb.WriteString(fmt.Sprintf("Education:  %s\n", strings.Join(profile.Education, ", ")))
	}

	content := strings.TrimSuffix(sb.String(), "\n")
	if content == "" {
		content = "(no structured requirements found)"
	}
	p.printBox("JOB PROFILE", content)
}

// PrintSnippets outputs the snippets selected for the LLM context, with
// scores and bucket attribution.
func (p *Printer) PrintSnippets(snips []types.ExperienceSnippet) {
	if len(snips) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total selected: %d\n\n", len(snips)))

	count := min(len(snips), maxItemsToShow)
	for i := 0; i < count; i++ {
		s := snips[i]
		sb.WriteString(fmt.Sprintf("#%d  %s (%s)\n", i+1, s.NodeID, s.Bucket))
		sb.WriteString(fmt.Sprintf("    Score: %.2f", s.Score))
		if s.HasMetrics {
			sb.WriteString("  [metrics]")
		}
		sb.WriteString("\n")
		if len(s.Skills) > 0 {
			skills := strings.Join(s.Skills, ", ")
			if len(skills) > 40 {
				skills = skills[:37] + "..."
			}
			sb.WriteString(fmt.Sprintf("    Skills: %s\n", skills))
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}
	if len(snips) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more\n", len(snips)-maxItemsToShow))
	}

	p.printBox("SELECTED SNIPPETS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintGuardrails outputs the per-bullet audit outcomes.
func (p *Printer) PrintGuardrails(findings []types.GuardrailFinding) {
	if len(findings) == 0 {
		return
	}

	var sb strings.Builder
	passed := 0
	for _, f := range findings {
		if f.Status != types.GuardrailUnresolved {
			passed++
		}
	}
	sb.WriteString(fmt.Sprintf("Passed %d of %d bullets\n\n", passed, len(findings)))

	for _, f := range findings {
		sb.WriteString(fmt.Sprintf("  %s  %s", f.BulletRef, f.Status))
		if f.ReasonCode != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", f.ReasonCode))
		}
		sb.WriteString("\n")
	}

	p.printBox("GUARDRAIL AUDIT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintATS outputs the deterministic compatibility score breakdown.
func (p *Printer) PrintATS(breakdown *types.ATSBreakdown) {
	if breakdown == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Overall:   %5.1f\n", breakdown.Overall))
	sb.WriteString(fmt.Sprintf("Required:  %5.1f\n", breakdown.RequiredCoverage))
	sb.WriteString(fmt.Sprintf("Keywords:  %5.1f\n", breakdown.KeywordCoverage))
	sb.WriteString(fmt.Sprintf("Preferred: %5.1f\n", breakdown.PreferredCoverage))

	if len(breakdown.Suggestions) > 0 {
		sb.WriteString("\nSuggestions:\n")
		for _, s := range breakdown.Suggestions {
			sb.WriteString(fmt.Sprintf("  • %s\n", s))
		}
	}

	p.printBox("ATS SCORE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintTokenUsage outputs the session's cumulative token spend.
func (p *Printer) PrintTokenUsage(usage types.TokenUsage) {
	content := fmt.Sprintf("Prompt:     %d\nCompletion: %d\nTotal:      %d",
		usage.Prompt, usage.Completion, usage.Total)
	p.printBox("TOKEN USAGE", content)
}
