package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/resume-tailor/internal/types"
)

func TestPrintJobProfile(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	profile := &types.JobProfile{
		RequiredSkills:  []string{"go", "kubernetes"},
		PreferredSkills: []string{"rust"},
		ExperienceLevel: []string{"senior"},
	}

	p.PrintJobProfile(profile)
	output := buf.String()

	assert.Contains(t, output, "JOB PROFILE")
	assert.Contains(t, output, "go")
	assert.Contains(t, output, "kubernetes")
	assert.Contains(t, output, "rust")
	assert.Contains(t, output, "senior")
}

func TestPrintJobProfile_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintJobProfile(nil)

	assert.Empty(t, buf.String())
}

func TestPrintJobProfile_EmptyBuckets(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintJobProfile(&types.JobProfile{})

	assert.Contains(t, buf.String(), "no structured requirements")
}

func TestPrintSnippets(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	snips := []types.ExperienceSnippet{
		{NodeID: "work-1", Bucket: types.BucketRequiredSkills, Score: 8.5, HasMetrics: true, Skills: []string{"go"}},
		{NodeID: "proj-2", Bucket: types.BucketPreferredSkills, Score: 3.1},
	}

	p.PrintSnippets(snips)
	output := buf.String()

	assert.Contains(t, output, "SELECTED SNIPPETS")
	assert.Contains(t, output, "work-1")
	assert.Contains(t, output, "proj-2")
	assert.Contains(t, output, "8.50")
	assert.Contains(t, output, "[metrics]")
}

func TestPrintSnippets_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintSnippets(nil)

	assert.Empty(t, buf.String())
}

func TestPrintGuardrails(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	findings := []types.GuardrailFinding{
		{BulletRef: "b1", Status: types.GuardrailPass},
		{BulletRef: "b2", Status: types.GuardrailUnresolved, ReasonCode: types.ReasonUnsupportedClaim},
	}

	p.PrintGuardrails(findings)
	output := buf.String()

	assert.Contains(t, output, "GUARDRAIL AUDIT")
	assert.Contains(t, output, "Passed 1 of 2")
	assert.Contains(t, output, "unsupported_claim")
}

func TestPrintATS(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintATS(&types.ATSBreakdown{
		RequiredCoverage: 50.0,
		KeywordCoverage:  60.0,
		Overall:          47.5,
		Suggestions:      []string{"critical: missing required skill: sql"},
	})
	output := buf.String()

	assert.Contains(t, output, "ATS SCORE")
	assert.Contains(t, output, "47.5")
	assert.Contains(t, output, "missing required skill: sql")
}

func TestTruncateForLog(t *testing.T) {
	assert.Equal(t, "abc", TruncateForLog("abc", 10))
	assert.Equal(t, "abcde...", TruncateForLog("abcdefghij", 5))
	assert.Equal(t, "", TruncateForLog("abc", 0))
	assert.Equal(t, "trimmed", TruncateForLog("  trimmed  ", 10))
}
