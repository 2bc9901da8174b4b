// Package session owns the tailoring session lifecycle: creation with
// validated, normalized parameters, the claim handshake, cooperative
// cancellation, stuck-session detection, and finalization.
package session

import "github.com/jonathan/resume-tailor/internal/types"

// Parameter defaults and bounds.
const (
	DefaultBulletsPerSection = 3
	DefaultTone              = "confident and metric-driven"
	DefaultStretchLevel      = 1
	DefaultTemperature       = 0.35
	DefaultMaxOutputTokens   = 3500

	MinOutputTokens = 1000
	MaxOutputTokens = 6500
)

// DefaultSections is the section plan used when the caller supplies none.
var DefaultSections = []string{"Professional Experience", "Leadership", "Projects"}

// DefaultParameters returns a fully populated parameter set.
func DefaultParameters() types.Parameters {
	return types.Parameters{
		Sections:          append([]string(nil), DefaultSections...),
		BulletsPerSection: DefaultBulletsPerSection,
		Tone:              DefaultTone,
		StretchLevel:      DefaultStretchLevel,
		IncludeSummary:    true,
		Temperature:       DefaultTemperature,
		MaxOutputTokens:   DefaultMaxOutputTokens,
	}
}

// Normalize fills omitted parameters with defaults and clamps the output
// token budget into its supported range. User-supplied values inside bounds
// pass through untouched.
func Normalize(p types.Parameters) types.Parameters {
	if len(p.Sections) == 0 {
		p.Sections = append([]string(nil), DefaultSections...)
	}
	if len(p.SectionLayout) == 0 {
		p.SectionLayout = append([]string(nil), p.Sections...)
	}
	if p.BulletsPerSection == 0 {
		p.BulletsPerSection = DefaultBulletsPerSection
	}
	if p.Tone == "" {
		p.Tone = DefaultTone
	}
	if p.Temperature == 0 {
		p.Temperature = DefaultTemperature
	}
	switch {
	case p.MaxOutputTokens == 0:
		p.MaxOutputTokens = DefaultMaxOutputTokens
	case p.MaxOutputTokens < MinOutputTokens:
		p.MaxOutputTokens = MinOutputTokens
	case p.MaxOutputTokens > MaxOutputTokens:
		p.MaxOutputTokens = MaxOutputTokens
	}
	return p
}
