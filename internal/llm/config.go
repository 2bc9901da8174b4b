// Package llm provides model configuration and a client abstraction over the
// Gemini API. Callers describe each call with a Request; the client maps it
// onto provider settings and reports token usage back.
package llm

// ModelTier represents the capability level of a model
type ModelTier string

const (
	// TierLite is for simple tasks: audits, short classification calls
	TierLite ModelTier = "lite"
	// TierStandard is for structured generation with moderate reasoning
	TierStandard ModelTier = "standard"
	// TierAdvanced is for complex drafting and repair
	TierAdvanced ModelTier = "advanced"
)

// CallMode selects the response contract for a call. Modes are mutually
// exclusive: a structured JSON response and grounded web retrieval cannot be
// requested on the same call.
type CallMode int

const (
	// ModeText requests free-form text with no structural constraint.
	ModeText CallMode = iota
	// ModeStrictJSON constrains the model to emit a single JSON document.
	ModeStrictJSON
	// ModeFetchTool exposes a page-fetch function the model may call to
	// retrieve a posting; the client services the calls locally.
	// Incompatible with ModeStrictJSON.
	ModeFetchTool
)

func (m CallMode) String() string {
	switch m {
	case ModeStrictJSON:
		return "strict_json"
	case ModeFetchTool:
		return "fetch_tool"
	default:
		return "text"
	}
}

// Config holds the model configuration for the application
type Config struct {
	Models map[ModelTier]string
}

// DefaultConfig returns the default Gemini model mapping
func DefaultConfig() *Config {
	return &Config{
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := &Config{Models: make(map[ModelTier]string, len(c.Models)+1)}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return newConfig
}
