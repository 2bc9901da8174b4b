package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(errors.New("schema mismatch")))

	assert.True(t, IsRetryable(&googleapi.Error{Code: 429}))
	assert.True(t, IsRetryable(&googleapi.Error{Code: 500}))
	assert.True(t, IsRetryable(&googleapi.Error{Code: 503}))
	assert.False(t, IsRetryable(&googleapi.Error{Code: 400}))
	assert.False(t, IsRetryable(&googleapi.Error{Code: 404}))
}

func TestCallModeString(t *testing.T) {
	assert.Equal(t, "text", ModeText.String())
	assert.Equal(t, "strict_json", ModeStrictJSON.String())
	assert.Equal(t, "fetch_tool", ModeFetchTool.String())
}

func TestConfigModelFallback(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "gemini-2.5-pro", cfg.GetModel(TierAdvanced))

	partial := &Config{Models: map[ModelTier]string{TierStandard: "gemini-2.5-flash"}}
	assert.Equal(t, "gemini-2.5-flash", partial.GetModel(TierAdvanced))

	override := cfg.WithModel(TierLite, "custom-lite")
	assert.Equal(t, "custom-lite", override.GetModel(TierLite))
	assert.Equal(t, "gemini-2.5-flash-lite", cfg.GetModel(TierLite))
}
