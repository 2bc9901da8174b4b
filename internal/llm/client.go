package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jonathan/resume-tailor/internal/types"
)

// Request describes a single model call.
type Request struct {
	// Instructions is the system-level framing for the call.
	Instructions string
	// Payload is the user content: posting profile, snippets, prior
	// responses for corrective retries.
	Payload string
	// Mode selects the response contract. ModeStrictJSON and ModeFetchTool
	// are mutually exclusive by construction of the enum.
	Mode CallMode
	// Tier selects model capability. Zero value falls back per Config.
	Tier ModelTier
	// Temperature in [0, 2].
	Temperature float32
	// MaxOutputTokens caps the response; zero leaves the provider default.
	MaxOutputTokens int32
}

// Response carries the model output and its token accounting.
type Response struct {
	Text  string
	Usage types.TokenUsage
}

// Client is an abstraction over the model provider.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Close() error
}

// PageFetcher downloads a page and returns its visible text. It backs the
// fetch tool exposed to the model in ModeFetchTool.
type PageFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// fetchToolName is the function the model may call in ModeFetchTool.
const fetchToolName = "fetch_page"

// maxFetchRounds bounds the tool-call round trips in a single Generate.
const maxFetchRounds = 3

// GeminiClient implements Client against the Gemini API.
type GeminiClient struct {
	client  *genai.Client
	config  *Config
	fetcher PageFetcher
}

// NewGeminiClient creates a Gemini-backed client. fetcher services the fetch
// tool in ModeFetchTool; a nil fetcher reports fetch failures to the model
// instead of page text.
func NewGeminiClient(ctx context.Context, config *Config, apiKey string, fetcher PageFetcher) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config == nil {
		config = DefaultConfig()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{client: client, config: config, fetcher: fetcher}, nil
}

// Generate performs one model call per the request contract.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (*Response, error) {
	modelName := c.config.GetModel(req.Tier)
	if modelName == "" {
		return nil, fmt.Errorf("no model configured for tier %s", req.Tier)
	}

	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(req.Temperature)
	if req.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(req.MaxOutputTokens)
	}
	if req.Instructions != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.Instructions)},
		}
	}

	switch req.Mode {
	case ModeStrictJSON:
		model.ResponseMIMEType = "application/json"
	case ModeFetchTool:
		model.Tools = []*genai.Tool{fetchTool()}
		return c.generateWithFetchTool(ctx, model, req)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Payload))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := extractText(resp)
	if err != nil {
		return nil, err
	}

	return &Response{Text: text, Usage: usageOf(resp)}, nil
}

// fetchTool declares the page-fetch function the model may call when the
// posting text has to be retrieved on its behalf.
func fetchTool() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{{
			Name:        fetchToolName,
			Description: "Download a web page and return its visible text.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"url": {
						Type:        genai.TypeString,
						Description: "Absolute URL of the page to fetch.",
					},
				},
				Required: []string{"url"},
			},
		}},
	}
}

// generateWithFetchTool runs a chat turn loop, servicing fetch_page calls
// until the model answers with text or the round bound is hit. Usage from
// every turn is accumulated.
func (c *GeminiClient) generateWithFetchTool(ctx context.Context, model *genai.GenerativeModel, req Request) (*Response, error) {
	session := model.StartChat()

	var usage types.TokenUsage
	resp, err := session.SendMessage(ctx, genai.Text(req.Payload))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	usage.Add(usageOf(resp))

	for round := 0; round < maxFetchRounds; round++ {
		if len(resp.Candidates) == 0 {
			break
		}
		calls := resp.Candidates[0].FunctionCalls()
		if len(calls) == 0 {
			break
		}

		replies := make([]genai.Part, 0, len(calls))
		for _, call := range calls {
			replies = append(replies, genai.FunctionResponse{
				Name:     call.Name,
				Response: c.serveFetchCall(ctx, call),
			})
		}

		resp, err = session.SendMessage(ctx, replies...)
		if err != nil {
			return nil, fmt.Errorf("failed to generate content: %w", err)
		}
		usage.Add(usageOf(resp))
	}

	text, err := extractText(resp)
	if err != nil {
		return nil, err
	}
	return &Response{Text: text, Usage: usage}, nil
}

// serveFetchCall executes one fetch_page call. Failures go back to the model
// as an error field so it can fall back on what it already knows.
func (c *GeminiClient) serveFetchCall(ctx context.Context, call genai.FunctionCall) map[string]any {
	if call.Name != fetchToolName {
		return map[string]any{"error": fmt.Sprintf("unknown function %q", call.Name)}
	}
	url, _ := call.Args["url"].(string)
	if url == "" {
		return map[string]any{"error": "missing url argument"}
	}
	if c.fetcher == nil {
		return map[string]any{"error": "page fetching is not available"}
	}

	text, err := c.fetcher.FetchText(ctx, url)
	if err != nil {
		return map[string]any{"error": fmt.Sprintf("fetch failed: %v", err)}
	}
	return map[string]any{"text": text}
}

func usageOf(resp *genai.GenerateContentResponse) types.TokenUsage {
	if resp.UsageMetadata == nil {
		return types.TokenUsage{}
	}
	return types.TokenUsage{
		Prompt:     int(resp.UsageMetadata.PromptTokenCount),
		Completion: int(resp.UsageMetadata.CandidatesTokenCount),
		Total:      int(resp.UsageMetadata.TotalTokenCount),
	}
}

// Close releases resources held by the client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}
