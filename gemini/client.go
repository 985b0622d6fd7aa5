package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/quillab/quill"
)

// Interface compliance check.
var _ quill.Completer = (*Client)(nil)

// Client implements [quill.Completer] for the Google Gemini API.
type Client struct {
	client *genai.Client
	model  string
}

// Option configures a [Client].
type Option func(*Client)

// WithModel sets the model ID. Default is gemini-3.1-pro-preview.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// New creates a new Gemini [Client] with the given API key and options.
// An empty key fails with [quill.ErrMissingCredential] and names the fix.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: set GEMINI_API_KEY or the gemini_api_key config field: %w", quill.ErrMissingCredential)
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	c := &Client{
		client: gc,
		model:  defaultModel,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Open sends a streaming request to the Gemini API and returns a
// [quill.Stream] of token and grounding events.
func (c *Client) Open(ctx context.Context, req quill.Request) (quill.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	contents := BuildContents(req)
	config := buildConfig(req)

	iter := c.client.Models.GenerateContentStream(ctx, c.model, contents, config)
	return NewStreamFromIter(ctx, iter), nil
}

func buildConfig(req quill.Request) *genai.GenerateContentConfig {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
		if req.Mode == quill.ModeTitle {
			maxTokens = titleMaxTokens
		}
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt(req.Mode, req.Tone)}},
		},
	}

	// Search grounding only for question answering; generated drafts and
	// titles come from the captured context alone.
	if req.Mode == quill.ModeAsk {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		config.Temperature = &temp
	}

	return config
}

// systemPrompt maps mode and tone to the model's system instruction.
func systemPrompt(mode quill.Mode, tone quill.Tone) string {
	var b strings.Builder
	switch mode {
	case quill.ModeAsk:
		b.WriteString("Answer the user's question about their current screen content. Be direct and brief.")
	case quill.ModeTitle:
		b.WriteString("Produce a short title for the captured content. Reply with the title only, no quotes.")
	default:
		b.WriteString("Continue or rewrite the user's draft so it is ready to send. Reply with the text only.")
	}
	if tone != quill.ToneNeutral {
		fmt.Fprintf(&b, " Use a %s tone.", string(tone))
	}
	return b.String()
}

// BuildContents converts a request into the genai content list.
// Exported for testing.
func BuildContents(req quill.Request) []*genai.Content {
	var b strings.Builder
	fmt.Fprintf(&b, "Screen context from %s:\n", req.Context.App.Name)
	b.WriteString(req.Context.CompactText())
	if acc := req.Context.Accessibility; acc != nil && acc.SelectedText != "" {
		b.WriteString("\n\nSelected text:\n")
		b.WriteString(acc.SelectedText)
	}
	if req.Instruction != "" {
		b.WriteString("\n\nInstruction:\n")
		b.WriteString(req.Instruction)
	}

	return []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: b.String()}},
	}}
}
