package semantic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiProposer implements Proposer on the Gemini API with a typed JSON
// response schema, so the model is constrained to the ChunkSet shape.
type GeminiProposer struct {
	client *genai.Client
	model  string
}

// NewGeminiProposer builds the agent client. Construct once at startup and
// inject; the client owns connection state.
func NewGeminiProposer(ctx context.Context, apiKey, model string) (*GeminiProposer, error) {
	if apiKey == "" {
		return nil, errors.New("missing gemini api key")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiProposer{client: c, model: model}, nil
}

var chunkSetSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"parent_chunks": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"content":          {Type: genai.TypeString},
					"thematic_summary": {Type: genai.TypeString},
					"confidence_score": {Type: genai.TypeNumber},
					"child_chunks": {
						Type: genai.TypeArray,
						Items: &genai.Schema{
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"content":         {Type: genai.TypeString},
								"sequence_number": {Type: genai.TypeInteger},
								"semantic_role":   {Type: genai.TypeString},
							},
							Required: []string{"content", "sequence_number", "semantic_role"},
						},
					},
				},
				Required: []string{"content", "thematic_summary", "confidence_score", "child_chunks"},
			},
		},
	},
	Required: []string{"parent_chunks"},
}

// Propose runs one agent call and decodes the typed result.
func (g *GeminiProposer) Propose(ctx context.Context, text string, pctx PromptContext) (*ChunkSet, Usage, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    chunkSetSchema,
		Temperature:       genai.Ptr[float32](0.2),
	}

	res, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
		genai.NewContentFromText(buildPrompt(text, pctx), genai.RoleUser),
	}, cfg)
	if err != nil {
		return nil, Usage{}, fmt.Errorf("gemini call: %w", err)
	}

	usage := Usage{}
	if res.UsageMetadata != nil {
		usage.Tokens = int(res.UsageMetadata.TotalTokenCount)
	}

	raw := stripCodeFence(res.Text())
	if raw == "" {
		return nil, usage, fmt.Errorf("empty response from model")
	}

	var set ChunkSet
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		return nil, usage, fmt.Errorf("parse chunk set: %w (raw: %.200s)", err, raw)
	}
	return &set, usage, nil
}

var codeFenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// stripCodeFence removes a markdown fence the model may wrap JSON in even
// when a JSON response type is requested.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}
