package services

import (
	"context"
	"fmt"
	"net/http"

	"github/itish2003/qwenprimer/config"
	"github/itish2003/qwenprimer/models"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// GeminiGenerator sends prompts to the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates the Gemini client. GEMINI_API_KEY must be set.
func NewGeminiGenerator(ctx context.Context, cfg *config.Config, httpClient *http.Client) (*GeminiGenerator, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.GeminiAPIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	log.Printf("SERVICE: Gemini generator ready with model '%s'", cfg.GeminiModel)
	return &GeminiGenerator{client: client, model: cfg.GeminiModel}, nil
}

func (g *GeminiGenerator) Name() string { return "gemini/" + g.model }

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, opts models.DecodingOptions) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), generateConfig(opts))
	if err != nil {
		return "", fmt.Errorf("gemini api call failed: %w", err)
	}
	return result.Text(), nil
}

func generateConfig(opts models.DecodingOptions) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(opts.MaxTokens),
		StopSequences:   opts.Stop,
	}
	if opts.Sample {
		gc.Temperature = genai.Ptr(float32(opts.Temperature))
		if opts.TopP > 0 {
			gc.TopP = genai.Ptr(float32(opts.TopP))
		}
	} else {
		gc.Temperature = genai.Ptr[float32](0)
		gc.TopK = genai.Ptr[float32](1)
	}
	return gc
}
