package services

import (
	"fmt"
	"net/http"

	"github/itish2003/qwenprimer/config"

	log "github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// NewOllamaEmbedder returns the sentence-embedding encoder. Documents and questions
// must go through the same embedder so that they share one vector space.
func NewOllamaEmbedder(cfg *config.Config, httpClient *http.Client) (embeddings.Embedder, error) {
	llm, err := ollama.New(
		ollama.WithModel(cfg.EmbeddingModel),
		ollama.WithServerURL(cfg.OllamaURL),
		ollama.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create ollama embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("could not create embedder: %w", err)
	}
	log.Printf("SERVICE: Embedding model '%s' ready", cfg.EmbeddingModel)
	return embedder, nil
}
