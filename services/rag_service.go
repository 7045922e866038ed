package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github/itish2003/qwenprimer/index"
	"github/itish2003/qwenprimer/models"

	log "github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/embeddings"
)

// ErrIndexSizeMismatch means the index and the corpus no longer describe the same documents.
var ErrIndexSizeMismatch = errors.New("index size does not match document count")

// RAGService defines the retrieval and generation operations of the CLI.
type RAGService interface {
	BuildIndex(ctx context.Context, docs []models.Document) error
	Retrieve(ctx context.Context, question string, k int) ([]models.SourceDocument, error)
	QueryRAG(ctx context.Context, req models.QueryTextRequest) (*models.QueryRAGResponse, error)
	Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResponse, error)
	Documents() []models.Document
}

// RAGOption configures the service.
type RAGOption func(*ragServiceImpl)

// WithTopK sets the number of passages retrieved when a request does not say.
func WithTopK(k int) RAGOption {
	return func(r *ragServiceImpl) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithArtifactStore reuses and refreshes an exported flat index for the
// in-memory backend. embeddingModel is part of the corpus fingerprint.
func WithArtifactStore(store *ArtifactStore, embeddingModel string) RAGOption {
	return func(r *ragServiceImpl) {
		r.artifacts = store
		r.embeddingModel = embeddingModel
	}
}

type ragServiceImpl struct {
	embedder       embeddings.Embedder
	index          index.Index
	generator      Generator
	artifacts      *ArtifactStore
	embeddingModel string
	topK           int
	docs           []models.Document
}

// NewRAGService creates a new RAG service instance. The embedder and index may be
// nil when only plain generation is needed.
func NewRAGService(embedder embeddings.Embedder, idx index.Index, generator Generator, opts ...RAGOption) RAGService {
	r := &ragServiceImpl{
		embedder:  embedder,
		index:     idx,
		generator: generator,
		topK:      2,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ragServiceImpl) Documents() []models.Document {
	return r.docs
}

// BuildIndex embeds docs and (re)builds the index from them.
func (r *ragServiceImpl) BuildIndex(ctx context.Context, docs []models.Document) error {
	if r.embedder == nil || r.index == nil {
		return errors.New("rag service has no embedder or index")
	}
	for i := range docs {
		if docs[i].Position != i {
			return fmt.Errorf("document %s has position %d, expected %d", docs[i].ID, docs[i].Position, i)
		}
	}

	fingerprint := ""
	if flat, ok := r.index.(*index.FlatL2); ok && r.artifacts != nil {
		fingerprint = CorpusFingerprint(docs, r.embeddingModel)
		if r.loadArtifact(flat, fingerprint) {
			r.docs = docs
			log.Printf("SERVICE: Index loaded from %s with %d documents", r.artifacts.Dir, r.index.Len())
			return nil
		}
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	log.Printf("SERVICE: Embedding %d documents...", len(texts))
	vectors, err := r.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("could not generate embeddings for documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("%w: embedder returned %d vectors for %d documents", ErrIndexSizeMismatch, len(vectors), len(docs))
	}
	if err := r.index.Build(ctx, vectors); err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}
	if r.index.Len() != len(docs) {
		return fmt.Errorf("%w: index has %d vectors, corpus has %d documents", ErrIndexSizeMismatch, r.index.Len(), len(docs))
	}
	r.docs = docs
	log.Printf("SERVICE: Index ready with %d documents", r.index.Len())

	if flat, ok := r.index.(*index.FlatL2); ok && r.artifacts != nil {
		err := r.artifacts.Export(flat, docs, Manifest{Fingerprint: fingerprint, EmbeddingModel: r.embeddingModel})
		if err != nil {
			log.Printf("SERVICE WARN: could not export index artifact: %v", err)
		}
	}
	return nil
}

// loadArtifact adopts the exported index when it was built from the same corpus.
func (r *ragServiceImpl) loadArtifact(flat *index.FlatL2, fingerprint string) bool {
	loaded, _, manifest, err := r.artifacts.Import()
	if err != nil {
		if !errors.Is(err, ErrNoArtifact) {
			log.Printf("SERVICE WARN: ignoring index artifact: %v", err)
		}
		return false
	}
	if manifest.Fingerprint != fingerprint {
		log.Debug("SERVICE: index artifact belongs to another corpus, rebuilding")
		return false
	}
	*flat = *loaded
	return true
}

// Retrieve returns the k passages closest to question, nearest first.
func (r *ragServiceImpl) Retrieve(ctx context.Context, question string, k int) ([]models.SourceDocument, error) {
	if r.embedder == nil || r.index == nil {
		return nil, errors.New("rag service has no embedder or index")
	}
	log.Printf("SERVICE-HELPER: Retrieving %d documents...", k)

	queryEmbedding, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query text: %w", err)
	}
	hits, err := r.index.Search(ctx, queryEmbedding, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	documents := make([]models.SourceDocument, 0, len(hits))
	for _, hit := range hits {
		if hit.Position < 0 || hit.Position >= len(r.docs) {
			return nil, fmt.Errorf("%w: index returned position %d for %d documents", ErrIndexSizeMismatch, hit.Position, len(r.docs))
		}
		doc := r.docs[hit.Position]
		documents = append(documents, models.SourceDocument{
			Position: doc.Position,
			Text:     doc.Text,
			Distance: hit.Distance,
			Metadata: doc.Metadata,
		})
	}
	log.Printf("SERVICE-HELPER: Retrieved %d documents", len(documents))
	return documents, nil
}

// QueryRAG retrieves context for the question and answers it with greedy decoding.
func (r *ragServiceImpl) QueryRAG(ctx context.Context, req models.QueryTextRequest) (*models.QueryRAGResponse, error) {
	log.Printf("SERVICE: Querying RAG with: '%s'", req.Query)
	k := req.TopK
	if k <= 0 {
		k = r.topK
	}

	docs, err := r.Retrieve(ctx, req.Query, k)
	if err != nil {
		return nil, err
	}
	prompt := BuildRAGPrompt(req.Query, docs)

	gen, err := r.Generate(ctx, models.GenerateRequest{Prompt: prompt, Decoding: models.GreedyDecoding(ragMaxTokens)})
	if err != nil {
		return nil, err
	}
	return &models.QueryRAGResponse{
		Answer:     gen.Text,
		Prompt:     prompt,
		SourceDocs: docs,
		Elapsed:    gen.Elapsed,
	}, nil
}

// Generate runs the generator once and measures how long it took.
func (r *ragServiceImpl) Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResponse, error) {
	if r.generator == nil {
		return nil, errors.New("rag service has no generator")
	}
	log.WithField("generator", r.generator.Name()).Debug("SERVICE: Sending prompt to model")

	start := time.Now()
	text, err := r.generator.Generate(ctx, req.Prompt, req.Decoding)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("could not generate response: %w", err)
	}
	return &models.GenerateResponse{Text: text, Elapsed: elapsed}, nil
}
