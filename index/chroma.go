package index

import (
	"context"
	"fmt"
	"math"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	metaCorpus   = "corpus"
	metaPosition = "position"
)

// Chroma keeps the vectors in a Chroma collection (default L2 space).
// Records are tagged with the corpus name so a rebuild only replaces its own rows.
type Chroma struct {
	collection chromago.Collection
	corpus     string
	size       int
}

// NewChroma wraps an existing collection.
func NewChroma(collection chromago.Collection, corpus string) *Chroma {
	return &Chroma{collection: collection, corpus: corpus}
}

// OpenChroma gets or creates the named collection on client.
func OpenChroma(ctx context.Context, client chromago.Client, collectionName, corpus string) (*Chroma, error) {
	log.Printf("INDEX: Getting or creating chroma collection '%s'...", collectionName)
	collection, err := client.GetOrCreateCollection(
		ctx,
		collectionName,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "qwenprimer RAG documents"),
				chromago.NewStringAttribute("created_by", "qwenprimer"),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create collection: %w", err)
	}
	return NewChroma(collection, corpus), nil
}

func (c *Chroma) Len() int { return c.size }

// Build deletes the corpus' previous rows and adds vectors in one batch.
func (c *Chroma) Build(ctx context.Context, vectors [][]float32) error {
	if err := c.collection.Delete(ctx, chromago.WithWhereDelete(chromago.EqString(metaCorpus, c.corpus))); err != nil {
		return fmt.Errorf("failed to clear corpus %q: %w", c.corpus, err)
	}
	c.size = 0
	if len(vectors) == 0 {
		return nil
	}

	dim := len(vectors[0])
	ids := make([]chromago.DocumentID, len(vectors))
	embs := make([]embeddings.Embedding, len(vectors))
	metas := make([]chromago.DocumentMetadata, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: position %d has %d, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
		ids[i] = chromago.DocumentID(uuid.New().String())
		embs[i] = embeddings.NewEmbeddingFromFloat32(v)
		metas[i] = chromago.NewDocumentMetadata(
			chromago.NewStringAttribute(metaCorpus, c.corpus),
			chromago.NewIntAttribute(metaPosition, int64(i)),
		)
	}

	err := c.collection.Add(ctx,
		chromago.WithIDs(ids...),
		chromago.WithEmbeddings(embs...),
		chromago.WithMetadatas(metas...),
	)
	if err != nil {
		return fmt.Errorf("failed to add vectors to chromadb: %w", err)
	}
	c.size = len(vectors)
	log.WithField("corpus", c.corpus).Printf("INDEX: Added %d vectors to chroma", c.size)
	return nil
}

// Search asks Chroma for the k nearest rows of this corpus; Chroma returns them
// ordered by distance. Chroma's l2 space reports squared distances, so the
// square root is taken to match FlatL2.
func (c *Chroma) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	k, err := ClampK(k, c.size)
	if err != nil {
		return nil, err
	}
	results, err := c.collection.Query(
		ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(query)),
		chromago.WithWhereQuery(chromago.EqString(metaCorpus, c.corpus)),
		chromago.WithNResults(k),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chromadb: %w", err)
	}

	metadataGroups := results.GetMetadatasGroups()
	distanceGroups := results.GetDistancesGroups()
	if len(metadataGroups) == 0 {
		return nil, nil
	}
	hits := make([]Neighbor, 0, len(metadataGroups[0]))
	for i, metadata := range metadataGroups[0] {
		pos, ok := positionFromMetadata(metadata)
		if !ok || pos < 0 || pos >= c.size {
			log.Printf("INDEX WARN: chroma row %d has no valid position metadata, skipping", i)
			continue
		}
		var dist float64
		if len(distanceGroups) > 0 && i < len(distanceGroups[0]) {
			dist = math.Sqrt(math.Max(float64(distanceGroups[0][i]), 0))
		}
		hits = append(hits, Neighbor{Position: pos, Distance: dist})
	}
	return hits, nil
}

func positionFromMetadata(metadata chromago.DocumentMetadata) (int, bool) {
	if metadata == nil {
		return 0, false
	}
	if v, ok := metadata.GetInt(metaPosition); ok {
		return int(v), true
	}
	if v, ok := metadata.GetFloat(metaPosition); ok {
		return int(v), true
	}
	return 0, false
}
