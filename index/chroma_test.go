package index

import (
	"context"
	"sort"
	"testing"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chromaRow struct {
	id   chromago.DocumentID
	vec  []float32
	meta chromago.DocumentMetadata
}

// memCollection answers Add, Delete and Query in memory the way a Chroma l2
// collection does: squared distances, and every row is a candidate unless a
// where filter is given. Other methods panic through the nil embedded interface.
type memCollection struct {
	chromago.Collection
	rows    []chromaRow
	queries []*chromago.CollectionQueryOp
}

func whereMatches(where chromago.WhereFilter, meta chromago.DocumentMetadata) bool {
	if where == nil {
		return true
	}
	clause, ok := where.(chromago.WhereClause)
	if !ok {
		return false
	}
	v, ok := meta.GetString(clause.Key())
	return ok && v == clause.Operand()
}

func (m *memCollection) Add(_ context.Context, opts ...chromago.CollectionAddOption) error {
	op := &chromago.CollectionAddOp{}
	for _, opt := range opts {
		if err := opt(op); err != nil {
			return err
		}
	}
	for i, id := range op.Ids {
		m.rows = append(m.rows, chromaRow{id: id, vec: op.Embeddings[i].ContentAsFloat32(), meta: op.Metadatas[i]})
	}
	return nil
}

func (m *memCollection) Delete(_ context.Context, opts ...chromago.CollectionDeleteOption) error {
	op := &chromago.CollectionDeleteOp{}
	for _, opt := range opts {
		if err := opt(op); err != nil {
			return err
		}
	}
	if op.Where == nil {
		return nil
	}
	kept := m.rows[:0]
	for _, r := range m.rows {
		if !whereMatches(op.Where, r.meta) {
			kept = append(kept, r)
		}
	}
	m.rows = kept
	return nil
}

func (m *memCollection) Query(_ context.Context, opts ...chromago.CollectionQueryOption) (chromago.QueryResult, error) {
	op := &chromago.CollectionQueryOp{}
	for _, opt := range opts {
		if err := opt(op); err != nil {
			return nil, err
		}
	}
	m.queries = append(m.queries, op)
	q := op.QueryEmbeddings[0].ContentAsFloat32()

	type scored struct {
		meta chromago.DocumentMetadata
		dist float32
	}
	var candidates []scored
	for _, r := range m.rows {
		if !whereMatches(op.Where, r.meta) {
			continue
		}
		var d float32
		for i := range q {
			diff := q[i] - r.vec[i]
			d += diff * diff
		}
		candidates = append(candidates, scored{meta: r.meta, dist: d})
	}
	sort.SliceStable(candidates, func(a, b int) bool { return candidates[a].dist < candidates[b].dist })
	if len(candidates) > op.NResults {
		candidates = candidates[:op.NResults]
	}

	metas := make(chromago.DocumentMetadatas, len(candidates))
	dists := make(embeddings.Distances, len(candidates))
	for i, c := range candidates {
		metas[i] = c.meta
		dists[i] = embeddings.Distance(c.dist)
	}
	return &chromago.QueryResultImpl{
		MetadatasLists: []chromago.DocumentMetadatas{metas},
		DistancesLists: []embeddings.Distances{dists},
	}, nil
}

func buildChroma(t *testing.T, col *memCollection, corpus string, vectors [][]float32) *Chroma {
	t.Helper()
	c := NewChroma(col, corpus)
	require.NoError(t, c.Build(context.Background(), vectors))
	return c
}

func TestChroma_SearchOrdersByEuclideanDistance(t *testing.T) {
	col := &memCollection{}
	c := buildChroma(t, col, "all-minilm", [][]float32{{0, 0}, {3, 4}, {1, 0}})
	assert.Equal(t, 3, c.Len())

	hits, err := c.Search(context.Background(), []float32{0, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 1}, positions(hits))
	assert.InDelta(t, 0.0, hits[0].Distance, 1e-6)
	assert.InDelta(t, 1.0, hits[1].Distance, 1e-6)
	assert.InDelta(t, 5.0, hits[2].Distance, 1e-6, "squared l2 from chroma is reported as euclidean")

	require.Len(t, col.queries, 1)
	assert.NotNil(t, col.queries[0].Where)
	assert.Equal(t, 3, col.queries[0].NResults)
}

func TestChroma_ClampsK(t *testing.T) {
	col := &memCollection{}
	c := buildChroma(t, col, "m", [][]float32{{0, 0}, {1, 1}})

	hits, err := c.Search(context.Background(), []float32{0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
	assert.Equal(t, 2, col.queries[0].NResults)

	_, err = c.Search(context.Background(), []float32{0, 0}, 0)
	assert.ErrorIs(t, err, ErrInvalidK)

	empty := buildChroma(t, col, "empty", nil)
	_, err = empty.Search(context.Background(), []float32{0, 0}, 1)
	assert.ErrorIs(t, err, ErrEmptyIndex)
}

func TestChroma_CorporaSharingACollectionStayApart(t *testing.T) {
	col := &memCollection{}
	a := buildChroma(t, col, "a", [][]float32{{0, 0}, {1, 1}})
	buildChroma(t, col, "b", [][]float32{{9, 9}, {8, 8}, {7, 7}, {10, 10}})

	hits, err := a.Search(context.Background(), []float32{10, 10}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, []int{1, 0}, positions(hits))
}

func TestChroma_RebuildReplacesOnlyItsOwnRows(t *testing.T) {
	col := &memCollection{}
	a := buildChroma(t, col, "a", [][]float32{{0, 0}, {1, 1}})
	buildChroma(t, col, "b", [][]float32{{5, 5}, {6, 6}, {7, 7}, {8, 8}})
	require.Len(t, col.rows, 6)

	require.NoError(t, a.Build(context.Background(), [][]float32{{2, 2}, {3, 3}, {4, 4}}))
	assert.Equal(t, 3, a.Len())
	assert.Len(t, col.rows, 7)

	hits, err := a.Search(context.Background(), []float32{2, 2}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, positions(hits))
}

func TestChroma_SkipsRowsWithoutPosition(t *testing.T) {
	col := &memCollection{}
	c := buildChroma(t, col, "a", [][]float32{{0, 0}, {5, 5}})
	col.rows = append(col.rows, chromaRow{
		id:   "stray",
		vec:  []float32{0, 0.1},
		meta: chromago.NewDocumentMetadata(chromago.NewStringAttribute(metaCorpus, "a")),
	})

	hits, err := c.Search(context.Background(), []float32{0, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, positions(hits))
}

func TestChroma_BuildRejectsRaggedVectors(t *testing.T) {
	c := NewChroma(&memCollection{}, "a")
	err := c.Build(context.Background(), [][]float32{{0, 0}, {1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 0, c.Len())
}

func TestPositionFromMetadata(t *testing.T) {
	pos, ok := positionFromMetadata(chromago.NewDocumentMetadata(
		chromago.NewStringAttribute(metaCorpus, "default"),
		chromago.NewIntAttribute(metaPosition, 3),
	))
	assert.True(t, ok)
	assert.Equal(t, 3, pos)

	pos, ok = positionFromMetadata(chromago.NewDocumentMetadata(chromago.NewFloatAttribute(metaPosition, 2)))
	assert.True(t, ok)
	assert.Equal(t, 2, pos)

	_, ok = positionFromMetadata(chromago.NewDocumentMetadata(chromago.NewStringAttribute(metaCorpus, "default")))
	assert.False(t, ok)

	_, ok = positionFromMetadata(nil)
	assert.False(t, ok)
}
