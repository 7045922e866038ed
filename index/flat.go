package index

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/viant/sqlite-vec/vector"
)

// FlatL2 is an exhaustive in-memory index using Euclidean distance.
type FlatL2 struct {
	vecs [][]float32
	dim  int
}

// NewFlatL2 returns an empty index.
func NewFlatL2() *FlatL2 {
	return &FlatL2{}
}

// Dim is the vector dimension fixed by the last Build, or 0 when empty.
func (f *FlatL2) Dim() int { return f.dim }

func (f *FlatL2) Len() int { return len(f.vecs) }

// Build loads vectors; all of them must share one dimension.
func (f *FlatL2) Build(_ context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		f.vecs, f.dim = nil, 0
		return nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return fmt.Errorf("%w: zero-length vector at position 0", ErrDimensionMismatch)
	}
	vecs := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: position %d has %d, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
		vecs[i] = append([]float32(nil), v...)
	}
	f.vecs, f.dim = vecs, dim
	return nil
}

// Search scans every vector. Equal distances keep insertion order.
func (f *FlatL2) Search(_ context.Context, query []float32, k int) ([]Neighbor, error) {
	k, err := ClampK(k, len(f.vecs))
	if err != nil {
		return nil, err
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), f.dim)
	}
	hits := make([]Neighbor, len(f.vecs))
	for i, v := range f.vecs {
		d, err := vector.L2Distance(query, v)
		if err != nil {
			return nil, err
		}
		hits[i] = Neighbor{Position: i, Distance: d}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Distance < hits[b].Distance })
	return hits[:k], nil
}

var snapshotMagic = [4]byte{'Q', 'P', 'L', '2'}

// MarshalBinary stores: magic, dim(uint32), n(uint32), then n rows of dim
// little-endian float32 values.
func (f *FlatL2) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(snapshotMagic[:])
	hdr := make([]byte, 8)
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(f.dim))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(f.vecs)))
	buf.Write(hdr)
	for _, v := range f.vecs {
		row, err := vector.EncodeEmbedding(v)
		if err != nil {
			return nil, err
		}
		buf.Write(row)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary restores an index written by MarshalBinary.
func (f *FlatL2) UnmarshalBinary(data []byte) error {
	if len(data) < 12 || !bytes.Equal(data[:4], snapshotMagic[:]) {
		return errors.New("index: not a flat L2 snapshot")
	}
	dim := binary.LittleEndian.Uint32(data[4:8])
	rows := binary.LittleEndian.Uint32(data[8:12])
	body := data[12:]
	if !snapshotFits(rows, dim, len(body)) {
		return fmt.Errorf("index: truncated snapshot: %d bytes for %d rows of dim %d", len(body), rows, dim)
	}
	n, rowSize := int(rows), int(dim)*4
	vecs := make([][]float32, n)
	for i := 0; i < n; i++ {
		v, err := vector.DecodeEmbedding(body[i*rowSize : (i+1)*rowSize])
		if err != nil {
			return fmt.Errorf("index: row %d: %w", i, err)
		}
		vecs[i] = v
	}
	return f.Build(context.Background(), vecs)
}

// snapshotFits reports whether rows*dim float32 values fill exactly size bytes.
// Both factors are bounded by size before they are multiplied.
func snapshotFits(rows, dim uint32, size int) bool {
	if rows == 0 {
		return size == 0
	}
	rowSize := uint64(dim) * 4
	total := uint64(size)
	if rowSize == 0 || rowSize > total || uint64(rows) > total/rowSize {
		return false
	}
	return uint64(rows)*rowSize == total
}

// SaveFile writes the snapshot to path.
func (f *FlatL2) SaveFile(path string) error {
	data, err := f.MarshalBinary()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadFile reads a snapshot written by SaveFile.
func LoadFile(path string) (*FlatL2, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f := NewFlatL2()
	if err := f.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return f, nil
}
