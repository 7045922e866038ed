package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github/itish2003/qwenprimer/index"
	"github/itish2003/qwenprimer/models"

	log "github.com/sirupsen/logrus"
)

const (
	IndexFile     = "index.bin"
	DocumentsFile = "documents.jsonl"
	ManifestFile  = "manifest.json"
)

// ErrNoArtifact is returned by Import when nothing has been exported yet.
var ErrNoArtifact = errors.New("no exported index artifact")

// Manifest describes an exported index.
type Manifest struct {
	Fingerprint    string `json:"fingerprint"`
	EmbeddingModel string `json:"embedding_model"`
	Documents      int    `json:"documents"`
	Dim            int    `json:"dim"`
}

// ArtifactStore writes the index snapshot and its documents under one directory.
type ArtifactStore struct {
	Dir string
}

func NewArtifactStore(dir string) (*ArtifactStore, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("could not determine absolute path for %s: %w", dir, err)
	}
	return &ArtifactStore{Dir: absPath}, nil
}

// path keeps every artifact inside Dir.
func (a *ArtifactStore) path(filename string) string {
	return filepath.Join(a.Dir, filepath.Base(filename))
}

// Export saves idx, docs and the manifest. len(docs) must equal idx.Len().
// The old manifest is removed first and the new one is renamed into place
// last, so a failed export leaves no manifest and Import reports ErrNoArtifact.
func (a *ArtifactStore) Export(idx *index.FlatL2, docs []models.Document, manifest Manifest) error {
	if idx.Len() != len(docs) {
		return fmt.Errorf("%w: index has %d vectors, corpus has %d documents", ErrIndexSizeMismatch, idx.Len(), len(docs))
	}
	if err := os.MkdirAll(a.Dir, 0755); err != nil {
		return fmt.Errorf("could not create artifact dir: %w", err)
	}
	manifestPath := a.path(ManifestFile)
	if err := os.Remove(manifestPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove old manifest: %w", err)
	}

	if err := idx.SaveFile(a.path(IndexFile)); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}

	f, err := os.Create(a.path(DocumentsFile))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", DocumentsFile, err)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, d := range docs {
		if err := enc.Encode(d); err != nil {
			f.Close()
			return fmt.Errorf("failed to write document %s: %w", d.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	manifest.Documents = len(docs)
	manifest.Dim = idx.Dim()
	out, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	tmpPath := manifestPath + ".tmp"
	if err := os.WriteFile(tmpPath, out, 0644); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	if err := os.Rename(tmpPath, manifestPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	log.Printf("ARTIFACTS: Exported %d documents (dim %d) to %s", len(docs), idx.Dim(), a.Dir)
	return nil
}

// Import loads what Export wrote and checks that the pieces agree.
func (a *ArtifactStore) Import() (*index.FlatL2, []models.Document, *Manifest, error) {
	data, err := os.ReadFile(a.path(ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil, ErrNoArtifact
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, nil, nil, fmt.Errorf("corrupt manifest: %w", err)
	}

	idx, err := index.LoadFile(a.path(IndexFile))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load index: %w", err)
	}

	f, err := os.Open(a.path(DocumentsFile))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open %s: %w", DocumentsFile, err)
	}
	defer f.Close()

	var docs []models.Document
	dec := json.NewDecoder(f)
	for dec.More() {
		var d models.Document
		if err := dec.Decode(&d); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to decode document %d: %w", len(docs), err)
		}
		docs = append(docs, d)
	}

	if idx.Len() != len(docs) || manifest.Documents != len(docs) {
		return nil, nil, nil, fmt.Errorf("%w: index %d, documents %d, manifest %d", ErrIndexSizeMismatch, idx.Len(), len(docs), manifest.Documents)
	}
	return idx, docs, &manifest, nil
}
