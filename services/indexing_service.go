package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github/itish2003/qwenprimer/models"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	chunkSize    = 1000
	chunkOverlap = 100

	sourceBuiltin = "builtin"
)

var builtinTexts = []string{
	"OpenVINO accelerates inference on Intel GPUs like Arc.",
	"Qwen3-0.6B is a compact language model optimized for local inference.",
	"RAG combines retrieval with generation to improve factual accuracy.",
	"Uros is a guy from Novi Sad in Serbia, he is twenty two years old. He is tall and has brown eyes.",
}

// DefaultDocuments returns the built-in corpus.
func DefaultDocuments() []models.Document {
	docs := make([]models.Document, len(builtinTexts))
	for i, text := range builtinTexts {
		docs[i] = models.Document{
			ID:       fmt.Sprintf("builtin-%d", i),
			Position: i,
			Text:     text,
			Source:   sourceBuiltin,
		}
	}
	return docs
}

// CorpusService assembles the documents the index is built from: the built-in
// passages, followed by chunks of the files under an optional directory.
type CorpusService struct {
	docsPath string
	splitter textsplitter.TextSplitter
}

// NewCorpusService creates a corpus loader. An empty docsPath means built-in documents only.
func NewCorpusService(docsPath string) *CorpusService {
	return &CorpusService{
		docsPath: docsPath,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

func (s *CorpusService) DocsPath() string { return s.docsPath }

// LoadDocuments returns the corpus with positions assigned in load order.
func (s *CorpusService) LoadDocuments(ctx context.Context) ([]models.Document, error) {
	docs := DefaultDocuments()
	if s.docsPath == "" {
		return docs, nil
	}

	log.Printf("INDEXER: Starting directory scan for: %s", s.docsPath)
	err := filepath.Walk(s.docsPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() || !isSupportedFile(path) {
			return nil
		}
		chunks, err := s.loadFile(path)
		if err != nil {
			log.Printf("INDEXER WARN: Skipping %s: %v", path, err)
			return nil
		}
		for _, chunk := range chunks {
			chunk.Position = len(docs)
			docs = append(docs, chunk)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking the path %s: %w", s.docsPath, err)
	}
	log.Printf("INDEXER: Corpus has %d documents.", len(docs))
	return docs, nil
}

func (s *CorpusService) loadFile(path string) ([]models.Document, error) {
	hash, err := calculateFileHash(path)
	if err != nil {
		return nil, fmt.Errorf("could not hash file: %w", err)
	}
	content, err := ExtractTextFromFile(path)
	if err != nil {
		return nil, err
	}
	chunks, err := s.splitter.SplitText(content)
	if err != nil {
		return nil, fmt.Errorf("could not split file: %w", err)
	}
	log.Printf("INDEXER: Split %s into %d chunks.", path, len(chunks))

	docs := make([]models.Document, 0, len(chunks))
	for i, chunk := range chunks {
		docs = append(docs, models.Document{
			ID:     fmt.Sprintf("%s-chunk%d", hash[:12], i),
			Text:   chunk,
			Source: path,
			Metadata: map[string]interface{}{
				"source_file": path,
				"file_hash":   hash,
				"chunk_num":   i,
			},
		})
	}
	return docs, nil
}

// WatchDirectory forwards the paths of supported files that were created, written,
// removed or renamed under dirPath, subdirectories included, until ctx is cancelled.
// It does not touch the index; the receiver decides when to reload.
func (s *CorpusService) WatchDirectory(ctx context.Context, dirPath string, changed chan<- string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := addWatchTree(watcher, dirPath); err != nil {
		watcher.Close()
		return err
	}
	log.Printf("WATCHER: Watching directory: %s", dirPath)

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if err := addWatchTree(watcher, event.Name); err != nil {
							log.Printf("WATCHER ERROR: %v", err)
						}
						continue
					}
				}
				if !isSupportedFile(event.Name) {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
					event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					log.Printf("WATCHER EVENT: %s", event)
					select {
					case changed <- event.Name:
					case <-ctx.Done():
						return
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("WATCHER ERROR: %v", err)
			case <-ctx.Done():
				log.Println("WATCHER: Context cancelled, shutting down watcher.")
				return
			}
		}
	}()
	return nil
}

// addWatchTree adds root and every directory below it, since fsnotify watches are not recursive.
func addWatchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to add path to watcher: %w", err)
		}
		return nil
	})
}

// CorpusFingerprint identifies a corpus embedded with a given model.
func CorpusFingerprint(docs []models.Document, embeddingModel string) string {
	h := sha256.New()
	io.WriteString(h, embeddingModel)
	for _, d := range docs {
		h.Write([]byte{0})
		io.WriteString(h, d.Text)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func calculateFileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
