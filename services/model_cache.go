package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

const descriptorFile = "config.json"

// ModelDescriptor pins the model and runner settings prepared for the GPU path.
type ModelDescriptor struct {
	Model      string    `json:"model"`
	Device     string    `json:"device"`
	NumGPU     int       `json:"num_gpu"`
	PreparedAt time.Time `json:"prepared_at"`
}

// ModelCache keeps one descriptor per directory. The first run prepares and saves
// it; later runs load it from the directory instead.
type ModelCache struct {
	Dir string
}

func NewModelCache(dir string) *ModelCache {
	return &ModelCache{Dir: dir}
}

func (m *ModelCache) path() string {
	return filepath.Join(m.Dir, descriptorFile)
}

// LoadOrPrepare returns the cached descriptor, or saves a fresh one for model on device.
// The boolean reports whether the descriptor came from the cache.
func (m *ModelCache) LoadOrPrepare(model string, device Device) (*ModelDescriptor, bool, error) {
	if err := os.MkdirAll(m.Dir, 0755); err != nil {
		return nil, false, fmt.Errorf("could not create model cache dir: %w", err)
	}

	data, err := os.ReadFile(m.path())
	switch {
	case err == nil:
		var desc ModelDescriptor
		if err := json.Unmarshal(data, &desc); err != nil {
			return nil, false, fmt.Errorf("corrupt model descriptor %s: %w", m.path(), err)
		}
		log.Printf("SERVICE: Loading prepared model '%s' from %s", desc.Model, m.Dir)
		return &desc, true, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, false, fmt.Errorf("could not read model descriptor: %w", err)
	}

	log.Printf("SERVICE: Preparing model '%s' for %s...", model, device)
	desc := &ModelDescriptor{
		Model:      model,
		Device:     device.String(),
		NumGPU:     allLayers,
		PreparedAt: time.Now().UTC(),
	}
	out, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal model descriptor: %w", err)
	}
	if err := os.WriteFile(m.path(), out, 0644); err != nil {
		return nil, false, fmt.Errorf("failed to save model descriptor: %w", err)
	}
	return desc, false, nil
}
