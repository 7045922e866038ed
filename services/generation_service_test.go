package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github/itish2003/qwenprimer/config"
	"github/itish2003/qwenprimer/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedChat struct {
	Model    string                 `json:"model"`
	Messages []map[string]any       `json:"messages"`
	Options  map[string]interface{} `json:"options"`
}

// fakeOllama serves /api/chat and /api/embeddings the way an Ollama server does.
func fakeOllama(t *testing.T, answer string, chats *[]capturedChat) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req capturedChat
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*chats = append(*chats, req)
		w.Header().Set("Content-Type", "application/x-ndjson")
		json.NewEncoder(w).Encode(map[string]any{
			"model":   req.Model,
			"message": map[string]string{"role": "assistant", "content": answer},
			"done":    true,
		})
	})
	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(map[string]any{
			"embedding": []float32{float32(len(req.Prompt)), 1, 0},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(url string) *config.Config {
	return &config.Config{
		OllamaURL:       url,
		OllamaCPUURL:    url,
		GenerationModel: "qwen3:0.6b",
		EmbeddingModel:  "all-minilm",
		TopK:            2,
		VectorBackend:   config.BackendMemory,
	}
}

func TestOllamaGenerator_SampledDecoding(t *testing.T) {
	var chats []capturedChat
	srv := fakeOllama(t, "2+2 is 4.", &chats)

	gen, err := NewOllamaGenerator(testConfig(srv.URL), DeviceCPU, srv.Client(), nil)
	require.NoError(t, err)

	text, err := gen.Generate(context.Background(), "what is 2+2?", models.SampledDecoding())
	require.NoError(t, err)
	assert.Equal(t, "2+2 is 4.", text)

	require.Len(t, chats, 1)
	assert.Equal(t, "qwen3:0.6b", chats[0].Model)
	assert.Equal(t, "what is 2+2?", chats[0].Messages[0]["content"])
	assert.InDelta(t, 0.7, chats[0].Options["temperature"], 1e-6)
	assert.InDelta(t, 0.9, chats[0].Options["top_p"], 1e-6)
	assert.EqualValues(t, 100, chats[0].Options["num_predict"])
	assert.NotContains(t, chats[0].Options, "num_gpu")
}

func TestOllamaGenerator_GreedyOnGPU(t *testing.T) {
	var chats []capturedChat
	srv := fakeOllama(t, "answer", &chats)

	desc := &ModelDescriptor{Model: "qwen3:0.6b-gpu", NumGPU: 24}
	gen, err := NewOllamaGenerator(testConfig(srv.URL), DeviceGPU, srv.Client(), desc)
	require.NoError(t, err)
	assert.Contains(t, gen.Name(), "qwen3:0.6b-gpu")

	opts := models.GreedyDecoding(120)
	opts.Stop = []string{"###"}
	_, err = gen.Generate(context.Background(), "prompt", opts)
	require.NoError(t, err)

	require.Len(t, chats, 1)
	assert.Equal(t, "qwen3:0.6b-gpu", chats[0].Model)
	assert.EqualValues(t, 0, chats[0].Options["temperature"])
	assert.EqualValues(t, 1, chats[0].Options["top_k"])
	assert.EqualValues(t, 120, chats[0].Options["num_predict"])
	assert.EqualValues(t, 24, chats[0].Options["num_gpu"])
	assert.Equal(t, []interface{}{"###"}, chats[0].Options["stop"])
}

func TestNewOllamaGenerator_RejectsOtherDevices(t *testing.T) {
	_, err := NewOllamaGenerator(testConfig("http://localhost:11434"), DeviceNPU, http.DefaultClient, nil)
	assert.Error(t, err)
}

func TestOllamaEmbedder_SharedSpaceForDocumentsAndQueries(t *testing.T) {
	var chats []capturedChat
	srv := fakeOllama(t, "", &chats)

	emb, err := NewOllamaEmbedder(testConfig(srv.URL), srv.Client())
	require.NoError(t, err)

	vecs, err := emb.EmbedDocuments(context.Background(), []string{"abc", "abcdef"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{3, 1, 0}, vecs[0])
	assert.Equal(t, []float32{6, 1, 0}, vecs[1])

	q, err := emb.EmbedQuery(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, vecs[0], q)
}

func TestDeviceString(t *testing.T) {
	assert.Equal(t, "CPU", DeviceCPU.String())
	assert.Equal(t, "GPU", DeviceGPU.String())
	assert.Equal(t, "NPU", DeviceNPU.String())
	assert.Equal(t, "Cloud", DeviceCloud.String())
	assert.Equal(t, "Device(9)", Device(9).String())
}

func TestGeminiGenerateConfig(t *testing.T) {
	sampled := generateConfig(models.SampledDecoding())
	require.NotNil(t, sampled.Temperature)
	assert.InDelta(t, 0.7, *sampled.Temperature, 1e-6)
	require.NotNil(t, sampled.TopP)
	assert.InDelta(t, 0.9, *sampled.TopP, 1e-6)
	assert.Nil(t, sampled.TopK)
	assert.EqualValues(t, 100, sampled.MaxOutputTokens)

	greedy := generateConfig(models.GreedyDecoding(120))
	assert.EqualValues(t, 0, *greedy.Temperature)
	assert.EqualValues(t, 1, *greedy.TopK)
	assert.EqualValues(t, 120, greedy.MaxOutputTokens)
}

func TestNewGeminiGenerator_RequiresKey(t *testing.T) {
	_, err := NewGeminiGenerator(context.Background(), testConfig("http://localhost:11434"), http.DefaultClient)
	assert.Error(t, err)
}
