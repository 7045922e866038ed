package services

import (
	"context"
	"fmt"
	"net/http"
	"runtime"

	"github/itish2003/qwenprimer/config"
	"github/itish2003/qwenprimer/models"

	log "github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Device is where the generation model runs.
type Device int

const (
	DeviceCPU Device = iota
	DeviceGPU
	DeviceNPU
	DeviceCloud
)

func (d Device) String() string {
	switch d {
	case DeviceCPU:
		return "CPU"
	case DeviceGPU:
		return "GPU"
	case DeviceNPU:
		return "NPU"
	case DeviceCloud:
		return "Cloud"
	}
	return fmt.Sprintf("Device(%d)", int(d))
}

// allLayers asks Ollama to offload every layer to the GPU.
const allLayers = 999

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts models.DecodingOptions) (string, error)
	Name() string
}

// OllamaGenerator runs a local model through an Ollama server.
type OllamaGenerator struct {
	llm    llms.Model
	model  string
	device Device
}

// NewOllamaGenerator connects to the Ollama server that serves device.
// The CPU device talks to OllamaCPUURL and pins the thread count; the GPU
// device offloads all layers using the cached model descriptor.
func NewOllamaGenerator(cfg *config.Config, device Device, httpClient *http.Client, desc *ModelDescriptor) (*OllamaGenerator, error) {
	modelName := cfg.GenerationModel
	opts := []ollama.Option{ollama.WithHTTPClient(httpClient)}

	switch device {
	case DeviceCPU:
		opts = append(opts,
			ollama.WithServerURL(cfg.OllamaCPUURL),
			ollama.WithRunnerNumThread(runtime.NumCPU()),
		)
	case DeviceGPU:
		if desc != nil {
			modelName = desc.Model
		}
		numGPU := allLayers
		if desc != nil && desc.NumGPU > 0 {
			numGPU = desc.NumGPU
		}
		opts = append(opts,
			ollama.WithServerURL(cfg.OllamaURL),
			ollama.WithRunnerNumGPU(numGPU),
		)
	default:
		return nil, fmt.Errorf("ollama generator does not support device %s", device)
	}
	opts = append(opts, ollama.WithModel(modelName))

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create ollama client: %w", err)
	}
	log.WithField("device", device).Printf("SERVICE: Ollama generator ready with model '%s'", modelName)
	return &OllamaGenerator{llm: llm, model: modelName, device: device}, nil
}

func (g *OllamaGenerator) Name() string {
	return fmt.Sprintf("ollama/%s (%s)", g.model, g.device)
}

func (g *OllamaGenerator) Generate(ctx context.Context, prompt string, opts models.DecodingOptions) (string, error) {
	text, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, callOptions(opts)...)
	if err != nil {
		return "", fmt.Errorf("ollama generation failed: %w", err)
	}
	return text, nil
}

// callOptions maps decoding options onto langchaingo call options.
// Greedy decoding is temperature 0 with a single candidate token.
func callOptions(opts models.DecodingOptions) []llms.CallOption {
	out := []llms.CallOption{}
	if opts.MaxTokens > 0 {
		out = append(out, llms.WithMaxTokens(opts.MaxTokens))
	}
	if len(opts.Stop) > 0 {
		out = append(out, llms.WithStopWords(opts.Stop))
	}
	if opts.Sample {
		out = append(out, llms.WithTemperature(opts.Temperature))
		if opts.TopP > 0 {
			out = append(out, llms.WithTopP(opts.TopP))
		}
	} else {
		out = append(out, llms.WithTemperature(0), llms.WithTopK(1))
	}
	return out
}
