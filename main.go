package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github/itish2003/qwenprimer/config"
	"github/itish2003/qwenprimer/controller"
	"github/itish2003/qwenprimer/index"
	"github/itish2003/qwenprimer/logger"
	"github/itish2003/qwenprimer/services"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	services.SetPDFLicense(cfg.UnidocLicenseKey)
	log.WithField("run_id", uuid.NewString()).Info("Starting qwenprimer")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	console := controller.NewConsole(os.Stdin, os.Stdout, cfg.RenderMarkdown)
	device, err := console.SelectDevice()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	mode, err := console.SelectMode()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	log.Printf("Device %s, mode %s", device, mode)

	generator, err := newGenerator(ctx, cfg, device, httpClient)
	if err != nil {
		log.Fatalf("FATAL: Failed to set up generation backend: %v", err)
	}
	log.Printf("Using model %s", generator.Name())

	if !mode.NeedsIndex(cfg.DocsPath != "") {
		ragService := services.NewRAGService(nil, nil, generator)
		run(ctx, controller.NewCLIController(ragService, console), mode, controller.ChatOptions{})
		return
	}

	embedder, err := services.NewOllamaEmbedder(cfg, httpClient)
	if err != nil {
		log.Fatalf("FATAL: Failed to create embedder: %v", err)
	}

	var (
		vectorIndex index.Index
		opts        = []services.RAGOption{services.WithTopK(cfg.TopK)}
	)
	switch cfg.VectorBackend {
	case config.BackendChroma:
		chromaClient, err := chromago.NewHTTPClient()
		if err != nil {
			log.Fatalf("FATAL: Failed to create chroma client: %v", err)
		}
		defer func() {
			if err := chromaClient.Close(); err != nil {
				log.Printf("Warning: Failed to close chroma client: %v", err)
			}
		}()
		chroma, err := index.OpenChroma(ctx, chromaClient, cfg.ChromaCollection, cfg.EmbeddingModel)
		if err != nil {
			log.Fatalf("FATAL: Failed to open chroma collection: %v", err)
		}
		vectorIndex = chroma
	default:
		store, err := services.NewArtifactStore(cfg.ArtifactDir)
		if err != nil {
			log.Fatalf("FATAL: Failed to open artifact dir: %v", err)
		}
		vectorIndex = index.NewFlatL2()
		opts = append(opts, services.WithArtifactStore(store, cfg.EmbeddingModel))
	}

	ragService := services.NewRAGService(embedder, vectorIndex, generator, opts...)
	corpus := services.NewCorpusService(cfg.DocsPath)
	reload := func(ctx context.Context) error {
		docs, err := corpus.LoadDocuments(ctx)
		if err != nil {
			return err
		}
		return ragService.BuildIndex(ctx, docs)
	}
	if err := reload(ctx); err != nil {
		log.Fatalf("FATAL: Failed to build index: %v", err)
	}
	fmt.Printf("Index ready with %d documents\n", len(ragService.Documents()))

	chat := controller.ChatOptions{
		Grounded: cfg.DocsPath != "",
		TopK:     cfg.TopK,
	}
	if mode == controller.ModeChat && cfg.WatchDocs && cfg.DocsPath != "" {
		changed := make(chan string, 16)
		if err := corpus.WatchDirectory(ctx, cfg.DocsPath, changed); err != nil {
			log.Fatalf("FATAL: Failed to watch %s: %v", cfg.DocsPath, err)
		}
		chat.Changed = changed
		chat.Reload = reload
	}

	run(ctx, controller.NewCLIController(ragService, console), mode, chat)
}

// newGenerator picks the generation backend for the selected device.
func newGenerator(ctx context.Context, cfg *config.Config, device services.Device, httpClient *http.Client) (services.Generator, error) {
	switch device {
	case services.DeviceCPU:
		return services.NewOllamaGenerator(cfg, device, httpClient, nil)
	case services.DeviceGPU:
		desc, _, err := services.NewModelCache(cfg.ModelCacheDir).LoadOrPrepare(cfg.GenerationModel, device)
		if err != nil {
			return nil, err
		}
		return services.NewOllamaGenerator(cfg, device, httpClient, desc)
	case services.DeviceCloud:
		return services.NewGeminiGenerator(ctx, cfg, httpClient)
	default:
		return nil, fmt.Errorf("no generation backend for device %s", device)
	}
}

func run(ctx context.Context, ctrl *controller.CLIController, mode controller.Mode, chat controller.ChatOptions) {
	if err := ctrl.Run(ctx, mode, chat); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}
