package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codefionn/hyphertext/internal/assets"
	"github.com/codefionn/hyphertext/internal/config"
	"github.com/codefionn/hyphertext/internal/events"
	"github.com/codefionn/hyphertext/internal/llm"
	"github.com/codefionn/hyphertext/internal/logger"
	"github.com/codefionn/hyphertext/internal/orchestrator"
	"github.com/codefionn/hyphertext/internal/search"
	"github.com/codefionn/hyphertext/internal/store"
)

// app holds the wired service components shared by the commands.
type app struct {
	cfg          *config.Config
	store        store.Store
	router       *llm.Router
	blobs        *assets.FileBlobStore
	orchestrator *orchestrator.Orchestrator
}

func newRouter(ctx context.Context, cfg *config.Config) (*llm.Router, error) {
	return llm.NewRouterFromKeys(ctx, llm.Keys{
		Groq:        cfg.Credentials.Groq.Reveal(),
		GroqBaseURL: cfg.Groq.BaseURL,
		Anthropic:   cfg.Credentials.Anthropic.Reveal(),
		Google:      cfg.Credentials.Google.Reveal(),
	}, cfg.Models.Default, llm.WithLogger(logger.Global().WithPrefix("router")))
}

func newApp(ctx context.Context, cfg *config.Config, publisher events.Publisher) (*app, error) {
	router, err := newRouter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Path != config.MemoryDatabase {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	blobs, err := assets.NewFileBlobStore(cfg.Storage.Dir, cfg.Storage.PublicBaseURL)
	if err != nil {
		st.Close()
		return nil, err
	}

	var vision assets.ImageAnalyzer = assets.NoVision{}
	if !cfg.Credentials.Anthropic.IsEmpty() {
		claude, err := assets.NewClaudeVision(cfg.Credentials.Anthropic.Reveal(), cfg.Anthropic.VisionModel)
		if err != nil {
			st.Close()
			return nil, err
		}
		vision = claude
	} else {
		logger.Warn("no Anthropic API key: uploaded images get a generic description")
	}

	runner := assets.ExecRunner{}
	extractors := assets.NewExtractors(runner)
	extractors.Register("application/pdf", assets.NewPDFExtractor(runner).WithBinary(cfg.Assets.PDFToTextPath))
	pipeline := assets.NewPipeline(st, blobs, vision, extractors,
		assets.WithPipelineLogger(logger.Global().WithPrefix("pipeline")))

	searcher, err := search.NewProvider(search.Options{
		Provider:          cfg.Search.Provider,
		BraveAPIKey:       cfg.Credentials.Brave.Reveal(),
		BraveURL:          cfg.Search.Brave.URL,
		ExaAPIKey:         cfg.Credentials.Exa.Reveal(),
		Timeout:           cfg.Search.Timeout,
		RequestsPerSecond: cfg.Search.RequestsPerSecond,
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	logger.Info("web search provider: %s", searcher.Name())

	orch := orchestrator.New(st, router,
		orchestrator.WithSearcher(searcher),
		orchestrator.WithAssetProcessor(pipeline),
		orchestrator.WithPublisher(publisher),
		orchestrator.WithLimits(orchestrator.Limits{
			MaxIterations:          cfg.Agent.MaxIterations,
			SimpleMaxIterations:    cfg.Agent.SimpleMaxIterations,
			ClarificationThreshold: cfg.Agent.ClarificationThreshold,
		}),
		orchestrator.WithLogger(logger.Global().WithPrefix("orchestrator")),
	)

	return &app{cfg: cfg, store: st, router: router, blobs: blobs, orchestrator: orch}, nil
}

func (a *app) Close() error {
	defer a.cfg.Credentials.Destroy()
	return a.store.Close()
}
