package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"notebookrag/internal/api"
	"notebookrag/internal/chunker"
	"notebookrag/internal/config"
	"notebookrag/internal/domain"
	"notebookrag/internal/embedding"
	"notebookrag/internal/embedding/openai"
	"notebookrag/internal/embedding/tfidf"
	"notebookrag/internal/generator/extractive"
	genopenai "notebookrag/internal/generator/openai"
	"notebookrag/internal/loader"
	"notebookrag/internal/logging"
	"notebookrag/internal/progress"
	"notebookrag/internal/service"
	"notebookrag/internal/session"
	"notebookrag/internal/tui"
	"notebookrag/internal/vectorstore"
	"notebookrag/internal/vectorstore/memory"
	"notebookrag/internal/vectorstore/qdrant"
	"notebookrag/internal/vectorstore/sqlite"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath  string
		serve    bool
		mode     string
		question string
		topK     int
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/notebookrag/config.yaml if not provided)")
	flag.BoolVar(&serve, "serve", false, "Run the HTTP API instead of the TUI")
	flag.StringVar(&mode, "mode", "", "One-shot mode: "+strings.Join(service.Modes(), ", "))
	flag.StringVar(&question, "q", "", "Question for one-shot qa mode")
	flag.IntVar(&topK, "top-k", 0, "Chunks to retrieve (0 uses retrieval.top_k)")
	flag.Parse()
	inputs := flag.Args()
	if len(inputs) == 0 && !serve {
		fmt.Println("Usage: rag [--config=config.yaml] [--mode=summary | --q=question] file.pdf [docs/**/*.md ...]")
		fmt.Println("       rag --serve [--config=config.yaml] [file.pdf ...]")
		os.Exit(1)
	}

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, cfgPath, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, inputs, serve, mode, question, topK); err != nil {
		logger.Error("rag failed", "config", cfgPath, "err", err)
		stop()
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger, inputs []string, serve bool, mode, question string, topK int) error {
	ch, err := chunker.NewWordChunker(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap)
	if err != nil {
		return err
	}
	reporter := progress.New(!serve && progress.DefaultEnabled())
	emb, err := newEmbedder(cfg.Embedder, reporter)
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	open, err := newOpener(cfg.VectorStore)
	if err != nil {
		return fmt.Errorf("vector store: %w", err)
	}
	gen, err := newGenerator(cfg.Generator)
	if err != nil {
		return fmt.Errorf("generator: %w", err)
	}
	logger.Info("pipeline ready",
		"embedder", emb.Name(),
		"generator", gen.Name(),
		"vector_store", cfg.VectorStore.Type,
		"chunk_size", cfg.Chunker.ChunkSize,
		"overlap", cfg.Chunker.Overlap,
		"top_k", cfg.Retrieval.TopK,
	)

	ingester := service.NewIngester(loader.New(), ch, emb, open,
		service.WithNormalize(cfg.Retrieval.Normalize),
		service.WithProgress(reporter),
		service.WithLogger(logger),
	)
	retriever := service.NewRetrievalService(gen, cfg.Retrieval.TopK, cfg.Retrieval.HighlightChars, logger)
	registry := session.NewRegistry()
	defer registry.Close()

	var s *session.Session
	if len(inputs) > 0 {
		s, err = ingester.IngestFiles(ctx, inputs)
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
		registry.Put(s)
	}

	switch {
	case serve:
		info := api.Info{Embedder: emb.Name(), Generator: gen.Name(), TopK: cfg.Retrieval.TopK}
		return api.New(ingester, retriever, registry, cfg.Server, info, logger).Run(ctx, cfg.Server.Addr)
	case mode != "" || question != "":
		task, err := service.ParseTask(mode, question)
		if err != nil {
			return err
		}
		resp, err := retriever.Generate(ctx, s, task, topK)
		if err != nil {
			return err
		}
		printResponse(resp)
		return nil
	default:
		summary := fmt.Sprintf("%s  (%d chunks, %s)", s.Source, s.Len(), emb.Name())
		_, err := tea.NewProgram(tui.New(retriever, s, topK, summary), tea.WithAltScreen()).Run()
		return err
	}
}

func newEmbedder(cfg config.EmbedderConfig, reporter progress.Reporter) (domain.Embedder, error) {
	switch cfg.Type {
	case "tfidf", "":
		return embedding.NewBatcher(tfidf.NewEmbedder(), 256, 1).OnBatch(reporter.Add), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, domain.ConfigError("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return embedding.NewBatcher(client, cfg.OpenAI.BatchSize, cfg.OpenAI.Concurrency).OnBatch(reporter.Add), nil
	default:
		return nil, domain.ConfigError("unknown embedder: %s", cfg.Type)
	}
}

func newOpener(cfg config.VectorStoreConfig) (vectorstore.Opener, error) {
	switch cfg.Type {
	case "memory", "":
		return memory.Open, nil
	case "sqlite":
		if cfg.SQLite == nil {
			return nil, domain.ConfigError("sqlite config missing")
		}
		return sqlite.NewOpener(cfg.SQLite.Dir), nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, domain.ConfigError("qdrant config missing")
		}
		return qdrant.NewOpener(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, domain.ConfigError("unknown vector store: %s", cfg.Type)
	}
}

func newGenerator(cfg config.GeneratorConfig) (domain.Generator, error) {
	switch cfg.Type {
	case "extractive", "":
		return extractive.New(cfg.MaxSentences), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, domain.ConfigError("openai generator config missing")
		}
		client, err := genopenai.NewClient(genopenai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, domain.ConfigError("unknown generator: %s", cfg.Type)
	}
}

func printResponse(resp service.Response) {
	fmt.Println(resp.Answer)
	if len(resp.Citations) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Sources:")
	for i, c := range resp.Citations {
		fmt.Printf("  [%d] %s p.%d (chunk %d)\n", i+1, c.Source, c.Page, c.ChunkID)
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		return 2
	case errors.Is(err, domain.ErrNotReady), errors.Is(err, domain.ErrNoContent):
		return 3
	case errors.Is(err, domain.ErrCollaboratorUnavailable):
		return 4
	default:
		return 1
	}
}
