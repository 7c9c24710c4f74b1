// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/docindex/ai"
	"github.com/poiesic/docindex/ai/openai"
	"github.com/poiesic/docindex/chunk"
	"github.com/poiesic/docindex/extract"
	"github.com/poiesic/docindex/index"
	"github.com/poiesic/docindex/index/local"
	"github.com/poiesic/docindex/index/qdrant"
	"github.com/poiesic/docindex/reconcile"
	"github.com/poiesic/docindex/reindex"
	"github.com/poiesic/docindex/sink"
	"github.com/poiesic/docindex/sink/sheets"
	"github.com/poiesic/docindex/storage/badger"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "docindex",
		Usage: "Consistency-driven document ingestion for vector search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Reconcile a directory of documents with the index",
				ArgsUsage: "<docs-dir>",
				Action:    ingestCommand,
				Flags: append(storeFlags(), append(aiFlags(), append(sheetFlags(),
					&cli.BoolFlag{
						Name:  "reset",
						Usage: "Clear the index and the ledger before ingesting",
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Target chunk size in characters",
						Value: chunk.DefaultChunkSize,
					},
					&cli.IntFlag{
						Name:  "chunk-overlap",
						Usage: "Overlap between adjacent chunks",
						Value: chunk.DefaultChunkOverlap,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Worker pool size (default: half the CPUs)",
					},
					&cli.StringFlag{
						Name:  "ocr-languages",
						Usage: "Enable a tesseract OCR fallback for scanned PDFs, e.g. \"eng\"",
					},
				)...)...),
			},
			{
				Name:      "watch",
				Usage:     "Reconcile continuously as a directory changes",
				ArgsUsage: "<docs-dir>",
				Action:    watchCommand,
				Flags: append(storeFlags(), append(aiFlags(), append(sheetFlags(),
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Target chunk size in characters",
						Value: chunk.DefaultChunkSize,
					},
					&cli.IntFlag{
						Name:  "chunk-overlap",
						Usage: "Overlap between adjacent chunks",
						Value: chunk.DefaultChunkOverlap,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Worker pool size (default: half the CPUs)",
					},
					&cli.StringFlag{
						Name:  "ocr-languages",
						Usage: "Enable a tesseract OCR fallback for scanned PDFs, e.g. \"eng\"",
					},
					&cli.DurationFlag{
						Name:  "debounce",
						Usage: "Settle time after the last filesystem event",
						Value: reconcile.DefaultDebounce,
					},
				)...)...),
			},
			{
				Name:      "query",
				Usage:     "Search the index for chunks similar to a question",
				ArgsUsage: "<question>",
				Action:    queryCommand,
				Flags: append(indexFlags(), append(aiFlags(),
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Number of matches to return",
						Value:   5,
					},
				)...),
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed every indexed chunk after an embedding model change",
				Action: reindexCommand,
				Flags: append(storeFlags(), append(aiFlags(),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to embed per request",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				)...),
			},
			{
				Name:   "reset",
				Usage:  "Clear the index and the ledger",
				Action: resetCommand,
				Flags:  storeFlags(),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func storeFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to the BadgerDB ledger directory",
			Required: true,
		},
	}, indexFlags()...)
}

func indexFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "index",
			Usage: "Vector index backend (local, qdrant)",
			Value: "local",
		},
		&cli.StringFlag{
			Name:  "index-path",
			Usage: "Path to the embedded index directory (local backend)",
		},
		&cli.StringFlag{
			Name:  "qdrant-host",
			Usage: "Qdrant host (qdrant backend)",
			Value: "localhost",
		},
		&cli.IntFlag{
			Name:  "qdrant-port",
			Usage: "Qdrant gRPC port (qdrant backend)",
			Value: 6334,
		},
		&cli.BoolFlag{
			Name:  "qdrant-tls",
			Usage: "Use TLS for the Qdrant connection",
		},
		&cli.StringFlag{
			Name:  "collection",
			Usage: "Qdrant collection name",
			Value: "docindex",
		},
		&cli.UintFlag{
			Name:  "dimensions",
			Usage: "Embedding vector size (used to create the collection)",
			Value: 768,
		},
	}
}

func aiFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:  "extractor-host",
			Usage: "Extraction service host URL (defaults to embedding-host)",
		},
		&cli.StringFlag{
			Name:  "extractor-model",
			Usage: "Extraction model name",
			Value: "mistral",
		},
	}
}

func sheetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "sheet-id",
			Usage: "Google Sheet ID to append extracted rows to (disables extraction if empty)",
		},
		&cli.StringFlag{
			Name:  "credentials",
			Usage: "Path to a Google service account JSON key",
			Value: "gs-credentials.json",
		},
		&cli.StringFlag{
			Name:  "archive-dir",
			Usage: "Directory for raw extraction responses",
			Value: "outputs",
		},
	}
}

func buildAIConfig(c *cli.Context) (*ai.Config, error) {
	extractorHost := c.String("extractor-host")
	if extractorHost == "" {
		extractorHost = c.String("embedding-host")
	}

	config := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithExtractorHost(extractorHost),
		ai.WithExtractorModel(c.String("extractor-model")),
	)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	return config, nil
}

// openIndex builds the configured index backend. The returned index must
// be closed by the caller.
func openIndex(ctx context.Context, c *cli.Context) (index.Index, error) {
	switch c.String("index") {
	case "local":
		path := c.String("index-path")
		if path == "" {
			return nil, fmt.Errorf("index-path is required for the local backend")
		}
		return local.Open(path)
	case "qdrant":
		return qdrant.New(ctx, qdrant.Config{
			Host:       c.String("qdrant-host"),
			Port:       c.Int("qdrant-port"),
			UseTLS:     c.Bool("qdrant-tls"),
			Collection: c.String("collection"),
			Dimensions: uint64(c.Uint("dimensions")),
		})
	default:
		return nil, fmt.Errorf("unknown index backend %q: must be local or qdrant", c.String("index"))
	}
}

func openLedger(c *cli.Context) (*badger.Ledger, error) {
	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	return badger.NewLedger(backend), nil
}

// buildProvider builds the AI services from the command flags. The
// returned provider must be closed by the caller.
func buildProvider(c *cli.Context) (ai.Provider, error) {
	aiConfig, err := buildAIConfig(c)
	if err != nil {
		return nil, err
	}
	provider, err := openai.NewProvider(aiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI provider: %w", err)
	}
	return provider, nil
}

// buildReconciler wires a reconciler from the command flags. Structured
// extraction is enabled only when a sheet ID is configured.
func buildReconciler(ctx context.Context, c *cli.Context, ledger *badger.Ledger, idx index.Index, provider ai.Provider) (*reconcile.Reconciler, error) {
	chunker, err := chunk.NewChunker(
		chunk.WithChunkSize(c.Int("chunk-size")),
		chunk.WithChunkOverlap(c.Int("chunk-overlap")),
	)
	if err != nil {
		return nil, err
	}

	var extractOpts []extract.Option
	if languages := c.String("ocr-languages"); languages != "" {
		extractOpts = append(extractOpts, extract.WithOCR(&extract.Tesseract{Languages: languages}))
	}
	extractor := extract.NewFileExtractor(extractOpts...)

	opts := []reconcile.Option{}
	if workers := c.Int("workers"); workers > 0 {
		opts = append(opts, reconcile.WithPoolSize(workers))
	}

	if sheetID := c.String("sheet-id"); sheetID != "" {
		rowSink, err := sheets.New(ctx, sheets.Config{
			SpreadsheetID:   sheetID,
			CredentialsFile: c.String("credentials"),
			Header:          openai.RowColumns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create sheet sink: %w", err)
		}
		if err := rowSink.Init(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize sheet: %w", err)
		}

		opts = append(opts,
			reconcile.WithFieldExtractor(provider.FieldExtractor()),
			reconcile.WithRowSink(rowSink),
			reconcile.WithArchive(sink.NewFileArchive(c.String("archive-dir"))),
		)
	}

	return reconcile.New(ledger, idx, provider.Embedder(), chunker, extractor, opts...)
}

func ingestCommand(c *cli.Context) error {
	docsDir := c.Args().First()
	if docsDir == "" {
		return fmt.Errorf("docs directory argument is required")
	}

	ctx := context.Background()

	ledger, err := openLedger(c)
	if err != nil {
		return err
	}
	defer ledger.Close()

	idx, err := openIndex(ctx, c)
	if err != nil {
		return err
	}
	defer idx.Close()

	provider, err := buildProvider(c)
	if err != nil {
		return err
	}
	defer provider.Close()

	reconciler, err := buildReconciler(ctx, c, ledger, idx, provider)
	if err != nil {
		return err
	}
	defer reconciler.Release()

	if c.Bool("reset") {
		if err := reconciler.Reset(ctx); err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}
	}

	docs, err := reconcile.DiscoverDocuments(docsDir)
	if err != nil {
		return fmt.Errorf("failed to discover documents: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Discovered %d documents in %s\n", len(docs), docsDir)

	report, err := reconciler.Run(ctx, docs)
	if report != nil {
		fmt.Fprintf(os.Stderr, "Run report: %s\n", report.String())
		for _, failure := range report.Failures() {
			fmt.Fprintf(os.Stderr, "  failed: %s: %v\n", failure.Document, failure.Err)
		}
	}
	if err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}
	return nil
}

func watchCommand(c *cli.Context) error {
	docsDir := c.Args().First()
	if docsDir == "" {
		return fmt.Errorf("docs directory argument is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := openLedger(c)
	if err != nil {
		return err
	}
	defer ledger.Close()

	idx, err := openIndex(ctx, c)
	if err != nil {
		return err
	}
	defer idx.Close()

	provider, err := buildProvider(c)
	if err != nil {
		return err
	}
	defer provider.Close()

	reconciler, err := buildReconciler(ctx, c, ledger, idx, provider)
	if err != nil {
		return err
	}
	defer reconciler.Release()

	watcher := reconcile.NewWatcher(reconciler, docsDir, c.Duration("debounce"))
	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func queryCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("question argument is required")
	}

	ctx := context.Background()

	idx, err := openIndex(ctx, c)
	if err != nil {
		return err
	}
	defer idx.Close()

	provider, err := buildProvider(c)
	if err != nil {
		return err
	}
	defer provider.Close()

	vector, err := provider.Embedder().EmbedText(ctx, question)
	if err != nil {
		return fmt.Errorf("failed to embed question: %w", err)
	}

	matches, err := idx.Search(ctx, vector, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(matches) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	for i, match := range matches {
		fmt.Printf("%d. [%.4f] %s #%d\n%s\n\n",
			i+1, match.Score, match.Entry.Document, match.Entry.Ordinal, match.Entry.Text)
	}
	return nil
}

func reindexCommand(c *cli.Context) error {
	ctx := context.Background()

	ledger, err := openLedger(c)
	if err != nil {
		return err
	}
	defer ledger.Close()

	idx, err := openIndex(ctx, c)
	if err != nil {
		return err
	}
	defer idx.Close()

	provider, err := buildProvider(c)
	if err != nil {
		return err
	}
	defer provider.Close()

	config := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	reindexer := reindex.NewReindexer(ledger, idx, provider.Embedder(), config, os.Stderr)
	if err := reindexer.Run(ctx); err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	return nil
}

func resetCommand(c *cli.Context) error {
	ctx := context.Background()

	ledger, err := openLedger(c)
	if err != nil {
		return err
	}
	defer ledger.Close()

	idx, err := openIndex(ctx, c)
	if err != nil {
		return err
	}
	defer idx.Close()

	if err := idx.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset index: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Index cleared.")

	if err := ledger.ResetAll(ctx); err != nil {
		return fmt.Errorf("failed to reset ledger: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Ledger cleared.")
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
