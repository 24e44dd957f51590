package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mattchw/mad-matt-ai/internal/chunker"
	"github.com/mattchw/mad-matt-ai/internal/config"
	"github.com/mattchw/mad-matt-ai/internal/domain"
	"github.com/mattchw/mad-matt-ai/internal/embedding"
	"github.com/mattchw/mad-matt-ai/internal/httpapi"
	"github.com/mattchw/mad-matt-ai/internal/loader"
	"github.com/mattchw/mad-matt-ai/internal/logging"
	"github.com/mattchw/mad-matt-ai/internal/pipeline"
	"github.com/mattchw/mad-matt-ai/internal/synthesizer"
	"github.com/mattchw/mad-matt-ai/internal/tui"
	"github.com/mattchw/mad-matt-ai/internal/vectorstore/chromem"
	"github.com/mattchw/mad-matt-ai/internal/vectorstore/memory"
	"github.com/mattchw/mad-matt-ai/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "madmatt",
		Short:         "Document question answering over your own notes",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file")

	root.AddCommand(newIngestCmd(&cfgPath))
	root.AddCommand(newAskCmd(&cfgPath))
	root.AddCommand(newServeCmd(&cfgPath))
	root.AddCommand(newChatCmd(&cfgPath))
	return root
}

// app holds the assembled components shared by the subcommands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	embedder domain.Embedder
	store    domain.VectorStore
	closeFns []func()
}

func (a *app) close() {
	for _, fn := range a.closeFns {
		fn()
	}
	_ = a.logger.Sync()
}

func buildApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	emb, err := embedding.New(embedding.Config{
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
		APIKey:  cfg.EmbeddingAPIKey(),
	})
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, embedder: emb}

	switch cfg.Store.Provider {
	case "memory":
		a.store = memory.New()
	case "chromem":
		store, err := chromem.New(chromem.Config{
			Path:     cfg.Store.Chromem.Path,
			Compress: cfg.Store.Chromem.Compress,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("chromem store: %w", err)
		}
		a.store = store
	case "qdrant":
		store, err := qdrant.New(qdrant.Config{
			Host:   cfg.Store.Qdrant.Host,
			Port:   cfg.Store.Qdrant.Port,
			APIKey: cfg.QdrantAPIKey(),
			UseTLS: cfg.Store.Qdrant.UseTLS,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("qdrant store: %w", err)
		}
		a.store = store
		a.closeFns = append(a.closeFns, func() { _ = store.Close() })
	default:
		return nil, fmt.Errorf("unknown store provider %q", cfg.Store.Provider)
	}

	return a, nil
}

func (a *app) newQuerier() (*pipeline.Querier, error) {
	synth, err := synthesizer.New(synthesizer.Config{
		BaseURL:     a.cfg.Synthesizer.BaseURL,
		Model:       a.cfg.Synthesizer.Model,
		APIKey:      a.cfg.SynthesizerAPIKey(),
		Temperature: a.cfg.Synthesizer.Temperature,
		MaxTokens:   a.cfg.Synthesizer.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesizer: %w", err)
	}
	return pipeline.NewQuerier(a.embedder, a.store, synth, a.logger, pipeline.QuerierConfig{
		TopK:           a.cfg.Retrieval.TopK,
		ScoreThreshold: a.cfg.Retrieval.ScoreThreshold,
	}), nil
}

func newIngestCmd(cfgPath *string) *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "ingest <dir>",
		Short: "Load, chunk, embed and index the documents in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			docs, err := loader.LoadDir(args[0])
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				return fmt.Errorf("no documents found in %s", args[0])
			}

			ch, err := chunker.New(a.cfg.Chunking.MaxChunkSize, a.cfg.Chunking.Overlap)
			if err != nil {
				return err
			}

			if namespace == "" {
				namespace = a.cfg.Store.Namespace
			}

			ingestor := pipeline.NewIngestor(ch, a.embedder, a.store, a.logger, a.cfg.Ingest.BatchSize)
			written, err := ingestor.Ingest(cmd.Context(), docs, namespace)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d documents as %d chunks into %q\n", len(docs), written, namespace)
			return nil
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "", "target namespace (defaults to store.namespace)")
	return cmd
}

func newAskCmd(cfgPath *string) *cobra.Command {
	var namespace string
	var topK int

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question and print the answer with its sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			querier, err := a.newQuerier()
			if err != nil {
				return err
			}
			if namespace == "" {
				namespace = a.cfg.Store.Namespace
			}

			answer, err := querier.Answer(cmd.Context(), args[0], namespace, topK)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, answer.Text)
			if len(answer.Context) > 0 {
				fmt.Fprintln(out)
				for _, rec := range answer.Context {
					source := rec.Metadata[domain.MetaSource]
					if source == "" {
						source = rec.ID
					}
					fmt.Fprintf(out, "  %-40s %.3f\n", source, rec.Score)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "", "namespace to query (defaults to store.namespace)")
	cmd.Flags().IntVar(&topK, "top-k", 0, "number of passages to retrieve (defaults to retrieval.top_k)")
	return cmd
}

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			querier, err := a.newQuerier()
			if err != nil {
				return err
			}

			srv, err := httpapi.NewServer(querier, a.logger, httpapi.Config{
				Host:      a.cfg.Server.Host,
				Port:      a.cfg.Server.Port,
				Namespace: a.cfg.Store.Namespace,
			})
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newChatCmd(cfgPath *string) *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with your documents in an interactive terminal session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			querier, err := a.newQuerier()
			if err != nil {
				return err
			}
			if namespace == "" {
				namespace = a.cfg.Store.Namespace
			}

			m := tui.New(querier, namespace)
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "", "namespace to chat against (defaults to store.namespace)")
	return cmd
}
