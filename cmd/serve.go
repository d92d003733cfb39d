package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/draven0x/wayfinder/api/schemas"
	"github.com/draven0x/wayfinder/internal/api"
	"github.com/draven0x/wayfinder/internal/config"
	"github.com/draven0x/wayfinder/internal/embedding"
	"github.com/draven0x/wayfinder/internal/engine"
	"github.com/draven0x/wayfinder/internal/knowledgegraph"
	"github.com/draven0x/wayfinder/internal/observability"
	"github.com/draven0x/wayfinder/internal/vectorindex"
)

// newServeCmd creates the `serve` command, which wires the configured
// backends into an engine and runs the HTTP API until interrupted.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the navigation API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			embedder, dim, err := buildEmbedder(cfg)
			if err != nil {
				return err
			}

			graph, index, cleanup, err := buildBackends(ctx, cfg, dim, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			eng := engine.New(graph, index, embedder, cfg.Engine, logger)
			server := api.NewServer(eng, cfg.Server, logger)

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("shutdown: %w", err)
				}
				return <-errCh
			}
		},
	}
	return serveCmd
}

// buildEmbedder selects the embedding provider and reports its vector width
// so the pgvector table can be sized to match.
func buildEmbedder(cfg *config.Config) (schemas.Embedder, int, error) {
	switch cfg.Embedding.Provider {
	case "hugot":
		embedder, err := embedding.NewHugotEmbedder(cfg.Embedding.ModelDir)
		if err != nil {
			return nil, 0, fmt.Errorf("initialize hugot embedder: %w", err)
		}
		return embedder, embedding.HugotDim, nil
	case "hashing":
		dim := cfg.Embedding.Dim
		embedder := embedding.NewHashingEmbedder(dim)
		return embedder, embedder.Dim(), nil
	default:
		return nil, 0, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

// buildBackends pairs the graph store with a vector index on the same
// substrate: both in memory, or both on Postgres.
func buildBackends(ctx context.Context, cfg *config.Config, dim int, logger *zap.Logger) (schemas.GraphStore, schemas.VectorIndex, func(), error) {
	switch cfg.Database.Backend {
	case "memory":
		return knowledgegraph.NewInMemoryGraph(logger), vectorindex.NewMemoryIndex(), func() {}, nil

	case "postgres":
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
		defer cancel()

		pool, err := pgxpool.New(connectCtx, cfg.Database.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		graph, err := knowledgegraph.NewPostgresGraph(connectCtx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("connect graph store: %w", err)
		}
		if err := graph.EnsureSchema(connectCtx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("initialize graph schema: %w", err)
		}
		index := vectorindex.NewPgvectorIndex(pool, dim)
		if err := index.EnsureSchema(connectCtx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("initialize vector schema: %w", err)
		}
		return graph, index, pool.Close, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown database backend %q", cfg.Database.Backend)
	}
}
