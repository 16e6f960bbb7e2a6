package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/keelpm/keel/internal/api"
	"github.com/keelpm/keel/pkg/repo"
)

// newServeCmd creates the "serve" command running the HTTP API.
func newServeCmd() *cobra.Command {
	var (
		addr      string
		indexPath string
		maxSteps  int
		noCache   bool
		redisAddr string
		mongoURI  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP resolution API",
		Long: `Serve loads a package index and exposes resolution over HTTP.
Plans are persisted to MongoDB when --mongo (or $KEEL_MONGO_URI) is set,
otherwise to the local file store.`,
		Example: `  keel serve --index world.toml
  keel serve --index world.toml --addr :9000 --redis localhost:6379`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			ix, _, err := repo.LoadIndex(indexPath)
			if err != nil {
				return err
			}
			logger.Info("loaded index", "path", indexPath, "packages", ix.Len())

			var src repo.Source = ix
			if !noCache {
				c, err := openCache(ctx, redisAddr, "")
				if err != nil {
					logger.Warn("cache unavailable, serving uncached", "err", err)
				} else {
					defer c.Close()
					src = repo.NewCachedSource(ix, c, nil, indexPath)
				}
			}

			st, err := openStore(ctx, mongoURI)
			if err != nil {
				return err
			}
			defer st.Close(context.Background())

			server := api.NewServer(src, st, logger)
			if maxSteps > 0 {
				server = server.WithMaxSteps(maxSteps)
			}

			httpServer := &http.Server{
				Addr:              addr,
				Handler:           server.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", addr)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					return err
				}
				if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVarP(&indexPath, "index", "i", "", "path to the TOML package index (required)")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "cap resolver traversal steps per request (0 = default)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the candidate cache")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "redis address for the candidate cache (default $KEEL_REDIS_ADDR)")
	cmd.Flags().StringVar(&mongoURI, "mongo", "", "mongodb URI for the plan store (default $KEEL_MONGO_URI, else file store)")
	_ = cmd.MarkFlagRequired("index")

	return cmd
}
