package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/lmarban/shopmind-go/internal/logging"
	"github.com/lmarban/shopmind-go/internal/server"
	"github.com/lmarban/shopmind-go/internal/store"
	"github.com/lmarban/shopmind-go/internal/tracing"
)

// NewServeCmd constructs the `shopmind serve` command, which starts the HTTP
// server exposing the discovery pipeline as a REST API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ShopMind HTTP server",
		Long: `Start the ShopMind HTTP server on localhost.

The server exposes text search, image search, and a conversational chat
endpoint with per-session history, plus health, readiness, and Prometheus
metrics endpoints.

Examples:
  shopmind serve
  shopmind serve --port 9090
  MODEL_PROVIDER=openai shopmind serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting",
				slog.String("provider", os.Getenv("MODEL_PROVIDER")),
				slog.String("index_backend", os.Getenv("INDEX_BACKEND")),
			)

			// Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			eng, pingers, cleanup, err := buildEngine(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer cleanup()

			// Open session history store. SHOPMIND_HISTORY_DB overrides the
			// default path (~/.shopmind/history.db); "disabled" turns it off.
			var historyStore store.HistoryStore
			dbPath := os.Getenv("SHOPMIND_HISTORY_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = store.DefaultDBPath()
					if err != nil {
						log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					hs, hsErr := store.Open(dbPath)
					if hsErr != nil {
						log.Warn("history: failed to open store, disabling", slog.Any("error", hsErr))
					} else {
						historyStore = hs
						defer func() { _ = hs.Close() }()
						log.Info("history: store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("history: disabled via SHOPMIND_HISTORY_DB=disabled")
			}

			srv, err := server.New(eng, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("SHOPMIND_API_KEY"),
				History: historyStore,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
