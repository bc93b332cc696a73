package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/noterosync/notero/internal/notion"
	"github.com/noterosync/notero/internal/state"
	"github.com/noterosync/notero/internal/sync"
	"github.com/noterosync/notero/internal/webhook"
	"github.com/noterosync/notero/internal/zotero"
)

var (
	serveWorkers   int
	serveQueueSize int
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server",
	Long: `Run the HTTP server that receives Notion webhook deliveries and
dispatches property and note sync tasks.

Endpoints:
  GET  /health          liveness check
  POST /webhook/notion  Notion webhook intake`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 4, "number of background sync workers")
	serveCmd.Flags().IntVar(&serveQueueSize, "queue-size", 256, "capacity of the sync task queue")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel)

	db, err := state.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	notionClient := notion.New(cfg.Notion.APIKey)
	zoteroClient := zotero.New(cfg.Zotero.APIKey, zotero.WithLogger(log))

	resolver := sync.NewCollectionResolver(db, zoteroClient, log)
	properties := sync.NewEngine(db, notionClient, zoteroClient, resolver, log)
	notes := sync.NewNoteEngine(db, notionClient, zoteroClient, log, cfg.DeleteOrphanedNotes)

	pool := webhook.NewPool(serveWorkers, serveQueueSize, log, db.MarkEventProcessed)
	defer pool.Shutdown()

	server := webhook.NewServer(db, cfg.Notion.WebhookSecret, pool, properties, notes, log)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("webhook server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
