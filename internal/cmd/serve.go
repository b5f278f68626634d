package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/MeKo-Tech/edgecanvas/internal/edge"
	"github.com/MeKo-Tech/edgecanvas/internal/generate"
	"github.com/MeKo-Tech/edgecanvas/internal/history"
	"github.com/MeKo-Tech/edgecanvas/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the editing session API over HTTP",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().String("history-db", "", "SQLite file for overlay snapshot history (empty disables history)")
	serveCmd.Flags().String("generation-endpoint", generate.DefaultEndpoint, "Image generation service endpoint")
	serveCmd.Flags().String("generation-model", "", "Default generation model")
	serveCmd.Flags().String("aspect-ratio", "", "Default generation aspect ratio")
	serveCmd.Flags().String("api-key", "", "Generation service API key (or EDGECANVAS_API_KEY)")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"serve.addr", "addr"},
		{"serve.history_db", "history-db"},
		{"serve.generation_endpoint", "generation-endpoint"},
		{"serve.generation_model", "generation-model"},
		{"serve.aspect_ratio", "aspect-ratio"},
		{"api_key", "api-key"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, serveCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	addr := viper.GetString("serve.addr")
	historyDB := viper.GetString("serve.history_db")
	endpoint := viper.GetString("serve.generation_endpoint")
	model := viper.GetString("serve.generation_model")
	aspectRatio := viper.GetString("serve.aspect_ratio")
	apiKey := viper.GetString("api_key")

	var store *history.Store
	if historyDB != "" {
		var err error
		store, err = history.Open(historyDB)
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer store.Close() // nolint:errcheck
	}

	sessions := server.NewSessions(server.Config{
		Extractor:   edge.NewCanny(logger),
		Generator:   generate.NewHTTPClient(endpoint, logger),
		History:     store,
		APIKey:      apiKey,
		Model:       model,
		AspectRatio: aspectRatio,
		Logger:      logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/status", sessions.StatusHandler())
	mux.Handle("/sessions", sessions.Handler())
	mux.Handle("/sessions/", sessions.Handler())

	logger.Info("session server listening",
		"addr", addr,
		"history_db", historyDB,
		"generation_endpoint", endpoint,
	)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return srv.ListenAndServe()
}
