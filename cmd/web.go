package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kayz/fable/internal/config"
	"github.com/kayz/fable/internal/logger"
	"github.com/kayz/fable/internal/webui"
)

var webListen string

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Run the debug inspection server",
	RunE:  runWeb,
}

func init() {
	rootCmd.AddCommand(webCmd)
	webCmd.Flags().StringVar(&webListen, "listen", "", "Listen address (default from config)")
}

func runWeb(cmd *cobra.Command, args []string) error {
	pipeline, store, err := openPipeline()
	if err != nil {
		return err
	}
	defer store.Close()

	listen := webListen
	if listen == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		listen = cfg.Web.Listen
	}
	if listen == "" {
		listen = "127.0.0.1:8790"
	}

	server := webui.NewServer(pipeline)
	httpServer := &http.Server{
		Addr:              listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Prompt inspector listening on http://%s", listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Inspector server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
