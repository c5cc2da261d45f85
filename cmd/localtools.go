package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voicegw/voicegw/internal/config"
	"github.com/voicegw/voicegw/internal/localtools"
)

func localtoolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "localtools",
		Short: "Run the local tool HTTP service (IDV, balances, disputes, knowledge base)",
		Run: func(cmd *cobra.Command, args []string) {
			runLocalTools()
		},
	}
}

func runLocalTools() {
	setupLogging()

	cfg, err := config.LoadLocalTools(resolveConfigPath())
	if err != nil {
		slog.Error("localtools: failed to load config", "error", err)
		os.Exit(1)
	}

	data := localtools.NewDataset()
	if cfg.DataFile != "" {
		data, err = localtools.LoadDataset(cfg.DataFile)
		if err != nil {
			slog.Error("localtools: failed to load dataset", "error", err)
			os.Exit(1)
		}
	}

	srv := localtools.NewServer(localtools.DefaultTools(data)...)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: srv.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("localtools: listening", "addr", cfg.ListenAddr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("localtools: server error", "error", err)
		os.Exit(2)
	}
}
