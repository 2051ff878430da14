package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/VictoriaMetrics/metrics"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kbus-project/kbus/pkg/bus"
	kbusmetrics "github.com/kbus-project/kbus/pkg/metrics"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run an in-process bus, exposing /metrics until interrupted",
	}
	load := bindConfigFlags(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := load()
		if err != nil {
			return err
		}
		configureLogging(cfg.LogLevel)

		b := bus.NewBus(cfg.Namespace)
		log.Info().Str("namespace", cfg.Namespace).Msg("kbusd: bus started")

		mux := http.NewServeMux()
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.WritePrometheus(w, true)
		})
		srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Err(err).Msg("kbusd: metrics server stopped unexpectedly")
			}
		}()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		log.Info().Msg("kbusd: shutting down, draining peers")
		b.DisconnectAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.DrainTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)

		kbusmetrics.SetActivePeers(len(b.Peers()))
		return nil
	}
	return cmd
}
