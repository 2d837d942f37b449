package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/logger"
	"github.com/spigell/jobscout/internal/metrics"
	"github.com/spigell/jobscout/internal/profile"
	"github.com/spigell/jobscout/internal/scheduler"
	"github.com/spigell/jobscout/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local control plane and run searches on demand or on a schedule",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default 127.0.0.1:8080)")
	serveCmd.Flags().String("schedule", "", `cron schedule for periodic runs, e.g. "@every 6h"`)
	serveCmd.Flags().Bool("no-ai", false, "rank by rule score only")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("server.schedule", serveCmd.Flags().Lookup("schedule"))
}

func serve(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(logger.Options{JSON: viper.GetBool("json"), Debug: viper.GetBool("debug")})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config.Server == nil {
		config.Server = &ServerConfig{Addr: viper.GetString("server.addr")}
	}

	logger.Info("starting the jobscout control plane", zap.String("version", version))

	comps, err := build(ctx, config, logger, buildOptions{
		watchProfile: true,
		disableAI:    flagIsSet(cmd, "no-ai"),
	})
	if err != nil {
		logger.Fatal("preparing the pipeline", zap.Error(err))
	}
	defer comps.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.MustRegister(registry)

	if config.Server.Schedule != "" {
		sched := scheduler.New(config.Server.Schedule, comps.pipeline.Run, logger)
		if err := sched.Start(ctx); err != nil {
			logger.Fatal("starting the scheduler", zap.Error(err))
		}
		defer sched.Stop()
	}

	profilePath := config.Profile
	srv := server.New(comps.pipeline, comps.profiles,
		server.WithLogger(logger),
		server.WithGatherer(registry),
		server.WithProfileSaver(func(p *profile.Profile) error {
			return profile.Save(profilePath, p)
		}),
	)

	if err := srv.ListenAndServe(ctx, config.Server.Addr); err != nil {
		logger.Error("control plane stopped", zap.Error(err))
		return
	}
	logger.Info("control plane stopped")
}
