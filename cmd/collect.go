package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/logger"
	"github.com/spigell/jobscout/internal/source"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Fetch listings from every configured source and dump them to a file without filtering",
	Run: func(_ *cobra.Command, _ []string) {
		collect()
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)
}

func collect() {
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

	batch := source.CollectAll(ctx, newCollectors(config.Sources, logger), logger)
	if batch.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no listings collected"))
		return
	}

	filename, err := batch.DumpToTmpFile()
	if err != nil {
		logger.Fatal("dump listings to file", zap.Error(err))
	}
	logger.Info("dumping listings to file", zap.String("filename", filename), zap.Int("count", batch.Len()))
}
