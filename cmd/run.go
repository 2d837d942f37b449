package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/logger"
	"github.com/spigell/jobscout/internal/pipeline"
	"github.com/spigell/jobscout/internal/scoring"
)

const (
	PromptExit             = "Exit"
	PromptBack             = "back"
	PromptReportByPriority = "Report by priority"
	PromptReview           = "Review listings"
	PromptResultsToFile    = "Dump results to file"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptReportByPriority, PromptReview, PromptResultsToFile, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect, filter and rank listings once",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("ignore-ledger", "f", false, "do not exclude listings delivered by earlier runs")
	runCmd.Flags().BoolP("yes", "y", false, "print the report and exit without the interactive menu")
	runCmd.Flags().Bool("no-ai", false, "rank by rule score only")
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
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

	logger.Info("starting the jobscout", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	comps, err := build(ctx, config, logger, buildOptions{
		ignoreLedger: flagIsSet(cmd, "ignore-ledger"),
		disableAI:    flagIsSet(cmd, "no-ai"),
	})
	if err != nil {
		logger.Fatal("preparing the pipeline", zap.Error(err))
	}
	defer comps.Close()

	out, err := comps.pipeline.Run(ctx)
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			logger.Error("exiting", zap.String("reason", "another run is in progress"))
			return
		}
		logger.Error("run failed", zap.Error(err))
		return
	}

	if len(out.Results) == 0 {
		logger.Info("exiting", zap.String("reason", "no new listings found"))
		return
	}

	if flagIsSet(cmd, "yes") {
		reportByPriority(logger, out.Results)
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Info("exiting", zap.Error(err))
			return
		}

		if err := handleAction(action, logger, out.Results); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Error("exiting", zap.Error(err))
			return
		}
	}
}

func handleAction(action string, logger *zap.Logger, results []scoring.Result) error {
	switch action {
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	case PromptReportByPriority:
		reportByPriority(logger, results)
		return nil
	case PromptReview:
		return review(logger, results)
	case PromptResultsToFile:
		filename, err := scoring.DumpToTmpFile(results)
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func reportByPriority(logger *zap.Logger, results []scoring.Result) {
	pretty, _ := json.MarshalIndent(scoring.ReportByPriority(results), "", "  ")
	logger.Info(string(pretty), zap.Int("listings count", len(results)))
}

// review lets the user step through the ranked listings one by one.
func review(logger *zap.Logger, results []scoring.Result) error {
	items := make([]string, 0, len(results)+1)
	for i, r := range results {
		items = append(items, fmt.Sprintf("%d %s / %s / %s / %s",
			i+1, scoring.FormatScore(r.Score), r.Title, r.Company, r.URL,
		))
	}
	items = append(items, PromptBack)

	for {
		listingPrompt := promptui.Select{
			Label: "Choose a listing and press ENTER",
			Items: items,
			Size:  10,
		}

		idx, selected, err := listingPrompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptBack {
			return nil
		}

		r := results[idx]
		logger.Info("listing",
			zap.String("title", r.Title),
			zap.String("company", r.Company),
			zap.String("url", r.URL),
			zap.String("location", r.Location),
			zap.String("priority", string(r.Priority)),
			zap.Float64("score", r.Score),
			zap.Float64("rule_score", r.RuleScore),
			zap.Int("ai_score", r.AIScore),
			zap.String("summary", r.Summary),
			zap.String("key_matches", strings.Join(r.KeyMatches, ", ")),
			zap.String("gaps", strings.Join(r.Gaps, ", ")),
		)
	}
}

func flagIsSet(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}
	flag := cmd.Flag(name)
	return flag != nil && strings.EqualFold(flag.Value.String(), "true")
}
