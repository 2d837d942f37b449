package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/jobscout/internal/dedup"
	"github.com/spigell/jobscout/internal/ledger"
	"github.com/spigell/jobscout/internal/lock"
	"github.com/spigell/jobscout/internal/pipeline"
	"github.com/spigell/jobscout/internal/scoring"
)

const (
	app = "jobscout"
)

type Config struct {
	Profile string         `mapstructure:"profile"`
	Ledger  *LedgerConfig  `mapstructure:"ledger"`
	Lock    *LockConfig    `mapstructure:"lock"`
	Dedup   *DedupConfig   `mapstructure:"dedup"`
	Scoring *ScoringConfig `mapstructure:"scoring"`
	AI      *AIConfig      `mapstructure:"ai"`
	Sources *SourcesConfig `mapstructure:"sources"`
	Server  *ServerConfig  `mapstructure:"server"`
}

type LedgerConfig struct {
	Driver  string `mapstructure:"driver"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn" json:"-"`
	DSNFile string `mapstructure:"dsn-file"`
}

type LockConfig struct {
	Driver   string        `mapstructure:"driver"`
	RedisURL string        `mapstructure:"redis-url" json:"-"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type DedupConfig struct {
	Threshold int `mapstructure:"threshold"`
}

type ScoringConfig struct {
	TopN int `mapstructure:"top-n"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type SourcesConfig struct {
	UserAgent string       `mapstructure:"user-agent"`
	Files     []string     `mapstructure:"files"`
	Feeds     []FeedConfig `mapstructure:"feeds"`
}

type FeedConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

type ServerConfig struct {
	Addr     string `mapstructure:"addr"`
	Schedule string `mapstructure:"schedule"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobscout collects job listings, keeps the ones worth a look and ranks them",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"profile":                "JOBSCOUT_PROFILE",
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"ledger.dsn":             "JOBSCOUT_DATABASE_URL",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("profile", "profile.json")
	viper.SetDefault("ledger.driver", ledger.DriverFile)
	viper.SetDefault("ledger.path", "jobscout-ledger.json")
	viper.SetDefault("lock.driver", lock.DriverLocal)
	viper.SetDefault("lock.ttl", lock.DefaultTTL)
	viper.SetDefault("dedup.threshold", dedup.DefaultThreshold)
	viper.SetDefault("scoring.top-n", scoring.DefaultTopN)
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.timeout", pipeline.DefaultAITimeout)
	viper.SetDefault("server.addr", "127.0.0.1:8080")

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobscout.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().StringP("profile", "p", "", "searcher profile file (json, yaml or toml)")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("profile", rootCmd.PersistentFlags().Lookup("profile"))
}

func initConfig() {
	if versionCmd.CalledAs() != "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	// An explicit config must exist; the implicit one is optional.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
