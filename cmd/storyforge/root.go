package storyforge

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	storyforge "github.com/storyforge/go-storyforge"
	"github.com/storyforge/go-storyforge/pkg/config"
	"github.com/storyforge/go-storyforge/pkg/llm"
	"github.com/storyforge/go-storyforge/pkg/logger"
	"github.com/storyforge/go-storyforge/pkg/store"
	"github.com/storyforge/go-storyforge/pkg/store/sqlite"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "storyforge",
	Short: "Narrative entity synchronization for AI-assisted novel writing",
	Long: `StoryForge keeps a novel project's character and organization graph in
sync with its generated narrative.

Two operations cover the writing loop:
- sync: materialize entities newly mentioned in outline text
- analyze: fold an analyzed chapter's changes back into the graph`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default storyforge.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path")
	rootCmd.PersistentFlags().String("llm-model", "", "LLM model")
	rootCmd.PersistentFlags().String("llm-api-key", "", "LLM API key")
	rootCmd.PersistentFlags().String("llm-base-url", "", "LLM base URL")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("storage.path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("llm.model", rootCmd.PersistentFlags().Lookup("llm-model"))
	viper.BindPFlag("llm.api_key", rootCmd.PersistentFlags().Lookup("llm-api-key"))
	viper.BindPFlag("llm.base_url", rootCmd.PersistentFlags().Lookup("llm-base-url"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("storyforge")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	viper.AutomaticEnv()
	// A missing config file is fine; defaults and env cover it.
	_ = viper.ReadInConfig()
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newClient builds a StoryForge client from the loaded configuration. The
// returned client owns the store and LLM connections.
func newClient(cfg *config.Config) (*storyforge.Client, error) {
	log := logger.NewDefaultLogger(logLevel(cfg.Log.Level))

	graphStore, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	var llmClient llm.Client
	if cfg.LLM.APIKey != "" {
		temperature := cfg.LLM.Temperature
		maxTokens := cfg.LLM.MaxTokens
		llmClient = llm.NewBreakerClient(llm.NewOpenAIClient(cfg.LLM.APIKey, llm.Config{
			Model:       cfg.LLM.Model,
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
			BaseURL:     cfg.LLM.BaseURL,
		}))
	}

	return storyforge.NewClient(graphStore, llmClient, &storyforge.Config{Logger: log}), nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite", "":
		s, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
