package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cvlab/rankpipe/internal/llm"
	"github.com/cvlab/rankpipe/internal/llm/anthropic"
	"github.com/cvlab/rankpipe/internal/llm/gemini"
	"github.com/cvlab/rankpipe/internal/llm/openai"
	"github.com/cvlab/rankpipe/internal/logger"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models available to each provider with a configured credential",
	Run: func(_ *cobra.Command, _ []string) {
		listModels()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

// modelLister is satisfied by every provider client.
type modelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

func listModels() {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		config = &Config{}
	}

	for _, vendor := range []string{llm.VendorGemini, llm.VendorOpenAI, llm.VendorAnthropic} {
		lister, err := newModelLister(ctx, config, vendor, logger)
		if err != nil {
			logger.Warn("skipping provider", zap.String("provider", vendor), zap.Error(err))
			continue
		}

		models, err := lister.ListModels(ctx)
		if err != nil {
			logger.Warn("listing models failed", zap.String("provider", vendor), zap.Error(err))
			continue
		}

		fmt.Printf("%s (%d models):\n", vendor, len(models))
		for _, model := range models {
			fmt.Printf("  %s\n", model)
		}
	}
}

func newModelLister(ctx context.Context, config *Config, vendor string, logger *zap.Logger) (modelLister, error) {
	cfg := providerConfig(config, vendor)

	switch vendor {
	case llm.VendorGemini:
		apiKey, err := loadAPIKey("gemini api key", "GEMINI_API_KEY", cfg)
		if err != nil {
			return nil, err
		}
		return gemini.New(ctx, gemini.Config{APIKey: apiKey}, logger)
	case llm.VendorAnthropic:
		apiKey, err := loadAPIKey("anthropic api key", "ANTHROPIC_API_KEY", cfg)
		if err != nil {
			return nil, err
		}
		return anthropic.New(anthropic.Config{APIKey: apiKey}, logger), nil
	case llm.VendorOpenAI:
		apiKey, err := loadAPIKey("openai api key", "OPENAI_API_KEY", cfg)
		if err != nil {
			return nil, err
		}
		return openai.New(openai.Config{APIKey: apiKey}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", vendor)
	}
}
