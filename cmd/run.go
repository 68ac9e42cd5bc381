package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cvlab/rankpipe/internal/candidate"
	"github.com/cvlab/rankpipe/internal/comparison"
	"github.com/cvlab/rankpipe/internal/jobdata"
	"github.com/cvlab/rankpipe/internal/llm"
	"github.com/cvlab/rankpipe/internal/llm/anthropic"
	"github.com/cvlab/rankpipe/internal/llm/gemini"
	"github.com/cvlab/rankpipe/internal/llm/openai"
	"github.com/cvlab/rankpipe/internal/logger"
	"github.com/cvlab/rankpipe/internal/pipeline"
	"github.com/cvlab/rankpipe/internal/secrets"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"

	quickTestSize = 3
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configured pipelines over the candidate CVs and save the results",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSlice("models", nil, "model names to run, routed to providers by name")
	runCmd.Flags().StringSlice("pipelines", nil, "pipelines to run (default is all of them)")
	runCmd.Flags().StringSlice("cv-ids", nil, "restrict the run to these candidate ids")
	runCmd.Flags().StringP("experiment-name", "n", "", "name of the run (default is a timestamp)")
	runCmd.Flags().Bool("quick-test", false, "run on the first 3 candidates only")
	runCmd.Flags().String("data", "", "job data YAML file with job_ad and detailed_criteria")
	runCmd.Flags().String("candidates", "", "candidates JSON file")
	runCmd.Flags().Bool("blind", false, "redact candidate names in results")
	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before overwriting an existing run")

	viper.BindPFlag("models", runCmd.Flags().Lookup("models"))
	viper.BindPFlag("pipelines", runCmd.Flags().Lookup("pipelines"))
	viper.BindPFlag("data", runCmd.Flags().Lookup("data"))
	viper.BindPFlag("candidates", runCmd.Flags().Lookup("candidates"))
	viper.BindPFlag("blind", runCmd.Flags().Lookup("blind"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
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

	logger.Info("starting "+app, zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	config.Models = trimmedSlice(config.Models)
	if len(config.Models) == 0 {
		logger.Fatal("no models configured",
			zap.String("hint", "set models in the configuration file or pass --models"),
		)
	}

	pipelines := config.Pipelines
	if len(pipelines) == 0 {
		pipelines = pipeline.Names()
	}

	docs, err := jobdata.Load(viper.GetString("data"))
	if err != nil {
		logger.Fatal("loading job data", zap.Error(err))
	}

	candidates, err := candidate.Load(viper.GetString("candidates"))
	if err != nil {
		logger.Fatal("loading candidates", zap.Error(err))
	}

	cvIDs, _ := cmd.Flags().GetStringSlice("cv-ids")
	candidates = candidate.FilterByIDs(candidates, cvIDs)

	if quick, _ := cmd.Flags().GetBool("quick-test"); quick && len(candidates) > quickTestSize {
		candidates = candidates[:quickTestSize]
	}

	if len(candidates) == 0 {
		logger.Fatal("no candidates to rank",
			zap.Strings("cv_ids", cvIDs),
			zap.String("candidates_file", viper.GetString("candidates")),
		)
	}

	logger.Info("loaded inputs",
		zap.Int("candidates", len(candidates)),
		zap.Strings("models", config.Models),
		zap.Strings("pipelines", pipelines),
	)

	// construct every provider up front so that credential problems are
	// fatal before any tokens are spent
	providers := make(map[string]llm.Provider, len(config.Models))
	for _, model := range config.Models {
		provider, err := newProvider(ctx, config, model, logger)
		if err != nil {
			logger.Fatal("building provider", zap.String("model", model), zap.Error(err))
		}
		providers[model] = provider
	}

	name, _ := cmd.Flags().GetString("experiment-name")
	if name == "" {
		name = "run_" + time.Now().Format("20060102_150405")
	}

	framework := comparison.New(viper.GetString("results-dir"), logger)

	autoApprove, _ := cmd.Flags().GetBool("auto-approve")
	if framework.RunExists(name) && !autoApprove {
		overwritePrompt := promptui.Select{
			Label: fmt.Sprintf("Run %q already exists, overwrite?", name),
			Items: []string{PromptYes, PromptNo},
		}
		_, action, err := overwritePrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if action != PromptYes {
			logger.Info("exiting", zap.String("reason", "existing run kept"))
			return
		}
	}

	results := runPipelines(ctx, config, providers, pipelines, candidates, docs, logger)
	if len(results) == 0 {
		logger.Fatal("no results produced", zap.String("run", name))
	}

	if err := framework.SaveResults(results, name); err != nil {
		logger.Fatal("saving results", zap.Error(err))
	}

	logger.Info("run finished",
		zap.String("run", name),
		zap.String("dir", framework.RunDir(name)),
		zap.Int("results", len(results)),
	)
}

// runPipelines executes every (model × pipeline) combination. A failed
// combination is logged and skipped so one misbehaving provider does not
// sink the whole batch.
func runPipelines(
	ctx context.Context,
	config *Config,
	providers map[string]llm.Provider,
	pipelines []string,
	candidates []candidate.Candidate,
	docs *jobdata.Documents,
	logger *zap.Logger,
) []*pipeline.Result {
	opts := pipeline.Options{
		BlindNames:   viper.GetBool("blind"),
		MaxLogLength: config.MaxLogLength,
		MaxRetries:   pipeline.DefaultMaxRetries,
		RetryDelay:   pipeline.DefaultRetryDelay,
	}
	if config.Decomposed != nil {
		if config.Decomposed.MaxRetries > 0 {
			opts.MaxRetries = config.Decomposed.MaxRetries
		}
		if config.Decomposed.RetryDelay > 0 {
			opts.RetryDelay = config.Decomposed.RetryDelay
		}
	}

	var results []*pipeline.Result
	for _, model := range config.Models {
		provider := providers[model]
		for _, name := range pipelines {
			runLogger := logger.With(
				zap.String("pipeline", name),
				zap.String("provider", provider.Name()),
				zap.String("model", provider.Model()),
			)

			p, err := pipeline.New(name, provider, runLogger, opts)
			if err != nil {
				logger.Fatal("building pipeline", zap.String("pipeline", name), zap.Error(err))
			}

			runLogger.Info("running pipeline", zap.Int("candidates", len(candidates)))
			started := time.Now()

			result, err := p.Analyze(ctx, candidates, docs.JobAd, docs.DetailedCriteria)
			if err != nil {
				runLogger.Warn("pipeline failed, skipping", zap.Error(err))
				continue
			}

			result.Metadata["duration_seconds"] = time.Since(started).Seconds()
			results = append(results, result)

			runLogger.Info("pipeline finished",
				zap.Int("rankings", len(result.Rankings)),
				zap.Duration("duration", time.Since(started)),
			)
		}
	}
	return results
}

// newProvider builds the provider responsible for a model name. Explicit
// routes from the config win over the name-prefix heuristic.
func newProvider(ctx context.Context, config *Config, model string, logger *zap.Logger) (llm.Provider, error) {
	vendor := llm.VendorFor(model, config.Routes)
	providerLogger := logger.With(zap.String("provider", vendor), zap.String("model", model))

	switch vendor {
	case llm.VendorGemini:
		cfg := providerConfig(config, llm.VendorGemini)
		apiKey, err := loadAPIKey("gemini api key", "GEMINI_API_KEY", cfg)
		if err != nil {
			return nil, err
		}
		return gemini.New(ctx, gemini.Config{
			APIKey:      apiKey,
			Model:       model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}, providerLogger)
	case llm.VendorAnthropic:
		cfg := providerConfig(config, llm.VendorAnthropic)
		apiKey, err := loadAPIKey("anthropic api key", "ANTHROPIC_API_KEY", cfg)
		if err != nil {
			return nil, err
		}
		return anthropic.New(anthropic.Config{
			APIKey:      apiKey,
			Model:       model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}, providerLogger), nil
	case llm.VendorOpenAI:
		cfg := providerConfig(config, llm.VendorOpenAI)
		apiKey, err := loadAPIKey("openai api key", "OPENAI_API_KEY", cfg)
		if err != nil {
			return nil, err
		}
		return openai.New(openai.Config{
			APIKey:      apiKey,
			Model:       model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}, providerLogger), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q for model %q", vendor, model)
	}
}

// providerConfig returns the vendor section of the config, or an empty one
// when the section is absent.
func providerConfig(config *Config, vendor string) *ProviderConfig {
	if config.Providers == nil {
		return &ProviderConfig{}
	}

	var cfg *ProviderConfig
	switch vendor {
	case llm.VendorGemini:
		cfg = config.Providers.Gemini
	case llm.VendorAnthropic:
		cfg = config.Providers.Anthropic
	case llm.VendorOpenAI:
		cfg = config.Providers.OpenAI
	}

	if cfg == nil {
		return &ProviderConfig{}
	}
	return cfg
}

func loadAPIKey(name, envVar string, cfg *ProviderConfig) (string, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name: name,
		Env:  envVar,
		File: cfg.APIKeyFile,
	})
	if err != nil {
		return "", fmt.Errorf("%w (set %s or the provider api-key-file in the configuration file)", err, envVar)
	}
	return apiKey, nil
}

func trimmedSlice(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
