package cmd

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "rankpipe"
)

type Config struct {
	Data         string            `mapstructure:"data"`
	Candidates   string            `mapstructure:"candidates"`
	ResultsDir   string            `mapstructure:"results-dir"`
	Models       []string          `mapstructure:"models"`
	Pipelines    []string          `mapstructure:"pipelines"`
	Routes       map[string]string `mapstructure:"routes"`
	Blind        bool              `mapstructure:"blind"`
	MaxLogLength int               `mapstructure:"max-log-length"`
	Providers    *ProvidersConfig  `mapstructure:"providers"`
	Decomposed   *DecomposedConfig `mapstructure:"decomposed"`
}

type ProvidersConfig struct {
	Gemini    *ProviderConfig `mapstructure:"gemini"`
	OpenAI    *ProviderConfig `mapstructure:"openai"`
	Anthropic *ProviderConfig `mapstructure:"anthropic"`
}

type ProviderConfig struct {
	APIKeyFile  string  `mapstructure:"api-key-file"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max-tokens"`
}

type DecomposedConfig struct {
	MaxRetries int           `mapstructure:"max-retries"`
	RetryDelay time.Duration `mapstructure:"retry-delay"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "rankpipe ranks candidate CVs against a job description with multiple LLM pipelines",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is rankpipe.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// credentials may live in a local .env file
	_ = godotenv.Load()

	viper.SetDefault("data", "job_data.yaml")
	viper.SetDefault("candidates", "cvs_sanitized.json")
	viper.SetDefault("results-dir", "results")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// the config file is optional unless explicitly requested
		if _, notFound := err.(viper.ConfigFileNotFoundError); notFound && cfgFile == "" {
			return
		}
		log.Fatal(err)
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
