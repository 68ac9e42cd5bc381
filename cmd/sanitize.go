package cmd

import (
	"log"
	"math/rand"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cvlab/rankpipe/internal/candidate"
	"github.com/cvlab/rankpipe/internal/logger"
)

var sanitizeCmd = &cobra.Command{
	Use:   "sanitize",
	Short: "Blind a candidate list: randomized ids, shuffled order, and a reversal mapping",
	Run: func(cmd *cobra.Command, _ []string) {
		sanitize(cmd)
	},
}

func init() {
	rootCmd.AddCommand(sanitizeCmd)

	sanitizeCmd.Flags().StringP("input", "i", "cvs.json", "candidates JSON file to blind")
	sanitizeCmd.Flags().StringP("output", "o", "cvs_sanitized.json", "where to write the blinded candidates")
	sanitizeCmd.Flags().StringP("mapping", "m", "cv_id_mapping.json", "where to write the id mapping")
	sanitizeCmd.Flags().Int64("seed", 0, "random seed (0 means time-based)")
}

func sanitize(cmd *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	mappingPath, _ := cmd.Flags().GetString("mapping")

	seed, _ := cmd.Flags().GetInt64("seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	candidates, err := candidate.Load(input)
	if err != nil {
		logger.Fatal("loading candidates", zap.Error(err))
	}
	if len(candidates) == 0 {
		logger.Fatal("no candidates to sanitize", zap.String("input", input))
	}

	sanitized, mapping := candidate.Sanitize(candidates, rand.New(rand.NewSource(seed)))

	if err := candidate.WriteJSON(output, sanitized); err != nil {
		logger.Fatal("writing sanitized candidates", zap.Error(err))
	}
	if err := candidate.WriteJSON(mappingPath, mapping); err != nil {
		logger.Fatal("writing id mapping", zap.Error(err))
	}

	logger.Info("candidates sanitized",
		zap.Int("count", len(sanitized)),
		zap.String("output", output),
		zap.String("mapping", mappingPath),
	)
}
