package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cvlab/rankpipe/internal/comparison"
	"github.com/cvlab/rankpipe/internal/logger"
)

var reportCmd = &cobra.Command{
	Use:   "report <run-name>",
	Short: "Build cross-pipeline comparison reports from a saved run",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		report(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().IntP("threshold", "t", 2, "minimum ranking spread for the high-variance listing")
}

func report(cmd *cobra.Command, name string) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	threshold, _ := cmd.Flags().GetInt("threshold")

	framework := comparison.New(viper.GetString("results-dir"), logger)
	summary, err := framework.WriteReport(name, threshold)
	if err != nil {
		logger.Fatal("building report", zap.Error(err))
	}

	fmt.Printf("run %s: %d candidates across %d pipeline runs\n", summary.Run, summary.Candidates, summary.Runs)
	fmt.Printf("%d candidates with ranking spread >= %d\n", summary.HighVariance, threshold)
	fmt.Printf("pivot: %s\n", summary.PivotPath)
	fmt.Printf("high variance: %s\n", summary.HighVariancePath)
}
