package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"segment_server/core/agent/llm"
	"segment_server/core/domain"
	"segment_server/core/service/segmentation"
	"segment_server/pkg/cache"
	"segment_server/pkg/logger"
	"segment_server/pkg/resilience"
)

var (
	inputFile  string
	outputFile string
	depth      string
	seed       uint64
	useLLM     bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "segmentctl",
	Short: "Offline customer segmentation",
	Long: `Segment customers from a purchase history file.

The input is JSON or YAML with a top level "customers" list, each entry
holding a customer_id and its purchases.

Commands:
  classify   - classify customers one at a time
  batch      - segment the whole file in one run (clusters large files)`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logger.LevelWarn
		if verbose {
			level = logger.LevelDebug
		}
		logger.Init(logger.Config{Level: level, Output: os.Stderr, Service: "segmentctl", Console: true})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&inputFile, "file", "f", "", "purchase history file (JSON or YAML)")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "write JSON results to this file")
	rootCmd.PersistentFlags().StringVar(&depth, "depth", string(domain.AnalysisDetailed), "analysis depth: basic, detailed, comprehensive")
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 42, "k-means seed")
	rootCmd.PersistentFlags().BoolVar(&useLLM, "llm", false, "consult the advisory model (needs OPENAI_API_KEY)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(classifyCmd, batchCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func requireInputFile() error {
	if inputFile == "" {
		return fmt.Errorf("input file is required, use -f flag")
	}
	return nil
}

// newService builds a segmentation service over ds with an in-memory cache.
func newService(ds *Dataset) (*segmentation.Service, error) {
	cfg := segmentation.DefaultConfig()
	cfg.KMeans.Seed = seed

	deps := &segmentation.Deps{
		Purchases: ds,
		Customers: ds,
		Cache:     cache.NewMemoryStore(ds.Len() + 1),
	}

	if useLLM {
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("--llm needs OPENAI_API_KEY")
		}
		breaker := resilience.NewBreaker(resilience.DefaultBreakerConfig("advisory"), zerolog.Nop())
		deps.Advisory = llm.NewProfileClient(llm.NewClient(key), breaker)
		cfg.AdvisoryTimeout = 20 * time.Second
	}

	return segmentation.NewService(deps, cfg), nil
}
