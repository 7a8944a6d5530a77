package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/FrenchMajesty/newsbench"
	"github.com/FrenchMajesty/newsbench/corpus"
	"github.com/FrenchMajesty/newsbench/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	configPath string
	verbose    bool
	logFile    string
	portions   []float64
	strategies []string
	chartsDir  string
	resultsDir string
	resultsDB  string
	datasetCSV string
	cacheDir   string
	archiveURL string

	// single-strategy flag
	portion float64

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Benchmark newsgroup classifiers across training portions",
	Long: `Trains and evaluates three text classifiers on a 4-category subset of
the 20 Newsgroups corpus while sweeping the fraction of training data:

  linear    TF-IDF features + logistic regression
  finetune  subword tokenizer + trained sequence classifier
  zeroshot  candidate-label scoring without training

API keys are read from the environment or a .env file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		var err error
		logger, err = logging.New(logging.Options{Verbose: verbose, File: logFile})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sweep every strategy over every portion and chart the results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bench, err := newBenchmark(cmd)
		if err != nil {
			return err
		}
		defer bench.Close()

		_, err = bench.Run(cmd.Context())
		return err
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the corpus archive into the cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := corpus.NewNewsgroupsSource(corpus.NewsgroupsConfig{
			URL:      archiveURL,
			CacheDir: cacheDir,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		path, err := source.EnsureArchive(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

// strategyCmd runs one strategy at a single portion
func strategyCmd(name, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bench, err := newBenchmark(cmd)
			if err != nil {
				return err
			}
			defer bench.Close()

			_, err = bench.RunStrategy(cmd.Context(), name, portion)
			return err
		},
	}
	cmd.Flags().Float64Var(&portion, "portion", 1.0, "fraction of the train split to use")
	return cmd
}

func newBenchmark(cmd *cobra.Command) (*newsbench.Benchmark, error) {
	var cfg newsbench.Config
	if configPath != "" {
		loaded, err := newsbench.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// flags override the config file only when set explicitly
	flags := cmd.Flags()
	if flags.Changed("portions") {
		cfg.Portions = portions
	}
	if flags.Changed("strategies") {
		cfg.Strategies = strategies
	}
	if flags.Changed("charts-dir") {
		cfg.ChartsDir = chartsDir
	}
	if flags.Changed("results-dir") {
		cfg.ResultsDir = resultsDir
	}
	if flags.Changed("results-db") {
		cfg.ResultsDB = resultsDB
	}
	if flags.Changed("dataset-csv") {
		cfg.DatasetCSV = datasetCSV
	}
	if flags.Changed("cache-dir") {
		cfg.CacheDir = cacheDir
	}
	cfg.Out = cmd.OutOrStdout()
	cfg.Logger = logger

	return newsbench.NewBenchmark(cfg)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML config file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&logFile, "log-file", "", "also write JSON logs to this rotating file")
	pf.StringVar(&resultsDB, "results-db", "", "SQLite database to append results to")
	pf.StringVar(&datasetCSV, "dataset-csv", "", "read documents from a text,category,subset CSV instead of the archive")
	pf.StringVar(&cacheDir, "cache-dir", "", "corpus archive cache directory")

	runCmd.Flags().Float64SliceVar(&portions, "portions", nil, "training portions to sweep (default 0.1,0.5,1)")
	runCmd.Flags().StringSliceVar(&strategies, "strategies", nil, "strategies to run, in order (default linear,finetune,zeroshot)")
	runCmd.Flags().StringVar(&chartsDir, "charts-dir", "", "directory for chart PNGs (default charts)")
	runCmd.Flags().StringVar(&resultsDir, "results-dir", "", "directory for JSON result dumps (default results)")

	fetchCmd.Flags().StringVar(&archiveURL, "url", corpus.NewsgroupsArchiveURL, "archive download URL")

	rootCmd.AddCommand(runCmd, fetchCmd,
		strategyCmd(newsbench.StrategyLinear, "Run TF-IDF + logistic regression at one portion"),
		strategyCmd(newsbench.StrategyFinetune, "Train and evaluate the sequence classifier at one portion"),
		strategyCmd(newsbench.StrategyZeroShot, "Run zero-shot classification at one portion"),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger != nil {
			logger.Error("benchmark failed", zap.Error(err))
			_ = logger.Sync()
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
