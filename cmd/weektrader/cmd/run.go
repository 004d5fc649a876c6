package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcoelho/weektrader/config"
	"github.com/rcoelho/weektrader/engine"
	"github.com/rcoelho/weektrader/journal"
	"github.com/rcoelho/weektrader/market"
	"github.com/rcoelho/weektrader/pkg/id"
	"github.com/rcoelho/weektrader/report"
	"github.com/rcoelho/weektrader/score"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest over the merged data",
	Long: `Run executes one backtest: load the merged series and models, replay
the date range, and write the trade log and summary.

A completed run exits 0 even when it produced zero trades; a non-zero
exit means setup failed before any simulation state was built (no data,
invalid dates, invalid parameters).

Example:
  weektrader run --start 2023-01-02 --end 2024-12-31 --capital 10000 \
    --threshold 0.6 --allocation 0.1 --pairs BTCUSDT,ETHUSDT`,
	RunE: runBacktest,
}

var (
	runConfigPath string
	runCapital    float64
	runStart      string
	runEnd        string
	runThreshold  float64
	runAllocation float64
	runPairs      []string
	runDataDir    string
	runModelsDir  string
	runOutDir     string
	runDBPath     string
	runONNXLib    string
	runLogLevel   string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "path to YAML/JSON run config; flags override it")
	runCmd.Flags().Float64Var(&runCapital, "capital", 10_000, "initial capital")
	runCmd.Flags().StringVar(&runStart, "start", "", "start date, inclusive (YYYY-MM-DD) (required)")
	runCmd.Flags().StringVar(&runEnd, "end", "", "end date, inclusive (YYYY-MM-DD) (required)")
	runCmd.Flags().Float64VarP(&runThreshold, "threshold", "t", 0.5, "buy-signal probability threshold in [0,1]")
	runCmd.Flags().Float64VarP(&runAllocation, "allocation", "a", 0.1, "fraction of cash eligible per entry day, in (0,1]")
	runCmd.Flags().StringSliceVarP(&runPairs, "pairs", "p", nil, "asset universe in priority order (default: all merged data, sorted)")
	runCmd.Flags().StringVar(&runDataDir, "data", "data/processed", "directory with <SYMBOL>_merged.csv files")
	runCmd.Flags().StringVar(&runModelsDir, "models", "data/models", "directory with <SYMBOL>_model.yaml descriptors")
	runCmd.Flags().StringVarP(&runOutDir, "out", "o", "data/backtest_results", "directory for trade-log CSVs")
	runCmd.Flags().StringVarP(&runDBPath, "db", "d", "", "optional SQLite run-history DB")
	runCmd.Flags().StringVar(&runONNXLib, "onnx-lib", "", "path to libonnxruntime shared library (enables onnx models)")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

// buildConfig merges the optional config file with explicit flags; any flag
// the user set wins over the file.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if runConfigPath != "" {
		loaded, err := config.LoadFromFile(runConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	set := cmd.Flags().Changed
	if set("capital") || runConfigPath == "" {
		cfg.Capital = runCapital
	}
	if set("start") {
		cfg.StartDate = runStart
	}
	if set("end") {
		cfg.EndDate = runEnd
	}
	if set("threshold") || runConfigPath == "" {
		cfg.Threshold = runThreshold
	}
	if set("allocation") || runConfigPath == "" {
		cfg.Allocation = runAllocation
	}
	if set("pairs") {
		cfg.Pairs = runPairs
	}
	if set("data") || runConfigPath == "" {
		cfg.DataDir = runDataDir
	}
	if set("models") || runConfigPath == "" {
		cfg.ModelsDir = runModelsDir
	}
	if set("out") || runConfigPath == "" {
		cfg.Journal.OutDir = runOutDir
	}
	if set("db") {
		cfg.Journal.DBPath = runDBPath
	}
	if set("onnx-lib") {
		cfg.ONNXLib = runONNXLib
	}
	if set("log-level") || runConfigPath == "" {
		cfg.LogLevel = runLogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	start, _ := cfg.Start()
	end, _ := cfg.End()
	entry, _ := cfg.Entry()
	exit, _ := cfg.Exit()

	symbols := cfg.Pairs
	if len(symbols) == 0 {
		symbols, err = market.DiscoverSymbols(cfg.DataDir)
		if err != nil {
			return err
		}
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols with merged data under %s", cfg.DataDir)
	}

	data := market.LoadDir(ctx, cfg.DataDir, symbols, start, end, log)
	if len(data) == 0 {
		return fmt.Errorf("no usable series for %d symbol(s) between %s and %s",
			len(symbols), cfg.StartDate, cfg.EndDate)
	}

	var rt *score.Runtime
	if cfg.ONNXLib != "" {
		rt = score.NewRuntime(cfg.ONNXLib)
		defer rt.Destroy()
	}
	scorers, skipped, err := score.LoadDir(cfg.ModelsDir, rt)
	if err != nil {
		log.Warn().Err(err).Msg("models not loaded, all assets will be skipped")
		scorers = score.NewProvider()
	}
	for sym, serr := range skipped {
		log.Warn().Str("symbol", sym).Err(serr).Msg("model descriptor skipped")
	}
	defer scorers.Close()

	eng, err := engine.New(data, scorers, engine.Config{
		InitialCapital: cfg.Capital,
		Threshold:      cfg.Threshold,
		Allocation:     cfg.Allocation,
		EntryDay:       entry,
		ExitDay:        exit,
		Universe:       cfg.Pairs,
	}, log)
	if err != nil {
		return err
	}

	log.Info().
		Float64("capital", cfg.Capital).
		Str("start", cfg.StartDate).
		Str("end", cfg.EndDate).
		Int("assets", len(data)).
		Int("models", scorers.Len()).
		Msg("starting backtest")

	res, err := eng.Run(ctx)
	if err != nil {
		return err
	}

	runID := id.New()
	summary := report.Valuate(res, data, log)
	summary.RunID = runID

	text, err := summary.Render()
	if err != nil {
		return err
	}
	fmt.Println(text)

	journals, logPath, err := openJournals(cfg, runID)
	if err != nil {
		return err
	}
	defer journals.Close()

	if err := report.Persist(journals, runID, summary, res.Final.Trades()); err != nil {
		return fmt.Errorf("persist trade log: %w", err)
	}
	if logPath != "" {
		fmt.Printf("Trade log: %s\n", logPath)
	}

	return nil
}

func openJournals(cfg *config.Config, runID string) (journal.Multi, string, error) {
	var js journal.Multi
	var logPath string

	if cfg.Journal.OutDir != "" {
		if err := os.MkdirAll(cfg.Journal.OutDir, 0o755); err != nil {
			return nil, "", fmt.Errorf("create output dir: %w", err)
		}
		logPath = filepath.Join(cfg.Journal.OutDir, journal.TradeLogName(runID, time.Now()))
		cj, err := journal.NewCSV(logPath)
		if err != nil {
			return nil, "", fmt.Errorf("open trade log: %w", err)
		}
		js = append(js, cj)
	}

	if cfg.Journal.DBPath != "" {
		sj, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			js.Close()
			return nil, "", fmt.Errorf("open run history db: %w", err)
		}
		js = append(js, sj)
	}

	return js, logPath, nil
}
