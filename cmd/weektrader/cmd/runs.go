package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcoelho/weektrader/journal"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List past backtest runs from the SQLite history",
	RunE:  listRuns,
}

var runsDBPath string

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().StringVarP(&runsDBPath, "db", "d", "./weektrader.sqlite", "path to SQLite run-history DB")
}

func listRuns(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(runsDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	runs, err := j.ListRuns()
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Printf("%-27s %-11s %-11s %12s %12s %9s %6s %6s\n",
		"RUN_ID", "START", "END", "CAPITAL", "FINAL", "RETURN%", "BUYS", "SELLS")
	for _, r := range runs {
		fmt.Printf("%-27s %-11s %-11s %12.2f %12.2f %9.2f %6d %6d\n",
			r.RunID,
			r.Start.Format("2006-01-02"),
			r.End.Format("2006-01-02"),
			r.InitialCapital,
			r.FinalValue,
			r.ReturnPct,
			r.Buys,
			r.Sells,
		)
	}
	return nil
}
