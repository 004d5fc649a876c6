package market

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const mergedSuffix = "_merged.csv"

// DiscoverSymbols lists every symbol with a merged CSV under dir, sorted.
// This is the default asset universe when none is declared explicitly.
func DiscoverSymbols(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), mergedSuffix) {
			continue
		}
		symbols = append(symbols, strings.TrimSuffix(e.Name(), mergedSuffix))
	}
	sort.Strings(symbols)
	return symbols, nil
}

type loadResult struct {
	symbol string
	series *Series
	err    error
}

// LoadDir loads the merged series for every requested symbol from dir,
// windowed to [start, end] inclusive. File reads fan out over a small
// worker pool; the simulation itself never sees this concurrency, it gets
// a finished map. Symbols whose file is missing, unreadable, or empty
// within the window are logged and omitted; the caller decides whether an
// empty result is fatal.
func LoadDir(ctx context.Context, dir string, symbols []string, start, end time.Time, log zerolog.Logger) map[string]*Series {
	jobs := make(chan string, len(symbols))
	results := make(chan loadResult, len(symbols))

	workers := 8
	if len(symbols) < workers {
		workers = len(symbols)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				if ctx.Err() != nil {
					results <- loadResult{symbol: symbol, err: ctx.Err()}
					continue
				}
				path := filepath.Join(dir, symbol+mergedSuffix)
				s, err := LoadSeries(path, symbol)
				if err != nil {
					results <- loadResult{symbol: symbol, err: err}
					continue
				}
				results <- loadResult{symbol: symbol, series: s.Window(start, end)}
			}
		}()
	}

	for _, symbol := range symbols {
		jobs <- symbol
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	data := make(map[string]*Series, len(symbols))
	for res := range results {
		switch {
		case res.err != nil:
			log.Warn().Str("symbol", res.symbol).Err(res.err).Msg("series not loaded")
		case res.series.Len() == 0:
			log.Warn().Str("symbol", res.symbol).
				Str("start", start.Format(dateLayout)).
				Str("end", end.Format(dateLayout)).
				Msg("no bars in window")
		default:
			if res.series.badLines > 0 || res.series.duplicates > 0 {
				log.Warn().Str("symbol", res.symbol).
					Int("bad_lines", res.series.badLines).
					Int("duplicates", res.series.duplicates).
					Msg("ingest warnings")
			}
			data[res.symbol] = res.series
		}
	}
	return data
}
