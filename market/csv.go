package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Merged CSV layout: date,open,high,low,close,volume,<feature...>,target
// produced by the feature/label merge step upstream. Everything after the
// OHLCV block is treated as a feature column, including the label column,
// which the engine never reads.

const dateLayout = "2006-01-02"

var ohlcvCols = []string{"date", "open", "high", "low", "close", "volume"}

// ReadSeries parses a merged CSV stream into a Series for symbol.
// Rows with an unparseable date are counted and skipped. Duplicate dates
// keep the first row seen. Non-numeric price/feature cells become NaN.
func ReadSeries(r io.Reader, symbol string) (*Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if len(header) < len(ohlcvCols) {
		return nil, fmt.Errorf("short header %v, need at least %v", header, ohlcvCols)
	}
	for i, want := range ohlcvCols {
		if !strings.EqualFold(header[i], want) {
			return nil, fmt.Errorf("column %d is %q, want %q", i, header[i], want)
		}
	}

	featureCols := append([]string(nil), header[len(ohlcvCols):]...)

	s := &Series{
		Symbol:      symbol,
		FeatureCols: featureCols,
	}
	seen := make(map[time.Time]bool)

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(row) < len(ohlcvCols) {
			s.badLines++
			continue
		}

		date, err := parseDate(row[0])
		if err != nil {
			s.badLines++
			continue
		}
		if seen[date] {
			s.duplicates++
			continue
		}
		seen[date] = true

		bar := Bar{
			Date:     date,
			Open:     cell(row, 1),
			High:     cell(row, 2),
			Low:      cell(row, 3),
			Close:    cell(row, 4),
			Volume:   cell(row, 5),
			features: make(map[string]float64, len(featureCols)),
		}
		for i, name := range featureCols {
			bar.features[name] = cell(row, len(ohlcvCols)+i)
		}
		s.Bars = append(s.Bars, bar)
	}

	sort.Slice(s.Bars, func(i, j int) bool {
		return s.Bars[i].Date.Before(s.Bars[j].Date)
	})

	return s, nil
}

// LoadSeries reads one merged CSV file from disk.
func LoadSeries(path, symbol string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := ReadSeries(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return Midnight(t), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return Midnight(t), nil
}

func cell(row []string, idx int) float64 {
	if idx >= len(row) {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
