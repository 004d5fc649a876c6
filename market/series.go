package market

import (
	"math"
	"sort"
	"time"
)

// Bar represents one daily OHLCV row plus the feature columns carried
// alongside it. Missing or non-numeric cells are NaN, never zero.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	features map[string]float64
}

// NewBar builds a bar programmatically; the loader is the usual source,
// this exists for simulations fed from memory and for tests.
func NewBar(date time.Time, open, high, low, closePx, volume float64, features map[string]float64) Bar {
	fs := make(map[string]float64, len(features))
	for k, v := range features {
		fs[k] = v
	}
	return Bar{
		Date:     Midnight(date),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePx,
		Volume:   volume,
		features: fs,
	}
}

// NewSeries builds a Series from bars, sorting by date and keeping the
// first bar seen for a duplicate date.
func NewSeries(symbol string, featureCols []string, bars []Bar) *Series {
	sorted := append([]Bar(nil), bars...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	out := sorted[:0]
	var prev time.Time
	for i, b := range sorted {
		if i > 0 && b.Date.Equal(prev) {
			continue
		}
		out = append(out, b)
		prev = b.Date
	}

	return &Series{
		Symbol:      symbol,
		FeatureCols: featureCols,
		Bars:        out,
	}
}

// Feature returns the named feature column value. The second return is
// false when the column is absent from the series entirely; a present but
// unparseable cell comes back as NaN with ok=true.
func (b Bar) Feature(name string) (float64, bool) {
	v, ok := b.features[name]
	return v, ok
}

// Series is a date-ordered daily bar series for a single symbol.
// Dates are unique and normalized to UTC midnight. Gaps are tolerated but
// never interpolated. A Series is immutable once loaded.
type Series struct {
	Symbol      string
	FeatureCols []string
	Bars        []Bar

	duplicates int
	badLines   int
}

func (s *Series) Len() int { return len(s.Bars) }

// BarOn returns the bar for exactly the given date.
func (s *Series) BarOn(date time.Time) (Bar, bool) {
	d := Midnight(date)
	i := sort.Search(len(s.Bars), func(i int) bool {
		return !s.Bars[i].Date.Before(d)
	})
	if i < len(s.Bars) && s.Bars[i].Date.Equal(d) {
		return s.Bars[i], true
	}
	return Bar{}, false
}

// LatestBefore returns the most recent bar strictly before the given date.
// Decisions made on a date must only see bars returned by this method.
func (s *Series) LatestBefore(date time.Time) (Bar, bool) {
	d := Midnight(date)
	i := sort.Search(len(s.Bars), func(i int) bool {
		return !s.Bars[i].Date.Before(d)
	})
	if i == 0 {
		return Bar{}, false
	}
	return s.Bars[i-1], true
}

// LastBar returns the final bar of the series.
func (s *Series) LastBar() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// LastClose returns the close of the final bar. ok is false for an empty
// series or a non-numeric final close; such positions are valued at zero
// rather than reaching back for an older price.
func (s *Series) LastClose() (float64, bool) {
	b, ok := s.LastBar()
	if !ok || math.IsNaN(b.Close) {
		return 0, false
	}
	return b.Close, true
}

// Window returns the sub-series with start <= date <= end. The returned
// Series shares backing storage with the receiver.
func (s *Series) Window(start, end time.Time) *Series {
	lo := Midnight(start)
	hi := Midnight(end)

	i := sort.Search(len(s.Bars), func(i int) bool {
		return !s.Bars[i].Date.Before(lo)
	})
	j := sort.Search(len(s.Bars), func(i int) bool {
		return s.Bars[i].Date.After(hi)
	})

	return &Series{
		Symbol:      s.Symbol,
		FeatureCols: s.FeatureCols,
		Bars:        s.Bars[i:j],
		duplicates:  s.duplicates,
		badLines:    s.badLines,
	}
}

// Dates returns every bar date in ascending order.
func (s *Series) Dates() []time.Time {
	out := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Date
	}
	return out
}

// Midnight truncates t to UTC midnight. All series dates and all engine
// decision dates go through this so exact-date lookups are well defined.
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
