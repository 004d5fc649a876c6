// Package engine implements the weekly decision loop: a deterministic,
// single-threaded fold over the union of all asset trading dates that
// evaluates buy signals on the entry weekday, force-closes positions on
// the exit weekday, and carries the portfolio snapshot between dates.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/rcoelho/weektrader/market"
	"github.com/rcoelho/weektrader/portfolio"
	"github.com/rcoelho/weektrader/score"
)

var (
	ErrNoData    = errors.New("no asset data loaded")
	ErrNoDates   = errors.New("date range contains no trading dates")
	ErrBadConfig = errors.New("invalid engine config")
)

// Config are the knobs of one simulation run.
type Config struct {
	InitialCapital float64
	Threshold      float64 // buy when signal >= Threshold, in [0,1]
	Allocation     float64 // fraction of cash eligible per entry day, in (0,1]

	// EntryDay and ExitDay classify the calendar. Entry must come earlier
	// in the business week than exit. Zero values (Sunday/Sunday) select
	// the defaults, Monday and Friday.
	EntryDay time.Weekday
	ExitDay  time.Weekday

	// Universe fixes the asset iteration order for entry days, making the
	// first-qualifying-asset-wins allocation rule reproducible. Empty
	// means every loaded symbol in lexicographic order.
	Universe []string
}

func (c Config) withDefaults() Config {
	if c.EntryDay == time.Sunday && c.ExitDay == time.Sunday {
		c.EntryDay = time.Monday
		c.ExitDay = time.Friday
	}
	return c
}

// isoIndex orders weekdays Monday=0 .. Sunday=6.
func isoIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func (c Config) validate() error {
	if !(c.InitialCapital > 0) {
		return fmt.Errorf("%w: initial capital must be > 0", ErrBadConfig)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("%w: threshold must be in [0,1]", ErrBadConfig)
	}
	if !(c.Allocation > 0) || c.Allocation > 1 {
		return fmt.Errorf("%w: allocation must be in (0,1]", ErrBadConfig)
	}
	if isoIndex(c.EntryDay) >= isoIndex(c.ExitDay) {
		return fmt.Errorf("%w: entry day %s must precede exit day %s", ErrBadConfig, c.EntryDay, c.ExitDay)
	}
	return nil
}

// Engine runs one simulation over preloaded series and scorers. It owns
// the portfolio snapshot exclusively for the duration of Run.
type Engine struct {
	data     map[string]*market.Series
	scorers  *score.Provider
	cfg      Config
	universe []string
	log      zerolog.Logger
}

// New wires an engine. It fails fast when no usable data was supplied or
// the configuration is out of range; per-asset problems are deferred to
// run time, where they are local and non-fatal.
func New(data map[string]*market.Series, scorers *score.Provider, cfg Config, log zerolog.Logger) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrNoData
	}
	if scorers == nil {
		scorers = score.NewProvider()
	}

	universe := cfg.Universe
	if len(universe) == 0 {
		universe = make([]string, 0, len(data))
		for sym := range data {
			universe = append(universe, sym)
		}
		sort.Strings(universe)
	}

	return &Engine{
		data:     data,
		scorers:  scorers,
		cfg:      cfg,
		universe: universe,
		log:      log,
	}, nil
}

// Universe returns the declared asset order used on entry days.
func (e *Engine) Universe() []string { return e.universe }

// Run executes the simulation from a fresh portfolio. Each invocation
// starts over; the engine is not restartable mid-run.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	dates := e.tradingDates()
	if len(dates) == 0 {
		return Result{}, ErrNoDates
	}

	res := Result{
		InitialCapital: e.cfg.InitialCapital,
		Start:          dates[0],
		End:            dates[len(dates)-1],
		Skips:          map[SkipReason]int{},
	}
	p := portfolio.New(e.cfg.InitialCapital)

	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		switch date.Weekday() {
		case e.cfg.EntryDay:
			p = e.entryDay(date, p, &res)
		case e.cfg.ExitDay:
			p = e.exitDay(date, p, &res)
		}
	}

	res.Final = p
	return res, nil
}

// tradingDates is the sorted union of all series dates.
func (e *Engine) tradingDates() []time.Time {
	set := make(map[time.Time]struct{})
	for _, s := range e.data {
		for _, d := range s.Dates() {
			set[d] = struct{}{}
		}
	}

	dates := make([]time.Time, 0, len(set))
	for d := range set {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
