package engine

import (
	"time"

	"github.com/rcoelho/weektrader/portfolio"
)

// Result is the outcome of one completed simulation run.
type Result struct {
	Final          portfolio.Portfolio
	InitialCapital float64

	// Start and End bound the dates actually simulated (the union of all
	// series dates), not the requested window.
	Start time.Time
	End   time.Time

	Buys  int
	Sells int
	Skips map[SkipReason]int
}
