package config

import "fmt"

// Mode selects the unit of work the scheduler asked for.
type Mode string

const (
	// ModeDaily compacts a single day's landing with a trailing lookback
	// window for stale provider data.
	ModeDaily Mode = "daily"
	// ModeBackfill compacts an inclusive historical date range.
	ModeBackfill Mode = "backfill"
)

// ParseMode validates a mode string from the CLI.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDaily, ModeBackfill:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, ModeDaily, ModeBackfill)
}
