// Package domain holds the value types shared by the market-data providers,
// the renderer and the dashboard loop.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Bar is one OHLCV sample of a symbol.
type Bar struct {
	Symbol    string    `json:"symbol,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	VWAP      float64   `json:"vwap,omitempty"`
}

// Series is the ordered set of bars returned for one symbol over a lookback
// period at a fixed interval.
type Series struct {
	Symbol   string `json:"symbol"`
	Period   string `json:"period"`
	Interval string `json:"interval"`
	Bars     []Bar  `json:"bars"`
}

// Empty reports whether the series has no bars.
func (s Series) Empty() bool { return len(s.Bars) == 0 }

// Last returns the most recent bar.
func (s Series) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Span returns the time between the first and last bar.
func (s Series) Span() time.Duration {
	if len(s.Bars) < 2 {
		return 0
	}
	return s.Bars[len(s.Bars)-1].Timestamp.Sub(s.Bars[0].Timestamp)
}

// Summary is the per-symbol reference information shown next to the chart.
// PreviousClose is nil when the provider has no value for it.
type Summary struct {
	Symbol        string   `json:"symbol"`
	PreviousClose *float64 `json:"previous_close,omitempty"`
}

// ---------------------------------------------------------------------------
// Dashboard actions
// ---------------------------------------------------------------------------

// Action is a user request delivered to the dashboard loop by a button, a
// key press or a test.
type Action int

const (
	ActionNext     Action = iota + 1 // show the next watchlist symbol
	ActionRefresh                    // re-render the current symbol
	ActionSettings                   // show the settings screen
	ActionReserved                   // fourth key, shows a banner
)

// String returns the lowercase name of the action.
func (a Action) String() string {
	switch a {
	case ActionNext:
		return "next"
	case ActionRefresh:
		return "refresh"
	case ActionSettings:
		return "settings"
	case ActionReserved:
		return "reserved"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ActionForKey maps the four panel keys, numbered 1 to 4, to actions.
func ActionForKey(key int) (Action, bool) {
	if key < 1 || key > 4 {
		return 0, false
	}
	return Action(key), true
}

// ParseAction parses the String form of an action.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "next":
		return ActionNext, nil
	case "refresh":
		return ActionRefresh, nil
	case "settings":
		return ActionSettings, nil
	case "reserved":
		return ActionReserved, nil
	}
	return 0, fmt.Errorf("unknown action %q", s)
}
