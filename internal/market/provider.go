// Package market fetches price series and summary information for ticker
// symbols from upstream data vendors.
package market

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"yaticker/internal/domain"
)

// ErrDataUnavailable is returned when a vendor has no usable data for a
// symbol, either because the request failed or the response was empty.
var ErrDataUnavailable = errors.New("market data unavailable")

// ErrUpstream marks a failure of the vendor itself, such as a network error
// or a server fault, as opposed to the vendor having no data for the symbol.
// Errors carrying it also wrap ErrDataUnavailable.
var ErrUpstream = errors.New("market data upstream failure")

// Provider is the market-data collaborator of the dashboard.
type Provider interface {
	// Series returns the bars of symbol over the lookback period at the
	// given interval, oldest first.
	Series(ctx context.Context, symbol, period, interval string) (domain.Series, error)

	// Summary returns the reference information of symbol.
	Summary(ctx context.Context, symbol string) (domain.Summary, error)
}

// ---------------------------------------------------------------------------
// Period and interval tokens
// ---------------------------------------------------------------------------

// Unit is the granularity unit of an interval token.
type Unit string

const (
	UnitMinute Unit = "m"
	UnitHour   Unit = "h"
	UnitDay    Unit = "d"
	UnitWeek   Unit = "wk"
	UnitMonth  Unit = "mo"
)

// Interval is a parsed bar interval such as "5m" or "1d".
type Interval struct {
	N    int
	Unit Unit
}

// ParseInterval parses the vendor-style interval tokens 1m, 5m, 90m, 1h,
// 1d, 1wk and 1mo.
func ParseInterval(token string) (Interval, error) {
	n, unit, err := splitToken(token)
	if err != nil {
		return Interval{}, fmt.Errorf("interval %q: %w", token, err)
	}
	switch unit {
	case "m":
		return Interval{N: n, Unit: UnitMinute}, nil
	case "h":
		return Interval{N: n, Unit: UnitHour}, nil
	case "d":
		return Interval{N: n, Unit: UnitDay}, nil
	case "wk":
		return Interval{N: n, Unit: UnitWeek}, nil
	case "mo":
		return Interval{N: n, Unit: UnitMonth}, nil
	}
	return Interval{}, fmt.Errorf("interval %q: unknown unit %q", token, unit)
}

// PeriodStart returns the start of the lookback period ending at now. It
// accepts Nd, Nwk, Nmo, Ny, "ytd" and "max".
func PeriodStart(token string, now time.Time) (time.Time, error) {
	switch strings.ToLower(token) {
	case "ytd":
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location()), nil
	case "max":
		return time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), nil
	}
	n, unit, err := splitToken(token)
	if err != nil {
		return time.Time{}, fmt.Errorf("period %q: %w", token, err)
	}
	switch unit {
	case "d":
		return now.AddDate(0, 0, -n), nil
	case "wk":
		return now.AddDate(0, 0, -7*n), nil
	case "mo":
		return now.AddDate(0, -n, 0), nil
	case "y":
		return now.AddDate(-n, 0, 0), nil
	}
	return time.Time{}, fmt.Errorf("period %q: unknown unit %q", token, unit)
}

func splitToken(token string) (int, string, error) {
	token = strings.ToLower(strings.TrimSpace(token))
	i := 0
	for i < len(token) && token[i] >= '0' && token[i] <= '9' {
		i++
	}
	if i == 0 || i == len(token) {
		return 0, "", errors.New("want <number><unit>")
	}
	n, err := strconv.Atoi(token[:i])
	if err != nil || n <= 0 {
		return 0, "", errors.New("count must be a positive integer")
	}
	return n, token[i:], nil
}
