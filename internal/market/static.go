package market

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"time"

	"yaticker/internal/domain"
)

var _ Provider = (*StaticProvider)(nil)
var _ Provider = (*DemoProvider)(nil)

// StaticProvider serves fixed data keyed by upper-case symbol. Symbols
// without a series report ErrDataUnavailable. It is used by tests and
// offline runs.
type StaticProvider struct {
	mu        sync.Mutex
	series    map[string]domain.Series
	summaries map[string]domain.Summary
	calls     map[string]int
}

// NewStaticProvider returns an empty StaticProvider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		series:    make(map[string]domain.Series),
		summaries: make(map[string]domain.Summary),
		calls:     make(map[string]int),
	}
}

// SetSeries registers the series returned for s.Symbol.
func (p *StaticProvider) SetSeries(s domain.Series) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.series[strings.ToUpper(s.Symbol)] = s
}

// SetPreviousClose registers the previous close of symbol.
func (p *StaticProvider) SetPreviousClose(symbol string, pc float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sym := strings.ToUpper(symbol)
	p.summaries[sym] = domain.Summary{Symbol: sym, PreviousClose: &pc}
}

// Calls returns how many Series requests were made for symbol.
func (p *StaticProvider) Calls(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[strings.ToUpper(symbol)]
}

// Series returns the registered series of symbol.
func (p *StaticProvider) Series(ctx context.Context, symbol, period, interval string) (domain.Series, error) {
	if err := ctx.Err(); err != nil {
		return domain.Series{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	sym := strings.ToUpper(symbol)
	p.calls[sym]++
	s, ok := p.series[sym]
	if !ok || s.Empty() {
		return domain.Series{}, fmt.Errorf("%w: no series for %s", ErrDataUnavailable, sym)
	}
	s.Period, s.Interval = period, interval
	return s, nil
}

// Summary returns the registered summary of symbol, or one without a
// previous close.
func (p *StaticProvider) Summary(ctx context.Context, symbol string) (domain.Summary, error) {
	if err := ctx.Err(); err != nil {
		return domain.Summary{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	sym := strings.ToUpper(symbol)
	if sum, ok := p.summaries[sym]; ok {
		return sum, nil
	}
	return domain.Summary{Symbol: sym}, nil
}

// ---------------------------------------------------------------------------
// Demo data
// ---------------------------------------------------------------------------

// DemoProvider synthesizes a deterministic price walk for any symbol so the
// dashboard can run without network access.
type DemoProvider struct {
	now func() time.Time
}

// NewDemoProvider returns a DemoProvider anchored at the wall clock.
func NewDemoProvider() *DemoProvider {
	return &DemoProvider{now: time.Now}
}

// Series builds bars from the period start to now at interval.
func (p *DemoProvider) Series(_ context.Context, symbol, period, interval string) (domain.Series, error) {
	end := p.now().Truncate(time.Minute)
	start, err := PeriodStart(period, end)
	if err != nil {
		return domain.Series{}, err
	}
	iv, err := ParseInterval(interval)
	if err != nil {
		return domain.Series{}, err
	}
	step := iv.approx()

	sym := strings.ToUpper(symbol)
	base, phase := seed(sym)
	out := domain.Series{Symbol: sym, Period: period, Interval: interval}
	for ts, i := start, 0; !ts.After(end) && i < 5000; ts, i = ts.Add(step), i+1 {
		x := float64(i)
		c := base * (1 + 0.03*math.Sin(x/7+phase) + 0.01*math.Sin(x/1.7))
		out.Bars = append(out.Bars, domain.Bar{
			Symbol:    sym,
			Timestamp: ts,
			Open:      c * 0.999,
			High:      c * 1.004,
			Low:       c * 0.996,
			Close:     c,
			Volume:    int64(1e5 * (2 + math.Cos(x/3+phase))),
		})
	}
	return out, nil
}

// Summary reports a previous close 1% below the base price.
func (p *DemoProvider) Summary(_ context.Context, symbol string) (domain.Summary, error) {
	sym := strings.ToUpper(symbol)
	base, _ := seed(sym)
	pc := base * 0.99
	return domain.Summary{Symbol: sym, PreviousClose: &pc}, nil
}

func seed(symbol string) (base, phase float64) {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	v := h.Sum32()
	return 20 + float64(v%2000), float64(v%628) / 100
}

// approx converts an interval to a fixed duration. Months count as 30 days.
func (iv Interval) approx() time.Duration {
	n := time.Duration(iv.N)
	switch iv.Unit {
	case UnitMinute:
		return n * time.Minute
	case UnitHour:
		return n * time.Hour
	case UnitDay:
		return n * 24 * time.Hour
	case UnitWeek:
		return n * 7 * 24 * time.Hour
	default:
		return n * 30 * 24 * time.Hour
	}
}
