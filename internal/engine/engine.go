// Package engine drives the dashboard: it owns the watchlist cursor, renders
// screens through the composer, hands them to the display sink and runs the
// auto-cycle loop that button presses can interrupt.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"yaticker/internal/config"
	"yaticker/internal/dashboard"
	"yaticker/internal/display"
	"yaticker/internal/domain"
	"yaticker/internal/market"
	"yaticker/internal/util"
)

// State is the rendering state of the engine.
type State int32

const (
	StateIdle      State = iota // nothing shown yet, or the last display failed
	StateRendering              // a screen is being composed or transferred
	StateDisplayed              // the last screen reached the sink
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRendering:
		return "rendering"
	case StateDisplayed:
		return "displayed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Status is a snapshot of what the engine last showed.
type Status struct {
	State     string    `json:"state"`
	Screen    string    `json:"screen,omitempty"` // symbol, "message" or "settings"
	Renders   int64     `json:"renders"`
	Skipped   int64     `json:"skipped"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Engine is the dashboard scheduler. Only the goroutine running Run (or
// Listen) may call the Show* methods; other goroutines talk to it through
// Trigger and read it through State, Status and LastCanvas.
type Engine struct {
	cfg      *config.Config
	provider market.Provider
	composer *dashboard.Composer
	sink     display.Sink
	cursor   *Cursor

	actions  chan domain.Action
	debounce *util.Debouncer
	period   time.Duration

	state   atomic.Int32
	renders atomic.Int64
	skipped atomic.Int64
	last    atomic.Pointer[image.Paletted]

	mu     sync.Mutex
	screen string
	shown  time.Time

	host func(context.Context) util.HostIdentity
	now  func() time.Time
	log  *slog.Logger
}

// New creates an engine for cfg. cfg must have passed Validate.
func New(cfg *config.Config, provider market.Provider, composer *dashboard.Composer, sink display.Sink, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		provider: provider,
		composer: composer,
		sink:     sink,
		cursor:   NewCursor(cfg.Watchlist),
		actions:  make(chan domain.Action, 1),
		debounce: util.NewDebouncer(cfg.Debounce()),
		period:   cfg.Refresh(),
		host:     util.LookupHost,
		now:      time.Now,
		log:      logger.With("component", "engine"),
	}
}

// State returns the current rendering state.
func (e *Engine) State() State { return State(e.state.Load()) }

// Status returns a snapshot of the engine for status reporting.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		State:     e.State().String(),
		Screen:    e.screen,
		Renders:   e.renders.Load(),
		Skipped:   e.skipped.Load(),
		UpdatedAt: e.shown,
	}
}

// LastCanvas returns the last canvas accepted by the sink, or nil.
func (e *Engine) LastCanvas() *image.Paletted { return e.last.Load() }

// ---------------------------------------------------------------------------
// Input
// ---------------------------------------------------------------------------

// Trigger queues action for the loop without blocking. It reports false if
// the press fell inside the debounce window or another action is already
// pending.
func (e *Engine) Trigger(action domain.Action) bool {
	if !e.debounce.Accept() {
		e.log.Debug("press debounced", "action", action)
		return false
	}
	select {
	case e.actions <- action:
		return true
	default:
		e.log.Debug("action dropped, one already pending", "action", action)
		return false
	}
}

// ---------------------------------------------------------------------------
// Screens
// ---------------------------------------------------------------------------

// ShowCurrentStock advances the cursor by one symbol and shows it. When the
// series or the summary of the symbol is unavailable the display keeps its
// previous canvas.
func (e *Engine) ShowCurrentStock(ctx context.Context) error {
	return e.showStock(ctx, e.cursor.Advance())
}

// RefreshCurrent re-renders the symbol under the cursor.
func (e *Engine) RefreshCurrent(ctx context.Context) error {
	return e.showStock(ctx, e.cursor.Current())
}

// ShowMessage shows text on a timestamped banner.
func (e *Engine) ShowMessage(ctx context.Context, text string) error {
	prev := e.begin()
	img, err := e.composer.Message(text, e.now())
	if err != nil {
		return e.skip(prev, "message", err)
	}
	return e.display(ctx, img, "message")
}

// ShowSettings shows the configuration summary and host identity.
func (e *Engine) ShowSettings(ctx context.Context) error {
	prev := e.begin()
	img, err := e.composer.Settings(dashboard.SettingsFor(e.cfg, e.host(ctx)))
	if err != nil {
		return e.skip(prev, "settings", err)
	}
	return e.display(ctx, img, "settings")
}

func (e *Engine) showStock(ctx context.Context, symbol string) error {
	prev := e.begin()
	img, err := e.composeStock(ctx, symbol)
	if err != nil {
		return e.skip(prev, symbol, err)
	}
	return e.display(ctx, img, symbol)
}

func (e *Engine) composeStock(ctx context.Context, symbol string) (*image.Paletted, error) {
	s, err := e.provider.Series(ctx, symbol, e.cfg.Period, e.cfg.Interval)
	if err != nil {
		return nil, err
	}
	if s.Empty() {
		return nil, fmt.Errorf("%w: empty series for %s", market.ErrDataUnavailable, symbol)
	}

	sum, err := e.provider.Summary(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: summary for %s: %v", market.ErrDataUnavailable, symbol, err)
	}
	return e.composer.Compose(symbol, s, sum.PreviousClose)
}

// begin marks a render in flight and returns the state to restore if it is
// abandoned.
func (e *Engine) begin() State {
	return State(e.state.Swap(int32(StateRendering)))
}

func (e *Engine) skip(prev State, screen string, err error) error {
	e.state.Store(int32(prev))
	e.skipped.Add(1)
	e.log.Warn("render skipped, keeping previous display", "screen", screen, "error", err)
	return fmt.Errorf("rendering %s: %w", screen, err)
}

func (e *Engine) display(ctx context.Context, img *image.Paletted, screen string) error {
	if err := e.sink.Display(ctx, img); err != nil {
		e.state.Store(int32(StateIdle))
		e.log.Error("display failed", "screen", screen, "error", err)
		return err
	}

	e.last.Store(img)
	e.renders.Add(1)
	e.mu.Lock()
	e.screen = screen
	e.shown = e.now()
	e.mu.Unlock()
	e.state.Store(int32(StateDisplayed))
	e.log.Info("screen displayed", "screen", screen)
	return nil
}

// ---------------------------------------------------------------------------
// Loop
// ---------------------------------------------------------------------------

// Run shows the symbol under the cursor. With cycling disabled it returns
// right after; otherwise it advances to the next symbol every update period
// and serves queued actions until ctx is done. Render and display failures
// are logged and never end the loop.
func (e *Engine) Run(ctx context.Context) error {
	_ = e.RefreshCurrent(ctx)
	if !e.cfg.Cycle {
		return nil
	}
	return e.loop(ctx, true)
}

// Listen serves queued actions until ctx is done, without auto-cycling.
func (e *Engine) Listen(ctx context.Context) error {
	return e.loop(ctx, false)
}

func (e *Engine) loop(ctx context.Context, cycle bool) error {
	period := e.period
	timer := time.NewTimer(period)
	defer timer.Stop()
	if !cycle {
		timer.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
			_ = e.ShowCurrentStock(ctx)
			timer.Reset(period)

		case a := <-e.actions:
			e.log.Debug("action received", "action", a)
			e.handle(ctx, a)
			if a == domain.ActionNext && cycle {
				timer.Reset(period)
			}
		}
	}
}

func (e *Engine) handle(ctx context.Context, a domain.Action) {
	var err error
	switch a {
	case domain.ActionNext:
		err = e.ShowCurrentStock(ctx)
	case domain.ActionRefresh:
		err = e.RefreshCurrent(ctx)
	case domain.ActionSettings:
		err = e.ShowSettings(ctx)
	case domain.ActionReserved:
		err = e.ShowMessage(ctx, fmt.Sprintf("Key %d pressed", int(a)))
	default:
		e.log.Warn("unknown action", "action", a)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		e.log.Debug("action failed", "action", a, "error", err)
	}
}
