package epd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"

	"yaticker/internal/domain"
	"yaticker/internal/util"
)

// Keypad reads the four active-low keys on the side of the HAT. Key n (1 to
// 4) is pins[n-1].
type Keypad struct {
	pins     []gpio.PinIn
	debounce []*util.Debouncer
	poll     time.Duration
}

// NewKeypad creates a keypad over pins. Presses of the same key closer than
// debounce apart are reported once.
func NewKeypad(pins []gpio.PinIn, debounce time.Duration) *Keypad {
	k := &Keypad{pins: pins, poll: 500 * time.Millisecond}
	for range pins {
		k.debounce = append(k.debounce, util.NewDebouncer(debounce))
	}
	return k
}

// Arm configures every key as a pulled-up input detecting falling edges. The
// panel driver resets GPIO state when it sleeps, so Arm is called again after
// each frame.
func (k *Keypad) Arm() error {
	for i, p := range k.pins {
		if err := p.In(gpio.PullUp, gpio.FallingEdge); err != nil {
			return fmt.Errorf("epd: arming key %d (%s): %w", i+1, p, err)
		}
	}
	return nil
}

// Watch calls fn for every press until ctx is done. Keys beyond the fourth
// are ignored. Arm must have been called first.
func (k *Keypad) Watch(ctx context.Context, fn func(domain.Action)) error {
	var wg sync.WaitGroup
	for i, p := range k.pins {
		action, ok := domain.ActionForKey(i + 1)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(p gpio.PinIn, d *util.Debouncer) {
			defer wg.Done()
			for ctx.Err() == nil {
				if !p.WaitForEdge(k.poll) {
					continue
				}
				if p.Read() == gpio.Low && d.Accept() {
					fn(action)
				}
			}
		}(p, k.debounce[i])
	}
	wg.Wait()
	return ctx.Err()
}
