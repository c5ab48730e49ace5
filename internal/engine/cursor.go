package engine

// Cursor walks a watchlist forever, wrapping after the last symbol. It is
// owned by the engine goroutine and is not safe for concurrent use.
type Cursor struct {
	symbols []string
	idx     int
}

// NewCursor returns a cursor positioned at the first symbol. symbols must
// not be empty.
func NewCursor(symbols []string) *Cursor {
	return &Cursor{symbols: append([]string(nil), symbols...)}
}

// Current returns the symbol under the cursor.
func (c *Cursor) Current() string {
	return c.symbols[c.idx]
}

// Advance moves to the next symbol and returns it.
func (c *Cursor) Advance() string {
	c.idx = (c.idx + 1) % len(c.symbols)
	return c.symbols[c.idx]
}

// Len returns the watchlist length.
func (c *Cursor) Len() int { return len(c.symbols) }
