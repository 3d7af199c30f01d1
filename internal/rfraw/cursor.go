package rfraw

// hexCursor walks hex text nibble by nibble with bounds checking,
// skipping cosmetic separators between digits.
type hexCursor struct {
	s   string
	pos int
}

func (c *hexCursor) skipSeparators() {
	for c.pos < len(c.s) {
		switch c.s[c.pos] {
		case ' ', '\t', '-', ':':
			c.pos++
		default:
			return
		}
	}
}

// nextNibble consumes one hex digit. ok is false at end of input or on
// a non-hex character.
func (c *hexCursor) nextNibble() (int, bool) {
	c.skipSeparators()
	if c.pos >= len(c.s) {
		return 0, false
	}
	ch := c.s[c.pos]
	switch {
	case ch >= '0' && ch <= '9':
		c.pos++
		return int(ch - '0'), true
	case ch >= 'A' && ch <= 'F':
		c.pos++
		return int(ch-'A') + 10, true
	case ch >= 'a' && ch <= 'f':
		c.pos++
		return int(ch-'a') + 10, true
	}
	return 0, false
}

func (c *hexCursor) nextByte() (int, bool) {
	h, ok := c.nextNibble()
	if !ok {
		return 0, false
	}
	l, ok := c.nextNibble()
	if !ok {
		return 0, false
	}
	return h<<4 | l, true
}

func (c *hexCursor) nextWord() (int, bool) {
	h, ok := c.nextByte()
	if !ok {
		return 0, false
	}
	l, ok := c.nextByte()
	if !ok {
		return 0, false
	}
	return h<<8 | l, true
}

// peekByte reads the next byte without advancing.
func (c *hexCursor) peekByte() (int, bool) {
	saved := *c
	b, ok := c.nextByte()
	*c = saved
	return b, ok
}

// remaining reports whether any input is left past cosmetic separators.
func (c *hexCursor) remaining() bool {
	c.skipSeparators()
	return c.pos < len(c.s)
}
