package console

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// Buttons, as bits:
// 0 - A
// 1 - B
// 2 - Select
// 3 - Start
// 4 - Up
// 5 - Down
// 6 - Left
// 7 - Right
var keys []ebiten.Key = []ebiten.Key{
	ebiten.KeyA,     // A
	ebiten.KeyB,     // B
	ebiten.KeySpace, // Select
	ebiten.KeyEnter, // Start
	ebiten.KeyUp,    // Up
	ebiten.KeyDown,  // Down
	ebiten.KeyLeft,  // Left
	ebiten.KeyRight, // Right
}

// isKeyPressed is a seam over ebiten.IsKeyPressed so tests can drive
// controller input without a live window.
var isKeyPressed = ebiten.IsKeyPressed

type controller struct {
	strobe  bool
	buttons uint8
	idx     uint8
}

// write latches button state on the strobe line's 1->0 transition, per
// spec.md §4.4. Writing 0 twice in a row must not re-sample input
// between the two writes.
func (c *controller) write(val uint8) {
	prev := c.strobe
	c.strobe = val&0x01 == 1

	if prev && !c.strobe {
		c.buttons = 0
		c.poll()
	}

	if c.strobe {
		c.idx = 0
	}
}

func (c *controller) read() uint8 {
	if c.idx > 7 {
		return 1
	}

	ret := c.buttons & (1 << c.idx) >> c.idx
	c.idx++
	return ret
}

func (c *controller) poll() {
	for i, key := range keys {
		var pressed uint8
		if isKeyPressed(key) {
			pressed = 1
		}
		c.buttons |= (pressed << i)
	}
}
