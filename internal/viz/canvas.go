package viz

import (
	"math"
	"strings"
)

// Each cell is a 2x4 braille block:
//
//	1 4
//	2 5
//	3 6
//	7 8
const brailleBase = 0x2800

var dotMask = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Canvas is a character grid addressed in braille dots, so a W x H cell
// canvas has 2W x 4H addressable points.
type Canvas struct {
	Width, Height int
	cells         [][]rune
}

func NewCanvas(w, h int) *Canvas {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	c := &Canvas{Width: w, Height: h, cells: make([][]rune, h)}
	for i := range c.cells {
		c.cells[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Dots returns the canvas size in dots.
func (c *Canvas) Dots() (w, h int) { return c.Width * 2, c.Height * 4 }

// Set lights the dot at (x, y). Points off the canvas are ignored.
func (c *Canvas) Set(x, y int) {
	col, row, ok := c.cell(x, y)
	if !ok {
		return
	}
	c.cells[row][col] |= dotMask[y%4][x%2]
}

func (c *Canvas) Unset(x, y int) {
	col, row, ok := c.cell(x, y)
	if !ok {
		return
	}
	c.cells[row][col] &^= dotMask[y%4][x%2]
}

// IsSet reports whether the dot at (x, y) is lit.
func (c *Canvas) IsSet(x, y int) bool {
	col, row, ok := c.cell(x, y)
	if !ok {
		return false
	}
	return c.cells[row][col]&dotMask[y%4][x%2] != 0
}

func (c *Canvas) cell(x, y int) (col, row int, ok bool) {
	if x < 0 || y < 0 {
		return 0, 0, false
	}
	col, row = x/2, y/4
	return col, row, col < c.Width && row < c.Height
}

func (c *Canvas) Clear() {
	for i := range c.cells {
		for j := range c.cells[i] {
			c.cells[i][j] = brailleBase
		}
	}
}

// Line draws a segment with Bresenham's algorithm.
func (c *Canvas) Line(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx - dy
	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Disc fills a small circle of radius r dots around (x, y).
func (c *Canvas) Disc(x, y, r int) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				c.Set(x+dx, y+dy)
			}
		}
	}
}

// Project maps world coordinates onto dots. The origin sits at (ox, oy) in
// dots and one world unit spans scale dots; world y points up.
func Project(x, y, ox, oy, scale float64) (int, int) {
	return int(math.Round(ox + x*scale)), int(math.Round(oy - y*scale))
}

func (c *Canvas) String() string {
	var b strings.Builder
	for i, row := range c.cells {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(row))
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
