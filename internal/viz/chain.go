package viz

import "math"

// DrawChain renders scalar joint positions as a planar serial chain rooted
// at the bottom center of c, pointing up at zero angle. Each angle is
// relative to the previous link. It returns the tip position in dots.
func DrawChain(c *Canvas, angles []float64) (tipX, tipY int) {
	w, h := c.Dots()
	baseX, baseY := float64(w/2), float64(h-2)
	c.Line(int(baseX)-4, int(baseY)+1, int(baseX)+4, int(baseY)+1)
	if len(angles) == 0 {
		c.Disc(int(baseX), int(baseY), 1)
		return int(baseX), int(baseY)
	}

	reach := math.Min(baseY, float64(w)/2) * 0.9
	link := reach / float64(len(angles))

	x, y, theta := baseX, baseY, 0.0
	for _, a := range angles {
		theta += a
		nx := x + link*math.Sin(theta)
		ny := y - link*math.Cos(theta)
		c.Line(int(math.Round(x)), int(math.Round(y)), int(math.Round(nx)), int(math.Round(ny)))
		c.Disc(int(math.Round(x)), int(math.Round(y)), 1)
		x, y = nx, ny
	}
	tipX, tipY = int(math.Round(x)), int(math.Round(y))
	c.Set(tipX, tipY)
	return tipX, tipY
}
