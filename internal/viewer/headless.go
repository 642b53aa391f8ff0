package viewer

import "github.com/san-kum/robotview/internal/engine"

// Headless renders nothing. It keeps the last frame for inspection.
type Headless struct {
	max    int
	frames int
	closed bool
	last   Frame
}

func NewHeadless(maxFrames int) *Headless {
	return &Headless{max: maxFrames}
}

// HeadlessFactory adapts NewHeadless to Factory.
func HeadlessFactory(_ *engine.Model, opts Options) (Viewer, error) {
	return NewHeadless(opts.MaxFrames), nil
}

func (h *Headless) IsRunning() bool {
	return !h.closed && (h.max <= 0 || h.frames < h.max)
}

func (h *Headless) Sync(f Frame) error {
	if h.closed {
		return ErrClosed
	}
	h.frames++
	h.last = f.Clone()
	return nil
}

func (h *Headless) Close() error {
	h.closed = true
	return nil
}

func (h *Headless) Frames() int { return h.frames }
func (h *Headless) Last() Frame { return h.last }
