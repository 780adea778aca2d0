package countdown

import (
	"image"
	"image/color"
)

// TextAlign controls how the x coordinate given to FillText is interpreted.
type TextAlign int

const (
	AlignLeft TextAlign = iota
	AlignCenter
	AlignRight
)

// TextBaseline controls how the y coordinate given to FillText is interpreted.
type TextBaseline int

const (
	BaselineAlphabetic TextBaseline = iota
	BaselineTop
	BaselineMiddle
	BaselineBottom
)

// TextMetrics describes a measured string in pixels.
type TextMetrics struct {
	Width   float64
	Ascent  float64
	Descent float64
}

// EmHeight is the height of the em box, top of ascent to bottom of descent.
func (m TextMetrics) EmHeight() float64 {
	return m.Ascent + m.Descent
}

// Surface is the 2D drawing capability the renderer draws through.
// Repeated MeasureText calls with the same font and string must return
// identical metrics.
type Surface interface {
	Clear(c color.Color)
	SetFillColor(c color.Color)
	SetFont(family string, size float64) error
	SetTextAlign(a TextAlign)
	SetTextBaseline(b TextBaseline)
	MeasureText(s string) TextMetrics
	FillText(s string, x, y float64)
	// Image returns the current contents of the surface. The returned image
	// may be reused by the next frame; sinks must copy it if they keep it.
	Image() image.Image
}

// EncodeOptions is handed to the frame sink once before the first frame.
type EncodeOptions struct {
	LoopCount   int // 0 loops forever
	DelayMillis int
	Quality     int // 1 (best) to 30
}

// FrameSink accumulates rendered frames into an encoded animation.
type FrameSink interface {
	Start(opts EncodeOptions) error
	AddFrame(frame image.Image) error
	// Finish signals that no more frames follow. The returned channel yields
	// exactly one value once the output is durably written (nil) or failed.
	Finish() <-chan error
	// Abort discards any partially written output.
	Abort() error
}
