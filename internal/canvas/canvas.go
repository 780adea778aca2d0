// Package canvas implements countdown.Surface on an in-memory RGBA image
// using golang.org/x/image/font for glyph metrics and rasterization.
package canvas

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/koios/countdown-renderer/internal/countdown"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// FontSource resolves a family name to a parsed font and the family used.
type FontSource interface {
	Lookup(family string) (*opentype.Font, string)
}

type faceKey struct {
	family string
	size   float64
}

// Canvas is a single-owner drawing surface. Sizes are in pixels (72 DPI).
type Canvas struct {
	img      *image.RGBA
	fonts    FontSource
	faces    map[faceKey]font.Face
	face     font.Face
	fill     *image.Uniform
	align    countdown.TextAlign
	baseline countdown.TextBaseline
}

var _ countdown.Surface = (*Canvas)(nil)

// New creates a transparent canvas of the given size.
func New(width, height int, fonts FontSource) *Canvas {
	return &Canvas{
		img:   image.NewRGBA(image.Rect(0, 0, width, height)),
		fonts: fonts,
		faces: make(map[faceKey]font.Face),
		fill:  image.NewUniform(color.Black),
	}
}

func (c *Canvas) Clear(col color.Color) {
	draw.Draw(c.img, c.img.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
}

func (c *Canvas) SetFillColor(col color.Color) {
	c.fill = image.NewUniform(col)
}

// SetFont selects family at size. Faces are cached for the canvas lifetime.
func (c *Canvas) SetFont(family string, size float64) error {
	if size <= 0 || math.IsNaN(size) {
		return fmt.Errorf("invalid font size %v for %s", size, family)
	}

	f, used := c.fonts.Lookup(family)
	if f == nil {
		return fmt.Errorf("font family %s is not available", family)
	}

	key := faceKey{family: used, size: size}
	if face, ok := c.faces[key]; ok {
		c.face = face
		return nil
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("failed to create %s face at %v: %w", used, size, err)
	}
	c.faces[key] = face
	c.face = face
	return nil
}

func (c *Canvas) SetTextAlign(a countdown.TextAlign) { c.align = a }

func (c *Canvas) SetTextBaseline(b countdown.TextBaseline) { c.baseline = b }

// MeasureText returns the advance width of s and the ascent/descent of the
// current face. Without a face every metric is zero.
func (c *Canvas) MeasureText(s string) countdown.TextMetrics {
	if c.face == nil {
		return countdown.TextMetrics{}
	}
	m := c.face.Metrics()
	return countdown.TextMetrics{
		Width:   toFloat(font.MeasureString(c.face, s)),
		Ascent:  toFloat(m.Ascent),
		Descent: toFloat(m.Descent),
	}
}

// FillText draws s anchored at (x, y) according to the current alignment
// and baseline, using the HTML canvas conventions.
func (c *Canvas) FillText(s string, x, y float64) {
	if c.face == nil || s == "" {
		return
	}
	m := c.MeasureText(s)

	switch c.align {
	case countdown.AlignCenter:
		x -= m.Width / 2
	case countdown.AlignRight:
		x -= m.Width
	}

	switch c.baseline {
	case countdown.BaselineTop:
		y += m.Ascent
	case countdown.BaselineMiddle:
		y += (m.Ascent - m.Descent) / 2
	case countdown.BaselineBottom:
		y -= m.Descent
	}

	d := &font.Drawer{
		Dst:  c.img,
		Src:  c.fill,
		Face: c.face,
		Dot:  fixed.Point26_6{X: toFixed(x), Y: toFixed(y)},
	}
	d.DrawString(s)
}

// Image returns the backing image. It is overwritten by later draw calls.
func (c *Canvas) Image() image.Image {
	return c.img
}

// Close releases the cached font faces.
func (c *Canvas) Close() error {
	var firstErr error
	for key, face := range c.faces {
		if err := face.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.faces, key)
	}
	c.face = nil
	return firstErr
}

func toFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}
