// Package gifenc encodes rendered frames into an animated GIF. Frames are
// copied on AddFrame and quantized on a background goroutine, so the caller
// may keep drawing into the same surface.
package gifenc

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ericpauley/go-quantize/quantize"
	"github.com/koios/countdown-renderer/internal/countdown"
	"go.uber.org/zap"
)

const frameBuffer = 4

var (
	ErrNotStarted     = errors.New("encoder not started")
	ErrAlreadyStarted = errors.New("encoder already started")
	ErrFinished       = errors.New("encoder already finished")
)

// Encoder implements countdown.FrameSink. Its methods are called from a
// single goroutine; the encoding work runs on its own.
type Encoder struct {
	logger *zap.Logger

	// open is called by Start and returns the destination writer plus the
	// hooks run after a successful encode or on abort.
	open func() (io.Writer, func() error, func(), error)

	mu      sync.Mutex
	started bool
	closed  bool
	aborted bool
	frames  chan image.Image
	exited  chan struct{}
	result  error
	discard func()

	count     int
	firstSize image.Point
}

var _ countdown.FrameSink = (*Encoder)(nil)

// NewEncoder returns an encoder that writes the finished GIF to w.
func NewEncoder(w io.Writer, logger *zap.Logger) *Encoder {
	return &Encoder{
		logger: logger,
		open: func() (io.Writer, func() error, func(), error) {
			return w, func() error { return nil }, func() {}, nil
		},
	}
}

// NewFileEncoder returns an encoder that writes to a temporary file next to
// path and renames it into place only after the GIF is fully written.
func NewFileEncoder(path string, logger *zap.Logger) *Encoder {
	return &Encoder{
		logger: logger,
		open: func() (io.Writer, func() error, func(), error) {
			dir := filepath.Dir(path)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, nil, nil, fmt.Errorf("failed to create output directory: %w", err)
			}
			f, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
			if err != nil {
				return nil, nil, nil, fmt.Errorf("failed to create temp file: %w", err)
			}
			tmp := f.Name()

			commit := func() error {
				if err := f.Close(); err != nil {
					os.Remove(tmp)
					return fmt.Errorf("failed to close temp file: %w", err)
				}
				if err := os.Rename(tmp, path); err != nil {
					os.Remove(tmp)
					return fmt.Errorf("failed to move output into place: %w", err)
				}
				return nil
			}
			discard := func() {
				f.Close()
				os.Remove(tmp)
			}
			return f, commit, discard, nil
		},
	}
}

// Start opens the destination and begins accepting frames.
func (e *Encoder) Start(opts countdown.EncodeOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return ErrAlreadyStarted
	}
	if opts.DelayMillis < 0 {
		return fmt.Errorf("invalid frame delay %d", opts.DelayMillis)
	}

	w, commit, discard, err := e.open()
	if err != nil {
		return err
	}

	e.started = true
	e.discard = discard
	e.frames = make(chan image.Image, frameBuffer)
	e.exited = make(chan struct{})

	go e.run(w, opts, commit)
	return nil
}

func (e *Encoder) run(w io.Writer, opts countdown.EncodeOptions, commit func() error) {
	defer close(e.exited)

	anim := &gif.GIF{LoopCount: opts.LoopCount}
	paletteSize := PaletteSize(opts.Quality)
	delay := opts.DelayMillis / 10

	for frame := range e.frames {
		if e.isAborted() {
			continue
		}
		anim.Image = append(anim.Image, quantizeFrame(frame, paletteSize))
		anim.Delay = append(anim.Delay, delay)
	}

	switch {
	case e.isAborted():
		e.result = errors.New("encoding aborted")
	case len(anim.Image) == 0:
		e.result = errors.New("no frames to encode")
	default:
		if err := gif.EncodeAll(w, anim); err != nil {
			e.result = fmt.Errorf("failed to write gif: %w", err)
		} else {
			e.result = commit()
		}
	}

	if e.result != nil {
		e.discard()
		return
	}
	e.logger.Debug("GIF encoded",
		zap.Int("frames", len(anim.Image)),
		zap.Int("palette_size", paletteSize),
		zap.Int("delay_cs", delay))
}

func (e *Encoder) isAborted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.aborted
}

// AddFrame copies frame and queues it for quantization.
func (e *Encoder) AddFrame(frame image.Image) error {
	e.mu.Lock()
	switch {
	case !e.started:
		e.mu.Unlock()
		return ErrNotStarted
	case e.closed:
		e.mu.Unlock()
		return ErrFinished
	}
	if e.count > 0 && frame.Bounds().Size() != e.firstSize {
		e.mu.Unlock()
		return fmt.Errorf("frame %d size %v differs from first frame", e.count, frame.Bounds().Size())
	}
	if e.count == 0 {
		e.firstSize = frame.Bounds().Size()
	}
	e.count++
	frames := e.frames
	e.mu.Unlock()

	frames <- cloneFrame(frame)
	return nil
}

// Finish closes the frame queue. The returned channel yields the outcome of
// encoding and writing.
func (e *Encoder) Finish() <-chan error {
	ch := make(chan error, 1)

	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		ch <- ErrNotStarted
		return ch
	}
	e.closeLocked()
	exited := e.exited
	e.mu.Unlock()

	go func() {
		<-exited
		ch <- e.result
	}()
	return ch
}

// Abort stops encoding and removes any partial output. It waits for the
// background goroutine so no file is left behind when it returns.
func (e *Encoder) Abort() error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil
	}
	e.aborted = true
	e.closeLocked()
	exited := e.exited
	e.mu.Unlock()

	<-exited
	return nil
}

func (e *Encoder) closeLocked() {
	if !e.closed {
		e.closed = true
		close(e.frames)
	}
}

// PaletteSize maps an encoder quality (1 best, 30 worst) to the number of
// palette entries per frame.
func PaletteSize(quality int) int {
	if quality < 1 {
		quality = 1
	}
	shift := (quality - 1) / 10
	if shift > 7 {
		shift = 7
	}
	return 256 >> shift
}

func cloneFrame(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

func quantizeFrame(src image.Image, size int) *image.Paletted {
	q := quantize.MedianCutQuantizer{Aggregation: quantize.Mean}
	palette := q.Quantize(make(color.Palette, 0, size), src)
	if len(palette) == 0 {
		palette = color.Palette{color.Black}
	}
	dst := image.NewPaletted(src.Bounds(), palette)
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}
