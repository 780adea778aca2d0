// Package countdown decides what a countdown animation shows and where.
//
// A render evaluates the remaining time against a target, plans a fixed
// layout from measured glyph metrics and emits one frame per second of
// countdown through a Surface into a FrameSink. When the target is not in the
// future a single frame carrying the passed message is emitted instead.
package countdown

import (
	"time"

	"go.uber.org/zap"
)

// Summary describes a finished render.
type Summary struct {
	Passed    bool
	Frames    int
	DayDigits int
	// Remaining is the duration shown on the first frame, in seconds.
	Remaining int64
}

// Renderer runs the countdown pipeline. It holds no per-render state and may
// be shared, but each Render call needs its own Surface and FrameSink.
type Renderer struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewRenderer creates a renderer reading the wall clock through time.Now.
func NewRenderer(logger *zap.Logger) *Renderer {
	return &Renderer{logger: logger, now: time.Now}
}

// WithClock returns a copy of r that samples "now" from clock.
func (r *Renderer) WithClock(clock func() time.Time) *Renderer {
	cp := *r
	cp.now = clock
	return &cp
}

// Render draws cfg into sink and waits for the sink's completion signal.
// On failure the sink is aborted so no partial output remains.
func (r *Renderer) Render(cfg RenderConfig, s Surface, sink FrameSink) (Summary, error) {
	eval := Evaluate(cfg.TargetTime, r.now(), cfg.PassedMessage)

	if eval.Passed {
		r.logger.Debug("Target time has passed",
			zap.String("name", cfg.Name),
			zap.Time("target", cfg.TargetTime))

		if err := sink.Start(cfg.Encoding); err != nil {
			return Summary{}, &EncoderError{Op: "start", Err: err}
		}
		if err := RenderPassed(eval.Message, cfg, s, sink); err != nil {
			return Summary{}, r.abort(sink, err)
		}
		if err := <-sink.Finish(); err != nil {
			return Summary{}, r.abort(sink, &EncoderError{Op: "finish", Err: err})
		}
		return Summary{Passed: true, Frames: 1}, nil
	}

	d := eval.Duration
	summary := Summary{
		Frames:    cfg.Frames,
		DayDigits: DayDigits(d.AsDays()),
		Remaining: d.TotalSeconds,
	}

	layout, err := PlanFor(d, cfg, s)
	if err != nil {
		return Summary{}, err
	}

	if err := sink.Start(cfg.Encoding); err != nil {
		return Summary{}, &EncoderError{Op: "start", Err: err}
	}
	if err := RunFrames(d, layout, cfg, s, sink); err != nil {
		return Summary{}, r.abort(sink, err)
	}
	if err := <-sink.Finish(); err != nil {
		return Summary{}, r.abort(sink, &EncoderError{Op: "finish", Err: err})
	}

	r.logger.Debug("Countdown frames rendered",
		zap.String("name", cfg.Name),
		zap.Int("frames", summary.Frames),
		zap.Int64("remaining_seconds", summary.Remaining),
		zap.Int("day_digits", summary.DayDigits))

	return summary, nil
}

func (r *Renderer) abort(sink FrameSink, cause error) error {
	if err := sink.Abort(); err != nil {
		r.logger.Warn("Failed to discard partial output", zap.Error(err))
	}
	return cause
}
