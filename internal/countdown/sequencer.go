package countdown

import "fmt"

// measure returns the metrics of a single digit and of the first unit label,
// measured with the same fonts and baselines the frames are drawn with.
func measure(cfg RenderConfig, s Surface) (digit, unit TextMetrics, err error) {
	if err = s.SetFont(cfg.DigitFont.Family, cfg.DigitFont.Size); err != nil {
		return digit, unit, fmt.Errorf("failed to select digit font: %w", err)
	}
	s.SetTextAlign(AlignCenter)
	s.SetTextBaseline(BaselineTop)
	digit = s.MeasureText("0")

	if err = s.SetFont(cfg.UnitFont.Family, cfg.UnitFont.Size); err != nil {
		return digit, unit, fmt.Errorf("failed to select unit font: %w", err)
	}
	s.SetTextBaseline(BaselineTop)
	unit = s.MeasureText(cfg.UnitLabels[0])

	return digit, unit, nil
}

// PlanFor measures the surface fonts and plans the layout for d.
func PlanFor(d *Duration, cfg RenderConfig, s Surface) (Layout, error) {
	digit, unit, err := measure(cfg, s)
	if err != nil {
		return Layout{}, err
	}
	width := float64(cfg.Width)
	return Plan(Metrics{
		DigitWidth:    digit.Width,
		DigitEmHeight: digit.EmHeight(),
		UnitWidth:     unit.Width,
		UnitEmHeight:  unit.EmHeight(),
		MaxDays:       d.AsDays(),
		HalfWidth:     width / 2,
		HalfHeight:    float64(cfg.Height) / 2,
		Margin:        width / 18,
	}), nil
}

// RunFrames draws cfg.Frames frames, one second apart, starting at d.
// d is decremented once per frame.
func RunFrames(d *Duration, layout Layout, cfg RenderConfig, s Surface, sink FrameSink) error {
	for i := 0; i < cfg.Frames; i++ {
		if err := drawFrame(d.Fields().Strings(), layout, cfg, s); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if err := sink.AddFrame(s.Image()); err != nil {
			return &EncoderError{Op: "add frame", Err: err}
		}
		d.Decrement()
	}
	return nil
}

func drawFrame(digits [4]string, layout Layout, cfg RenderConfig, s Surface) error {
	s.Clear(cfg.BackgroundColor)
	s.SetFillColor(cfg.TextColor)
	s.SetTextAlign(AlignCenter)

	if err := s.SetFont(cfg.DigitFont.Family, cfg.DigitFont.Size); err != nil {
		return err
	}
	s.SetTextBaseline(BaselineTop)
	for f, text := range digits {
		s.FillText(text, layout[f].X, layout[f].DigitY)
	}

	if err := s.SetFont(cfg.UnitFont.Family, cfg.UnitFont.Size); err != nil {
		return err
	}
	s.SetTextBaseline(BaselineBottom)
	for f, label := range cfg.UnitLabels {
		s.FillText(label, layout[f].X, layout[f].UnitY)
	}
	return nil
}

// RenderPassed draws the single static frame shown once the target time has
// passed.
func RenderPassed(message string, cfg RenderConfig, s Surface, sink FrameSink) error {
	s.Clear(cfg.BackgroundColor)
	if err := s.SetFont(cfg.PassedFont.Family, cfg.PassedFont.Size); err != nil {
		return fmt.Errorf("failed to select passed message font: %w", err)
	}
	s.SetFillColor(cfg.TextColor)
	s.SetTextAlign(AlignCenter)
	s.SetTextBaseline(BaselineMiddle)
	s.FillText(message, float64(cfg.Width)/2, float64(cfg.Height)/2)

	if err := sink.AddFrame(s.Image()); err != nil {
		return &EncoderError{Op: "add frame", Err: err}
	}
	return nil
}
