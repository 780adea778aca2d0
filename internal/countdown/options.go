package countdown

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultWidth           = 400
	DefaultHeight          = 200
	DefaultBackgroundColor = "000000"
	DefaultTextColor       = "ffffff"
	DefaultFrames          = 30
	DefaultFontFamily      = "NotoSans" // not built in; supplied under FONTS_PATH
	DefaultUnitLocale      = "Days_Hours_Mins_Secs"
	DefaultPassedMessage   = "Date has passed"

	MinSize   = 150
	MaxSize   = 1024
	MinFrames = 1
	MaxFrames = 120

	unitSeparator = "_"
)

// DefaultEncoding matches a one-second tick looping forever.
var DefaultEncoding = EncodeOptions{LoopCount: 0, DelayMillis: 1000, Quality: 10}

// Options is the caller-supplied, partially populated option record.
// Nil pointers and empty strings mean "use the default".
type Options struct {
	Width            *int
	Height           *int
	TextColor        string
	BackgroundColor  string
	Name             string
	Frames           *int
	Time             string
	DigitFontFamily  string
	DigitFontSize    *float64
	UnitLocale       string
	UnitFontFamily   string
	UnitFontSize     *float64
	PassedFontFamily string
	PassedFontSize   *float64
	PassedMessage    string
}

// FontSpec selects a registered font family at a pixel size.
type FontSpec struct {
	Family string
	Size   float64
}

// RenderConfig is the fully populated, immutable configuration of one render.
type RenderConfig struct {
	Width           int
	Height          int
	Frames          int
	BackgroundColor color.RGBA
	TextColor       color.RGBA
	DigitFont       FontSpec
	UnitFont        FontSpec
	PassedFont      FontSpec
	UnitLabels      [4]string
	PassedMessage   string
	TargetTime      time.Time
	Name            string
	Encoding        EncodeOptions
}

// ParseOptions reads caller parameters (query string or message params)
// into an Options record. Unknown keys are ignored.
func ParseOptions(params map[string]string) (Options, error) {
	var opts Options
	var err error

	if opts.Width, err = intParam(params, "width"); err != nil {
		return opts, err
	}
	if opts.Height, err = intParam(params, "height"); err != nil {
		return opts, err
	}
	if opts.Frames, err = intParam(params, "frames"); err != nil {
		return opts, err
	}
	if opts.DigitFontSize, err = floatParam(params, "digitFontSize"); err != nil {
		return opts, err
	}
	if opts.UnitFontSize, err = floatParam(params, "unitFontSize"); err != nil {
		return opts, err
	}
	if opts.PassedFontSize, err = floatParam(params, "passedMsgFontSize"); err != nil {
		return opts, err
	}

	opts.TextColor = params["textColor"]
	opts.BackgroundColor = params["bgColor"]
	opts.Name = params["name"]
	opts.Time = params["time"]
	opts.DigitFontFamily = params["digitFontFamily"]
	opts.UnitLocale = params["unitLocale"]
	opts.UnitFontFamily = params["unitFontFamily"]
	opts.PassedFontFamily = params["passedMsgFontFamily"]
	opts.PassedMessage = params["passedMsg"]

	return opts, nil
}

// Normalize merges opts with the defaults, clamps numeric ranges and parses
// the target time. Timestamps without an offset are read in loc.
func Normalize(opts Options, loc *time.Location) (RenderConfig, error) {
	if loc == nil {
		loc = time.Local
	}

	cfg := RenderConfig{
		Width:         clamp(intOr(opts.Width, DefaultWidth), MinSize, MaxSize),
		Height:        clamp(intOr(opts.Height, DefaultHeight), MinSize, MaxSize),
		Frames:        clamp(intOr(opts.Frames, DefaultFrames), MinFrames, MaxFrames),
		PassedMessage: stringOr(opts.PassedMessage, DefaultPassedMessage),
		Name:          opts.Name,
		Encoding:      DefaultEncoding,
	}

	var err error
	if cfg.BackgroundColor, err = ParseHexColor("#" + stringOr(opts.BackgroundColor, DefaultBackgroundColor)); err != nil {
		return cfg, configErrorf("bgColor", "%v", err)
	}
	if cfg.TextColor, err = ParseHexColor("#" + stringOr(opts.TextColor, DefaultTextColor)); err != nil {
		return cfg, configErrorf("textColor", "%v", err)
	}

	width := float64(cfg.Width)
	cfg.DigitFont = FontSpec{
		Family: stringOr(opts.DigitFontFamily, DefaultFontFamily),
		Size:   sizeOr(opts.DigitFontSize, math.Floor(width/8)),
	}
	cfg.UnitFont = FontSpec{
		Family: stringOr(opts.UnitFontFamily, DefaultFontFamily),
		Size:   sizeOr(opts.UnitFontSize, math.Floor(width/24)),
	}
	cfg.PassedFont = FontSpec{
		Family: stringOr(opts.PassedFontFamily, DefaultFontFamily),
		Size:   sizeOr(opts.PassedFontSize, width/12),
	}

	if cfg.UnitLabels, err = SplitUnitLabels(stringOr(opts.UnitLocale, DefaultUnitLocale)); err != nil {
		return cfg, err
	}

	if strings.TrimSpace(opts.Time) == "" {
		return cfg, configErrorf("time", "parameter is required")
	}
	if cfg.TargetTime, err = ParseTargetTime(opts.Time, loc); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// SplitUnitLabels splits a locale token string such as "Days_Hours_Mins_Secs"
// into the four unit labels.
func SplitUnitLabels(locale string) ([4]string, error) {
	var labels [4]string
	tokens := strings.Split(locale, unitSeparator)
	if len(tokens) != len(labels) {
		return labels, configErrorf("unitLocale", "expected 4 labels separated by %q, got %d", unitSeparator, len(tokens))
	}
	copy(labels[:], tokens)
	return labels, nil
}

var localTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTargetTime accepts RFC 3339 and the common ISO 8601 shorthands.
func ParseTargetTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	for _, layout := range localTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, configErrorf("time", "cannot parse %q as a timestamp", value)
}

// ParseHexColor parses "#rrggbb" or "#rgb".
func ParseHexColor(s string) (color.RGBA, error) {
	c := color.RGBA{A: 0xff}
	if !strings.HasPrefix(s, "#") {
		return c, fmt.Errorf("%q must start with #", s)
	}
	hex := s[1:]
	switch len(hex) {
	case 6:
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return c, fmt.Errorf("%q is not a hex color", s)
		}
		c.R, c.G, c.B = uint8(v>>16), uint8(v>>8), uint8(v)
	case 3:
		v, err := strconv.ParseUint(hex, 16, 16)
		if err != nil {
			return c, fmt.Errorf("%q is not a hex color", s)
		}
		c.R, c.G, c.B = uint8(v>>8&0xf)*0x11, uint8(v>>4&0xf)*0x11, uint8(v&0xf)*0x11
	default:
		return c, fmt.Errorf("%q must have 3 or 6 hex digits", s)
	}
	return c, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func sizeOr(v *float64, derived float64) float64 {
	if v == nil || *v <= 0 {
		return derived
	}
	return *v
}

func stringOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intParam(params map[string]string, key string) (*int, error) {
	raw := strings.TrimSpace(params[key])
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, configErrorf(key, "%q is not a number", raw)
	}
	// Large values are clamped later; keep them within int range here.
	f = math.Max(math.Min(f, math.MaxInt32), math.MinInt32)
	v := int(f)
	return &v, nil
}

func floatParam(params map[string]string, key string) (*float64, error) {
	raw := strings.TrimSpace(params[key])
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, configErrorf(key, "%q is not a number", raw)
	}
	return &f, nil
}
