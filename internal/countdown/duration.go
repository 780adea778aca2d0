package countdown

import (
	"strconv"
	"time"
)

const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
	secondsPerDay    = 24 * secondsPerHour
)

// Duration is the remaining time carried across frames. It is owned and
// mutated only by the frame sequencer.
type Duration struct {
	TotalSeconds int64
}

// Fields is a Duration decomposed into calendar-free units. Each field
// excludes the contribution of the larger units.
type Fields struct {
	Days    int64
	Hours   int64
	Minutes int64
	Seconds int64
}

// Fields decomposes the duration by successive integer division.
func (d *Duration) Fields() Fields {
	total := d.TotalSeconds
	days := total / secondsPerDay
	hours := total/secondsPerHour - days*24
	minutes := total/secondsPerMinute - days*24*60 - hours*60
	seconds := total - days*secondsPerDay - hours*secondsPerHour - minutes*secondsPerMinute
	return Fields{Days: days, Hours: hours, Minutes: minutes, Seconds: seconds}
}

// AsDays is the fractional number of days remaining.
func (d *Duration) AsDays() float64 {
	return float64(d.TotalSeconds) / secondsPerDay
}

// Decrement removes one second. The duration never goes below zero.
func (d *Duration) Decrement() {
	if d.TotalSeconds > 0 {
		d.TotalSeconds--
	}
}

// Total converts the fields back to seconds.
func (f Fields) Total() int64 {
	return f.Days*secondsPerDay + f.Hours*secondsPerHour + f.Minutes*secondsPerMinute + f.Seconds
}

// Strings formats the four fields zero-padded to at least two characters,
// ordered days, hours, minutes, seconds.
func (f Fields) Strings() [4]string {
	return [4]string{pad2(f.Days), pad2(f.Hours), pad2(f.Minutes), pad2(f.Seconds)}
}

func pad2(v int64) string {
	s := strconv.FormatInt(v, 10)
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

// Evaluation is the outcome of comparing the target time with now.
// Exactly one of Passed or Duration is set.
type Evaluation struct {
	Passed   bool
	Message  string
	Duration *Duration
}

// Evaluate computes the remaining duration until target. A target equal to
// or before now counts as passed.
func Evaluate(target, now time.Time, passedMessage string) Evaluation {
	if !target.After(now) {
		return Evaluation{Passed: true, Message: passedMessage}
	}
	// Whole seconds from Unix times; time.Duration saturates near 292 years.
	seconds := target.Unix() - now.Unix()
	if target.Nanosecond() < now.Nanosecond() {
		seconds--
	}
	return Evaluation{Duration: &Duration{TotalSeconds: seconds}}
}
