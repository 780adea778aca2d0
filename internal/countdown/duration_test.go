package countdown

import (
	"testing"
	"time"
)

func TestEvaluate(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("past is passed", func(t *testing.T) {
		ev := Evaluate(now.Add(-time.Second), now, "gone")
		if !ev.Passed || ev.Message != "gone" || ev.Duration != nil {
			t.Errorf("got %+v", ev)
		}
	})

	t.Run("now is passed", func(t *testing.T) {
		if ev := Evaluate(now, now, "gone"); !ev.Passed {
			t.Errorf("got %+v, want passed", ev)
		}
	})

	t.Run("future yields whole seconds", func(t *testing.T) {
		ev := Evaluate(now.Add(90*time.Minute+1500*time.Millisecond), now, "gone")
		if ev.Passed || ev.Duration == nil {
			t.Fatalf("got %+v, want duration", ev)
		}
		if ev.Duration.TotalSeconds != 5401 {
			t.Errorf("TotalSeconds = %d, want 5401", ev.Duration.TotalSeconds)
		}
	})

	t.Run("sub-second remainder is truncated", func(t *testing.T) {
		base := time.Date(2024, 6, 1, 0, 0, 0, 700_000_000, time.UTC)
		ev := Evaluate(base.Add(2*time.Second-400*time.Millisecond), base, "gone")
		if ev.Passed || ev.Duration.TotalSeconds != 1 {
			t.Errorf("got %+v, want 1 second", ev.Duration)
		}
		ev = Evaluate(base.Add(300*time.Millisecond), base, "gone")
		if ev.Passed || ev.Duration.TotalSeconds != 0 {
			t.Errorf("got %+v, want 0 seconds and not passed", ev)
		}
	})

	t.Run("centuries ahead", func(t *testing.T) {
		from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		target := time.Date(2500, 1, 1, 0, 0, 0, 0, time.UTC)
		ev := Evaluate(target, from, "gone")
		if ev.Passed || ev.Duration == nil {
			t.Fatalf("got %+v, want duration", ev)
		}
		if ev.Duration.TotalSeconds != 15021158400 {
			t.Errorf("TotalSeconds = %d, want 15021158400", ev.Duration.TotalSeconds)
		}
		if f := ev.Duration.Fields(); f.Days != 173856 || f.Hours != 0 || f.Seconds != 0 {
			t.Errorf("Fields = %+v, want 173856 days", f)
		}
		if got := DayDigits(ev.Duration.AsDays()); got != 6 {
			t.Errorf("DayDigits = %d, want 6", got)
		}
	})
}

func TestDurationFields(t *testing.T) {
	tests := []struct {
		total int64
		want  Fields
	}{
		{0, Fields{}},
		{59, Fields{Seconds: 59}},
		{3661, Fields{Hours: 1, Minutes: 1, Seconds: 1}},
		{90000, Fields{Days: 1, Hours: 1}},
		{89999, Fields{Days: 1, Minutes: 59, Seconds: 59}},
		{123 * 86400, Fields{Days: 123}},
	}
	for _, tt := range tests {
		d := &Duration{TotalSeconds: tt.total}
		if got := d.Fields(); got != tt.want {
			t.Errorf("Fields(%d) = %+v, want %+v", tt.total, got, tt.want)
		}
	}
}

func TestDurationDecrementStopsAtZero(t *testing.T) {
	d := &Duration{TotalSeconds: 1}
	d.Decrement()
	d.Decrement()
	if d.TotalSeconds != 0 {
		t.Errorf("TotalSeconds = %d, want 0", d.TotalSeconds)
	}
}

func TestFieldsStrings(t *testing.T) {
	got := Fields{Days: 123, Hours: 3, Minutes: 0, Seconds: 10}.Strings()
	want := [4]string{"123", "03", "00", "10"}
	if got != want {
		t.Errorf("Strings() = %v, want %v", got, want)
	}

	for v := int64(0); v < 10; v++ {
		s := pad2(v)
		if len(s) != 2 || s[0] != '0' || s[1] != byte('0'+v) {
			t.Errorf("pad2(%d) = %q", v, s)
		}
	}
}
