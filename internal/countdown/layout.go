package countdown

import "math"

// Field indexes the four countdown fields.
type Field int

const (
	FieldDays Field = iota
	FieldHours
	FieldMinutes
	FieldSeconds
)

// Anchor is where one field's digits and unit label are drawn.
// X is the horizontal center; DigitY is the top of the digit row and UnitY
// the bottom of the unit row.
type Anchor struct {
	X      float64
	DigitY float64
	UnitY  float64
}

// Layout holds the anchors for days, hours, minutes and seconds.
type Layout [4]Anchor

// Metrics are the measured inputs of the layout planner.
type Metrics struct {
	DigitWidth    float64
	DigitEmHeight float64
	UnitWidth     float64
	UnitEmHeight  float64
	MaxDays       float64
	HalfWidth     float64
	HalfHeight    float64
	Margin        float64
}

// DayDigits is the number of digit slots reserved for the days field.
func DayDigits(maxDays float64) int {
	n := 2
	if maxDays > 0 {
		if c := int(math.Ceil(math.Log10(maxDays))); c > n {
			n = c
		}
	}
	return n
}

// Plan centers the countdown block on the canvas. The digit font must have
// uniform digit widths; only the width of "0" is measured.
func Plan(m Metrics) Layout {
	dayDigits := float64(DayDigits(m.MaxDays))
	dw := m.DigitWidth

	textWidth := dw*(dayDigits+6) + m.Margin*3
	textHeight := m.DigitEmHeight + m.UnitEmHeight

	left := m.HalfWidth - textWidth/2
	daysEnd := left + dw*dayDigits
	digitY := m.HalfHeight - textHeight/2
	unitY := m.HalfHeight + textHeight/2

	xs := [4]float64{
		left + dw*dayDigits/2,
		daysEnd + m.Margin + dw,
		daysEnd + m.Margin*2 + dw*3,
		daysEnd + m.Margin*3 + dw*5,
	}

	var layout Layout
	for i, x := range xs {
		layout[i] = Anchor{X: x, DigitY: digitY, UnitY: unitY}
	}
	return layout
}
