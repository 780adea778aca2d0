package handlers

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/koios/countdown-renderer/internal/countdown"
)

// ValidationError represents a validation error for a specific field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

var (
	integerParams = []string{"width", "height", "frames"}
	sizeParams    = []string{"digitFontSize", "unitFontSize", "passedMsgFontSize"}
	colorParams   = []string{"textColor", "bgColor"}
)

// ValidateParams checks countdown parameters and reports every problem at
// once. Out-of-range sizes and frame counts are not errors; they are clamped
// at render time. Unknown parameters are ignored.
func ValidateParams(params map[string]string) []ValidationError {
	var errors []ValidationError

	timeValue := strings.TrimSpace(params["time"])
	if timeValue == "" {
		errors = append(errors, ValidationError{
			Field:   "time",
			Message: "Field 'time' is required",
			Code:    "required",
		})
	} else if !isValidDateTime(timeValue) {
		errors = append(errors, ValidationError{
			Field:   "time",
			Message: "Field 'time' must be a valid datetime (e.g., 2030-01-01T00:00:00Z)",
			Code:    "invalid_datetime",
		})
	}

	for _, key := range integerParams {
		if value, ok := params[key]; ok && strings.TrimSpace(value) != "" && !isNumber(value) {
			errors = append(errors, ValidationError{
				Field:   key,
				Message: fmt.Sprintf("Field '%s' must be a number", key),
				Code:    "invalid_number",
			})
		}
	}

	for _, key := range sizeParams {
		if value, ok := params[key]; ok && strings.TrimSpace(value) != "" && !isNumber(value) {
			errors = append(errors, ValidationError{
				Field:   key,
				Message: fmt.Sprintf("Field '%s' must be a font size in pixels", key),
				Code:    "invalid_number",
			})
		}
	}

	for _, key := range colorParams {
		if value, ok := params[key]; ok && value != "" && !isValidColor(value) {
			errors = append(errors, ValidationError{
				Field:   key,
				Message: fmt.Sprintf("Field '%s' must be a hex color without '#' (e.g., ff0000)", key),
				Code:    "invalid_color",
			})
		}
	}

	if locale, ok := params["unitLocale"]; ok && locale != "" {
		if _, err := countdown.SplitUnitLabels(locale); err != nil {
			errors = append(errors, ValidationError{
				Field:   "unitLocale",
				Message: "Field 'unitLocale' must hold four labels separated by '_' (e.g., Days_Hours_Mins_Secs)",
				Code:    "invalid_locale",
			})
		}
	}

	return errors
}

// isValidColor accepts the 3 or 6 digit hex forms used in query strings.
func isValidColor(color string) bool {
	if len(color) != 3 && len(color) != 6 {
		return false
	}
	for i := 0; i < len(color); i++ {
		c := color[i]
		if !((c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

func isValidDateTime(value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	_, err := countdown.ParseTargetTime(value, time.UTC)
	return err == nil
}

func isNumber(value string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	return err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
}
