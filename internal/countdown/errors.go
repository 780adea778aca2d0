package countdown

import "fmt"

// ConfigError reports a caller option that cannot be turned into a RenderConfig.
// It is always returned before any drawing work starts.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// EncoderError wraps a failure reported by the frame sink.
type EncoderError struct {
	Op  string
	Err error
}

func (e *EncoderError) Error() string {
	return fmt.Sprintf("encoder %s failed: %v", e.Op, e.Err)
}

func (e *EncoderError) Unwrap() error {
	return e.Err
}

func configErrorf(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}
