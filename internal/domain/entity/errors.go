package entity

import (
	"errors"
	"fmt"
)

// ErrValidationFailed matches every ValidationError and ConfigurationError
// under errors.Is.
var ErrValidationFailed = errors.New("validation failed")

// ValidationError rejects a rule or setting before it is stored.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidationFailed }

// ConfigurationError reports a stored rule that cannot be evaluated. The
// rule is skipped as non-matching and the error only reaches the log.
type ConfigurationError struct {
	RuleID  int64
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.RuleID == 0 {
		return fmt.Sprintf("rule %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("rule %d %s: %s", e.RuleID, e.Field, e.Message)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrValidationFailed }
