package executor

import (
	"errors"
	"fmt"
)

// ValidationError marks a trade that a risk or input rule rejected.
// It is a business outcome: callers report the reason and must not
// retry automatically.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("trade rejected: %s", e.Reason)
}

// IsValidationError reports whether err is (or wraps) a rejection.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
