package linking

import "fmt"

// ValidationError reports a request rejected before any mutation. It is
// never retried automatically.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	_, ok := err.(ValidationError)
	return ok
}
