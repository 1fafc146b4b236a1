package usecases

import "fmt"

// ValidationError reports input that breaks a domain rule
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func checkPercent(field string, v float64) error {
	if v < 0 || v > 100 {
		return invalid(field, "must be between 0 and 100")
	}
	return nil
}
