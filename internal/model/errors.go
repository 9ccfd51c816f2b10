package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptySeries is returned when a price series has no bars.
var ErrEmptySeries = errors.New("price series is empty")

// InsufficientHistoryError reports a series too short to admit any training row.
type InsufficientHistoryError struct {
	Have int
	Need int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history: have %d bars, need at least %d", e.Have, e.Need)
}

// InsufficientDataError reports too few admitted rows for a non-degenerate fit.
type InsufficientDataError struct {
	Partition string
	Rows      int
	Need      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient %s data: %d rows, need at least %d", e.Partition, e.Rows, e.Need)
}

// SchemaMismatchError reports inference features that differ from a model's schema.
type SchemaMismatchError struct {
	Expected FeatureSchema
	Got      FeatureSchema
	Missing  []string
	Extra    []string
}

// OrderOnly reports whether both sides hold the same names in a different order.
func (e *SchemaMismatchError) OrderOnly() bool { return len(e.Missing) == 0 && len(e.Extra) == 0 }

func (e *SchemaMismatchError) Error() string {
	if e.OrderOnly() {
		return fmt.Sprintf("feature order mismatch: expected [%s], got [%s]",
			strings.Join(e.Expected, ","), strings.Join(e.Got, ","))
	}
	return fmt.Sprintf("feature schema mismatch: missing [%s], unexpected [%s]",
		strings.Join(e.Missing, ","), strings.Join(e.Extra, ","))
}

// NewSchemaMismatch builds a SchemaMismatchError for expected vs got.
func NewSchemaMismatch(expected, got FeatureSchema) *SchemaMismatchError {
	return &SchemaMismatchError{
		Expected: expected,
		Got:      got,
		Missing:  expected.Missing(got),
		Extra:    expected.Extra(got),
	}
}

// CorruptModelError reports a persisted model artifact that cannot be restored.
type CorruptModelError struct {
	Reason string
	Err    error
}

func (e *CorruptModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt model artifact: %s: %v", e.Reason, e.Err)
	}
	return "corrupt model artifact: " + e.Reason
}

func (e *CorruptModelError) Unwrap() error { return e.Err }
