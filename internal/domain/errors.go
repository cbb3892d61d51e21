package domain

import (
	"errors"
	"fmt"
	"math"
)

// Error classes surfaced by the backtest pipeline. Match with errors.Is.
var (
	ErrInvalidRange      = errors.New("invalid range")
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrEmptyDataset      = errors.New("empty dataset")
	ErrMalformedBar      = errors.New("malformed bar")
)

// FieldError names the offending field and value for one of the error
// classes above. Index is the bar position for ErrMalformedBar, -1 otherwise.
type FieldError struct {
	Kind  error
	Field string
	Value any
	Index int
}

// NewFieldError builds a FieldError not tied to a bar position.
func NewFieldError(kind error, field string, value any) *FieldError {
	return &FieldError{Kind: kind, Field: field, Value: value, Index: -1}
}

func (e *FieldError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%v: bar %d: %s=%v", e.Kind, e.Index, e.Field, e.Value)
	}
	return fmt.Sprintf("%v: %s=%v", e.Kind, e.Field, e.Value)
}

func (e *FieldError) Unwrap() error { return e.Kind }

// ValidateBars checks that every bar has finite positive prices, a
// non-negative volume and a date strictly after its predecessor.
func ValidateBars(bars []Bar) error {
	for i, b := range bars {
		for _, f := range []struct {
			name string
			v    float64
		}{
			{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close},
		} {
			if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v <= 0 {
				return &FieldError{Kind: ErrMalformedBar, Field: f.name, Value: f.v, Index: i}
			}
		}
		if b.Volume < 0 {
			return &FieldError{Kind: ErrMalformedBar, Field: "volume", Value: b.Volume, Index: i}
		}
		if i > 0 && !b.Date.After(bars[i-1].Date) {
			return &FieldError{Kind: ErrMalformedBar, Field: "date", Value: b.Date.Format("2006-01-02"), Index: i}
		}
	}
	return nil
}
