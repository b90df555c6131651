package analytics

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRange           = errors.New("start date must be before end date")
	ErrRangeTooLarge          = errors.New("date range cannot exceed 30 years")
	ErrMissingDates           = errors.New("start and end dates are required")
	ErrInvalidTransactionType = errors.New("transaction type must be one of all, income, expense")
	ErrInvalidMonths          = errors.New("months must be between 1 and 12")
	ErrInvalidTrendMonths     = errors.New("months must be between 1 and 360")
	ErrUnauthenticated        = errors.New("owner id is required")
)

// ValidationError reports a malformed or out-of-bounds filter or parameter.
// It is raised before any store query.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// DataSourceError reports a failed store query.
type DataSourceError struct {
	Op  string
	Err error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsDataSource reports whether err is a DataSourceError.
func IsDataSource(err error) bool {
	var de *DataSourceError
	return errors.As(err, &de)
}
