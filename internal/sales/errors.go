package sales

import "fmt"

// ValidationError reports a malformed or incomplete checkout request.
// Nothing has been written when it is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InsufficientStockError reports that stock could not cover a line item.
// The whole sale has been rolled back.
type InsufficientStockError struct {
	Medicine  string
	BatchID   int64 // zero when raised by the per-medicine pre-check
	Requested int64 // base units
	Available int64 // base units
}

func (e *InsufficientStockError) Error() string {
	return "Insufficient stock for " + e.Medicine
}

// StoreError wraps a failure of the underlying database.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}
