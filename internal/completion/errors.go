package completion

import "fmt"

// TransportError indicates the backend could not be reached or returned a
// non-quota failure after retries were exhausted.
type TransportError struct {
	Err        error
	StatusCode int
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion: transport failure (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("completion: transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// QuotaError indicates rate or credit exhaustion on the backend.
type QuotaError struct {
	Err        error
	StatusCode int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("completion: quota exhausted (status %d): %v", e.StatusCode, e.Err)
}

func (e *QuotaError) Unwrap() error {
	return e.Err
}
