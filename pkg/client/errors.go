package client

import (
	"errors"
	"fmt"
)

// ErrorClass represents a classification of search failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors (bad key, bad request).
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx and other non-2xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassDecode represents a 2xx response whose body is not a search page.
	ErrorClassDecode ErrorClass = "decode"

	// ErrorClassNetwork represents network/timeout/TLS errors.
	ErrorClassNetwork ErrorClass = "network"
)

// SearchError is a failed search page: the service answered, but not with
// a usable page of results.
type SearchError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("search %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("search %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SearchError) Unwrap() error {
	return e.Err
}

// IsPageFailure reports whether err is a failed page that should end
// pagination without aborting the run. Transport faults are not page failures.
func IsPageFailure(err error) bool {
	var searchErr *SearchError
	return errors.As(err, &searchErr)
}
