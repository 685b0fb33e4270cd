package lumenvault

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/lumenpay/lumenvault/core"
)

var (
	// ErrUnauthorized is returned for 401 responses
	ErrUnauthorized = errors.New("unauthorized")

	// ErrBadRequest is returned for 400 responses
	ErrBadRequest = errors.New("bad request")

	// ErrNotFound is returned for 404 responses, e.g. balances of an unfunded account
	ErrNotFound = errors.New("not found")

	// ErrRateLimited is returned when the server throttles the client
	ErrRateLimited = errors.New("rate limited")

	// ErrServer is returned for 5xx responses
	ErrServer = errors.New("server error")

	// ErrNotLoggedIn is returned when a session route is called without a token
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrNetworkMismatch is returned when the relay builds for a different network than the signer
	ErrNetworkMismatch = errors.New("network passphrase mismatch")
)

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode      int
	Message         string
	TransactionCode string
	OperationCodes  []string
}

func (e *APIError) Error() string {
	if e.TransactionCode != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Message, e.TransactionCode)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() []error {
	var errs []error
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		errs = append(errs, ErrUnauthorized)
	case e.StatusCode == http.StatusNotFound:
		errs = append(errs, ErrNotFound)
	case e.StatusCode == http.StatusTooManyRequests:
		errs = append(errs, ErrRateLimited)
	case e.StatusCode >= http.StatusInternalServerError:
		errs = append(errs, ErrServer)
	case e.StatusCode >= http.StatusBadRequest:
		errs = append(errs, ErrBadRequest)
	}
	if e.TransactionCode != "" {
		errs = append(errs, core.ErrTransactionRejected)
	}
	return errs
}

// Retryable reports whether the request may succeed if repeated later
func Retryable(err error) bool {
	return errors.Is(err, ErrServer) || errors.Is(err, ErrRateLimited) || core.Retryable(err)
}
