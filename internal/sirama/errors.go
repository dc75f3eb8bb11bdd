package sirama

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// AuthRejectedError indicates the remote explicitly refused the credentials.
type AuthRejectedError struct {
	Message string
}

func (e *AuthRejectedError) Error() string {
	return fmt.Sprintf("sirama rejected credentials: %s", e.Message)
}

// ServerError indicates the remote answered but not usefully (5xx, auth
// middleware failures, unparseable bodies).
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("sirama server error (%d): %s", e.StatusCode, e.Message)
}

// TransactionRejectedError indicates the transaction endpoint itself was not
// found, which happens when the enrollment hash is stale or wrong.
type TransactionRejectedError struct {
	StatusCode int
	Message    string
}

func (e *TransactionRejectedError) Error() string {
	return fmt.Sprintf("sirama transaction rejected (%d): %s", e.StatusCode, e.Message)
}

// IsTimeout reports whether the error stems from a per-call timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
