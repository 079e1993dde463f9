package checkout

import "errors"

// ErrProcessing means a rail call is already outstanding for the session;
// the resubmission is a no-op.
var ErrProcessing = errors.New("payment already in progress")

// ErrPolicyUnavailable means the funding snapshot could not be fetched.
// Retryable: the session stays where it was.
var ErrPolicyUnavailable = errors.New("payment methods are unavailable")

// ErrWrongState means the requested operation is not legal from the
// session's current state.
var ErrWrongState = errors.New("operation not allowed in current state")

// ErrOrderProvisioning is fatal for the session; the customer must start
// checkout over.
var ErrOrderProvisioning = errors.New("order provisioning failed")

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}
