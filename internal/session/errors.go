package session

import "errors"

// Wire-visible error kinds (spec.md §7). Handlers wrap one of these
// with fmt.Errorf("%w: detail", ErrX) and the dispatch loop renders
// the result into a typed response frame's error string; no internal
// error detail beyond the wrapped reason crosses the wire.
var (
	ErrValidation    = errors.New("validation error")
	ErrState         = errors.New("message not allowed in current session state")
	ErrUnknownDevice = errors.New("device not registered")
	ErrSignature     = errors.New("signature verification failed")
	ErrDuplicate     = errors.New("duplicate submission")
	ErrTemporal      = errors.New("timestamp out of acceptable range")
	ErrInternal      = errors.New("internal error")
)

// reasonFor renders err as the one-line wire reason spec.md §7
// requires. Anything not in the taxonomy collapses to a generic
// internal-error string so implementation detail never leaks.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrState), errors.Is(err, ErrUnknownDevice),
		errors.Is(err, ErrSignature), errors.Is(err, ErrDuplicate), errors.Is(err, ErrTemporal):
		return err.Error()
	default:
		return "internal error"
	}
}
