package protocol

import "errors"

// ErrDecode matches every *DecodeError.
var ErrDecode = errors.New("decode failed")

// DecodeError reports why a payload was rejected. Malformed payloads are
// expected on an open network, so callers log and drop them.
type DecodeError struct {
	Message string // "DailyStoic" or "DailyStoicRequest"
	Field   string // empty when the failure is not tied to a field
	Reason  string
	Err     error
}

func (e *DecodeError) Error() string {
	msg := "decode " + e.Message
	if e.Field != "" {
		msg += "." + e.Field
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }
