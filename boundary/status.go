package boundary

import (
	"github.com/nickjmiller/floneum/errors"
)

// Status is the i32 result of every fallible host function.
type Status uint32

const (
	StatusOK Status = iota
	StatusNotFound
	StatusConstructionFailure
	StatusIndexFailure
	StatusInvalidInput
	StatusUnsupported
	StatusInternal
	StatusBackendFailure
)

var statusNames = [...]string{
	StatusOK:                  "ok",
	StatusNotFound:            "not-found",
	StatusConstructionFailure: "construction-failure",
	StatusIndexFailure:        "index-failure",
	StatusInvalidInput:        "invalid-input",
	StatusUnsupported:         "unsupported",
	StatusInternal:            "internal",
	StatusBackendFailure:      "backend-failure",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// StatusOf maps an error to the status reported to the guest. Ownership
// violations never get here; they trap.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	switch errors.KindOf(err) {
	case errors.KindNotFound:
		return StatusNotFound
	case errors.KindConstructionFailure:
		return StatusConstructionFailure
	case errors.KindIndexFailure:
		return StatusIndexFailure
	case errors.KindInvalidInput, errors.KindInvalidData, errors.KindTypeMismatch, errors.KindOutOfBounds:
		return StatusInvalidInput
	case errors.KindUnsupported:
		return StatusUnsupported
	case errors.KindBackendFailure:
		return StatusBackendFailure
	default:
		return StatusInternal
	}
}
