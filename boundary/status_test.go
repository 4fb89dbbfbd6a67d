package boundary

import (
	"context"
	"fmt"
	"testing"

	"github.com/nickjmiller/floneum/errors"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want Status
	}{
		{nil, StatusOK},
		{errors.NotFound(errors.PhaseBroker, "page", 3), StatusNotFound},
		{fmt.Errorf("wrapped: %w", errors.NotFound(errors.PhaseBroker, "page", 3)), StatusNotFound},
		{errors.ConstructionFailure(errors.PhaseModel, "model x", nil), StatusConstructionFailure},
		{errors.IndexFailure("add", nil), StatusIndexFailure},
		{errors.InvalidInput(errors.PhaseStore, "bad"), StatusInvalidInput},
		{errors.InvalidData(errors.PhaseConfig, "bad"), StatusInvalidInput},
		{errors.OutOfBounds(errors.PhaseBoundary, 1, 2), StatusInvalidInput},
		{errors.TypeMismatch(errors.PhaseBroker, "node", 1), StatusInvalidInput},
		{errors.Unsupported(errors.PhaseModel, "embed"), StatusUnsupported},
		{errors.BackendFailure(errors.PhaseModel, "embed", nil), StatusBackendFailure},
		{errors.Closed(errors.PhaseBroker, "broker"), StatusInternal},
		{context.Canceled, StatusInternal},
	}

	for _, tt := range tests {
		if got := StatusOf(tt.err); got != tt.want {
			t.Errorf("StatusOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestStatus_String(t *testing.T) {
	if StatusNotFound.String() != "not-found" {
		t.Errorf("StatusNotFound = %q", StatusNotFound.String())
	}
	if Status(99).String() != "unknown" {
		t.Errorf("Status(99) = %q", Status(99).String())
	}
}
