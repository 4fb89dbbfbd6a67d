package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseBroker,
				Kind:     KindNotFound,
				Resource: "embedding-db",
				ID:       42,
				HasID:    true,
				Detail:   "already dropped",
			},
			contains: []string{"[broker]", "not_found", "embedding-db #42", "already dropped"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseStore,
				Kind:  KindConstructionFailure,
			},
			contains: []string{"[store]", "construction_failure"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseIndex,
				Kind:   KindIndexFailure,
				Detail: "add",
				Cause:  errors.New("dimension mismatch"),
			},
			contains: []string{"[index]", "index_failure", "add", "caused by", "dimension mismatch"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseStore,
		Kind:  KindConstructionFailure,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should see through to the cause")
	}
}

func TestError_Is(t *testing.T) {
	err := NotFound(PhaseBroker, "page", 7)

	if !err.Is(&Error{Phase: PhaseBroker, Kind: KindNotFound}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseStore, Kind: KindNotFound}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseBroker, Kind: KindClosed}) {
		t.Error("Is should not match different kind")
	}
	if !errors.Is(err, &Error{Phase: PhaseBroker, Kind: KindNotFound}) {
		t.Error("errors.Is should match")
	}
}

func TestIsKind(t *testing.T) {
	inner := OwnershipViolation(PhaseBroker, "node", 3)
	wrapped := fmt.Errorf("drop node: %w", inner)

	if !IsOwnershipViolation(wrapped) {
		t.Error("IsOwnershipViolation should see through fmt wrapping")
	}
	if IsNotFound(wrapped) {
		t.Error("IsNotFound should not match an ownership violation")
	}
	if KindOf(wrapped) != KindOwnershipViolation {
		t.Errorf("KindOf = %q, want %q", KindOf(wrapped), KindOwnershipViolation)
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("KindOf of a plain error should be empty")
	}

	nested := Wrap(PhaseBoundary, KindInvalidInput, NotFound(PhaseBroker, "model", 1), "decode handle")
	if !IsNotFound(nested) {
		t.Error("IsNotFound should match a cause deeper in the chain")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseBroker, KindNotFound).
		Resource("embedding-db").
		ID(99).
		Value("x").
		Cause(cause).
		Detail("slot %d empty", 4).
		Build()

	if err.Phase != PhaseBroker {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseBroker)
	}
	if err.Kind != KindNotFound {
		t.Errorf("Kind = %v, want %v", err.Kind, KindNotFound)
	}
	if err.Resource != "embedding-db" {
		t.Errorf("Resource = %q, want embedding-db", err.Resource)
	}
	if !err.HasID || err.ID != 99 {
		t.Errorf("ID = %d (has=%v), want 99", err.ID, err.HasID)
	}
	if err.Value != "x" {
		t.Errorf("Value = %v, want x", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "slot 4 empty" {
		t.Errorf("Detail = %q, want 'slot 4 empty'", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  *Error
		kind Kind
	}{
		{"NotFound", NotFound(PhaseBroker, "page", 1), KindNotFound},
		{"OwnershipViolation", OwnershipViolation(PhaseBroker, "page", 1), KindOwnershipViolation},
		{"ConstructionFailure", ConstructionFailure(PhaseStore, "index", cause), KindConstructionFailure},
		{"IndexFailure", IndexFailure("query", cause), KindIndexFailure},
		{"TypeMismatch", TypeMismatch(PhaseBroker, "node", 12), KindTypeMismatch},
		{"Unsupported", Unsupported(PhaseModel, "embeddings"), KindUnsupported},
		{"Closed", Closed(PhaseBroker, "broker"), KindClosed},
		{"OutOfBounds", OutOfBounds(PhaseBoundary, 10, 5), KindOutOfBounds},
		{"InvalidInput", InvalidInput(PhaseBoundary, "bad"), KindInvalidInput},
		{"InvalidData", InvalidData(PhaseConfig, "bad"), KindInvalidData},
		{"Registration", Registration("ns", "fn", cause), KindRegistration},
		{"Instantiation", Instantiation(cause), KindInstantiation},
		{"BackendFailure", BackendFailure(PhaseModel, "embed", cause), KindBackendFailure},
		{"Load", Load("read", cause), KindInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if tt.err.Error() == "" {
				t.Error("empty message")
			}
		})
	}

	if !strings.Contains(OutOfBounds(PhaseBoundary, 10, 5).Detail, "[10, 15)") {
		t.Error("OutOfBounds should report the accessed range")
	}
	if !errors.Is(IndexFailure("add", cause), cause) {
		t.Error("IndexFailure should wrap its cause")
	}
}
