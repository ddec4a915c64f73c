package brainerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := NotFound("entry abcd1234 not found")
	if KindOf(err) != KindNotFound {
		t.Errorf("KindOf = %q, want not_found", KindOf(err))
	}

	wrapped := fmt.Errorf("recall failed: %w", err)
	if KindOf(wrapped) != KindNotFound {
		t.Errorf("KindOf through wrap = %q, want not_found", KindOf(wrapped))
	}

	if KindOf(errors.New("plain")) != KindInternal {
		t.Error("plain errors should report internal")
	}
}

func TestIsKind(t *testing.T) {
	err := Unavailable("zk binary not found")
	if !IsKind(err, KindBackendUnavailable) {
		t.Error("IsKind should match backend_unavailable")
	}
	if IsKind(err, KindNotFound) {
		t.Error("IsKind should not match a different kind")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Io("write entry", cause)
	if !errors.Is(err, cause) {
		t.Error("Io error should unwrap to its cause")
	}
	if err.Error() == "" {
		t.Error("Error() should render")
	}
}

func TestValidationDetails(t *testing.T) {
	err := Validation("bad request",
		FieldError{Field: "type", Message: "unknown entry type"},
		FieldError{Field: "limit", Message: "must be >= 1"},
	)
	if len(err.Details) != 2 {
		t.Fatalf("Details len = %d, want 2", len(err.Details))
	}
	if err.Details[0].Field != "type" {
		t.Errorf("Details[0].Field = %q, want type", err.Details[0].Field)
	}
}

func TestAsError(t *testing.T) {
	typed := Validationf("limit %d out of range", 0)
	if got := AsError(fmt.Errorf("outer: %w", typed)); got.Kind != KindValidation {
		t.Errorf("AsError kind = %q, want validation", got.Kind)
	}

	plain := AsError(errors.New("boom"))
	if plain.Kind != KindInternal {
		t.Errorf("AsError on plain error = %q, want internal", plain.Kind)
	}
}
