package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := Wrap(CodeNetwork, cause, "fetch dish")

	if !stdErrors.Is(err, cause) {
		t.Fatalf("wrapped cause must survive errors.Is")
	}
	if err.Code() != CodeNetwork {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestAsFindsTypedErrorThroughChain(t *testing.T) {
	inner := New(CodeStorage, "disk full")
	outer := fmt.Errorf("saving cart: %w", inner)

	typed := As(outer)
	if typed == nil || typed.Code() != CodeStorage {
		t.Fatalf("expected storage error, got %v", typed)
	}
}

func TestAsReturnsNilForUntyped(t *testing.T) {
	if As(stdErrors.New("plain")) != nil {
		t.Fatalf("plain errors carry no code")
	}
	if As(nil) != nil {
		t.Fatalf("nil in, nil out")
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeValidation, "bad quantity"))
	if !IsCode(err, CodeValidation) {
		t.Fatalf("expected validation code")
	}
	if IsCode(err, CodeNetwork) {
		t.Fatalf("wrong code must not match")
	}
	if IsCode(nil, CodeValidation) {
		t.Fatalf("nil never matches")
	}
}

func TestMetadataForKnownCodes(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:   http.StatusBadRequest,
		CodeUnauthorized: http.StatusUnauthorized,
		CodeNotFound:     http.StatusNotFound,
		CodeConflict:     http.StatusConflict,
		CodeStorage:      http.StatusServiceUnavailable,
		CodeNetwork:      http.StatusBadGateway,
		CodeInternal:     http.StatusInternalServerError,
	}
	for code, status := range cases {
		if got := MetadataFor(code).HTTPStatus; got != status {
			t.Fatalf("%s: expected %d got %d", code, status, got)
		}
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	meta := MetadataFor(Code("NO_SUCH_CODE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unknown codes map to internal, got %d", meta.HTTPStatus)
	}
}

func TestWithDetails(t *testing.T) {
	err := New(CodeValidation, "validation failed").WithDetails(map[string]string{"quantity": "must be at least 1"})
	details, ok := err.Details().(map[string]string)
	if !ok || details["quantity"] == "" {
		t.Fatalf("unexpected details %v", err.Details())
	}
}
