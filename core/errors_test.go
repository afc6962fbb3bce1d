package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestStoreError_Error(t *testing.T) {
	err := NewError(ErrNotFound, "entity not found")

	message := err.Error()
	if !strings.Contains(message, "NOT_FOUND") {
		t.Errorf("Expected code in message, got %q", message)
	}
	if !strings.Contains(message, "entity not found") {
		t.Errorf("Expected text in message, got %q", message)
	}
}

func TestStoreError_Error_WithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, ErrConflict, "failed to apply changes")

	message := err.Error()
	if !strings.Contains(message, "connection refused") {
		t.Errorf("Expected cause in message, got %q", message)
	}
}

func TestStoreError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, ErrConflict, "failed to apply changes")

	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to reach the cause")
	}
	if err.Unwrap() != cause {
		t.Error("Expected Unwrap to return the cause")
	}
}

func TestStoreError_Is_SameCode(t *testing.T) {
	first := NewError(ErrNotFound, "first")
	second := NewError(ErrNotFound, "second")
	other := NewError(ErrConflict, "other")

	if !errors.Is(first, second) {
		t.Error("Expected errors with the same code to match")
	}
	if errors.Is(first, other) {
		t.Error("Expected errors with different codes not to match")
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil, ErrConflict, "message") != nil {
		t.Error("Expected nil for nil cause")
	}
}

func TestIsCode(t *testing.T) {
	err := NewError(ErrAlreadyExists, "duplicate")

	if !IsCode(err, ErrAlreadyExists) {
		t.Error("Expected IsCode to match the error code")
	}
	if IsCode(err, ErrNotFound) {
		t.Error("Expected IsCode not to match a different code")
	}
	if IsCode(nil, ErrNotFound) {
		t.Error("Expected IsCode to be false for nil")
	}
	if IsCode(fmt.Errorf("plain error"), ErrNotFound) {
		t.Error("Expected IsCode to be false for plain errors")
	}
}

func TestIsCode_WrappedChain(t *testing.T) {
	inner := NewError(ErrNotFound, "entity not found")
	outer := fmt.Errorf("failed to save changes: %w", inner)

	if !IsNotFound(outer) {
		t.Error("Expected IsNotFound to see through fmt.Errorf wrapping")
	}
}

func TestHelpers(t *testing.T) {
	if !IsNotFound(NewError(ErrNotFound, "missing")) {
		t.Error("Expected IsNotFound to be true")
	}
	if !IsAlreadyExists(NewError(ErrAlreadyExists, "duplicate")) {
		t.Error("Expected IsAlreadyExists to be true")
	}
	if IsNotFound(NewError(ErrAlreadyExists, "duplicate")) {
		t.Error("Expected IsNotFound to be false for a different code")
	}
}

func TestNewError_StackTrace(t *testing.T) {
	err := NewError(ErrConflict, "conflict")

	if err.StackTrace == "" {
		t.Error("Expected non-empty stack trace")
	}
}
