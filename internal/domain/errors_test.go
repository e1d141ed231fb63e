package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestNetworkError(t *testing.T) {
	baseErr := errors.New("connection refused")

	t.Run("retriable error", func(t *testing.T) {
		err := NewNetworkError("place", baseErr)

		if !err.IsRetriable() {
			t.Error("Expected error to be retriable")
		}

		if err.Error() != "place: connection refused" {
			t.Errorf("Error message = %q, want %q", err.Error(), "place: connection refused")
		}

		if !errors.Is(err, baseErr) {
			t.Error("Expected error to wrap baseErr")
		}
	})

	t.Run("fatal error", func(t *testing.T) {
		err := NewFatalNetworkError("auth", baseErr)

		if err.IsRetriable() {
			t.Error("Expected error to not be retriable")
		}
	})

	t.Run("IsRetriable helper", func(t *testing.T) {
		retriable := NewNetworkError("dial", baseErr)
		fatal := NewFatalNetworkError("auth", baseErr)
		plain := errors.New("plain error")
		wrapped := fmt.Errorf("cancel order: %w", retriable)

		if !IsRetriable(retriable) {
			t.Error("IsRetriable should return true for retriable error")
		}
		if !IsRetriable(wrapped) {
			t.Error("IsRetriable should see through wrapping")
		}
		if IsRetriable(fatal) {
			t.Error("IsRetriable should return false for fatal error")
		}
		if IsRetriable(plain) {
			t.Error("IsRetriable should return false for plain error")
		}
	})
}

func TestExchangeError(t *testing.T) {
	err := &ExchangeError{Op: "place", RetCode: 10001, RetMsg: "params error"}

	if IsRetriable(err) {
		t.Error("ExchangeError should never be retriable")
	}
	want := "place: exchange rejected: 10001 params error"
	if err.Error() != want {
		t.Errorf("Error message = %q, want %q", err.Error(), want)
	}
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Field: "tick_size", Err: ErrMissingInstrument}

	if err.IsRetriable() {
		t.Error("ConfigError should never be retriable")
	}

	expected := "config error [tick_size]: instrument metadata missing"
	if err.Error() != expected {
		t.Errorf("Error message = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, ErrMissingInstrument) {
		t.Error("Expected ConfigError to unwrap to ErrMissingInstrument")
	}
}
