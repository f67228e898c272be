package exitcode

import (
	"testing"
)

func TestExitCodeConstants(t *testing.T) {
	// These values are part of the CLI contract; scripts depend on them.
	if Success != 0 {
		t.Errorf("Success = %v, expected 0", Success)
	}
	if GeneralError != 1 {
		t.Errorf("GeneralError = %v, expected 1", GeneralError)
	}
	if PermissionError != 2 {
		t.Errorf("PermissionError = %v, expected 2", PermissionError)
	}
	if PathTraversal != 3 {
		t.Errorf("PathTraversal = %v, expected 3", PathTraversal)
	}
	if Interrupted != 130 {
		t.Errorf("Interrupted = %v, expected 130", Interrupted)
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{Success, "Success"},
		{GeneralError, "General error"},
		{PermissionError, "Permission denied"},
		{PathTraversal, "Path traversal rejected"},
		{Interrupted, "Interrupted"},
		{999, "Unknown error"},
	}

	for _, test := range tests {
		result := String(test.code)
		if result != test.expected {
			t.Errorf("String(%d) = %v, expected %v", test.code, result, test.expected)
		}
	}
}

func TestExitCodeUniqueness(t *testing.T) {
	codes := []int{
		Success,
		GeneralError,
		PermissionError,
		PathTraversal,
		Interrupted,
	}

	seen := make(map[int]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Exit code %d is not unique", code)
		}
		seen[code] = true
	}
}
