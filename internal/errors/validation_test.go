package errors

import (
	"testing"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("class_label", "year group not derivable from label", "Maple")

	if err.Field != "class_label" {
		t.Errorf("Expected field to be 'class_label', got '%s'", err.Field)
	}

	if err.Message != "year group not derivable from label" {
		t.Errorf("Expected message to be 'year group not derivable from label', got '%s'", err.Message)
	}

	if err.Value != "Maple" {
		t.Errorf("Expected value to be 'Maple', got '%v'", err.Value)
	}

	expected := "validation error on field 'class_label': year group not derivable from label"
	if err.Error() != expected {
		t.Errorf("Expected error message to be '%s', got '%s'", expected, err.Error())
	}
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	if errs.Error() != "validation failed" {
		t.Errorf("Expected 'validation failed' for empty errors, got '%s'", errs.Error())
	}

	errs = append(errs, *NewValidationError("pin", "must be 4 digits", nil))
	expected := "validation failed: pin must be 4 digits"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for single error, got '%s'", expected, errs.Error())
	}

	errs = append(errs, *NewValidationError("min_table", "exceeds max_table", nil))
	expected = "validation failed: 2 field errors"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for multiple errors, got '%s'", expected, errs.Error())
	}
}

func TestNewValidationErrorWithRule(t *testing.T) {
	err := NewValidationErrorWithRule("pin", "must be exactly 4 digits", "pin", "12a4")

	if err.Rule != "pin" {
		t.Errorf("Expected rule to be 'pin', got '%s'", err.Rule)
	}

	if err.Field != "pin" {
		t.Errorf("Expected field to be 'pin', got '%s'", err.Field)
	}
}
