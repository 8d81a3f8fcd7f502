package services

import (
	"errors"
	"fmt"

	apperrors "github.com/bmtt-school/times-tables-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")
	ErrConflict         = errors.New("resource conflict")

	// Credential errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is disabled")

	// Roster errors
	ErrClassNotFound   = errors.New("class not found")
	ErrClassLabelTaken = errors.New("class label already exists")
	ErrPupilNotFound   = errors.New("pupil not found")
	ErrTeacherNotFound = errors.New("teacher not found")
	ErrEmailTaken      = errors.New("email already registered")

	// Invite errors
	ErrInviteNotFound    = errors.New("invite not found")
	ErrInviteExpired     = errors.New("invite has expired")
	ErrInviteAlreadyUsed = errors.New("invite already used")

	// Attempt errors
	ErrAttemptNotFound        = errors.New("attempt not found")
	ErrAttemptAccessDenied    = errors.New("access denied to attempt")
	ErrAttemptAlreadyFinished = errors.New("attempt already finished")
	ErrNoQuestionsRemaining   = errors.New("no unanswered questions remaining")
	ErrAnswerCountMismatch    = errors.New("answer count does not match question count")
	ErrAttemptNotYetStartable = errors.New("testing has not started for this class")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// PermissionError carries enough detail to log why a class-scoped read was
// refused without leaking that detail to the client.
type PermissionError struct {
	SubjectID  uint   `json:"subject_id"`
	Resource   string `json:"resource"`
	ResourceID string `json:"resource_id"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: subject %d cannot %s %s %s - %s",
		pe.SubjectID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

// ===== ERROR HELPERS =====

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewPermissionError(subjectID uint, resource, resourceID, action, reason string) *PermissionError {
	return &PermissionError{
		SubjectID:  subjectID,
		Resource:   resource,
		ResourceID: resourceID,
		Action:     action,
		Reason:     reason,
	}
}

// ===== ERROR CLASSIFICATION =====

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrClassNotFound) ||
		errors.Is(err, ErrPupilNotFound) ||
		errors.Is(err, ErrTeacherNotFound) ||
		errors.Is(err, ErrInviteNotFound) ||
		errors.Is(err, ErrAttemptNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrClassLabelTaken) ||
		errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrInviteAlreadyUsed)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrInvalidCredentials)
}

func IsForbidden(err error) bool {
	if errors.Is(err, ErrForbidden) || errors.Is(err, ErrAttemptAccessDenied) {
		return true
	}
	var pe *PermissionError
	return errors.As(err, &pe)
}

func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve *ValidationError
	var ves ValidationErrors
	return errors.As(err, &ve) || errors.As(err, &ves)
}
