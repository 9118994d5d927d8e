package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials indicates a failed login.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidToken indicates a refresh token that cannot be used.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrUserNotFound indicates the user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserInUse indicates the user owns rows that block deletion.
	ErrUserInUse = errors.New("user is referenced by existing activities")
	// ErrDuplicateEmail indicates the email is already taken.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateRUT indicates the RUT is already taken.
	ErrDuplicateRUT = errors.New("rut already registered")
	// ErrRoleMismatch indicates a user has the wrong role for the operation.
	ErrRoleMismatch = errors.New("user has the wrong role for this operation")
	// ErrForbidden indicates the caller may not touch the resource.
	ErrForbidden = errors.New("operation not allowed")

	// ErrCourseNotFound indicates the course does not exist.
	ErrCourseNotFound = errors.New("course not found")
	// ErrCourseExists indicates a duplicate level/letter pair.
	ErrCourseExists = errors.New("course already exists")
	// ErrSubjectNotFound indicates the subject does not exist.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrSubjectExists indicates a duplicate subject code or slug.
	ErrSubjectExists = errors.New("subject code already exists")
	// ErrAssignmentExists indicates a duplicate teacher assignment.
	ErrAssignmentExists = errors.New("teacher already assigned to subject")
	// ErrEnrollmentExists indicates a duplicate enrollment.
	ErrEnrollmentExists = errors.New("student already enrolled in course")
	// ErrRecordNotFound indicates a generic admin record was not found.
	ErrRecordNotFound = errors.New("record not found")

	// ErrActivityNotFound indicates the activity does not exist or is hidden from the caller.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrItemNotFound indicates the item does not belong to the activity.
	ErrItemNotFound = errors.New("item not found")
	// ErrActivityNotPublished indicates students cannot see the activity yet.
	ErrActivityNotPublished = errors.New("activity is not published")
	// ErrActivityClosed indicates the activity close date has passed.
	ErrActivityClosed = errors.New("activity is closed")
	// ErrNotAssigned indicates the student has no assignment for the activity.
	ErrNotAssigned = errors.New("activity not assigned to student")
	// ErrAttemptsExhausted indicates no attempts remain.
	ErrAttemptsExhausted = errors.New("no attempts remaining")
	// ErrNoOpenAttempt indicates there is no attempt to finish.
	ErrNoOpenAttempt = errors.New("no open attempt")
	// ErrNoResults indicates the student has no finalized attempt.
	ErrNoResults = errors.New("no finalized attempts")
)

// FieldError is an input problem tied to a single request field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func fieldError(field, message string) error {
	return &FieldError{Field: field, Message: message}
}
