package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
)

const (
	pqExclusionViolation = "23P01"
	pqUniqueViolation    = "23505"
)

var (
	// ErrStatusChanged is returned when a compare-and-set update finds the row in another state.
	ErrStatusChanged = errors.New("session status changed concurrently")
	// ErrIdempotencyKeyTaken is returned when another request committed the same key first.
	ErrIdempotencyKeyTaken = errors.New("idempotency key already used")
)

// OverlapError reports that the database refused a write because the participant is already booked.
type OverlapError struct {
	Role models.ParticipantRole
	Err  error
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("%s already booked for the interval: %v", e.Role, e.Err)
}

func (e *OverlapError) Unwrap() error { return e.Err }

// asOverlap converts an exclusion violation into an *OverlapError.
func asOverlap(err error) (*OverlapError, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqExclusionViolation {
		return nil, false
	}
	role := models.RoleAsTutor
	if pqErr.Constraint == constraintStudentOverlap {
		role = models.RoleAsStudent
	}
	return &OverlapError{Role: role, Err: err}, true
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
