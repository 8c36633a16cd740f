package service

import "github.com/pkg/errors"

// ErrForbidden is returned when the actor's role or task relationship does
// not permit the operation.
var ErrForbidden = errors.New("forbidden")

// ErrInvalidState is returned when a task's lifecycle does not allow the
// operation, e.g. approving a task that has no submission.
var ErrInvalidState = errors.New("invalid state")

// ErrInvalidInput is returned for malformed or out-of-range caller input, as
// opposed to infrastructure failures.
var ErrInvalidInput = errors.New("invalid input")
