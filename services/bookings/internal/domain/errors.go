package domain

import "errors"

// Validation errors.
var (
	ErrInvalidEmail  = errors.New("invalid email format")
	ErrMissingField  = errors.New("missing required field")
	ErrInvalidKind   = errors.New("invalid reservation kind")
	ErrInvalidStatus = errors.New("invalid reservation status")
	ErrInvalidInput  = errors.New("invalid input")
)

// Not found errors.
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrPackNotFound        = errors.New("pack not found")
	ErrUserNotFound        = errors.New("user not found")
)

// Conflict errors.
var (
	ErrDuplicateReservation = errors.New("a reservation for this email already exists on this session")
	ErrAlreadyCancelled     = errors.New("reservation already cancelled")
	ErrInvalidTransition    = errors.New("status transition not allowed")
	ErrSessionFull          = errors.New("session is full")
	ErrSessionCancelled     = errors.New("session has been cancelled")
	ErrPackUnavailable      = errors.New("pack has no remaining sessions or has expired")
	ErrEmailTaken           = errors.New("email already registered")
)

// Policy errors.
var (
	ErrPastSession        = errors.New("cannot cancel or book a past session")
	ErrCancellationWindow = errors.New("cancellation window has closed")
	ErrNotAuthorized      = errors.New("not authorized for this reservation")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Upstream errors.
var (
	ErrPaymentProvider = errors.New("payment provider error")
)
