package repository

import "errors"

var (
	// ErrTicketNotFound is returned when no ticket has the requested id.
	ErrTicketNotFound = errors.New("repository: ticket not found")
	// ErrTicketExists is returned by Insert for a duplicate id.
	ErrTicketExists = errors.New("repository: ticket already exists")
	// ErrVersionConflict is returned by Save when the stored version moved on
	// since the ticket was loaded.
	ErrVersionConflict = errors.New("repository: ticket version conflict")
	// ErrUserNotFound is returned when a directory lookup misses.
	ErrUserNotFound = errors.New("repository: user not found")
	// ErrGigNotFound is returned when a gig lookup misses.
	ErrGigNotFound = errors.New("repository: gig not found")
)
