package domain

import "errors"

// Engine error taxonomy. Handlers translate these into HTTP status codes;
// anything not listed here is treated as an internal storage failure and
// propagated wrapped.
var (
	// ErrValidation indicates malformed input. Nothing is appended.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a missing circle, member, or ledger entry.
	ErrNotFound = errors.New("not found")
	// ErrSequenceConflict indicates a concurrent writer raced on the same
	// circle. Callers reload the snapshot and may retry a bounded number of times.
	ErrSequenceConflict = errors.New("sequence conflict")
	// ErrInvalidTransition indicates a business-rule violation, e.g. paying
	// into a completed circle. Not retried.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNotAMember indicates the acting user has no approved membership.
	ErrNotAMember = errors.New("not a member of this circle")
	// ErrNotCircleAdmin indicates the acting user is not the circle admin.
	ErrNotCircleAdmin = errors.New("circle admin access required")
	// ErrRecipientMismatch indicates a payout aimed at the wrong member.
	ErrRecipientMismatch = errors.New("recipient does not match round assignment")
	// ErrCircleFrozen indicates the circle is frozen and cannot advance or pay out.
	ErrCircleFrozen = errors.New("circle is frozen")
	// ErrAlreadyIssued indicates the round payout was already issued.
	ErrAlreadyIssued = errors.New("payout already issued for this round")
	// ErrAlreadyVoided indicates the entry was voided before.
	ErrAlreadyVoided = errors.New("entry already voided")
	// ErrIdempotencyReplay indicates an append raced a prior write carrying
	// the same idempotency key. Services resolve it by returning the stored
	// entry; it never reaches a handler.
	ErrIdempotencyReplay = errors.New("idempotency key already used")
)
