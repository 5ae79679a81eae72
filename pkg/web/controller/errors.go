package controller

import "errors"

var (
	// ErrKindConflict is returned when a member is declared both as a
	// handler and as something else.
	ErrKindConflict = errors.New("conflicting member kind")

	// ErrKindUnset is returned when compiling a member that was never given
	// a kind (handler, sub-controller or chain).
	ErrKindUnset = errors.New("member kind not set")

	// ErrInvalidTarget is returned when a class annotation is applied to a
	// member or the other way around.
	ErrInvalidTarget = errors.New("annotation does not apply to target")

	// ErrBadMemberSignature is returned when the method backing a member
	// cannot be used as a step.
	ErrBadMemberSignature = errors.New("member method has wrong signature")

	ErrAlreadyDefined    = errors.New("controller already defined")
	ErrUnknownController = errors.New("unknown controller")
	ErrMissingMethod     = errors.New("handler has no HTTP method")
	ErrControllerCycle   = errors.New("controller nests itself")
	ErrReceiverMismatch  = errors.New("middleware receiver does not match controller")
	ErrUnknownMember     = errors.New("unknown member")
	ErrCyclicReference   = errors.New("cyclic member reference")
)
