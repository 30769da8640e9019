package domain

import "errors"

var (
	// ErrInvalidTransition indicates the current stage does not permit the
	// requested lifecycle operation.
	ErrInvalidTransition = errors.New("order: invalid status transition")
	// ErrInvalidInput signals malformed input such as a non-positive quantity
	// or an unmapped item category.
	ErrInvalidInput = errors.New("order: invalid input")
	// ErrItemNotFound indicates the referenced line item is not part of the order.
	ErrItemNotFound = errors.New("order: item not found")
	// ErrConfiguration indicates missing catalog seed data or an inconsistent
	// transition table entry. It is a server defect, never a user mistake.
	ErrConfiguration = errors.New("order: configuration")
)
