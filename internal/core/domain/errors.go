package domain

import "errors"

// Error taxonomy shared by the rate and invoice subsystems. All failures are
// surfaced synchronously to the caller; nothing is retried internally.
var (
	// ErrValidation marks malformed or missing input.
	ErrValidation = errors.New("validation failed")

	// ErrRateNotFound means no rate matched any tier, including the global
	// default. Invoicing cannot proceed until a default is configured.
	ErrRateNotFound = errors.New("no billing rate configured")

	// ErrRateRecordNotFound means a referenced rate id does not exist.
	ErrRateRecordNotFound = errors.New("billing rate not found")

	// ErrInvoiceNotFound means a referenced invoice id does not exist.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrInvalidState marks a workflow transition attempted from a state
	// that does not permit it.
	ErrInvalidState = errors.New("invalid invoice state for operation")

	// ErrInsufficientAuthority marks an approval attempt above the
	// approver's amount ceiling, or by a role with no approval authority.
	ErrInsufficientAuthority = errors.New("insufficient approval authority")

	// ErrNoBillableHours means draft generation found no snapshots for the
	// client in the requested period.
	ErrNoBillableHours = errors.New("no billable hours found for client in period")

	// ErrDuplicateInvoiceNumber surfaces the store's uniqueness constraint
	// on invoice numbers; the caller should re-allocate and retry.
	ErrDuplicateInvoiceNumber = errors.New("invoice number already exists")

	// ErrForbidden marks an actor whose role does not permit the operation.
	ErrForbidden = errors.New("access forbidden")
)
