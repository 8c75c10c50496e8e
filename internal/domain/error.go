package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Pricing
	ErrUnknownProduct = errors.New("unknown product")
	ErrInvalidPrice   = errors.New("invalid price")

	// Capture pipeline
	ErrContractNotEligible = errors.New("contract not eligible for capture")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrPaymentDeclined     = errors.New("payment declined by provider")

	// Account provisioning / activation
	ErrAccountProvisioning    = errors.New("account provisioning failed")
	ErrActivationTokenExpired = errors.New("activation token expired")
	ErrActivationTokenUsed    = errors.New("activation token already used or unknown")

	// Locking
	ErrLockNotAcquired = errors.New("could not acquire lock")

	// Repository-level errors
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context for query")
)
