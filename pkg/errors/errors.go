package errors

import (
	"errors"
	"fmt"
)

// Domain error types for business logic

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrValidation indicates invalid input parameters
	ErrValidation = errors.New("validation error")

	// ErrForbidden indicates the principal may not perform the action
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState indicates an illegal state transition was attempted
	ErrInvalidState = errors.New("invalid state transition")

	// ErrUnavailable indicates a dependency is unavailable and the call is retryable
	ErrUnavailable = errors.New("service unavailable")

	// ErrInternal indicates an unexpected internal defect
	ErrInternal = errors.New("internal error")
)

// Ledger-specific errors

var (
	// ErrLedgerNotReady indicates the ledger gateway has not been initialized
	ErrLedgerNotReady = errors.New("ledger gateway not ready")

	// ErrNoWallet indicates the user has no wallet address on record
	ErrNoWallet = errors.New("no wallet address")

	// ErrIdentityNotVerified indicates the on-chain identity lacks the KYC claim
	ErrIdentityNotVerified = errors.New("identity not verified on ledger")

	// ErrDeployFailed indicates fund token deployment failed
	ErrDeployFailed = errors.New("fund token deployment failed")

	// ErrMintFailed indicates a token mint transaction failed
	ErrMintFailed = errors.New("token mint failed")

	// ErrLedger indicates a generic ledger transaction failure
	ErrLedger = errors.New("ledger transaction failed")

	// ErrTxRejected indicates the ledger rejected the transaction outright
	ErrTxRejected = errors.New("transaction rejected by ledger")
)

// Investment acceptance errors

var (
	// ErrKYCNotApproved indicates the investor's KYC status does not authorize investing
	ErrKYCNotApproved = errors.New("kyc not approved")

	// ErrFundNotAcceptingInvestments indicates the fund is not active or not deployed
	ErrFundNotAcceptingInvestments = errors.New("fund not accepting investments")

	// ErrTargetExceeded indicates the investment would exceed the fund target
	ErrTargetExceeded = errors.New("investment would exceed fund target")

	// ErrBelowMinimum indicates the investment is below the fund minimum
	ErrBelowMinimum = errors.New("investment below fund minimum")
)

// DomainError wraps an error with a machine-readable code
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
