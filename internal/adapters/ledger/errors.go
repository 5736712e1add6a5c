package ledger

import (
	"strings"

	"meridian/pkg/errors"
)

// IsDuplicate reports whether a ledger error indicates the operation has
// already been performed (re-approval, re-registration, replayed idempotency
// key). The gateway treats these as success.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errors.ErrAlreadyExists) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already approved") ||
		strings.Contains(msg, "already registered") ||
		strings.Contains(msg, "duplicate")
}

// IsUnavailable reports whether the error means the node could not be
// reached, as opposed to the node rejecting the transaction.
func IsUnavailable(err error) bool {
	return errors.Is(err, errors.ErrUnavailable)
}
