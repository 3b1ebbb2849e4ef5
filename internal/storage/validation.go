package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sievefin/tradesift/internal/model"
)

// Validation errors.
var (
	ErrNilContext           = errors.New("context cannot be nil")
	ErrEmptyString          = errors.New("string parameter cannot be empty")
	ErrNilParameter         = errors.New("parameter cannot be nil")
	ErrInvalidTransaction   = errors.New("invalid transaction")
	ErrInvalidIdentity      = errors.New("invalid identification")
	ErrInvalidScope         = errors.New("invalid corpus scope")
	ErrNotFound             = errors.New("not found")
	ErrDuplicateTransaction = errors.New("transaction already recorded")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransaction validates a transaction before persistence.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.Hash == "" {
		return fmt.Errorf("%w: missing hash", ErrInvalidTransaction)
	}
	if txn.Symbol == "" {
		return fmt.Errorf("%w: missing symbol", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if txn.Scope == "" {
		return fmt.Errorf("%w: missing scope", ErrInvalidTransaction)
	}
	return nil
}

// validateIdentification validates an identification before persistence.
func validateIdentification(id *model.Identification) error {
	if id == nil {
		return fmt.Errorf("%w: identification", ErrNilParameter)
	}
	if id.ContentHash == "" {
		return fmt.Errorf("%w: missing content hash", ErrInvalidIdentity)
	}
	if id.FingerprintHash == "" {
		return fmt.Errorf("%w: missing fingerprint hash", ErrInvalidIdentity)
	}
	if id.Scope == "" {
		return fmt.Errorf("%w: missing scope", ErrInvalidIdentity)
	}
	return nil
}
