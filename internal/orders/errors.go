package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Kind is the machine-readable failure class returned to callers.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindForbidden           Kind = "forbidden"
	KindProductNotFound     Kind = "product_not_found"
	KindProductInactive     Kind = "product_inactive"
	KindInsufficientStock   Kind = "insufficient_stock"
	KindInsufficientPayment Kind = "insufficient_payment"
	KindOrderNotFound       Kind = "order_not_found"
	KindAlreadyCancelled    Kind = "already_cancelled"
	KindDuplicateCode       Kind = "duplicate_transaction_code"
	KindConflict            Kind = "conflict"
	KindTimeout             Kind = "timeout"
	KindInternal            Kind = "internal"
)

// Error carries a Kind plus the data the caller needs to explain it.
// ProductID/Available are set for stock failures, Due/Received for payment failures.
type Error struct {
	Kind      Kind
	Message   string
	ProductID int64
	Available int
	Due       decimal.Decimal
	Received  decimal.Decimal
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the same request may succeed on a fresh transaction.
// A duplicate transaction code needs a new code; conflicts and timeouts can be retried as-is.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindDuplicateCode, KindConflict, KindTimeout:
		return true
	}
	return false
}

// KindOf returns the Kind of err, or KindInternal for anything unclassified.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func ProductNotFound(id int64) *Error {
	return &Error{Kind: KindProductNotFound, Message: fmt.Sprintf("product %d not found", id), ProductID: id}
}

func ProductInactive(id int64, name string) *Error {
	return &Error{Kind: KindProductInactive, Message: fmt.Sprintf("product %s is inactive", name), ProductID: id}
}

func InsufficientStock(id int64, name string, available int) *Error {
	return &Error{
		Kind:      KindInsufficientStock,
		Message:   fmt.Sprintf("insufficient stock for %s, available: %d", name, available),
		ProductID: id,
		Available: available,
	}
}

func InsufficientPayment(due, received decimal.Decimal) *Error {
	return &Error{
		Kind:     KindInsufficientPayment,
		Message:  fmt.Sprintf("insufficient payment, total: %s, received: %s", due.StringFixed(2), received.StringFixed(2)),
		Due:      due,
		Received: received,
	}
}

func OrderNotFound(id int64) *Error {
	return &Error{Kind: KindOrderNotFound, Message: fmt.Sprintf("order %d not found", id)}
}

func AlreadyCancelled(id int64) *Error {
	return &Error{Kind: KindAlreadyCancelled, Message: fmt.Sprintf("order %d is already cancelled", id)}
}

func DuplicateCode(code string, err error) *Error {
	return &Error{Kind: KindDuplicateCode, Message: fmt.Sprintf("transaction code %s already used", code), Err: err}
}

// Postgres SQLSTATE codes the ledger maps onto failure kinds.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
)

// TransactionCodeConstraint is the unique index name on orders.transaction_code.
const TransactionCodeConstraint = "orders_transaction_code_key"

// Classify turns a raw storage error into an *Error. Domain errors pass through unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: op + " timed out", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindConflict, Message: op + " canceled", Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return &Error{Kind: KindConflict, Message: op + ": concurrent update, retry", Err: err}
		case pgLockNotAvailable, pgQueryCanceled:
			return &Error{Kind: KindTimeout, Message: op + ": lock wait timed out", Err: err}
		}
	}
	return &Error{Kind: KindInternal, Message: op + " failed", Err: err}
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
	}
	return false
}
