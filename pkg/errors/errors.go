// Package errors defines the error taxonomy for dynamost operations.
package errors

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Sentinel errors returned by dynamost operations. Store-native failures are
// never rewritten: callers can always reach the underlying SDK error through
// errors.As, and sentinels are attached with %w where we add context.
var (
	// ErrConditionFailed reports that a conditional write did not meet its
	// asserted condition.
	ErrConditionFailed = errors.New("dynamost: condition check failed")

	// ErrEmptyUpdate is returned when an update description contains no
	// assignments. An empty SET clause is a caller error, not a no-op.
	ErrEmptyUpdate = errors.New("dynamost: update has no assignments")

	// ErrKeyInUpdate is returned when an update description assigns a key
	// attribute. DynamoDB rejects updates that touch key attributes.
	ErrKeyInUpdate = errors.New("dynamost: update assigns a key attribute")

	// ErrEmptyTransaction is returned when a transaction commits with no
	// registered writes. No network call is made.
	ErrEmptyTransaction = errors.New("dynamost: transaction has no writes")

	// ErrInvalidCursor is returned when a continuation token cannot be
	// decoded. Tokens are opaque; only tokens produced by this library are
	// valid input.
	ErrInvalidCursor = errors.New("dynamost: invalid continuation token")

	// ErrRetriesExhausted is returned when a batch write still has
	// unprocessed items after the attempt budget.
	ErrRetriesExhausted = errors.New("dynamost: batch write retries exhausted")

	// ErrRetryUpsert is the escape hatch for upsert modification functions.
	// Returning an error wrapping this sentinel restarts the
	// read-modify-write cycle instead of failing the operation.
	ErrRetryUpsert = errors.New("dynamost: retry upsert")
)

// Error carries the operation and table that produced a failure.
type Error struct {
	Op    string
	Table string
	Err   error
}

func (e *Error) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("dynamost: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("dynamost: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with the operation and table that produced it.
func New(op, table string, err error) *Error {
	return &Error{Op: op, Table: table, Err: err}
}

// IsConditionFailed reports whether err is a conditional-check failure,
// either from a single-item write or as the cancellation reason of a
// transactional write.
func IsConditionFailed(err error) bool {
	if errors.Is(err, ErrConditionFailed) {
		return true
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var tc *types.TransactionCanceledException
	if errors.As(err, &tc) {
		for _, reason := range tc.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	return false
}

// IsRetryUpsert reports whether an upsert modification function signaled a
// retry rather than a terminal failure.
func IsRetryUpsert(err error) bool {
	return errors.Is(err, ErrRetryUpsert)
}
