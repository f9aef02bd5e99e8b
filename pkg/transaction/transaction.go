// Package transaction collects writes from multiple call sites and commits
// them as one all-or-nothing TransactWriteItems call.
package transaction

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/lifeomic/dynamost/pkg/core"
	dsterrors "github.com/lifeomic/dynamost/pkg/errors"
)

// Writer accumulates the write actions of one in-flight transaction. A Writer
// models exactly one transaction at a time and must not be shared across
// concurrent logical transactions; it becomes reusable once Run returns.
type Writer struct {
	client core.DynamoDBAPI
	items  []types.TransactWriteItem
}

// NewWriter returns an empty collector bound to a client.
func NewWriter(client core.DynamoDBAPI) *Writer {
	return &Writer{client: client}
}

// AddWrite appends one action (put, update, delete or condition check) to the
// in-flight transaction. Actions are validated upstream by the compilers that
// produced them, not here.
func (w *Writer) AddWrite(item types.TransactWriteItem) {
	w.items = append(w.items, item)
}

// Run invokes fn with the collector, then commits everything fn registered in
// a single atomic call. Committing nothing is a caller error: an empty
// transaction fails with ErrEmptyTransaction before any network traffic. The
// accumulated list is cleared whether or not the commit succeeds, so the
// Writer can serve a subsequent transaction.
func (w *Writer) Run(ctx context.Context, fn func(tx *Writer) error) error {
	defer func() { w.items = nil }()

	if err := fn(w); err != nil {
		return err
	}
	if len(w.items) == 0 {
		return dsterrors.ErrEmptyTransaction
	}

	_, err := w.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: w.items,
		// An idempotency token lets the SDK retry the commit without
		// applying it twice.
		ClientRequestToken: aws.String(uuid.NewString()),
	})
	return err
}
