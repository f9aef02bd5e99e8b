package transaction_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	dsterrors "github.com/lifeomic/dynamost/pkg/errors"
	"github.com/lifeomic/dynamost/pkg/mocks"
	"github.com/lifeomic/dynamost/pkg/transaction"
)

func putItem(table, pk string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName: &table,
			Item: map[string]types.AttributeValue{
				"pk": &types.AttributeValueMemberS{Value: pk},
			},
		},
	}
}

func TestRun_CommitsAccumulatedWrites(t *testing.T) {
	db := new(mocks.DynamoDB)
	var captured *dynamodb.TransactWriteItemsInput
	db.On("TransactWriteItems", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*dynamodb.TransactWriteItemsInput)
		}).
		Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	w := transaction.NewWriter(db)
	err := w.Run(context.Background(), func(tx *transaction.Writer) error {
		tx.AddWrite(putItem("things", "a"))
		tx.AddWrite(putItem("things", "b"))
		return nil
	})
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Len(t, captured.TransactItems, 2)
	require.NotNil(t, captured.ClientRequestToken)
	assert.NotEmpty(t, *captured.ClientRequestToken)
	db.AssertExpectations(t)
}

func TestRun_EmptyTransactionFailsBeforeNetwork(t *testing.T) {
	db := new(mocks.DynamoDB)

	w := transaction.NewWriter(db)
	err := w.Run(context.Background(), func(tx *transaction.Writer) error {
		return nil
	})

	require.ErrorIs(t, err, dsterrors.ErrEmptyTransaction)
	db.AssertNotCalled(t, "TransactWriteItems", mock.Anything, mock.Anything)
}

func TestRun_CallbackErrorSkipsCommit(t *testing.T) {
	db := new(mocks.DynamoDB)

	w := transaction.NewWriter(db)
	err := w.Run(context.Background(), func(tx *transaction.Writer) error {
		tx.AddWrite(putItem("things", "a"))
		return assert.AnError
	})

	require.ErrorIs(t, err, assert.AnError)
	db.AssertNotCalled(t, "TransactWriteItems", mock.Anything, mock.Anything)
}

func TestRun_ClearsItemsForReuse(t *testing.T) {
	db := new(mocks.DynamoDB)
	var inputs []*dynamodb.TransactWriteItemsInput
	db.On("TransactWriteItems", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			inputs = append(inputs, args.Get(1).(*dynamodb.TransactWriteItemsInput))
		}).
		Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	w := transaction.NewWriter(db)
	require.NoError(t, w.Run(context.Background(), func(tx *transaction.Writer) error {
		tx.AddWrite(putItem("things", "a"))
		tx.AddWrite(putItem("things", "b"))
		return nil
	}))
	require.NoError(t, w.Run(context.Background(), func(tx *transaction.Writer) error {
		tx.AddWrite(putItem("things", "c"))
		return nil
	}))

	require.Len(t, inputs, 2)
	assert.Len(t, inputs[0].TransactItems, 2)
	assert.Len(t, inputs[1].TransactItems, 1)
}

func TestRun_ClearsItemsAfterCommitFailure(t *testing.T) {
	db := new(mocks.DynamoDB)
	db.On("TransactWriteItems", mock.Anything, mock.Anything).
		Return(nil, assert.AnError).Once()

	w := transaction.NewWriter(db)
	err := w.Run(context.Background(), func(tx *transaction.Writer) error {
		tx.AddWrite(putItem("things", "a"))
		return nil
	})
	require.ErrorIs(t, err, assert.AnError)

	// The failed transaction's writes do not leak into the next one.
	err = w.Run(context.Background(), func(tx *transaction.Writer) error {
		return nil
	})
	require.ErrorIs(t, err, dsterrors.ErrEmptyTransaction)
}
