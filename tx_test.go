package dynamost_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lifeomic/dynamost"
	dsterrors "github.com/lifeomic/dynamost/pkg/errors"
	"github.com/lifeomic/dynamost/pkg/mocks"
	"github.com/lifeomic/dynamost/pkg/transaction"
)

func TestTxPut(t *testing.T) {
	table := dynamost.New[user](new(mocks.DynamoDB), userSchema)

	item, err := table.TxPut(user{ID: "u1", Name: "Ada"}, dynamost.PutOptions{
		Condition: dynamost.Where{NotExists: []string{"id"}},
	})
	require.NoError(t, err)

	require.NotNil(t, item.Put)
	assert.Equal(t, "users", *item.Put.TableName)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "u1"}, item.Put.Item["id"])
	assert.Equal(t, "attribute_not_exists(#attr0)", *item.Put.ConditionExpression)
	assert.Equal(t, map[string]string{"#attr0": "id"}, item.Put.ExpressionAttributeNames)
}

func TestTxDelete(t *testing.T) {
	table := dynamost.New[user](new(mocks.DynamoDB), userSchema)

	item, err := table.TxDelete(dynamost.Key{Hash: "u1"}, dynamost.DeleteOptions{
		Condition: dynamost.Where{Equals: map[string]any{"name": "Ada"}},
	})
	require.NoError(t, err)

	require.NotNil(t, item.Delete)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "u1"}, item.Delete.Key["id"])
	assert.Equal(t, "#attr0 = :val0", *item.Delete.ConditionExpression)
}

func TestTxPatch(t *testing.T) {
	table := dynamost.New[user](new(mocks.DynamoDB), userSchema)

	item, err := table.TxPatch(dynamost.Key{Hash: "u1"}, dynamost.Update{"name": "Grace"})
	require.NoError(t, err)

	require.NotNil(t, item.Update)
	assert.Equal(t, "SET #attr0 = :val0", *item.Update.UpdateExpression)
	assert.Nil(t, item.Update.ConditionExpression)
}

func TestTxPatch_RejectsKeyAttributes(t *testing.T) {
	table := dynamost.New[user](new(mocks.DynamoDB), userSchema)

	_, err := table.TxPatch(dynamost.Key{Hash: "u1"}, dynamost.Update{"id": "u2"})
	require.ErrorIs(t, err, dsterrors.ErrKeyInUpdate)
}

func TestTxConditionCheck(t *testing.T) {
	table := dynamost.New[user](new(mocks.DynamoDB), userSchema)

	item, err := table.TxConditionCheck(dynamost.Key{Hash: "u1"},
		dynamost.Where{Exists: []string{"email"}})
	require.NoError(t, err)

	require.NotNil(t, item.ConditionCheck)
	assert.Equal(t, "attribute_exists(#attr0)", *item.ConditionCheck.ConditionExpression)
}

func TestTxConditionCheck_RequiresCondition(t *testing.T) {
	table := dynamost.New[user](new(mocks.DynamoDB), userSchema)

	_, err := table.TxConditionCheck(dynamost.Key{Hash: "u1"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-empty condition")
}

func TestTxActionsCommitThroughWriter(t *testing.T) {
	db := new(mocks.DynamoDB)
	var captured *dynamodb.TransactWriteItemsInput
	db.On("TransactWriteItems", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*dynamodb.TransactWriteItemsInput)
		}).
		Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	users := dynamost.New[user](db, userSchema)
	events := dynamost.New[event](db, eventSchema)

	w := transaction.NewWriter(db)
	err := w.Run(context.Background(), func(tx *transaction.Writer) error {
		put, err := users.TxPut(user{ID: "u1", Name: "Ada"})
		if err != nil {
			return err
		}
		tx.AddWrite(put)

		del, err := events.TxDelete(dynamost.Key{Hash: "u1", Range: "2026-01-01"})
		if err != nil {
			return err
		}
		tx.AddWrite(del)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, captured.TransactItems, 2)
	assert.NotNil(t, captured.TransactItems[0].Put)
	require.NotNil(t, captured.TransactItems[1].Delete)
	assert.Equal(t, "events", *captured.TransactItems[1].Delete.TableName)
}
