package dynamost

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/lifeomic/dynamost/internal/expr"
	"github.com/lifeomic/dynamost/pkg/batch"
	dsterrors "github.com/lifeomic/dynamost/pkg/errors"
)

// BatchPut writes any number of items through the chunked batch executor.
// Chunks may land in any order; on success every item was written.
func (t *Table[T]) BatchPut(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}

	marshalled := make([]map[string]types.AttributeValue, len(items))
	for i, item := range items {
		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			return dsterrors.New("batch put", t.schema.TableName, err)
		}
		marshalled[i] = av
	}
	return t.batch.Write(ctx, t.schema.TableName, batch.PutRequests(marshalled))
}

// BatchDelete removes any number of items by key through the chunked batch
// executor.
func (t *Table[T]) BatchDelete(ctx context.Context, keys []Key) error {
	if len(keys) == 0 {
		return nil
	}

	marshalled := make([]map[string]types.AttributeValue, len(keys))
	for i, key := range keys {
		av, err := t.keyAttributes(key)
		if err != nil {
			return dsterrors.New("batch delete", t.schema.TableName, err)
		}
		marshalled[i] = av
	}
	return t.batch.Write(ctx, t.schema.TableName, batch.DeleteRequests(marshalled))
}

// DeleteAll removes every item in one partition: it pages through the keys
// under the hash value and batch-deletes them. Items written to the partition
// while the walk is in progress may survive.
func (t *Table[T]) DeleteAll(ctx context.Context, hashValue any) error {
	ectx := expr.NewContext()
	keyExpr, err := expr.CompileKeyCondition(t.schema.keySchema(),
		KeyCondition{HashValue: hashValue}, ectx)
	if err != nil {
		return dsterrors.New("delete all", t.schema.TableName, err)
	}

	// Project only the key attributes; the items themselves are not needed.
	projection := ectx.NameRef(t.schema.HashKey)
	if t.schema.RangeKey != "" {
		projection += ", " + ectx.NameRef(t.schema.RangeKey)
	}

	var startKey map[string]types.AttributeValue
	for {
		out, err := t.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(t.schema.TableName),
			KeyConditionExpression:    aws.String(keyExpr),
			ProjectionExpression:      aws.String(projection),
			ExpressionAttributeNames:  ectx.Names(),
			ExpressionAttributeValues: ectx.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return dsterrors.New("delete all", t.schema.TableName, err)
		}

		if len(out.Items) > 0 {
			if err := t.batch.Write(ctx, t.schema.TableName, batch.DeleteRequests(out.Items)); err != nil {
				return err
			}
		}

		if len(out.LastEvaluatedKey) == 0 {
			return nil
		}
		startKey = out.LastEvaluatedKey
	}
}
