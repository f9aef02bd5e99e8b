// Package dynamost is a typed client layer over DynamoDB. It compiles
// structured condition and update descriptions into DynamoDB's parameterized
// expression syntax and layers chunked batch writes, optimistic-concurrency
// upserts and collected write transactions on top.
package dynamost

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/lifeomic/dynamost/internal/expr"
	"github.com/lifeomic/dynamost/pkg/batch"
	"github.com/lifeomic/dynamost/pkg/core"
	dsterrors "github.com/lifeomic/dynamost/pkg/errors"
)

// Condition, Update and key-condition types are re-exported so callers only
// import the root package.
type (
	// Condition is a structured boolean condition over item attributes.
	Condition = expr.Condition
	// Where is a leaf of attribute predicates; see expr.Where.
	Where = expr.Where
	// And joins conditions conjunctively.
	And = expr.And
	// Or joins conditions disjunctively.
	Or = expr.Or
	// Range is the inclusive operand pair of a BETWEEN predicate.
	Range = expr.Range
	// Update is a set-only attribute assignment description.
	Update = expr.Update
	// KeyCondition selects items for Query and QueryIndex.
	KeyCondition = expr.KeyCondition
	// KeySchema names the hash and optional range attribute of an index.
	KeySchema = expr.KeySchema

	// Sort-key condition grammar for queries.
	RangeCondition      = expr.RangeCondition
	RangeBetween        = expr.RangeBetween
	RangeBeginsWith     = expr.RangeBeginsWith
	RangeLessThan       = expr.RangeLessThan
	RangeLessOrEqual    = expr.RangeLessOrEqual
	RangeGreaterThan    = expr.RangeGreaterThan
	RangeGreaterOrEqual = expr.RangeGreaterOrEqual
	RangeAnd            = expr.RangeAnd
	RangeOr             = expr.RangeOr
)

// Schema describes a table: its name, primary key attributes and any
// secondary indexes queries may target. Schema declaration is the extent of
// dynamost's schema awareness; record validation belongs to the caller.
type Schema struct {
	TableName string
	HashKey   string
	RangeKey  string
	Indexes   map[string]KeySchema
}

func (s Schema) keySchema() KeySchema {
	return KeySchema{HashKey: s.HashKey, RangeKey: s.RangeKey}
}

func (s Schema) isKeyAttribute(name string) bool {
	return name == s.HashKey || (s.RangeKey != "" && name == s.RangeKey)
}

// Key identifies one item. Range is ignored for tables without a range key.
type Key struct {
	Hash  any
	Range any
}

// Table is a typed handle on one DynamoDB table. All operations marshal T
// through the attributevalue codec.
type Table[T any] struct {
	client core.DynamoDBAPI
	schema Schema
	batch  *batch.Executor
}

// New builds a table handle from a client and a schema.
func New[T any](client core.DynamoDBAPI, schema Schema) *Table[T] {
	return &Table[T]{
		client: client,
		schema: schema,
		batch:  &batch.Executor{Client: client},
	}
}

// Schema returns the table's schema.
func (t *Table[T]) Schema() Schema {
	return t.schema
}

// PutOptions modifies a Put.
type PutOptions struct {
	// Condition must hold for the write to be accepted.
	Condition Condition
}

// GetOptions modifies a Get.
type GetOptions struct {
	ConsistentRead bool
}

// DeleteOptions modifies a Delete.
type DeleteOptions struct {
	Condition Condition
}

// PatchOptions modifies a Patch.
type PatchOptions struct {
	Condition Condition
}

// Put writes an item, replacing any existing item with the same key.
func (t *Table[T]) Put(ctx context.Context, item T, opts ...PutOptions) error {
	var opt PutOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return dsterrors.New("put", t.schema.TableName, err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(t.schema.TableName),
		Item:      av,
	}

	ectx := expr.NewContext()
	cond, err := expr.Compile(opt.Condition, ectx)
	if err != nil {
		return dsterrors.New("put", t.schema.TableName, err)
	}
	if cond != "" {
		input.ConditionExpression = aws.String(cond)
		input.ExpressionAttributeNames = ectx.Names()
		input.ExpressionAttributeValues = ectx.Values()
	}

	if _, err := t.client.PutItem(ctx, input); err != nil {
		return dsterrors.New("put", t.schema.TableName, err)
	}
	return nil
}

// Get reads one item by key. A missing item yields (nil, nil).
func (t *Table[T]) Get(ctx context.Context, key Key, opts ...GetOptions) (*T, error) {
	var opt GetOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	keyAV, err := t.keyAttributes(key)
	if err != nil {
		return nil, dsterrors.New("get", t.schema.TableName, err)
	}

	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.schema.TableName),
		Key:            keyAV,
		ConsistentRead: aws.Bool(opt.ConsistentRead),
	})
	if err != nil {
		return nil, dsterrors.New("get", t.schema.TableName, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var item T
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, dsterrors.New("get", t.schema.TableName, err)
	}
	return &item, nil
}

// Delete removes one item by key.
func (t *Table[T]) Delete(ctx context.Context, key Key, opts ...DeleteOptions) error {
	var opt DeleteOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	keyAV, err := t.keyAttributes(key)
	if err != nil {
		return dsterrors.New("delete", t.schema.TableName, err)
	}

	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(t.schema.TableName),
		Key:       keyAV,
	}

	ectx := expr.NewContext()
	cond, err := expr.Compile(opt.Condition, ectx)
	if err != nil {
		return dsterrors.New("delete", t.schema.TableName, err)
	}
	if cond != "" {
		input.ConditionExpression = aws.String(cond)
		input.ExpressionAttributeNames = ectx.Names()
		input.ExpressionAttributeValues = ectx.Values()
	}

	if _, err := t.client.DeleteItem(ctx, input); err != nil {
		return dsterrors.New("delete", t.schema.TableName, err)
	}
	return nil
}

// Patch applies a set-only update to one item and returns the item as it
// stands after the write. Updates naming key attributes are rejected before
// anything is compiled.
func (t *Table[T]) Patch(ctx context.Context, key Key, update Update, opts ...PatchOptions) (*T, error) {
	var opt PatchOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	for name := range update {
		if t.schema.isKeyAttribute(name) {
			return nil, dsterrors.New("patch", t.schema.TableName,
				fmt.Errorf("%w: %s", dsterrors.ErrKeyInUpdate, name))
		}
	}

	keyAV, err := t.keyAttributes(key)
	if err != nil {
		return nil, dsterrors.New("patch", t.schema.TableName, err)
	}

	// One context for both clauses keeps their placeholders disjoint.
	ectx := expr.NewContext()
	updateExpr, err := expr.CompileUpdate(update, ectx)
	if err != nil {
		return nil, dsterrors.New("patch", t.schema.TableName, err)
	}
	cond, err := expr.Compile(opt.Condition, ectx)
	if err != nil {
		return nil, dsterrors.New("patch", t.schema.TableName, err)
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.schema.TableName),
		Key:                       keyAV,
		UpdateExpression:          aws.String(updateExpr),
		ExpressionAttributeNames:  ectx.Names(),
		ExpressionAttributeValues: ectx.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	}
	if cond != "" {
		input.ConditionExpression = aws.String(cond)
	}

	out, err := t.client.UpdateItem(ctx, input)
	if err != nil {
		return nil, dsterrors.New("patch", t.schema.TableName, err)
	}

	var item T
	if err := attributevalue.UnmarshalMap(out.Attributes, &item); err != nil {
		return nil, dsterrors.New("patch", t.schema.TableName, err)
	}
	return &item, nil
}

// keyAttributes marshals a Key into the table's key attribute map.
func (t *Table[T]) keyAttributes(key Key) (map[string]types.AttributeValue, error) {
	hashAV, err := attributevalue.Marshal(key.Hash)
	if err != nil {
		return nil, fmt.Errorf("marshal hash key: %w", err)
	}
	attrs := map[string]types.AttributeValue{t.schema.HashKey: hashAV}

	if t.schema.RangeKey != "" && key.Range != nil {
		rangeAV, err := attributevalue.Marshal(key.Range)
		if err != nil {
			return nil, fmt.Errorf("marshal range key: %w", err)
		}
		attrs[t.schema.RangeKey] = rangeAV
	}
	return attrs, nil
}
