package dynamost

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/lifeomic/dynamost/internal/expr"
	"github.com/lifeomic/dynamost/pkg/cursor"
	dsterrors "github.com/lifeomic/dynamost/pkg/errors"
)

// QueryOptions modifies a Query or QueryIndex.
type QueryOptions struct {
	// Filter is applied server-side after key selection.
	Filter Condition
	// Limit caps the page size. Zero means the store's default.
	Limit int32
	// Descending reverses the sort-key order of the page.
	Descending bool
	// ConsistentRead requests a strongly consistent read (base table only).
	ConsistentRead bool
	// Cursor resumes from a previous page's NextCursor.
	Cursor string
}

// ScanOptions modifies a Scan.
type ScanOptions struct {
	Filter         Condition
	Limit          int32
	ConsistentRead bool
	Cursor         string
	// IndexName scans a secondary index instead of the base table.
	IndexName string
}

// Page is one page of results. NextCursor is empty when no further pages
// exist; otherwise it resumes the read exactly where this page ended.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// Query reads a page of items matching a key condition on the base table.
func (t *Table[T]) Query(ctx context.Context, cond KeyCondition, opts ...QueryOptions) (*Page[T], error) {
	var opt QueryOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	return t.query(ctx, "", t.schema.keySchema(), cond, opt)
}

// QueryIndex reads a page of items matching a key condition on a named
// secondary index.
func (t *Table[T]) QueryIndex(ctx context.Context, index string, cond KeyCondition, opts ...QueryOptions) (*Page[T], error) {
	schema, ok := t.schema.Indexes[index]
	if !ok {
		return nil, dsterrors.New("query", t.schema.TableName,
			fmt.Errorf("unknown index %q", index))
	}
	var opt QueryOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	return t.query(ctx, index, schema, cond, opt)
}

func (t *Table[T]) query(ctx context.Context, index string, schema KeySchema, cond KeyCondition, opt QueryOptions) (*Page[T], error) {
	ectx := expr.NewContext()
	keyExpr, err := expr.CompileKeyCondition(schema, cond, ectx)
	if err != nil {
		return nil, dsterrors.New("query", t.schema.TableName, err)
	}
	filterExpr, err := expr.Compile(opt.Filter, ectx)
	if err != nil {
		return nil, dsterrors.New("query", t.schema.TableName, err)
	}

	startKey, err := cursor.Decode(opt.Cursor)
	if err != nil {
		return nil, dsterrors.New("query", t.schema.TableName, err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(t.schema.TableName),
		KeyConditionExpression:    aws.String(keyExpr),
		ExpressionAttributeNames:  ectx.Names(),
		ExpressionAttributeValues: ectx.Values(),
		ScanIndexForward:          aws.Bool(!opt.Descending),
		ExclusiveStartKey:         startKey,
	}
	if index != "" {
		input.IndexName = aws.String(index)
	}
	if filterExpr != "" {
		input.FilterExpression = aws.String(filterExpr)
	}
	if opt.Limit > 0 {
		input.Limit = aws.Int32(opt.Limit)
	}
	if opt.ConsistentRead {
		input.ConsistentRead = aws.Bool(true)
	}

	out, err := t.client.Query(ctx, input)
	if err != nil {
		return nil, dsterrors.New("query", t.schema.TableName, err)
	}
	return t.page(out.Items, out.LastEvaluatedKey)
}

// Scan reads a page of items from the whole table or a secondary index.
func (t *Table[T]) Scan(ctx context.Context, opts ...ScanOptions) (*Page[T], error) {
	var opt ScanOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	ectx := expr.NewContext()
	filterExpr, err := expr.Compile(opt.Filter, ectx)
	if err != nil {
		return nil, dsterrors.New("scan", t.schema.TableName, err)
	}

	startKey, err := cursor.Decode(opt.Cursor)
	if err != nil {
		return nil, dsterrors.New("scan", t.schema.TableName, err)
	}

	input := &dynamodb.ScanInput{
		TableName:                 aws.String(t.schema.TableName),
		ExpressionAttributeNames:  ectx.Names(),
		ExpressionAttributeValues: ectx.Values(),
		ExclusiveStartKey:         startKey,
	}
	if opt.IndexName != "" {
		input.IndexName = aws.String(opt.IndexName)
	}
	if filterExpr != "" {
		input.FilterExpression = aws.String(filterExpr)
	}
	if opt.Limit > 0 {
		input.Limit = aws.Int32(opt.Limit)
	}
	if opt.ConsistentRead {
		input.ConsistentRead = aws.Bool(true)
	}

	out, err := t.client.Scan(ctx, input)
	if err != nil {
		return nil, dsterrors.New("scan", t.schema.TableName, err)
	}
	return t.page(out.Items, out.LastEvaluatedKey)
}

func (t *Table[T]) page(raw []map[string]types.AttributeValue, lastKey map[string]types.AttributeValue) (*Page[T], error) {
	items := make([]T, 0, len(raw))
	if err := attributevalue.UnmarshalListOfMaps(raw, &items); err != nil {
		return nil, dsterrors.New("unmarshal page", t.schema.TableName, err)
	}

	next, err := cursor.Encode(lastKey)
	if err != nil {
		return nil, dsterrors.New("encode cursor", t.schema.TableName, err)
	}
	return &Page[T]{Items: items, NextCursor: next}, nil
}
