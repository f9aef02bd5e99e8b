package dynamost

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/lifeomic/dynamost/internal/expr"
	dsterrors "github.com/lifeomic/dynamost/pkg/errors"
)

// MaxUpsertAttempts bounds the read-modify-write retry loop.
const MaxUpsertAttempts = 3

// ModifyFunc produces the desired state of a record. current is nil when no
// record exists yet. Returning an error wrapping errors.ErrRetryUpsert
// restarts the cycle from a fresh read; any other error is terminal and
// propagates to the Upsert caller untouched.
type ModifyFunc[T any] func(current *T) (*T, error)

// Upsert performs a read-modify-conditionally-write cycle.
//
// The record is read with strong consistency and handed to modify. The write
// is conditional on what the read observed: when a record existed, every
// attribute read must still hold its value and no attribute the modification
// introduces may have appeared in the meantime; when none existed, the key
// must still be absent. A failed condition means a concurrent writer won the
// race, and the cycle restarts. After MaxUpsertAttempts failed cycles the
// last conditional-check failure is returned.
//
// The condition only covers attributes the read observed or the modification
// introduces. A concurrent writer adding an unrelated new attribute between
// read and write is not detected.
func (t *Table[T]) Upsert(ctx context.Context, key Key, modify ModifyFunc[T]) (*T, error) {
	keyAV, err := t.keyAttributes(key)
	if err != nil {
		return nil, dsterrors.New("upsert", t.schema.TableName, err)
	}

	var lastErr error
	for attempt := 0; attempt < MaxUpsertAttempts; attempt++ {
		out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      aws.String(t.schema.TableName),
			Key:            keyAV,
			ConsistentRead: aws.Bool(true),
		})
		if err != nil {
			return nil, dsterrors.New("upsert", t.schema.TableName, err)
		}

		existing := out.Item
		var current *T
		if len(existing) > 0 {
			current = new(T)
			if err := attributevalue.UnmarshalMap(existing, current); err != nil {
				return nil, dsterrors.New("upsert", t.schema.TableName, err)
			}
		}

		next, err := modify(current)
		if err != nil {
			if dsterrors.IsRetryUpsert(err) {
				lastErr = err
				continue
			}
			return nil, err
		}

		proposed, err := attributevalue.MarshalMap(next)
		if err != nil {
			return nil, dsterrors.New("upsert", t.schema.TableName, err)
		}
		// The store rejects updates that assign key attributes.
		for name := range proposed {
			if t.schema.isKeyAttribute(name) {
				delete(proposed, name)
			}
		}
		if len(proposed) == 0 {
			return nil, dsterrors.New("upsert", t.schema.TableName, dsterrors.ErrEmptyUpdate)
		}

		updated, err := t.writeUpsert(ctx, keyAV, existing, proposed)
		if err != nil {
			if dsterrors.IsConditionFailed(err) {
				lastErr = err
				continue
			}
			return nil, dsterrors.New("upsert", t.schema.TableName, err)
		}
		return updated, nil
	}
	return nil, lastErr
}

// writeUpsert compiles and issues the conditional update for one cycle.
func (t *Table[T]) writeUpsert(ctx context.Context, keyAV, existing, proposed map[string]types.AttributeValue) (*T, error) {
	update := make(expr.Update, len(proposed))
	for name, av := range proposed {
		update[name] = av
	}

	var cond expr.Condition
	if len(existing) > 0 {
		// Assert the read is still current, and that no attribute this
		// write introduces was added by a concurrent writer.
		unchanged := make(map[string]any, len(existing))
		for name, av := range existing {
			if t.schema.isKeyAttribute(name) {
				continue
			}
			unchanged[name] = av
		}
		var introduced []string
		for name := range proposed {
			if _, ok := existing[name]; !ok {
				introduced = append(introduced, name)
			}
		}
		sort.Strings(introduced)
		cond = expr.Where{Equals: unchanged, NotExists: introduced}
	} else {
		cond = expr.Where{NotExists: []string{t.schema.HashKey}}
	}

	// The update and its condition share one context so their placeholder
	// references cannot collide.
	ectx := expr.NewContext()
	updateExpr, err := expr.CompileUpdate(update, ectx)
	if err != nil {
		return nil, err
	}
	condExpr, err := expr.Compile(cond, ectx)
	if err != nil {
		return nil, err
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.schema.TableName),
		Key:                       keyAV,
		UpdateExpression:          aws.String(updateExpr),
		ExpressionAttributeNames:  ectx.Names(),
		ExpressionAttributeValues: ectx.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	}
	if condExpr != "" {
		input.ConditionExpression = aws.String(condExpr)
	}

	out, err := t.client.UpdateItem(ctx, input)
	if err != nil {
		return nil, err
	}

	var updated T
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}
