package dynamost

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/lifeomic/dynamost/internal/expr"
	dsterrors "github.com/lifeomic/dynamost/pkg/errors"
)

// The Tx builders produce fully compiled TransactWriteItems for registration
// on a transaction.Writer. Each action compiles with its own context; the
// store scopes placeholders per action, so actions cannot collide.

// TxPut describes a put action against this table.
func (t *Table[T]) TxPut(item T, opts ...PutOptions) (types.TransactWriteItem, error) {
	var opt PutOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return types.TransactWriteItem{}, dsterrors.New("tx put", t.schema.TableName, err)
	}

	put := &types.Put{
		TableName: aws.String(t.schema.TableName),
		Item:      av,
	}

	ectx := expr.NewContext()
	cond, err := expr.Compile(opt.Condition, ectx)
	if err != nil {
		return types.TransactWriteItem{}, dsterrors.New("tx put", t.schema.TableName, err)
	}
	if cond != "" {
		put.ConditionExpression = aws.String(cond)
		put.ExpressionAttributeNames = ectx.Names()
		put.ExpressionAttributeValues = ectx.Values()
	}
	return types.TransactWriteItem{Put: put}, nil
}

// TxDelete describes a delete action against this table.
func (t *Table[T]) TxDelete(key Key, opts ...DeleteOptions) (types.TransactWriteItem, error) {
	var opt DeleteOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	keyAV, err := t.keyAttributes(key)
	if err != nil {
		return types.TransactWriteItem{}, dsterrors.New("tx delete", t.schema.TableName, err)
	}

	del := &types.Delete{
		TableName: aws.String(t.schema.TableName),
		Key:       keyAV,
	}

	ectx := expr.NewContext()
	cond, err := expr.Compile(opt.Condition, ectx)
	if err != nil {
		return types.TransactWriteItem{}, dsterrors.New("tx delete", t.schema.TableName, err)
	}
	if cond != "" {
		del.ConditionExpression = aws.String(cond)
		del.ExpressionAttributeNames = ectx.Names()
		del.ExpressionAttributeValues = ectx.Values()
	}
	return types.TransactWriteItem{Delete: del}, nil
}

// TxPatch describes a set-only update action against this table.
func (t *Table[T]) TxPatch(key Key, update Update, opts ...PatchOptions) (types.TransactWriteItem, error) {
	var opt PatchOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	for name := range update {
		if t.schema.isKeyAttribute(name) {
			return types.TransactWriteItem{}, dsterrors.New("tx patch", t.schema.TableName,
				dsterrors.ErrKeyInUpdate)
		}
	}

	keyAV, err := t.keyAttributes(key)
	if err != nil {
		return types.TransactWriteItem{}, dsterrors.New("tx patch", t.schema.TableName, err)
	}

	ectx := expr.NewContext()
	updateExpr, err := expr.CompileUpdate(update, ectx)
	if err != nil {
		return types.TransactWriteItem{}, dsterrors.New("tx patch", t.schema.TableName, err)
	}
	cond, err := expr.Compile(opt.Condition, ectx)
	if err != nil {
		return types.TransactWriteItem{}, dsterrors.New("tx patch", t.schema.TableName, err)
	}

	upd := &types.Update{
		TableName:                 aws.String(t.schema.TableName),
		Key:                       keyAV,
		UpdateExpression:          aws.String(updateExpr),
		ExpressionAttributeNames:  ectx.Names(),
		ExpressionAttributeValues: ectx.Values(),
	}
	if cond != "" {
		upd.ConditionExpression = aws.String(cond)
	}
	return types.TransactWriteItem{Update: upd}, nil
}

// TxConditionCheck describes a pure condition assertion against this table.
// The transaction commits only if the condition holds; the item is untouched.
func (t *Table[T]) TxConditionCheck(key Key, cond Condition) (types.TransactWriteItem, error) {
	keyAV, err := t.keyAttributes(key)
	if err != nil {
		return types.TransactWriteItem{}, dsterrors.New("tx condition check", t.schema.TableName, err)
	}

	ectx := expr.NewContext()
	compiled, err := expr.Compile(cond, ectx)
	if err != nil {
		return types.TransactWriteItem{}, dsterrors.New("tx condition check", t.schema.TableName, err)
	}
	if compiled == "" {
		return types.TransactWriteItem{}, dsterrors.New("tx condition check", t.schema.TableName,
			fmt.Errorf("condition check requires a non-empty condition"))
	}

	return types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
		TableName:                 aws.String(t.schema.TableName),
		Key:                       keyAV,
		ConditionExpression:       aws.String(compiled),
		ExpressionAttributeNames:  ectx.Names(),
		ExpressionAttributeValues: ectx.Values(),
	}}, nil
}
