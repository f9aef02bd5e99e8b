package expr

import "fmt"

// KeySchema names the key attributes of a table or secondary index.
type KeySchema struct {
	HashKey  string
	RangeKey string
}

// KeyCondition selects items for a query: an exact hash-key match, optionally
// narrowed by a sort-key condition. The hash equality term is never omitted.
type KeyCondition struct {
	HashValue any
	Range     RangeCondition
}

// RangeCondition is the restricted grammar DynamoDB allows on a sort key
// inside a KeyConditionExpression. It carries no attribute name of its own;
// the key schema supplies that at compile time.
type RangeCondition interface {
	rewrite(attr string) Condition
}

// RangeBetween matches sort keys within an inclusive bound pair.
type RangeBetween struct {
	Low  any
	High any
}

// RangeBeginsWith matches sort keys sharing a string prefix.
type RangeBeginsWith struct {
	Prefix string
}

// RangeLessThan matches sort keys strictly below the operand.
type RangeLessThan struct{ Value any }

// RangeLessOrEqual matches sort keys at or below the operand.
type RangeLessOrEqual struct{ Value any }

// RangeGreaterThan matches sort keys strictly above the operand.
type RangeGreaterThan struct{ Value any }

// RangeGreaterOrEqual matches sort keys at or above the operand.
type RangeGreaterOrEqual struct{ Value any }

// RangeAnd composes sort-key conditions conjunctively.
type RangeAnd []RangeCondition

// RangeOr composes sort-key conditions disjunctively.
type RangeOr []RangeCondition

func (r RangeBetween) rewrite(attr string) Condition {
	return Where{Between: map[string]Range{attr: {Low: r.Low, High: r.High}}}
}

func (r RangeBeginsWith) rewrite(attr string) Condition {
	return Where{BeginsWith: map[string]string{attr: r.Prefix}}
}

func (r RangeLessThan) rewrite(attr string) Condition {
	return Where{LessThan: map[string]any{attr: r.Value}}
}

func (r RangeLessOrEqual) rewrite(attr string) Condition {
	return Where{LessOrEqual: map[string]any{attr: r.Value}}
}

func (r RangeGreaterThan) rewrite(attr string) Condition {
	return Where{GreaterThan: map[string]any{attr: r.Value}}
}

func (r RangeGreaterOrEqual) rewrite(attr string) Condition {
	return Where{GreaterOrEqual: map[string]any{attr: r.Value}}
}

func (r RangeAnd) rewrite(attr string) Condition {
	children := make(And, len(r))
	for i, c := range r {
		children[i] = c.rewrite(attr)
	}
	return children
}

func (r RangeOr) rewrite(attr string) Condition {
	children := make(Or, len(r))
	for i, c := range r {
		children[i] = c.rewrite(attr)
	}
	return children
}

// CompileKeyCondition rewrites a key condition into the general condition
// shape and compiles it. The hash equality term always leads; a sort-key term
// joins it under AND when present.
func CompileKeyCondition(schema KeySchema, cond KeyCondition, ctx *Context) (string, error) {
	hash := Where{Equals: map[string]any{schema.HashKey: cond.HashValue}}
	if cond.Range == nil {
		return Compile(hash, ctx)
	}
	if schema.RangeKey == "" {
		return "", fmt.Errorf("sort key condition supplied but key schema has no sort key")
	}
	return Compile(And{hash, cond.Range.rewrite(schema.RangeKey)}, ctx)
}
