package expr

import (
	"fmt"
	"sort"
	"strings"
)

// Condition is a boolean condition tree over item attributes. The variant set
// is closed: a Where leaf, an And composite or an Or composite.
type Condition interface {
	compile(ctx *Context) (string, error)
}

// Range is the inclusive operand pair of a BETWEEN predicate.
type Range struct {
	Low  any
	High any
}

// Where is a leaf of predicates over individual attributes. Every populated
// operator contributes one fragment per attribute; all fragments of one leaf
// are joined with AND. A Where with no predicates compiles to nothing.
type Where struct {
	Exists         []string
	NotExists      []string
	Equals         map[string]any
	NotEquals      map[string]any
	LessThan       map[string]any
	LessOrEqual    map[string]any
	GreaterThan    map[string]any
	GreaterOrEqual map[string]any
	Between        map[string]Range
	BeginsWith     map[string]string
}

// And compiles to the conjunction of its non-empty children. A single
// surviving child passes through without parentheses.
type And []Condition

// Or compiles to the disjunction of its non-empty children.
type Or []Condition

// Compile lowers a condition tree into an expression string, accumulating
// placeholders in ctx. A tree with no effective predicates yields "", which
// callers must treat as an absent condition rather than an empty one.
func Compile(cond Condition, ctx *Context) (string, error) {
	if cond == nil {
		return "", nil
	}
	return cond.compile(ctx)
}

func (w Where) compile(ctx *Context) (string, error) {
	var frags []string

	for _, name := range w.Exists {
		frags = append(frags, fmt.Sprintf("attribute_exists(%s)", ctx.NameRef(name)))
	}
	for _, name := range w.NotExists {
		frags = append(frags, fmt.Sprintf("attribute_not_exists(%s)", ctx.NameRef(name)))
	}

	comparisons := []struct {
		operands map[string]any
		format   string
	}{
		{w.Equals, "%s = %s"},
		{w.NotEquals, "%s <> %s"},
		{w.LessThan, "%s < %s"},
		{w.LessOrEqual, "%s <= %s"},
		{w.GreaterThan, "%s > %s"},
		{w.GreaterOrEqual, "%s >= %s"},
	}
	for _, cmp := range comparisons {
		for _, name := range sortedKeys(cmp.operands) {
			av, err := marshalOperand(cmp.operands[name])
			if err != nil {
				return "", err
			}
			frags = append(frags, fmt.Sprintf(cmp.format, ctx.NameRef(name), ctx.ValueRef(av)))
		}
	}

	for _, name := range sortedKeys(w.Between) {
		r := w.Between[name]
		low, err := marshalOperand(r.Low)
		if err != nil {
			return "", err
		}
		high, err := marshalOperand(r.High)
		if err != nil {
			return "", err
		}
		frags = append(frags, fmt.Sprintf("%s BETWEEN %s AND %s",
			ctx.NameRef(name), ctx.ValueRef(low), ctx.ValueRef(high)))
	}

	for _, name := range sortedKeys(w.BeginsWith) {
		av, err := marshalOperand(w.BeginsWith[name])
		if err != nil {
			return "", err
		}
		frags = append(frags, fmt.Sprintf("begins_with(%s, %s)", ctx.NameRef(name), ctx.ValueRef(av)))
	}

	return strings.Join(frags, " AND "), nil
}

func (a And) compile(ctx *Context) (string, error) {
	return compileComposite([]Condition(a), "AND", ctx)
}

func (o Or) compile(ctx *Context) (string, error) {
	return compileComposite([]Condition(o), "OR", ctx)
}

func compileComposite(children []Condition, op string, ctx *Context) (string, error) {
	var compiled []string
	for _, child := range children {
		if child == nil {
			continue
		}
		frag, err := child.compile(ctx)
		if err != nil {
			return "", err
		}
		if frag == "" {
			continue
		}
		compiled = append(compiled, frag)
	}

	switch len(compiled) {
	case 0:
		return "", nil
	case 1:
		return compiled[0], nil
	}

	for i, frag := range compiled {
		compiled[i] = "(" + frag + ")"
	}
	return strings.Join(compiled, " "+op+" "), nil
}

// sortedKeys fixes the emission order of map-shaped operands. Go maps iterate
// in random order; sorting keeps compiled expressions deterministic per input.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
