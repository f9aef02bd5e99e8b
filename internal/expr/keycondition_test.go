package expr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeomic/dynamost/internal/expr"
)

var userSchema = expr.KeySchema{HashKey: "pk", RangeKey: "sk"}

func compileKey(t *testing.T, schema expr.KeySchema, cond expr.KeyCondition) (string, *expr.Context) {
	t.Helper()
	ctx := expr.NewContext()
	out, err := expr.CompileKeyCondition(schema, cond, ctx)
	require.NoError(t, err)
	return out, ctx
}

func TestCompileKeyCondition_HashOnly(t *testing.T) {
	out, ctx := compileKey(t, userSchema, expr.KeyCondition{HashValue: "user#1"})

	assert.Equal(t, "#attr0 = :val0", out)
	assert.Equal(t, map[string]string{"#attr0": "pk"}, ctx.Names())
	require.Len(t, ctx.Values(), 1)
}

func TestCompileKeyCondition_HashOnlyOnHashOnlySchema(t *testing.T) {
	out, _ := compileKey(t, expr.KeySchema{HashKey: "id"}, expr.KeyCondition{HashValue: "1"})
	assert.Equal(t, "#attr0 = :val0", out)
}

func TestCompileKeyCondition_RangeOperators(t *testing.T) {
	tests := []struct {
		name string
		cond expr.RangeCondition
		want string
	}{
		{"begins with", expr.RangeBeginsWith{Prefix: "2024-"},
			"(#attr0 = :val0) AND (begins_with(#attr1, :val1))"},
		{"between", expr.RangeBetween{Low: 1, High: 9},
			"(#attr0 = :val0) AND (#attr1 BETWEEN :val1 AND :val2)"},
		{"less than", expr.RangeLessThan{Value: 5},
			"(#attr0 = :val0) AND (#attr1 < :val1)"},
		{"less or equal", expr.RangeLessOrEqual{Value: 5},
			"(#attr0 = :val0) AND (#attr1 <= :val1)"},
		{"greater than", expr.RangeGreaterThan{Value: 5},
			"(#attr0 = :val0) AND (#attr1 > :val1)"},
		{"greater or equal", expr.RangeGreaterOrEqual{Value: 5},
			"(#attr0 = :val0) AND (#attr1 >= :val1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, ctx := compileKey(t, userSchema, expr.KeyCondition{HashValue: "u", Range: tt.cond})
			assert.Equal(t, tt.want, out)
			assert.Equal(t, map[string]string{"#attr0": "pk", "#attr1": "sk"}, ctx.Names())
		})
	}
}

func TestCompileKeyCondition_ComposedRange(t *testing.T) {
	out, _ := compileKey(t, userSchema, expr.KeyCondition{
		HashValue: "u",
		Range: expr.RangeOr{
			expr.RangeLessThan{Value: 5},
			expr.RangeGreaterThan{Value: 10},
		},
	})

	assert.Equal(t, "(#attr0 = :val0) AND ((#attr1 < :val1) OR (#attr1 > :val2))", out)
}

func TestCompileKeyCondition_NestedComposedRange(t *testing.T) {
	out, _ := compileKey(t, userSchema, expr.KeyCondition{
		HashValue: "u",
		Range: expr.RangeAnd{
			expr.RangeGreaterOrEqual{Value: 0},
			expr.RangeOr{
				expr.RangeLessThan{Value: 5},
				expr.RangeBeginsWith{Prefix: "x"},
			},
		},
	})

	assert.Equal(t,
		"(#attr0 = :val0) AND ((#attr1 >= :val1) AND ((#attr1 < :val2) OR (begins_with(#attr1, :val3))))",
		out)
}

func TestCompileKeyCondition_RangeWithoutRangeKeyFails(t *testing.T) {
	ctx := expr.NewContext()
	_, err := expr.CompileKeyCondition(expr.KeySchema{HashKey: "id"}, expr.KeyCondition{
		HashValue: "1",
		Range:     expr.RangeBeginsWith{Prefix: "x"},
	}, ctx)

	require.Error(t, err)
}
