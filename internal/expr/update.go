package expr

import (
	"fmt"
	"strings"

	dsterrors "github.com/lifeomic/dynamost/pkg/errors"
)

// Update is a set of attribute assignments. Semantics are set-only: there is
// no removal operator, and assigning a key attribute is rejected by the table
// layer before compilation.
type Update map[string]any

// CompileUpdate lowers an update description into a SET expression,
// allocating placeholders in ctx. Pass the same ctx used for an attached
// condition so the two clauses never collide. An empty update is a
// precondition violation, not a silent no-op.
func CompileUpdate(update Update, ctx *Context) (string, error) {
	if len(update) == 0 {
		return "", dsterrors.ErrEmptyUpdate
	}

	clauses := make([]string, 0, len(update))
	for _, name := range sortedKeys(update) {
		av, err := marshalOperand(update[name])
		if err != nil {
			return "", err
		}
		clauses = append(clauses, fmt.Sprintf("%s = %s", ctx.NameRef(name), ctx.ValueRef(av)))
	}
	return "SET " + strings.Join(clauses, ", "), nil
}
