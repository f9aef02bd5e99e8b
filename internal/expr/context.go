// Package expr compiles structured condition, key-condition and update
// descriptions into DynamoDB expression strings together with their
// ExpressionAttributeNames and ExpressionAttributeValues tables.
package expr

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Context allocates placeholder references for one compiled expression.
//
// A Context must not be shared between independent expressions: the name and
// value tables it accumulates belong to exactly one request. The one sanctioned
// form of sharing is an update expression and its attached condition, which use
// a single Context so their placeholders cannot collide.
type Context struct {
	names    map[string]string // placeholder -> attribute name
	nameRefs map[string]string // attribute name -> placeholder
	values   map[string]types.AttributeValue
	counter  int
}

// NewContext returns an empty Context. Allocate one per top-level operation.
func NewContext() *Context {
	return &Context{
		names:    make(map[string]string),
		nameRefs: make(map[string]string),
		values:   make(map[string]types.AttributeValue),
	}
}

// NameRef returns the placeholder for an attribute name, allocating one on
// first use. The same attribute name always yields the same placeholder within
// one Context, so the emitted name table never holds duplicate entries.
func (c *Context) NameRef(name string) string {
	if ref, ok := c.nameRefs[name]; ok {
		return ref
	}
	ref := fmt.Sprintf("#attr%d", len(c.nameRefs))
	c.nameRefs[name] = ref
	c.names[ref] = name
	return ref
}

// ValueRef records an operand value and returns a freshly numbered
// placeholder. Values are never deduplicated: every operand occurrence gets
// its own placeholder even when the value repeats.
func (c *Context) ValueRef(value types.AttributeValue) string {
	ref := fmt.Sprintf(":val%d", c.counter)
	c.counter++
	c.values[ref] = value
	return ref
}

// Names returns the accumulated name table, or nil when no names were
// referenced. DynamoDB rejects empty expression attribute maps, so callers
// can assign the result to the request field directly.
func (c *Context) Names() map[string]string {
	if len(c.names) == 0 {
		return nil
	}
	return c.names
}

// Values returns the accumulated value table, or nil when empty.
func (c *Context) Values() map[string]types.AttributeValue {
	if len(c.values) == 0 {
		return nil
	}
	return c.values
}

// marshalOperand converts an operand to its DynamoDB representation. Values
// that are already AttributeValues pass through untouched, which lets callers
// feed attributes read back from the store straight into a condition.
func marshalOperand(value any) (types.AttributeValue, error) {
	if av, ok := value.(types.AttributeValue); ok {
		return av, nil
	}
	av, err := attributevalue.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal condition operand: %w", err)
	}
	return av, nil
}
