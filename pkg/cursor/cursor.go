// Package cursor encodes DynamoDB continuation state as opaque page tokens.
//
// A token is the base64url encoding of the LastEvaluatedKey in DynamoDB's
// tagged JSON shape, so every attribute type round-trips exactly. Tokens are
// reversible but carry no integrity check; they are not meant to be read or
// constructed by callers.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	dsterrors "github.com/lifeomic/dynamost/pkg/errors"
)

// wireValue is the tagged JSON form of one AttributeValue. Exactly one field
// is set per value. encoding/json base64s []byte fields on its own.
type wireValue struct {
	S    *string               `json:"S,omitempty"`
	N    *string               `json:"N,omitempty"`
	B    *[]byte               `json:"B,omitempty"`
	BOOL *bool                 `json:"BOOL,omitempty"`
	NULL *bool                 `json:"NULL,omitempty"`
	L    *[]wireValue          `json:"L,omitempty"`
	M    *map[string]wireValue `json:"M,omitempty"`
	SS   *[]string             `json:"SS,omitempty"`
	NS   *[]string             `json:"NS,omitempty"`
	BS   *[][]byte             `json:"BS,omitempty"`
}

// Encode converts a LastEvaluatedKey into an opaque token. An absent key
// (no further pages) encodes to the empty token.
func Encode(lastKey map[string]types.AttributeValue) (string, error) {
	if len(lastKey) == 0 {
		return "", nil
	}

	wire := make(map[string]wireValue, len(lastKey))
	for name, av := range lastKey {
		wv, err := toWire(av)
		if err != nil {
			return "", fmt.Errorf("encode cursor attribute %q: %w", name, err)
		}
		wire[name] = wv
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decode converts a token back into an ExclusiveStartKey. The empty token
// decodes to nil, meaning "start from the beginning". Foreign or garbled
// tokens fail with ErrInvalidCursor.
func Decode(token string) (map[string]types.AttributeValue, error) {
	if token == "" {
		return nil, nil
	}

	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dsterrors.ErrInvalidCursor, err)
	}

	var wire map[string]wireValue
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", dsterrors.ErrInvalidCursor, err)
	}

	key := make(map[string]types.AttributeValue, len(wire))
	for name, wv := range wire {
		av, err := fromWire(wv)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute %q: %v", dsterrors.ErrInvalidCursor, name, err)
		}
		key[name] = av
	}
	return key, nil
}

func toWire(av types.AttributeValue) (wireValue, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return wireValue{S: &v.Value}, nil
	case *types.AttributeValueMemberN:
		return wireValue{N: &v.Value}, nil
	case *types.AttributeValueMemberB:
		return wireValue{B: &v.Value}, nil
	case *types.AttributeValueMemberBOOL:
		return wireValue{BOOL: &v.Value}, nil
	case *types.AttributeValueMemberNULL:
		return wireValue{NULL: &v.Value}, nil
	case *types.AttributeValueMemberL:
		list := make([]wireValue, len(v.Value))
		for i, item := range v.Value {
			wv, err := toWire(item)
			if err != nil {
				return wireValue{}, err
			}
			list[i] = wv
		}
		return wireValue{L: &list}, nil
	case *types.AttributeValueMemberM:
		m := make(map[string]wireValue, len(v.Value))
		for name, item := range v.Value {
			wv, err := toWire(item)
			if err != nil {
				return wireValue{}, err
			}
			m[name] = wv
		}
		return wireValue{M: &m}, nil
	case *types.AttributeValueMemberSS:
		return wireValue{SS: &v.Value}, nil
	case *types.AttributeValueMemberNS:
		return wireValue{NS: &v.Value}, nil
	case *types.AttributeValueMemberBS:
		return wireValue{BS: &v.Value}, nil
	default:
		return wireValue{}, fmt.Errorf("unsupported attribute value type %T", av)
	}
}

func fromWire(wv wireValue) (types.AttributeValue, error) {
	switch {
	case wv.S != nil:
		return &types.AttributeValueMemberS{Value: *wv.S}, nil
	case wv.N != nil:
		return &types.AttributeValueMemberN{Value: *wv.N}, nil
	case wv.B != nil:
		return &types.AttributeValueMemberB{Value: *wv.B}, nil
	case wv.BOOL != nil:
		return &types.AttributeValueMemberBOOL{Value: *wv.BOOL}, nil
	case wv.NULL != nil:
		return &types.AttributeValueMemberNULL{Value: *wv.NULL}, nil
	case wv.L != nil:
		list := make([]types.AttributeValue, len(*wv.L))
		for i, item := range *wv.L {
			av, err := fromWire(item)
			if err != nil {
				return nil, err
			}
			list[i] = av
		}
		return &types.AttributeValueMemberL{Value: list}, nil
	case wv.M != nil:
		m := make(map[string]types.AttributeValue, len(*wv.M))
		for name, item := range *wv.M {
			av, err := fromWire(item)
			if err != nil {
				return nil, err
			}
			m[name] = av
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	case wv.SS != nil:
		return &types.AttributeValueMemberSS{Value: *wv.SS}, nil
	case wv.NS != nil:
		return &types.AttributeValueMemberNS{Value: *wv.NS}, nil
	case wv.BS != nil:
		return &types.AttributeValueMemberBS{Value: *wv.BS}, nil
	default:
		return nil, fmt.Errorf("no attribute value member set")
	}
}
