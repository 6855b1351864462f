package dynamo

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/shopspring/decimal"

	"github.com/catalograph/catalograph/internal/storage"
)

// fromItem converts a DynamoDB item to raw attributes. Numbers become
// exact decimals; the entity mappers decide how to narrow them. Set and
// binary members have no catalog representation and are dropped.
func fromItem(item map[string]types.AttributeValue) (storage.Attributes, error) {
	attrs := make(storage.Attributes, len(item))
	for name, av := range item {
		v, ok, err := fromAttributeValue(av)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		if ok {
			attrs[name] = v
		}
	}
	return attrs, nil
}

func fromAttributeValue(av types.AttributeValue) (any, bool, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, true, nil
	case *types.AttributeValueMemberN:
		d, err := decimal.NewFromString(v.Value)
		if err != nil {
			return nil, false, fmt.Errorf("bad number %q: %w", v.Value, err)
		}
		return d, true, nil
	case *types.AttributeValueMemberBOOL:
		return v.Value, true, nil
	case *types.AttributeValueMemberNULL:
		return nil, true, nil
	case *types.AttributeValueMemberL:
		out := make([]any, 0, len(v.Value))
		for _, elem := range v.Value {
			ev, ok, err := fromAttributeValue(elem)
			if err != nil {
				return nil, false, err
			}
			if ok {
				out = append(out, ev)
			}
		}
		return out, true, nil
	case *types.AttributeValueMemberM:
		out, err := fromItem(v.Value)
		if err != nil {
			return nil, false, err
		}
		return map[string]any(out), true, nil
	default:
		return nil, false, nil
	}
}

// toItem converts raw attributes to a DynamoDB item.
func toItem(attrs storage.Attributes) (map[string]types.AttributeValue, error) {
	item := make(map[string]types.AttributeValue, len(attrs))
	for name, v := range attrs {
		av, err := toAttributeValue(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		item[name] = av
	}
	return item, nil
}

func toAttributeValue(v any) (types.AttributeValue, error) {
	switch v := v.(type) {
	case nil:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case string:
		return &types.AttributeValueMemberS{Value: v}, nil
	case bool:
		return &types.AttributeValueMemberBOOL{Value: v}, nil
	case decimal.Decimal:
		return &types.AttributeValueMemberN{Value: v.String()}, nil
	case int:
		return &types.AttributeValueMemberN{Value: decimal.NewFromInt(int64(v)).String()}, nil
	case int64:
		return &types.AttributeValueMemberN{Value: decimal.NewFromInt(v).String()}, nil
	case float64:
		return &types.AttributeValueMemberN{Value: decimal.NewFromFloat(v).String()}, nil
	case []any:
		out := make([]types.AttributeValue, len(v))
		for i, elem := range v {
			av, err := toAttributeValue(elem)
			if err != nil {
				return nil, err
			}
			out[i] = av
		}
		return &types.AttributeValueMemberL{Value: out}, nil
	case map[string]any:
		out, err := toItem(v)
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberM{Value: out}, nil
	default:
		return nil, fmt.Errorf("unsupported attribute type %T", v)
	}
}

// buildSetExpression renders a sparse change set as a single SET update
// expression with placeholder names and values.
func buildSetExpression(changes storage.Attributes) (string, map[string]string, map[string]types.AttributeValue, error) {
	if len(changes) == 0 {
		return "", nil, nil, fmt.Errorf("no attribute changes supplied")
	}
	names := make(map[string]string, len(changes)+1)
	values := make(map[string]types.AttributeValue, len(changes))
	expr := "SET "
	i := 0
	for name, v := range changes {
		av, err := toAttributeValue(v)
		if err != nil {
			return "", nil, nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		n := fmt.Sprintf("#c%d", i)
		p := fmt.Sprintf(":c%d", i)
		if i > 0 {
			expr += ", "
		}
		expr += n + " = " + p
		names[n] = name
		values[p] = av
		i++
	}
	return expr, names, values, nil
}

// tokenEntry is the portable form of one LastEvaluatedKey attribute.
// DynamoDB key attributes are strings or numbers.
type tokenEntry struct {
	S *string `json:"s,omitempty"`
	N *string `json:"n,omitempty"`
}

// encodeToken renders a LastEvaluatedKey as an opaque continuation token.
func encodeToken(key map[string]types.AttributeValue) (string, error) {
	entries := make(map[string]tokenEntry, len(key))
	for name, av := range key {
		switch v := av.(type) {
		case *types.AttributeValueMemberS:
			s := v.Value
			entries[name] = tokenEntry{S: &s}
		case *types.AttributeValueMemberN:
			n := v.Value
			entries[name] = tokenEntry{N: &n}
		default:
			return "", fmt.Errorf("unsupported key attribute %T in continuation token", av)
		}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// decodeToken restores an ExclusiveStartKey from a continuation token.
// An empty token starts from the beginning.
func decodeToken(token string) (map[string]types.AttributeValue, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("bad continuation token: %w", err)
	}
	var entries map[string]tokenEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("bad continuation token: %w", err)
	}
	key := make(map[string]types.AttributeValue, len(entries))
	for name, e := range entries {
		switch {
		case e.S != nil:
			key[name] = &types.AttributeValueMemberS{Value: *e.S}
		case e.N != nil:
			key[name] = &types.AttributeValueMemberN{Value: *e.N}
		default:
			return nil, fmt.Errorf("bad continuation token: empty attribute %q", name)
		}
	}
	return key, nil
}

// unavailable classifies a DynamoDB client error as a backend fault,
// keeping the service's own error code when it has one.
func unavailable(op string, kind storage.Kind, err error) error {
	code := ""
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.ErrorCode()
	}
	return &storage.UnavailableError{Op: op, Kind: kind, Code: code, Err: err}
}
