package executor

import (
	"fmt"
	"strconv"

	language "github.com/catalograph/catalograph/internal/language"
	schema "github.com/catalograph/catalograph/internal/schema"
)

// coerceVariableValues checks provided variables against the operation's
// declarations, applying defaults and rejecting missing non-null values.
func coerceVariableValues(
	sch *schema.Schema,
	operation *language.OperationDefinition,
	variables map[string]any,
) (map[string]any, error) {
	if variables == nil {
		variables = make(map[string]any)
	}
	coerced := make(map[string]any)
	for _, varDef := range operation.VariableDefinitions {
		name := varDef.Variable
		t := varDef.Type
		val, ok := variables[name]
		if !ok {
			if varDef.DefaultValue != nil {
				val = astValueToGo(varDef.DefaultValue)
			} else if t.NonNull {
				return nil, fmt.Errorf("variable $%s of required type %s was not provided", name, t.String())
			} else {
				continue
			}
		}
		if val == nil && t.NonNull {
			return nil, fmt.Errorf("variable $%s of type %s cannot be null", name, t.String())
		}
		cv, err := coerceValue(sch, val, typeRefFromAST(t))
		if err != nil {
			return nil, fmt.Errorf("variable $%s of type %s cannot be coerced: %v", name, t.String(), err)
		}
		coerced[name] = cv
	}
	return coerced, nil
}

// coerceArgumentValues coerces the arguments of one field. Coercion
// failures become located errors; the argument is then simply absent.
func (s *evalState) coerceArgumentValues(fieldDef *schema.Field, arguments language.ArgumentList, path Path) map[string]any {
	coerced := make(map[string]any)
	for _, arg := range arguments {
		var argDef *schema.InputValue
		for _, a := range fieldDef.Arguments {
			if a.Name == arg.Name {
				argDef = a
				break
			}
		}
		if argDef == nil {
			continue
		}
		val := s.valueFromAST(arg.Value)
		cv, err := coerceValue(s.schema, val, argDef.Type)
		if err != nil {
			s.addError(fmt.Sprintf("argument '%s' cannot be coerced: %v", arg.Name, err), path)
			continue
		}
		coerced[arg.Name] = cv
	}
	for _, argDef := range fieldDef.Arguments {
		if _, ok := coerced[argDef.Name]; !ok {
			if argDef.DefaultValue != nil {
				coerced[argDef.Name] = argDef.DefaultValue
			} else if schema.IsNonNull(argDef.Type) {
				s.addError(fmt.Sprintf("argument '%s' of required type was not provided", argDef.Name), path)
			}
		}
	}
	return coerced
}

// valueFromAST converts an AST value to a Go value, substituting variables.
func (s *evalState) valueFromAST(value *language.Value) any {
	if value == nil {
		return nil
	}
	if value.Kind == language.Variable {
		return s.variables[value.Raw]
	}
	return astValueToGo(value)
}

func astValueToGo(value *language.Value) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case language.IntValue:
		iv, _ := strconv.Atoi(value.Raw)
		return iv
	case language.FloatValue:
		fv, _ := strconv.ParseFloat(value.Raw, 64)
		return fv
	case language.StringValue, language.BlockValue:
		return value.Raw
	case language.BooleanValue:
		return value.Raw == "true"
	case language.NullValue:
		return nil
	case language.ListValue:
		out := make([]any, len(value.Children))
		for i, c := range value.Children {
			out[i] = astValueToGo(c.Value)
		}
		return out
	case language.ObjectValue:
		m := make(map[string]any)
		for _, f := range value.Children {
			m[f.Name] = astValueToGo(f.Value)
		}
		return m
	default:
		return nil
	}
}

// coerceValue coerces a runtime value to a schema input type.
func coerceValue(sch *schema.Schema, value any, targetType *schema.TypeRef) (any, error) {
	if schema.IsNonNull(targetType) {
		if value == nil {
			return nil, fmt.Errorf("cannot provide null for non-null type")
		}
		return coerceValue(sch, value, schema.Unwrap(targetType))
	}
	if value == nil {
		return nil, nil
	}
	if schema.IsList(targetType) {
		inner := schema.Unwrap(targetType)
		slice, ok := value.([]any)
		if !ok {
			// A single value coerces to a one-element list.
			item, err := coerceValue(sch, value, inner)
			if err != nil {
				return nil, err
			}
			return []any{item}, nil
		}
		out := make([]any, len(slice))
		for i, item := range slice {
			cv, err := coerceValue(sch, item, inner)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	}

	named := schema.NamedOf(targetType)
	switch named {
	case "Int":
		return coerceToInt(value)
	case "Float":
		return coerceToFloat(value)
	case "String", "ID":
		return coerceToString(value)
	case "Boolean":
		return coerceToBoolean(value)
	}

	if t := sch.Types[named]; t != nil && t.Kind == schema.TypeKindInputObject {
		return coerceInputObject(sch, value, t)
	}
	return value, nil
}

// coerceInputObject coerces each provided field of an input object.
// Fields the caller omitted stay omitted: a sparse update input keeps
// only what was actually supplied.
func coerceInputObject(sch *schema.Schema, value any, t *schema.Type) (any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("cannot coerce %T to input object %s", value, t.Name)
	}
	out := make(map[string]any, len(m))
	for _, f := range t.InputFields {
		v, present := m[f.Name]
		if !present {
			if f.DefaultValue != nil {
				out[f.Name] = f.DefaultValue
			} else if schema.IsNonNull(f.Type) {
				return nil, fmt.Errorf("input field '%s.%s' of required type was not provided", t.Name, f.Name)
			}
			continue
		}
		cv, err := coerceValue(sch, v, f.Type)
		if err != nil {
			return nil, fmt.Errorf("input field '%s.%s': %v", t.Name, f.Name, err)
		}
		out[f.Name] = cv
	}
	for name := range m {
		known := false
		for _, f := range t.InputFields {
			if f.Name == name {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown input field '%s.%s'", t.Name, name)
		}
	}
	return out, nil
}

func coerceToInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return nil, fmt.Errorf("cannot coerce %v to int", v)
		}
		return int(v), nil
	case string:
		if iv, err := strconv.Atoi(v); err == nil {
			return iv, nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to int", value, value)
}

func coerceToFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		if fv, err := strconv.ParseFloat(v, 64); err == nil {
			return fv, nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to float", value, value)
}

func coerceToString(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to string", value, value)
}

func coerceToBoolean(value any) (any, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to boolean", value, value)
}

func typeRefFromAST(t *language.Type) *schema.TypeRef {
	if t == nil {
		return nil
	}
	if t.NonNull {
		return schema.NonNullType(typeRefFromAST(&language.Type{NamedType: t.NamedType, Elem: t.Elem}))
	}
	if t.NamedType != "" {
		return schema.NamedType(t.NamedType)
	}
	if t.Elem != nil {
		return schema.ListType(typeRefFromAST(t.Elem))
	}
	return nil
}
