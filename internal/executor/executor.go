package executor

import (
	"context"
	"fmt"
	"reflect"

	language "github.com/catalograph/catalograph/internal/language"
	schema "github.com/catalograph/catalograph/internal/schema"
)

// Executor runs GraphQL operations against a fixed schema and runtime.
type Executor struct {
	runtime Runtime
	schema  *schema.Schema
}

func New(runtime Runtime, schema *schema.Schema) *Executor {
	return &Executor{runtime: runtime, schema: schema}
}

// evalState is the per-operation execution state.
type evalState struct {
	runtime   Runtime
	schema    *schema.Schema
	document  *language.QueryDocument
	variables map[string]any
	ctx       context.Context
	errors    []GraphQLError
	// pending holds async tasks queued at the current depth.
	pending []pendingField
	// nullified holds stringified path prefixes tombstoned by Non-Null
	// propagation; queued work underneath them is dropped.
	nullified map[string]struct{}
}

// pendingField is an async field waiting for the next flush.
type pendingField struct {
	task      AsyncTask
	path      Path
	fieldType *schema.TypeRef
	fields    []*language.Field
}

// asyncPlaceholder marks a response slot whose value arrives on flush.
type asyncPlaceholder struct{}

// ExecuteRequest executes one operation from document and returns the
// response tree. The tree always mirrors the requested shape; failures are
// localized to the smallest failing subtree.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variables map[string]any,
) *ExecutionResult {
	op := selectOperation(document, operationName)
	if op == nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: "operation not found"}}}
	}

	coerced, err := coerceVariableValues(e.schema, op, variables)
	if err != nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: err.Error()}}}
	}

	var rootType *schema.Type
	switch op.Operation {
	case language.Query:
		rootType = e.schema.GetQueryType()
	case language.Mutation:
		rootType = e.schema.GetMutationType()
	default:
		return &ExecutionResult{Errors: []GraphQLError{{Message: fmt.Sprintf("unsupported operation type: %s", op.Operation)}}}
	}
	if rootType == nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: fmt.Sprintf("schema has no %s type", op.Operation)}}}
	}

	state := &evalState{
		runtime:   e.runtime,
		schema:    e.schema,
		document:  document,
		variables: coerced,
		ctx:       ctx,
		nullified: make(map[string]struct{}),
	}

	response := make(map[string]any)
	for k, v := range state.executeSelectionSet(rootType, op.SelectionSet, nil, Path{}) {
		response[k] = v
	}

	// Depth-wise loop: flush everything queued at this depth, complete the
	// results (which may queue deeper work), repeat until nothing is pending.
	for len(state.pending) > 0 {
		live, results := state.flushPending()
		for i, res := range results {
			state.completeAsyncField(live[i], res, response)
		}
	}

	return &ExecutionResult{Data: response, Errors: state.errors}
}

// executeSelectionSet resolves the requested fields of one object value.
// Sync fields produce values immediately; async fields leave a placeholder
// and queue a task.
func (s *evalState) executeSelectionSet(objectType *schema.Type, selections language.SelectionSet, objectValue any, path Path) map[string]any {
	result := make(map[string]any)
	for _, cf := range s.collectFields(objectType, selections) {
		fieldPath := appendPath(path, cf.ResponseName)
		value := s.executeField(objectType, objectValue, cf.Fields, fieldPath)

		if cf.Fields[0].Name == "__typename" {
			result[cf.ResponseName] = value
			continue
		}
		fieldDef := objectType.Field(cf.Fields[0].Name)
		if fieldDef == nil {
			// Unknown field: error already recorded, slot omitted.
			continue
		}
		if schema.IsNonNull(fieldDef.Type) && isNullish(value) {
			if len(path) > 0 {
				return nil
			}
			result[cf.ResponseName] = nil
			continue
		}
		if isNullish(value) {
			result[cf.ResponseName] = nil
		} else {
			result[cf.ResponseName] = value
		}
	}
	return result
}

func (s *evalState) executeField(objectType *schema.Type, objectValue any, fields []*language.Field, path Path) any {
	field := fields[0]
	if field.Name == "__typename" {
		return objectType.Name
	}

	fieldDef := objectType.Field(field.Name)
	if fieldDef == nil {
		s.addError(fmt.Sprintf("Cannot query field '%s' on type '%s'", field.Name, objectType.Name), path)
		return nil
	}

	args := s.coerceArgumentValues(fieldDef, field.Arguments, path)

	if !fieldDef.Async {
		value, err := s.runtime.ResolveSync(s.ctx, objectType.Name, field.Name, objectValue, args)
		if err != nil {
			s.addError(err.Error(), path)
			return nil
		}
		return s.completeValue(fieldDef.Type, fields, value, path)
	}

	s.pending = append(s.pending, pendingField{
		task:      AsyncTask{ObjectType: objectType.Name, Field: field.Name, Source: objectValue, Args: args},
		path:      path,
		fieldType: fieldDef.Type,
		fields:    fields,
	})
	return asyncPlaceholder{}
}

// flushPending drops tombstoned tasks, runs the rest through the runtime
// and returns them alongside their results.
func (s *evalState) flushPending() ([]pendingField, []AsyncResult) {
	live := make([]pendingField, 0, len(s.pending))
	for _, pf := range s.pending {
		if !s.underNullifiedPrefix(pf.path) {
			live = append(live, pf)
		}
	}
	s.pending = nil

	tasks := make([]AsyncTask, len(live))
	for i, pf := range live {
		tasks[i] = pf.task
	}
	return live, s.runtime.BatchResolveAsync(s.ctx, tasks)
}

// completeAsyncField writes one flushed result into the response tree,
// applying Non-Null propagation when the result is an error or null.
func (s *evalState) completeAsyncField(pf pendingField, res AsyncResult, response map[string]any) {
	if s.underNullifiedPrefix(pf.path) {
		return
	}

	if res.Error != nil {
		s.addError(res.Error.Error(), pf.path)
		if schema.IsNonNull(pf.fieldType) {
			s.nullifyToRootField(pf.path, response)
			return
		}
		writeAtPath(response, pf.path, nil)
		return
	}

	completed := s.completeValue(pf.fieldType, pf.fields, res.Value, pf.path)
	if schema.IsNonNull(pf.fieldType) && isNullish(completed) {
		s.nullifyToRootField(pf.path, response)
		return
	}
	if isNullish(completed) {
		writeAtPath(response, pf.path, nil)
	} else {
		writeAtPath(response, pf.path, completed)
	}
}

// nullifyToRootField nulls the top-level field owning path and tombstones
// everything underneath it.
func (s *evalState) nullifyToRootField(path Path, response map[string]any) {
	top := topLevelFieldPath(path)
	writeAtPath(response, top, nil)
	if key := pathToString(top); key != "" {
		s.nullified[key] = struct{}{}
	}
}

func (s *evalState) underNullifiedPrefix(path Path) bool {
	if len(s.nullified) == 0 {
		return false
	}
	cur := Path{}
	for _, elem := range path {
		cur = append(cur, elem)
		if _, ok := s.nullified[pathToString(cur)]; ok {
			return true
		}
	}
	return false
}

// completeValue coerces a resolved value into its response form, recursing
// through Non-Null and List wrappers down to scalars and objects.
func (s *evalState) completeValue(fieldType *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	if schema.IsNonNull(fieldType) {
		if isNullish(result) {
			if !s.hasErrorAt(path) {
				s.addError(fmt.Sprintf("Cannot return null for non-nullable field %s", pathToString(path)), path)
			}
			return nil
		}
		return s.completeValue(schema.Unwrap(fieldType), fields, result, path)
	}

	if isNullish(result) {
		return nil
	}

	if schema.IsList(fieldType) {
		return s.completeListValue(fieldType, fields, result, path)
	}

	namedType := schema.NamedOf(fieldType)
	typeObj := s.schema.Types[namedType]
	if typeObj == nil {
		s.addError(fmt.Sprintf("Unknown type: %s", namedType), path)
		return nil
	}

	switch typeObj.Kind {
	case schema.TypeKindScalar:
		serialized, err := s.runtime.SerializeLeaf(s.ctx, namedType, result)
		if err != nil {
			s.addError(err.Error(), path)
			return nil
		}
		return serialized
	case schema.TypeKindObject:
		var sub language.SelectionSet
		for _, f := range fields {
			sub = append(sub, f.SelectionSet...)
		}
		return s.executeSelectionSet(typeObj, sub, result, path)
	default:
		s.addError(fmt.Sprintf("Cannot complete value of type kind %s", typeObj.Kind), path)
		return nil
	}
}

func (s *evalState) completeListValue(listType *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	items, ok := result.([]any)
	if !ok {
		rv := reflect.ValueOf(result)
		if rv.Kind() != reflect.Slice {
			s.addError(fmt.Sprintf("Expected list value, got %T", result), path)
			return nil
		}
		items = make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
	}

	inner := schema.Unwrap(listType)
	completed := make([]any, len(items))
	for i, item := range items {
		elemPath := appendPath(path, i)
		// Runtimes report a failed element as an error value in its slot.
		if err, ok := item.(error); ok {
			s.addError(err.Error(), elemPath)
			if schema.IsNonNull(inner) {
				return nil
			}
			completed[i] = nil
			continue
		}
		v := s.completeValue(inner, fields, item, elemPath)
		if schema.IsNonNull(inner) && isNullish(v) {
			// Inner completion already recorded the error; null the list.
			return nil
		}
		completed[i] = v
	}
	return completed
}

func (s *evalState) addError(message string, path Path) {
	s.errors = append(s.errors, GraphQLError{Message: message, Path: path})
}

func (s *evalState) hasErrorAt(path Path) bool {
	for _, err := range s.errors {
		if reflect.DeepEqual(err.Path, path) {
			return true
		}
	}
	return false
}

// selectOperation picks the operation to run: by name, or the only one.
func selectOperation(document *language.QueryDocument, operationName string) *language.OperationDefinition {
	if operationName == "" && len(document.Operations) == 1 {
		return document.Operations[0]
	}
	for _, op := range document.Operations {
		if op.Name == operationName {
			return op
		}
	}
	return nil
}

func appendPath(path Path, elem PathElement) Path {
	out := make(Path, len(path)+1)
	copy(out, path)
	out[len(path)] = elem
	return out
}

func pathToString(path Path) string {
	out := ""
	for i, elem := range path {
		switch v := elem.(type) {
		case string:
			if i > 0 {
				out += "."
			}
			out += v
		case int:
			out += fmt.Sprintf("[%d]", v)
		}
	}
	return out
}

func topLevelFieldPath(path Path) Path {
	for _, elem := range path {
		if name, ok := elem.(string); ok {
			return Path{name}
		}
	}
	return Path{}
}

// writeAtPath writes value at path inside the response tree, creating
// intermediate maps and padding list slots as needed.
func writeAtPath(response map[string]any, path Path, value any) {
	if len(path) == 0 {
		return
	}
	if len(path) == 1 {
		if key, ok := path[0].(string); ok {
			response[key] = value
		}
		return
	}
	current := any(response)
	for _, elem := range path[:len(path)-1] {
		switch e := elem.(type) {
		case string:
			m, ok := current.(map[string]any)
			if !ok {
				return
			}
			next, exists := m[e]
			if !exists {
				next = make(map[string]any)
				m[e] = next
			}
			current = next
		case int:
			slice, ok := current.([]any)
			if !ok {
				return
			}
			for len(slice) <= e {
				slice = append(slice, nil)
			}
			if slice[e] == nil {
				slice[e] = make(map[string]any)
			}
			current = slice[e]
		}
	}
	switch last := path[len(path)-1].(type) {
	case string:
		if m, ok := current.(map[string]any); ok {
			m[last] = value
		}
	case int:
		if slice, ok := current.([]any); ok {
			for len(slice) <= last {
				slice = append(slice, nil)
			}
			slice[last] = value
		}
	}
}

// isNullish reports nil interfaces and typed nils.
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
