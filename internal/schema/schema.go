// Package schema holds the in-memory GraphQL schema model the executor
// evaluates against. Schemas are constructed in Go code rather than parsed
// from SDL; the catalog package owns the concrete type definitions.
package schema

// Schema is a complete GraphQL schema keyed by type name.
type Schema struct {
	QueryType    string
	MutationType string
	Types        map[string]*Type
}

// GetQueryType returns the root query type (nil if absent).
func (s *Schema) GetQueryType() *Type { return s.Types[s.QueryType] }

// GetMutationType returns the root mutation type (nil if absent).
func (s *Schema) GetMutationType() *Type { return s.Types[s.MutationType] }

// Type is a named GraphQL type.
type Type struct {
	Name        string
	Kind        TypeKind
	Fields      []*Field      // OBJECT only
	InputFields []*InputValue // INPUT_OBJECT only
}

// Field returns the field definition with the given name, or nil.
func (t *Type) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Field is a field on an object type. Async marks fields whose resolution
// requires backend I/O; the executor queues them instead of resolving inline.
type Field struct {
	Name      string
	Type      *TypeRef
	Arguments []*InputValue
	Async     bool
}

type TypeKind string

const (
	TypeKindScalar      TypeKind = "SCALAR"
	TypeKindObject      TypeKind = "OBJECT"
	TypeKindInputObject TypeKind = "INPUT_OBJECT"
)

// InputValue is an argument definition or an input object field.
type InputValue struct {
	Name         string
	Type         *TypeRef
	DefaultValue any
}

// TypeRef references a type, possibly wrapped in List or Non-Null.
type TypeRef struct {
	Kind   TypeRefKind
	OfType *TypeRef // LIST and NON_NULL
	Named  string   // NAMED
}

type TypeRefKind string

const (
	TypeRefKindNamed   TypeRefKind = "NAMED"
	TypeRefKindList    TypeRefKind = "LIST"
	TypeRefKindNonNull TypeRefKind = "NON_NULL"
)

func NamedType(name string) *TypeRef  { return &TypeRef{Kind: TypeRefKindNamed, Named: name} }
func ListType(t *TypeRef) *TypeRef    { return &TypeRef{Kind: TypeRefKindList, OfType: t} }
func NonNullType(t *TypeRef) *TypeRef { return &TypeRef{Kind: TypeRefKindNonNull, OfType: t} }

// IsNonNull reports whether the reference is wrapped in Non-Null.
func IsNonNull(t *TypeRef) bool { return t != nil && t.Kind == TypeRefKindNonNull }

// IsList reports whether the reference is a list, looking through one
// Non-Null wrapper.
func IsList(t *TypeRef) bool {
	if t == nil {
		return false
	}
	if t.Kind == TypeRefKindList {
		return true
	}
	return t.Kind == TypeRefKindNonNull && t.OfType != nil && t.OfType.Kind == TypeRefKindList
}

// Unwrap removes one layer of List or Non-Null wrapping.
func Unwrap(t *TypeRef) *TypeRef {
	if t.Kind == TypeRefKindNonNull || t.Kind == TypeRefKindList {
		return t.OfType
	}
	return t
}

// NamedOf returns the innermost named type of the reference.
func NamedOf(t *TypeRef) string {
	for cur := t; cur != nil; cur = cur.OfType {
		if cur.Named != "" {
			return cur.Named
		}
	}
	return ""
}
