package executor_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	executor "github.com/catalograph/catalograph/internal/executor"
	language "github.com/catalograph/catalograph/internal/language"
	schema "github.com/catalograph/catalograph/internal/schema"
)

// testSchema is a small world of characters and planets. The roots and the
// relationship fields are async; entity attributes are sync.
func testSchema() *schema.Schema {
	character := &schema.Type{
		Name: "Character",
		Kind: schema.TypeKindObject,
		Fields: []*schema.Field{
			{Name: "id", Type: schema.NonNullType(schema.NamedType("String"))},
			{Name: "name", Type: schema.NamedType("String")},
			{Name: "friends", Type: schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("Character")))), Async: true},
			{Name: "home", Type: schema.NamedType("Planet"), Async: true},
		},
	}
	planet := &schema.Type{
		Name: "Planet",
		Kind: schema.TypeKindObject,
		Fields: []*schema.Field{
			{Name: "name", Type: schema.NonNullType(schema.NamedType("String"))},
			{Name: "weather", Type: schema.NamedType("String"), Async: true},
		},
	}
	query := &schema.Type{
		Name: "Query",
		Kind: schema.TypeKindObject,
		Fields: []*schema.Field{
			{
				Name:      "hero",
				Type:      schema.NamedType("Character"),
				Arguments: []*schema.InputValue{{Name: "id", Type: schema.NonNullType(schema.NamedType("String"))}},
				Async:     true,
			},
			{Name: "heroes", Type: schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("Character")))), Async: true},
			{Name: "roster", Type: schema.ListType(schema.NamedType("Character")), Async: true},
			{Name: "version", Type: schema.NonNullType(schema.NamedType("String"))},
		},
	}
	mutation := &schema.Type{
		Name: "Mutation",
		Kind: schema.TypeKindObject,
		Fields: []*schema.Field{
			{
				Name: "rename",
				Type: schema.NamedType("Character"),
				Arguments: []*schema.InputValue{
					{Name: "id", Type: schema.NonNullType(schema.NamedType("String"))},
					{Name: "name", Type: schema.NonNullType(schema.NamedType("String"))},
				},
				Async: true,
			},
		},
	}
	return &schema.Schema{
		QueryType:    "Query",
		MutationType: "Mutation",
		Types: map[string]*schema.Type{
			"Query":     query,
			"Mutation":  mutation,
			"Character": character,
			"Planet":    planet,
			"String":    {Name: "String", Kind: schema.TypeKindScalar},
			"Int":       {Name: "Int", Kind: schema.TypeKindScalar},
			"Boolean":   {Name: "Boolean", Kind: schema.TypeKindScalar},
		},
	}
}

// sourceField reads a field straight off a map source.
func sourceField(field string) executor.MockResolver {
	return func(_ context.Context, source any, _ map[string]any) (any, error) {
		m, _ := source.(map[string]any)
		return m[field], nil
	}
}

func char(id, name string) map[string]any {
	return map[string]any{"id": id, "name": name}
}

// newTestRuntime wires sync attribute resolvers for every entity type.
func newTestRuntime() *executor.MockRuntime {
	return executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.version":  executor.NewMockValueResolver("v1"),
		"Character.id":   sourceField("id"),
		"Character.name": sourceField("name"),
		"Planet.name":    sourceField("name"),
	})
}

func execute(t *testing.T, rt executor.Runtime, query string, vars map[string]any) *executor.ExecutionResult {
	t.Helper()
	doc, err := language.ParseQuery(query)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return executor.New(rt, testSchema()).ExecuteRequest(context.Background(), doc, "", vars)
}

func wantData(t *testing.T, res *executor.ExecutionResult, want any) {
	t.Helper()
	if len(res.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestSyncRootField(t *testing.T) {
	rt := newTestRuntime()
	res := execute(t, rt, `{ version }`, nil)
	wantData(t, res, map[string]any{"version": "v1"})

	calls := rt.Calls()
	if len(calls) != 1 || calls[0].Kind != "sync" || calls[0].Field != "version" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
}

func TestAsyncFieldsFlushPerDepth(t *testing.T) {
	rt := newTestRuntime()
	rt.SetResolver("Query", "hero", executor.NewMockValueResolver(char("c1", "Luke")))
	rt.SetResolver("Character", "home", executor.NewMockValueResolver(map[string]any{"name": "Tatooine"}))

	res := execute(t, rt, `{ hero(id: "c1") { id name home { name } } }`, nil)
	wantData(t, res, map[string]any{
		"hero": map[string]any{
			"id":   "c1",
			"name": "Luke",
			"home": map[string]any{"name": "Tatooine"},
		},
	})

	var hero, home executor.Call
	for _, c := range rt.Calls() {
		switch c.Field {
		case "hero":
			hero = c
		case "home":
			home = c
		}
	}
	if hero.Kind != "async" || home.Kind != "async" {
		t.Fatalf("expected async resolution, got hero=%+v home=%+v", hero, home)
	}
	if home.BatchID <= hero.BatchID {
		t.Fatalf("home must flush after hero: hero batch %d, home batch %d", hero.BatchID, home.BatchID)
	}
	if got := hero.Args["id"]; got != "c1" {
		t.Fatalf("hero args = %v", hero.Args)
	}
}

func TestSiblingAsyncFieldsShareBatch(t *testing.T) {
	rt := newTestRuntime()
	rt.SetResolver("Query", "heroes", executor.NewMockValueResolver([]any{char("c1", "Luke"), char("c2", "Leia")}))
	rt.SetResolver("Character", "friends", func(_ context.Context, source any, _ map[string]any) (any, error) {
		m := source.(map[string]any)
		if m["id"] == "c1" {
			return []any{char("c2", "Leia")}, nil
		}
		return []any{}, nil
	})

	res := execute(t, rt, `{ heroes { id friends { id } } }`, nil)
	wantData(t, res, map[string]any{
		"heroes": []any{
			map[string]any{"id": "c1", "friends": []any{map[string]any{"id": "c2"}}},
			map[string]any{"id": "c2", "friends": []any{}},
		},
	})

	var friendBatches []int
	for _, c := range rt.Calls() {
		if c.Field == "friends" {
			friendBatches = append(friendBatches, c.BatchID)
		}
	}
	if len(friendBatches) != 2 || friendBatches[0] != friendBatches[1] {
		t.Fatalf("sibling friends fields must share one flush, got batches %v", friendBatches)
	}
}

func TestOnlyRequestedFieldsResolve(t *testing.T) {
	rt := newTestRuntime()
	rt.SetResolver("Query", "hero", executor.NewMockValueResolver(char("c1", "Luke")))
	rt.SetResolver("Character", "friends", executor.NewMockValueResolver([]any{}))
	rt.SetResolver("Character", "home", executor.NewMockValueResolver(map[string]any{"name": "Tatooine"}))

	res := execute(t, rt, `{ hero(id: "c1") { id } }`, nil)
	wantData(t, res, map[string]any{"hero": map[string]any{"id": "c1"}})

	for _, c := range rt.Calls() {
		switch c.Field {
		case "friends", "home", "name":
			t.Fatalf("field %s.%s resolved without being requested", c.ObjectType, c.Field)
		}
	}
}

func TestAliases(t *testing.T) {
	rt := newTestRuntime()
	rt.SetResolver("Query", "hero", func(_ context.Context, _ any, args map[string]any) (any, error) {
		id := args["id"].(string)
		return char(id, "hero "+id), nil
	})

	res := execute(t, rt, `{ a: hero(id: "c1") { id } b: hero(id: "c2") { id } }`, nil)
	wantData(t, res, map[string]any{
		"a": map[string]any{"id": "c1"},
		"b": map[string]any{"id": "c2"},
	})
}

func TestFieldMerging(t *testing.T) {
	rt := newTestRuntime()
	rt.SetResolver("Query", "hero", executor.NewMockValueResolver(char("c1", "Luke")))

	res := execute(t, rt, `{ hero(id: "c1") { id } hero(id: "c1") { name } }`, nil)
	wantData(t, res, map[string]any{"hero": map[string]any{"id": "c1", "name": "Luke"}})

	heroCalls := 0
	for _, c := range rt.Calls() {
		if c.Field == "hero" {
			heroCalls++
		}
	}
	if heroCalls != 1 {
		t.Fatalf("merged occurrences of one response name must resolve once, got %d calls", heroCalls)
	}
}

func TestFragments(t *testing.T) {
	rt := newTestRuntime()
	rt.SetResolver("Query", "hero", executor.NewMockValueResolver(char("c1", "Luke")))

	res := execute(t, rt, `
		query {
			hero(id: "c1") {
				...ident
				... on Character { name }
				... on Planet { name }
			}
		}
		fragment ident on Character { id }
	`, nil)
	wantData(t, res, map[string]any{"hero": map[string]any{"id": "c1", "name": "Luke"}})
}

func TestSkipAndInclude(t *testing.T) {
	rt := newTestRuntime()
	rt.SetResolver("Query", "hero", executor.NewMockValueResolver(char("c1", "Luke")))

	res := execute(t, rt, `
		query ($yes: Boolean!, $no: Boolean!) {
			hero(id: "c1") {
				id
				name @skip(if: $yes)
				skipped: name @include(if: $no)
			}
		}
	`, map[string]any{"yes": true, "no": false})
	wantData(t, res, map[string]any{"hero": map[string]any{"id": "c1"}})
}

func TestVariables(t *testing.T) {
	rt := newTestRuntime()
	rt.SetResolver("Query", "hero", func(_ context.Context, _ any, args map[string]any) (any, error) {
		return char(args["id"].(string), ""), nil
	})

	res := execute(t, rt, `query ($id: String!) { hero(id: $id) { id } }`, map[string]any{"id": "c9"})
	wantData(t, res, map[string]any{"hero": map[string]any{"id": "c9"}})
}

func TestMissingRequiredVariable(t *testing.T) {
	rt := newTestRuntime()
	res := execute(t, rt, `query ($id: String!) { hero(id: $id) { id } }`, nil)
	if res.Data != nil {
		t.Fatalf("expected nil data, got %v", res.Data)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0].Message, "was not provided") {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
}

func TestNullableAsyncFieldError(t *testing.T) {
	rt := newTestRuntime()
	rt.SetResolver("Query", "hero", executor.NewMockValueResolver(char("c1", "Luke")))
	rt.SetResolver("Character", "home", executor.NewMockErrorResolver(errors.New("planet service down")))

	res := execute(t, rt, `{ hero(id: "c1") { id home { name } } }`, nil)

	want := map[string]any{"hero": map[string]any{"id": "c1", "home": nil}}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	wantErrs := []executor.GraphQLError{
		{Message: "planet service down", Path: executor.Path{"hero", "home"}},
	}
	if diff := cmp.Diff(wantErrs, res.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestNonNullErrorPropagatesAndTombstones(t *testing.T) {
	rt := newTestRuntime()
	rt.SetResolver("Query", "hero", executor.NewMockValueResolver(char("c1", "Luke")))
	rt.SetResolver("Character", "friends", executor.NewMockErrorResolver(errors.New("friend store down")))
	rt.SetResolver("Character", "home", executor.NewMockValueResolver(map[string]any{"name": "Tatooine"}))
	rt.SetResolver("Planet", "weather", executor.NewMockValueResolver("dusty"))

	res := execute(t, rt, `{ hero(id: "c1") { friends { id } home { weather } } }`, nil)

	// friends is Non-Null, so the failure nulls the whole hero subtree.
	want := map[string]any{"hero": nil}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	wantErrs := []executor.GraphQLError{
		{Message: "friend store down", Path: executor.Path{"hero", "friends"}},
	}
	if diff := cmp.Diff(wantErrs, res.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}

	// Work queued underneath the nulled subtree must not run.
	for _, c := range rt.Calls() {
		if c.ObjectType == "Planet" && c.Field == "weather" {
			t.Fatal("Planet.weather resolved under a nulled subtree")
		}
	}
}

func TestNonNullListItemNullsList(t *testing.T) {
	rt := newTestRuntime()
	rt.SetResolver("Query", "heroes", executor.NewMockValueResolver([]any{
		char("c1", "Luke"),
		map[string]any{"name": "nobody"}, // missing non-null id
	}))

	res := execute(t, rt, `{ heroes { id } }`, nil)

	want := map[string]any{"heroes": nil}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0].Message, "non-nullable") {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	wantPath := executor.Path{"heroes", 1, "id"}
	if diff := cmp.Diff(wantPath, res.Errors[0].Path); diff != "" {
		t.Fatalf("error path mismatch (-want +got):\n%s", diff)
	}
}

func TestListElementErrorCostsOnlyItsSlot(t *testing.T) {
	rt := newTestRuntime()
	rt.SetResolver("Query", "roster", executor.NewMockValueResolver([]any{
		char("c1", "Luke"),
		errors.New("record c2 unreadable"),
		char("c3", "Han"),
	}))

	res := execute(t, rt, `{ roster { id } }`, nil)

	want := map[string]any{"roster": []any{
		map[string]any{"id": "c1"},
		nil,
		map[string]any{"id": "c3"},
	}}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	wantErrs := []executor.GraphQLError{
		{Message: "record c2 unreadable", Path: executor.Path{"roster", 1}},
	}
	if diff := cmp.Diff(wantErrs, res.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestListElementErrorWithNonNullElementsNullsList(t *testing.T) {
	rt := newTestRuntime()
	rt.SetResolver("Query", "heroes", executor.NewMockValueResolver([]any{
		char("c1", "Luke"),
		errors.New("record c2 unreadable"),
	}))

	res := execute(t, rt, `{ heroes { id } }`, nil)

	want := map[string]any{"heroes": nil}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	wantErrs := []executor.GraphQLError{
		{Message: "record c2 unreadable", Path: executor.Path{"heroes", 1}},
	}
	if diff := cmp.Diff(wantErrs, res.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestTypename(t *testing.T) {
	rt := newTestRuntime()
	rt.SetResolver("Query", "hero", executor.NewMockValueResolver(char("c1", "Luke")))

	res := execute(t, rt, `{ __typename hero(id: "c1") { __typename id } }`, nil)
	wantData(t, res, map[string]any{
		"__typename": "Query",
		"hero":       map[string]any{"__typename": "Character", "id": "c1"},
	})
}

func TestUnknownFieldIsLocalizedError(t *testing.T) {
	rt := newTestRuntime()
	res := execute(t, rt, `{ version nope }`, nil)

	want := map[string]any{"version": "v1"}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0].Message, "Cannot query field 'nope'") {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
}

func TestOperationSelection(t *testing.T) {
	rt := newTestRuntime()
	doc, err := language.ParseQuery(`
		query A { version }
		query B { hero(id: "c1") { id } }
	`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	exec := executor.New(rt, testSchema())

	res := exec.ExecuteRequest(context.Background(), doc, "A", nil)
	if diff := cmp.Diff(map[string]any{"version": "v1"}, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}

	res = exec.ExecuteRequest(context.Background(), doc, "", nil)
	if len(res.Errors) != 1 || res.Errors[0].Message != "operation not found" {
		t.Fatalf("unnamed request over two operations must fail, got %v", res.Errors)
	}
}

func TestMutation(t *testing.T) {
	rt := newTestRuntime()
	rt.SetResolver("Mutation", "rename", func(_ context.Context, _ any, args map[string]any) (any, error) {
		return char(args["id"].(string), args["name"].(string)), nil
	})

	res := execute(t, rt, `mutation { rename(id: "c1", name: "Anakin") { id name } }`, nil)
	wantData(t, res, map[string]any{"rename": map[string]any{"id": "c1", "name": "Anakin"}})
}

func TestMissingRequiredArgument(t *testing.T) {
	rt := newTestRuntime()
	rt.SetResolver("Query", "hero", func(_ context.Context, _ any, args map[string]any) (any, error) {
		if _, ok := args["id"]; !ok {
			return nil, errors.New("no id")
		}
		return char("c1", ""), nil
	})

	res := execute(t, rt, `{ hero { id } }`, nil)
	if len(res.Errors) == 0 {
		t.Fatal("expected an error for the missing required argument")
	}
	found := false
	for _, e := range res.Errors {
		if strings.Contains(e.Message, "required type was not provided") {
			found = true
		}
	}
	if !found {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
}
