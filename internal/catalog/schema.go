package catalog

import (
	"github.com/catalograph/catalograph/internal/schema"
)

// Schema builds the GraphQL schema for the catalog API. Fields that need
// backend I/O (the roots and the Product relationships) are marked Async so
// the executor queues them; plain entity attributes resolve synchronously
// from the mapped value.
func Schema() *schema.Schema {
	product := &schema.Type{
		Name: "Product",
		Kind: schema.TypeKindObject,
		Fields: []*schema.Field{
			{Name: "productId", Type: schema.NonNullType(schema.NamedType("String"))},
			{Name: "name", Type: schema.NamedType("String")},
			{Name: "price", Type: schema.NamedType("Float")},
			{Name: "description", Type: schema.NamedType("String")},
			// Nullable on both levels: a backend fault nulls only this field,
			// and a malformed review record nulls only its slot. Sibling
			// fields like inventory keep their values either way.
			{Name: "reviews", Type: schema.ListType(schema.NamedType("Review")), Async: true},
			{Name: "inventory", Type: schema.NamedType("Inventory"), Async: true},
		},
	}

	review := &schema.Type{
		Name: "Review",
		Kind: schema.TypeKindObject,
		Fields: []*schema.Field{
			{Name: "productId", Type: schema.NonNullType(schema.NamedType("String"))},
			{Name: "reviewId", Type: schema.NonNullType(schema.NamedType("String"))},
			{Name: "rating", Type: schema.NonNullType(schema.NamedType("Int"))},
			{Name: "comment", Type: schema.NonNullType(schema.NamedType("String"))},
		},
	}

	inventory := &schema.Type{
		Name: "Inventory",
		Kind: schema.TypeKindObject,
		Fields: []*schema.Field{
			{Name: "productId", Type: schema.NonNullType(schema.NamedType("String"))},
			{Name: "quantityAvailable", Type: schema.NonNullType(schema.NamedType("Int"))},
			{Name: "location", Type: schema.NonNullType(schema.NamedType("String"))},
		},
	}

	productInput := &schema.Type{
		Name: "ProductInput",
		Kind: schema.TypeKindInputObject,
		InputFields: []*schema.InputValue{
			{Name: "name", Type: schema.NamedType("String")},
			{Name: "price", Type: schema.NamedType("Float")},
			{Name: "description", Type: schema.NamedType("String")},
		},
	}

	query := &schema.Type{
		Name: "Query",
		Kind: schema.TypeKindObject,
		Fields: []*schema.Field{
			{
				Name:      "product",
				Type:      schema.NamedType("Product"),
				Arguments: []*schema.InputValue{{Name: "productId", Type: schema.NonNullType(schema.NamedType("String"))}},
				Async:     true,
			},
			{
				// Elements are nullable so one malformed record costs its
				// own slot, not the whole listing.
				Name:  "products",
				Type:  schema.NonNullType(schema.ListType(schema.NamedType("Product"))),
				Async: true,
			},
		},
	}

	mutation := &schema.Type{
		Name: "Mutation",
		Kind: schema.TypeKindObject,
		Fields: []*schema.Field{
			{
				Name: "updateProduct",
				Type: schema.NamedType("Product"),
				Arguments: []*schema.InputValue{
					{Name: "productId", Type: schema.NonNullType(schema.NamedType("String"))},
					{Name: "input", Type: schema.NonNullType(schema.NamedType("ProductInput"))},
				},
				Async: true,
			},
		},
	}

	types := map[string]*schema.Type{
		"Query":        query,
		"Mutation":     mutation,
		"Product":      product,
		"Review":       review,
		"Inventory":    inventory,
		"ProductInput": productInput,
		"String":       {Name: "String", Kind: schema.TypeKindScalar},
		"Int":          {Name: "Int", Kind: schema.TypeKindScalar},
		"Float":        {Name: "Float", Kind: schema.TypeKindScalar},
		"Boolean":      {Name: "Boolean", Kind: schema.TypeKindScalar},
		"ID":           {Name: "ID", Kind: schema.TypeKindScalar},
	}

	return &schema.Schema{QueryType: "Query", MutationType: "Mutation", Types: types}
}
