package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalograph/catalograph/internal/schema"
)

func TestSchemaShape(t *testing.T) {
	s := Schema()

	require.NotNil(t, s.GetQueryType())
	require.NotNil(t, s.GetMutationType())

	for _, name := range []string{"Product", "Review", "Inventory", "ProductInput"} {
		assert.Contains(t, s.Types, name)
	}
}

// Fields needing backend I/O are async; attribute fields are not. The
// executor relies on these flags to queue only what a query requests.
func TestSchemaAsyncFlags(t *testing.T) {
	s := Schema()

	async := [][2]string{
		{"Query", "product"},
		{"Query", "products"},
		{"Mutation", "updateProduct"},
		{"Product", "reviews"},
		{"Product", "inventory"},
	}
	for _, fa := range async {
		f := s.Types[fa[0]].Field(fa[1])
		require.NotNil(t, f, "%s.%s", fa[0], fa[1])
		assert.True(t, f.Async, "%s.%s must be async", fa[0], fa[1])
	}

	sync := [][2]string{
		{"Product", "productId"},
		{"Product", "price"},
		{"Review", "rating"},
		{"Inventory", "location"},
	}
	for _, fa := range sync {
		f := s.Types[fa[0]].Field(fa[1])
		require.NotNil(t, f, "%s.%s", fa[0], fa[1])
		assert.False(t, f.Async, "%s.%s must be sync", fa[0], fa[1])
	}
}

func TestSchemaNullability(t *testing.T) {
	s := Schema()

	product := s.Types["Product"]
	assert.True(t, schema.IsNonNull(product.Field("productId").Type))
	assert.False(t, schema.IsNonNull(product.Field("name").Type))
	assert.False(t, schema.IsNonNull(product.Field("inventory").Type))

	// reviews is nullable on both levels so a fetch fault or a bad record
	// never nulls anything beyond the field or the slot it belongs to.
	reviews := product.Field("reviews").Type
	assert.False(t, schema.IsNonNull(reviews))
	assert.True(t, schema.IsList(reviews))
	assert.False(t, schema.IsNonNull(schema.Unwrap(reviews)))

	assert.False(t, schema.IsNonNull(s.Types["Query"].Field("product").Type))
	products := s.Types["Query"].Field("products").Type
	assert.True(t, schema.IsNonNull(products))
	assert.False(t, schema.IsNonNull(schema.Unwrap(schema.Unwrap(products))))
}
