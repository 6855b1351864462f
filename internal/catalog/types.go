// Package catalog defines the product catalog entities, the pure mappers
// from stored attributes to entities, and the GraphQL schema exposing them.
package catalog

// Product is the root catalog entity. Only ProductID is required in
// storage; the remaining attributes are optional and nil when absent.
type Product struct {
	ProductID   string
	Name        *string
	Price       *float64
	Description *string
}

// Review belongs to a product under the composite key
// (product_id, review_id).
type Review struct {
	ProductID string
	ReviewID  string
	Rating    int
	Comment   string
}

// Inventory is the optional one-to-one stock record for a product.
type Inventory struct {
	ProductID         string
	QuantityAvailable int
	Location          string
}
