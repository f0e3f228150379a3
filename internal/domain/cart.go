package domain

// CartItem is one line in a cart, referencing a product by its
// (name, brand, material) triple. A cart holds at most one item per triple;
// repeated adds accumulate into Quantity.
type CartItem struct {
	Name     string `json:"name"`
	Brand    string `json:"brand"`
	Material string `json:"material"`
	Quantity int    `json:"quantity"`
}

// Key returns the product triple the item references.
func (i CartItem) Key() ProductKey {
	return ProductKey{Name: i.Name, Brand: i.Brand, Material: i.Material}
}

// Cart is the item list for one owner. The owner id is either an
// authenticated user id or a caller-supplied guest id. Carts are created
// lazily on first add and removed entirely when the last item goes away or
// an order is placed.
type Cart struct {
	OwnerID string     `json:"ownerId"`
	Items   []CartItem `json:"items"`
}
