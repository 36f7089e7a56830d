package types

// CartItem is a product line in a user's cart.
type CartItem struct {
	Product
	Quantity int `json:"quantity"`
}

// Cart is the computed view of a user's cart. Total is in whole Toman.
type Cart struct {
	Items      []CartItem `json:"items"`
	TotalItems int        `json:"total_items"`
	Total      int64      `json:"total"`
}

type AddCartItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
}

type UpdateCartItemRequest struct {
	Delta int `json:"delta" validate:"required"`
}
