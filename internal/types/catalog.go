package types

// Specialist is a local service provider that can be recommended to a user.
type Specialist struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Expertise string   `json:"expertise"` // free-text tag, matched with exact equality
	Region    string   `json:"region"`
	Phone     string   `json:"phone,omitempty"`
	Rating    float64  `json:"rating"`
	Image     string   `json:"image"`
	Location  GeoPoint `json:"location"`

	// DistanceKm is only set on a specialist resolved against a user location.
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// Product is a catalog item sold through the cart. Price is in whole Toman.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Category    string `json:"category"`
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// CreateSpecialistRequest is the admin form for a new specialist.
type CreateSpecialistRequest struct {
	Name      string    `json:"name" validate:"required"`
	Expertise string    `json:"expertise" validate:"required"`
	Region    string    `json:"region" validate:"required"`
	Phone     string    `json:"phone" validate:"required"`
	Location  *GeoPoint `json:"location,omitempty"`
}

// CreateProductRequest is the admin form for a new product.
type CreateProductRequest struct {
	Name        string `json:"name" validate:"required"`
	Price       int64  `json:"price" validate:"gte=0"`
	Description string `json:"description"`
	Category    string `json:"category" validate:"required"`
	Image       string `json:"image,omitempty"`
}

// CreateUserRequest is the admin form for a new user.
type CreateUserRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required,min=11"`
}

// DashboardStats summarizes the catalog for the admin dashboard.
type DashboardStats struct {
	Specialists     int            `json:"specialists"`
	Products        int            `json:"products"`
	Users           int            `json:"users"`
	ActiveUsers     int            `json:"active_users"`
	ExpertiseCounts map[string]int `json:"expertise_counts"`
	AverageRating   float64        `json:"average_rating"`
}
