package types

import "github.com/golang-jwt/jwt/v5"

const (
	RoleCustomer = "user"
	RoleAdmin    = "admin"
)

// RequestOTPRequest starts the phone login.
type RequestOTPRequest struct {
	Phone string `json:"phone" validate:"required,min=11"`
}

// VerifyOTPRequest completes the phone login.
type VerifyOTPRequest struct {
	Phone string `json:"phone" validate:"required,min=11"`
	Code  string `json:"code" validate:"required"`
	Admin bool   `json:"admin"`
}

// LoginResponse is returned after a successful OTP verification.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	Message     string `json:"message"`
}

// Claims represents the custom claims included in the JWT access token.
type Claims struct {
	UserID string `json:"uid"` // phone number of the logged-in user
	Role   string `json:"rol"`
	jwt.RegisteredClaims
}
