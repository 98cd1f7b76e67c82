package controller

import (
	"fmt"
	"math"
	"time"

	"github.com/cassiomorais/realestate/internal/domain/payment"
	"github.com/cassiomorais/realestate/internal/domain/property"
	"github.com/cassiomorais/realestate/internal/domain/user"
	"github.com/cassiomorais/realestate/internal/service"
)

// --- Request DTOs ---
// Money travels as a decimal amount (150000.50) and is converted to cents here.

type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=80"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CreatePropertyRequest struct {
	Title        string  `json:"title" validate:"required,max=200"`
	Description  string  `json:"description" validate:"required"`
	Price        float64 `json:"price" validate:"required,gt=0"`
	Address      string  `json:"address" validate:"required,max=300"`
	SquareMeters float64 `json:"square_meters" validate:"required,gt=0"`
	Bedrooms     int     `json:"bedrooms" validate:"gte=0"`
	Bathrooms    int     `json:"bathrooms" validate:"gte=0"`
	ParkingSpots int     `json:"parking_spots" validate:"gte=0"`
}

type UpdatePropertyRequest struct {
	Title       *string  `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string  `json:"description,omitempty"`
	Address     *string  `json:"address,omitempty" validate:"omitempty,max=300"`
	Price       *float64 `json:"price,omitempty" validate:"omitempty,gt=0"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type SetAdminRequest struct {
	IsAdmin *bool `json:"is_admin" validate:"required"`
}

// --- Response DTOs ---

type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type LoginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      *UserResponse `json:"user"`
}

type PropertyResponse struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Price        float64   `json:"price"`
	Address      string    `json:"address"`
	SquareMeters float64   `json:"square_meters"`
	Bedrooms     int       `json:"bedrooms"`
	Bathrooms    int       `json:"bathrooms"`
	ParkingSpots int       `json:"parking_spots"`
	Sold         bool      `json:"sold"`
	OwnerID      int64     `json:"owner_id"`
	PhotoURL     *string   `json:"photo_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type PaymentResponse struct {
	ID         int64     `json:"id"`
	Amount     float64   `json:"amount"`
	Status     string    `json:"status"`
	UserID     int64     `json:"user_id"`
	PropertyID int64     `json:"property_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type PurchaseResponse struct {
	JobID     string `json:"job_id"`
	PaymentID int64  `json:"payment_id"`
	StatusURL string `json:"status_url"`
}

type PhotoResponse struct {
	Key      string `json:"key"`
	PhotoURL string `json:"photo_url"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

func FromUser(u *user.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		IsAdmin:   u.IsAdmin,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

func FromLogin(res *service.LoginResult) *LoginResponse {
	return &LoginResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      FromUser(res.User),
	}
}

func FromProperty(p *property.Property) *PropertyResponse {
	resp := &PropertyResponse{
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description,
		Price:        centsToFloat(p.Price),
		Address:      p.Address,
		SquareMeters: p.SquareMeters,
		Bedrooms:     p.Bedrooms,
		Bathrooms:    p.Bathrooms,
		ParkingSpots: p.ParkingSpots,
		Sold:         p.Sold,
		OwnerID:      p.OwnerID,
		CreatedAt:    p.CreatedAt,
	}
	if p.PhotoKey != nil {
		url := photoURL(p.ID)
		resp.PhotoURL = &url
	}
	return resp
}

func FromPayment(p *payment.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:         p.ID,
		Amount:     centsToFloat(p.Amount),
		Status:     string(p.Status),
		UserID:     p.UserID,
		PropertyID: p.PropertyID,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func photoURL(propertyID int64) string {
	return fmt.Sprintf("/api/v1/properties/%d/photo", propertyID)
}

// maxAmountFloat is the largest value a NUMERIC(14,2) column holds.
const maxAmountFloat = 999_999_999_999.99

// floatToCents converts a decimal amount to cents, rounding to the nearest cent.
func floatToCents(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("amount is not a finite number")
	}
	if f <= 0 {
		return 0, fmt.Errorf("amount must be greater than 0")
	}
	if f > maxAmountFloat {
		return 0, fmt.Errorf("amount exceeds %.2f", maxAmountFloat)
	}
	cents := int64(math.Round(f * 100))
	if cents <= 0 {
		return 0, fmt.Errorf("amount must be at least 0.01")
	}
	return cents, nil
}

// centsToFloat converts cents to a decimal amount.
func centsToFloat(cents int64) float64 {
	return float64(cents) / 100.0
}
