package testutil

import (
	"fmt"
	"time"

	"github.com/cassiomorais/realestate/internal/domain/payment"
	"github.com/cassiomorais/realestate/internal/domain/property"
	"github.com/cassiomorais/realestate/internal/domain/user"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plain-text password of every fixture user.
const TestPassword = "secret123"

var testPasswordHash = func() string {
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}()

func NewTestUser(username string) *user.User {
	return &user.User{
		Username:     username,
		Email:        fmt.Sprintf("%s@example.com", username),
		PasswordHash: testPasswordHash,
		Active:       true,
		CreatedAt:    time.Now(),
	}
}

func NewTestAdmin(username string) *user.User {
	u := NewTestUser(username)
	u.IsAdmin = true
	return u
}

func NewTestProperty(ownerID int64, priceCents int64) *property.Property {
	return &property.Property{
		Title:        "Casa en la playa",
		Description:  "Three bedroom house two blocks from the beach",
		Price:        priceCents,
		Address:      "Av. Costanera 123",
		SquareMeters: 120,
		Bedrooms:     3,
		Bathrooms:    2,
		ParkingSpots: 1,
		OwnerID:      ownerID,
		CreatedAt:    time.Now(),
	}
}

func NewTestPayment(userID, propertyID, amountCents int64, status payment.PaymentStatus) *payment.Payment {
	now := time.Now()
	return &payment.Payment{
		Amount:     amountCents,
		Status:     status,
		UserID:     userID,
		PropertyID: propertyID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func Int64Ptr(v int64) *int64 {
	return &v
}

func StringPtr(v string) *string {
	return &v
}

func BoolPtr(v bool) *bool {
	return &v
}
