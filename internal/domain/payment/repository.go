package payment

import (
	"context"
)

// Repository defines the interface for payment persistence
type Repository interface {
	// Create creates a new payment and assigns its ID
	Create(ctx context.Context, payment *Payment) error

	// GetByID retrieves a payment by ID
	GetByID(ctx context.Context, id int64) (*Payment, error)

	// GetForProcessing retrieves a payment and locks its row for the rest of the
	// transaction. A row already locked by another transaction is skipped, so the
	// call fails fast with ErrPaymentNotFound instead of waiting.
	GetForProcessing(ctx context.Context, id int64) (*Payment, error)

	// Update updates an existing payment
	Update(ctx context.Context, payment *Payment) error

	// ListByUser lists the payments made by a user, newest first
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*Payment, error)

	// DeleteByProperty removes every payment referencing a property
	DeleteByProperty(ctx context.Context, propertyID int64) (int64, error)
}
