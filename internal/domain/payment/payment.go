package payment

import (
	"fmt"
	"time"

	"github.com/cassiomorais/realestate/internal/domain/errors"
)

// PaymentStatus represents the payment status in the state machine
type PaymentStatus string

const (
	StatusPending    PaymentStatus = "pending"
	StatusProcessing PaymentStatus = "processing"
	StatusPaid       PaymentStatus = "paid"
	StatusError      PaymentStatus = "error"
)

// Payment records a purchase attempt of a property by a user.
type Payment struct {
	ID         int64
	Amount     int64 // in cents
	Status     PaymentStatus
	UserID     int64
	PropertyID int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewPayment creates a pending payment for the given buyer and property.
func NewPayment(userID, propertyID int64, amountCents int64) (*Payment, error) {
	if amountCents <= 0 {
		return nil, errors.NewValidationError("amount", "must be greater than 0")
	}
	if userID <= 0 {
		return nil, errors.NewValidationError("user_id", "is required")
	}
	if propertyID <= 0 {
		return nil, errors.NewValidationError("property_id", "is required")
	}

	now := time.Now()
	return &Payment{
		Amount:     amountCents,
		Status:     StatusPending,
		UserID:     userID,
		PropertyID: propertyID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

var transitions = map[PaymentStatus][]PaymentStatus{
	StatusPending: {
		StatusProcessing,
		StatusError,
	},
	StatusProcessing: {
		StatusPaid,
		StatusError,
	},
	StatusPaid:  {}, // Terminal state
	StatusError: {}, // Terminal state
}

// CanTransitionTo checks if the payment can transition to the given status
func (p *Payment) CanTransitionTo(newStatus PaymentStatus) bool {
	allowedTransitions, exists := transitions[p.Status]
	if !exists {
		return false
	}

	for _, allowed := range allowedTransitions {
		if allowed == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo transitions the payment to a new status
func (p *Payment) TransitionTo(newStatus PaymentStatus) error {
	if !p.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(p.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}

	p.Status = newStatus
	p.UpdatedAt = time.Now()
	return nil
}

// MarkProcessing transitions the payment to processing status
func (p *Payment) MarkProcessing() error {
	return p.TransitionTo(StatusProcessing)
}

// MarkPaid transitions the payment to paid status
func (p *Payment) MarkPaid() error {
	return p.TransitionTo(StatusPaid)
}

// MarkError transitions the payment to error status
func (p *Payment) MarkError() error {
	return p.TransitionTo(StatusError)
}

// IsTerminal checks if the payment is in a terminal state
func (p *Payment) IsTerminal() bool {
	return p.Status == StatusPaid || p.Status == StatusError
}

// FormatCents renders an amount in cents as a decimal string, e.g. 10050 -> "100.50".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
