// Package providers simulates the external payment gateway a purchase is charged through.
package providers

import (
	"context"
)

type Result struct {
	TransactionID string
	Status        string // "success" or "failed"
	ErrorMessage  string
}

type Provider interface {
	// Name returns the provider name.
	Name() string
	// Charge settles the amount for a payment.
	Charge(ctx context.Context, req ChargeRequest) (*Result, error)
}

type ChargeRequest struct {
	PaymentID   int64
	PropertyID  int64
	AmountCents int64 // in cents
}
