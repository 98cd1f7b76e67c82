// Package stats names the marketplace-wide aggregates shown on the homepage.
package stats

import "context"

// Metric keys. They are part of the public API and kept as the product named them.
const (
	Users          = "usuarios"
	Properties     = "propiedades"
	Payments       = "pagos"
	TotalPaid      = "total_pagado"
	AveragePrice   = "precio_promedio"
	MinPrice       = "precio_minimo"
	MaxPrice       = "precio_maximo"
	PaidPayments   = "pagos_realizados"
	SoldProperties = "propiedades_vendidas"
	AverageTicket  = "ticket_promedio"
	DistinctOwners = "total_propietarios"
)

// Keys lists every metric in display order.
var Keys = []string{
	Users, Properties, Payments, TotalPaid, AveragePrice, MinPrice,
	MaxPrice, PaidPayments, SoldProperties, AverageTicket, DistinctOwners,
}

// Report maps metric keys to values. Money values are in currency units.
type Report map[string]float64

// Repository runs the read-only aggregate queries. Money results are in cents.
// Aggregates over empty sets return zero.
type Repository interface {
	CountUsers(ctx context.Context) (int64, error)
	CountProperties(ctx context.Context) (int64, error)
	CountPayments(ctx context.Context) (int64, error)
	SumPaidAmount(ctx context.Context) (int64, error)
	AveragePrice(ctx context.Context) (float64, error)
	MinPrice(ctx context.Context) (int64, error)
	MaxPrice(ctx context.Context) (int64, error)
	CountPaidPayments(ctx context.Context) (int64, error)
	// CountSoldProperties counts distinct properties with at least one paid payment.
	CountSoldProperties(ctx context.Context) (int64, error)
	AveragePaidAmount(ctx context.Context) (float64, error)
	CountOwners(ctx context.Context) (int64, error)
}
