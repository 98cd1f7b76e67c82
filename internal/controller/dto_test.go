package controller

import (
	"fmt"
	"math"
	"testing"

	"github.com/cassiomorais/realestate/internal/domain/payment"
	"github.com/cassiomorais/realestate/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestFloatToCents(t *testing.T) {
	tests := []struct {
		name    string
		input   float64
		want    int64
		wantErr bool
	}{
		{"normal", 123.45, 12345, false},
		{"zero", 0, 0, true},
		{"negative", -10.00, 0, true},
		{"NaN", math.NaN(), 0, true},
		{"positive infinity", math.Inf(1), 0, true},
		{"negative infinity", math.Inf(-1), 0, true},
		{"min valid", 0.01, 1, false},
		{"below a cent", 0.001, 0, true},
		{"rounding", 10.999, 1100, false},
		{"binary fraction", 0.29, 29, false},
		{"house price", 150000.50, 15000050, false},
		{"exact max", maxAmountFloat, 99999999999999, false},
		{"just over max", maxAmountFloat + 1.0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := floatToCents(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("floatToCents() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("floatToCents() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCentsToFloat(t *testing.T) {
	tests := []struct {
		cents int64
		want  float64
	}{
		{12345, 123.45},
		{1, 0.01},
		{99, 0.99},
		{100, 1.00},
		{15000050, 150000.50},
		{0, 0.00},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.cents), func(t *testing.T) {
			got := centsToFloat(tt.cents)
			if got != tt.want {
				t.Errorf("centsToFloat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromProperty_PhotoURL(t *testing.T) {
	p := testutil.NewTestProperty(1, 25000000)
	p.ID = 9

	assert.Nil(t, FromProperty(p).PhotoURL)

	p.PhotoKey = testutil.StringPtr("properties/9/abc.jpg")
	resp := FromProperty(p)
	if assert.NotNil(t, resp.PhotoURL) {
		assert.Equal(t, "/api/v1/properties/9/photo", *resp.PhotoURL)
	}
	assert.Equal(t, 250000.0, resp.Price)
}

func TestFromPayment(t *testing.T) {
	p := testutil.NewTestPayment(3, 4, 1050, payment.StatusPaid)
	p.ID = 12

	resp := FromPayment(p)

	assert.Equal(t, int64(12), resp.ID)
	assert.Equal(t, 10.5, resp.Amount)
	assert.Equal(t, "paid", resp.Status)
	assert.Equal(t, int64(4), resp.PropertyID)
}
