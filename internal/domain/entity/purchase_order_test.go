package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPurchaseOrder_Quantities(t *testing.T) {
	tests := []struct {
		name        string
		lines       []LineItem
		hasLines    bool
		allReceived bool
		anyReceived bool
	}{
		{
			name:        "no lines",
			hasLines:    false,
			allReceived: true,
			anyReceived: false,
		},
		{
			name: "nothing received",
			lines: []LineItem{
				{ID: 1, QuantityOrdered: 5},
				{ID: 2, QuantityOrdered: 2},
			},
			hasLines:    true,
			allReceived: false,
			anyReceived: false,
		},
		{
			name: "partially received",
			lines: []LineItem{
				{ID: 1, QuantityOrdered: 5, QuantityReceived: 5},
				{ID: 2, QuantityOrdered: 2, QuantityReceived: 1},
			},
			hasLines:    true,
			allReceived: false,
			anyReceived: true,
		},
		{
			name: "fully received",
			lines: []LineItem{
				{ID: 1, QuantityOrdered: 5, QuantityReceived: 5},
				{ID: 2, QuantityOrdered: 2, QuantityReceived: 2},
			},
			hasLines:    true,
			allReceived: true,
			anyReceived: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			po := &PurchaseOrder{Lines: tt.lines}
			assert.Equal(t, tt.hasLines, po.HasLineItems())
			assert.Equal(t, tt.allReceived, po.AllQuantitiesReceived())
			assert.Equal(t, tt.anyReceived, po.AnyQuantityReceived())
		})
	}
}

func TestPurchaseOrder_TotalCents(t *testing.T) {
	po := &PurchaseOrder{Lines: []LineItem{
		{QuantityOrdered: 3, UnitPriceCents: 250},
		{QuantityOrdered: 1, UnitPriceCents: 1000},
	}}
	assert.Equal(t, int64(1750), po.TotalCents())
}

func TestPurchaseOrder_FindLine(t *testing.T) {
	po := &PurchaseOrder{Lines: []LineItem{{ID: 7, SKU: "A"}, {ID: 9, SKU: "B"}}}

	line, ok := po.FindLine(9)
	assert.True(t, ok)
	assert.Equal(t, "B", line.SKU)

	line.QuantityReceived = 4
	assert.Equal(t, int64(4), po.Lines[1].QuantityReceived)

	_, ok = po.FindLine(1)
	assert.False(t, ok)
}

func TestLineItem_OutstandingQuantity(t *testing.T) {
	assert.Equal(t, int64(3), LineItem{QuantityOrdered: 5, QuantityReceived: 2}.OutstandingQuantity())
	assert.Equal(t, int64(0), LineItem{QuantityOrdered: 5, QuantityReceived: 5}.OutstandingQuantity())
}
