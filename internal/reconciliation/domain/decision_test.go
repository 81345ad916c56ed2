package domain

import (
	"testing"
	"time"

	attributiondomain "github.com/smallbiznis/kolaffiliate/internal/attribution/domain"
	"github.com/stretchr/testify/assert"
)

func attributionAt(clickedAt time.Time, productID *int64) *attributiondomain.ClientAttribution {
	a := attributiondomain.New(attributiondomain.Seed{KolID: 7, AffiliateID: 1, ProductID: productID}, clickedAt)
	return &a
}

func ptr(v int64) *int64 { return &v }

func TestShouldAttributeItem(t *testing.T) {
	clickedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	window := DefaultRecentClickWindow
	matching := OrderItem{ProductID: 100, Quantity: 1, UnitPrice: 10}
	other := OrderItem{ProductID: 200, Quantity: 1, UnitPrice: 10}

	cases := []struct {
		name   string
		item   OrderItem
		attr   *attributiondomain.ClientAttribution
		now    time.Time
		ok     bool
		reason string
		typ    attributiondomain.Type
	}{
		{name: "no attribution", item: matching, now: clickedAt, reason: ReasonNoAttribution},
		{
			name:   "missing link",
			item:   matching,
			attr:   &attributiondomain.ClientAttribution{KolID: 7, ExpiresAt: clickedAt.Add(time.Hour)},
			now:    clickedAt,
			reason: ReasonMissingKolOrLink,
		},
		{
			name:   "product match",
			item:   matching,
			attr:   attributionAt(clickedAt, ptr(100)),
			now:    clickedAt.Add(5 * time.Hour),
			ok:     true,
			reason: ReasonProductMatch,
			typ:    attributiondomain.TypeSpecific,
		},
		{
			name:   "mismatch at exactly thirty minutes",
			item:   other,
			attr:   attributionAt(clickedAt, ptr(100)),
			now:    clickedAt.Add(30 * time.Minute),
			ok:     true,
			reason: ReasonGeneralRecentClick,
			typ:    attributiondomain.TypeGeneral,
		},
		{
			name:   "mismatch one second late",
			item:   other,
			attr:   attributionAt(clickedAt, ptr(100)),
			now:    clickedAt.Add(30*time.Minute + time.Second),
			reason: ReasonMismatchWindowClosed,
		},
		{
			name:   "general attribution",
			item:   other,
			attr:   attributionAt(clickedAt, nil),
			now:    clickedAt.Add(23 * time.Hour),
			ok:     true,
			reason: ReasonGeneralOrder,
			typ:    attributiondomain.TypeGeneral,
		},
		{
			name:   "expired",
			item:   matching,
			attr:   attributionAt(clickedAt, ptr(100)),
			now:    clickedAt.Add(24*time.Hour + time.Second),
			reason: ReasonExpired,
		},
		{
			name:   "expiry instant still valid",
			item:   matching,
			attr:   attributionAt(clickedAt, ptr(100)),
			now:    clickedAt.Add(24 * time.Hour),
			ok:     true,
			reason: ReasonProductMatch,
			typ:    attributiondomain.TypeSpecific,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := ShouldAttributeItem(tc.item, tc.attr, tc.now, window)
			assert.Equal(t, tc.ok, d.Attribute)
			assert.Equal(t, tc.reason, d.Reason)
			assert.Equal(t, tc.typ, d.Type)
		})
	}
}

func TestValidateAttributionData(t *testing.T) {
	err := ValidateAttributionData(OrderAttributionRequest{
		OrderID: "ORD-1",
		Items:   []OrderItem{{ProductID: 100, Quantity: 1, UnitPrice: 10}},
	})
	assert.NoError(t, err)

	err = ValidateAttributionData(OrderAttributionRequest{
		OrderID: " ",
		Items: []OrderItem{
			{ProductID: 0, Quantity: 0, UnitPrice: 0},
			{ProductID: 5, Quantity: 1, UnitPrice: 1},
			{ProductID: 5, Quantity: 1, UnitPrice: 1},
		},
		Attribution: &attributiondomain.ClientAttribution{KolID: 7},
	})
	var verr *ValidationErrors
	if assert.ErrorAs(t, err, &verr) {
		fields := make([]string, 0, len(verr.Errors))
		for _, fe := range verr.Errors {
			fields = append(fields, fe.Field)
		}
		assert.Equal(t, []string{
			"orderId",
			"items[0].productId",
			"items[0].quantity",
			"items[0].unitPrice",
			"items[2].productId",
			"attribution.affiliateId",
		}, fields)
	}

	err = ValidateAttributionData(OrderAttributionRequest{OrderID: "ORD-2"})
	assert.ErrorAs(t, err, &verr)
}
