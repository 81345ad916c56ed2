package domain

import (
	"time"

	attributiondomain "github.com/smallbiznis/kolaffiliate/internal/attribution/domain"
)

type ID = attributiondomain.ID

type OrderItem struct {
	ProductID ID      `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

type OrderAttributionRequest struct {
	OrderID     string                               `json:"orderId"`
	Items       []OrderItem                          `json:"items"`
	Attribution *attributiondomain.ClientAttribution `json:"attribution,omitempty"`
}

type ItemResult struct {
	ProductID        ID      `json:"productId"`
	Attributed       bool    `json:"attributed"`
	Reason           string  `json:"reason"`
	AttributionType  string  `json:"attributionType,omitempty"`
	Revenue          float64 `json:"revenue"`
	Commission       float64 `json:"commission"`
	CommissionRate   float64 `json:"commissionRate,omitempty"`
	AffiliateOrderID *ID     `json:"affiliateOrderId,omitempty"`
}

type OrderAttributionResult struct {
	OrderID                string       `json:"orderId"`
	TotalItems             int          `json:"totalItems"`
	AttributedItems        int          `json:"attributedItems"`
	TotalAttributedRevenue float64      `json:"totalAttributedRevenue"`
	TotalCommissions       float64      `json:"totalCommissions"`
	KolsInvolved           []ID         `json:"kolsInvolved"`
	ItemResults            []ItemResult `json:"itemResults"`
}

// Viewer is who asks for an order summary. Non-admins only see their own rows.
type Viewer struct {
	UserID int64
	Admin  bool
}

type SummaryItem struct {
	ID              ID         `json:"id"`
	ProductID       ID         `json:"productId"`
	LinkID          ID         `json:"linkId"`
	ClickID         *ID        `json:"clickId,omitempty"`
	Quantity        int        `json:"quantity"`
	UnitPrice       float64    `json:"unitPrice"`
	Revenue         float64    `json:"revenue"`
	CommissionRate  float64    `json:"commissionRate"`
	Commission      float64    `json:"commission"`
	Status          string     `json:"status"`
	AttributionType string     `json:"attributionType"`
	Reason          string     `json:"reason"`
	CreatedAt       time.Time  `json:"createdAt"`
	ConfirmedAt     *time.Time `json:"confirmedAt,omitempty"`
}

type KolSummary struct {
	KolID           ID            `json:"kolId"`
	Items           []SummaryItem `json:"items"`
	TotalRevenue    float64       `json:"totalRevenue"`
	TotalCommission float64       `json:"totalCommission"`
}

type OrderSummary struct {
	OrderID         string       `json:"orderId"`
	Kols            []KolSummary `json:"kols"`
	TotalItems      int          `json:"totalItems"`
	TotalRevenue    float64      `json:"totalRevenue"`
	TotalCommission float64      `json:"totalCommission"`
}
