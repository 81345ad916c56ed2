package domain

import "time"

const (
	StatusApproved = "approved"
	StatusPending  = "pending"
	StatusRejected = "rejected"
)

// Kol is the affiliate view of a storefront user.
type Kol struct {
	ID                int64      `json:"id" gorm:"primaryKey"`
	Name              string     `json:"name" gorm:"column:name"`
	Email             string     `json:"email" gorm:"column:email"`
	Role              string     `json:"role" gorm:"column:role"`
	IsKol             bool       `json:"is_kol" gorm:"column:is_kol"`
	KolStatus         string     `json:"kol_status" gorm:"column:kol_status"`
	KolTier           string     `json:"kol_tier" gorm:"column:kol_tier"`
	KolCommissionRate float64    `json:"kol_commission_rate" gorm:"column:kol_commission_rate"`
	TotalSales        float64    `json:"total_sales" gorm:"column:total_sales"`
	TotalFollowers    int64      `json:"total_followers" gorm:"column:total_followers"`
	KolTierUpdatedAt  *time.Time `json:"kol_tier_updated_at,omitempty" gorm:"column:kol_tier_updated_at"`
}

func (Kol) TableName() string { return "users" }

func (k *Kol) Approved() bool {
	return k != nil && k.IsKol && k.KolStatus == StatusApproved
}

// TierUpdate is the only write path for tier fields.
type TierUpdate struct {
	KolID       int64
	Tier        string
	RatePercent float64
	TotalSales  float64
	UpdatedAt   time.Time
}
