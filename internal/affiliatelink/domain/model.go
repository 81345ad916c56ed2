package domain

import (
	"math"
	"time"
)

// Link is a KOL's trackable short link for one product. Counters are
// denormalized and only ever moved by atomic increments.
type Link struct {
	ID          int64      `json:"id" gorm:"primaryKey"`
	KolID       int64      `json:"kol_id" gorm:"column:kol_id"`
	ProductID   int64      `json:"product_id" gorm:"column:product_id"`
	ShortCode   string     `json:"short_code" gorm:"column:short_code"`
	OriginalURL string     `json:"original_url" gorm:"column:original_url"`
	ShortURL    string     `json:"short_url" gorm:"column:short_url"`
	Platform    *string    `json:"platform,omitempty" gorm:"column:platform"`
	ClickCount  int64      `json:"click_count" gorm:"column:click_count"`
	Conversions int64      `json:"conversions" gorm:"column:conversions"`
	Revenue     float64    `json:"revenue" gorm:"column:revenue"`
	Commission  float64    `json:"commission" gorm:"column:commission"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at"`
	CreatedAt   time.Time  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"column:updated_at"`
}

func (Link) TableName() string { return "affiliate_links" }

func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// MoneyTolerance is the smallest revenue or commission difference treated as
// drift. Amounts are kept to the cent.
const MoneyTolerance = 0.005

// CounterSnapshot is what the ledger says a link's counters should be,
// alongside what the link row currently stores.
type CounterSnapshot struct {
	LinkID      int64   `gorm:"column:link_id"`
	ClickCount  int64   `gorm:"column:click_count"`
	Conversions int64   `gorm:"column:conversions"`
	Revenue     float64 `gorm:"column:revenue"`
	Commission  float64 `gorm:"column:commission"`

	StoredClickCount  int64   `gorm:"column:stored_click_count"`
	StoredConversions int64   `gorm:"column:stored_conversions"`
	StoredRevenue     float64 `gorm:"column:stored_revenue"`
	StoredCommission  float64 `gorm:"column:stored_commission"`
}

// Drift names the counters whose stored value disagrees with the ledger.
func (s CounterSnapshot) Drift() []string {
	var out []string
	if s.ClickCount != s.StoredClickCount {
		out = append(out, "click_count")
	}
	if s.Conversions != s.StoredConversions {
		out = append(out, "conversions")
	}
	if math.Abs(s.Revenue-s.StoredRevenue) >= MoneyTolerance {
		out = append(out, "revenue")
	}
	if math.Abs(s.Commission-s.StoredCommission) >= MoneyTolerance {
		out = append(out, "commission")
	}
	return out
}
