package domain

import "time"

// TierChange reports a single recalculation, whether or not anything moved.
type TierChange struct {
	KolID       int64   `json:"kolId,string"`
	OldTier     string  `json:"oldTier"`
	NewTier     string  `json:"newTier"`
	OldRate     float64 `json:"oldRate"`
	NewRate     float64 `json:"newRate"`
	TotalSales  float64 `json:"totalSales"`
	TierChanged bool    `json:"tierChanged"`
	RateChanged bool    `json:"rateChanged"`
}

// Changed reports whether the stored tier fields were rewritten.
func (c *TierChange) Changed() bool {
	return c != nil && (c.TierChanged || c.RateChanged)
}

type KolError struct {
	KolID int64  `json:"kolId,string"`
	Error string `json:"error"`
}

type BatchResult struct {
	Processed int          `json:"processed"`
	Updated   int          `json:"updated"`
	Failed    int          `json:"failed"`
	Errors    []KolError   `json:"errors,omitempty"`
	Changes   []TierChange `json:"-"`
}

type BatchOptions struct {
	Size        int
	Delay       time.Duration
	Concurrency int
}

// Candidate is a KOL whose completed sales now map to a higher rate than
// the one stored.
type Candidate struct {
	KolID          int64   `json:"kolId,string" gorm:"column:kol_id"`
	CurrentTier    string  `json:"currentTier" gorm:"column:current_tier"`
	CurrentRate    float64 `json:"currentRate" gorm:"column:current_rate"`
	StoredSales    float64 `json:"storedSales" gorm:"column:stored_sales"`
	CompletedSales float64 `json:"completedSales" gorm:"column:completed_sales"`
	NewTier        string  `json:"newTier" gorm:"-"`
	NewRate        float64 `json:"newRate" gorm:"-"`
}

type Statistic struct {
	Tier        string  `json:"tier" gorm:"column:tier"`
	Count       int64   `json:"count" gorm:"column:count"`
	AvgSales    float64 `json:"avgSales" gorm:"column:avg_sales"`
	TotalSales  float64 `json:"totalSales" gorm:"column:total_sales"`
	MinSales    float64 `json:"minSales" gorm:"column:min_sales"`
	MaxSales    float64 `json:"maxSales" gorm:"column:max_sales"`
	RatePercent float64 `json:"ratePercent" gorm:"-"`
}
