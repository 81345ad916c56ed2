package domain

import (
	"time"

	productdomain "github.com/smallbiznis/kolaffiliate/internal/product/domain"
)

const (
	Period7Days   = "7d"
	Period30Days  = "30d"
	Period90Days  = "90d"
	Period1Year   = "1y"
	PeriodCustom  = "custom"
	DefaultPeriod = Period30Days

	TopLinksLimit       = 10
	RecentActivityLimit = 20
)

// Request carries the raw query values; Service.Get parses them.
type Request struct {
	KolID     int64
	StartDate string
	EndDate   string
	Period    string
}

type Range struct {
	From   time.Time
	To     time.Time
	Period string
}

type Overview struct {
	TotalLinks            int64   `json:"totalLinks"`
	TotalClicks           int64   `json:"totalClicks"`
	TotalConversions      int64   `json:"totalConversions"`
	TotalRevenue          float64 `json:"totalRevenue"`
	TotalCommission       float64 `json:"totalCommission"`
	TotalCommissionEarned float64 `json:"totalCommissionEarned"`
	ConversionRate        float64 `json:"conversionRate"`
}

// LinkTotals is the aggregate row behind Overview.
type LinkTotals struct {
	TotalLinks       int64   `gorm:"column:total_links"`
	TotalClicks      int64   `gorm:"column:total_clicks"`
	TotalConversions int64   `gorm:"column:total_conversions"`
	TotalRevenue     float64 `gorm:"column:total_revenue"`
	TotalCommission  float64 `gorm:"column:total_commission"`
}

type TierInfo struct {
	CurrentTier        string   `json:"currentTier"`
	CurrentRate        float64  `json:"currentRate"`
	TotalSales         float64  `json:"totalSales"`
	NextTier           *string  `json:"nextTier"`
	NextTierThreshold  *float64 `json:"nextTierThreshold"`
	SalesUntilNextTier float64  `json:"salesUntilNextTier"`
}

type CommissionBucket struct {
	Count  int64   `json:"count"`
	Amount float64 `json:"amount"`
}

type Commissions struct {
	Pending   CommissionBucket `json:"pending"`
	Completed CommissionBucket `json:"completed"`
	Cancelled CommissionBucket `json:"cancelled"`
}

type TopLink struct {
	ID             string                 `json:"id"`
	ShortURL       string                 `json:"shortUrl"`
	Clicks         int64                  `json:"clicks"`
	Conversions    int64                  `json:"conversions"`
	Revenue        float64                `json:"revenue"`
	Commission     float64                `json:"commission"`
	ConversionRate float64                `json:"conversionRate"`
	CreatedAt      time.Time              `json:"createdAt"`
	Product        *productdomain.Summary `json:"product"`
}

type Activity struct {
	ID          string                 `json:"id"`
	ClickedAt   time.Time              `json:"clickedAt"`
	Converted   bool                   `json:"converted"`
	IPAddress   string                 `json:"ipAddress"`
	ReferrerURL string                 `json:"referrerUrl"`
	Product     *productdomain.Summary `json:"product"`
}

type DailyStat struct {
	Date        string `json:"date"`
	Clicks      int64  `json:"clicks"`
	Conversions int64  `json:"conversions"`
}

type Period struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Period    string    `json:"period"`
}

type Dashboard struct {
	Overview           Overview    `json:"overview"`
	TierInfo           TierInfo    `json:"tierInfo"`
	Commissions        Commissions `json:"commissions"`
	TopPerformingLinks []TopLink   `json:"topPerformingLinks"`
	RecentActivity     []Activity  `json:"recentActivity"`
	DailyStats         []DailyStat `json:"dailyStats"`
	Period             Period      `json:"period"`
}
