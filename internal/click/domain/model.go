package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Click is one recorded visit through an affiliate link. Only the
// converted/conversion_id pair ever changes after insert, and only once.
type Click struct {
	ID           int64             `json:"id" gorm:"primaryKey"`
	LinkID       int64             `json:"link_id" gorm:"column:link_id"`
	KolID        int64             `json:"kol_id" gorm:"column:kol_id"`
	ProductID    int64             `json:"product_id" gorm:"column:product_id"`
	IPAddress    string            `json:"ip_address" gorm:"column:ip_address"`
	UserAgent    string            `json:"user_agent" gorm:"column:user_agent"`
	ReferrerURL  string            `json:"referrer_url" gorm:"column:referrer_url"`
	GeoLocation  datatypes.JSONMap `json:"geo_location,omitempty" gorm:"column:geo_location"`
	ClickedAt    time.Time         `json:"clicked_at" gorm:"column:clicked_at"`
	Converted    bool              `json:"converted" gorm:"column:converted"`
	ConversionID *int64            `json:"conversion_id,omitempty" gorm:"column:conversion_id"`
}

func (Click) TableName() string { return "affiliate_clicks" }

type RequestMeta struct {
	IP          string
	UserAgent   string
	Referrer    string
	GeoLocation map[string]any
}

type RecordResult struct {
	DestinationURL string
	ClickID        int64
	LinkID         int64
	KolID          int64
	ProductID      int64
	ShortCode      string
}

// ConvertMatch selects the click a conversion credits. A nil ProductID
// matches any product on the link. ClickID pins the match to one click.
type ConvertMatch struct {
	LinkID    int64
	KolID     int64
	ProductID *int64
	ClickID   *int64
}

type WindowCounts struct {
	Clicks      int64 `gorm:"column:clicks"`
	Conversions int64 `gorm:"column:conversions"`
}

// Point is the minimal projection used for daily series.
type Point struct {
	ClickedAt time.Time `gorm:"column:clicked_at"`
	Converted bool      `gorm:"column:converted"`
}
