package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Lifetime is fixed: an attribution always expires 24h after the click.
const Lifetime = 24 * time.Hour

type Type string

const (
	TypeSpecific Type = "specific"
	TypeGeneral  Type = "general"
)

// ID renders as a JSON string so snowflake ids survive JavaScript clients.
// It accepts either a string or a number on input.
type ID int64

func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatInt(int64(id), 10))), nil
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*id = 0
			return nil
		}
		data = []byte(s)
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return ErrMalformed
	}
	*id = ID(v)
	return nil
}

// ClientAttribution is the visitor's current affiliate credit. A nil
// ProductID credits any product in the eventual order. ClickID names the
// recorded click the credit came from; reconciliation takes the click time
// from that row rather than from Timestamp.
type ClientAttribution struct {
	KolID           ID        `json:"kolId"`
	AffiliateID     ID        `json:"affiliateId"`
	ProductID       *ID       `json:"productId"`
	ClickID         *ID       `json:"clickId,omitempty"`
	ShortCode       string    `json:"shortCode,omitempty"`
	AttributionType Type      `json:"attributionType"`
	Timestamp       time.Time `json:"timestamp"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

type Seed struct {
	KolID       int64
	AffiliateID int64
	ProductID   *int64
	ClickID     int64
	ShortCode   string
}

func New(seed Seed, now time.Time) ClientAttribution {
	a := ClientAttribution{
		KolID:           ID(seed.KolID),
		AffiliateID:     ID(seed.AffiliateID),
		ShortCode:       seed.ShortCode,
		AttributionType: TypeGeneral,
		Timestamp:       now.UTC(),
	}
	if seed.ProductID != nil && *seed.ProductID != 0 {
		p := ID(*seed.ProductID)
		a.ProductID = &p
		a.AttributionType = TypeSpecific
	}
	if seed.ClickID != 0 {
		c := ID(seed.ClickID)
		a.ClickID = &c
	}
	a.ExpiresAt = a.Timestamp.Add(Lifetime)
	return a
}

// Normalize derives ExpiresAt and the type from the payload itself, so a
// client cannot stretch the lifetime by editing expiresAt.
func (a *ClientAttribution) Normalize() {
	a.Timestamp = a.Timestamp.UTC()
	a.ExpiresAt = a.Timestamp.Add(Lifetime)
	if a.ProductID != nil && *a.ProductID == 0 {
		a.ProductID = nil
	}
	if a.ClickID != nil && *a.ClickID == 0 {
		a.ClickID = nil
	}
	if a.ProductID == nil {
		a.AttributionType = TypeGeneral
	} else {
		a.AttributionType = TypeSpecific
	}
}

func (a *ClientAttribution) Valid() bool {
	return a != nil && a.KolID != 0 && a.AffiliateID != 0 && !a.Timestamp.IsZero()
}

func (a *ClientAttribution) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// Remaining is the lifetime left at now, never negative.
func (a *ClientAttribution) Remaining(now time.Time) time.Duration {
	d := a.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// HasClick reports whether the attribution names a recorded click.
func (a *ClientAttribution) HasClick() bool {
	return a != nil && a.ClickID != nil && *a.ClickID != 0
}

// Anchor restarts the lifetime at the recorded click time.
func (a *ClientAttribution) Anchor(clickedAt time.Time) {
	a.Timestamp = clickedAt.UTC()
	a.ExpiresAt = a.Timestamp.Add(Lifetime)
}

func (a *ClientAttribution) ProductIDValue() *int64 {
	if a.ProductID == nil {
		return nil
	}
	v := int64(*a.ProductID)
	return &v
}

func (a *ClientAttribution) ClickIDValue() *int64 {
	if a.ClickID == nil {
		return nil
	}
	v := int64(*a.ClickID)
	return &v
}
