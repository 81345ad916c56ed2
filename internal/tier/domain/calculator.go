package domain

import (
	"sort"

	"github.com/smallbiznis/kolaffiliate/internal/config"
)

const (
	TierHigh     = "high"
	TierStandard = "standard"
	TierBronze   = "bronze"
)

// Tier is one commission bracket. RatePercent is a percentage, so 5 means 5%.
type Tier struct {
	Label       string  `json:"tier"`
	RatePercent float64 `json:"ratePercent"`
	MinSales    float64 `json:"minSales"`
}

// Table holds brackets ordered by descending MinSales. The last bracket
// starts at zero.
type Table []Tier

func DefaultTable() Table {
	return Table{
		{Label: TierHigh, RatePercent: 10, MinSales: 100_000},
		{Label: TierStandard, RatePercent: 5, MinSales: 10_000},
		{Label: TierBronze, RatePercent: 3, MinSales: 0},
	}
}

// TableFromConfig converts a validated commission config. An empty config
// yields the default table.
func TableFromConfig(cfg config.CommissionConfig) Table {
	if len(cfg.Tiers) == 0 {
		return DefaultTable()
	}
	t := make(Table, 0, len(cfg.Tiers))
	for _, ct := range cfg.Tiers {
		t = append(t, Tier{Label: ct.Label, RatePercent: ct.RatePercent, MinSales: ct.MinSales})
	}
	sort.SliceStable(t, func(i, j int) bool { return t[i].MinSales > t[j].MinSales })
	return t
}

// RateFor maps total sales to the default table.
func RateFor(totalSales float64) Tier {
	return DefaultTable().RateFor(totalSales)
}

// RateFor returns the highest bracket whose threshold totalSales reaches.
func (t Table) RateFor(totalSales float64) Tier {
	for _, tier := range t {
		if totalSales >= tier.MinSales {
			return tier
		}
	}
	return t[len(t)-1]
}

// Next returns the bracket above the one totalSales maps to and how much
// more is needed to reach it. ok is false at the top bracket.
func (t Table) Next(totalSales float64) (next Tier, remaining float64, ok bool) {
	for i, tier := range t {
		if totalSales >= tier.MinSales {
			if i == 0 {
				return Tier{}, 0, false
			}
			return t[i-1], t[i-1].MinSales - totalSales, true
		}
	}
	last := len(t) - 1
	if last == 0 {
		return Tier{}, 0, false
	}
	return t[last-1], t[last-1].MinSales - totalSales, true
}

func (t Table) Lookup(label string) (Tier, bool) {
	for _, tier := range t {
		if tier.Label == label {
			return tier, true
		}
	}
	return Tier{}, false
}
