package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCommissionConfigIsValid(t *testing.T) {
	require.NoError(t, ValidateCommissionConfig(DefaultCommissionConfig()))
}

func TestValidateCommissionConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  CommissionConfig
		ok   bool
	}{
		{name: "empty", cfg: CommissionConfig{}},
		{
			name: "ascending thresholds",
			cfg: CommissionConfig{Tiers: []CommissionTier{
				{Label: "a", MinSales: 0, RatePercent: 3},
				{Label: "b", MinSales: 100, RatePercent: 5},
			}},
		},
		{
			name: "rate increases as threshold falls",
			cfg: CommissionConfig{Tiers: []CommissionTier{
				{Label: "a", MinSales: 100, RatePercent: 3},
				{Label: "b", MinSales: 0, RatePercent: 5},
			}},
		},
		{
			name: "missing zero floor",
			cfg: CommissionConfig{Tiers: []CommissionTier{
				{Label: "a", MinSales: 100, RatePercent: 5},
			}},
		},
		{
			name: "single flat tier",
			cfg: CommissionConfig{Tiers: []CommissionTier{
				{Label: "flat", MinSales: 0, RatePercent: 4},
			}},
			ok: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCommissionConfig(tc.cfg)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestStaticHolderReturnsConfig(t *testing.T) {
	holder := NewStaticCommissionConfigHolder(DefaultCommissionConfig())
	assert.Equal(t, "high", holder.Get().Tiers[0].Label)
}
