package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CommissionTier is one row of the tier table. Rates are percentages.
type CommissionTier struct {
	Label       string  `mapstructure:"label"`
	MinSales    float64 `mapstructure:"minSales"`
	RatePercent float64 `mapstructure:"ratePercent"`
}

type CommissionConfig struct {
	Tiers []CommissionTier `mapstructure:"tiers"`
}

func DefaultCommissionConfig() CommissionConfig {
	return CommissionConfig{
		Tiers: []CommissionTier{
			{Label: "high", MinSales: 100_000, RatePercent: 10},
			{Label: "standard", MinSales: 10_000, RatePercent: 5},
			{Label: "bronze", MinSales: 0, RatePercent: 3},
		},
	}
}

type CommissionConfigHolder struct {
	current atomic.Value // holds CommissionConfig
}

// NewStaticCommissionConfigHolder returns a holder that never reloads.
func NewStaticCommissionConfigHolder(cfg CommissionConfig) *CommissionConfigHolder {
	holder := &CommissionConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewCommissionConfigHolder(log *zap.Logger) (*CommissionConfigHolder, error) {
	log = log.Named("config.commission")
	v := viper.New()

	v.SetConfigName("commission")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/kolaffiliate")
	v.AddConfigPath(".")

	v.SetEnvPrefix("KOLAFFILIATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cfg := DefaultCommissionConfig()
	if fileFound {
		var loaded CommissionConfig
		if err := v.UnmarshalKey("commission", &loaded); err != nil {
			return nil, err
		}
		if err := ValidateCommissionConfig(loaded); err != nil {
			return nil, err
		}
		cfg = loaded
	}

	holder := NewStaticCommissionConfigHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CommissionConfig
		if err := v.UnmarshalKey("commission", &updated); err != nil {
			log.Warn("commission config reload failed", zap.Error(err))
			return
		}
		if err := ValidateCommissionConfig(updated); err != nil {
			log.Warn("invalid commission config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("commission config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *CommissionConfigHolder) Get() CommissionConfig {
	return h.current.Load().(CommissionConfig)
}

// ValidateCommissionConfig requires strictly descending thresholds ending at
// zero, with rates that never increase as the threshold falls.
func ValidateCommissionConfig(cfg CommissionConfig) error {
	if len(cfg.Tiers) == 0 {
		return errors.New("commission.tiers cannot be empty")
	}
	for i, t := range cfg.Tiers {
		if strings.TrimSpace(t.Label) == "" {
			return fmt.Errorf("commission.tiers[%d].label is required", i)
		}
		if t.RatePercent < 0 || t.RatePercent > 100 {
			return fmt.Errorf("commission.tiers[%d].ratePercent out of range", i)
		}
		if i == 0 {
			continue
		}
		prev := cfg.Tiers[i-1]
		if t.MinSales >= prev.MinSales {
			return fmt.Errorf("commission.tiers[%d].minSales must be below %v", i, prev.MinSales)
		}
		if t.RatePercent > prev.RatePercent {
			return fmt.Errorf("commission.tiers[%d].ratePercent must not exceed %v", i, prev.RatePercent)
		}
	}
	if cfg.Tiers[len(cfg.Tiers)-1].MinSales != 0 {
		return errors.New("commission.tiers must end with a zero threshold")
	}
	return nil
}
