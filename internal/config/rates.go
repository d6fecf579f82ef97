package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RateConfig is the per-minute tariff table keyed by vehicle class.
type RateConfig struct {
	RatesPerMinute map[string]float64 `mapstructure:"ratesPerMinute"`
}

func DefaultRateConfig() RateConfig {
	return RateConfig{
		RatesPerMinute: map[string]float64{
			"2W": 1.0,
			"4W": 2.0,
		},
	}
}

// RatePerMinute returns the tariff for a vehicle class, case-insensitive.
// The second value is false when the class is not tariffed.
func (c RateConfig) RatePerMinute(vehicleType string) (float64, bool) {
	rate, ok := c.RatesPerMinute[strings.ToUpper(strings.TrimSpace(vehicleType))]
	return rate, ok
}

type RateConfigHolder struct {
	current atomic.Value // holds RateConfig
}

func NewRateConfigHolder() (*RateConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("rates")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/parkway/config") // Volume-mounted config
	v.AddConfigPath("/etc/parkway")            // System config
	v.AddConfigPath(".")                       // Current directory (dev mode)

	v.SetEnvPrefix("PARKWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// if config file not found, use defaults
		defaults := DefaultRateConfig()
		v.SetDefault("billing.ratesPerMinute", defaults.RatesPerMinute)
	}

	var cfg RateConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	cfg = normalizeRateConfig(cfg)
	if err := validateRateConfig(cfg); err != nil {
		return nil, err
	}

	holder := &RateConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated RateConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[rate-config] reload failed: %v", err)
			return
		}
		updated = normalizeRateConfig(updated)
		if err := validateRateConfig(updated); err != nil {
			log.Printf("[rate-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[rate-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *RateConfigHolder) Get() RateConfig {
	return h.current.Load().(RateConfig)
}

// NewStaticRateHolder builds a holder with a fixed table, used in tests.
func NewStaticRateHolder(cfg RateConfig) *RateConfigHolder {
	holder := &RateConfigHolder{}
	holder.current.Store(normalizeRateConfig(cfg))
	return holder
}

func normalizeRateConfig(cfg RateConfig) RateConfig {
	normalized := RateConfig{RatesPerMinute: make(map[string]float64, len(cfg.RatesPerMinute))}
	for class, rate := range cfg.RatesPerMinute {
		normalized.RatesPerMinute[strings.ToUpper(strings.TrimSpace(class))] = rate
	}
	return normalized
}

func validateRateConfig(cfg RateConfig) error {
	if len(cfg.RatesPerMinute) == 0 {
		return errors.New("billing.ratesPerMinute cannot be empty")
	}
	for class, rate := range cfg.RatesPerMinute {
		if class == "" {
			return errors.New("billing.ratesPerMinute contains an empty vehicle class")
		}
		if rate < 0 {
			return errors.New("billing.ratesPerMinute contains a negative rate")
		}
	}
	return nil
}
