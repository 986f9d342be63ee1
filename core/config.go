package core

import (
	"fmt"
	"strings"
)

type CounterConfig struct {
	Name     string `koanf:"name" mapstructure:"name"`
	Baseline int64  `koanf:"baseline" mapstructure:"baseline"`
}

type IntakeConfig struct {
	MaxPerWindow  int    `koanf:"max_per_window" mapstructure:"max_per_window"`
	WindowSeconds int    `koanf:"window_seconds" mapstructure:"window_seconds"`
	EmailSubject  string `koanf:"email_subject" mapstructure:"email_subject"`
}

type Config struct {
	ServiceName string        `koanf:"service_name" mapstructure:"service_name"`
	Counter     CounterConfig `koanf:"counter" mapstructure:"counter"`
	Intake      IntakeConfig  `koanf:"intake" mapstructure:"intake"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "warranty",
		Counter: CounterConfig{
			Name:     DefaultCounterName,
			Baseline: BaselineClaimNumber,
		},
		Intake: IntakeConfig{
			MaxPerWindow:  60,
			WindowSeconds: 3600,
			EmailSubject:  "Your warranty claim",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Counter.Name) == "" {
		return fmt.Errorf("core: counter.name is required")
	}
	if c.Counter.Baseline < 0 {
		return fmt.Errorf("core: counter.baseline must be >= 0, got %d", c.Counter.Baseline)
	}
	return nil
}
