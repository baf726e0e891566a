package payout

import "fmt"

// Policy maps risk tiers to reserve percentages and hold periods.
type Policy struct {
	ReservePercentLow    float64 `json:"reserve_percent_low" mapstructure:"reserve_percent_low" yaml:"reserve_percent_low"`
	ReservePercentMedium float64 `json:"reserve_percent_medium" mapstructure:"reserve_percent_medium" yaml:"reserve_percent_medium"`
	ReservePercentHigh   float64 `json:"reserve_percent_high" mapstructure:"reserve_percent_high" yaml:"reserve_percent_high"`

	DelayDaysLow    int `json:"delay_days_low" mapstructure:"delay_days_low" yaml:"delay_days_low"`
	DelayDaysMedium int `json:"delay_days_medium" mapstructure:"delay_days_medium" yaml:"delay_days_medium"`
	DelayDaysHigh   int `json:"delay_days_high" mapstructure:"delay_days_high" yaml:"delay_days_high"`
}

// DefaultPolicy returns the standard tiering: higher risk holds longer
// and withholds more.
func DefaultPolicy() Policy {
	return Policy{
		ReservePercentLow:    0,
		ReservePercentMedium: 10,
		ReservePercentHigh:   25,
		DelayDaysLow:         3,
		DelayDaysMedium:      7,
		DelayDaysHigh:        14,
	}
}

// ReservePercent returns the percentage withheld for level.
func (p Policy) ReservePercent(level RiskLevel) float64 {
	switch level {
	case RiskLow:
		return p.ReservePercentLow
	case RiskMedium:
		return p.ReservePercentMedium
	case RiskHigh:
		return p.ReservePercentHigh
	default:
		panic(fmt.Sprintf("payout: reserve for invalid risk level %d", uint8(level)))
	}
}

// DelayDays returns the default hold period for level.
func (p Policy) DelayDays(level RiskLevel) int {
	switch level {
	case RiskLow:
		return p.DelayDaysLow
	case RiskMedium:
		return p.DelayDaysMedium
	case RiskHigh:
		return p.DelayDaysHigh
	default:
		panic(fmt.Sprintf("payout: delay for invalid risk level %d", uint8(level)))
	}
}

// Validate checks percentages are within [0, 100] and delays are non-negative.
func (p Policy) Validate() error {
	for _, pct := range []float64{p.ReservePercentLow, p.ReservePercentMedium, p.ReservePercentHigh} {
		if pct < 0 || pct > 100 {
			return fmt.Errorf("payout: reserve percent %v out of range", pct)
		}
	}
	for _, d := range []int{p.DelayDaysLow, p.DelayDaysMedium, p.DelayDaysHigh} {
		if d < 0 {
			return fmt.Errorf("payout: negative delay %d", d)
		}
	}
	return nil
}
