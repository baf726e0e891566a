package payout

import "fmt"

// RiskLevel is a creator's risk tier. The zero value is not a valid level.
type RiskLevel uint8

const (
	RiskLow RiskLevel = iota + 1
	RiskMedium
	RiskHigh
)

// String implements fmt.Stringer.
func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "LOW"
	case RiskMedium:
		return "MEDIUM"
	case RiskHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("RiskLevel(%d)", uint8(r))
	}
}

// Valid reports whether r is one of the three tiers.
func (r RiskLevel) Valid() bool {
	return r >= RiskLow && r <= RiskHigh
}

// ParseRiskLevel parses "LOW", "MEDIUM" or "HIGH".
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch s {
	case "LOW":
		return RiskLow, nil
	case "MEDIUM":
		return RiskMedium, nil
	case "HIGH":
		return RiskHigh, nil
	default:
		return 0, fmt.Errorf("payout: unknown risk level %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r RiskLevel) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("payout: invalid risk level %d", uint8(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RiskLevel) UnmarshalText(data []byte) error {
	parsed, err := ParseRiskLevel(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
