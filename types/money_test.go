package types

import (
	"encoding/json"
	"testing"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		amount   int64
		currency string
		display  string
	}{
		{"USD", USD(4900), 4900, "usd", "$49.00"},
		{"EUR", EUR(19900), 19900, "eur", "€199.00"},
		{"GBP", GBP(9900), 9900, "gbp", "£99.00"},
		{"Cents upper", Cents(150, "CHF"), 150, "chf", "CHF 1.50"},
		{"Zero USD", Zero("USD"), 0, "usd", "$0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.money.Amount, tt.amount)
			}
			if tt.money.Currency != tt.currency {
				t.Errorf("Currency: got %s, want %s", tt.money.Currency, tt.currency)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestPercentOf(t *testing.T) {
	tests := []struct {
		name  string
		cents int64
		pct   float64
		want  int64
	}{
		{"zero amount", 0, 10, 0},
		{"zero pct", 1000, 0, 0},
		{"exact", 1000, 10, 100},
		{"floors", 999, 10, 99},
		{"fractional pct", 1000, 2.5, 25},
		{"one cent", 1, 50, 0},
		{"full", 1234, 100, 1234},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PercentOf(tt.cents, tt.pct); got != tt.want {
				t.Errorf("PercentOf(%d, %v) = %d, want %d", tt.cents, tt.pct, got, tt.want)
			}
		})
	}
}

func TestScale(t *testing.T) {
	tests := []struct {
		name  string
		cents int64
		mult  float64
		want  int64
	}{
		{"identity", 1000, 1.0, 1000},
		{"reduce", 1000, 0.85, 850},
		{"boost", 1000, 1.15, 1150},
		{"floors", 7, 0.85, 5},
		{"float noise", 100, 1.1, 110},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Scale(tt.cents, tt.mult); got != tt.want {
				t.Errorf("Scale(%d, %v) = %d, want %d", tt.cents, tt.mult, got, tt.want)
			}
		})
	}
}

func TestPerMilleAndRatio(t *testing.T) {
	if got := PerMille(2500); got != 2 {
		t.Errorf("PerMille(2500) = %d, want 2", got)
	}
	if got := PerMille(999); got != 0 {
		t.Errorf("PerMille(999) = %d, want 0", got)
	}
	if got := Ratio(250, 1000); got != 25 {
		t.Errorf("Ratio(250, 1000) = %v, want 25", got)
	}
	if got := Ratio(5, 0); got != 0 {
		t.Errorf("Ratio(5, 0) = %v, want 0", got)
	}
}

func TestMoneyPercentAndScale(t *testing.T) {
	m := USD(1999)
	if got := m.Percent(25); !got.Equal(USD(499)) {
		t.Errorf("Percent: got %v, want %v", got, USD(499))
	}
	if got := m.Scale(0.5); !got.Equal(USD(999)) {
		t.Errorf("Scale: got %v, want %v", got, USD(999))
	}
}

func TestMoneyArithmetic(t *testing.T) {
	if got := USD(100).Add(USD(200)); !got.Equal(USD(300)) {
		t.Errorf("Add: got %v", got)
	}
	if got := USD(500).Subtract(USD(200)); !got.Equal(USD(300)) {
		t.Errorf("Subtract: got %v", got)
	}
	if got := USD(100).Negate(); !got.IsNegative() {
		t.Errorf("Negate: got %v", got)
	}
	if got := Sum(USD(1), USD(2), USD(3)); !got.Equal(USD(6)) {
		t.Errorf("Sum: got %v", got)
	}
	if got := USD(-250).String(); got != "$-2.50" {
		t.Errorf("negative display: got %s", got)
	}
}

func TestMoneyCurrencyMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on currency mismatch")
		}
	}()
	_ = USD(100).Add(EUR(100))
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(USD(4900))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["display"] != "$49.00" {
		t.Errorf("display: got %v", got["display"])
	}
	if got["amount"] != float64(4900) {
		t.Errorf("amount: got %v", got["amount"])
	}
}
