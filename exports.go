package treasury

import "github.com/xraph/treasury/types"

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Money constructors and cent arithmetic
var (
	USD       = types.USD
	EUR       = types.EUR
	GBP       = types.GBP
	Cents     = types.Cents
	Zero      = types.Zero
	Sum       = types.Sum
	PercentOf = types.PercentOf
	Scale     = types.Scale
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
