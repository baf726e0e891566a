package audithook

// Action constants for audit events.
const (
	// Wallet and budget actions
	ActionWalletDeposited    = "wallet.deposited"
	ActionBudgetLocked       = "budget.locked"
	ActionBudgetReleased     = "budget.released"
	ActionBudgetSpent        = "budget.spent"
	ActionCampaignAutoPaused = "campaign.auto_paused"

	// Journal actions
	ActionJournalAppended = "journal.appended"
	ActionJournalReversed = "journal.reversed"

	// Payout actions
	ActionPayoutEnqueued  = "payout.enqueued"
	ActionPayoutReleased  = "payout.released"
	ActionPayoutCancelled = "payout.cancelled"
	ActionPayoutFrozen    = "payout.frozen"

	// Failure actions
	ActionOperationFailed = "operation.failed"
)

// Resource constants for audit events.
const (
	ResourceWallet   = "wallet"
	ResourceCampaign = "campaign"
	ResourceJournal  = "journal_entry"
	ResourcePayout   = "payout"
	ResourceEngine   = "engine"
)

// Category constants for audit events.
const (
	CategoryFunding = "funding"
	CategoryBudget  = "budget"
	CategoryLedger  = "ledger"
	CategoryPayout  = "payout"
	CategorySystem  = "system"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
