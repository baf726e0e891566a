// Package pacing compares a campaign's actual spend velocity against its
// linear target and turns the gap into a per-event billing decision.
//
// The controller is pure. It reads a campaign snapshot and a clock value
// and never touches storage, so callers may invoke it without locks.
package pacing

import (
	"fmt"
	"math"
	"time"

	"github.com/xraph/treasury/campaign"
	"github.com/xraph/treasury/types"
)

// DefaultSyntheticWindow is the delivery window assumed for campaigns
// without an end date.
const DefaultSyntheticWindow = 30 * 24 * time.Hour

// Delivery thresholds, in percentage points of variance.
const (
	OverDeliveryThreshold  = 20.0
	UnderDeliveryThreshold = -50.0
)

// Decision bounds.
const (
	MinFactor = 0.5
	MaxFactor = 1.5
)

// ReasonDataUnavailable is reported when a decision is made without
// pacing data.
const ReasonDataUnavailable = "pacing data unavailable"

// Action is the recommended pacing adjustment.
type Action string

const (
	ActionBoost    Action = "BOOST"
	ActionMaintain Action = "MAINTAIN"
	ActionReduce   Action = "REDUCE"
	ActionNone     Action = "NONE"
)

// Status is a point-in-time pacing evaluation of one campaign.
type Status struct {
	CampaignID              string     `json:"campaign_id"`
	Mode                    string     `json:"mode"`
	WindowStart             time.Time  `json:"window_start"`
	WindowEnd               time.Time  `json:"window_end"`
	TotalHours              float64    `json:"total_hours"`
	ElapsedHours            float64    `json:"elapsed_hours"`
	RemainingHours          float64    `json:"remaining_hours"`
	TargetProgressPercent   float64    `json:"target_progress_percent"`
	DeliveryProgressPercent float64    `json:"delivery_progress_percent"`
	TargetSpendPerHour      float64    `json:"target_spend_per_hour"`
	ActualSpendPerHour      float64    `json:"actual_spend_per_hour"`
	Variance                float64    `json:"variance"`
	IsOverDelivering        bool       `json:"is_over_delivering"`
	IsUnderDelivering       bool       `json:"is_under_delivering"`
	RecommendedAction       Action     `json:"recommended_action"`
	PredictedExhaustionDate *time.Time `json:"predicted_exhaustion_date,omitempty"`
}

// Metrics converts the status into the form persisted on the campaign.
func (s Status) Metrics(at time.Time) campaign.PacingMetrics {
	at = at.UTC()
	return campaign.PacingMetrics{
		DeliveryProgressPercent: s.DeliveryProgressPercent,
		IsOverDelivering:        s.IsOverDelivering,
		IsUnderDelivering:       s.IsUnderDelivering,
		LastPacingCheckAt:       &at,
	}
}

// Decision is the throttle outcome for a single billable event.
type Decision struct {
	ShouldBill  bool    `json:"should_bill"`
	Probability float64 `json:"probability"`
	Multiplier  float64 `json:"multiplier"`
	Reason      string  `json:"reason"`
	Status      *Status `json:"status,omitempty"`
}

// FailOpen is the decision used when pacing data cannot be loaded.
func FailOpen() Decision {
	return Decision{ShouldBill: true, Probability: 1, Multiplier: 1, Reason: ReasonDataUnavailable}
}

// Controller evaluates pacing. The zero value is not usable; use New.
type Controller struct {
	window time.Duration
	rand   RandSource
}

// Option configures a Controller.
type Option func(*Controller)

// WithSyntheticWindow sets the window assumed when a campaign has no end date.
func WithSyntheticWindow(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.window = d
		}
	}
}

// WithRand sets the random source consulted for probabilistic billing.
func WithRand(r RandSource) Option {
	return func(c *Controller) {
		if r != nil {
			c.rand = r
		}
	}
}

// New creates a Controller.
func New(opts ...Option) *Controller {
	c := &Controller{
		window: DefaultSyntheticWindow,
		rand:   DefaultRandSource(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Window returns the start and end of the delivery window for cmp.
func (c *Controller) Window(cmp *campaign.Campaign) (time.Time, time.Time) {
	start := cmp.CreatedAt
	if cmp.StartDate != nil {
		start = *cmp.StartDate
	}
	end := start.Add(c.window)
	if cmp.EndDate != nil {
		end = *cmp.EndDate
	}
	return start.UTC(), end.UTC()
}

// Status evaluates cmp at now.
func (c *Controller) Status(cmp *campaign.Campaign, now time.Time) Status {
	start, end := c.Window(cmp)
	s := Status{
		CampaignID:  cmp.ID.String(),
		Mode:        string(cmp.Mode()),
		WindowStart: start,
		WindowEnd:   end,
	}

	s.TotalHours = math.Max(0, end.Sub(start).Hours())
	s.ElapsedHours = clamp(now.Sub(start).Hours(), 0, s.TotalHours)
	s.RemainingHours = s.TotalHours - s.ElapsedHours

	total := cmp.TotalBudgetCents
	spent := cmp.SpentBudgetCents

	if s.TotalHours > 0 {
		s.TargetProgressPercent = s.ElapsedHours / s.TotalHours * 100
		s.TargetSpendPerHour = float64(total) / s.TotalHours
	}
	s.DeliveryProgressPercent = types.Ratio(spent, total)
	if s.ElapsedHours > 0 {
		s.ActualSpendPerHour = float64(spent) / s.ElapsedHours
	}

	s.Variance = s.DeliveryProgressPercent - s.TargetProgressPercent
	s.IsOverDelivering = s.Variance > OverDeliveryThreshold
	s.IsUnderDelivering = s.Variance < UnderDeliveryThreshold

	switch {
	case !cmp.IsActive() || total <= 0:
		s.RecommendedAction = ActionNone
	case s.IsOverDelivering:
		s.RecommendedAction = ActionReduce
	case s.IsUnderDelivering:
		s.RecommendedAction = ActionBoost
	default:
		s.RecommendedAction = ActionMaintain
	}

	if s.ActualSpendPerHour > 0 && total > spent {
		hours := float64(total-spent) / s.ActualSpendPerHour
		at := now.UTC().Add(time.Duration(hours * float64(time.Hour)))
		s.PredictedExhaustionDate = &at
	}

	return s
}

// Throttle decides whether an event for cmp should be billed and at what
// CPM multiplier. creatorTrust and velocityRisk are scores in [0, 100].
func (c *Controller) Throttle(cmp *campaign.Campaign, now time.Time, creatorTrust, velocityRisk float64) Decision {
	if !cmp.PacingEnabled {
		return Decision{ShouldBill: true, Probability: 1, Multiplier: 1, Reason: "pacing disabled"}
	}

	status := c.Status(cmp, now)
	boost := trustBoost(creatorTrust)
	penalty := riskPenalty(velocityRisk)

	probability := 1.0
	multiplier := boost
	reason := "on track"

	switch {
	case status.IsOverDelivering:
		switch cmp.Mode() {
		case campaign.PacingConservative:
			probability, multiplier = 0.7, 0.7
		case campaign.PacingAccelerated:
			multiplier = boost
		default:
			probability, multiplier = 1.0, 0.85
		}
		reason = fmt.Sprintf("over-delivering (%s)", cmp.Mode())
	case status.IsUnderDelivering:
		if creatorTrust > 60 && velocityRisk < 50 {
			probability, multiplier = 1.2, 1.15
			reason = "under-delivering, trusted creator boost"
		} else {
			probability, multiplier = 1.0, 1.0
			reason = "under-delivering"
		}
	}

	probability = clamp(probability*penalty, MinFactor, MaxFactor)
	multiplier = clamp(multiplier*penalty, MinFactor, MaxFactor)
	if penalty < 1 {
		reason += fmt.Sprintf(", risk penalty %.1f", penalty)
	}

	return Decision{
		ShouldBill:  probability >= 1 || c.rand.Float64() < probability,
		Probability: probability,
		Multiplier:  multiplier,
		Reason:      reason,
		Status:      &status,
	}
}

func trustBoost(trust float64) float64 {
	switch {
	case trust > 70:
		return 1.1
	case trust > 50:
		return 1.0
	default:
		return 0.9
	}
}

func riskPenalty(risk float64) float64 {
	switch {
	case risk > 70:
		return 0.5
	case risk > 50:
		return 0.8
	default:
		return 1.0
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
