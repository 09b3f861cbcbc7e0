// Package khata implements weighted multi-factor credit scoring for
// store-credit ("khata") customers.
//
// Each customer has 4 score components:
//   - Timeliness: how fast were credit entries repaid?
//   - Consistency: how often were repayments late?
//   - Outstanding risk: how close is the balance to its historical worst?
//   - Recency: how recently did the customer last pay anything?
//
// Score = 300 + 600 × (0.40×timeliness + 0.25×consistency
//               + 0.20×outstanding + 0.15×recency)
//
// The result is clamped to [300, 900] and smoothed against the previously
// stored score so a single event cannot swing the score by more than
// MaxScoreDelta. The credit limit is always a pure step function of the
// score and is rewritten on every recalculation.
package khata

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/dukaan-labs/dukaan/internal/domain"
	"github.com/dukaan-labs/dukaan/internal/infra/observability"
)

// ─── Constants ──────────────────────────────────────────────────────────────

const (
	// Component weights (sum to 1.0)
	WeightTimeliness  = 0.40
	WeightConsistency = 0.25
	WeightOutstanding = 0.20
	WeightRecency     = 0.15

	// Timeliness bands: contribution per paid entry by days-to-pay.
	FastPayDays   = 7  // ≤7 days  → 1.0
	OnTimePayDays = 15 // ≤15 days → 0.8
	SlowPayDays   = 30 // ≤30 days → 0.5; beyond → 0.2

	ContribFast    = 1.0
	ContribOnTime  = 0.8
	ContribSlow    = 0.5
	ContribLate    = 0.2
	ContribPending = 0.0

	// LateThresholdDays marks a paid entry as "late" for the consistency
	// component. Entries that were never paid do not count as late here;
	// they are already penalized through the timeliness component.
	LateThresholdDays = 15

	// Recency bands by days since last payment.
	RecentPayDays = 15 // ≤15 days → 1.0
	StalePayDays  = 30 // ≤30 days → 0.7; beyond → 0.4

	RecencyFresh = 1.0
	RecencyStale = 0.7
	RecencyOld   = 0.4
	RecencyNone  = 0.0 // No payment on record

	// Score range and default.
	MinScore     = 300
	MaxScore     = 900
	DefaultScore = 600

	// MaxScoreDelta caps how far one recalculation can move the stored
	// score, in either direction.
	MaxScoreDelta = 100

	// MinEntriesForScore is the minimum number of khata entries required
	// before a score is computed instead of the default.
	MinEntriesForScore = 1

	// PendingReminderThreshold: above this many pending khata entries the
	// status explanation appends a clear-your-dues reminder.
	PendingReminderThreshold = 2
)

// ─── Credit Limit Tiers ─────────────────────────────────────────────────────

// limitTier maps a minimum score to a credit limit in rupees.
type limitTier struct {
	minScore int
	limit    int64
}

// limitTiers is ordered highest threshold first.
var limitTiers = []limitTier{
	{800, 10000},
	{700, 6000},
	{600, 3000},
	{500, 1000},
}

// CalculateLimit returns the credit limit for a score. Scores below the
// lowest tier get no credit at all.
func CalculateLimit(score int) int64 {
	for _, t := range limitTiers {
		if score >= t.minScore {
			return t.limit
		}
	}
	return 0
}

// EffectiveLimit returns the credit limit that governs the customer right
// now. A customer who has never been through a recalculation is stored
// with score 0 and limit 0; they are treated as carrying the default
// score and its limit, so a first khata purchase can happen at all.
func EffectiveLimit(c *domain.Customer) int64 {
	if c.LastScoreUpdate != nil {
		return c.KhataLimit
	}
	score := c.KhataScore
	if score == 0 {
		score = DefaultScore
	}
	return CalculateLimit(score)
}

// EffectiveCredit returns how much more the customer may buy on khata
// under the effective limit. Never negative.
func EffectiveCredit(c *domain.Customer) int64 {
	avail := EffectiveLimit(c) - c.ActiveKhataAmount
	if avail < 0 {
		return 0
	}
	return avail
}

// ─── Engine ─────────────────────────────────────────────────────────────────

// Store is the persistence surface the engine needs: customer lookup with
// khata aggregates, khata-mode ledger history, and the score write-back.
type Store interface {
	GetCustomer(phone string) (*domain.Customer, error)
	LedgerEntries(phone string, mode domain.PaymentMode) ([]domain.LedgerEntry, error)
	PendingEntries(phone string, mode domain.PaymentMode) ([]domain.LedgerEntry, error)
	SaveScore(phone string, score int, limit int64, at time.Time) error
}

// Engine recomputes and explains khata scores.
type Engine struct {
	store Store

	// Injectable clock for testing.
	now func() time.Time
}

// NewEngine creates a score engine over the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// ─── Recalculation ──────────────────────────────────────────────────────────

// Recalculate recomputes the customer's score from their khata ledger
// history and persists the smoothed score, the derived limit, and the
// recalculation timestamp. Missing customers and customers without any
// khata history yield DefaultScore with no write.
func (e *Engine) Recalculate(ctx context.Context, phone string) (int, error) {
	cust, err := e.store.GetCustomer(phone)
	if err != nil {
		return 0, err
	}
	if cust == nil {
		observability.ScoreRecalculations.WithLabelValues("missing_customer").Inc()
		return DefaultScore, nil
	}

	entries, err := e.store.LedgerEntries(phone, domain.PayKhata)
	if err != nil {
		return 0, err
	}
	if len(entries) < MinEntriesForScore {
		log.Printf("khata: %s has no credit history, keeping default score %d", phone, DefaultScore)
		observability.ScoreRecalculations.WithLabelValues("no_history").Inc()
		return DefaultScore, nil
	}

	now := e.now()
	composite := WeightTimeliness*timelinessScore(entries) +
		WeightConsistency*consistencyScore(entries) +
		WeightOutstanding*outstandingScore(cust) +
		WeightRecency*recencyScore(cust, now)

	raw := clampScore(int(math.Round(MinScore + composite*(MaxScore-MinScore))))

	prev := cust.KhataScore
	if prev == 0 {
		prev = DefaultScore
	}
	score := smooth(prev, raw)
	limit := CalculateLimit(score)

	if err := e.store.SaveScore(phone, score, limit, now); err != nil {
		return 0, err
	}
	observability.ScoreRecalculations.WithLabelValues("scored").Inc()
	observability.ScoreDistribution.Observe(float64(score))
	return score, nil
}

// ─── Status / Explanation ───────────────────────────────────────────────────

// CreditStatus is the read-only projection shown to the customer.
type CreditStatus struct {
	PhoneNumber     string   `json:"phone_number"`
	Score           int      `json:"score"`
	Limit           int64    `json:"limit"`
	AvailableCredit int64    `json:"available_credit"`
	Outstanding     int64    `json:"outstanding"`
	Reasons         []string `json:"reasons"`
}

// Status explains the customer's current score without recomputing it.
// Returns domain.ErrCustomerNotFound for unknown phone numbers.
func (e *Engine) Status(ctx context.Context, phone string) (*CreditStatus, error) {
	cust, err := e.store.GetCustomer(phone)
	if err != nil {
		return nil, err
	}
	if cust == nil {
		return nil, domain.ErrCustomerNotFound
	}

	score := cust.KhataScore
	if score == 0 {
		score = DefaultScore
	}
	limit := EffectiveLimit(cust)
	avail := EffectiveCredit(cust)

	reasons := []string{scoreBandComment(score)}

	pending, err := e.store.PendingEntries(phone, domain.PayKhata)
	if err != nil {
		return nil, err
	}
	if len(pending) > PendingReminderThreshold {
		reasons = append(reasons, pendingReminder(len(pending)))
	}

	return &CreditStatus{
		PhoneNumber:     cust.PhoneNumber,
		Score:           score,
		Limit:           limit,
		AvailableCredit: avail,
		Outstanding:     cust.ActiveKhataAmount,
		Reasons:         reasons,
	}, nil
}

// ─── Score Components ───────────────────────────────────────────────────────

// timelinessScore averages the per-entry repayment-speed contribution.
// Pending entries drag the average down with a zero contribution.
func timelinessScore(entries []domain.LedgerEntry) float64 {
	var sum float64
	for _, e := range entries {
		sum += payContribution(&e)
	}
	return sum / float64(len(entries))
}

// payContribution maps one entry's days-to-pay onto a [0, 1] contribution.
func payContribution(e *domain.LedgerEntry) float64 {
	days := e.DaysToPay()
	switch {
	case days < 0:
		return ContribPending
	case days <= FastPayDays:
		return ContribFast
	case days <= OnTimePayDays:
		return ContribOnTime
	case days <= SlowPayDays:
		return ContribSlow
	default:
		return ContribLate
	}
}

// consistencyScore is 1 minus the late-payment ratio. Only entries that
// were eventually paid can be late — a pending entry is not "late" here,
// it is scored as zero in timeliness instead.
func consistencyScore(entries []domain.LedgerEntry) float64 {
	late := 0
	for _, e := range entries {
		if e.Paid() && e.DaysToPay() > LateThresholdDays {
			late++
		}
	}
	return 1 - float64(late)/float64(len(entries))
}

// outstandingScore compares the current balance against the historical
// worst. A customer at their all-time-high balance scores 0; a customer
// with nothing outstanding scores 1. The historical maximum is floored at
// 1 so a fresh customer cannot divide by zero.
func outstandingScore(c *domain.Customer) float64 {
	histMax := c.MaxHistoricalKhataAmount
	if histMax < 1 {
		histMax = 1
	}
	s := 1 - float64(c.ActiveKhataAmount)/float64(histMax)
	return clamp01(s)
}

// recencyScore rewards customers who paid something recently.
func recencyScore(c *domain.Customer, now time.Time) float64 {
	if c.LastPaymentDate == nil {
		return RecencyNone
	}
	days := now.Sub(*c.LastPaymentDate).Hours() / 24
	switch {
	case days <= RecentPayDays:
		return RecencyFresh
	case days <= StalePayDays:
		return RecencyStale
	default:
		return RecencyOld
	}
}

// ─── Explanation Text ───────────────────────────────────────────────────────

func scoreBandComment(score int) string {
	switch {
	case score < 500:
		return "Your khata score is low. Clear pending dues on time to rebuild trust."
	case score < 700:
		return "Your khata score is fair. Pay within 15 days to improve it."
	default:
		return "Your khata score is excellent. Keep settling on time."
	}
}

func pendingReminder(count int) string {
	return fmt.Sprintf("You have %d unpaid khata entries. Clearing them will raise your score.", count)
}

// ─── Pure Helper Functions ──────────────────────────────────────────────────

// smooth clamps the change from prev to next at ±MaxScoreDelta.
func smooth(prev, next int) int {
	if next > prev+MaxScoreDelta {
		return prev + MaxScoreDelta
	}
	if next < prev-MaxScoreDelta {
		return prev - MaxScoreDelta
	}
	return next
}

// clampScore restricts a score to [MinScore, MaxScore].
func clampScore(s int) int {
	if s < MinScore {
		return MinScore
	}
	if s > MaxScore {
		return MaxScore
	}
	return s
}

// clamp01 restricts a value to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
