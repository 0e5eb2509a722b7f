package experience

import (
	"fmt"
	"strings"

	"github.com/alem-hub/levelup/internal/domain/level"
	"github.com/alem-hub/levelup/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// POLICIES
// ══════════════════════════════════════════════════════════════════════════════

// CapOverflowPolicy decides what happens to points earned at the level cap.
type CapOverflowPolicy string

const (
	// CapOverflowContinue keeps accruing points past the cap.
	CapOverflowContinue CapOverflowPolicy = "continue"
	// CapOverflowDiscard drops additions once the user sits at the cap.
	CapOverflowDiscard CapOverflowPolicy = "discard"
	// CapOverflowClamp credits up to the cap ceiling and drops the rest.
	CapOverflowClamp CapOverflowPolicy = "clamp"
)

// ParseCapOverflowPolicy parses a configuration value.
func ParseCapOverflowPolicy(s string) (CapOverflowPolicy, error) {
	switch p := CapOverflowPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case CapOverflowContinue, CapOverflowDiscard, CapOverflowClamp:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown cap overflow policy %q", shared.ErrInvalidInput, s)
}

// CarryMode decides whether reaching a level spends its threshold.
type CarryMode string

const (
	// CarryCumulative compares the lifetime total against each threshold.
	CarryCumulative CarryMode = "cumulative"
	// CarryConsume subtracts each threshold as the level is reached.
	CarryConsume CarryMode = "consume"
)

// ParseCarryMode parses a configuration value.
func ParseCarryMode(s string) (CarryMode, error) {
	switch m := CarryMode(strings.ToLower(strings.TrimSpace(s))); m {
	case CarryCumulative, CarryConsume:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown points carry mode %q", shared.ErrInvalidInput, s)
}

// DeductPolicy decides whether deductions may go below zero.
type DeductPolicy string

const (
	DeductAllowNegative DeductPolicy = "allow_negative"
	DeductClampToZero   DeductPolicy = "clamp_to_zero"
)

// ParseDeductPolicy parses a configuration value.
func ParseDeductPolicy(s string) (DeductPolicy, error) {
	switch p := DeductPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case DeductAllowNegative, DeductClampToZero:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown deduct policy %q", shared.ErrInvalidInput, s)
}

// LevelCap bounds level progression.
type LevelCap struct {
	Enabled  bool
	Level    int
	Overflow CapOverflowPolicy
}

// Reached reports whether level is at or above an enabled cap.
func (c LevelCap) Reached(level int) bool {
	return c.Enabled && level >= c.Level
}

// Rules bundles the ledger policies.
type Rules struct {
	StartingLevel int
	Cap           LevelCap
	Carry         CarryMode
	Deduct        DeductPolicy
}

// DefaultRules mirrors the default configuration.
func DefaultRules() Rules {
	return Rules{
		StartingLevel: 1,
		Cap:           LevelCap{Enabled: true, Level: 100, Overflow: CapOverflowContinue},
		Carry:         CarryCumulative,
		Deduct:        DeductAllowNegative,
	}
}

// Validate checks the rules for internal consistency.
func (r Rules) Validate() error {
	var problems []string
	if r.StartingLevel < 1 {
		problems = append(problems, "starting level must be at least 1")
	}
	if r.Cap.Enabled && r.Cap.Level < 1 {
		problems = append(problems, "level cap must be at least 1")
	}
	if _, err := ParseCapOverflowPolicy(string(r.Cap.Overflow)); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := ParseCarryMode(string(r.Carry)); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := ParseDeductPolicy(string(r.Deduct)); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return shared.NewDomainError("experience", "ValidateRules", shared.ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION
// ══════════════════════════════════════════════════════════════════════════════

// LevelUp is one climbed rung.
type LevelUp struct {
	From int
	To   int
}

// AddOutcome describes the effect of Add.
type AddOutcome struct {
	Credited  int
	Discarded int
	// Total is the point balance right after crediting, before any
	// threshold was consumed by a level-up.
	Total    int
	LevelUps []LevelUp
}

// Changed reports whether the record was mutated.
func (o AddOutcome) Changed() bool {
	return o.Credited != 0 || len(o.LevelUps) > 0
}

// Seed credits the first amount of a freshly created record. The cap
// overflow policy does not apply: the record starts with the raw amount.
func (r Rules) Seed(e *Experience, amount int, ladder level.Ladder) AddOutcome {
	e.Points += amount
	out := AddOutcome{Credited: amount, Total: e.Points}
	out.LevelUps = r.Advance(e, ladder)
	return out
}

// Add credits amount to e under the cap policy and climbs the ladder.
func (r Rules) Add(e *Experience, amount int, ladder level.Ladder) AddOutcome {
	if r.Cap.Overflow == CapOverflowDiscard && r.Cap.Reached(e.Level) {
		return AddOutcome{Discarded: amount, Total: e.Points}
	}

	e.Points += amount
	out := AddOutcome{Credited: amount, Total: e.Points}
	out.LevelUps = r.Advance(e, ladder)

	if r.Cap.Overflow == CapOverflowClamp && r.Cap.Reached(e.Level) {
		if ceiling, ok := r.ceiling(e, ladder); ok && e.Points > ceiling {
			excess := e.Points - ceiling
			if excess > amount {
				excess = amount
			}
			e.Points -= excess
			out.Total -= excess
			out.Credited -= excess
			out.Discarded = excess
		}
	}
	return out
}

// Advance climbs while the next level exists, its threshold is met and the
// cap is not reached.
func (r Rules) Advance(e *Experience, ladder level.Ladder) []LevelUp {
	var ups []LevelUp
	for !r.Cap.Reached(e.Level) {
		next, ok := ladder.Next(e.Level)
		if !ok || e.Points < next.PointsToNextLevel {
			break
		}
		if r.Carry == CarryConsume {
			e.Points -= next.PointsToNextLevel
		}
		ups = append(ups, LevelUp{From: e.Level, To: next.Number})
		e.Level = next.Number
	}
	return ups
}

// DeductFrom removes amount from e and returns what was actually removed.
// Levels never go down.
func (r Rules) DeductFrom(e *Experience, amount int) int {
	deducted := amount
	if r.Deduct == DeductClampToZero && e.Points-amount < 0 {
		deducted = max(e.Points, 0)
	}
	e.Points -= deducted
	return deducted
}

// ceiling is the most points a capped user may hold.
func (r Rules) ceiling(e *Experience, ladder level.Ladder) (int, bool) {
	if r.Carry == CarryConsume {
		return 0, true
	}
	if lvl, ok := ladder.Get(r.Cap.Level); ok {
		return lvl.PointsToNextLevel, true
	}
	if lvl, ok := ladder.Get(e.Level); ok {
		return lvl.PointsToNextLevel, true
	}
	return 0, false
}
