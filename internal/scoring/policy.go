package scoring

import (
	"errors"
	"fmt"
	"sort"

	"github.com/MJE43/levelup/internal/engine"
)

var ErrInvalidPolicy = errors.New("scoring: invalid policy")

// Tier is a streak multiplier threshold.
type Tier struct {
	MinStreak  int `json:"minStreak" toml:"min_streak"`
	Multiplier int `json:"multiplier" toml:"multiplier"`
}

// Policy holds the scoring constants. The zero value awards nothing; use
// DefaultPolicy as a starting point.
type Policy struct {
	BaseReward    int    `json:"baseReward"`
	BonusReward   int    `json:"bonusReward"`
	TimeBonusMax  int    `json:"timeBonusMax"`
	HintPenalty   int    `json:"hintPenalty"`
	FirstTryBonus int    `json:"firstTryBonus"`
	Tiers         []Tier `json:"tiers"`
}

// DefaultPolicy returns the standard constants used by all bundled games.
func DefaultPolicy() Policy {
	return Policy{
		BaseReward:    100,
		BonusReward:   50,
		TimeBonusMax:  50,
		HintPenalty:   10,
		FirstTryBonus: 50,
		Tiers: []Tier{
			{MinStreak: 3, Multiplier: 2},
			{MinStreak: 5, Multiplier: 3},
		},
	}
}

// Validate rejects negative constants and meaningless tiers.
func (p Policy) Validate() error {
	if p.BaseReward < 0 || p.BonusReward < 0 || p.TimeBonusMax < 0 || p.HintPenalty < 0 || p.FirstTryBonus < 0 {
		return fmt.Errorf("%w: constants must be non-negative", ErrInvalidPolicy)
	}
	for _, t := range p.Tiers {
		if t.MinStreak < 1 {
			return fmt.Errorf("%w: tier min streak %d must be at least 1", ErrInvalidPolicy, t.MinStreak)
		}
		if t.Multiplier < 1 {
			return fmt.Errorf("%w: tier multiplier %d must be at least 1", ErrInvalidPolicy, t.Multiplier)
		}
	}
	return nil
}

// Multiplier returns the multiplier of the highest tier reached by streak.
func (p Policy) Multiplier(streak int) int {
	tiers := append([]Tier(nil), p.Tiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinStreak < tiers[j].MinStreak })

	mult := 1
	for _, t := range tiers {
		if streak >= t.MinStreak {
			mult = t.Multiplier
		}
	}
	return mult
}

// Context is the pre-transition state the policy reads.
type Context struct {
	// Streak before this outcome is applied.
	Streak           int
	TimeLimitSeconds int
	TimeRemaining    int
	HintsThisRound   int
	Objective        engine.Objective
	// BaseReward overrides the policy base when positive.
	BaseReward int
	FirstTry   bool
	// FirstTryEligible is set for rounds that opt into the first-try bonus.
	FirstTryEligible bool
	// ChargeHints is false when the level already charged hints at reveal.
	ChargeHints bool
}

// Delta itemizes the points awarded for one outcome.
type Delta struct {
	Base        int `json:"base"`
	TimeBonus   int `json:"timeBonus"`
	Multiplier  int `json:"multiplier"`
	FirstTry    int `json:"firstTry"`
	HintPenalty int `json:"hintPenalty"`
	Points      int `json:"points"`
}

// Score computes the points for an outcome. It is pure: the caller applies
// the resulting streak and score changes afterwards.
//
// The multiplier tier is looked up on the streak this answer would produce,
// derived from the pre-transition streak in ctx. A partial-credit outcome
// scales only the base, rounded half up.
func (p Policy) Score(out engine.Outcome, ctx Context) Delta {
	if !out.IsCorrect() {
		return Delta{Multiplier: 1}
	}

	base := p.base(ctx)
	if out.Credit > 0 {
		base = (base*out.Credit + 50) / 100
	}
	d := Delta{
		Base:       base,
		TimeBonus:  p.timeBonus(ctx.TimeLimitSeconds, ctx.TimeRemaining),
		Multiplier: p.Multiplier(ctx.Streak + 1),
	}
	if ctx.FirstTry && ctx.FirstTryEligible {
		d.FirstTry = p.FirstTryBonus
	}
	if ctx.ChargeHints {
		d.HintPenalty = ctx.HintsThisRound * p.HintPenalty
	}

	d.Points = (d.Base+d.TimeBonus)*d.Multiplier + d.FirstTry - d.HintPenalty
	if d.Points < 0 {
		d.Points = 0
	}
	return d
}

// MaxPoints is the best unmultiplied award a round can yield, used for the
// percent-of-maximum summary.
func (p Policy) MaxPoints(ctx Context) int {
	best := p.base(ctx)
	if ctx.TimeLimitSeconds > 0 {
		best += p.TimeBonusMax
	}
	if ctx.FirstTryEligible {
		best += p.FirstTryBonus
	}
	return best
}

// ChargeReveal applies an immediate hint penalty without going below floor.
func (p Policy) ChargeReveal(score, floor int) int {
	next := score - p.HintPenalty
	if next < floor {
		return floor
	}
	return next
}

// LevelBonus is awarded once when a level completes.
func (p Policy) LevelBonus(reward engine.LevelReward, hintsUsedInLevel int) int {
	bonus := reward.CompletionBonus
	if hintsUsedInLevel == 0 {
		bonus += reward.NoHintBonus
	}
	return bonus
}

func (p Policy) base(ctx Context) int {
	if ctx.BaseReward > 0 {
		return ctx.BaseReward
	}
	if ctx.Objective == engine.ObjectiveBonus {
		return p.BonusReward
	}
	return p.BaseReward
}

// timeBonus is floor(remaining/limit * max), clamped to [0, max].
func (p Policy) timeBonus(limit, remaining int) int {
	if limit <= 0 || remaining <= 0 {
		return 0
	}
	if remaining > limit {
		remaining = limit
	}
	return remaining * p.TimeBonusMax / limit
}
