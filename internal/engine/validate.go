package engine

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfRange   = errors.New("engine: index out of range")
	ErrInvalidLevel = errors.New("engine: invalid level data")
)

// ValidateLevels checks the level list once at construction so that cursor
// arithmetic in the state machine never needs runtime bounds recovery.
func ValidateLevels(levels []Level) error {
	if len(levels) == 0 {
		return fmt.Errorf("%w: no levels", ErrInvalidLevel)
	}
	levelIDs := make(map[string]bool, len(levels))
	for i, lv := range levels {
		if lv.ID == "" {
			return fmt.Errorf("%w: level %d has no id", ErrInvalidLevel, i)
		}
		if levelIDs[lv.ID] {
			return fmt.Errorf("%w: duplicate level id %q", ErrInvalidLevel, lv.ID)
		}
		levelIDs[lv.ID] = true

		if len(lv.Rounds) == 0 {
			return fmt.Errorf("%w: level %q has no rounds", ErrInvalidLevel, lv.ID)
		}
		switch lv.PenaltyMode() {
		case HintPenaltyOnAward, HintPenaltyOnReveal:
		default:
			return fmt.Errorf("%w: level %q has unknown hint mode %q", ErrInvalidLevel, lv.ID, lv.HintMode)
		}
		if lv.Reward.NoHintBonus < 0 || lv.Reward.CompletionBonus < 0 {
			return fmt.Errorf("%w: level %q has a negative reward", ErrInvalidLevel, lv.ID)
		}

		roundIDs := make(map[string]bool, len(lv.Rounds))
		for j, r := range lv.Rounds {
			if r.ID == "" {
				return fmt.Errorf("%w: level %q round %d has no id", ErrInvalidLevel, lv.ID, j)
			}
			if roundIDs[r.ID] {
				return fmt.Errorf("%w: level %q duplicate round id %q", ErrInvalidLevel, lv.ID, r.ID)
			}
			roundIDs[r.ID] = true
			if r.Evaluator == nil {
				return fmt.Errorf("%w: round %s/%s has no evaluator", ErrInvalidLevel, lv.ID, r.ID)
			}
			if r.TimeLimitSeconds < 0 {
				return fmt.Errorf("%w: round %s/%s has negative time limit", ErrInvalidLevel, lv.ID, r.ID)
			}
			if r.BaseReward < 0 {
				return fmt.Errorf("%w: round %s/%s has negative base reward", ErrInvalidLevel, lv.ID, r.ID)
			}
			switch r.Objective {
			case "", ObjectiveMain, ObjectiveBonus:
			default:
				return fmt.Errorf("%w: round %s/%s has unknown objective %q", ErrInvalidLevel, lv.ID, r.ID, r.Objective)
			}
		}
	}
	return nil
}

// CheckCursor guards a level/round cursor against the validated level list.
func CheckCursor(levels []Level, levelIndex, roundIndex int) error {
	if levelIndex < 0 || levelIndex >= len(levels) {
		return fmt.Errorf("%w: level %d of %d", ErrOutOfRange, levelIndex, len(levels))
	}
	if roundIndex < 0 || roundIndex >= len(levels[levelIndex].Rounds) {
		return fmt.Errorf("%w: round %d of %d in level %q",
			ErrOutOfRange, roundIndex, len(levels[levelIndex].Rounds), levels[levelIndex].ID)
	}
	return nil
}
