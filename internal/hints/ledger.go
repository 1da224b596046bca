package hints

import (
	"errors"
	"fmt"
)

var (
	ErrNoRound     = errors.New("hints: no active round")
	ErrStaleRound  = errors.New("hints: round is not the active round")
	ErrOutOfRange  = errors.New("hints: hint index out of range")
	ErrNoHintsLeft = errors.New("hints: all hints revealed")
)

// Reveal describes the effect of one reveal request.
type Reveal struct {
	LevelID string `json:"levelId"`
	RoundID string `json:"roundId"`
	Index   int    `json:"index"`
	// Hints holds every hint revealed so far in the round, in order.
	Hints []string `json:"hints"`
	// Newly is how many hints this request revealed. Revealing index N
	// also reveals every earlier hint.
	Newly int `json:"newly"`
	// Charged is the part of Newly not already seen in an earlier attempt
	// at the same round.
	Charged         int  `json:"charged"`
	AlreadyRevealed bool `json:"alreadyRevealed,omitempty"`
}

// Ledger tracks hint reveals for the active round and the active level.
// Reveals are cumulative within an attempt. A retry hides them again but
// never charges the same hint twice.
type Ledger struct {
	levelID  string
	roundID  string
	hints    []string
	revealed int
	// seen is the most hints revealed in any attempt at the round. Only
	// reveals past it are charged.
	seen int

	usedInLevel int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// StartLevel resets both counters for a new level.
func (l *Ledger) StartLevel(levelID string) {
	l.levelID = levelID
	l.roundID = ""
	l.hints = nil
	l.revealed = 0
	l.seen = 0
	l.usedInLevel = 0
}

// StartRound clears the reveal markers. The per-level counter persists, as
// does the charged count when the active round is re-entered by a retry.
func (l *Ledger) StartRound(roundID string, hints []string) {
	if roundID != l.roundID || roundID == "" {
		l.seen = 0
	}
	l.roundID = roundID
	l.hints = append([]string(nil), hints...)
	l.revealed = 0
}

// Reset clears everything, used when a run starts over.
func (l *Ledger) Reset() {
	*l = Ledger{}
}

// Reveal marks hints up to and including index as revealed.
func (l *Ledger) Reveal(levelID, roundID string, index int) (Reveal, error) {
	if l.roundID == "" {
		return Reveal{}, ErrNoRound
	}
	if levelID != l.levelID || roundID != l.roundID {
		return Reveal{}, fmt.Errorf("%w: %s/%s", ErrStaleRound, levelID, roundID)
	}
	if len(l.hints) == 0 {
		return Reveal{}, fmt.Errorf("%w: round %s has no hints", ErrOutOfRange, roundID)
	}
	if index < 0 || index >= len(l.hints) {
		return Reveal{}, fmt.Errorf("%w: %d of %d", ErrOutOfRange, index, len(l.hints))
	}

	res := Reveal{LevelID: levelID, RoundID: roundID, Index: index}
	if index < l.revealed {
		res.AlreadyRevealed = true
	} else {
		res.Newly = index + 1 - l.revealed
		l.revealed = index + 1
		if l.revealed > l.seen {
			res.Charged = l.revealed - l.seen
			l.seen = l.revealed
			l.usedInLevel += res.Charged
		}
	}
	res.Hints = l.Revealed()
	return res, nil
}

// RevealNext reveals the first hidden hint.
func (l *Ledger) RevealNext(levelID, roundID string) (Reveal, error) {
	if l.roundID != "" && l.revealed >= len(l.hints) && len(l.hints) > 0 {
		return Reveal{}, ErrNoHintsLeft
	}
	return l.Reveal(levelID, roundID, l.revealed)
}

// Revealed returns a copy of the hints revealed in the current round.
func (l *Ledger) Revealed() []string {
	return append([]string(nil), l.hints[:l.revealed]...)
}

// RoundCount is the number of hints revealed in the current attempt.
func (l *Ledger) RoundCount() int { return l.revealed }

// ChargedCount is the number of hints charged against the current round
// across all its attempts.
func (l *Ledger) ChargedCount() int { return l.seen }

// LevelCount is the number of hints revealed across the current level.
func (l *Ledger) LevelCount() int { return l.usedInLevel }

// Available is the number of hints the current round offers.
func (l *Ledger) Available() int { return len(l.hints) }
