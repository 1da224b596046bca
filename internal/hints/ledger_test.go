package hints

import (
	"errors"
	"testing"
)

func newRound(t *testing.T) *Ledger {
	t.Helper()
	l := NewLedger()
	l.StartLevel("L1")
	l.StartRound("R1", []string{"first", "second", "third"})
	return l
}

func TestRevealIsCumulative(t *testing.T) {
	l := newRound(t)

	res, err := l.Reveal("L1", "R1", 1)
	if err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}
	if res.Newly != 2 {
		t.Errorf("expected 2 newly revealed, got %d", res.Newly)
	}
	if len(res.Hints) != 2 || res.Hints[0] != "first" || res.Hints[1] != "second" {
		t.Errorf("unexpected hints %v", res.Hints)
	}
	if l.RoundCount() != 2 || l.LevelCount() != 2 {
		t.Errorf("expected counts 2/2, got %d/%d", l.RoundCount(), l.LevelCount())
	}
}

func TestRevealIsPermanent(t *testing.T) {
	l := newRound(t)
	if _, err := l.Reveal("L1", "R1", 2); err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}

	res, err := l.Reveal("L1", "R1", 0)
	if err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}
	if !res.AlreadyRevealed || res.Newly != 0 {
		t.Errorf("expected already revealed no-op, got %+v", res)
	}
	if l.RoundCount() != 3 {
		t.Errorf("expected round count 3, got %d", l.RoundCount())
	}
}

func TestRoundResetKeepsLevelCount(t *testing.T) {
	l := newRound(t)
	if _, err := l.RevealNext("L1", "R1"); err != nil {
		t.Fatalf("RevealNext failed: %v", err)
	}

	l.StartRound("R2", []string{"only"})
	if l.RoundCount() != 0 {
		t.Errorf("expected round count reset, got %d", l.RoundCount())
	}
	if l.LevelCount() != 1 {
		t.Errorf("expected level count 1, got %d", l.LevelCount())
	}

	l.StartLevel("L2")
	if l.LevelCount() != 0 {
		t.Errorf("expected level count reset, got %d", l.LevelCount())
	}
}

func TestRevealErrors(t *testing.T) {
	l := NewLedger()
	if _, err := l.Reveal("L1", "R1", 0); !errors.Is(err, ErrNoRound) {
		t.Errorf("expected ErrNoRound, got %v", err)
	}

	l = newRound(t)
	if _, err := l.Reveal("L1", "R9", 0); !errors.Is(err, ErrStaleRound) {
		t.Errorf("expected ErrStaleRound, got %v", err)
	}
	if _, err := l.Reveal("L1", "R1", 3); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
	if _, err := l.Reveal("L1", "R1", -1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := l.RevealNext("L1", "R1"); err != nil {
			t.Fatalf("RevealNext %d failed: %v", i, err)
		}
	}
	if _, err := l.RevealNext("L1", "R1"); !errors.Is(err, ErrNoHintsLeft) {
		t.Errorf("expected ErrNoHintsLeft, got %v", err)
	}
}

func TestRevealedReturnsCopy(t *testing.T) {
	l := newRound(t)
	if _, err := l.Reveal("L1", "R1", 0); err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}
	got := l.Revealed()
	got[0] = "mutated"
	if l.Revealed()[0] != "first" {
		t.Error("Revealed must not expose internal storage")
	}
}

func TestRestartingRoundClearsReveals(t *testing.T) {
	l := newRound(t)
	if _, err := l.Reveal("L1", "R1", 1); err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}

	l.StartRound("R1", []string{"first", "second", "third"})
	if l.RoundCount() != 0 || len(l.Revealed()) != 0 {
		t.Errorf("a retried round starts with no reveals, got %d", l.RoundCount())
	}
	if l.ChargedCount() != 2 {
		t.Errorf("reveals from the missed attempt stay charged, got %d", l.ChargedCount())
	}

	res, err := l.Reveal("L1", "R1", 2)
	if err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}
	if res.Newly != 3 || res.Charged != 1 {
		t.Errorf("only the unseen hint is charged, got newly=%d charged=%d", res.Newly, res.Charged)
	}
	if l.LevelCount() != 3 || l.ChargedCount() != 3 {
		t.Errorf("level count must not double count, got %d/%d", l.LevelCount(), l.ChargedCount())
	}

	l.StartRound("R2", []string{"x"})
	if l.ChargedCount() != 0 {
		t.Errorf("a new round starts uncharged, got %d", l.ChargedCount())
	}
}
