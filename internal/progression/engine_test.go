package progression

import (
	"errors"
	"sync"
	"testing"

	"github.com/MJE43/levelup/internal/engine"
	"github.com/MJE43/levelup/internal/scoring"
)

// recordingRenderer keeps every snapshot it receives.
type recordingRenderer struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recordingRenderer) Render(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recordingRenderer) last() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snaps[len(r.snaps)-1]
}

func (r *recordingRenderer) count(ev Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.snaps {
		if s.Event == ev {
			n++
		}
	}
	return n
}

var answerIsYes = engine.EvaluatorFunc(func(a *engine.Answer) engine.Outcome {
	if a.Text == "yes" {
		return engine.Correct("")
	}
	return engine.Incorrect("expected yes")
})

func yesRound(id string) engine.Round {
	return engine.Round{ID: id, Evaluator: answerIsYes, Hints: []string{"say yes", "really, yes"}}
}

func yes() *engine.Answer { return &engine.Answer{Text: "yes"} }
func no() *engine.Answer  { return &engine.Answer{Text: "no"} }

func newTestEngine(t *testing.T, levels []engine.Level) (*Engine, *recordingRenderer, *ManualClock) {
	t.Helper()
	rec := &recordingRenderer{}
	eng, err := NewEngine(levels, scoring.DefaultPolicy(), rec)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	clock := NewManualClock()
	eng.SetClock(clock)
	return eng, rec, clock
}

func mustDo(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func startPlaying(t *testing.T, eng *Engine) {
	t.Helper()
	mustDo(t, eng.StartGame())
	mustDo(t, eng.Begin())
}

func TestSingleRoundCorrect(t *testing.T) {
	eng, rec, _ := newTestEngine(t, []engine.Level{{ID: "L1", Title: "One", Rounds: []engine.Round{yesRound("R1")}}})

	startPlaying(t, eng)
	mustDo(t, eng.SubmitAnswer(yes()))

	s := eng.State()
	if s.Screen != ScreenFeedback {
		t.Fatalf("expected feedback, got %s", s.Screen)
	}
	if s.Score != 100 || s.Streak != 1 {
		t.Errorf("expected score 100 streak 1, got %d/%d", s.Score, s.Streak)
	}
	if s.Outcome == nil || !s.Outcome.IsCorrect() {
		t.Errorf("expected correct outcome, got %+v", s.Outcome)
	}

	mustDo(t, eng.Continue())
	if got := eng.State().Screen; got != ScreenLevelComplete {
		t.Fatalf("expected level complete, got %s", got)
	}
	if rec.last().Event != EventLevelComplete {
		t.Errorf("expected renderer to see level_complete, got %s", rec.last().Event)
	}
}

func TestTimedRoundBonus(t *testing.T) {
	round := yesRound("R1")
	round.TimeLimitSeconds = 15
	eng, _, clock := newTestEngine(t, []engine.Level{{ID: "L1", Rounds: []engine.Round{round}}})

	startPlaying(t, eng)
	clock.Advance(5)
	if got := eng.State().TimeRemaining; got != 10 {
		t.Fatalf("expected 10s remaining, got %d", got)
	}
	mustDo(t, eng.SubmitAnswer(yes()))

	s := eng.State()
	if s.Score != 133 {
		t.Errorf("expected 133, got %d", s.Score)
	}
	if clock.Active() != 0 {
		t.Errorf("expected timer cancelled after submit, %d active", clock.Active())
	}
}

func TestStreakMultiplierOnThirdCorrect(t *testing.T) {
	eng, _, _ := newTestEngine(t, []engine.Level{{ID: "L1", Rounds: []engine.Round{
		yesRound("R1"), yesRound("R2"), yesRound("R3"),
	}}})

	startPlaying(t, eng)
	var deltas []int
	for i := 0; i < 3; i++ {
		mustDo(t, eng.SubmitAnswer(yes()))
		deltas = append(deltas, eng.State().Delta.Points)
		if i < 2 {
			mustDo(t, eng.Continue())
		}
	}

	if deltas[0] != 100 || deltas[1] != 100 || deltas[2] != 200 {
		t.Errorf("expected 100,100,200 got %v", deltas)
	}
	if s := eng.State(); s.Score != 400 || s.Streak != 3 || s.BestStreak != 3 {
		t.Errorf("unexpected totals %+v", s)
	}
}

func TestHintPenaltyOnAward(t *testing.T) {
	eng, _, _ := newTestEngine(t, []engine.Level{{ID: "L1", Rounds: []engine.Round{yesRound("R1")}}})

	startPlaying(t, eng)
	mustDo(t, eng.RevealHint(0))
	if s := eng.State(); s.Score != 0 || s.HintsRevealedThisRound != 1 {
		t.Fatalf("reveal must not charge immediately, got %+v", s)
	}
	mustDo(t, eng.SubmitAnswer(yes()))

	s := eng.State()
	if s.Score != 90 {
		t.Errorf("expected 90, got %d", s.Score)
	}
	if s.Delta.HintPenalty != 10 {
		t.Errorf("expected 10 penalty, got %d", s.Delta.HintPenalty)
	}
}

func TestHintPenaltyOnRevealFloorsAtLevelStart(t *testing.T) {
	levels := []engine.Level{
		{ID: "L1", Rounds: []engine.Round{yesRound("R1")}},
		{ID: "L2", HintMode: engine.HintPenaltyOnReveal, Rounds: []engine.Round{yesRound("R1")}},
	}
	eng, _, _ := newTestEngine(t, levels)

	startPlaying(t, eng)
	mustDo(t, eng.SubmitAnswer(yes()))
	mustDo(t, eng.Continue())
	mustDo(t, eng.AdvanceLevel())
	mustDo(t, eng.Begin())

	mustDo(t, eng.RevealHint(1))
	if s := eng.State(); s.Score != 100 {
		t.Fatalf("expected floor at level start score 100, got %d", s.Score)
	}

	mustDo(t, eng.SubmitAnswer(yes()))
	s := eng.State()
	if s.Delta.HintPenalty != 0 {
		t.Errorf("hints already charged on reveal, got penalty %d", s.Delta.HintPenalty)
	}
	if s.Score != 200 {
		t.Errorf("expected 200, got %d", s.Score)
	}
}

func TestNilAnswerIsIncorrect(t *testing.T) {
	eng, _, _ := newTestEngine(t, []engine.Level{{ID: "L1", Rounds: []engine.Round{yesRound("R1"), yesRound("R2")}}})

	startPlaying(t, eng)
	mustDo(t, eng.SubmitAnswer(yes()))
	mustDo(t, eng.Continue())
	mustDo(t, eng.SubmitAnswer(nil))

	s := eng.State()
	if s.Outcome.Kind != engine.KindIncorrect || !s.Outcome.NoAnswer {
		t.Errorf("expected no-answer incorrect, got %+v", s.Outcome)
	}
	if s.Streak != 0 || !s.RoundComplete {
		t.Errorf("expected streak 0 and round complete, got %d/%v", s.Streak, s.RoundComplete)
	}
	if s.BestStreak != 1 {
		t.Errorf("expected best streak 1, got %d", s.BestStreak)
	}
}

func TestEvaluatorPanicBecomesError(t *testing.T) {
	boom := engine.Round{ID: "R1", Evaluator: engine.EvaluatorFunc(func(*engine.Answer) engine.Outcome {
		panic("bad content")
	})}
	eng, _, _ := newTestEngine(t, []engine.Level{{ID: "L1", Rounds: []engine.Round{boom}}})

	startPlaying(t, eng)
	mustDo(t, eng.SubmitAnswer(yes()))

	s := eng.State()
	if !s.Outcome.IsError() {
		t.Fatalf("expected error outcome, got %+v", s.Outcome)
	}
	if s.Score != 0 || s.Streak != 0 {
		t.Errorf("expected no score, got %+v", s)
	}
	if s.Category != "fix_input" {
		t.Errorf("expected fix_input category, got %s", s.Category)
	}
}

func TestSubmitTwiceScoresOnce(t *testing.T) {
	eng, rec, _ := newTestEngine(t, []engine.Level{{ID: "L1", Rounds: []engine.Round{yesRound("R1")}}})

	startPlaying(t, eng)
	mustDo(t, eng.SubmitAnswer(yes()))
	before := eng.State()
	renders := len(rec.snaps)

	err := eng.SubmitAnswer(yes())
	if !IsInvalidTransition(err) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	after := eng.State()
	if after.Score != before.Score || after.Streak != before.Streak || after.Seq != before.Seq {
		t.Errorf("state changed on rejected submit: %+v -> %+v", before, after)
	}
	if len(rec.snaps) != renders {
		t.Error("rejected command must not render")
	}
}

func TestStreakProperties(t *testing.T) {
	rounds := make([]engine.Round, 8)
	for i := range rounds {
		rounds[i] = yesRound(string(rune('a' + i)))
	}
	eng, _, _ := newTestEngine(t, []engine.Level{{ID: "L1", Rounds: rounds}})
	startPlaying(t, eng)

	pattern := []bool{true, true, false, true, true, true, false, true}
	prev := 0
	prevScore := 0
	for i, ok := range pattern {
		ans := no()
		if ok {
			ans = yes()
		}
		mustDo(t, eng.SubmitAnswer(ans))
		s := eng.State()
		if ok && s.Streak != prev+1 {
			t.Errorf("round %d: expected streak %d, got %d", i, prev+1, s.Streak)
		}
		if !ok && s.Streak != 0 {
			t.Errorf("round %d: expected streak reset, got %d", i, s.Streak)
		}
		if s.BestStreak < s.Streak {
			t.Errorf("round %d: best streak %d below streak %d", i, s.BestStreak, s.Streak)
		}
		if s.Score < prevScore {
			t.Errorf("round %d: score decreased %d -> %d", i, prevScore, s.Score)
		}
		prev, prevScore = s.Streak, s.Score
		if i < len(pattern)-1 {
			mustDo(t, eng.Continue())
		}
	}
	if eng.State().BestStreak != 3 {
		t.Errorf("expected best streak 3, got %d", eng.State().BestStreak)
	}
}

func TestTimeoutSubmitsOnce(t *testing.T) {
	r1 := yesRound("R1")
	r1.TimeLimitSeconds = 3
	eng, rec, clock := newTestEngine(t, []engine.Level{{ID: "L1", Rounds: []engine.Round{r1}}})

	startPlaying(t, eng)
	clock.Advance(10)

	s := eng.State()
	if s.Screen != ScreenFeedback || !s.Outcome.NoAnswer {
		t.Fatalf("expected timeout feedback, got %+v", s)
	}
	if n := rec.count(EventTimedOut); n != 1 {
		t.Errorf("expected exactly one timeout, got %d", n)
	}
	if n := rec.count(EventTick); n != 2 {
		t.Errorf("expected 2 ticks, got %d", n)
	}
}

func TestTimerExclusivityAcrossRounds(t *testing.T) {
	r1, r2 := yesRound("R1"), yesRound("R2")
	r1.TimeLimitSeconds = 5
	r2.TimeLimitSeconds = 5
	eng, rec, clock := newTestEngine(t, []engine.Level{{ID: "L1", Rounds: []engine.Round{r1, r2}}})

	startPlaying(t, eng)
	clock.Advance(2)
	mustDo(t, eng.SubmitAnswer(yes()))
	mustDo(t, eng.Continue())

	if clock.Started() != 2 || clock.Active() != 1 {
		t.Fatalf("expected 2 started / 1 active, got %d/%d", clock.Started(), clock.Active())
	}

	// The first round's timer goroutine loses the race with Stop.
	clock.FireStale(0)
	if s := eng.State(); s.Screen != ScreenPlaying || s.RoundIndex != 1 {
		t.Fatalf("stale expiry leaked into round 2: %+v", s)
	}

	clock.Advance(5)
	if n := rec.count(EventTimedOut); n != 1 {
		t.Errorf("expected one timeout for round 2, got %d", n)
	}
	if s := eng.State(); s.Score != 130 {
		t.Errorf("expected 130 (100 + floor(3/5*50)), got %d", s.Score)
	}
}

func TestLeavingPlayingCancelsTimer(t *testing.T) {
	r := yesRound("R1")
	r.TimeLimitSeconds = 5
	eng, rec, clock := newTestEngine(t, []engine.Level{{ID: "L1", Rounds: []engine.Round{r}}})

	startPlaying(t, eng)
	mustDo(t, eng.ReturnToMenu())
	clock.Advance(10)

	if rec.count(EventTimedOut) != 0 {
		t.Error("timer fired after returning to menu")
	}
	if s := eng.State(); s.Screen != ScreenMenu || s.Score != 0 {
		t.Errorf("expected fresh menu, got %+v", s)
	}
}

func TestRetry(t *testing.T) {
	r := yesRound("R1")
	r.Retryable = true
	r.FirstTryBonus = true
	eng, _, _ := newTestEngine(t, []engine.Level{{ID: "L1", Rounds: []engine.Round{r, yesRound("R2")}}})

	startPlaying(t, eng)
	mustDo(t, eng.RevealHint(0))
	mustDo(t, eng.SubmitAnswer(no()))
	mustDo(t, eng.Retry())

	s := eng.State()
	if s.Screen != ScreenPlaying || s.RoundComplete || s.Outcome != nil {
		t.Fatalf("retry must reset round state, got %+v", s)
	}
	if s.HintsRevealedThisRound != 0 || len(s.RevealedHints) != 0 || s.HintsUsedThisLevel != 1 {
		t.Errorf("retry must clear reveal markers but keep the level count, got %d/%d", s.HintsRevealedThisRound, s.HintsUsedThisLevel)
	}
	mustDo(t, eng.RevealHint(0))
	if s := eng.State(); s.HintsUsedThisLevel != 1 {
		t.Errorf("re-revealing a seen hint must not count again, got %d", s.HintsUsedThisLevel)
	}

	mustDo(t, eng.SubmitAnswer(yes()))
	s = eng.State()
	if s.Delta.FirstTry != 0 {
		t.Errorf("second attempt must not earn first-try bonus, got %d", s.Delta.FirstTry)
	}
	if s.Score != 90 || s.Attempts != 2 {
		t.Errorf("expected 90 (hint still charged) after 2 attempts, got %d/%d", s.Score, s.Attempts)
	}

	if err := eng.Retry(); !IsInvalidTransition(err) {
		t.Errorf("retry after solving must be rejected, got %v", err)
	}

	mustDo(t, eng.Continue())
	mustDo(t, eng.SubmitAnswer(no()))
	if err := eng.Retry(); !IsInvalidTransition(err) {
		t.Errorf("retry on non-retryable round must be rejected, got %v", err)
	}
}

func TestFirstTryBonus(t *testing.T) {
	r := yesRound("R1")
	r.FirstTryBonus = true
	eng, _, _ := newTestEngine(t, []engine.Level{{ID: "L1", Rounds: []engine.Round{r}}})

	startPlaying(t, eng)
	mustDo(t, eng.SubmitAnswer(yes()))
	if s := eng.State(); s.Score != 150 {
		t.Errorf("expected 150 with first-try bonus, got %d", s.Score)
	}
}

func TestLevelBonusAndSummary(t *testing.T) {
	levels := []engine.Level{
		{ID: "L1", Title: "Clean", Reward: engine.LevelReward{NoHintBonus: 50}, Rounds: []engine.Round{yesRound("R1")}},
		{ID: "L2", Title: "Hinted", Reward: engine.LevelReward{NoHintBonus: 50}, Rounds: []engine.Round{yesRound("R1")}},
	}
	eng, _, _ := newTestEngine(t, levels)

	startPlaying(t, eng)
	mustDo(t, eng.SubmitAnswer(yes()))
	mustDo(t, eng.Continue())

	s := eng.State()
	if s.LevelResult == nil || s.LevelResult.Bonus != 50 {
		t.Fatalf("expected no-hint bonus, got %+v", s.LevelResult)
	}
	if s.Score != 150 || s.LevelScore != 150 {
		t.Errorf("expected 150/150, got %d/%d", s.Score, s.LevelScore)
	}

	mustDo(t, eng.AdvanceLevel())
	if s := eng.State(); s.Screen != ScreenLevelIntro || s.LevelIndex != 1 || s.LevelScore != 0 {
		t.Fatalf("expected intro of level 2, got %+v", s)
	}
	mustDo(t, eng.Begin())
	mustDo(t, eng.RevealNextHint())
	mustDo(t, eng.SubmitAnswer(yes()))
	mustDo(t, eng.Continue())
	if s := eng.State(); s.LevelResult.Bonus != 0 || s.LevelResult.HintsUsed != 1 {
		t.Errorf("expected no bonus after hint, got %+v", s.LevelResult)
	}

	mustDo(t, eng.AdvanceLevel())
	s = eng.State()
	if s.Screen != ScreenGameComplete || s.Summary == nil {
		t.Fatalf("expected game complete with summary, got %+v", s)
	}
	// 150 + 90, max 2*100 + 2*50
	if s.Summary.Score != 240 || s.Summary.MaxPossible != 300 || s.Summary.Percent.String() != "80" {
		t.Errorf("unexpected summary %+v", s.Summary)
	}

	mustDo(t, eng.ReturnToMenu())
	mustDo(t, eng.StartGame())
	if s := eng.State(); s.Score != 0 || s.BestStreak != 0 || s.HintsUsedThisLevel != 0 {
		t.Errorf("start game must reset the run, got %+v", s)
	}
}

func TestInvalidTransitions(t *testing.T) {
	eng, _, _ := newTestEngine(t, []engine.Level{{ID: "L1", Rounds: []engine.Round{yesRound("R1")}}})

	checks := []struct {
		name string
		fn   func() error
	}{
		{"begin on menu", eng.Begin},
		{"continue on menu", eng.Continue},
		{"advance on menu", eng.AdvanceLevel},
		{"menu on menu", eng.ReturnToMenu},
		{"submit on menu", func() error { return eng.SubmitAnswer(yes()) }},
		{"hint on menu", func() error { return eng.RevealHint(0) }},
	}
	for _, c := range checks {
		err := c.fn()
		var te *TransitionError
		if !errors.As(err, &te) || !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s: expected TransitionError, got %v", c.name, err)
		}
	}

	mustDo(t, eng.StartGame())
	if err := eng.StartGame(); !IsInvalidTransition(err) {
		t.Errorf("start twice: expected rejection, got %v", err)
	}
	mustDo(t, eng.Begin())
	if err := eng.Continue(); !IsInvalidTransition(err) {
		t.Errorf("continue while playing: expected rejection, got %v", err)
	}
	if err := eng.RevealHint(9); err == nil {
		t.Error("expected out of range hint error")
	}
}

func TestSnapshotsAreIndependent(t *testing.T) {
	eng, rec, _ := newTestEngine(t, []engine.Level{{ID: "L1", Rounds: []engine.Round{yesRound("R1")}}})

	startPlaying(t, eng)
	mustDo(t, eng.RevealHint(1))
	snap := rec.last()
	snap.RevealedHints[0] = "tampered"
	snap.Hint.Hints[0] = "tampered"

	if got := eng.State().RevealedHints[0]; got != "say yes" {
		t.Errorf("snapshot mutation leaked into engine: %q", got)
	}

	var lastSeq uint64
	for _, s := range rec.snaps {
		if s.Seq <= lastSeq {
			t.Fatalf("sequence not increasing: %d after %d", s.Seq, lastSeq)
		}
		lastSeq = s.Seq
	}
}

func TestSnapshotPayloadsAreCopies(t *testing.T) {
	r := yesRound("R1")
	r.Prompt = []string{"O(1)", "O(n)"}
	levels := []engine.Level{{ID: "L1", Content: map[string]string{"topic": "loops"}, Rounds: []engine.Round{r}}}
	eng, rec, _ := newTestEngine(t, levels)

	startPlaying(t, eng)
	snap := rec.last()
	snap.Round.Prompt.([]string)[0] = "tampered"
	snap.Level.Content.(map[string]string)["topic"] = "tampered"

	s := eng.State()
	if got := s.Round.Prompt.([]string)[0]; got != "O(1)" {
		t.Errorf("renderer mutation leaked into the round prompt: %q", got)
	}
	if got := s.Level.Content.(map[string]string)["topic"]; got != "loops" {
		t.Errorf("renderer mutation leaked into the level content: %q", got)
	}
	if s.Round.HintsAvailable != 2 {
		t.Errorf("expected 2 hints available, got %d", s.Round.HintsAvailable)
	}
}

func TestNewEngineRejectsBadInput(t *testing.T) {
	if _, err := NewEngine(nil, scoring.DefaultPolicy(), nil); !errors.Is(err, engine.ErrInvalidLevel) {
		t.Errorf("expected ErrInvalidLevel, got %v", err)
	}
	bad := scoring.DefaultPolicy()
	bad.BaseReward = -5
	levels := []engine.Level{{ID: "L1", Rounds: []engine.Round{yesRound("R1")}}}
	if _, err := NewEngine(levels, bad, nil); !errors.Is(err, scoring.ErrInvalidPolicy) {
		t.Errorf("expected ErrInvalidPolicy, got %v", err)
	}
}
