package progression

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/MJE43/levelup/internal/engine"
	"github.com/MJE43/levelup/internal/hints"
	"github.com/MJE43/levelup/internal/scoring"
)

// progress is the mutable run state. Only Engine methods touch it, always
// under Engine.mu.
type progress struct {
	runID      string
	screen     Screen
	levelIndex int
	roundIndex int

	score           int
	levelStartScore int
	streak          int
	bestStreak      int

	roundComplete bool
	attempts      int
	timeRemaining int

	levelCorrect int
	levelBonus   int
	correct      int
	roundsPlayed int
	maxPossible  int

	outcome *engine.Outcome
	delta   *scoring.Delta
	hint    *hints.Reveal
	message string
	summary *scoring.Summary
}

// Engine is the progression state machine. All commands are serialized by a
// single mutex; renderers are notified after the lock is released.
type Engine struct {
	mu sync.Mutex

	levels []engine.Level
	policy scoring.Policy
	ledger *hints.Ledger

	clock      Clock
	renderer   Renderer
	logger     *log.Logger
	timer      Timer
	timerToken uint64
	seq        uint64

	p progress
}

// NewEngine validates the level list and policy and returns an engine on
// the menu screen. The default clock counts real seconds.
func NewEngine(levels []engine.Level, policy scoring.Policy, renderer Renderer) (*Engine, error) {
	if err := engine.ValidateLevels(levels); err != nil {
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		levels:   levels,
		policy:   policy,
		ledger:   hints.NewLedger(),
		clock:    TickerClock{},
		renderer: renderer,
		p:        progress{screen: ScreenMenu},
	}, nil
}

// SetClock replaces the countdown source. Must be called before StartGame.
func (e *Engine) SetClock(c Clock) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock = c
}

// SetLogger enables transition logging.
func (e *Engine) SetLogger(l *log.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger = l
}

// State returns the current snapshot without notifying the renderer.
func (e *Engine) State() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(EventState)
}

// StartGame resets the run and opens the first level intro.
func (e *Engine) StartGame() error {
	return e.apply("start", func() (Event, error) {
		if e.p.screen != ScreenMenu {
			return "", e.reject("start", "")
		}
		e.p = progress{runID: uuid.NewString()}
		e.ledger.Reset()
		e.enterLevel(0)
		return EventGameStarted, nil
	})
}

// Begin starts the first round of the current level.
func (e *Engine) Begin() error {
	return e.apply("begin", func() (Event, error) {
		if e.p.screen != ScreenLevelIntro {
			return "", e.reject("begin", "")
		}
		e.p.attempts = 0
		e.enterRound(0)
		return EventRoundStarted, nil
	})
}

// SubmitAnswer evaluates an answer for the current round. A nil answer is
// a deliberate "no answer" and scores as incorrect. A round scores at most
// once; later submissions are rejected without touching state.
func (e *Engine) SubmitAnswer(answer *engine.Answer) error {
	return e.apply("submit", func() (Event, error) {
		if e.p.screen != ScreenPlaying {
			return "", e.reject("submit", "")
		}
		if e.p.roundComplete {
			return "", fmt.Errorf("%w: %w", e.reject("submit", "round complete"), ErrRoundComplete)
		}
		e.submit(answer)
		return EventAnswered, nil
	})
}

// RevealHint reveals hints up to index in the current round.
func (e *Engine) RevealHint(index int) error {
	return e.apply("hint", func() (Event, error) {
		if e.p.screen != ScreenPlaying || e.p.roundComplete {
			return "", e.reject("hint", "")
		}
		lv, r := e.current()
		res, err := e.ledger.Reveal(lv.ID, r.ID, index)
		if err != nil {
			return "", err
		}
		e.chargeHints(lv, res.Charged)
		e.p.hint = &res
		return EventHintRevealed, nil
	})
}

// RevealNextHint reveals the first hidden hint of the current round.
func (e *Engine) RevealNextHint() error {
	return e.apply("hint", func() (Event, error) {
		if e.p.screen != ScreenPlaying || e.p.roundComplete {
			return "", e.reject("hint", "")
		}
		lv, r := e.current()
		res, err := e.ledger.RevealNext(lv.ID, r.ID)
		if err != nil {
			return "", err
		}
		e.chargeHints(lv, res.Charged)
		e.p.hint = &res
		return EventHintRevealed, nil
	})
}

// Continue moves from feedback to the next round or the level summary.
func (e *Engine) Continue() error {
	return e.apply("continue", func() (Event, error) {
		if e.p.screen != ScreenFeedback {
			return "", e.reject("continue", "")
		}
		lv := e.levels[e.p.levelIndex]
		if e.p.roundIndex+1 < len(lv.Rounds) {
			e.p.attempts = 0
			e.enterRound(e.p.roundIndex + 1)
			return EventRoundStarted, nil
		}
		e.completeLevel()
		return EventLevelComplete, nil
	})
}

// Retry replays a missed round that allows retries. Points can still only
// be earned once, on the first correct answer.
func (e *Engine) Retry() error {
	return e.apply("retry", func() (Event, error) {
		if e.p.screen != ScreenFeedback {
			return "", e.reject("retry", "")
		}
		_, r := e.current()
		if !r.Retryable {
			return "", e.reject("retry", "round does not allow retries")
		}
		if e.p.outcome != nil && e.p.outcome.IsCorrect() {
			return "", e.reject("retry", "round already solved")
		}
		e.enterRound(e.p.roundIndex)
		return EventRoundRetried, nil
	})
}

// AdvanceLevel leaves the level summary for the next level or the end.
func (e *Engine) AdvanceLevel() error {
	return e.apply("advance", func() (Event, error) {
		if e.p.screen != ScreenLevelComplete {
			return "", e.reject("advance", "")
		}
		if e.p.levelIndex+1 < len(e.levels) {
			e.enterLevel(e.p.levelIndex + 1)
			return EventLevelStarted, nil
		}
		e.clearTransient()
		e.p.screen = ScreenGameComplete
		sum := scoring.Summarize(e.p.score, e.p.maxPossible, e.p.bestStreak, e.p.correct, e.p.roundsPlayed)
		e.p.summary = &sum
		return EventGameComplete, nil
	})
}

// ReturnToMenu discards the run from any screen.
func (e *Engine) ReturnToMenu() error {
	return e.apply("menu", func() (Event, error) {
		if e.p.screen == ScreenMenu {
			return "", e.reject("menu", "already on menu")
		}
		e.cancelTimer()
		e.ledger.Reset()
		e.p = progress{screen: ScreenMenu}
		return EventMenu, nil
	})
}

func (e *Engine) apply(cmd string, fn func() (Event, error)) error {
	e.mu.Lock()
	ev, err := fn()
	if err != nil {
		screen := e.p.screen
		logger := e.logger
		e.mu.Unlock()
		if logger != nil {
			logger.Printf("command_rejected command=%s screen=%s error=%q", cmd, screen, err)
		}
		return err
	}
	snap := e.next(ev)
	logger := e.logger
	e.mu.Unlock()

	if logger != nil {
		logger.Printf("transition command=%s event=%s screen=%s level=%d round=%d score=%d streak=%d seq=%d",
			cmd, ev, snap.Screen, snap.LevelIndex, snap.RoundIndex, snap.Score, snap.Streak, snap.Seq)
	}
	e.render(snap)
	return nil
}

func (e *Engine) reject(cmd, reason string) error {
	return &TransitionError{Command: cmd, Screen: e.p.screen, Reason: reason}
}

// current panics on a cursor outside the validated level list; every
// transition keeps it in range.
func (e *Engine) current() (engine.Level, engine.Round) {
	if err := engine.CheckCursor(e.levels, e.p.levelIndex, e.p.roundIndex); err != nil {
		panic(err)
	}
	lv := e.levels[e.p.levelIndex]
	return lv, lv.Rounds[e.p.roundIndex]
}

func (e *Engine) clearTransient() {
	e.p.outcome = nil
	e.p.delta = nil
	e.p.hint = nil
	e.p.message = ""
}

func (e *Engine) enterLevel(i int) {
	e.cancelTimer()
	e.clearTransient()
	e.p.screen = ScreenLevelIntro
	e.p.levelIndex = i
	e.p.roundIndex = 0
	e.p.levelStartScore = e.p.score
	e.p.levelCorrect = 0
	e.p.levelBonus = 0
	e.p.roundComplete = false
	e.p.timeRemaining = 0
	e.ledger.StartLevel(e.levels[i].ID)
}

// enterRound resets all per-round state. Attempts are kept so a retried
// round remembers it is no longer on its first try.
func (e *Engine) enterRound(j int) {
	e.cancelTimer()
	e.clearTransient()
	e.p.screen = ScreenPlaying
	e.p.roundIndex = j
	e.p.roundComplete = false

	lv, r := e.current()
	e.ledger.StartRound(r.ID, r.Hints)
	e.p.timeRemaining = r.TimeLimitSeconds
	if r.Timed() {
		e.startTimer(lv.ID, r)
	}
}

func (e *Engine) startTimer(levelID string, r engine.Round) {
	e.timerToken++
	token := e.timerToken
	e.timer = e.clock.StartCountdown(r.TimeLimitSeconds,
		func(remaining int) { e.onTick(token, remaining) },
		func() { e.onExpire(token) },
	)
	if e.logger != nil {
		e.logger.Printf("timer_started level=%s round=%s seconds=%d token=%d", levelID, r.ID, r.TimeLimitSeconds, token)
	}
}

// cancelTimer stops the active countdown and invalidates its callbacks.
func (e *Engine) cancelTimer() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.timerToken++
}

func (e *Engine) onTick(token uint64, remaining int) {
	e.mu.Lock()
	if token != e.timerToken || e.p.screen != ScreenPlaying || e.p.roundComplete {
		e.mu.Unlock()
		return
	}
	e.p.timeRemaining = remaining
	snap := e.next(EventTick)
	e.mu.Unlock()
	e.render(snap)
}

func (e *Engine) onExpire(token uint64) {
	e.mu.Lock()
	if token != e.timerToken || e.p.screen != ScreenPlaying || e.p.roundComplete {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	e.p.timeRemaining = 0
	e.submit(nil)
	snap := e.next(EventTimedOut)
	logger := e.logger
	e.mu.Unlock()

	if logger != nil {
		logger.Printf("round_timed_out level=%d round=%d seq=%d", snap.LevelIndex, snap.RoundIndex, snap.Seq)
	}
	e.render(snap)
}

// submit scores the current round. The delta is computed from the
// pre-transition state before streak and completion are updated.
func (e *Engine) submit(answer *engine.Answer) {
	e.cancelTimer()
	lv, r := e.current()

	out := engine.Evaluate(r, answer)
	ctx := scoring.Context{
		Streak:           e.p.streak,
		TimeLimitSeconds: r.TimeLimitSeconds,
		TimeRemaining:    e.p.timeRemaining,
		HintsThisRound:   e.ledger.ChargedCount(),
		Objective:        r.Objective,
		BaseReward:       r.BaseReward,
		FirstTry:         e.p.attempts == 0,
		FirstTryEligible: r.FirstTryBonus,
		ChargeHints:      lv.PenaltyMode() == engine.HintPenaltyOnAward,
	}
	delta := e.policy.Score(out, ctx)

	if e.p.attempts == 0 {
		e.p.roundsPlayed++
		e.p.maxPossible += e.policy.MaxPoints(ctx)
	}
	e.p.attempts++
	e.p.roundComplete = true
	e.p.screen = ScreenFeedback

	if out.IsCorrect() {
		e.p.score += delta.Points
		e.p.streak++
		if e.p.streak > e.p.bestStreak {
			e.p.bestStreak = e.p.streak
		}
		e.p.levelCorrect++
		e.p.correct++
	} else {
		e.p.streak = 0
	}

	e.p.outcome = &out
	e.p.delta = &delta
	e.p.hint = nil
	e.p.message = feedbackMessage(out, delta)
}

// chargeHints deducts reveal-time penalties for levels that use them,
// never dropping below the score the level started with.
func (e *Engine) chargeHints(lv engine.Level, charged int) {
	if lv.PenaltyMode() != engine.HintPenaltyOnReveal {
		return
	}
	for i := 0; i < charged; i++ {
		e.p.score = e.policy.ChargeReveal(e.p.score, e.p.levelStartScore)
	}
}

func (e *Engine) completeLevel() {
	e.cancelTimer()
	lv := e.levels[e.p.levelIndex]
	bonus := e.policy.LevelBonus(lv.Reward, e.ledger.LevelCount())

	e.clearTransient()
	e.p.screen = ScreenLevelComplete
	e.p.levelBonus = bonus
	e.p.score += bonus
	e.p.maxPossible += lv.Reward.CompletionBonus + lv.Reward.NoHintBonus
	e.p.message = fmt.Sprintf("Level %q complete", lv.Title)
}

func feedbackMessage(out engine.Outcome, d scoring.Delta) string {
	switch out.Category() {
	case "success":
		return fmt.Sprintf("Correct! +%d", d.Points)
	case "fix_input":
		return "Fix your input: " + out.Reason
	case "timeout":
		return "Time's up!"
	default:
		return "Not quite: " + out.Reason
	}
}

func (e *Engine) next(ev Event) Snapshot {
	e.seq++
	return e.snapshot(ev)
}

func (e *Engine) render(snap Snapshot) {
	if e.renderer == nil {
		return
	}
	e.renderer.Render(snap)
}

// snapshot copies the run state. Caller holds e.mu.
func (e *Engine) snapshot(ev Event) Snapshot {
	p := e.p
	snap := Snapshot{
		Seq:           e.seq,
		RunID:         p.runID,
		Event:         ev,
		Screen:        p.screen,
		LevelIndex:    p.levelIndex,
		RoundIndex:    p.roundIndex,
		LevelCount:    len(e.levels),
		Score:         p.score,
		LevelScore:    p.score - p.levelStartScore,
		Streak:        p.streak,
		BestStreak:    p.bestStreak,
		RoundComplete: p.roundComplete,
		Attempts:      p.attempts,
		TimeRemaining: p.timeRemaining,
		Message:       p.message,

		HintsRevealedThisRound: e.ledger.RoundCount(),
		HintsUsedThisLevel:     e.ledger.LevelCount(),
	}
	if p.screen == ScreenMenu {
		return snap
	}

	lv := e.levels[p.levelIndex]
	snap.Level = &LevelView{
		ID:          lv.ID,
		Title:       lv.Title,
		Description: lv.Description,
		Content:     engine.ClonePayload(lv.Content),
		Rounds:      len(lv.Rounds),
		Reward:      lv.Reward,
	}

	if p.screen == ScreenPlaying || p.screen == ScreenFeedback {
		_, r := e.current()
		snap.Round = &RoundView{
			ID:               r.ID,
			Prompt:           engine.ClonePayload(r.Prompt),
			TimeLimitSeconds: r.TimeLimitSeconds,
			HintsAvailable:   e.ledger.Available(),
			Objective:        r.Objective,
			Retryable:        r.Retryable,
		}
		snap.RevealedHints = e.ledger.Revealed()
	}

	if p.outcome != nil {
		out := *p.outcome
		snap.Outcome = &out
		snap.Category = out.Category()
	}
	if p.delta != nil {
		d := *p.delta
		snap.Delta = &d
	}
	if p.hint != nil {
		h := *p.hint
		h.Hints = append([]string(nil), p.hint.Hints...)
		snap.Hint = &h
	}
	if p.screen == ScreenLevelComplete {
		snap.LevelResult = &LevelResult{
			LevelID:   lv.ID,
			Correct:   p.levelCorrect,
			Rounds:    len(lv.Rounds),
			Points:    p.score - p.levelStartScore,
			Bonus:     p.levelBonus,
			HintsUsed: e.ledger.LevelCount(),
		}
	}
	if p.summary != nil {
		s := *p.summary
		snap.Summary = &s
	}
	return snap
}
