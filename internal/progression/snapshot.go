package progression

import (
	"github.com/MJE43/levelup/internal/engine"
	"github.com/MJE43/levelup/internal/hints"
	"github.com/MJE43/levelup/internal/scoring"
)

// Screen is the top-level phase of a run.
type Screen string

const (
	ScreenMenu          Screen = "menu"
	ScreenLevelIntro    Screen = "level_intro"
	ScreenPlaying       Screen = "playing"
	ScreenFeedback      Screen = "feedback"
	ScreenLevelComplete Screen = "level_complete"
	ScreenGameComplete  Screen = "game_complete"
)

// Event names the transition that produced a snapshot.
type Event string

const (
	EventState         Event = "state"
	EventGameStarted   Event = "game_started"
	EventRoundStarted  Event = "round_started"
	EventRoundRetried  Event = "round_retried"
	EventAnswered      Event = "answered"
	EventTimedOut      Event = "timed_out"
	EventTick          Event = "tick"
	EventHintRevealed  Event = "hint_revealed"
	EventLevelStarted  Event = "level_started"
	EventLevelComplete Event = "level_complete"
	EventGameComplete  Event = "game_complete"
	EventMenu          Event = "menu"
)

// LevelView is the renderer-facing part of a level.
type LevelView struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Content     any                `json:"content,omitempty"`
	Rounds      int                `json:"rounds"`
	Reward      engine.LevelReward `json:"reward"`
}

// RoundView is the renderer-facing part of a round.
type RoundView struct {
	ID               string           `json:"id"`
	Prompt           any              `json:"prompt,omitempty"`
	TimeLimitSeconds int              `json:"timeLimitSeconds,omitempty"`
	HintsAvailable   int              `json:"hintsAvailable"`
	Objective        engine.Objective `json:"objective,omitempty"`
	Retryable        bool             `json:"retryable,omitempty"`
}

// LevelResult is shown on the level-complete screen.
type LevelResult struct {
	LevelID   string `json:"levelId"`
	Correct   int    `json:"correct"`
	Rounds    int    `json:"rounds"`
	Points    int    `json:"points"`
	Bonus     int    `json:"bonus"`
	HintsUsed int    `json:"hintsUsed"`
}

// Snapshot is an immutable copy of the progression state plus the last
// event. Renderers may keep it as long as they like.
type Snapshot struct {
	Seq   uint64 `json:"seq"`
	RunID string `json:"runId,omitempty"`
	Event Event  `json:"event"`

	Screen     Screen `json:"screen"`
	LevelIndex int    `json:"levelIndex"`
	RoundIndex int    `json:"roundIndex"`
	LevelCount int    `json:"levelCount"`

	Score         int  `json:"score"`
	LevelScore    int  `json:"levelScore"`
	Streak        int  `json:"streak"`
	BestStreak    int  `json:"bestStreak"`
	RoundComplete bool `json:"roundComplete"`
	Attempts      int  `json:"attempts"`
	TimeRemaining int  `json:"timeRemaining,omitempty"`

	HintsRevealedThisRound int      `json:"hintsRevealedThisRound"`
	HintsUsedThisLevel     int      `json:"hintsUsedThisLevel"`
	RevealedHints          []string `json:"revealedHints,omitempty"`

	Level *LevelView `json:"level,omitempty"`
	Round *RoundView `json:"round,omitempty"`

	Outcome     *engine.Outcome  `json:"outcome,omitempty"`
	Delta       *scoring.Delta   `json:"delta,omitempty"`
	Hint        *hints.Reveal    `json:"hint,omitempty"`
	Message     string           `json:"message,omitempty"`
	Category    string           `json:"category,omitempty"`
	LevelResult *LevelResult     `json:"levelResult,omitempty"`
	Summary     *scoring.Summary `json:"summary,omitempty"`
}

// Renderer receives a snapshot after every state change and on each timer
// tick. Render may be called from the timer goroutine, so implementations
// must be safe for concurrent use; Seq orders the frames.
type Renderer interface {
	Render(snap Snapshot)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(snap Snapshot)

// Render calls f(snap).
func (f RendererFunc) Render(snap Snapshot) { f(snap) }

// MultiRenderer fans a snapshot out to several renderers in order.
type MultiRenderer []Renderer

// Render implements Renderer.
func (m MultiRenderer) Render(snap Snapshot) {
	for _, r := range m {
		if r != nil {
			r.Render(snap)
		}
	}
}
