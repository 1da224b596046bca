package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/MJE43/levelup/internal/progression"
)

// TextRenderer prints snapshots as plain text. It is safe for concurrent
// use; ticks arrive from the timer goroutine.
type TextRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewTextRenderer(out io.Writer) *TextRenderer {
	return &TextRenderer{out: out}
}

// Printf writes a line under the renderer lock.
func (r *TextRenderer) Printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// Render implements progression.Renderer.
func (r *TextRenderer) Render(snap progression.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	writeSnapshot(r.out, snap)
}

func writeSnapshot(out io.Writer, snap progression.Snapshot) {
	switch snap.Event {
	case progression.EventTick:
		if snap.TimeRemaining <= 5 || snap.TimeRemaining%5 == 0 {
			fmt.Fprintf(out, "  [%ds left]\n", snap.TimeRemaining)
		}
		return
	case progression.EventHintRevealed:
		if snap.Hint != nil {
			if snap.Hint.AlreadyRevealed {
				fmt.Fprintln(out, "  (already revealed)")
			}
			for i, h := range snap.Hint.Hints {
				fmt.Fprintf(out, "  Hint %d: %s\n", i+1, h)
			}
		}
		fmt.Fprintf(out, "  Score: %d\n", snap.Score)
		return
	}

	switch snap.Screen {
	case progression.ScreenMenu:
		fmt.Fprintln(out, "== MENU ==")
		fmt.Fprintln(out, "Type 'start' to play, 'quit' to leave.")

	case progression.ScreenLevelIntro:
		fmt.Fprintf(out, "\n== Level %d/%d: %s ==\n", snap.LevelIndex+1, snap.LevelCount, levelTitle(snap))
		if snap.Level != nil && snap.Level.Description != "" {
			fmt.Fprintln(out, snap.Level.Description)
		}
		fmt.Fprintln(out, "Type 'begin' when ready.")

	case progression.ScreenPlaying:
		writeRound(out, snap)

	case progression.ScreenFeedback:
		fmt.Fprintln(out, snap.Message)
		if snap.Outcome != nil && snap.Outcome.Explanation != "" {
			fmt.Fprintf(out, "  %s\n", snap.Outcome.Explanation)
		}
		fmt.Fprintf(out, "  Score: %d  Streak: %d\n", snap.Score, snap.Streak)
		next := "'continue'"
		if snap.Round != nil && snap.Round.Retryable && (snap.Outcome == nil || !snap.Outcome.IsCorrect()) {
			next += " or 'retry'"
		}
		fmt.Fprintf(out, "Type %s.\n", next)

	case progression.ScreenLevelComplete:
		fmt.Fprintf(out, "\n%s\n", snap.Message)
		if res := snap.LevelResult; res != nil {
			fmt.Fprintf(out, "  Correct: %d/%d  Points: %d  Bonus: %d  Hints: %d\n",
				res.Correct, res.Rounds, res.Points, res.Bonus, res.HintsUsed)
		}
		fmt.Fprintln(out, "Type 'advance' to go on.")

	case progression.ScreenGameComplete:
		fmt.Fprintln(out, "\n== GAME COMPLETE ==")
		if sum := snap.Summary; sum != nil {
			fmt.Fprintf(out, "  Score: %d/%d (%s%%)\n", sum.Score, sum.MaxPossible, sum.Percent.String())
			fmt.Fprintf(out, "  Correct: %d/%d  Best streak: %d\n", sum.Correct, sum.Rounds, sum.BestStreak)
		}
		fmt.Fprintln(out, "Type 'menu' to play again.")
	}
}

func writeRound(out io.Writer, snap progression.Snapshot) {
	rv := snap.Round
	if rv == nil {
		return
	}
	fmt.Fprintf(out, "\n-- Round %d/%d (%s) --\n", snap.RoundIndex+1, roundCount(snap), rv.ID)
	if rv.Objective != "" {
		fmt.Fprintf(out, "Objective: %s\n", rv.Objective)
	}
	if rv.Prompt != nil {
		fmt.Fprintln(out, formatPrompt(rv.Prompt))
	}
	if rv.TimeLimitSeconds > 0 {
		fmt.Fprintf(out, "You have %d seconds.\n", rv.TimeLimitSeconds)
	}
	for i, h := range snap.RevealedHints {
		fmt.Fprintf(out, "  Hint %d: %s\n", i+1, h)
	}
	if rv.HintsAvailable > len(snap.RevealedHints) {
		fmt.Fprintf(out, "%d hint(s) available: 'hint'.\n", rv.HintsAvailable-len(snap.RevealedHints))
	}
}

// formatPrompt prints prompt content generically; the engine never knows
// its shape.
func formatPrompt(prompt any) string {
	if s, ok := prompt.(string); ok {
		return s
	}
	data, err := json.MarshalIndent(prompt, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", prompt)
	}
	// Keep embedded code readable.
	return strings.ReplaceAll(string(data), `\n`, "\n")
}

func levelTitle(snap progression.Snapshot) string {
	if snap.Level == nil {
		return ""
	}
	if snap.Level.Title != "" {
		return snap.Level.Title
	}
	return snap.Level.ID
}

func roundCount(snap progression.Snapshot) int {
	if snap.Level == nil {
		return 0
	}
	return snap.Level.Rounds
}
