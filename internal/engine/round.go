package engine

// Answer is a submitted response. Single-value answers use Text, multi-input
// answers (code plus tests, username plus password) use Fields.
// A nil *Answer means no answer was given.
type Answer struct {
	Text   string            `json:"text,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Field returns a named field, falling back to Text for the empty name.
func (a *Answer) Field(name string) string {
	if a == nil {
		return ""
	}
	if name == "" {
		return a.Text
	}
	return a.Fields[name]
}

// Empty reports whether the answer carries no content at all.
func (a *Answer) Empty() bool {
	if a == nil {
		return true
	}
	if a.Text != "" {
		return false
	}
	for _, v := range a.Fields {
		if v != "" {
			return false
		}
	}
	return true
}

// Evaluator decides the outcome of an answer. Implementations must be
// deterministic and must not mutate shared state.
type Evaluator interface {
	Evaluate(answer *Answer) Outcome
}

// EvaluatorFunc adapts a plain function to Evaluator.
type EvaluatorFunc func(answer *Answer) Outcome

// Evaluate calls f(answer).
func (f EvaluatorFunc) Evaluate(answer *Answer) Outcome { return f(answer) }

// Objective distinguishes the main goal of a level from optional extras.
type Objective string

const (
	ObjectiveMain  Objective = "main"
	ObjectiveBonus Objective = "bonus"
)

// Round is one challenge inside a level. Prompt is opaque content for the
// renderer; the engine never inspects it.
type Round struct {
	ID               string    `json:"id"`
	Prompt           any       `json:"prompt,omitempty"`
	Evaluator        Evaluator `json:"-"`
	TimeLimitSeconds int       `json:"timeLimitSeconds,omitempty"`
	Hints            []string  `json:"hints,omitempty"`
	Objective        Objective `json:"objective,omitempty"`

	// BaseReward overrides the policy base reward when positive.
	BaseReward int `json:"baseReward,omitempty"`

	// Retryable rounds may be replayed from feedback after a miss.
	Retryable bool `json:"retryable,omitempty"`

	// FirstTryBonus opts the round into the policy first-try bonus.
	FirstTryBonus bool `json:"firstTryBonus,omitempty"`
}

// Timed reports whether the round enforces a countdown.
func (r Round) Timed() bool { return r.TimeLimitSeconds > 0 }

// HintMode selects when hint penalties are charged.
type HintMode string

const (
	// HintPenaltyOnAward reduces the points awarded for the round.
	HintPenaltyOnAward HintMode = "on_award"
	// HintPenaltyOnReveal deducts immediately, floored at the level start score.
	HintPenaltyOnReveal HintMode = "on_reveal"
)

// LevelReward is the completion reward policy for a level.
type LevelReward struct {
	NoHintBonus     int `json:"noHintBonus,omitempty"`
	CompletionBonus int `json:"completionBonus,omitempty"`
}

// Level is an ordered, immutable set of rounds.
type Level struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Content     any         `json:"content,omitempty"`
	Rounds      []Round     `json:"rounds"`
	Reward      LevelReward `json:"reward"`
	HintMode    HintMode    `json:"hintMode,omitempty"`
}

// PenaltyMode returns the effective hint mode for the level.
func (l Level) PenaltyMode() HintMode {
	if l.HintMode == "" {
		return HintPenaltyOnAward
	}
	return l.HintMode
}
