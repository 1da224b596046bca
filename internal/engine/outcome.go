package engine

// OutcomeKind tags the result of evaluating a submitted answer.
type OutcomeKind string

const (
	KindCorrect   OutcomeKind = "correct"
	KindIncorrect OutcomeKind = "incorrect"
	KindError     OutcomeKind = "error"
)

// Valid reports whether k is one of the three known kinds.
func (k OutcomeKind) Valid() bool {
	switch k {
	case KindCorrect, KindIncorrect, KindError:
		return true
	}
	return false
}

// Outcome is the tri-state result of a round evaluation.
//
// Reason carries the incorrect reason or the error message. Explanation is
// optional teaching text (for example the reference check verdict) that the
// renderer shows alongside the result.
type Outcome struct {
	Kind        OutcomeKind `json:"kind"`
	Reason      string      `json:"reason,omitempty"`
	Explanation string      `json:"explanation,omitempty"`

	// Assertion marks an Incorrect caused by a failed assertion rather than
	// a wrong value. Only these are eligible for a reference check.
	Assertion bool `json:"assertion,omitempty"`

	// NoAnswer marks the synthesized outcome for a missing submission.
	NoAnswer bool `json:"noAnswer,omitempty"`

	// Credit is the percentage of the base reward a Correct earns, 1 to
	// 100. Zero means full credit.
	Credit int `json:"credit,omitempty"`
}

// Correct returns a correct outcome with optional explanation.
func Correct(explanation string) Outcome {
	return Outcome{Kind: KindCorrect, Explanation: explanation}
}

// PartialCredit returns a correct outcome worth credit percent of the base
// reward.
func PartialCredit(explanation string, credit int) Outcome {
	return Outcome{Kind: KindCorrect, Explanation: explanation, Credit: credit}
}

// Incorrect returns a plain wrong-answer outcome.
func Incorrect(reason string) Outcome {
	return Outcome{Kind: KindIncorrect, Reason: reason}
}

// AssertionFailed returns an Incorrect produced by a failing assertion.
func AssertionFailed(reason string) Outcome {
	return Outcome{Kind: KindIncorrect, Reason: reason, Assertion: true}
}

// Errored returns an evaluation error outcome (malformed or crashing input).
func Errored(message string) Outcome {
	return Outcome{Kind: KindError, Reason: message}
}

// NoAnswer is the outcome for an absent answer, e.g. an expired timer.
func NoAnswer() Outcome {
	return Outcome{Kind: KindIncorrect, Reason: "no answer given", NoAnswer: true}
}

// IsCorrect reports whether the outcome is Correct.
func (o Outcome) IsCorrect() bool { return o.Kind == KindCorrect }

// IsError reports whether the outcome is an evaluation error.
func (o Outcome) IsError() bool { return o.Kind == KindError }

// Category is the message category shown to the player. Errors are scored
// like incorrect answers but surfaced differently.
func (o Outcome) Category() string {
	switch o.Kind {
	case KindCorrect:
		return "success"
	case KindError:
		return "fix_input"
	default:
		if o.NoAnswer {
			return "timeout"
		}
		return "wrong_answer"
	}
}
