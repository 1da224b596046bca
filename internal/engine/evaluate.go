package engine

import "fmt"

// Evaluate runs the round's evaluator behind the engine boundary.
//
// A nil answer never reaches content code and is always Incorrect. Panics
// and unknown outcome kinds are converted to Error outcomes so a misbehaving
// content pack cannot halt the engine.
func Evaluate(round Round, answer *Answer) (out Outcome) {
	if answer == nil {
		return NoAnswer()
	}
	if round.Evaluator == nil {
		return Errored(fmt.Sprintf("round %q has no evaluator", round.ID))
	}

	defer func() {
		if r := recover(); r != nil {
			out = Errored(fmt.Sprintf("evaluator panic: %v", r))
		}
	}()

	out = round.Evaluator.Evaluate(answer)
	if !out.Kind.Valid() {
		return Errored(fmt.Sprintf("evaluator returned unknown outcome kind %q", out.Kind))
	}
	if out.Credit < 0 || out.Credit > 100 {
		return Errored(fmt.Sprintf("evaluator returned credit %d outside 0..100", out.Credit))
	}
	return out
}

// Compose chains a primary evaluator with a reference check.
//
// The reference check runs only when the primary result is an assertion
// failure; its verdict replaces the primary one. Errors and every other
// primary result are returned unchanged.
func Compose(primary, reference Evaluator) Evaluator {
	return EvaluatorFunc(func(answer *Answer) Outcome {
		first := primary.Evaluate(answer)
		if first.Kind != KindIncorrect || !first.Assertion {
			return first
		}
		second := reference.Evaluate(answer)
		if second.Explanation == "" {
			second.Explanation = first.Reason
		}
		return second
	})
}
