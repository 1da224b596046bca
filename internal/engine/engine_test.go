package engine

import (
	"errors"
	"strings"
	"testing"
)

func equalsEvaluator(want string) Evaluator {
	return EvaluatorFunc(func(a *Answer) Outcome {
		if a.Text == want {
			return Correct("")
		}
		return Incorrect("expected " + want)
	})
}

func TestEvaluateNilAnswer(t *testing.T) {
	called := false
	round := Round{ID: "r1", Evaluator: EvaluatorFunc(func(a *Answer) Outcome {
		called = true
		return Correct("")
	})}

	out := Evaluate(round, nil)
	if out.Kind != KindIncorrect || !out.NoAnswer {
		t.Fatalf("expected no-answer incorrect, got %+v", out)
	}
	if called {
		t.Error("evaluator must not run for a nil answer")
	}
	if out.Category() != "timeout" {
		t.Errorf("expected timeout category, got %s", out.Category())
	}
}

func TestEvaluateRecoversPanic(t *testing.T) {
	round := Round{ID: "boom", Evaluator: EvaluatorFunc(func(a *Answer) Outcome {
		panic("content bug")
	})}

	out := Evaluate(round, &Answer{Text: "x"})
	if !out.IsError() {
		t.Fatalf("expected error outcome, got %+v", out)
	}
	if !strings.Contains(out.Reason, "content bug") {
		t.Errorf("expected panic value in reason, got %q", out.Reason)
	}
	if out.Category() != "fix_input" {
		t.Errorf("expected fix_input category, got %s", out.Category())
	}
}

func TestEvaluateRejectsUnknownKind(t *testing.T) {
	round := Round{ID: "odd", Evaluator: EvaluatorFunc(func(a *Answer) Outcome {
		return Outcome{Kind: "maybe"}
	})}
	if out := Evaluate(round, &Answer{}); !out.IsError() {
		t.Fatalf("expected error for unknown kind, got %+v", out)
	}
}

func TestEvaluateRejectsCreditOutOfRange(t *testing.T) {
	for _, credit := range []int{-1, 101} {
		round := Round{ID: "credit", Evaluator: EvaluatorFunc(func(a *Answer) Outcome {
			return PartialCredit("", credit)
		})}
		if out := Evaluate(round, &Answer{}); !out.IsError() {
			t.Errorf("credit %d: expected error, got %+v", credit, out)
		}
	}

	round := Round{ID: "half", Evaluator: EvaluatorFunc(func(a *Answer) Outcome {
		return PartialCredit("close enough", 50)
	})}
	if out := Evaluate(round, &Answer{}); !out.IsCorrect() || out.Credit != 50 {
		t.Errorf("expected correct with credit 50, got %+v", out)
	}
}

func TestEvaluateMissingEvaluator(t *testing.T) {
	if out := Evaluate(Round{ID: "empty"}, &Answer{Text: "a"}); !out.IsError() {
		t.Fatalf("expected error, got %+v", out)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	round := Round{ID: "eq", Evaluator: equalsEvaluator("42")}
	for _, text := range []string{"42", "41", ""} {
		a := Evaluate(round, &Answer{Text: text})
		b := Evaluate(round, &Answer{Text: text})
		if a != b {
			t.Errorf("answer %q: outcomes differ: %+v vs %+v", text, a, b)
		}
	}
}

func TestCompose(t *testing.T) {
	referenceCalls := 0
	reference := EvaluatorFunc(func(a *Answer) Outcome {
		referenceCalls++
		if a.Field("tests") == "good" {
			return Correct("caught the bug")
		}
		return Incorrect("test also fails on correct code")
	})

	tests := []struct {
		name          string
		primary       Outcome
		tests         string
		wantKind      OutcomeKind
		wantReference bool
	}{
		{"assertion runs reference", AssertionFailed("expected 9 but got 3"), "good", KindCorrect, true},
		{"reference rejects", AssertionFailed("expected 9 but got 3"), "bad", KindIncorrect, true},
		{"error short-circuits", Errored("SyntaxError"), "good", KindError, false},
		{"plain incorrect skips reference", Incorrect("all tests passed"), "good", KindIncorrect, false},
		{"correct skips reference", Correct(""), "good", KindCorrect, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			referenceCalls = 0
			primary := tt.primary
			ev := Compose(EvaluatorFunc(func(*Answer) Outcome { return primary }), reference)

			out := ev.Evaluate(&Answer{Fields: map[string]string{"tests": tt.tests}})
			if out.Kind != tt.wantKind {
				t.Errorf("expected kind %s, got %s", tt.wantKind, out.Kind)
			}
			if got := referenceCalls > 0; got != tt.wantReference {
				t.Errorf("reference called = %v, want %v", got, tt.wantReference)
			}
		})
	}
}

func TestValidateLevels(t *testing.T) {
	good := Round{ID: "r", Evaluator: equalsEvaluator("a")}

	tests := []struct {
		name    string
		levels  []Level
		wantErr bool
	}{
		{"valid", []Level{{ID: "l1", Rounds: []Round{good}}}, false},
		{"no levels", nil, true},
		{"no rounds", []Level{{ID: "l1"}}, true},
		{"duplicate level", []Level{{ID: "l1", Rounds: []Round{good}}, {ID: "l1", Rounds: []Round{good}}}, true},
		{"duplicate round", []Level{{ID: "l1", Rounds: []Round{good, good}}}, true},
		{"missing evaluator", []Level{{ID: "l1", Rounds: []Round{{ID: "r"}}}}, true},
		{"negative time", []Level{{ID: "l1", Rounds: []Round{{ID: "r", Evaluator: good.Evaluator, TimeLimitSeconds: -1}}}}, true},
		{"bad hint mode", []Level{{ID: "l1", HintMode: "later", Rounds: []Round{good}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLevels(tt.levels)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateLevels() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidLevel) {
				t.Errorf("expected ErrInvalidLevel, got %v", err)
			}
		})
	}
}

func TestCheckCursor(t *testing.T) {
	levels := []Level{{ID: "l1", Rounds: []Round{{ID: "a"}, {ID: "b"}}}}

	if err := CheckCursor(levels, 0, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range [][2]int{{1, 0}, {0, 2}, {-1, 0}} {
		if err := CheckCursor(levels, c[0], c[1]); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("cursor %v: expected ErrOutOfRange, got %v", c, err)
		}
	}
}

type listPrompt struct{ Items []string }

func (p listPrompt) Clone() any {
	p.Items = append([]string(nil), p.Items...)
	return p
}

func TestClonePayload(t *testing.T) {
	orig := listPrompt{Items: []string{"a", "b"}}
	cp := ClonePayload(orig).(listPrompt)
	cp.Items[0] = "z"
	if orig.Items[0] != "a" {
		t.Error("Cloner payload shares its slice")
	}

	m := map[string]string{"topic": "loops"}
	ClonePayload(m).(map[string]string)["topic"] = "x"
	if m["topic"] != "loops" {
		t.Error("map payload was not copied")
	}

	s := []string{"x"}
	ClonePayload(s).([]string)[0] = "y"
	if s[0] != "x" {
		t.Error("slice payload was not copied")
	}

	if ClonePayload("text") != "text" || ClonePayload(nil) != nil {
		t.Error("plain values should pass through")
	}
}
