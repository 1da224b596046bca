package games

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/MJE43/levelup/internal/engine"
	"github.com/MJE43/levelup/internal/scripting"
)

// Phase is a step of the red/green/refactor cycle.
type Phase string

const (
	PhaseRed      Phase = "red"
	PhaseGreen    Phase = "green"
	PhaseRefactor Phase = "refactor"
)

// Answer field names used by the gauntlet.
const (
	FieldTests = "tests"
	FieldCode  = "code"
)

// TDDPrompt is the round content shown for one phase.
type TDDPrompt struct {
	Phase        Phase  `json:"phase"`
	Instructions string `json:"instructions"`
	Spec         string `json:"spec"`
	FunctionCode string `json:"functionCode"`
	TestCode     string `json:"testCode,omitempty"`
	StarterTest  string `json:"starterTest,omitempty"`
}

// LevelTopic is the level content shown on the intro screen.
type LevelTopic struct {
	Topic string `json:"topic"`
}

type tddLevel struct {
	id, title, topic, spec string
	buggy, correct, messy  string
	fixtureTests           string
	starterTest            string
	redHint                string
}

var tddLevels = []tddLevel{
	{
		id:    "sum-positives",
		title: "Sum of Positives",
		topic: "Basic Arithmetic",
		spec:  "sumPositives(numbers) returns the sum of all positive numbers in the array. Negative numbers and zero are ignored.",
		buggy: `function sumPositives(numbers) {
  let total = 0;
  for (let i = 0; i < numbers.length; i++) {
    total += numbers[i];
  }
  return total;
}`,
		correct: `function sumPositives(numbers) {
  let total = 0;
  for (let i = 0; i < numbers.length; i++) {
    if (numbers[i] > 0) total += numbers[i];
  }
  return total;
}`,
		messy: `function sumPositives(numbers) {
  let total = 0;
  for (let i = 0; i < numbers.length; i++) {
    if (numbers[i] > 0) {
      total = total + numbers[i];
    } else {
      total = total + 0;
    }
  }
  return total;
}`,
		fixtureTests: `test('sums only positive numbers', function() {
  expect(sumPositives([1, -2, 3, -4, 5])).toBe(9);
});
test('returns 0 for an empty array', function() {
  expect(sumPositives([])).toBe(0);
});
test('ignores zero', function() {
  expect(sumPositives([0, 1, 2])).toBe(3);
});`,
		starterTest: `test('only sums positive numbers', function() {
  // expect(sumPositives([...])).toBe(...);
});`,
		redHint: "What happens when the array contains negative numbers?",
	},
	{
		id:    "fizzbuzz",
		title: "FizzBuzz",
		topic: "Conditionals",
		spec:  "fizzBuzz(n) returns 'FizzBuzz' when n is divisible by 3 and 5, 'Fizz' when divisible by 3, 'Buzz' when divisible by 5, otherwise String(n).",
		buggy: `function fizzBuzz(n) {
  if (n % 3 === 0) return 'Fizz';
  if (n % 5 === 0) return 'Buzz';
  if (n % 15 === 0) return 'FizzBuzz';
  return String(n);
}`,
		correct: `function fizzBuzz(n) {
  if (n % 15 === 0) return 'FizzBuzz';
  if (n % 3 === 0) return 'Fizz';
  if (n % 5 === 0) return 'Buzz';
  return String(n);
}`,
		messy: `function fizzBuzz(n) {
  var out = '';
  if (n % 3 === 0 && n % 5 === 0) { out = 'FizzBuzz'; return out; }
  if (n % 3 === 0 && !(n % 5 === 0)) { out = 'Fizz'; return out; }
  if (n % 5 === 0 && !(n % 3 === 0)) { out = 'Buzz'; return out; }
  out = '' + n;
  return out;
}`,
		fixtureTests: `test('multiples of 15', function() {
  expect(fizzBuzz(30)).toBe('FizzBuzz');
});
test('multiples of 3', function() {
  expect(fizzBuzz(9)).toBe('Fizz');
});
test('multiples of 5', function() {
  expect(fizzBuzz(10)).toBe('Buzz');
});
test('other numbers', function() {
  expect(fizzBuzz(7)).toBe('7');
});`,
		starterTest: `test('handles multiples of both 3 and 5', function() {
  // expect(fizzBuzz(...)).toBe(...);
});`,
		redHint: "Which branch wins for 15? The order of the checks matters.",
	},
	{
		id:    "is-palindrome",
		title: "Palindromes",
		topic: "Strings",
		spec:  "isPalindrome(s) returns true when s reads the same backwards, ignoring case and any non-alphanumeric characters.",
		buggy: `function isPalindrome(s) {
  return s === s.split('').reverse().join('');
}`,
		correct: `function isPalindrome(s) {
  const clean = s.toLowerCase().replace(/[^a-z0-9]/g, '');
  return clean === clean.split('').reverse().join('');
}`,
		messy: `function isPalindrome(s) {
  var chars = [];
  for (var i = 0; i < s.length; i++) {
    var c = s[i].toLowerCase();
    if ((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')) { chars.push(c); }
  }
  var ok = true;
  for (var j = 0; j < chars.length; j++) {
    if (chars[j] !== chars[chars.length - 1 - j]) { ok = false; }
  }
  return ok;
}`,
		fixtureTests: `test('simple palindrome', function() {
  expect(isPalindrome('racecar')).toBeTruthy();
});
test('ignores case', function() {
  expect(isPalindrome('Level')).toBeTruthy();
});
test('ignores punctuation', function() {
  expect(isPalindrome('A man, a plan, a canal: Panama')).toBeTruthy();
});
test('rejects non-palindromes', function() {
  expect(isPalindrome('hello')).toBeFalsy();
});`,
		starterTest: `test('ignores letter case', function() {
  // expect(isPalindrome(...)).toBe...
});`,
		redHint: "The spec says case should not matter. Does the code agree?",
	},
}

// GauntletGame is the red/green/refactor unit-testing trainer.
type GauntletGame struct{}

// Spec implements Game.
func (g *GauntletGame) Spec() GameSpec {
	return GameSpec{
		ID:          "gauntlet",
		Name:        "Unit Testing Gauntlet",
		Description: "Expose a bug with a failing test, fix the code, then refactor it without breaking the tests.",
		Levels:      len(tddLevels),
	}
}

// Levels implements Game.
func (g *GauntletGame) Levels(env Env) []engine.Level {
	levels := make([]engine.Level, 0, len(tddLevels))
	for _, lv := range tddLevels {
		levels = append(levels, engine.Level{
			ID:          lv.id,
			Title:       lv.title,
			Description: lv.spec,
			Content:     LevelTopic{Topic: lv.topic},
			Rounds: []engine.Round{
				{
					ID: string(PhaseRed),
					Prompt: TDDPrompt{
						Phase:        PhaseRed,
						Instructions: "This function has a bug. Write a test that fails against it.",
						Spec:         lv.spec,
						FunctionCode: lv.buggy,
						StarterTest:  lv.starterTest,
					},
					Evaluator: engine.Compose(redPrimary(env.Executor, lv), redReference(env.Executor, lv)),
					Hints:     []string{lv.redHint},
					Retryable: true,
				},
				{
					ID: string(PhaseGreen),
					Prompt: TDDPrompt{
						Phase:        PhaseGreen,
						Instructions: "These tests fail. Fix the function so that all of them pass.",
						Spec:         lv.spec,
						FunctionCode: lv.buggy,
						TestCode:     lv.fixtureTests,
					},
					Evaluator: greenEvaluator(env.Executor, lv),
					Hints:     []string{"Read the failing test message: it names the expected and actual values."},
					Retryable: true,
				},
				{
					ID: string(PhaseRefactor),
					Prompt: TDDPrompt{
						Phase:        PhaseRefactor,
						Instructions: "The function works but is messy. Clean it up without breaking any test.",
						Spec:         lv.spec,
						FunctionCode: lv.messy,
						TestCode:     lv.fixtureTests,
					},
					Evaluator: refactorEvaluator(env.Executor, lv),
					Hints:     []string{"Remove redundant branches and temporary variables."},
					Retryable: true,
				},
			},
		})
	}
	return levels
}

// redPrimary runs the student's tests against the buggy function. A failing
// assertion is what we want here, so it is reported as an assertion-style
// Incorrect for the reference check to confirm.
func redPrimary(exec scripting.Executor, lv tddLevel) engine.Evaluator {
	return engine.EvaluatorFunc(func(a *engine.Answer) engine.Outcome {
		report, err := exec.RunTests(lv.buggy, a.Field(FieldTests))
		if err != nil {
			return engine.Errored(err.Error())
		}
		if len(report.Results) == 0 {
			return engine.Incorrect("No tests found. Use test('name', function() { ... }).")
		}
		if report.HasRuntimeFailure() {
			res, _ := report.FirstFailure()
			return engine.Errored(res.Error)
		}
		if report.AllPassed() {
			return engine.Incorrect("All tests passed, but they should catch the bug.")
		}
		res, _ := report.FirstFailure()
		return engine.AssertionFailed(res.Error)
	})
}

// redReference confirms the student's tests pass against a correct
// implementation, so the failure above exposed the bug and not a bad test.
func redReference(exec scripting.Executor, lv tddLevel) engine.Evaluator {
	return engine.EvaluatorFunc(func(a *engine.Answer) engine.Outcome {
		report, err := exec.RunTests(lv.correct, a.Field(FieldTests))
		if err != nil {
			return engine.Errored(err.Error())
		}
		if report.AllPassed() {
			return engine.Correct("Your test fails on the buggy code and passes on a correct implementation.")
		}
		res, _ := report.FirstFailure()
		return engine.Incorrect(fmt.Sprintf("Your test also fails against a correct implementation: %s", res.Error))
	})
}

func greenEvaluator(exec scripting.Executor, lv tddLevel) engine.Evaluator {
	return engine.EvaluatorFunc(func(a *engine.Answer) engine.Outcome {
		return runFixtureTests(exec, a.Field(FieldCode), lv.fixtureTests)
	})
}

func refactorEvaluator(exec scripting.Executor, lv tddLevel) engine.Evaluator {
	return engine.EvaluatorFunc(func(a *engine.Answer) engine.Outcome {
		code := a.Field(FieldCode)
		out := runFixtureTests(exec, code, lv.fixtureTests)
		if !out.IsCorrect() {
			return out
		}
		if NormalizeCode(code) == NormalizeCode(lv.messy) {
			return engine.Incorrect("The code is unchanged. Refactor it!")
		}
		return engine.Correct("Cleaner code, same behaviour.")
	})
}

func runFixtureTests(exec scripting.Executor, code, tests string) engine.Outcome {
	report, err := exec.RunTests(code, tests)
	if err != nil {
		return engine.Errored(err.Error())
	}
	if report.AllPassed() {
		return engine.Correct(fmt.Sprintf("All %d tests pass.", len(report.Results)))
	}
	res, ok := report.FirstFailure()
	if !ok {
		return engine.Incorrect("No tests ran.")
	}
	msg := fmt.Sprintf("%d/%d tests pass. %s: %s", report.Passed(), len(report.Results), res.Name, res.Error)
	if !res.Assertion {
		return engine.Errored(msg)
	}
	return engine.Incorrect(msg)
}

var (
	blockComment = regexp2.MustCompile(`/\*[\s\S]*?\*/`, regexp2.ECMAScript)
	lineComment  = regexp2.MustCompile(`//[^\n]*`, regexp2.ECMAScript)
)

// NormalizeCode strips comments and whitespace so cosmetic edits do not
// count as a refactor.
func NormalizeCode(code string) string {
	out, err := blockComment.Replace(code, "", -1, -1)
	if err != nil {
		out = code
	}
	if stripped, err := lineComment.Replace(out, "", -1, -1); err == nil {
		out = stripped
	}
	return strings.Join(strings.Fields(out), "")
}
