package games

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MJE43/levelup/internal/engine"
)

// Complexity classes offered as answers.
var ComplexityOptions = []string{"O(1)", "O(log n)", "O(n)", "O(n log n)", "O(n^2)", "O(2^n)"}

const classifySeconds = 15

// ClassifyPrompt asks for the complexity class of a snippet.
type ClassifyPrompt struct {
	Code    string   `json:"code"`
	Options []string `json:"options"`
}

// Clone implements engine.Cloner.
func (p ClassifyPrompt) Clone() any {
	p.Options = slices.Clone(p.Options)
	return p
}

// GrowthPrompt asks the player to predict operation counts for given inputs.
type GrowthPrompt struct {
	Class    string `json:"class"`
	Inputs   []int  `json:"inputs"`
	MaxOps   int    `json:"maxOps"`
	Guidance string `json:"guidance"`
}

// Clone implements engine.Cloner.
func (p GrowthPrompt) Clone() any {
	p.Inputs = slices.Clone(p.Inputs)
	return p
}

// ArenaAlgorithm is one contender in an arena round.
type ArenaAlgorithm struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// ArenaPrompt asks which of two algorithms is faster for large n.
type ArenaPrompt struct {
	A        ArenaAlgorithm `json:"a"`
	B        ArenaAlgorithm `json:"b"`
	Question string         `json:"question"`
}

type classifyRound struct {
	id, code, answer, explanation string
}

type growthRound struct {
	id, class   string
	inputs      []int
	maxOps      float64
	fn          func(n float64) float64
	explanation string
}

var classifyLevel = []classifyRound{
	{
		id:          "first-element",
		code:        "function first(arr) {\n  return arr[0];\n}",
		answer:      "O(1)",
		explanation: "Indexing an array takes the same time no matter how long it is.",
	},
	{
		id:          "sum-all",
		code:        "function sum(arr) {\n  let s = 0;\n  for (const x of arr) s += x;\n  return s;\n}",
		answer:      "O(n)",
		explanation: "One pass over the input: work grows linearly with n.",
	},
	{
		id:          "all-pairs",
		code:        "function pairs(arr) {\n  for (let i = 0; i < arr.length; i++)\n    for (let j = 0; j < arr.length; j++)\n      console.log(arr[i], arr[j]);\n}",
		answer:      "O(n^2)",
		explanation: "A loop over n inside a loop over n gives n × n steps.",
	},
	{
		id:          "binary-search",
		code:        "function find(sorted, t) {\n  let lo = 0, hi = sorted.length - 1;\n  while (lo <= hi) {\n    const mid = (lo + hi) >> 1;\n    if (sorted[mid] === t) return mid;\n    if (sorted[mid] < t) lo = mid + 1; else hi = mid - 1;\n  }\n  return -1;\n}",
		answer:      "O(log n)",
		explanation: "Each step halves the search space.",
	},
}

var logLevel = []classifyRound{
	{
		id:          "halving-loop",
		code:        "for (let i = n; i > 1; i = Math.floor(i / 2)) {\n  work();\n}",
		answer:      "O(log n)",
		explanation: "i halves each iteration, so the loop runs about log2(n) times.",
	},
	{
		id:          "merge-sort",
		code:        "function sort(a) {\n  if (a.length < 2) return a;\n  const m = a.length >> 1;\n  return merge(sort(a.slice(0, m)), sort(a.slice(m)));\n}",
		answer:      "O(n log n)",
		explanation: "log n levels of splitting, each doing O(n) merge work.",
	},
	{
		id:          "naive-fib",
		code:        "function fib(n) {\n  if (n < 2) return n;\n  return fib(n - 1) + fib(n - 2);\n}",
		answer:      "O(2^n)",
		explanation: "Every call branches into two more calls.",
	},
}

var growthLevel = []growthRound{
	{
		id: "linear", class: "O(n)", inputs: []int{10, 50, 100}, maxOps: 120,
		fn:          func(n float64) float64 { return n },
		explanation: "Linear growth: doubling n doubles the work.",
	},
	{
		id: "quadratic", class: "O(n^2)", inputs: []int{10, 30, 50}, maxOps: 2600,
		fn:          func(n float64) float64 { return n * n },
		explanation: "Quadratic growth: doubling n quadruples the work.",
	},
	{
		id: "logarithmic", class: "O(log n)", inputs: []int{2, 16, 64}, maxOps: 160,
		fn: func(n float64) float64 {
			if n <= 0 {
				return 0
			}
			return math.Log2(n) * 20
		},
		explanation: "Logarithmic growth flattens out quickly as n increases.",
	},
}

var nestedLevel = []classifyRound{
	{
		id:          "print-pairs",
		code:        "function printPairs(arr) {\n  for (let i = 0; i < arr.length; i++) {\n    for (let j = 0; j < arr.length; j++) {\n      console.log(arr[i], arr[j]);\n    }\n  }\n}",
		answer:      "O(n^2)",
		explanation: "Two nested loops, each going 0 to n. Total: n × n.",
	},
	{
		id:          "two-scans",
		code:        "function twoScans(arr) {\n  for (let i = 0; i < arr.length; i++) {\n    console.log(arr[i]);\n  }\n  for (let j = 0; j < arr.length; j++) {\n    console.log(arr[j] * 2);\n  }\n}",
		answer:      "O(n)",
		explanation: "Sequential loops add, nested loops multiply. n + n = 2n, and the constant drops.",
	},
	{
		id:          "fixed-inner",
		code:        "function process(arr) {\n  for (let i = 0; i < arr.length; i++) {\n    for (let j = 0; j < 5; j++) {\n      console.log(arr[i] + j);\n    }\n  }\n}",
		answer:      "O(n)",
		explanation: "The inner loop always runs 5 times whatever n is. 5n drops to n.",
	},
	{
		id:          "triangle",
		code:        "function triangle(n) {\n  for (let i = 0; i < n; i++) {\n    for (let j = 0; j <= i; j++) {\n      console.log(i, j);\n    }\n  }\n}",
		answer:      "O(n^2)",
		explanation: "1 + 2 + … + n = n(n+1)/2, still quadratic.",
	},
}

type arenaRound struct {
	id          string
	a, b        ArenaAlgorithm
	faster      string
	explanation string
}

var arenaLevel = []arenaRound{
	{
		id:          "search-off",
		a:           ArenaAlgorithm{Name: "Linear Search", Code: "function linearSearch(arr, t) {\n  for (let i = 0; i < arr.length; i++) {\n    if (arr[i] === t) return i;\n  }\n  return -1;\n}"},
		b:           ArenaAlgorithm{Name: "Binary Search", Code: "function binarySearch(arr, t) {\n  let lo = 0, hi = arr.length - 1;\n  while (lo <= hi) {\n    let m = Math.floor((lo+hi)/2);\n    if (arr[m] === t) return m;\n    if (arr[m] < t) lo = m + 1;\n    else hi = m - 1;\n  }\n  return -1;\n}"},
		faster:      "B",
		explanation: "Linear search is O(n), binary search is O(log n). At n = 1000 that is about 1000 steps against 10, given a sorted array.",
	},
	{
		id:          "sort-off",
		a:           ArenaAlgorithm{Name: "Bubble Sort", Code: "function bubbleSort(arr) {\n  for (let i = 0; i < arr.length; i++) {\n    for (let j = 0; j < arr.length-1; j++) {\n      if (arr[j] > arr[j+1])\n        [arr[j], arr[j+1]] = [arr[j+1], arr[j]];\n    }\n  }\n}"},
		b:           ArenaAlgorithm{Name: "Merge Sort", Code: "function mergeSort(arr) {\n  if (arr.length <= 1) return arr;\n  let mid = Math.floor(arr.length/2);\n  let L = mergeSort(arr.slice(0, mid));\n  let R = mergeSort(arr.slice(mid));\n  return merge(L, R); // O(n) merge\n}"},
		faster:      "B",
		explanation: "Bubble sort is O(n^2), merge sort O(n log n). At n = 1000 that is a million steps against ten thousand.",
	},
	{
		id:          "pair-sum-off",
		a:           ArenaAlgorithm{Name: "Brute-Force Pair Sum", Code: "function pairSumBrute(arr, target) {\n  for (let i = 0; i < arr.length; i++) {\n    for (let j = i+1; j < arr.length; j++) {\n      if (arr[i]+arr[j] === target)\n        return [i, j];\n    }\n  }\n  return null;\n}"},
		b:           ArenaAlgorithm{Name: "Hash-Map Pair Sum", Code: "function pairSumHash(arr, target) {\n  let seen = {};\n  for (let i = 0; i < arr.length; i++) {\n    let need = target - arr[i];\n    if (seen[need] !== undefined)\n      return [seen[need], i];\n    seen[arr[i]] = i;\n  }\n  return null;\n}"},
		faster:      "B",
		explanation: "Checking every pair is O(n^2). One pass with O(1) lookups is O(n): space traded for time.",
	},
}

// growthPassMark is the minimum prediction accuracy counted as correct.
var growthPassMark = decimal.NewFromFloat(0.4)

// BigOGame is the complexity classification dojo.
type BigOGame struct{}

// Spec implements Game.
func (g *BigOGame) Spec() GameSpec {
	return GameSpec{
		ID:          "bigo",
		Name:        "Big-O Dojo",
		Description: "Classify code by time complexity against the clock, predict growth curves, then pick arena winners.",
		Levels:      5,
	}
}

// Levels implements Game.
func (g *BigOGame) Levels(env Env) []engine.Level {
	return []engine.Level{
		{
			ID:          "classify",
			Title:       "Classify",
			Description: "Read the code and pick its Big-O class before time runs out.",
			Rounds:      classifyRounds(classifyLevel),
		},
		{
			ID:          "growth-lab",
			Title:       "Growth Lab",
			Description: "Predict how many operations each input size needs.",
			Rounds:      growthRounds(growthLevel),
		},
		{
			ID:          "nested-depths",
			Title:       "Nested Depths",
			Description: "Nested loops, sequential loops and traps. Check what each bound depends on.",
			Rounds:      classifyRounds(nestedLevel),
		},
		{
			ID:          "log-rhythms",
			Title:       "Log Rhythms",
			Description: "Spot halving, splitting and branching patterns.",
			Rounds:      classifyRounds(logLevel),
		},
		{
			ID:          "arena",
			Title:       "The Arena",
			Description: "Two algorithms enter. Pick the one that wins for large n.",
			Rounds:      arenaRounds(arenaLevel),
			Reward:      engine.LevelReward{CompletionBonus: 100},
		},
	}
}

func classifyRounds(data []classifyRound) []engine.Round {
	rounds := make([]engine.Round, 0, len(data))
	for _, r := range data {
		rounds = append(rounds, engine.Round{
			ID:               r.id,
			Prompt:           ClassifyPrompt{Code: r.code, Options: slices.Clone(ComplexityOptions)},
			Evaluator:        classifyEvaluator(r),
			TimeLimitSeconds: classifySeconds,
			Hints:            []string{"Count how many times the innermost statement runs as n grows."},
		})
	}
	return rounds
}

func classifyEvaluator(r classifyRound) engine.Evaluator {
	want := normalizeComplexity(r.answer)
	return engine.EvaluatorFunc(func(a *engine.Answer) engine.Outcome {
		got := normalizeComplexity(a.Text)
		if got == "" {
			return engine.Errored("Pick one of: " + strings.Join(ComplexityOptions, ", "))
		}
		if got == want {
			return engine.Correct(r.explanation)
		}
		out := engine.Incorrect(fmt.Sprintf("The answer was %s.", r.answer))
		out.Explanation = r.explanation
		return out
	})
}

// normalizeComplexity maps spellings like "o(n²)" or "O(N^2)" to one key.
func normalizeComplexity(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), ""))
	s = strings.NewReplacer("²", "^2", "ⁿ", "^n", "*", "").Replace(s)
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "o(") {
		s = "o(" + s + ")"
	}
	return s
}

func arenaRounds(data []arenaRound) []engine.Round {
	rounds := make([]engine.Round, 0, len(data))
	for _, r := range data {
		rounds = append(rounds, engine.Round{
			ID: r.id,
			Prompt: ArenaPrompt{
				A:        r.a,
				B:        r.b,
				Question: "Which one is faster for large n? Answer A or B.",
			},
			Evaluator: arenaEvaluator(r),
			Hints:     []string{"Work out the Big-O of each, then compare them at n = 1000."},
		})
	}
	return rounds
}

// arenaEvaluator takes the letter or the algorithm's name.
func arenaEvaluator(r arenaRound) engine.Evaluator {
	winner := r.a
	if r.faster == "B" {
		winner = r.b
	}
	return engine.EvaluatorFunc(func(a *engine.Answer) engine.Outcome {
		var pick string
		switch choice := strings.TrimSpace(a.Text); {
		case strings.EqualFold(choice, "A"), strings.EqualFold(choice, r.a.Name):
			pick = "A"
		case strings.EqualFold(choice, "B"), strings.EqualFold(choice, r.b.Name):
			pick = "B"
		default:
			return engine.Errored(fmt.Sprintf("Answer A (%s) or B (%s).", r.a.Name, r.b.Name))
		}
		if pick == r.faster {
			return engine.Correct(r.explanation)
		}
		out := engine.Incorrect(winner.Name + " wins for large n.")
		out.Explanation = r.explanation
		return out
	})
}

func growthRounds(data []growthRound) []engine.Round {
	rounds := make([]engine.Round, 0, len(data))
	for _, r := range data {
		rounds = append(rounds, engine.Round{
			ID: r.id,
			Prompt: GrowthPrompt{
				Class:    r.class,
				Inputs:   slices.Clone(r.inputs),
				MaxOps:   int(r.maxOps),
				Guidance: "Answer with one operation count per input, comma separated.",
			},
			Evaluator: growthEvaluator(r),
			Hints:     []string{fmt.Sprintf("Plug each input into %s.", r.class)},
		})
	}
	return rounds
}

func growthEvaluator(r growthRound) engine.Evaluator {
	return engine.EvaluatorFunc(func(a *engine.Answer) engine.Outcome {
		preds, err := parsePredictions(a.Text, len(r.inputs))
		if err != nil {
			return engine.Errored(err.Error())
		}
		acc := GrowthAccuracy(preds, r.inputs, r.fn, r.maxOps)
		pct := acc.Mul(decimal.NewFromInt(100)).Round(0)
		if acc.GreaterThanOrEqual(growthPassMark) {
			return engine.PartialCredit(fmt.Sprintf("Accuracy %s%%. %s", pct, r.explanation), int(pct.IntPart()))
		}
		out := engine.Incorrect(fmt.Sprintf("Accuracy %s%%, need at least 40%%.", pct))
		out.Explanation = r.explanation
		return out
	})
}

func parsePredictions(text string, want int) ([]decimal.Decimal, error) {
	parts := strings.Split(text, ",")
	if strings.TrimSpace(text) == "" || len(parts) != want {
		return nil, fmt.Errorf("expected %d comma separated numbers", want)
	}
	out := make([]decimal.Decimal, 0, want)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if _, err := strconv.ParseFloat(p, 64); err != nil {
			return nil, fmt.Errorf("%q is not a number", p)
		}
		d, err := decimal.NewFromString(p)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", p)
		}
		out = append(out, d)
	}
	return out, nil
}

// GrowthAccuracy is max(0, 1 - 3 * mean(|pred - actual| / maxOps)).
func GrowthAccuracy(preds []decimal.Decimal, inputs []int, fn func(float64) float64, maxOps float64) decimal.Decimal {
	if len(preds) == 0 || len(preds) != len(inputs) || maxOps <= 0 {
		return decimal.Zero
	}
	scale := decimal.NewFromFloat(maxOps)
	total := decimal.Zero
	for i, p := range preds {
		actual := decimal.NewFromFloat(fn(float64(inputs[i])))
		total = total.Add(p.Sub(actual).Abs().Div(scale))
	}
	avg := total.Div(decimal.NewFromInt(int64(len(preds))))
	acc := decimal.NewFromInt(1).Sub(avg.Mul(decimal.NewFromInt(3)))
	if acc.IsNegative() {
		return decimal.Zero
	}
	return acc
}
