package games

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/shopspring/decimal"

	"github.com/MJE43/levelup/internal/engine"
)

// patternTimeout bounds a single player regex so backtracking cannot hang a round.
const patternTimeout = 250 * time.Millisecond

// TokenPrompt asks for a pattern that matches exactly the highlighted tokens.
type TokenPrompt struct {
	Goal     string   `json:"goal"`
	Source   string   `json:"source"`
	Expected []string `json:"expected"`
}

// Clone implements engine.Cloner.
func (p TokenPrompt) Clone() any {
	p.Expected = slices.Clone(p.Expected)
	return p
}

// MatchReport compares a pattern's matches with the expected tokens.
type MatchReport struct {
	Expected       int             `json:"expected"`
	Correct        int             `json:"correct"`
	FalsePositives int             `json:"falsePositives"`
	Percent        decimal.Decimal `json:"percent"`
}

// Complete reports whether every token matched with nothing extra.
func (r MatchReport) Complete() bool {
	return r.Expected > 0 && r.Correct == r.Expected && r.FalsePositives == 0
}

type token struct {
	index int
	text  string
}

func (t token) key() string { return strconv.Itoa(t.index) + ":" + t.text }

// CompilePattern compiles a player pattern and rejects ones that match the
// empty string.
func CompilePattern(pattern string) (*regexp2.Regexp, error) {
	return compileWith(pattern, 0)
}

func compileWith(pattern string, opts regexp2.RegexOptions) (*regexp2.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("pattern is empty")
	}
	re, err := regexp2.Compile(pattern, regexp2.ECMAScript|opts)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	re.MatchTimeout = patternTimeout
	empty, err := re.MatchString("")
	if err != nil {
		return nil, err
	}
	if empty {
		return nil, fmt.Errorf("pattern %q matches the empty string", pattern)
	}
	return re, nil
}

// splitLiteral splits a /body/flags literal. ok is false when input is not
// written as one.
func splitLiteral(input string) (body, flags string, ok bool) {
	if len(input) < 3 || input[0] != '/' || strings.HasPrefix(input, "//") {
		return "", "", false
	}
	end := strings.LastIndexByte(input, '/')
	if end == 0 {
		return "", "", false
	}
	flags = input[end+1:]
	for _, c := range flags {
		if c < 'a' || c > 'z' {
			return "", "", false
		}
	}
	return input[1:end], flags, true
}

// literalOptions maps literal flags to regexp2 options. g is implied since
// every match is collected anyway.
func literalOptions(flags string) (regexp2.RegexOptions, error) {
	var opts regexp2.RegexOptions
	for _, c := range flags {
		switch c {
		case 'g':
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			opts |= regexp2.Singleline
		default:
			return 0, fmt.Errorf("unsupported regex flag %q, use g, i, m or s", c)
		}
	}
	return opts, nil
}

// compileInput compiles what a player typed. A /body/ literal without flags
// could also be a raw pattern that matches slashes, so both readings are
// returned, literal first.
func compileInput(input string) ([]*regexp2.Regexp, error) {
	input = strings.TrimSpace(input)
	body, flags, ok := splitLiteral(input)
	if !ok {
		re, err := CompilePattern(input)
		if err != nil {
			return nil, err
		}
		return []*regexp2.Regexp{re}, nil
	}
	opts, err := literalOptions(flags)
	if err != nil {
		return nil, err
	}
	lit, litErr := compileWith(body, opts)
	if flags != "" {
		if litErr != nil {
			return nil, litErr
		}
		return []*regexp2.Regexp{lit}, nil
	}

	var out []*regexp2.Regexp
	if litErr == nil {
		out = append(out, lit)
	}
	if raw, err := CompilePattern(input); err == nil {
		out = append(out, raw)
	}
	if len(out) == 0 {
		return nil, litErr
	}
	return out, nil
}

func findTokens(re *regexp2.Regexp, source string) ([]token, error) {
	var out []token
	m, err := re.FindStringMatch(source)
	for err == nil && m != nil {
		if m.Length > 0 {
			out = append(out, token{index: m.Index, text: m.String()})
		}
		m, err = re.FindNextMatch(m)
	}
	return out, err
}

// ScoreMatches scores player matches against expected ones by position and text.
func ScoreMatches(expected, got []token) MatchReport {
	want := make(map[string]bool, len(expected))
	for _, t := range expected {
		want[t.key()] = true
	}
	report := MatchReport{Expected: len(expected), Percent: decimal.Zero}
	for _, t := range got {
		if want[t.key()] {
			report.Correct++
		} else {
			report.FalsePositives++
		}
	}
	if report.Expected == 0 {
		return report
	}
	pct := decimal.NewFromInt(int64(report.Correct - report.FalsePositives)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(report.Expected))).
		Round(0)
	if pct.IsNegative() {
		pct = decimal.Zero
	}
	report.Percent = pct
	return report
}

type tokenRound struct {
	id, goal, source, target string
	hints                    []string
}

const declSource = "int x = 42;\nfloat pi = 3.14;\nint sum = x + 100;"

const ctrlSource = `// count down
int n = 10;
while (n > 0) {
  if (n == 5) { print("halfway"); }
  n = n - 1;
}
return "done";`

var lexLevels = []struct {
	id, title, description string
	rounds                 []tokenRound
}{
	{
		id:          "literals",
		title:       "Literals and Names",
		description: "Write regular expressions that pick out numbers and identifiers.",
		rounds: []tokenRound{
			{
				id: "number-crunch", goal: "Match every run of digits.", source: declSource, target: `[0-9]+`,
				hints: []string{"A character class like [0-9] matches one digit.", "Add + to match one or more."},
			},
			{
				id: "go-float", goal: "Match only the floating point number.", source: declSource, target: `[0-9]+\.[0-9]+`,
				hints: []string{"A dot on its own matches any character.", `Escape the dot: \.`},
			},
			{
				id: "name-game", goal: "Match every identifier, keywords included.", source: declSource, target: `[a-zA-Z_][a-zA-Z0-9_]*`,
				hints: []string{"Identifiers cannot start with a digit.", "Digits are fine after the first character."},
			},
		},
	},
	{
		id:          "structure",
		title:       "Keywords and Friends",
		description: "Separate keywords, operators, strings and comments.",
		rounds: []tokenRound{
			{
				id: "keywords", goal: "Match the keywords if, else, while, return, int and float.", source: ctrlSource,
				target: `\b(if|else|while|return|int|float)\b`,
				hints:  []string{"Alternation with | lists choices.", `\b stops "int" from matching inside "print".`},
			},
			{
				id: "operators", goal: "Match the comparison and arithmetic operators.", source: ctrlSource,
				target: `==|[<>=+\-]`,
				hints:  []string{"Put the two-character operator first.", "Inside a class, escape the minus sign."},
			},
			{
				id: "strings", goal: "Match each string literal including its quotes.", source: ctrlSource, target: `"[^"]*"`,
				hints: []string{"A string runs from one quote to the next.", `[^"]* matches anything but a quote.`},
			},
			{
				id: "comments", goal: "Match the line comment.", source: ctrlSource, target: `//[^\n]*`,
				hints: []string{"Comments start with two slashes.", `[^\n]* stops at the end of the line.`},
			},
		},
	},
}

// LexerGame is the regex tokenizer puzzle pack.
type LexerGame struct{}

// Spec implements Game.
func (g *LexerGame) Spec() GameSpec {
	return GameSpec{
		ID:          "lexer",
		Name:        "Lexer Lab",
		Description: "Write regular expressions that tokenize source code.",
		Levels:      len(lexLevels) + 1,
	}
}

// Levels implements Game.
func (g *LexerGame) Levels(env Env) []engine.Level {
	levels := make([]engine.Level, 0, len(lexLevels)+1)
	for _, lv := range lexLevels {
		rounds := make([]engine.Round, 0, len(lv.rounds))
		for _, r := range lv.rounds {
			expected := mustTokens(r.target, r.source)
			texts := make([]string, 0, len(expected))
			for _, t := range expected {
				texts = append(texts, t.text)
			}
			rounds = append(rounds, engine.Round{
				ID:        r.id,
				Prompt:    TokenPrompt{Goal: r.goal, Source: r.source, Expected: texts},
				Evaluator: tokenEvaluator(expected, r.source),
				Hints:     r.hints,
				Retryable: true,
			})
		}
		levels = append(levels, engine.Level{
			ID:          lv.id,
			Title:       lv.title,
			Description: lv.description,
			Rounds:      rounds,
			Reward:      engine.LevelReward{NoHintBonus: 50},
		})
	}
	return append(levels, ruleOrderLevel())
}

func mustTokens(pattern, source string) []token {
	re := regexp2.MustCompile(pattern, regexp2.ECMAScript)
	toks, err := findTokens(re, source)
	if err != nil {
		panic(fmt.Sprintf("lexer: target %q: %v", pattern, err))
	}
	return toks
}

func tokenEvaluator(expected []token, source string) engine.Evaluator {
	return engine.EvaluatorFunc(func(a *engine.Answer) engine.Outcome {
		candidates, err := compileInput(a.Text)
		if err != nil {
			return engine.Errored(err.Error())
		}
		var best MatchReport
		for i, re := range candidates {
			got, err := findTokens(re, source)
			if err != nil {
				return engine.Errored(err.Error())
			}
			report := ScoreMatches(expected, got)
			if i == 0 || betterReport(report, best) {
				best = report
			}
		}
		if best.Complete() {
			return engine.Correct(fmt.Sprintf("All %d tokens matched.", best.Expected))
		}
		return engine.Incorrect(fmt.Sprintf("%s%% match: %d/%d tokens, %d extra.",
			best.Percent, best.Correct, best.Expected, best.FalsePositives))
	})
}

func betterReport(a, b MatchReport) bool {
	if a.Complete() != b.Complete() {
		return a.Complete()
	}
	return a.Percent.GreaterThan(b.Percent)
}
