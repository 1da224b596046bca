package games

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/shopspring/decimal"

	"github.com/MJE43/levelup/internal/engine"
)

// LexRule is one named token pattern of a rule-based lexer.
type LexRule struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
}

// RuleOrderPrompt asks for the priority order of a lexer's rules. Rules is
// the starting order; any rule's pattern can be replaced through an answer
// field named after it.
type RuleOrderPrompt struct {
	Goal     string    `json:"goal"`
	Source   string    `json:"source"`
	Rules    []LexRule `json:"rules"`
	Expected []string  `json:"expected"`
}

// Clone implements engine.Cloner.
func (p RuleOrderPrompt) Clone() any {
	p.Rules = slices.Clone(p.Rules)
	p.Expected = slices.Clone(p.Expected)
	return p
}

// LexToken is one token produced by a rule-based lexer.
type LexToken struct {
	Type  string
	Text  string
	Index int
}

func (t LexToken) String() string { return fmt.Sprintf("%s %q", t.Type, t.Text) }

type compiledRule struct {
	name string
	re   *regexp2.Regexp
}

// runLexer tokenizes source by trying the rules in order at each position.
// The first rule matching exactly at the position with nonzero length wins;
// a position no rule matches is skipped.
func runLexer(rules []compiledRule, source string) ([]LexToken, error) {
	runes := []rune(source)
	var out []LexToken
	for pos := 0; pos < len(runes); {
		matched := false
		for _, rule := range rules {
			m, err := rule.re.FindRunesMatchStartingAt(runes, pos)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", rule.name, err)
			}
			if m == nil || m.Index != pos || m.Length == 0 {
				continue
			}
			out = append(out, LexToken{Type: rule.name, Text: m.String(), Index: pos})
			pos += m.Length
			matched = true
			break
		}
		if !matched {
			pos++
		}
	}
	return out, nil
}

var fullLexerRules = []LexRule{
	{Name: "COMMENT", Pattern: `\/\/.*|\/\*[\s\S]*?\*\/`},
	{Name: "KEYWORD", Pattern: `\b(if|else|while|return|int|float)\b`},
	{Name: "FLOAT", Pattern: `[0-9]+\.[0-9]+`},
	{Name: "INTEGER", Pattern: `[0-9]+`},
	{Name: "IDENTIFIER", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "STRING", Pattern: `"[^"]*"`},
	{Name: "OPERATOR", Pattern: `[+\-*/<>=!&]{1,2}`},
}

// fullLexerStart is the order the player is handed; every rule that
// shadows another sits in front of it.
var fullLexerStart = []string{"INTEGER", "FLOAT", "IDENTIFIER", "KEYWORD", "OPERATOR", "STRING", "COMMENT"}

const fibSource = `// Fibonacci
int fibonacci(int n) {
  if (n <= 1) {
    return n;
  }
  /* Recursive case */
  int a = fibonacci(n - 1);
  int b = fibonacci(n - 2);
  return a + b;
}`

const rateSource = `float rate = 2.75;
int count = 3;
// total
float total = rate * count;`

var ruleOrderRounds = []struct {
	id, goal, source string
	hints            []string
}{
	{
		id:     "float-first",
		goal:   "Order the rules so 2.75 comes out as a single FLOAT.",
		source: rateSource,
		hints:  []string{"INTEGER matches the 2 in 2.75 before FLOAT gets a chance.", "Put FLOAT before INTEGER, and KEYWORD before IDENTIFIER."},
	},
	{
		id:     "full-lexer",
		goal:   "Order the rules so the whole function tokenizes correctly.",
		source: fibSource,
		hints: []string{
			`Keywords like "if" also match the identifier pattern. Which rule should come first?`,
			"Put KEYWORD before IDENTIFIER, and FLOAT before INTEGER. Comments should be first to avoid partial matches.",
		},
	},
}

func ruleOrderLevel() engine.Level {
	start := make([]LexRule, 0, len(fullLexerStart))
	for _, name := range fullLexerStart {
		start = append(start, ruleByName(name))
	}

	rounds := make([]engine.Round, 0, len(ruleOrderRounds))
	for _, r := range ruleOrderRounds {
		expected := mustLex(r.source)
		texts := make([]string, 0, len(expected))
		for _, t := range expected {
			texts = append(texts, t.String())
		}
		rounds = append(rounds, engine.Round{
			ID:        r.id,
			Prompt:    RuleOrderPrompt{Goal: r.goal, Source: r.source, Rules: slices.Clone(start), Expected: texts},
			Evaluator: ruleOrderEvaluator(expected, r.source),
			Hints:     r.hints,
			Retryable: true,
		})
	}
	return engine.Level{
		ID:          "full-lexer",
		Title:       "The Full Lexer",
		Description: "Combine every rule into one lexer. Order decides which rule wins.",
		Rounds:      rounds,
		Reward:      engine.LevelReward{NoHintBonus: 100},
	}
}

func ruleByName(name string) LexRule {
	for _, r := range fullLexerRules {
		if r.Name == name {
			return r
		}
	}
	panic("lexer: unknown rule " + name)
}

func mustLex(source string) []LexToken {
	rules := make([]compiledRule, 0, len(fullLexerRules))
	for _, r := range fullLexerRules {
		re := regexp2.MustCompile(r.Pattern, regexp2.ECMAScript)
		re.MatchTimeout = patternTimeout
		rules = append(rules, compiledRule{name: r.Name, re: re})
	}
	toks, err := runLexer(rules, source)
	if err != nil {
		panic(fmt.Sprintf("lexer: %v", err))
	}
	return toks
}

// ParseRuleOrder reads a rule order such as "COMMENT, KEYWORD > FLOAT".
// Every rule must appear exactly once.
func ParseRuleOrder(text string) ([]string, error) {
	names := strings.FieldsFunc(strings.ToUpper(text), func(r rune) bool {
		return r == ',' || r == '>' || r == ' ' || r == '\n' || r == '\t'
	})
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if !slices.ContainsFunc(fullLexerRules, func(r LexRule) bool { return r.Name == n }) {
			return nil, fmt.Errorf("unknown rule %q", n)
		}
		if seen[n] {
			return nil, fmt.Errorf("rule %s listed twice", n)
		}
		seen[n] = true
	}
	for _, r := range fullLexerRules {
		if !seen[r.Name] {
			return nil, fmt.Errorf("order must list every rule, %s is missing", r.Name)
		}
	}
	return names, nil
}

func ruleOrderEvaluator(expected []LexToken, source string) engine.Evaluator {
	return engine.EvaluatorFunc(func(a *engine.Answer) engine.Outcome {
		order, err := ParseRuleOrder(a.Text)
		if err != nil {
			return engine.Errored(err.Error())
		}
		rules := make([]compiledRule, 0, len(order))
		for _, name := range order {
			pattern := ruleByName(name).Pattern
			if custom := strings.TrimSpace(a.Field(name)); custom != "" {
				pattern = custom
			}
			candidates, err := compileInput(pattern)
			if err != nil {
				return engine.Errored(fmt.Sprintf("rule %s: %v", name, err))
			}
			rules = append(rules, compiledRule{name: name, re: candidates[0]})
		}

		got, err := runLexer(rules, source)
		if err != nil {
			return engine.Errored(err.Error())
		}
		correct, mismatch := 0, -1
		for i, want := range expected {
			if i < len(got) && got[i] == want {
				correct++
			} else if mismatch < 0 {
				mismatch = i
			}
		}
		if correct == len(expected) && len(got) == len(expected) {
			return engine.Correct(fmt.Sprintf("All %d tokens lexed in order.", len(expected)))
		}

		pct := decimal.NewFromInt(int64(correct * 100)).Div(decimal.NewFromInt(int64(len(expected)))).Round(0)
		reason := fmt.Sprintf("%s%% of tokens match.", pct)
		switch {
		case mismatch >= 0 && mismatch < len(got):
			reason += fmt.Sprintf(" Token %d: got %s, want %s.", mismatch+1, got[mismatch], expected[mismatch])
		case mismatch >= 0:
			reason += fmt.Sprintf(" Token %d is missing, want %s.", mismatch+1, expected[mismatch])
		default:
			reason += fmt.Sprintf(" %d extra tokens at the end.", len(got)-len(expected))
		}
		return engine.Incorrect(reason)
	})
}
