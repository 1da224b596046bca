package games

import (
	"fmt"
	"slices"

	"github.com/dlclark/regexp2"

	"github.com/MJE43/levelup/internal/engine"
)

// Answer field names used by the injection simulator.
const (
	FieldUsername = "username"
	FieldPassword = "password"
	FieldSearch   = "search"
)

// Technique is the injection family detected in an input.
type Technique string

const (
	TechniqueNone      Technique = ""
	TechniqueComment   Technique = "comment"
	TechniqueTautology Technique = "tautology"
)

// QueryPrompt shows the vulnerable query template and the goal.
type QueryPrompt struct {
	Template string   `json:"template"`
	Goal     string   `json:"goal"`
	Fields   []string `json:"fields"`
}

// Clone implements engine.Cloner.
func (p QueryPrompt) Clone() any {
	p.Fields = slices.Clone(p.Fields)
	return p
}

const loginTemplate = "SELECT * FROM users WHERE username='%s' AND password='%s'"
const searchTemplate = "SELECT name, price FROM products WHERE name LIKE '%%%s%%'"

func mustIgnoreCase(pattern string) *regexp2.Regexp {
	return regexp2.MustCompile(pattern, regexp2.IgnoreCase|regexp2.ECMAScript)
}

// These are heuristics for a teaching toy, not a SQL parser.
var (
	commentBypass = mustIgnoreCase(`^\s*admin['"]\s*(--|#|/\*)`)
	tautologies   = []*regexp2.Regexp{
		mustIgnoreCase(`['"]\s*OR\s+(['"]?)(\w+)\1?\s*=\s*['"]?\2(\W|$)`),
		mustIgnoreCase(`['"]\s*OR\s+(['"])\1\s*=\s*['"]`),
		mustIgnoreCase(`['"]\s*OR\s+true\b`),
	}
	unionExtract = mustIgnoreCase(`['"]\s*UNION\s+(ALL\s+)?SELECT\s+[\w\s,*]+\bFROM\s+users\b`)
)

func matches(re *regexp2.Regexp, s string) bool {
	ok, err := re.MatchString(s)
	return err == nil && ok
}

// HasTautology reports whether s injects an always-true OR clause.
func HasTautology(s string) bool {
	for _, re := range tautologies {
		if matches(re, s) {
			return true
		}
	}
	return false
}

// DetectLogin classifies a login attempt against the login template.
func DetectLogin(username, password string) Technique {
	if matches(commentBypass, username) {
		return TechniqueComment
	}
	if HasTautology(username) || HasTautology(password) {
		return TechniqueTautology
	}
	return TechniqueNone
}

// SQLiGame is the SQL injection simulator.
type SQLiGame struct{}

// Spec implements Game.
func (g *SQLiGame) Spec() GameSpec {
	return GameSpec{
		ID:          "sqli",
		Name:        "SQL Injection Simulator",
		Description: "Break into a deliberately vulnerable app, then fix it with parameterised queries.",
		Levels:      5,
	}
}

// Levels implements Game.
func (g *SQLiGame) Levels(env Env) []engine.Level {
	loginPrompt := func(goal string) QueryPrompt {
		return QueryPrompt{Template: loginTemplate, Goal: goal, Fields: []string{FieldUsername, FieldPassword}}
	}

	levels := []engine.Level{
		{
			ID:          "login-bypass",
			Title:       "Login Bypass",
			Description: "The login form pastes your input straight into the SQL query.",
			HintMode:    engine.HintPenaltyOnReveal,
			Rounds: []engine.Round{
				{
					ID:            "log-in-as-admin",
					Prompt:        loginPrompt("Log in as admin without knowing the password."),
					Evaluator:     loginEvaluator(TechniqueNone),
					Objective:     engine.ObjectiveMain,
					Retryable:     true,
					FirstTryBonus: true,
					Hints: []string{
						"The username ends up inside single quotes in the query.",
						"What if your username closed the quote early?",
						"SQL comments start with -- and hide the rest of the line.",
					},
				},
				{
					ID:        "comment-bypass",
					Prompt:    loginPrompt("Bonus: skip the password check with a comment."),
					Evaluator: loginEvaluator(TechniqueComment),
					Objective: engine.ObjectiveBonus,
					Retryable: true,
				},
				{
					ID:        "tautology",
					Prompt:    loginPrompt("Bonus: make the WHERE clause always true."),
					Evaluator: loginEvaluator(TechniqueTautology),
					Objective: engine.ObjectiveBonus,
					Retryable: true,
				},
				{
					ID:        "password-field",
					Prompt:    loginPrompt("Bonus: get in by injecting through the password field only."),
					Evaluator: passwordFieldEvaluator(),
					Objective: engine.ObjectiveBonus,
					Retryable: true,
				},
			},
		},
		{
			ID:          "union-extraction",
			Title:       "Union Extraction",
			Description: "The product search is injectable too. Make it list the users table.",
			HintMode:    engine.HintPenaltyOnReveal,
			Rounds: []engine.Round{
				{
					ID: "dump-users",
					Prompt: QueryPrompt{
						Template: searchTemplate,
						Goal:     "Return usernames and passwords from the users table.",
						Fields:   []string{FieldSearch},
					},
					Evaluator:     unionEvaluator(),
					Objective:     engine.ObjectiveMain,
					Retryable:     true,
					FirstTryBonus: true,
					Hints: []string{
						"UNION glues the rows of a second SELECT onto the first.",
						"Both SELECTs need the same number of columns.",
						"Close the quote, add UNION SELECT username, password FROM users, then comment out the rest.",
					},
				},
			},
		},
	}
	return append(levels, blindLevel(), dropLevel(), defenceLevel())
}

// loginEvaluator accepts any bypass when want is TechniqueNone, otherwise
// only the named technique.
func loginEvaluator(want Technique) engine.Evaluator {
	return engine.EvaluatorFunc(func(a *engine.Answer) engine.Outcome {
		user, pass := a.Field(FieldUsername), a.Field(FieldPassword)
		if user == "" && pass == "" {
			return engine.Errored("Enter a username and password.")
		}
		query := fmt.Sprintf(loginTemplate, user, pass)

		got := DetectLogin(user, pass)
		switch {
		case got == TechniqueNone:
			return engine.Incorrect("Login failed. The query returned no rows: " + query)
		case want != TechniqueNone && got != want:
			return engine.Incorrect(fmt.Sprintf("You got in with a %s injection, but this objective needs a %s injection.", got, want))
		}
		return engine.Correct(explainLogin(got, query))
	})
}

func passwordFieldEvaluator() engine.Evaluator {
	return engine.EvaluatorFunc(func(a *engine.Answer) engine.Outcome {
		user, pass := a.Field(FieldUsername), a.Field(FieldPassword)
		if pass == "" {
			return engine.Errored("Enter a password.")
		}
		if DetectLogin(user, "") != TechniqueNone {
			return engine.Incorrect("The username field is injected. Leave it plain this time.")
		}
		if !HasTautology(pass) {
			return engine.Incorrect("Login failed. The password check still applies.")
		}
		return engine.Correct(explainLogin(TechniqueTautology, fmt.Sprintf(loginTemplate, user, pass)))
	})
}

func unionEvaluator() engine.Evaluator {
	return engine.EvaluatorFunc(func(a *engine.Answer) engine.Outcome {
		search := a.Field(FieldSearch)
		if search == "" {
			search = a.Text
		}
		if search == "" {
			return engine.Errored("Enter a search term.")
		}
		query := fmt.Sprintf(searchTemplate, search)
		if matches(unionExtract, search) {
			return engine.Correct("UNION appended the users table to the product list: " + query)
		}
		return engine.Incorrect("Only products came back: " + query)
	})
}

func explainLogin(t Technique, query string) string {
	switch t {
	case TechniqueComment:
		return "Your input closed the username string and commented out the password check: " + query
	case TechniqueTautology:
		return "Your OR clause is always true, so every row matched: " + query
	}
	return query
}
