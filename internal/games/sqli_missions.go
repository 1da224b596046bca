package games

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/MJE43/levelup/internal/engine"
)

// More answer fields, one per vulnerable form. The defence lab reads its
// fixed code from FieldCode.
const (
	FieldUserID   = "userid"
	FieldFeedback = "feedback"
)

const (
	blindTemplate    = "SELECT * FROM users WHERE id=%s"
	feedbackTemplate = "INSERT INTO feedback (comment) VALUES ('%s')"

	// blindPassword belongs to the admin, user id 1.
	blindPassword = "s3cur3Pa$$"
	blindUsers    = 5
)

// BlindAnswer is all the blind endpoint ever says about a lookup.
type BlindAnswer string

const (
	BlindExists   BlindAnswer = "exists"
	BlindNotFound BlindAnswer = "not found"
	BlindInvalid  BlindAnswer = "invalid input"
)

// BlindResult is the page response for one id lookup. Cracked is the
// 1-based password position a SUBSTRING test confirmed, or 0.
type BlindResult struct {
	Answer  BlindAnswer
	Cracked int
}

var (
	blindPlainID   = mustIgnoreCase(`^(\d+)$`)
	blindCondition = mustIgnoreCase(`^(\d+)\s+AND\s+(\d+)\s*=\s*(\d+)$`)
	blindSubstring = mustIgnoreCase(`^(\d+)\s+AND\s+SUBSTRING\s*\(\s*password\s*,\s*(\d+)\s*,\s*1\s*\)\s*=\s*'([^']*)'$`)
	blindAnyAnd    = mustIgnoreCase(`\bAND\b`)

	closesInsert  = mustIgnoreCase(`'\s*\)\s*;`)
	dropUsers     = mustIgnoreCase(`DROP\s+TABLE\s+users\b`)
	anyDrop       = mustIgnoreCase(`\bDROP\b`)
	hackAdmin     = mustIgnoreCase(`UPDATE\s+users\s+SET\s+password\s*=\s*'hacked'`)
	mentionsAdmin = mustIgnoreCase(`admin`)
	wipeProducts  = mustIgnoreCase(`DELETE\s+FROM\s+products\b`)

	paramsArray = regexp2.MustCompile(`params\s*=\s*\[[^\]]*\]`, regexp2.ECMAScript)
)

func group(re *regexp2.Regexp, s string, n int) []string {
	m, err := re.FindStringMatch(s)
	if err != nil || m == nil {
		return nil
	}
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, m.GroupByNumber(i).String())
	}
	return out
}

func userExists(id string) bool {
	n, err := strconv.Atoi(id)
	return err == nil && n >= 1 && n <= blindUsers
}

// BlindLookup answers one input to the blind id lookup the way the page
// would: exists, not found or invalid, and nothing else.
func BlindLookup(input string) BlindResult {
	v := strings.TrimSpace(input)
	if g := group(blindPlainID, v, 1); g != nil {
		return blindAnswer(userExists(g[0]))
	}
	if g := group(blindCondition, v, 3); g != nil {
		return blindAnswer(userExists(g[0]) && g[1] == g[2])
	}
	if g := group(blindSubstring, v, 3); g != nil {
		pos, err := strconv.Atoi(g[1])
		pw := []rune(blindPassword)
		if g[0] != "1" || err != nil || pos < 1 || pos > len(pw) || g[2] != string(pw[pos-1]) {
			return BlindResult{Answer: BlindNotFound}
		}
		return BlindResult{Answer: BlindExists, Cracked: pos}
	}
	if matches(blindAnyAnd, v) {
		return BlindResult{Answer: BlindNotFound}
	}
	return BlindResult{Answer: BlindInvalid}
}

func blindAnswer(ok bool) BlindResult {
	if ok {
		return BlindResult{Answer: BlindExists}
	}
	return BlindResult{Answer: BlindNotFound}
}

// blindInputs splits a submission into one lookup per non-blank line.
func blindInputs(a *engine.Answer) []string {
	raw := a.Field(FieldUserID)
	if raw == "" {
		raw = a.Text
	}
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func describeLookups(inputs []string, results []BlindResult) string {
	var b strings.Builder
	for i, in := range inputs {
		fmt.Fprintf(&b, "\n%s -> %s", in, results[i].Answer)
	}
	return b.String()
}

func booleanEvaluator() engine.Evaluator {
	return engine.EvaluatorFunc(func(a *engine.Answer) engine.Outcome {
		inputs := blindInputs(a)
		if len(inputs) == 0 {
			return engine.Errored("Enter one user id lookup per line.")
		}
		results := make([]BlindResult, len(inputs))
		var sawTrue, sawFalse bool
		for i, in := range inputs {
			results[i] = BlindLookup(in)
			if !matches(blindAnyAnd, in) {
				continue
			}
			switch results[i].Answer {
			case BlindExists:
				sawTrue = true
			case BlindNotFound:
				sawFalse = true
			}
		}
		if sawTrue && sawFalse {
			return engine.Correct("The page leaks one bit per request: your condition decided the answer." + describeLookups(inputs, results))
		}
		return engine.Incorrect("Add an AND condition that is true in one lookup and false in another." + describeLookups(inputs, results))
	})
}

func crackEvaluator() engine.Evaluator {
	return engine.EvaluatorFunc(func(a *engine.Answer) engine.Outcome {
		inputs := blindInputs(a)
		if len(inputs) == 0 {
			return engine.Errored("Enter one user id lookup per line.")
		}
		pw := []rune(blindPassword)
		cracked := make([]rune, len(pw))
		for i := range cracked {
			cracked[i] = '_'
		}
		results := make([]BlindResult, len(inputs))
		found := 0
		for i, in := range inputs {
			results[i] = BlindLookup(in)
			if pos := results[i].Cracked; pos > 0 && cracked[pos-1] == '_' {
				cracked[pos-1] = pw[pos-1]
				found++
			}
		}
		if found == len(pw) {
			return engine.Correct("PASSWORD FULLY CRACKED: " + blindPassword +
				". Each SUBSTRING test answered one yes or no question, and that was enough.")
		}
		return engine.Incorrect(fmt.Sprintf("Cracked %s (%d/%d).%s", string(cracked), found, len(pw), describeLookups(inputs, results)))
	})
}

func blindLevel() engine.Level {
	prompt := func(goal string) QueryPrompt {
		return QueryPrompt{Template: blindTemplate, Goal: goal, Fields: []string{FieldUserID}}
	}
	return engine.Level{
		ID:          "blind-spot",
		Title:       "Blind Spot",
		Description: "The user lookup only ever says exists or not found. That is enough to read the admin password.",
		HintMode:    engine.HintPenaltyOnReveal,
		Rounds: []engine.Round{
			{
				ID:        "true-or-false",
				Prompt:    prompt("Make the same user lookup say exists, then not found, using AND. One lookup per line."),
				Evaluator: booleanEvaluator(),
				Objective: engine.ObjectiveMain,
				Retryable: true,
				Hints: []string{
					"AND lets you add extra conditions. Try: 1 AND 1=1, then 1 AND 1=2.",
				},
			},
			{
				ID:            "crack-password",
				Prompt:        prompt("Recover all 10 characters of the admin password. One lookup per line."),
				Evaluator:     crackEvaluator(),
				Objective:     engine.ObjectiveMain,
				Retryable:     true,
				FirstTryBonus: true,
				Hints: []string{
					"SUBSTRING(column, position, length) extracts part of a string. The admin's user ID is 1.",
					"Try: 1 AND SUBSTRING(password,1,1)='a' and change the letter until the user exists.",
				},
			},
		},
	}
}

// feedbackInput reads the feedback form, falling back to Text.
func feedbackInput(a *engine.Answer) string {
	if f := a.Field(FieldFeedback); f != "" {
		return strings.TrimSpace(f)
	}
	return strings.TrimSpace(a.Text)
}

// statementEvaluator accepts feedback that closes the INSERT and then runs
// the attack the round asks for.
func statementEvaluator(attack func(string) bool, damage, miss string) engine.Evaluator {
	return engine.EvaluatorFunc(func(a *engine.Answer) engine.Outcome {
		f := feedbackInput(a)
		if f == "" {
			return engine.Errored("Write some feedback.")
		}
		query := fmt.Sprintf(feedbackTemplate, f)
		closed := matches(closesInsert, f)
		if closed && attack(f) {
			return engine.Correct(damage + " The database ran two statements: " + query)
		}
		if !closed && matches(anyDrop, f) {
			return engine.Incorrect("Your DROP is inside the string literal. Close the INSERT first with ') and then ;")
		}
		return engine.Incorrect(miss + " " + query)
	})
}

func dropLevel() engine.Level {
	prompt := func(goal string) QueryPrompt {
		return QueryPrompt{Template: feedbackTemplate, Goal: goal, Fields: []string{FieldFeedback}}
	}
	return engine.Level{
		ID:          "drop-zone",
		Title:       "Drop Zone",
		Description: "The feedback form can be made to run any statement after its INSERT.",
		HintMode:    engine.HintPenaltyOnReveal,
		Rounds: []engine.Round{
			{
				ID:     "drop-users",
				Prompt: prompt("Drop the users table."),
				Evaluator: statementEvaluator(
					func(f string) bool { return matches(dropUsers, f) },
					"TABLE DROPPED! Five user accounts are gone.",
					"No damage done. Try closing the INSERT first."),
				Objective:     engine.ObjectiveMain,
				Retryable:     true,
				FirstTryBonus: true,
				Hints: []string{
					"You need to close the INSERT's VALUES clause first. Start with: '); ",
					"DROP TABLE users permanently destroys a table. DELETE FROM products removes all rows.",
					"Try: '); DROP TABLE users; --",
				},
			},
			{
				ID:     "hack-admin",
				Prompt: prompt(`Bonus: change the admin password to "hacked".`),
				Evaluator: statementEvaluator(
					func(f string) bool { return matches(hackAdmin, f) && matches(mentionsAdmin, f) },
					"ADMIN PASSWORD CHANGED! The attacker now owns the admin account.",
					"Admin password unchanged."),
				Objective: engine.ObjectiveBonus,
				Retryable: true,
			},
			{
				ID:     "wipe-products",
				Prompt: prompt("Bonus: delete every product."),
				Evaluator: statementEvaluator(
					func(f string) bool { return matches(wipeProducts, f) },
					"ALL PRODUCTS DELETED! The shop is empty.",
					"Products still intact."),
				Objective: engine.ObjectiveBonus,
				Retryable: true,
			},
		},
	}
}

// DefencePrompt shows vulnerable code to rewrite with placeholders.
type DefencePrompt struct {
	Title      string   `json:"title"`
	Vulnerable string   `json:"vulnerable"`
	Vars       []string `json:"vars"`
	Attacks    []string `json:"attacks"`
}

// Clone implements engine.Cloner.
func (p DefencePrompt) Clone() any {
	p.Vars = slices.Clone(p.Vars)
	p.Attacks = slices.Clone(p.Attacks)
	return p
}

var defenceChallenges = []struct {
	id string
	DefencePrompt
}{
	{"fix-login", DefencePrompt{
		Title:      "Fix the Login Query",
		Vulnerable: `query = "SELECT * FROM users WHERE username='" + user + "' AND password='" + pass + "'";`,
		Vars:       []string{"user", "pass"},
		Attacks:    []string{"admin' --", "' OR '1'='1' --", "' OR 1=1 --"},
	}},
	{"fix-search", DefencePrompt{
		Title:      "Fix the Search Query",
		Vulnerable: `query = "SELECT name, price FROM products WHERE name LIKE '%" + input + "%'";`,
		Vars:       []string{"input"},
		Attacks:    []string{"' UNION SELECT card_number, expiry FROM credit_cards --", "' OR '1'='1' --"},
	}},
	{"fix-feedback", DefencePrompt{
		Title:      "Fix the Feedback INSERT",
		Vulnerable: `query = "INSERT INTO feedback (comment) VALUES ('" + input + "')";`,
		Vars:       []string{"input"},
		Attacks:    []string{"'); DROP TABLE users; --", "'); DELETE FROM products; --"},
	}},
}

// defenceEvaluator checks that the query text uses ? placeholders, passes
// the variables in a params array and no longer concatenates them.
// Concatenation inside the params array itself is fine.
func defenceEvaluator(p DefencePrompt) engine.Evaluator {
	concat := make(map[string]*regexp2.Regexp, len(p.Vars))
	for _, v := range p.Vars {
		name := regexp2.Escape(v)
		concat[v] = mustIgnoreCase(`[+]\s*` + name + `\b|\b` + name + `\s*[+]`)
	}
	return engine.EvaluatorFunc(func(a *engine.Answer) engine.Outcome {
		code := a.Field(FieldCode)
		if code == "" {
			code = a.Text
		}
		code = strings.TrimSpace(code)
		if code == "" {
			return engine.Errored("Paste your fixed code.")
		}
		if !strings.Contains(code, "?") {
			return engine.Incorrect("No ? placeholders found. Use ? instead of concatenation.")
		}
		query, err := paramsArray.Replace(code, "", -1, -1)
		if err != nil {
			return engine.Errored(err.Error())
		}
		for _, v := range p.Vars {
			if matches(concat[v], query) {
				return engine.Incorrect(fmt.Sprintf("Still concatenating %s into the query. Replace it with ?.", v))
			}
		}
		if query == code {
			return engine.Incorrect("Missing params array. Add params = [...] with your variables.")
		}
		return engine.Correct(fmt.Sprintf("SECURE! With a parameterised query the input is data, never SQL. Blocked: %s",
			strings.Join(p.Attacks, " | ")))
	})
}

func defenceLevel() engine.Level {
	rounds := make([]engine.Round, 0, len(defenceChallenges))
	for _, ch := range defenceChallenges {
		rounds = append(rounds, engine.Round{
			ID:        ch.id,
			Prompt:    ch.DefencePrompt.Clone(),
			Evaluator: defenceEvaluator(ch.DefencePrompt),
			Objective: engine.ObjectiveMain,
			Retryable: true,
			Hints: []string{
				"Replace + user + with ? and add params = [user, pass].",
				"For the search query the % wildcards go in the params: params = ['%' + input + '%'].",
				"The pattern is always the same: remove concatenation, use ?, provide params = [...].",
			},
		})
	}
	return engine.Level{
		ID:          "defence-lab",
		Title:       "Defence Lab",
		Description: "Role reversal: rewrite each vulnerable query with ? placeholders and a params array.",
		Rounds:      rounds,
		Reward:      engine.LevelReward{CompletionBonus: 100},
	}
}
