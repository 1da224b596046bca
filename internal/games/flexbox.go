package games

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/MJE43/levelup/internal/engine"
)

// Rules maps a selector to its declarations.
type Rules map[string]map[string]string

// LayoutPrompt describes the target layout for one round.
type LayoutPrompt struct {
	Goal     string `json:"goal"`
	HTML     string `json:"html"`
	Selector string `json:"selector"`
	Starter  string `json:"starter"`
}

var (
	cssComment = regexp2.MustCompile(`/\*[\s\S]*?\*/`, regexp2.ECMAScript)
	cssRule    = regexp2.MustCompile(`([^{}]+)\{([^}]*)\}`, regexp2.ECMAScript)
)

// ParseCSS extracts rule blocks from a stylesheet. Property names and values
// are lowercased; later declarations win.
func ParseCSS(css string) Rules {
	rules := make(Rules)
	if stripped, err := cssComment.Replace(css, "", -1, -1); err == nil {
		css = stripped
	}

	m, err := cssRule.FindStringMatch(css)
	for err == nil && m != nil {
		groups := m.Groups()
		body := groups[2].String()
		for _, sel := range strings.Split(groups[1].String(), ",") {
			sel = strings.Join(strings.Fields(sel), " ")
			if sel == "" {
				continue
			}
			decls, ok := rules[sel]
			if !ok {
				decls = make(map[string]string)
				rules[sel] = decls
			}
			for _, d := range strings.Split(body, ";") {
				prop, val, found := strings.Cut(d, ":")
				if !found {
					continue
				}
				prop = strings.ToLower(strings.TrimSpace(prop))
				val = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), "!important"))
				val = strings.ToLower(strings.Join(strings.Fields(val), " "))
				if prop != "" && val != "" {
					decls[prop] = val
				}
			}
		}
		m, err = cssRule.FindNextMatch(m)
	}
	return rules
}

// Missing lists the required declarations absent from rules, sorted.
func (r Rules) Missing(selector string, required map[string]string) []string {
	decls := r[selector]
	var missing []string
	for prop, want := range required {
		if decls[prop] != want {
			missing = append(missing, prop+": "+want)
		}
	}
	sort.Strings(missing)
	return missing
}

type layoutRound struct {
	id, goal, html string
	required       map[string]string
	hints          []string
}

const containerHTML = `<div class="container">
  <div class="item">1</div>
  <div class="item">2</div>
  <div class="item">3</div>
</div>`

const starterCSS = ".container {\n  \n}"

var flexLevels = []struct {
	id, title, description string
	rounds                 []layoutRound
}{
	{
		id:          "flex-basics",
		title:       "Flex Basics",
		description: "Turn a plain container into a flex container and choose its direction.",
		rounds: []layoutRound{
			{
				id:       "display-flex",
				goal:     "Line the items up in a row.",
				html:     containerHTML,
				required: map[string]string{"display": "flex"},
				hints:    []string{"Flexbox is switched on by the display property.", "display: flex;"},
			},
			{
				id:       "column",
				goal:     "Stack the items vertically.",
				html:     containerHTML,
				required: map[string]string{"display": "flex", "flex-direction": "column"},
				hints:    []string{"The main axis can run top to bottom.", "flex-direction: column;"},
			},
		},
	},
	{
		id:          "alignment",
		title:       "Alignment",
		description: "Centre items along both axes and let them wrap.",
		rounds: []layoutRound{
			{
				id:       "justify-center",
				goal:     "Centre the items along the main axis.",
				html:     containerHTML,
				required: map[string]string{"display": "flex", "justify-content": "center"},
				hints:    []string{"justify-* works on the main axis.", "justify-content: center;"},
			},
			{
				id:       "align-center",
				goal:     "Centre the items along the cross axis.",
				html:     containerHTML,
				required: map[string]string{"display": "flex", "align-items": "center"},
				hints:    []string{"align-* works on the cross axis.", "align-items: center;"},
			},
			{
				id:       "wrap",
				goal:     "Let the items wrap onto a new line when they run out of room.",
				html:     containerHTML,
				required: map[string]string{"display": "flex", "flex-wrap": "wrap"},
				hints:    []string{"By default flex items squeeze onto one line.", "flex-wrap: wrap;"},
			},
		},
	},
}

const flexSelector = ".container"

// FlexboxGame is the CSS layout puzzle pack.
type FlexboxGame struct{}

// Spec implements Game.
func (g *FlexboxGame) Spec() GameSpec {
	return GameSpec{
		ID:          "flexbox",
		Name:        "Flexbox Playground",
		Description: "Write CSS until the layout matches the target.",
		Levels:      len(flexLevels),
	}
}

// Levels implements Game.
func (g *FlexboxGame) Levels(env Env) []engine.Level {
	levels := make([]engine.Level, 0, len(flexLevels))
	for _, lv := range flexLevels {
		rounds := make([]engine.Round, 0, len(lv.rounds))
		for _, r := range lv.rounds {
			rounds = append(rounds, engine.Round{
				ID: r.id,
				Prompt: LayoutPrompt{
					Goal:     r.goal,
					HTML:     r.html,
					Selector: flexSelector,
					Starter:  starterCSS,
				},
				Evaluator: layoutEvaluator(r),
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
	return levels
}

func layoutEvaluator(r layoutRound) engine.Evaluator {
	return engine.EvaluatorFunc(func(a *engine.Answer) engine.Outcome {
		rules := ParseCSS(a.Text)
		if len(rules) == 0 {
			return engine.Errored("No CSS rules found. Write a rule like .container { ... }")
		}
		if _, ok := rules[flexSelector]; !ok {
			return engine.Incorrect(fmt.Sprintf("Style the %s selector.", flexSelector))
		}
		if missing := rules.Missing(flexSelector, r.required); len(missing) > 0 {
			return engine.Incorrect("The layout does not match yet. Missing: " + strings.Join(missing, "; "))
		}
		return engine.Correct("The layout matches the target.")
	})
}
