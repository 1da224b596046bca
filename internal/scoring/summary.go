package scoring

import "github.com/shopspring/decimal"

// Summary is the end-of-run report.
type Summary struct {
	Score       int             `json:"score"`
	MaxPossible int             `json:"maxPossible"`
	BestStreak  int             `json:"bestStreak"`
	Correct     int             `json:"correct"`
	Rounds      int             `json:"rounds"`
	Percent     decimal.Decimal `json:"percent"`
}

// Summarize builds a Summary with the percent of maximum rounded to one
// decimal place and capped at 100.
func Summarize(score, maxPossible, bestStreak, correct, rounds int) Summary {
	return Summary{
		Score:       score,
		MaxPossible: maxPossible,
		BestStreak:  bestStreak,
		Correct:     correct,
		Rounds:      rounds,
		Percent:     Percent(score, maxPossible),
	}
}

// Percent returns part/whole as a percentage in [0, 100].
func Percent(part, whole int) decimal.Decimal {
	if whole <= 0 || part <= 0 {
		return decimal.Zero
	}
	hundred := decimal.NewFromInt(100)
	pct := decimal.NewFromInt(int64(part)).Mul(hundred).Div(decimal.NewFromInt(int64(whole))).Round(1)
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}
