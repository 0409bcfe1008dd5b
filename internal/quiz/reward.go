package quiz

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Rewards are the tunable reward amounts.
type Rewards struct {
	// CoinsPerCorrect is credited for every correct answer.
	CoinsPerCorrect int
	// XPPerQuiz is the XP of a perfect quiz; partial results get a share
	// proportional to correct/total, rounded down.
	XPPerQuiz int
}

func DefaultRewards() Rewards {
	return Rewards{
		CoinsPerCorrect: 10,
		XPPerQuiz:       30,
	}
}

func (r Rewards) Validate() error {
	if r.CoinsPerCorrect < 0 {
		return fmt.Errorf("coins per correct answer must not be negative, got %d", r.CoinsPerCorrect)
	}
	if r.XPPerQuiz < 0 {
		return fmt.Errorf("xp per quiz must not be negative, got %d", r.XPPerQuiz)
	}
	return nil
}

// XP returns the XP earned for correct answers out of total.
func (r Rewards) XP(correct, total int) int {
	if total <= 0 || correct <= 0 || r.XPPerQuiz <= 0 {
		return 0
	}
	if correct > total {
		correct = total
	}

	earned := decimal.NewFromInt(int64(correct)).Mul(decimal.NewFromInt(int64(r.XPPerQuiz)))
	return int(earned.Div(decimal.NewFromInt(int64(total))).Floor().IntPart())
}

// Message summarises a finished quiz.
func Message(correct, total, coins, xp int) string {
	var lead string
	switch {
	case total > 0 && correct == total:
		lead = "Perfect score!"
	case correct*2 >= total:
		lead = "Nice work!"
	default:
		lead = "Keep practicing!"
	}
	return fmt.Sprintf("%s %d/%d correct. +%d coins · +%d XP", lead, correct, total, coins, xp)
}
