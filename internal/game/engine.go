// internal/game/engine.go
//
// Decision engine: maps (listing, approved) to a Verdict.
//
//   approved  good   delta  counts  outcome  fatal
//   true      true   +100   yes     success  no
//   true      false  0      -       failure  yes
//   false     false  +50    yes     success  no
//   false     true   0      yes     warning  no
//
// Evaluate is total: every input pair has exactly one row above.

package game

import "github.com/robalobadob/sitepick/internal/listing"

const (
	ScoreApproveGood = 100
	ScoreRejectBad   = 50
)

// Player-facing copy.
const (
	MsgApproveGood  = "Отлично! Хорошая локация одобрена."
	MsgRejectBad    = "Правильно! Мы избежали проблемной точки."
	MsgRejectGood   = "Упс! Это было хорошее место. Мы упустили выгоду."
	MsgFatalDefault = "Вы одобрили локацию с критическим недостатком."
)

// Evaluate classifies a single decision on l. It has no side effects.
func Evaluate(l listing.Listing, approved bool) Verdict {
	switch {
	case approved && l.IsGood:
		return Verdict{ScoreDelta: ScoreApproveGood, Counts: true, Correct: true, Outcome: OutcomeSuccess, Message: MsgApproveGood}
	case approved:
		msg := l.StopFactorReason
		if msg == "" {
			msg = MsgFatalDefault
		}
		return Verdict{Outcome: OutcomeFailure, Message: msg, Fatal: true}
	case !l.IsGood:
		return Verdict{ScoreDelta: ScoreRejectBad, Counts: true, Correct: true, Outcome: OutcomeSuccess, Message: MsgRejectBad}
	default:
		return Verdict{Counts: true, Outcome: OutcomeWarning, Message: MsgRejectGood}
	}
}
