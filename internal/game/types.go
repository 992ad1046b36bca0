// internal/game/types.go
//
// Core type definitions for the listing review game.
// Defines:
//   - Phase:    lifecycle of a session (intro → playing → won/lost).
//   - Outcome:  classification of a single decision (success/warning/failure).
//   - Verdict:  what the decision engine returns for one decision.
//   - Stats:    cumulative per-run counters.
//   - Feedback: transient message shown after a non-fatal decision.
//   - Summary:  emitted once when a run reaches a terminal phase.
//   - View:     render projection consumed by the presentation layer.

package game

import (
	"errors"
	"math"
	"time"

	"github.com/robalobadob/sitepick/internal/listing"
)

// Phase is the session lifecycle state.
type Phase string

const (
	PhaseIntro   Phase = "intro"
	PhasePlaying Phase = "playing"
	PhaseWon     Phase = "won"
	PhaseLost    Phase = "lost"
)

// Terminal reports whether p ends a run.
func (p Phase) Terminal() bool { return p == PhaseWon || p == PhaseLost }

// Outcome classifies a decision.
//   - "success": correct approval or correct rejection.
//   - "warning": a good listing was rejected (missed opportunity).
//   - "failure": a bad listing was approved; the run is lost.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeWarning Outcome = "warning"
	OutcomeFailure Outcome = "failure"
)

// Verdict is the decision engine's result for one (listing, decision) pair.
type Verdict struct {
	ScoreDelta int     `json:"scoreDelta"`
	Counts     bool    `json:"counts"`  // increments TotalDecisions
	Correct    bool    `json:"correct"` // increments CorrectDecisions
	Outcome    Outcome `json:"outcome"`
	Message    string  `json:"message"`
	Fatal      bool    `json:"fatal"`
}

// Stats are the cumulative counters for one run. All fields only grow
// until the next Start.
type Stats struct {
	Score            int `json:"score"`
	CorrectDecisions int `json:"correctDecisions"`
	TotalDecisions   int `json:"totalDecisions"`
}

// Accuracy returns the share of correct decisions as a rounded percentage.
// Zero when no decision has been counted yet.
func (s Stats) Accuracy() int {
	if s.TotalDecisions == 0 {
		return 0
	}
	return int(math.Round(float64(s.CorrectDecisions) / float64(s.TotalDecisions) * 100))
}

// Feedback is shown briefly after a non-fatal decision.
type Feedback struct {
	Message string  `json:"message"`
	Kind    Outcome `json:"kind"` // success | warning
}

// Summary describes a finished run.
type Summary struct {
	SessionID  string
	RunID      string
	Phase      Phase // PhaseWon or PhaseLost
	Stats      Stats
	FailReason string
	ListingID  int // listing whose approval lost the run; 0 on a win
	FinishedAt time.Time
}

// View is a read-only snapshot of a session for rendering.
type View struct {
	SessionID  string        `json:"sessionId"`
	RunID      string        `json:"runId,omitempty"`
	Phase      Phase         `json:"phase"`
	Card       *listing.Card `json:"card,omitempty"` // only while playing
	Index      int           `json:"index"`
	Total      int           `json:"total"`
	Progress   float64       `json:"progress"` // index / total
	Stats      Stats         `json:"stats"`
	Accuracy   int           `json:"accuracy"`
	Feedback   *Feedback     `json:"feedback,omitempty"`
	FailReason string        `json:"failReason,omitempty"` // only when lost
	Locked     bool          `json:"locked"`               // decide() would be rejected
}

var (
	// ErrNoListings is returned when a session is built over an empty dataset.
	ErrNoListings = errors.New("game: no listings")
	// ErrNotPlaying is returned when a decision arrives outside PhasePlaying.
	ErrNotPlaying = errors.New("game: not playing")
	// ErrDecisionPending is returned while the previous decision is still
	// being shown or has not been resolved yet.
	ErrDecisionPending = errors.New("game: decision pending")
)
