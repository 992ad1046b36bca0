// internal/game/session.go
//
// Session state machine for one player.
// Responsibilities:
//   - Track phase, cursor, stats, transient feedback and failure reason.
//   - Apply decisions via Evaluate and schedule the follow-up transitions.
//   - Guarantee that timers from an earlier run never touch a newer one.
//
// Transitions:
//   Start:          any phase → playing (cursor, stats, feedback, failure reset).
//   Decide (fatal): record failure reason; after LossDelay → lost.
//   Decide (other): apply stats, show feedback; after FeedbackDuration the
//                   feedback clears, after AdvanceDelay the cursor moves on
//                   (or the run is won at the last listing).
//
// Notes:
//   - Every scheduled callback carries the generation it was created in.
//     Start bumps the generation, so a callback from a previous run is a
//     no-op even if Stop raced with it.
//   - Callbacks arrive on timer goroutines and intents on request
//     goroutines; mu serialises both. The session stays the only writer.

package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/sitepick/internal/listing"
)

// Timing holds the fixed delays of the decision loop.
type Timing struct {
	LossDelay        time.Duration // fatal decision → lost
	FeedbackDuration time.Duration // feedback visible for this long
	AdvanceDelay     time.Duration // non-fatal decision → next listing / won
}

// DefaultTiming returns the delays used when none are configured.
func DefaultTiming() Timing {
	return Timing{
		LossDelay:        500 * time.Millisecond,
		FeedbackDuration: 1500 * time.Millisecond,
		AdvanceDelay:     1800 * time.Millisecond,
	}
}

// Validate rejects negative delays and an advance that would outrun the
// feedback it is meant to follow.
func (t Timing) Validate() error {
	if t.LossDelay < 0 || t.FeedbackDuration < 0 || t.AdvanceDelay < 0 {
		return fmt.Errorf("game: delays must not be negative (%+v)", t)
	}
	if t.AdvanceDelay < t.FeedbackDuration {
		return fmt.Errorf("game: advance delay %s shorter than feedback %s", t.AdvanceDelay, t.FeedbackDuration)
	}
	return nil
}

// Options configure a Session. Zero values pick sensible defaults.
type Options struct {
	ID        string           // defaults to a random UUID
	Owner     string           // opaque player identifier, used by callers for access checks
	Timing    *Timing          // defaults to DefaultTiming()
	Scheduler Scheduler        // defaults to RealScheduler
	Now       func() time.Time // defaults to time.Now
	OnFinish  func(Summary)    // called once per run on won/lost, outside the lock
}

// Session is a single player's game. Safe for concurrent use.
type Session struct {
	ID    string
	Owner string

	listings []listing.Listing
	timing   Timing
	sched    Scheduler
	now      func() time.Time
	onFinish func(Summary)

	mu         sync.Mutex
	phase      Phase
	cursor     int
	stats      Stats
	feedback   *Feedback
	failReason string
	failedID   int
	pending    bool // a decision was accepted and its advance/loss has not fired
	gen        uint64
	runID      string
	timers     []Timer
	lastActive time.Time
}

// NewSession builds a session in PhaseIntro over listings, which must be
// non-empty and are treated as read-only.
func NewSession(listings []listing.Listing, opts Options) (*Session, error) {
	if len(listings) == 0 {
		return nil, ErrNoListings
	}
	timing := DefaultTiming()
	if opts.Timing != nil {
		timing = *opts.Timing
	}
	if err := timing.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		ID:       opts.ID,
		Owner:    opts.Owner,
		listings: listings,
		timing:   timing,
		sched:    opts.Scheduler,
		now:      opts.Now,
		onFinish: opts.OnFinish,
		phase:    PhaseIntro,
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.sched == nil {
		s.sched = RealScheduler{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.lastActive = s.now()
	return s, nil
}

// Start begins a fresh run from any phase. Pending timers of the previous
// run are stopped and, should one fire anyway, ignored.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil

	s.phase = PhasePlaying
	s.cursor = 0
	s.stats = Stats{}
	s.feedback = nil
	s.failReason = ""
	s.failedID = 0
	s.pending = false
	s.runID = uuid.NewString()
	s.lastActive = s.now()

	log.Debug().Str("session", s.ID).Str("run", s.runID).Msg("run started")
}

// Decide applies the player's decision to the current listing.
// It returns ErrNotPlaying outside PhasePlaying and ErrDecisionPending
// while the previous decision is still being shown or resolved.
func (s *Session) Decide(approved bool) (Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhasePlaying {
		return Verdict{}, ErrNotPlaying
	}
	if s.pending || s.feedback != nil {
		return Verdict{}, ErrDecisionPending
	}

	l := s.listings[s.cursor]
	v := Evaluate(l, approved)
	s.pending = true
	s.lastActive = s.now()
	gen := s.gen

	if v.Fatal {
		s.failReason = v.Message
		s.failedID = l.ID
		s.schedule(s.timing.LossDelay, gen, s.lose)
		return v, nil
	}

	s.stats.Score += v.ScoreDelta
	if v.Counts {
		s.stats.TotalDecisions++
	}
	if v.Correct {
		s.stats.CorrectDecisions++
	}
	s.feedback = &Feedback{Message: v.Message, Kind: v.Outcome}
	s.schedule(s.timing.FeedbackDuration, gen, s.clearFeedback)
	s.schedule(s.timing.AdvanceDelay, gen, s.advance)
	return v, nil
}

// View returns a snapshot for rendering.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.listings)
	v := View{
		SessionID: s.ID,
		RunID:     s.runID,
		Phase:     s.phase,
		Index:     s.cursor,
		Total:     total,
		Progress:  float64(s.cursor) / float64(total),
		Stats:     s.stats,
		Accuracy:  s.stats.Accuracy(),
		Locked:    s.phase != PhasePlaying || s.pending || s.feedback != nil,
	}
	if s.phase == PhasePlaying {
		c := s.listings[s.cursor].Card()
		v.Card = &c
	}
	if s.feedback != nil {
		fb := *s.feedback
		v.Feedback = &fb
	}
	if s.phase == PhaseLost {
		v.FailReason = s.failReason
	}
	return v
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// LastActive returns the time of the last accepted intent or Touch.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Touch marks the session active without changing game state. Renders of
// a finished run count as activity so its result screen is not swept.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = s.now()
	s.mu.Unlock()
}

// Close stops any pending timers. The session must not be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}

// schedule registers fn to run after d if the generation is still gen.
// fn runs with mu held and may return a Summary to publish after unlock.
// Caller must hold mu.
func (s *Session) schedule(d time.Duration, gen uint64, fn func() *Summary) {
	var t Timer
	t = s.sched.AfterFunc(d, func() {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		s.forget(t)
		sum := fn()
		s.mu.Unlock()

		if sum != nil {
			s.finished(*sum)
		}
	})
	s.timers = append(s.timers, t)
}

// forget drops a fired timer from the pending list. Caller must hold mu.
func (s *Session) forget(t Timer) {
	for i, p := range s.timers {
		if p == t {
			s.timers = append(s.timers[:i], s.timers[i+1:]...)
			return
		}
	}
}

func (s *Session) clearFeedback() *Summary {
	s.feedback = nil
	return nil
}

func (s *Session) advance() *Summary {
	s.pending = false
	if s.cursor < len(s.listings)-1 {
		s.cursor++
		return nil
	}
	s.phase = PhaseWon
	return s.summary()
}

func (s *Session) lose() *Summary {
	s.pending = false
	s.feedback = nil
	s.phase = PhaseLost
	return s.summary()
}

// summary builds the terminal record. Caller must hold mu.
func (s *Session) summary() *Summary {
	return &Summary{
		SessionID:  s.ID,
		RunID:      s.runID,
		Phase:      s.phase,
		Stats:      s.stats,
		FailReason: s.failReason,
		ListingID:  s.failedID,
		FinishedAt: s.now(),
	}
}

func (s *Session) finished(sum Summary) {
	log.Info().
		Str("session", sum.SessionID).
		Str("run", sum.RunID).
		Str("phase", string(sum.Phase)).
		Int("score", sum.Stats.Score).
		Int("correct", sum.Stats.CorrectDecisions).
		Int("total", sum.Stats.TotalDecisions).
		Msg("run finished")
	if s.onFinish != nil {
		s.onFinish(sum)
	}
}
