// internal/results/store.go
//
// Ledger of finished runs.
//   - Record:         insert a run (idempotent by run ID) and bump user stats.
//   - Leaderboard:    best won runs of registered players.
//   - PlayerStats:    per-user totals.
//   - ClaimAnonymous: attach guest runs to an account after login/signup.

package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Result is a finished run. Exactly one of UserID / AnonymousID is set.
type Result struct {
	RunID       string    `json:"runId"`
	SessionID   string    `json:"sessionId"`
	UserID      string    `json:"userId,omitempty"`
	AnonymousID string    `json:"-"`
	Outcome     string    `json:"outcome"` // won | lost
	Score       int       `json:"score"`
	Correct     int       `json:"correct"`
	Total       int       `json:"total"`
	FailReason  string    `json:"failReason,omitempty"`
	ListingID   int       `json:"listingId,omitempty"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// LBRow is one leaderboard entry.
type LBRow struct {
	Username   string    `json:"username"`
	Score      int       `json:"score"`
	Accuracy   int       `json:"accuracy"`
	FinishedAt time.Time `json:"finishedAt"`
}

// PlayerStats are the aggregate numbers shown on a profile.
type PlayerStats struct {
	GamesPlayed int `json:"gamesPlayed"`
	Wins        int `json:"wins"`
	Streak      int `json:"streak"`
	BestScore   int `json:"bestScore"`
}

var errNoOwner = errors.New("results: result has no owner")

// tsLayout is fixed-width so finished_at sorts lexically.
const tsLayout = "2006-01-02T15:04:05.000Z07:00"

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Record inserts r. A run already recorded is ignored. For registered
// players games_played, wins and streak are updated in the same
// transaction; a loss resets the streak.
func (s *Store) Record(ctx context.Context, r Result) error {
	if r.UserID == "" && r.AnonymousID == "" {
		return errNoOwner
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO results
			(run_id, session_id, user_id, anonymous_id, outcome, score, correct, total, fail_reason, listing_id, finished_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		r.RunID, r.SessionID, nullable(r.UserID), nullable(r.AnonymousID), r.Outcome,
		r.Score, r.Correct, r.Total, r.FailReason, r.ListingID,
		r.FinishedAt.UTC().Format(tsLayout),
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	if n == 0 || r.UserID == "" {
		return tx.Commit()
	}

	if err := bumpStats(ctx, tx, r.UserID, r.Outcome == "won"); err != nil {
		return fmt.Errorf("bump stats: %w", err)
	}
	return tx.Commit()
}

// bumpStats increments games played; updates wins and streak (within tx).
func bumpStats(ctx context.Context, tx *sql.Tx, userID string, won bool) error {
	var gp, wins, streak int
	row := tx.QueryRowContext(ctx, `SELECT games_played, wins, streak FROM users WHERE id=?`, userID)
	if err := row.Scan(&gp, &wins, &streak); err != nil {
		return err
	}
	gp++
	if won {
		wins++
		streak++
	} else {
		streak = 0
	}
	_, err := tx.ExecContext(ctx, `UPDATE users SET games_played=?, wins=?, streak=? WHERE id=?`, gp, wins, streak, userID)
	return err
}

// Leaderboard returns the top won runs by registered players.
// Ordered by score DESC, accuracy DESC, then earliest finish. Default limit is 20.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.username, r.score, r.correct, r.total, r.finished_at
		FROM results r
		JOIN users u ON u.id = r.user_id
		WHERE r.outcome = 'won'
		ORDER BY r.score DESC,
		         CASE WHEN r.total = 0 THEN 0 ELSE CAST(r.correct AS REAL) / r.total END DESC,
		         r.finished_at ASC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]LBRow, 0, limit)
	for rows.Next() {
		var (
			row            LBRow
			correct, total int
			finished       string
		)
		if err := rows.Scan(&row.Username, &row.Score, &correct, &total, &finished); err != nil {
			return nil, err
		}
		if total > 0 {
			row.Accuracy = (correct*100 + total/2) / total
		}
		row.FinishedAt, _ = time.Parse(tsLayout, finished)
		out = append(out, row)
	}
	return out, rows.Err()
}

// PlayerStats returns totals for a registered user.
func (s *Store) PlayerStats(ctx context.Context, userID string) (PlayerStats, error) {
	var ps PlayerStats
	err := s.db.QueryRowContext(ctx,
		`SELECT games_played, wins, streak FROM users WHERE id=?`, userID,
	).Scan(&ps.GamesPlayed, &ps.Wins, &ps.Streak)
	if err != nil {
		return ps, err
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(score), 0) FROM results WHERE user_id=? AND outcome='won'`, userID,
	).Scan(&ps.BestScore)
	return ps, err
}

// Recent returns the latest runs of a registered user, newest first.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, session_id, outcome, score, correct, total, fail_reason, listing_id, finished_at
		FROM results WHERE user_id=? ORDER BY finished_at DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Result{}
	for rows.Next() {
		r := Result{UserID: userID}
		var finished string
		if err := rows.Scan(&r.RunID, &r.SessionID, &r.Outcome, &r.Score, &r.Correct, &r.Total, &r.FailReason, &r.ListingID, &finished); err != nil {
			return nil, err
		}
		r.FinishedAt, _ = time.Parse(tsLayout, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ClaimAnonymous transfers guest runs to userID. Claimed runs do not
// retroactively change the user's counters.
func (s *Store) ClaimAnonymous(ctx context.Context, anonID, userID string) error {
	if anonID == "" || userID == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE results SET user_id=?, anonymous_id=NULL WHERE anonymous_id=?`, userID, anonID)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
