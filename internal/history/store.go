package history

import (
	"context"
	"database/sql"
	"time"
)

// Round is one retired number as stored.
type Round struct {
	SessionID      string    `json:"-"`
	Seq            int       `json:"seq"`
	Number         int       `json:"number"`
	Prime          bool      `json:"prime"`
	Answered       bool      `json:"answered"`
	Correct        bool      `json:"correct"`
	ElapsedSeconds int       `json:"elapsedSeconds"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Milestone is the tally at the moment a summary dialog opened.
type Milestone struct {
	SessionID string    `json:"-"`
	Attempts  int       `json:"attempts"`
	Correct   int       `json:"correct"`
	Wrong     int       `json:"wrong"`
	CreatedAt time.Time `json:"createdAt"`
}

// Summary aggregates every stored round of a session.
type Summary struct {
	Rounds   int     `json:"rounds"`
	Answered int     `json:"answered"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"` // correct / answered, 0 when nothing answered
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) InsertRound(ctx context.Context, r Round) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO rounds(session_id, seq, number, is_prime, answered, correct, elapsed_s)
		 VALUES(?,?,?,?,?,?,?)`,
		r.SessionID, r.Seq, r.Number, r.Prime, r.Answered, r.Correct, r.ElapsedSeconds,
	)
	return err
}

func (s *Store) InsertMilestone(ctx context.Context, m Milestone) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO milestones(session_id, attempts, correct, wrong) VALUES(?,?,?,?)`,
		m.SessionID, m.Attempts, m.Correct, m.Wrong,
	)
	return err
}

// Rounds returns up to limit rounds, newest first. limit <= 0 means 50.
func (s *Store) Rounds(ctx context.Context, sessionID string, limit int) ([]Round, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, number, is_prime, answered, correct, elapsed_s, created_at
		 FROM rounds
		 WHERE session_id=?
		 ORDER BY seq DESC
		 LIMIT ?`, sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Round, 0, limit)
	for rows.Next() {
		r := Round{SessionID: sessionID}
		var created string
		if err := rows.Scan(&r.Seq, &r.Number, &r.Prime, &r.Answered, &r.Correct, &r.ElapsedSeconds, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Milestones returns every milestone of a session, oldest first.
func (s *Store) Milestones(ctx context.Context, sessionID string) ([]Milestone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT attempts, correct, wrong, created_at
		 FROM milestones
		 WHERE session_id=?
		 ORDER BY rowid ASC`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Milestone{}
	for rows.Next() {
		m := Milestone{SessionID: sessionID}
		var created string
		if err := rows.Scan(&m.Attempts, &m.Correct, &m.Wrong, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTime(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) Summary(ctx context.Context, sessionID string) (Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COALESCE(SUM(answered),0), COALESCE(SUM(correct),0)
		 FROM rounds WHERE session_id=?`, sessionID,
	).Scan(&sum.Rounds, &sum.Answered, &sum.Correct)
	if err != nil {
		return Summary{}, err
	}
	if sum.Answered > 0 {
		sum.Accuracy = float64(sum.Correct) / float64(sum.Answered)
	}
	return sum, nil
}

// Purge deletes everything stored for a session.
func (s *Store) Purge(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM rounds WHERE session_id=?`, sessionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM milestones WHERE session_id=?`, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

// parseTime parses SQLite's strftime output; on error returns zero time.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
