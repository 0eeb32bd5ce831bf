package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/triviapot/internal/domain"
)

const codeUniqueViolation = "23505"

// Postgres is the production Store.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) CreateSession(ctx context.Context, ss *domain.Session, p *domain.PrizeConfig) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const (
		insSessionStmt = `
INSERT INTO trivia_sessions (name, description, registration_deadline, start_time, min_participants, total_rounds, current_round, status, create_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING session_id;`
		insPrizeStmt = `
INSERT INTO prize_configs (session_id, entry_fee, first_pct, second_pct, third_pct, participants, pool)
VALUES ($1, $2, $3, $4, $5, $6, $7);`
	)

	err = tx.QueryRow(ctx, insSessionStmt,
		ss.Name, ss.Description, ss.RegistrationDeadline, ss.StartTime,
		ss.MinParticipants, ss.TotalRounds, ss.CurrentRound, ss.Status, ss.CreateTime,
	).Scan(&ss.SessionID)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	p.SessionID = ss.SessionID
	_, err = tx.Exec(ctx, insPrizeStmt,
		p.SessionID, p.EntryFee, p.FirstPct, p.SecondPct, p.ThirdPct, p.Participants, p.Pool,
	)
	if err != nil {
		return fmt.Errorf("insert prize config: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Postgres) GetSession(ctx context.Context, sessionID uint64) (domain.Session, error) {
	const stmt = `
SELECT session_id, name, description, registration_deadline, start_time, min_participants, total_rounds, current_round, status, create_time
FROM trivia_sessions
WHERE session_id = $1;`

	var ss domain.Session
	err := s.db.QueryRow(ctx, stmt, sessionID).Scan(
		&ss.SessionID, &ss.Name, &ss.Description, &ss.RegistrationDeadline, &ss.StartTime,
		&ss.MinParticipants, &ss.TotalRounds, &ss.CurrentRound, &ss.Status, &ss.CreateTime,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("select session: %w", err)
	}

	return ss, nil
}

func (s *Postgres) UpdateSession(ctx context.Context, ss domain.Session) error {
	const stmt = `
UPDATE trivia_sessions
SET current_round = $2, status = $3
WHERE session_id = $1;`

	tag, err := s.db.Exec(ctx, stmt, ss.SessionID, ss.CurrentRound, ss.Status)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *Postgres) GetPrizeConfig(ctx context.Context, sessionID uint64) (domain.PrizeConfig, error) {
	const stmt = `
SELECT session_id, entry_fee, first_pct, second_pct, third_pct, participants, pool
FROM prize_configs
WHERE session_id = $1;`

	var p domain.PrizeConfig
	err := s.db.QueryRow(ctx, stmt, sessionID).Scan(
		&p.SessionID, &p.EntryFee, &p.FirstPct, &p.SecondPct, &p.ThirdPct, &p.Participants, &p.Pool,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return domain.PrizeConfig{}, ErrNotFound
	}
	if err != nil {
		return domain.PrizeConfig{}, fmt.Errorf("select prize config: %w", err)
	}

	return p, nil
}

func (s *Postgres) UpdatePrizeConfig(ctx context.Context, p domain.PrizeConfig) error {
	const stmt = `
UPDATE prize_configs
SET participants = $2, pool = $3
WHERE session_id = $1;`

	tag, err := s.db.Exec(ctx, stmt, p.SessionID, p.Participants, p.Pool)
	if err != nil {
		return fmt.Errorf("update prize config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *Postgres) AddQuestion(ctx context.Context, q domain.Question) error {
	const stmt = `
INSERT INTO questions (session_id, number, text, option_1, option_2, option_3, option_4, correct)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

	_, err := s.db.Exec(ctx, stmt,
		q.SessionID, q.Number, q.Text, q.Options[0], q.Options[1], q.Options[2], q.Options[3], q.Correct,
	)

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}

	return nil
}

func (s *Postgres) GetQuestion(ctx context.Context, sessionID uint64, number int) (domain.Question, error) {
	const stmt = `
SELECT session_id, number, text, option_1, option_2, option_3, option_4, correct
FROM questions
WHERE session_id = $1 AND number = $2;`

	var q domain.Question
	err := s.db.QueryRow(ctx, stmt, sessionID, number).Scan(
		&q.SessionID, &q.Number, &q.Text, &q.Options[0], &q.Options[1], &q.Options[2], &q.Options[3], &q.Correct,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, ErrNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("select question: %w", err)
	}

	return q, nil
}

func (s *Postgres) PutParticipant(ctx context.Context, r domain.ParticipantRecord) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const (
		upsertStmt = `
INSERT INTO participants (session_id, participant, balance, correct, time_spent)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (session_id, participant)
DO UPDATE SET balance = $3, correct = $4, time_spent = $5;`
		insAnswerStmt = `
INSERT INTO answers (session_id, participant, question, submit_time)
VALUES ($1, $2, $3, $4)
ON CONFLICT DO NOTHING;`
	)

	_, err = tx.Exec(ctx, upsertStmt, r.SessionID, r.Participant, r.Balance, r.Correct, r.TimeSpent)
	if err != nil {
		return fmt.Errorf("upsert participant: %w", err)
	}

	for q, at := range r.AnswerTimes {
		_, err = tx.Exec(ctx, insAnswerStmt, r.SessionID, r.Participant, q, at)
		if err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *Postgres) GetParticipant(ctx context.Context, sessionID uint64, participant string) (domain.ParticipantRecord, error) {
	const stmt = `
SELECT session_id, participant, balance, correct, time_spent
FROM participants
WHERE session_id = $1 AND participant = $2;`

	var r domain.ParticipantRecord
	err := s.db.QueryRow(ctx, stmt, sessionID, participant).Scan(
		&r.SessionID, &r.Participant, &r.Balance, &r.Correct, &r.TimeSpent,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return domain.ParticipantRecord{}, ErrNotFound
	}
	if err != nil {
		return domain.ParticipantRecord{}, fmt.Errorf("select participant: %w", err)
	}

	r.AnswerTimes, err = s.answerTimes(ctx, sessionID, participant)
	if err != nil {
		return domain.ParticipantRecord{}, err
	}

	return r, nil
}

func (s *Postgres) answerTimes(ctx context.Context, sessionID uint64, participant string) (map[int]time.Time, error) {
	const stmt = `
SELECT question, submit_time
FROM answers
WHERE session_id = $1 AND participant = $2;`

	rows, err := s.db.Query(ctx, stmt, sessionID, participant)
	if err != nil {
		return nil, fmt.Errorf("select answers: %w", err)
	}
	defer rows.Close()

	times := make(map[int]time.Time)
	for rows.Next() {
		var (
			q  int
			at time.Time
		)
		if err := rows.Scan(&q, &at); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		times[q] = at
	}

	return times, rows.Err()
}

func (s *Postgres) ListParticipants(ctx context.Context, sessionID uint64) ([]domain.ParticipantRecord, error) {
	const stmt = `
SELECT session_id, participant, balance, correct, time_spent
FROM participants
WHERE session_id = $1
ORDER BY seq;`

	rows, err := s.db.Query(ctx, stmt, sessionID)
	if err != nil {
		return nil, fmt.Errorf("select participants: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ParticipantRecord, error) {
		var r domain.ParticipantRecord
		err := row.Scan(&r.SessionID, &r.Participant, &r.Balance, &r.Correct, &r.TimeSpent)
		return r, err
	})
}

func (s *Postgres) PutWinners(ctx context.Context, w domain.WinnerSet) error {
	const stmt = `
INSERT INTO winner_sets (session_id, first, second, third)
VALUES ($1, $2, $3, $4);`

	_, err := s.db.Exec(ctx, stmt, w.SessionID, w.First, w.Second, w.Third)

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert winner set: %w", err)
	}

	return nil
}

func (s *Postgres) GetWinners(ctx context.Context, sessionID uint64) (domain.WinnerSet, error) {
	const stmt = `
SELECT session_id, first, second, third
FROM winner_sets
WHERE session_id = $1;`

	var w domain.WinnerSet
	err := s.db.QueryRow(ctx, stmt, sessionID).Scan(&w.SessionID, &w.First, &w.Second, &w.Third)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return domain.WinnerSet{}, ErrNotFound
	}
	if err != nil {
		return domain.WinnerSet{}, fmt.Errorf("select winner set: %w", err)
	}

	return w, nil
}

func (s *Postgres) PutDistribution(ctx context.Context, d domain.Distribution) error {
	const stmt = `
INSERT INTO distributions (session_id, winner_1, winner_2, winner_3, prize_1, prize_2, prize_3, pay_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

	_, err := s.db.Exec(ctx, stmt,
		d.SessionID, d.Winners[0], d.Winners[1], d.Winners[2],
		d.Prizes[0], d.Prizes[1], d.Prizes[2], d.PayTime,
	)

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert distribution: %w", err)
	}

	return nil
}

func (s *Postgres) GetDistribution(ctx context.Context, sessionID uint64) (domain.Distribution, error) {
	const stmt = `
SELECT session_id, winner_1, winner_2, winner_3, prize_1, prize_2, prize_3, pay_time
FROM distributions
WHERE session_id = $1;`

	var d domain.Distribution
	err := s.db.QueryRow(ctx, stmt, sessionID).Scan(
		&d.SessionID, &d.Winners[0], &d.Winners[1], &d.Winners[2],
		&d.Prizes[0], &d.Prizes[1], &d.Prizes[2], &d.PayTime,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return domain.Distribution{}, ErrNotFound
	}
	if err != nil {
		return domain.Distribution{}, fmt.Errorf("select distribution: %w", err)
	}

	return d, nil
}
