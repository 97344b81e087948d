package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ctf_zone/internal/domain/model"
)

// SubmissionRepository owns the audit trail and both solved ledgers.
type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, tx *sql.Tx, sub *model.Submission) error
	ListSubmissions(ctx context.Context, filter model.SubmissionFilter) ([]model.Submission, error)

	// MarkProblemSolved and MarkContestProblemSolved insert a ledger row and
	// report whether this call created it.
	MarkProblemSolved(ctx context.Context, tx *sql.Tx, userID int64, problemID string) (bool, error)
	MarkContestProblemSolved(ctx context.Context, tx *sql.Tx, contestID string, userID int64, problemID string) (bool, error)
	AddContestPoints(ctx context.Context, tx *sql.Tx, contestID string, userID int64, points int, at time.Time) error
	MirrorContestSolves(ctx context.Context, tx *sql.Tx, contestID, contestProblemID, problemID string) (int64, error)
	ListSolvedProblemIDs(ctx context.Context, userID int64) ([]string, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

func (r *pgSubmissionRepository) CreateSubmission(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	query := `INSERT INTO submissions (id, date, user_id, problem_id, contest_id, correct)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := pick(r.db, tx).ExecContext(ctx, query, sub.ID, sub.Date, sub.UserID, sub.ProblemID, sub.ContestID, sub.Correct)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.CreateSubmission: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) ListSubmissions(ctx context.Context, filter model.SubmissionFilter) ([]model.Submission, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if filter.Username != "" {
		add("u.username = ?", filter.Username)
	}
	if filter.ProblemID != "" {
		add("s.problem_id = ?", filter.ProblemID)
	}
	if filter.ContestID != "" {
		add("s.contest_id = ?", filter.ContestID)
	}
	if filter.Correct != nil {
		add("s.correct = ?", *filter.Correct)
	}

	query := `SELECT s.id, s.date, s.user_id, u.username, s.problem_id, s.contest_id, s.correct
	          FROM submissions s JOIN users u ON u.id = s.user_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY s.date DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListSubmissions: %w", err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var (
			s         model.Submission
			contestID sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Date, &s.UserID, &s.Username, &s.ProblemID, &contestID, &s.Correct); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.ListSubmissions scan: %w", err)
		}
		if contestID.Valid {
			cid := contestID.String
			s.ContestID = &cid
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (r *pgSubmissionRepository) MarkProblemSolved(ctx context.Context, tx *sql.Tx, userID int64, problemID string) (bool, error) {
	query := `INSERT INTO problem_solved (user_id, problem_id) VALUES ($1, $2)
	          ON CONFLICT (user_id, problem_id) DO NOTHING`
	res, err := pick(r.db, tx).ExecContext(ctx, query, userID, problemID)
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.MarkProblemSolved: %w", err)
	}
	return inserted(res, "pgSubmissionRepository.MarkProblemSolved")
}

func (r *pgSubmissionRepository) MarkContestProblemSolved(ctx context.Context, tx *sql.Tx, contestID string, userID int64, problemID string) (bool, error) {
	query := `INSERT INTO contest_solved (contest_id, user_id, problem_id) VALUES ($1, $2, $3)
	          ON CONFLICT (contest_id, user_id, problem_id) DO NOTHING`
	res, err := pick(r.db, tx).ExecContext(ctx, query, contestID, userID, problemID)
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.MarkContestProblemSolved: %w", err)
	}
	return inserted(res, "pgSubmissionRepository.MarkContestProblemSolved")
}

func (r *pgSubmissionRepository) AddContestPoints(ctx context.Context, tx *sql.Tx, contestID string, userID int64, points int, at time.Time) error {
	query := `UPDATE contest_users SET points = points + $1, last_ac = $2
	          WHERE contest_id = $3 AND user_id = $4`
	res, err := pick(r.db, tx).ExecContext(ctx, query, points, at, contestID, userID)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.AddContestPoints: %w", err)
	}
	return expectAffected(res, "pgSubmissionRepository.AddContestPoints")
}

// MirrorContestSolves copies every solver of a contest problem into the
// standalone ledger for problemID. Points are not carried over.
func (r *pgSubmissionRepository) MirrorContestSolves(ctx context.Context, tx *sql.Tx, contestID, contestProblemID, problemID string) (int64, error) {
	query := `INSERT INTO problem_solved (user_id, problem_id)
	          SELECT user_id, $1 FROM contest_solved WHERE contest_id = $2 AND problem_id = $3
	          ON CONFLICT (user_id, problem_id) DO NOTHING`
	res, err := pick(r.db, tx).ExecContext(ctx, query, problemID, contestID, contestProblemID)
	if err != nil {
		return 0, fmt.Errorf("pgSubmissionRepository.MirrorContestSolves: %w", err)
	}
	return res.RowsAffected()
}

func (r *pgSubmissionRepository) ListSolvedProblemIDs(ctx context.Context, userID int64) ([]string, error) {
	query := `SELECT problem_id FROM problem_solved WHERE user_id = $1`
	return queryStrings(ctx, r.db, "pgSubmissionRepository.ListSolvedProblemIDs", query, userID)
}

func inserted(res sql.Result, op string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}
