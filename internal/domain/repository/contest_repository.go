package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ctf_zone/internal/common"
	"ctf_zone/internal/domain/model"
)

type ContestRepository interface {
	CreateContest(ctx context.Context, c *model.Contest) error
	UpdateContest(ctx context.Context, c *model.Contest) error
	FindContestByID(ctx context.Context, tx *sql.Tx, id string) (*model.Contest, error)
	ListContests(ctx context.Context) ([]model.Contest, error)
	DeleteContest(ctx context.Context, tx *sql.Tx, id string) error

	CreateContestProblem(ctx context.Context, p *model.Problem) error
	FindContestProblem(ctx context.Context, tx *sql.Tx, contestID, problemID string) (*model.Problem, error)
	ListContestProblems(ctx context.Context, contestID string, draft bool) ([]model.Problem, error)
	UpdateContestProblemName(ctx context.Context, contestID, problemID, name string) error
	DeleteContestProblem(ctx context.Context, contestID, problemID string) error
	PublishContestProblem(ctx context.Context, contestID, problemID string) error

	EnsureParticipant(ctx context.Context, tx *sql.Tx, contestID string, userID int64) error
	GetScoreboard(ctx context.Context, contestID string) ([]model.ScoreboardEntry, error)
	ListSolvedProblemIDs(ctx context.Context, contestID string, userID int64) ([]string, error)
}

type pgContestRepository struct {
	db *sql.DB
}

func NewPgContestRepository(db *sql.DB) ContestRepository {
	return &pgContestRepository{db: db}
}

func (r *pgContestRepository) CreateContest(ctx context.Context, c *model.Contest) error {
	query := `INSERT INTO contests (id, name, start_time, end_time, scoreboard_visible)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, c.ID, c.Name, c.Start, c.End, c.ScoreboardVisible)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return common.Conflictf("A contest with this id or name already exists")
		}
		return fmt.Errorf("pgContestRepository.CreateContest: %w", err)
	}
	return nil
}

func (r *pgContestRepository) UpdateContest(ctx context.Context, c *model.Contest) error {
	query := `UPDATE contests SET name = $1, start_time = $2, end_time = $3, scoreboard_visible = $4 WHERE id = $5`
	res, err := r.db.ExecContext(ctx, query, c.Name, c.Start, c.End, c.ScoreboardVisible, c.ID)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return common.Conflictf("A contest with this name already exists")
		}
		return fmt.Errorf("pgContestRepository.UpdateContest: %w", err)
	}
	return expectAffected(res, "pgContestRepository.UpdateContest")
}

func (r *pgContestRepository) FindContestByID(ctx context.Context, tx *sql.Tx, id string) (*model.Contest, error) {
	query := `SELECT id, name, start_time, end_time, scoreboard_visible FROM contests WHERE id = $1`
	c := &model.Contest{}
	err := pick(r.db, tx).QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Start, &c.End, &c.ScoreboardVisible)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.FindContestByID: %w", err)
	}
	return c, nil
}

func (r *pgContestRepository) ListContests(ctx context.Context) ([]model.Contest, error) {
	query := `SELECT id, name, start_time, end_time, scoreboard_visible FROM contests ORDER BY start_time DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListContests: %w", err)
	}
	defer rows.Close()

	contests := []model.Contest{}
	for rows.Next() {
		var c model.Contest
		if err := rows.Scan(&c.ID, &c.Name, &c.Start, &c.End, &c.ScoreboardVisible); err != nil {
			return nil, fmt.Errorf("pgContestRepository.ListContests scan: %w", err)
		}
		contests = append(contests, c)
	}
	return contests, rows.Err()
}

// DeleteContest removes the contest and every row keyed on it inside tx.
// Submissions stay as the audit trail.
func (r *pgContestRepository) DeleteContest(ctx context.Context, tx *sql.Tx, id string) error {
	if tx == nil {
		return errors.New("pgContestRepository.DeleteContest: transaction required")
	}
	for _, stmt := range []string{
		`DELETE FROM contest_solved WHERE contest_id = $1`,
		`DELETE FROM contest_users WHERE contest_id = $1`,
		`DELETE FROM contest_problems WHERE contest_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("pgContestRepository.DeleteContest: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM contests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgContestRepository.DeleteContest: %w", err)
	}
	return expectAffected(res, "pgContestRepository.DeleteContest")
}

func (r *pgContestRepository) CreateContestProblem(ctx context.Context, p *model.Problem) error {
	query := `INSERT INTO contest_problems (contest_id, problem_id, name, point_value, category, flag, draft)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query, p.ContestID, p.ID, p.Name, p.PointValue, p.Category, p.Flag, p.Draft)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return common.Conflictf("A problem with this id or name already exists in this contest")
		}
		return fmt.Errorf("pgContestRepository.CreateContestProblem: %w", err)
	}
	return nil
}

func (r *pgContestRepository) FindContestProblem(ctx context.Context, tx *sql.Tx, contestID, problemID string) (*model.Problem, error) {
	query := `SELECT contest_id, problem_id, name, point_value, category, flag, draft
	          FROM contest_problems WHERE contest_id = $1 AND problem_id = $2`
	p := &model.Problem{}
	err := pick(r.db, tx).QueryRowContext(ctx, query, contestID, problemID).Scan(
		&p.ContestID, &p.ID, &p.Name, &p.PointValue, &p.Category, &p.Flag, &p.Draft,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.FindContestProblem: %w", err)
	}
	return p, nil
}

func (r *pgContestRepository) ListContestProblems(ctx context.Context, contestID string, draft bool) ([]model.Problem, error) {
	query := `SELECT contest_id, problem_id, name, point_value, category, flag, draft
	          FROM contest_problems WHERE contest_id = $1 AND draft = $2
	          ORDER BY category ASC, problem_id ASC`
	rows, err := r.db.QueryContext(ctx, query, contestID, draft)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListContestProblems: %w", err)
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		var p model.Problem
		if err := rows.Scan(&p.ContestID, &p.ID, &p.Name, &p.PointValue, &p.Category, &p.Flag, &p.Draft); err != nil {
			return nil, fmt.Errorf("pgContestRepository.ListContestProblems scan: %w", err)
		}
		problems = append(problems, p)
	}
	return problems, rows.Err()
}

func (r *pgContestRepository) UpdateContestProblemName(ctx context.Context, contestID, problemID, name string) error {
	query := `UPDATE contest_problems SET name = $1 WHERE contest_id = $2 AND problem_id = $3`
	res, err := r.db.ExecContext(ctx, query, name, contestID, problemID)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return common.Conflictf("A problem with this name already exists in this contest")
		}
		return fmt.Errorf("pgContestRepository.UpdateContestProblemName: %w", err)
	}
	return expectAffected(res, "pgContestRepository.UpdateContestProblemName")
}

// DeleteContestProblem removes a binding that has no scoring state yet.
func (r *pgContestRepository) DeleteContestProblem(ctx context.Context, contestID, problemID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contest_problems WHERE contest_id = $1 AND problem_id = $2`, contestID, problemID)
	if err != nil {
		return fmt.Errorf("pgContestRepository.DeleteContestProblem: %w", err)
	}
	return expectAffected(res, "pgContestRepository.DeleteContestProblem")
}

func (r *pgContestRepository) PublishContestProblem(ctx context.Context, contestID, problemID string) error {
	query := `UPDATE contest_problems SET draft = FALSE WHERE contest_id = $1 AND problem_id = $2`
	res, err := r.db.ExecContext(ctx, query, contestID, problemID)
	if err != nil {
		return fmt.Errorf("pgContestRepository.PublishContestProblem: %w", err)
	}
	return expectAffected(res, "pgContestRepository.PublishContestProblem")
}

// EnsureParticipant creates the zero-point participation row if missing.
func (r *pgContestRepository) EnsureParticipant(ctx context.Context, tx *sql.Tx, contestID string, userID int64) error {
	query := `INSERT INTO contest_users (contest_id, user_id, points) VALUES ($1, $2, 0)
	          ON CONFLICT (contest_id, user_id) DO NOTHING`
	if _, err := pick(r.db, tx).ExecContext(ctx, query, contestID, userID); err != nil {
		return fmt.Errorf("pgContestRepository.EnsureParticipant: %w", err)
	}
	return nil
}

func (r *pgContestRepository) GetScoreboard(ctx context.Context, contestID string) ([]model.ScoreboardEntry, error) {
	query := `SELECT cu.user_id, u.username, cu.points, cu.last_ac
	          FROM contest_users cu JOIN users u ON u.id = cu.user_id
	          WHERE cu.contest_id = $1
	          ORDER BY cu.points DESC, cu.last_ac ASC NULLS LAST, cu.user_id ASC`
	rows, err := r.db.QueryContext(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.GetScoreboard: %w", err)
	}
	defer rows.Close()

	entries := []model.ScoreboardEntry{}
	for rows.Next() {
		var (
			e      model.ScoreboardEntry
			lastAC sql.NullTime
		)
		if err := rows.Scan(&e.UserID, &e.Username, &e.Points, &lastAC); err != nil {
			return nil, fmt.Errorf("pgContestRepository.GetScoreboard scan: %w", err)
		}
		if lastAC.Valid {
			t := lastAC.Time
			e.LastAC = &t
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *pgContestRepository) ListSolvedProblemIDs(ctx context.Context, contestID string, userID int64) ([]string, error) {
	query := `SELECT problem_id FROM contest_solved WHERE contest_id = $1 AND user_id = $2`
	return queryStrings(ctx, r.db, "pgContestRepository.ListSolvedProblemIDs", query, contestID, userID)
}

func queryStrings(ctx context.Context, q querier, op, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
