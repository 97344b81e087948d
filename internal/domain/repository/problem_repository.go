package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ctf_zone/internal/common"
	"ctf_zone/internal/domain/model"
)

// ProblemRepository persists standalone problems.
type ProblemRepository interface {
	CreateProblem(ctx context.Context, tx *sql.Tx, problem *model.Problem) error
	FindProblemByID(ctx context.Context, tx *sql.Tx, id string) (*model.Problem, error)
	ListProblems(ctx context.Context, draft bool) ([]model.Problem, error)
	UpdateProblemName(ctx context.Context, id, name string) error
	PublishProblem(ctx context.Context, id string) error
	DeleteProblem(ctx context.Context, tx *sql.Tx, id string) error
}

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

func (r *pgProblemRepository) CreateProblem(ctx context.Context, tx *sql.Tx, p *model.Problem) error {
	query := `INSERT INTO problems (id, name, point_value, category, flag, draft)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := pick(r.db, tx).ExecContext(ctx, query, p.ID, p.Name, p.PointValue, p.Category, p.Flag, p.Draft)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return common.Conflictf("A problem with this id or name already exists")
		}
		return fmt.Errorf("pgProblemRepository.CreateProblem: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) FindProblemByID(ctx context.Context, tx *sql.Tx, id string) (*model.Problem, error) {
	query := `SELECT id, name, point_value, category, flag, draft FROM problems WHERE id = $1`
	p := &model.Problem{}
	err := pick(r.db, tx).QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.PointValue, &p.Category, &p.Flag, &p.Draft)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.FindProblemByID: %w", err)
	}
	return p, nil
}

func (r *pgProblemRepository) ListProblems(ctx context.Context, draft bool) ([]model.Problem, error) {
	query := `SELECT id, name, point_value, category, flag, draft FROM problems WHERE draft = $1 ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, draft)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.ListProblems: %w", err)
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		var p model.Problem
		if err := rows.Scan(&p.ID, &p.Name, &p.PointValue, &p.Category, &p.Flag, &p.Draft); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.ListProblems scan: %w", err)
		}
		problems = append(problems, p)
	}
	return problems, rows.Err()
}

func (r *pgProblemRepository) UpdateProblemName(ctx context.Context, id, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE problems SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return common.Conflictf("A problem with this name already exists")
		}
		return fmt.Errorf("pgProblemRepository.UpdateProblemName: %w", err)
	}
	return expectAffected(res, "pgProblemRepository.UpdateProblemName")
}

// PublishProblem is one-way; there is no statement that sets draft back.
func (r *pgProblemRepository) PublishProblem(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE problems SET draft = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.PublishProblem: %w", err)
	}
	return expectAffected(res, "pgProblemRepository.PublishProblem")
}

// DeleteProblem removes the problem and everything keyed on it. tx is
// required so the cascade is all-or-nothing.
func (r *pgProblemRepository) DeleteProblem(ctx context.Context, tx *sql.Tx, id string) error {
	if tx == nil {
		return errors.New("pgProblemRepository.DeleteProblem: transaction required")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM problem_solved WHERE problem_id = $1`, id); err != nil {
		return fmt.Errorf("pgProblemRepository.DeleteProblem solved: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE problem_id = $1 AND contest_id IS NULL`, id); err != nil {
		return fmt.Errorf("pgProblemRepository.DeleteProblem submissions: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM problems WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.DeleteProblem: %w", err)
	}
	return expectAffected(res, "pgProblemRepository.DeleteProblem")
}
