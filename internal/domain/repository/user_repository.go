package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ctf_zone/internal/common"
	"ctf_zone/internal/domain/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)

	MarkVerified(ctx context.Context, email string) error
	DeleteUnverifiedByEmail(ctx context.Context, email string) (int64, error)
	DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	ToggleBanned(ctx context.Context, id int64) (bool, error)
	ToggleAdmin(ctx context.Context, id int64) (bool, error)
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `id, username, email, password_hash, admin, banned, verified, join_date`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u     model.User
		admin bool
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &admin, &u.Banned, &u.Verified, &u.JoinDate); err != nil {
		return nil, err
	}
	u.Role = model.RoleFor(u.ID, admin)
	return &u, nil
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (username, email, password_hash, admin, banned, verified, join_date)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.HashedPassword, user.IsAdmin(), user.Banned, user.Verified, user.JoinDate,
	).Scan(&user.ID)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return common.Conflictf("Username or email already exists")
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) findOne(ctx context.Context, op, where string, arg any) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.%s: %w", op, err)
	}
	return user, nil
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "FindByEmail", "email = $1", email)
}

func (r *pgUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, "FindByUsername", "username = $1", username)
}

func (r *pgUserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return r.findOne(ctx, "FindByID", "id = $1", id)
}

func (r *pgUserRepository) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.List: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("pgUserRepository.List scan: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *pgUserRepository) MarkVerified(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET verified = TRUE WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("pgUserRepository.MarkVerified: %w", err)
	}
	return expectAffected(res, "pgUserRepository.MarkVerified")
}

func (r *pgUserRepository) DeleteUnverifiedByEmail(ctx context.Context, email string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE email = $1 AND verified = FALSE`, email)
	if err != nil {
		return 0, fmt.Errorf("pgUserRepository.DeleteUnverifiedByEmail: %w", err)
	}
	return res.RowsAffected()
}

func (r *pgUserRepository) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE verified = FALSE AND join_date < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pgUserRepository.DeleteUnverifiedBefore: %w", err)
	}
	return res.RowsAffected()
}

func (r *pgUserRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return fmt.Errorf("pgUserRepository.UpdatePassword: %w", err)
	}
	return expectAffected(res, "pgUserRepository.UpdatePassword")
}

// ToggleBanned flips the flag in one statement and returns the new state.
func (r *pgUserRepository) ToggleBanned(ctx context.Context, id int64) (bool, error) {
	return r.toggle(ctx, "ToggleBanned", `UPDATE users SET banned = NOT banned WHERE id = $1 RETURNING banned`, id)
}

func (r *pgUserRepository) ToggleAdmin(ctx context.Context, id int64) (bool, error) {
	return r.toggle(ctx, "ToggleAdmin", `UPDATE users SET admin = NOT admin WHERE id = $1 RETURNING admin`, id)
}

func (r *pgUserRepository) toggle(ctx context.Context, op, query string, id int64) (bool, error) {
	var state bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, common.ErrNotFound
		}
		return false, fmt.Errorf("pgUserRepository.%s: %w", op, err)
	}
	return state, nil
}

func expectAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
