package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ctf_zone/internal/common"
	"ctf_zone/internal/domain/model"
)

type AnnouncementRepository interface {
	Create(ctx context.Context, a *model.Announcement) error
	UpdateName(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*model.Announcement, error)
	List(ctx context.Context) ([]model.Announcement, error)
}

type pgAnnouncementRepository struct {
	db *sql.DB
}

func NewPgAnnouncementRepository(db *sql.DB) AnnouncementRepository {
	return &pgAnnouncementRepository{db: db}
}

func (r *pgAnnouncementRepository) Create(ctx context.Context, a *model.Announcement) error {
	query := `INSERT INTO announcements (name, date) VALUES ($1, $2) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, a.Name, a.Date).Scan(&a.ID); err != nil {
		return fmt.Errorf("pgAnnouncementRepository.Create: %w", err)
	}
	return nil
}

func (r *pgAnnouncementRepository) UpdateName(ctx context.Context, id int64, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE announcements SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return fmt.Errorf("pgAnnouncementRepository.UpdateName: %w", err)
	}
	return expectAffected(res, "pgAnnouncementRepository.UpdateName")
}

func (r *pgAnnouncementRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgAnnouncementRepository.Delete: %w", err)
	}
	return expectAffected(res, "pgAnnouncementRepository.Delete")
}

func (r *pgAnnouncementRepository) FindByID(ctx context.Context, id int64) (*model.Announcement, error) {
	a := &model.Announcement{}
	err := r.db.QueryRowContext(ctx, `SELECT id, name, date FROM announcements WHERE id = $1`, id).Scan(&a.ID, &a.Name, &a.Date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgAnnouncementRepository.FindByID: %w", err)
	}
	return a, nil
}

func (r *pgAnnouncementRepository) List(ctx context.Context) ([]model.Announcement, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, date FROM announcements ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("pgAnnouncementRepository.List: %w", err)
	}
	defer rows.Close()

	out := []model.Announcement{}
	for rows.Next() {
		var a model.Announcement
		if err := rows.Scan(&a.ID, &a.Name, &a.Date); err != nil {
			return nil, fmt.Errorf("pgAnnouncementRepository.List scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
