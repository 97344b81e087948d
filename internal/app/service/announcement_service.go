package service

import (
	"context"
	"strings"
	"time"

	"ctf_zone/internal/common"
	"ctf_zone/internal/domain/model"
	"ctf_zone/internal/domain/repository"
	"ctf_zone/internal/platform/blob"

	log "github.com/sirupsen/logrus"
)

type AnnouncementRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (r *AnnouncementRequest) normalize() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.ReplaceAll(r.Description, "\r", "")
	if r.Name == "" {
		return common.Validationf("Name cannot be empty")
	}
	if r.Description == "" {
		return common.Validationf("Description cannot be empty")
	}
	return nil
}

type AnnouncementService struct {
	repo  repository.AnnouncementRepository
	store blob.Store
	now   func() time.Time
}

func NewAnnouncementService(repo repository.AnnouncementRepository, store blob.Store) *AnnouncementService {
	return &AnnouncementService{repo: repo, store: store, now: time.Now}
}

func (s *AnnouncementService) List(ctx context.Context) ([]model.Announcement, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].Description, err = s.store.ReadText(ctx, blob.AnnouncementKey(items[i].ID)); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (s *AnnouncementService) Create(ctx context.Context, req AnnouncementRequest) (*model.Announcement, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}
	a := &model.Announcement{Name: req.Name, Date: s.now().UTC()}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	if err := s.store.WriteText(ctx, blob.AnnouncementKey(a.ID), req.Description); err != nil {
		if delErr := s.repo.Delete(ctx, a.ID); delErr != nil {
			log.WithError(delErr).WithField("announcement_id", a.ID).Error("failed to roll back announcement")
		}
		return nil, common.Errorf("failed to store announcement: %w", err)
	}
	a.Description = req.Description
	return a, nil
}

func (s *AnnouncementService) Update(ctx context.Context, id int64, req AnnouncementRequest) error {
	if err := req.normalize(); err != nil {
		return err
	}
	if err := s.repo.UpdateName(ctx, id, req.Name); err != nil {
		return err
	}
	if err := s.store.WriteText(ctx, blob.AnnouncementKey(id), req.Description); err != nil {
		return common.Errorf("failed to store announcement: %w", err)
	}
	return nil
}

func (s *AnnouncementService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteTree(ctx, blob.AnnouncementDir(id)); err != nil {
		log.WithError(err).WithField("announcement_id", id).Error("failed to delete announcement content")
	}
	return nil
}
