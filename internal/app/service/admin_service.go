package service

import (
	"context"
	"fmt"

	"ctf_zone/internal/app/policy"
	"ctf_zone/internal/common"
	"ctf_zone/internal/common/security"
	"ctf_zone/internal/domain/model"
	"ctf_zone/internal/domain/repository"

	log "github.com/sirupsen/logrus"
)

const generatedPasswordLength = 16

// AdminService covers user moderation and the submission audit view.
type AdminService struct {
	userRepo       repository.UserRepository
	submissionRepo repository.SubmissionRepository
}

func NewAdminService(userRepo repository.UserRepository, submissionRepo repository.SubmissionRepository) *AdminService {
	return &AdminService{userRepo: userRepo, submissionRepo: submissionRepo}
}

func (s *AdminService) Users(ctx context.Context) ([]model.User, error) {
	return s.userRepo.List(ctx)
}

func (s *AdminService) Submissions(ctx context.Context, filter model.SubmissionFilter) ([]model.Submission, error) {
	return s.submissionRepo.ListSubmissions(ctx, filter)
}

// ToggleBan bans or unbans the target and reports which happened.
func (s *AdminService) ToggleBan(ctx context.Context, actor *model.User, targetID int64) (string, error) {
	target, err := s.userRepo.FindByID(ctx, targetID)
	if err != nil {
		return "", err
	}
	if err := policy.CanBan(actor, target); err != nil {
		return "", err
	}
	banned, err := s.userRepo.ToggleBanned(ctx, targetID)
	if err != nil {
		return "", err
	}

	log.WithFields(log.Fields{"actor_id": actor.ID, "user_id": targetID, "banned": banned}).Warn("user ban toggled")
	if banned {
		return "Successfully banned " + target.Username, nil
	}
	return "Successfully unbanned " + target.Username, nil
}

func (s *AdminService) TogglePromote(ctx context.Context, actor *model.User, targetID int64) (string, error) {
	target, err := s.userRepo.FindByID(ctx, targetID)
	if err != nil {
		return "", err
	}
	if err := policy.CanPromote(actor, target); err != nil {
		return "", err
	}
	admin, err := s.userRepo.ToggleAdmin(ctx, targetID)
	if err != nil {
		return "", err
	}

	log.WithFields(log.Fields{"actor_id": actor.ID, "user_id": targetID, "admin": admin}).Warn("admin privileges toggled")
	if admin {
		return fmt.Sprintf("Admin privileges for user with ID %d granted", targetID), nil
	}
	return fmt.Sprintf("Admin privileges for user with ID %d revoked", targetID), nil
}

// ResetPassword replaces the target's password with a random one and
// returns it. It is not stored anywhere in clear text.
func (s *AdminService) ResetPassword(ctx context.Context, actor *model.User, targetID int64) (string, error) {
	target, err := s.userRepo.FindByID(ctx, targetID)
	if err != nil {
		return "", err
	}
	if target.IsSuperAdmin() && !actor.IsSuperAdmin() {
		return "", common.Forbiddenf("Cannot reset the password of the super-admin")
	}

	password, err := security.GeneratePassword(generatedPasswordLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	hashed, err := security.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, targetID, hashed); err != nil {
		return "", err
	}
	log.WithFields(log.Fields{"actor_id": actor.ID, "user_id": targetID}).Warn("password reset by admin")
	return password, nil
}
