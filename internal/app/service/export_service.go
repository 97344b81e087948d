package service

import (
	"context"
	"database/sql"
	"errors"

	"ctf_zone/internal/common"
	"ctf_zone/internal/domain/model"
	"ctf_zone/internal/domain/repository"
	"ctf_zone/internal/platform/blob"

	log "github.com/sirupsen/logrus"
)

// ExportService turns a contest problem into a standalone problem and
// carries its solvers over.
type ExportService struct {
	db             *sql.DB
	problemRepo    repository.ProblemRepository
	contestRepo    repository.ContestRepository
	submissionRepo repository.SubmissionRepository
	store          blob.Store
}

func NewExportService(
	db *sql.DB,
	problemRepo repository.ProblemRepository,
	contestRepo repository.ContestRepository,
	submissionRepo repository.SubmissionRepository,
	store blob.Store,
) *ExportService {
	return &ExportService{
		db:             db,
		problemRepo:    problemRepo,
		contestRepo:    contestRepo,
		submissionRepo: submissionRepo,
		store:          store,
	}
}

// ExportedID is the standalone id a contest problem is exported under.
func ExportedID(contestID, problemID string) string {
	return contestID + "-" + problemID
}

// ExportContestProblem copies the problem row, its solvers and its content.
// The content is written before the commit, so a failure on either side
// leaves neither the row nor the blobs behind.
func (s *ExportService) ExportContestProblem(ctx context.Context, contestID, problemID string) (string, error) {
	contest, err := s.contestRepo.FindContestByID(ctx, nil, contestID)
	if err != nil {
		return "", err
	}
	src, err := s.contestRepo.FindContestProblem(ctx, nil, contestID, problemID)
	if err != nil {
		return "", err
	}

	newID := ExportedID(contestID, problemID)
	if _, err := s.problemRepo.FindProblemByID(ctx, nil, newID); err == nil {
		return "", common.Conflictf("This problem has already been exported")
	} else if !errors.Is(err, common.ErrNotFound) {
		return "", err
	}

	description, err := s.store.ReadText(ctx, blob.ContestProblemKey(contestID, problemID, blob.Description))
	if err != nil {
		return "", err
	}
	hints, err := s.store.ReadText(ctx, blob.ContestProblemKey(contestID, problemID, blob.Hints))
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	exported := &model.Problem{
		ID:         newID,
		Name:       contest.Name + " - " + src.Name,
		PointValue: src.PointValue,
		Category:   src.Category,
		Flag:       src.Flag,
		Draft:      false,
	}
	if err := s.problemRepo.CreateProblem(ctx, tx, exported); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return "", common.Conflictf("This problem has already been exported")
		}
		return "", err
	}
	mirrored, err := s.submissionRepo.MirrorContestSolves(ctx, tx, contestID, problemID, newID)
	if err != nil {
		return "", err
	}

	writes := []struct{ key, text string }{
		{blob.ProblemKey(newID, blob.Description), description},
		{blob.ProblemKey(newID, blob.Hints), hints},
		{blob.ProblemKey(newID, blob.Editorial), ""},
	}
	for _, w := range writes {
		if err := s.store.WriteText(ctx, w.key, w.text); err != nil {
			tx.Rollback()
			s.discardContent(ctx, newID)
			return "", common.Errorf("failed to copy problem content: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		s.discardContent(ctx, newID)
		return "", common.Errorf("failed to commit export: %w", err)
	}

	log.WithFields(log.Fields{
		"contest_id": contestID,
		"problem_id": problemID,
		"new_id":     newID,
		"solvers":    mirrored,
	}).Info("contest problem exported")
	return newID, nil
}

func (s *ExportService) discardContent(ctx context.Context, problemID string) {
	if err := s.store.DeleteTree(ctx, blob.ProblemDir(problemID)); err != nil {
		log.WithError(err).WithField("problem_id", problemID).Error("failed to remove content of aborted export")
	}
}
