package service

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"ctf_zone/internal/app/policy"
	"ctf_zone/internal/common"
	"ctf_zone/internal/domain/model"
	"ctf_zone/internal/domain/repository"
	"ctf_zone/internal/platform/metrics"
	"ctf_zone/internal/platform/ratelimit"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	scopeProblem = "problem"
	scopeContest = "contest"
)

// ScoringService records flag submissions and credits first solves.
// Exactly-once crediting comes from the ledger primary keys: the insert
// that wins is the only one allowed to add points.
type ScoringService struct {
	db             *sql.DB
	problemRepo    repository.ProblemRepository
	contestRepo    repository.ContestRepository
	submissionRepo repository.SubmissionRepository
	limiter        *ratelimit.Limiter
	scoreboard     *ScoreboardCache
	metrics        *metrics.Metrics
	now            func() time.Time
}

func NewScoringService(
	db *sql.DB,
	problemRepo repository.ProblemRepository,
	contestRepo repository.ContestRepository,
	submissionRepo repository.SubmissionRepository,
	limiter *ratelimit.Limiter,
	scoreboard *ScoreboardCache,
	m *metrics.Metrics,
) *ScoringService {
	return &ScoringService{
		db:             db,
		problemRepo:    problemRepo,
		contestRepo:    contestRepo,
		submissionRepo: submissionRepo,
		limiter:        limiter,
		scoreboard:     scoreboard,
		metrics:        m,
		now:            time.Now,
	}
}

func (s *ScoringService) SubmitProblem(ctx context.Context, actor *model.User, problemID, guess string) (*model.SubmitResult, error) {
	if actor == nil {
		return nil, common.ErrUnauthorized
	}
	problem, err := s.problemRepo.FindProblemByID(ctx, nil, problemID)
	if err != nil {
		return nil, err
	}
	if problem.Draft && !policy.CanSeeDraft(actor) {
		return nil, common.ErrNotFound
	}
	return s.submit(ctx, actor, nil, problem, guess)
}

func (s *ScoringService) SubmitContestProblem(ctx context.Context, actor *model.User, contestID, problemID, guess string) (*model.SubmitResult, error) {
	if actor == nil {
		return nil, common.ErrUnauthorized
	}
	contest, err := s.contestRepo.FindContestByID(ctx, nil, contestID)
	if err != nil {
		return nil, err
	}
	problem, err := s.contestRepo.FindContestProblem(ctx, nil, contestID, problemID)
	if err != nil {
		return nil, err
	}
	if problem.Draft && !policy.CanSeeDraft(actor) {
		return nil, common.ErrNotFound
	}

	now := s.now()
	if !actor.IsAdmin() && !contest.Started(now) {
		s.metrics.Submission(scopeContest, string(model.SubmitGateRejected))
		return &model.SubmitResult{Status: model.SubmitGateRejected, Message: model.MsgContestNotStarted}, nil
	}
	if contest.Ended(now) {
		s.metrics.Submission(scopeContest, string(model.SubmitGateRejected))
		return &model.SubmitResult{Status: model.SubmitGateRejected, Message: model.MsgContestEnded}, nil
	}
	return s.submit(ctx, actor, contest, problem, guess)
}

func (s *ScoringService) submit(ctx context.Context, actor *model.User, contest *model.Contest, problem *model.Problem, guess string) (*model.SubmitResult, error) {
	if strings.TrimSpace(guess) == "" {
		return nil, common.Validationf("Cannot submit an empty flag")
	}

	allowed, err := s.limiter.Allow(ctx, strconv.FormatInt(actor.ID, 10))
	if err != nil {
		// Fail open when Redis is unavailable.
		log.WithError(err).WithField("user_id", actor.ID).Warn("submit rate limiter unavailable")
		allowed = true
	}
	if !allowed {
		return nil, common.ErrTooManyRequests
	}

	scope := scopeProblem
	if contest != nil {
		scope = scopeContest
	}
	now := s.now()
	correct := problem.CheckFlag(guess)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sub := &model.Submission{
		ID:        uuid.NewString(),
		Date:      now,
		UserID:    actor.ID,
		ProblemID: problem.ID,
		Correct:   correct,
	}
	if contest != nil {
		cid := contest.ID
		sub.ContestID = &cid
	}
	if err := s.submissionRepo.CreateSubmission(ctx, tx, sub); err != nil {
		return nil, err
	}

	if !correct {
		if err := tx.Commit(); err != nil {
			return nil, common.Errorf("failed to commit submission: %w", err)
		}
		s.metrics.Submission(scope, string(model.SubmitFail))
		return &model.SubmitResult{Status: model.SubmitFail, Message: model.MsgIncorrect}, nil
	}

	var credited bool
	if contest != nil {
		if err := s.contestRepo.EnsureParticipant(ctx, tx, contest.ID, actor.ID); err != nil {
			return nil, err
		}
		credited, err = s.submissionRepo.MarkContestProblemSolved(ctx, tx, contest.ID, actor.ID, problem.ID)
		if err != nil {
			return nil, err
		}
		if credited {
			if err := s.submissionRepo.AddContestPoints(ctx, tx, contest.ID, actor.ID, problem.PointValue, now); err != nil {
				return nil, err
			}
		}
	} else {
		credited, err = s.submissionRepo.MarkProblemSolved(ctx, tx, actor.ID, problem.ID)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, common.Errorf("failed to commit submission: %w", err)
	}

	s.metrics.Submission(scope, string(model.SubmitSuccess))
	if credited {
		s.metrics.Solve(scope)
		if contest != nil {
			s.scoreboard.Invalidate(ctx, contest.ID)
		}
		fields := log.Fields{"user_id": actor.ID, "problem_id": problem.ID}
		if contest != nil {
			fields["contest_id"] = contest.ID
		}
		log.WithFields(fields).Info("solve credited")
	}
	return &model.SubmitResult{Status: model.SubmitSuccess, Message: model.MsgSolved, Credited: credited}, nil
}
