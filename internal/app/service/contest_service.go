package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"ctf_zone/internal/app/policy"
	"ctf_zone/internal/common"
	"ctf_zone/internal/domain/model"
	"ctf_zone/internal/domain/repository"
	"ctf_zone/internal/platform/blob"

	"github.com/gosimple/slug"
	log "github.com/sirupsen/logrus"
)

type ContestRequest struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	ScoreboardVisible bool      `json:"scoreboard_visible"`
}

func (r *ContestRequest) normalize(requireID bool) error {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.ReplaceAll(r.Description, "\r", "")
	if requireID && r.ID == "" && r.Name != "" {
		r.ID = slug.Make(r.Name)
	}
	if (requireID && r.ID == "") || r.Name == "" || r.Description == "" || r.Start.IsZero() || r.End.IsZero() {
		return common.Validationf("You have not entered all required fields")
	}
	if requireID && !slug.IsSlug(r.ID) {
		return common.Validationf("Invalid contest ID")
	}
	if r.End.Before(r.Start) {
		return common.Validationf("Contest cannot end before it starts!")
	}
	return nil
}

func (r *ContestRequest) contest() *model.Contest {
	return &model.Contest{
		ID:                r.ID,
		Name:              r.Name,
		Start:             r.Start.UTC(),
		End:               r.End.UTC(),
		ScoreboardVisible: r.ScoreboardVisible,
	}
}

type ContestService struct {
	db             *sql.DB
	contestRepo    repository.ContestRepository
	submissionRepo repository.SubmissionRepository
	store          blob.Store
	scoreboard     *ScoreboardCache
	now            func() time.Time
}

func NewContestService(
	db *sql.DB,
	contestRepo repository.ContestRepository,
	submissionRepo repository.SubmissionRepository,
	store blob.Store,
	scoreboard *ScoreboardCache,
) *ContestService {
	return &ContestService{
		db:             db,
		contestRepo:    contestRepo,
		submissionRepo: submissionRepo,
		store:          store,
		scoreboard:     scoreboard,
		now:            time.Now,
	}
}

// List splits contests into past, current and future around now.
func (s *ContestService) List(ctx context.Context) (*model.ContestList, error) {
	contests, err := s.contestRepo.ListContests(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := &model.ContestList{Past: []model.Contest{}, Current: []model.Contest{}, Future: []model.Contest{}}
	for _, c := range contests {
		switch {
		case c.Ended(now):
			out.Past = append(out.Past, c)
		case c.Started(now):
			out.Current = append(out.Current, c)
		default:
			out.Future = append(out.Future, c)
		}
	}
	return out, nil
}

// open loads a contest and refuses non-admins before it starts.
func (s *ContestService) open(ctx context.Context, actor *model.User, contestID string) (*model.Contest, error) {
	c, err := s.contestRepo.FindContestByID(ctx, nil, contestID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !c.Started(s.now()) {
		return nil, common.Forbiddenf("This contest has not started yet")
	}
	return c, nil
}

func (s *ContestService) solvedSet(ctx context.Context, contestID string, actor *model.User) (map[string]bool, error) {
	solved := map[string]bool{}
	if actor == nil {
		return solved, nil
	}
	ids, err := s.contestRepo.ListSolvedProblemIDs(ctx, contestID, actor.ID)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		solved[id] = true
	}
	return solved, nil
}

// View registers the caller as a participant and lists the published
// problems with solved marks.
func (s *ContestService) View(ctx context.Context, actor *model.User, contestID string) (*model.ContestView, error) {
	if actor == nil {
		return nil, common.ErrUnauthorized
	}
	c, err := s.open(ctx, actor, contestID)
	if err != nil {
		return nil, err
	}
	if err := s.contestRepo.EnsureParticipant(ctx, nil, contestID, actor.ID); err != nil {
		return nil, err
	}
	if c.Description, err = s.store.ReadText(ctx, blob.ContestKey(contestID, blob.Description)); err != nil {
		return nil, err
	}

	problems, err := s.contestRepo.ListContestProblems(ctx, contestID, false)
	if err != nil {
		return nil, err
	}
	solved, err := s.solvedSet(ctx, contestID, actor)
	if err != nil {
		return nil, err
	}
	for i := range problems {
		problems[i].Solved = solved[problems[i].ID]
		problems[i].Flag = ""
	}

	return &model.ContestView{
		Contest:    *c,
		Scoreboard: c.ScoreboardVisible || actor.IsAdmin(),
		Problems:   problems,
	}, nil
}

func (s *ContestService) Scoreboard(ctx context.Context, actor *model.User, contestID string) ([]model.ScoreboardEntry, error) {
	c, err := s.open(ctx, actor, contestID)
	if err != nil {
		return nil, err
	}
	if !c.ScoreboardVisible && !actor.IsAdmin() {
		return nil, common.Forbiddenf("The scoreboard for this contest is not visible")
	}
	return s.scoreboard.Get(ctx, contestID, func(ctx context.Context) ([]model.ScoreboardEntry, error) {
		return s.contestRepo.GetScoreboard(ctx, contestID)
	})
}

func (s *ContestService) GetProblem(ctx context.Context, actor *model.User, contestID, problemID string) (*model.Problem, error) {
	if _, err := s.open(ctx, actor, contestID); err != nil {
		return nil, err
	}
	p, err := s.contestRepo.FindContestProblem(ctx, nil, contestID, problemID)
	if err != nil {
		return nil, err
	}
	if p.Draft && !policy.CanSeeDraft(actor) {
		return nil, common.ErrNotFound
	}
	if p.Description, err = s.store.ReadText(ctx, blob.ContestProblemKey(contestID, problemID, blob.Description)); err != nil {
		return nil, err
	}
	if p.Hints, err = s.store.ReadText(ctx, blob.ContestProblemKey(contestID, problemID, blob.Hints)); err != nil {
		return nil, err
	}
	solved, err := s.solvedSet(ctx, contestID, actor)
	if err != nil {
		return nil, err
	}
	p.Solved = solved[problemID]
	if !actor.IsAdmin() {
		p.Flag = ""
	}
	return p, nil
}

func (s *ContestService) Drafts(ctx context.Context, contestID string) ([]model.Problem, error) {
	if _, err := s.contestRepo.FindContestByID(ctx, nil, contestID); err != nil {
		return nil, err
	}
	return s.contestRepo.ListContestProblems(ctx, contestID, true)
}

func (s *ContestService) Create(ctx context.Context, req ContestRequest) (*model.Contest, error) {
	if err := req.normalize(true); err != nil {
		return nil, err
	}
	c := req.contest()
	if err := s.contestRepo.CreateContest(ctx, c); err != nil {
		return nil, err
	}
	if err := s.store.WriteText(ctx, blob.ContestKey(c.ID, blob.Description), req.Description); err != nil {
		if delErr := s.deleteRows(ctx, c.ID); delErr != nil {
			log.WithError(delErr).WithField("contest_id", c.ID).Error("failed to roll back contest after blob write error")
		}
		return nil, common.Errorf("failed to store contest description: %w", err)
	}
	log.WithField("contest_id", c.ID).Info("contest created")
	c.Description = req.Description
	return c, nil
}

func (s *ContestService) Update(ctx context.Context, contestID string, req ContestRequest) error {
	req.ID = contestID
	if err := req.normalize(false); err != nil {
		return err
	}
	prev, err := s.contestRepo.FindContestByID(ctx, nil, contestID)
	if err != nil {
		return err
	}
	if err := s.contestRepo.UpdateContest(ctx, req.contest()); err != nil {
		return err
	}
	if err := s.store.WriteText(ctx, blob.ContestKey(contestID, blob.Description), req.Description); err != nil {
		if revErr := s.contestRepo.UpdateContest(context.WithoutCancel(ctx), prev); revErr != nil {
			log.WithError(revErr).WithField("contest_id", contestID).Error("failed to restore contest after blob write error")
		}
		return common.Errorf("failed to store contest description: %w", err)
	}
	s.scoreboard.Invalidate(ctx, contestID)
	return nil
}

// Delete drops the contest, its problems and all contest scoring state.
// Submissions are kept.
func (s *ContestService) Delete(ctx context.Context, contestID string) error {
	if err := s.deleteRows(ctx, contestID); err != nil {
		return err
	}
	if err := s.store.DeleteTree(ctx, blob.ContestDir(contestID)); err != nil {
		log.WithError(err).WithField("contest_id", contestID).Error("failed to delete contest content")
	}
	s.scoreboard.Invalidate(ctx, contestID)
	log.WithField("contest_id", contestID).Info("contest deleted")
	return nil
}

func (s *ContestService) deleteRows(ctx context.Context, contestID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.contestRepo.DeleteContest(ctx, tx, contestID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return common.Errorf("failed to commit contest deletion: %w", err)
	}
	return nil
}

// AddProblem binds a new problem to a contest that has not ended.
func (s *ContestService) AddProblem(ctx context.Context, contestID string, req ProblemRequest) (*model.Problem, error) {
	c, err := s.contestRepo.FindContestByID(ctx, nil, contestID)
	if err != nil {
		return nil, err
	}
	if c.Ended(s.now()) {
		return nil, common.Forbiddenf("This contest has already ended!")
	}
	if err := req.normalize(); err != nil {
		return nil, err
	}

	p := req.problem()
	p.ContestID = contestID
	if err := s.contestRepo.CreateContestProblem(ctx, p); err != nil {
		return nil, err
	}
	if err := s.writeProblemContent(ctx, contestID, p.ID, req.Description, req.Hints); err != nil {
		s.discardProblem(context.WithoutCancel(ctx), contestID, p.ID)
		return nil, err
	}
	log.WithFields(log.Fields{"contest_id": contestID, "problem_id": p.ID}).Info("contest problem created")
	p.Description = req.Description
	p.Hints = req.Hints
	return p, nil
}

func (s *ContestService) UpdateProblem(ctx context.Context, contestID, problemID string, req UpdateProblemRequest) error {
	if err := req.normalize(); err != nil {
		return err
	}
	prev, err := s.contestRepo.FindContestProblem(ctx, nil, contestID, problemID)
	if err != nil {
		return err
	}
	if err := s.contestRepo.UpdateContestProblemName(ctx, contestID, problemID, req.Name); err != nil {
		return err
	}
	if err := s.writeProblemContent(ctx, contestID, problemID, req.Description, req.Hints); err != nil {
		if revErr := s.contestRepo.UpdateContestProblemName(context.WithoutCancel(ctx), contestID, problemID, prev.Name); revErr != nil {
			log.WithError(revErr).WithFields(log.Fields{"contest_id": contestID, "problem_id": problemID}).
				Error("failed to restore contest problem name after blob write error")
		}
		return err
	}
	return nil
}

// discardProblem undoes a contest problem whose content could not be stored.
func (s *ContestService) discardProblem(ctx context.Context, contestID, problemID string) {
	fields := log.Fields{"contest_id": contestID, "problem_id": problemID}
	if err := s.contestRepo.DeleteContestProblem(ctx, contestID, problemID); err != nil {
		log.WithError(err).WithFields(fields).Error("failed to roll back contest problem after blob write error")
	}
	if err := s.store.DeleteTree(ctx, blob.ContestProblemDir(contestID, problemID)); err != nil {
		log.WithError(err).WithFields(fields).Error("failed to remove partial contest problem content")
	}
}

func (s *ContestService) PublishProblem(ctx context.Context, contestID, problemID string) error {
	return s.contestRepo.PublishContestProblem(ctx, contestID, problemID)
}

func (s *ContestService) writeProblemContent(ctx context.Context, contestID, problemID, description, hints string) error {
	if err := s.store.WriteText(ctx, blob.ContestProblemKey(contestID, problemID, blob.Description), description); err != nil {
		return common.Errorf("failed to store description: %w", err)
	}
	if err := s.store.WriteText(ctx, blob.ContestProblemKey(contestID, problemID, blob.Hints), hints); err != nil {
		return common.Errorf("failed to store hints: %w", err)
	}
	return nil
}
