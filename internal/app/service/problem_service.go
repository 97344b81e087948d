package service

import (
	"context"
	"database/sql"
	"strings"

	"ctf_zone/internal/app/policy"
	"ctf_zone/internal/common"
	"ctf_zone/internal/domain/model"
	"ctf_zone/internal/domain/repository"
	"ctf_zone/internal/platform/blob"

	"github.com/gosimple/slug"
	log "github.com/sirupsen/logrus"
)

// ProblemRequest is the admin form for a new problem, standalone or in a
// contest. An empty ID is derived from the name.
type ProblemRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Hints       string `json:"hints"`
	PointValue  int    `json:"point_value"`
	Category    string `json:"category"`
	Flag        string `json:"flag"`
	Draft       bool   `json:"draft"`
}

func (r *ProblemRequest) normalize() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Category = strings.TrimSpace(r.Category)
	r.Description = strings.ReplaceAll(r.Description, "\r", "")
	r.Hints = strings.ReplaceAll(r.Hints, "\r", "")
	if r.ID == "" && r.Name != "" {
		r.ID = slug.Make(r.Name)
	}
	if r.ID == "" || r.Name == "" || r.Description == "" || r.Category == "" || r.Flag == "" {
		return common.Validationf("You have not entered all required fields")
	}
	if !slug.IsSlug(r.ID) {
		return common.Validationf("Invalid problem ID")
	}
	if r.PointValue < 0 {
		return common.Validationf("Point value cannot be negative")
	}
	return nil
}

func (r *ProblemRequest) problem() *model.Problem {
	return &model.Problem{
		ID:         r.ID,
		Name:       r.Name,
		PointValue: r.PointValue,
		Category:   r.Category,
		Flag:       r.Flag,
		Draft:      r.Draft,
	}
}

// UpdateProblemRequest edits the presentation of an existing problem.
// Points, category and flag are fixed once created.
type UpdateProblemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Hints       string `json:"hints"`
}

func (r *UpdateProblemRequest) normalize() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.ReplaceAll(r.Description, "\r", "")
	r.Hints = strings.ReplaceAll(r.Hints, "\r", "")
	if r.Name == "" || r.Description == "" {
		return common.Validationf("You have not entered all required fields")
	}
	return nil
}

type ProblemService struct {
	db             *sql.DB
	problemRepo    repository.ProblemRepository
	submissionRepo repository.SubmissionRepository
	store          blob.Store
}

func NewProblemService(db *sql.DB, problemRepo repository.ProblemRepository, submissionRepo repository.SubmissionRepository, store blob.Store) *ProblemService {
	return &ProblemService{db: db, problemRepo: problemRepo, submissionRepo: submissionRepo, store: store}
}

// List returns published problems with the caller's solved marks.
func (s *ProblemService) List(ctx context.Context, actor *model.User) ([]model.Problem, error) {
	problems, err := s.problemRepo.ListProblems(ctx, false)
	if err != nil {
		return nil, err
	}
	solved := map[string]bool{}
	if actor != nil {
		ids, err := s.submissionRepo.ListSolvedProblemIDs(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			solved[id] = true
		}
	}
	for i := range problems {
		problems[i].Solved = solved[problems[i].ID]
		problems[i].Flag = ""
	}
	return problems, nil
}

func (s *ProblemService) Drafts(ctx context.Context) ([]model.Problem, error) {
	return s.problemRepo.ListProblems(ctx, true)
}

// visible loads a problem, hiding drafts from non-admins.
func (s *ProblemService) visible(ctx context.Context, actor *model.User, id string) (*model.Problem, error) {
	p, err := s.problemRepo.FindProblemByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if p.Draft && !policy.CanSeeDraft(actor) {
		return nil, common.ErrNotFound
	}
	return p, nil
}

func (s *ProblemService) Get(ctx context.Context, actor *model.User, id string) (*model.Problem, error) {
	p, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if p.Description, err = s.store.ReadText(ctx, blob.ProblemKey(id, blob.Description)); err != nil {
		return nil, err
	}
	if p.Hints, err = s.store.ReadText(ctx, blob.ProblemKey(id, blob.Hints)); err != nil {
		return nil, err
	}
	if actor != nil {
		ids, err := s.submissionRepo.ListSolvedProblemIDs(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		for _, sid := range ids {
			if sid == id {
				p.Solved = true
				break
			}
		}
	}
	if !actor.IsAdmin() {
		p.Flag = ""
	}
	return p, nil
}

// Editorial returns ErrNotFound while no editorial has been written.
func (s *ProblemService) Editorial(ctx context.Context, actor *model.User, id string) (string, error) {
	if _, err := s.visible(ctx, actor, id); err != nil {
		return "", err
	}
	text, err := s.store.ReadText(ctx, blob.ProblemKey(id, blob.Editorial))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", common.ErrNotFound
	}
	return text, nil
}

func (s *ProblemService) Create(ctx context.Context, req ProblemRequest) (*model.Problem, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}
	p := req.problem()
	if err := s.problemRepo.CreateProblem(ctx, nil, p); err != nil {
		return nil, err
	}

	writes := []struct{ key, text string }{
		{blob.ProblemKey(p.ID, blob.Description), req.Description},
		{blob.ProblemKey(p.ID, blob.Hints), req.Hints},
		{blob.ProblemKey(p.ID, blob.Editorial), ""},
	}
	for _, w := range writes {
		if err := s.store.WriteText(ctx, w.key, w.text); err != nil {
			// Remove the row again so no problem exists without content.
			if delErr := s.deleteRows(ctx, p.ID); delErr != nil {
				log.WithError(delErr).WithField("problem_id", p.ID).Error("failed to roll back problem after blob write error")
			}
			s.deleteTree(ctx, p.ID)
			return nil, common.Errorf("failed to store problem content: %w", err)
		}
	}

	log.WithField("problem_id", p.ID).Info("problem created")
	p.Description = req.Description
	p.Hints = req.Hints
	return p, nil
}

func (s *ProblemService) Update(ctx context.Context, id string, req UpdateProblemRequest) error {
	if err := req.normalize(); err != nil {
		return err
	}
	prev, err := s.problemRepo.FindProblemByID(ctx, nil, id)
	if err != nil {
		return err
	}
	if err := s.problemRepo.UpdateProblemName(ctx, id, req.Name); err != nil {
		return err
	}
	if err := s.writeContent(ctx, id, req.Description, req.Hints); err != nil {
		if revErr := s.problemRepo.UpdateProblemName(context.WithoutCancel(ctx), id, prev.Name); revErr != nil {
			log.WithError(revErr).WithField("problem_id", id).Error("failed to restore problem name after blob write error")
		}
		return err
	}
	return nil
}

func (s *ProblemService) writeContent(ctx context.Context, id, description, hints string) error {
	if err := s.store.WriteText(ctx, blob.ProblemKey(id, blob.Description), description); err != nil {
		return common.Errorf("failed to store description: %w", err)
	}
	if err := s.store.WriteText(ctx, blob.ProblemKey(id, blob.Hints), hints); err != nil {
		return common.Errorf("failed to store hints: %w", err)
	}
	return nil
}

func (s *ProblemService) UpdateEditorial(ctx context.Context, id, body string) error {
	if _, err := s.problemRepo.FindProblemByID(ctx, nil, id); err != nil {
		return err
	}
	body = strings.ReplaceAll(body, "\r", "")
	if err := s.store.WriteText(ctx, blob.ProblemKey(id, blob.Editorial), body); err != nil {
		return common.Errorf("failed to store editorial: %w", err)
	}
	return nil
}

func (s *ProblemService) Publish(ctx context.Context, id string) error {
	return s.problemRepo.PublishProblem(ctx, id)
}

// Delete removes the problem with its solves and standalone submissions,
// then its content.
func (s *ProblemService) Delete(ctx context.Context, id string) error {
	if err := s.deleteRows(ctx, id); err != nil {
		return err
	}
	s.deleteTree(ctx, id)
	log.WithField("problem_id", id).Info("problem deleted")
	return nil
}

func (s *ProblemService) deleteRows(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.problemRepo.DeleteProblem(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return common.Errorf("failed to commit problem deletion: %w", err)
	}
	return nil
}

func (s *ProblemService) deleteTree(ctx context.Context, id string) {
	if err := s.store.DeleteTree(ctx, blob.ProblemDir(id)); err != nil {
		log.WithError(err).WithField("problem_id", id).Error("failed to delete problem content")
	}
}
