package service

import (
	"context"
	"testing"
	"time"

	"ctf_zone/internal/common"
	"ctf_zone/internal/domain/model"
	"ctf_zone/internal/domain/repository"
	"ctf_zone/internal/platform/ratelimit"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scoringFixture struct {
	svc  *ScoringService
	mock sqlmock.Sqlmock
}

func newScoringFixture(t *testing.T, limiter *ratelimit.Limiter, cache *ScoreboardCache) *scoringFixture {
	t.Helper()
	db, mock := newMockDB(t)
	svc := NewScoringService(
		db,
		repository.NewPgProblemRepository(db),
		repository.NewPgContestRepository(db),
		repository.NewPgSubmissionRepository(db),
		limiter,
		cache,
		nil,
	)
	svc.now = fixedClock
	return &scoringFixture{svc: svc, mock: mock}
}

func (f *scoringFixture) expectRunningContest() {
	f.mock.ExpectQuery("FROM contests WHERE id").
		WithArgs("c1").
		WillReturnRows(contestRow("c1", "Spring CTF", testNow.Add(-time.Hour), testNow.Add(time.Hour), true))
	f.mock.ExpectQuery("FROM contest_problems WHERE contest_id").
		WithArgs("c1", "p1").
		WillReturnRows(sqlmock.NewRows(contestProblemColumns).AddRow("c1", "p1", "Warmup", 100, "web", "CTF{x}", false))
}

func TestSubmitContestProblem_CreditsOnce(t *testing.T) {
	f := newScoringFixture(t, nil, nil)
	actor := regularUser(1, "alice")
	ctx := context.Background()

	// First correct submission is credited.
	f.expectRunningContest()
	f.mock.ExpectBegin()
	f.mock.ExpectExec("INSERT INTO submissions").
		WithArgs(sqlmock.AnyArg(), testNow, int64(1), "p1", "c1", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO contest_users").
		WithArgs("c1", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO contest_solved").
		WithArgs("c1", int64(1), "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE contest_users SET points").
		WithArgs(100, testNow, "c1", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	res, err := f.svc.SubmitContestProblem(ctx, actor, "c1", "p1", "CTF{x}")
	require.NoError(t, err)
	assert.Equal(t, model.SubmitSuccess, res.Status)
	assert.Equal(t, model.MsgSolved, res.Message)
	assert.True(t, res.Credited)

	// Second correct submission is recorded but adds nothing.
	f.expectRunningContest()
	f.mock.ExpectBegin()
	f.mock.ExpectExec("INSERT INTO submissions").
		WithArgs(sqlmock.AnyArg(), testNow, int64(1), "p1", "c1", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO contest_users").
		WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectExec("INSERT INTO contest_solved").
		WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectCommit()

	res, err = f.svc.SubmitContestProblem(ctx, actor, "c1", "p1", "CTF{x}")
	require.NoError(t, err)
	assert.Equal(t, model.SubmitSuccess, res.Status)
	assert.False(t, res.Credited)

	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSubmitContestProblem_WrongFlag(t *testing.T) {
	f := newScoringFixture(t, nil, nil)

	f.expectRunningContest()
	f.mock.ExpectBegin()
	f.mock.ExpectExec("INSERT INTO submissions").
		WithArgs(sqlmock.AnyArg(), testNow, int64(1), "p1", "c1", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	res, err := f.svc.SubmitContestProblem(context.Background(), regularUser(1, "alice"), "c1", "p1", "CTF{y}")
	require.NoError(t, err)
	assert.Equal(t, model.SubmitFail, res.Status)
	assert.Equal(t, model.MsgIncorrect, res.Message)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSubmitContestProblem_EndedContestRecordsNothing(t *testing.T) {
	f := newScoringFixture(t, nil, nil)

	f.mock.ExpectQuery("FROM contests WHERE id").
		WithArgs("c2").
		WillReturnRows(contestRow("c2", "Old CTF", testNow.Add(-48*time.Hour), testNow.Add(-24*time.Hour), true))
	f.mock.ExpectQuery("FROM contest_problems WHERE contest_id").
		WithArgs("c2", "p1").
		WillReturnRows(sqlmock.NewRows(contestProblemColumns).AddRow("c2", "p1", "Warmup", 100, "web", "CTF{x}", false))

	res, err := f.svc.SubmitContestProblem(context.Background(), adminUser(2, "root"), "c2", "p1", "CTF{x}")
	require.NoError(t, err)
	assert.Equal(t, model.SubmitGateRejected, res.Status)
	assert.Equal(t, model.MsgContestEnded, res.Message)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSubmitContestProblem_NotStarted(t *testing.T) {
	f := newScoringFixture(t, nil, nil)

	f.mock.ExpectQuery("FROM contests WHERE id").
		WithArgs("c3").
		WillReturnRows(contestRow("c3", "Next CTF", testNow.Add(time.Hour), testNow.Add(2*time.Hour), true))
	f.mock.ExpectQuery("FROM contest_problems WHERE contest_id").
		WithArgs("c3", "p1").
		WillReturnRows(sqlmock.NewRows(contestProblemColumns).AddRow("c3", "p1", "Warmup", 100, "web", "CTF{x}", false))

	res, err := f.svc.SubmitContestProblem(context.Background(), regularUser(1, "alice"), "c3", "p1", "CTF{x}")
	require.NoError(t, err)
	assert.Equal(t, model.SubmitGateRejected, res.Status)
	assert.Equal(t, model.MsgContestNotStarted, res.Message)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSubmitContestProblem_EmptyGuess(t *testing.T) {
	f := newScoringFixture(t, nil, nil)
	f.expectRunningContest()

	_, err := f.svc.SubmitContestProblem(context.Background(), regularUser(1, "alice"), "c1", "p1", "   ")
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, "Cannot submit an empty flag", common.PublicMessage(err))
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSubmitProblem_DraftHiddenFromUsers(t *testing.T) {
	f := newScoringFixture(t, nil, nil)

	f.mock.ExpectQuery("FROM problems WHERE id").
		WithArgs("secret").
		WillReturnRows(sqlmock.NewRows(problemColumns).AddRow("secret", "Secret", 50, "misc", "CTF{s}", true))

	_, err := f.svc.SubmitProblem(context.Background(), regularUser(1, "alice"), "secret", "CTF{s}")
	assert.ErrorIs(t, err, common.ErrNotFound)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSubmitProblem_MissingTarget(t *testing.T) {
	f := newScoringFixture(t, nil, nil)

	f.mock.ExpectQuery("FROM problems WHERE id").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(problemColumns))

	_, err := f.svc.SubmitProblem(context.Background(), regularUser(1, "alice"), "nope", "CTF{s}")
	assert.ErrorIs(t, err, common.ErrNotFound)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSubmitProblem_StandaloneCredit(t *testing.T) {
	f := newScoringFixture(t, nil, nil)

	f.mock.ExpectQuery("FROM problems WHERE id").
		WithArgs("helloworld").
		WillReturnRows(sqlmock.NewRows(problemColumns).AddRow("helloworld", "Hello World", 10, "intro", "CTF{hi}", false))
	f.mock.ExpectBegin()
	f.mock.ExpectExec("INSERT INTO submissions").
		WithArgs(sqlmock.AnyArg(), testNow, int64(4), "helloworld", nil, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO problem_solved").
		WithArgs(int64(4), "helloworld").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	res, err := f.svc.SubmitProblem(context.Background(), regularUser(4, "dave"), "helloworld", "CTF{hi}")
	require.NoError(t, err)
	assert.Equal(t, model.SubmitSuccess, res.Status)
	assert.True(t, res.Credited)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSubmit_RateLimited(t *testing.T) {
	_, rdb := newTestRedis(t)
	limiter := ratelimit.New(rdb, "rl:submit:", 0.001, 1)
	f := newScoringFixture(t, limiter, nil)
	actor := regularUser(4, "dave")

	f.mock.ExpectQuery("FROM problems WHERE id").
		WillReturnRows(sqlmock.NewRows(problemColumns).AddRow("helloworld", "Hello World", 10, "intro", "CTF{hi}", false))
	f.mock.ExpectBegin()
	f.mock.ExpectExec("INSERT INTO submissions").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()
	_, err := f.svc.SubmitProblem(context.Background(), actor, "helloworld", "wrong")
	require.NoError(t, err)

	f.mock.ExpectQuery("FROM problems WHERE id").
		WillReturnRows(sqlmock.NewRows(problemColumns).AddRow("helloworld", "Hello World", 10, "intro", "CTF{hi}", false))
	_, err = f.svc.SubmitProblem(context.Background(), actor, "helloworld", "wrong again")
	assert.ErrorIs(t, err, common.ErrTooManyRequests)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSubmit_CreditInvalidatesScoreboard(t *testing.T) {
	mr, rdb := newTestRedis(t)
	cache := NewScoreboardCache(rdb, time.Minute, nil)
	f := newScoringFixture(t, nil, cache)
	require.NoError(t, mr.Set("scoreboard:c1", "[]"))

	f.expectRunningContest()
	f.mock.ExpectBegin()
	f.mock.ExpectExec("INSERT INTO submissions").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO contest_users").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO contest_solved").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE contest_users SET points").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	_, err := f.svc.SubmitContestProblem(context.Background(), regularUser(1, "alice"), "c1", "p1", "CTF{x}")
	require.NoError(t, err)
	assert.False(t, mr.Exists("scoreboard:c1"))
	require.NoError(t, f.mock.ExpectationsWereMet())
}
