package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"ctf_zone/internal/common"
	"ctf_zone/internal/domain/repository"
	"ctf_zone/internal/platform/blob"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExportFixture(t *testing.T, store blob.Store) (*ExportService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	svc := NewExportService(
		db,
		repository.NewPgProblemRepository(db),
		repository.NewPgContestRepository(db),
		repository.NewPgSubmissionRepository(db),
		store,
	)
	return svc, mock
}

func seedContestProblem(t *testing.T, store blob.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.WriteText(ctx, blob.ContestProblemKey("c1", "p1", blob.Description), "Find the flag."))
	require.NoError(t, store.WriteText(ctx, blob.ContestProblemKey("c1", "p1", blob.Hints), "Look closer."))
}

func expectExportPreconditions(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("FROM contests WHERE id").
		WithArgs("c1").
		WillReturnRows(contestRow("c1", "Spring CTF", testNow.Add(-48*time.Hour), testNow.Add(-24*time.Hour), true))
	mock.ExpectQuery("FROM contest_problems WHERE contest_id").
		WithArgs("c1", "p1").
		WillReturnRows(sqlmock.NewRows(contestProblemColumns).AddRow("c1", "p1", "Warmup", 100, "web", "CTF{x}", false))
	mock.ExpectQuery("FROM problems WHERE id").
		WithArgs("c1-p1").
		WillReturnRows(sqlmock.NewRows(problemColumns))
}

func TestExportContestProblem(t *testing.T) {
	store := newBlobStore(t)
	seedContestProblem(t, store)
	svc, mock := newExportFixture(t, store)

	expectExportPreconditions(mock)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO problems").
		WithArgs("c1-p1", "Spring CTF - Warmup", 100, "web", "CTF{x}", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO problem_solved").
		WithArgs("c1-p1", "c1", "p1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	newID, err := svc.ExportContestProblem(context.Background(), "c1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "c1-p1", newID)

	ctx := context.Background()
	desc, err := store.ReadText(ctx, blob.ProblemKey("c1-p1", blob.Description))
	require.NoError(t, err)
	assert.Equal(t, "Find the flag.", desc)
	hints, err := store.ReadText(ctx, blob.ProblemKey("c1-p1", blob.Hints))
	require.NoError(t, err)
	assert.Equal(t, "Look closer.", hints)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportContestProblem_AlreadyExported(t *testing.T) {
	store := newBlobStore(t)
	svc, mock := newExportFixture(t, store)

	mock.ExpectQuery("FROM contests WHERE id").
		WillReturnRows(contestRow("c1", "Spring CTF", testNow.Add(-48*time.Hour), testNow.Add(-24*time.Hour), true))
	mock.ExpectQuery("FROM contest_problems WHERE contest_id").
		WillReturnRows(sqlmock.NewRows(contestProblemColumns).AddRow("c1", "p1", "Warmup", 100, "web", "CTF{x}", false))
	mock.ExpectQuery("FROM problems WHERE id").
		WithArgs("c1-p1").
		WillReturnRows(sqlmock.NewRows(problemColumns).AddRow("c1-p1", "Spring CTF - Warmup", 100, "web", "CTF{x}", false))

	_, err := svc.ExportContestProblem(context.Background(), "c1", "p1")
	assert.ErrorIs(t, err, common.ErrConflict)
	assert.Equal(t, "This problem has already been exported", common.PublicMessage(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportContestProblem_MissingProblem(t *testing.T) {
	svc, mock := newExportFixture(t, newBlobStore(t))

	mock.ExpectQuery("FROM contests WHERE id").
		WillReturnRows(contestRow("c1", "Spring CTF", testNow.Add(-48*time.Hour), testNow.Add(-24*time.Hour), true))
	mock.ExpectQuery("FROM contest_problems WHERE contest_id").
		WillReturnRows(sqlmock.NewRows(contestProblemColumns))

	_, err := svc.ExportContestProblem(context.Background(), "c1", "p9")
	assert.ErrorIs(t, err, common.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportContestProblem_BlobFailureRollsBack(t *testing.T) {
	base := newBlobStore(t)
	seedContestProblem(t, base)
	store := &failingStore{Store: base, failKey: blob.ProblemKey("c1-p1", blob.Hints)}
	svc, mock := newExportFixture(t, store)

	expectExportPreconditions(mock)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO problems").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO problem_solved").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := svc.ExportContestProblem(context.Background(), "c1", "p1")
	require.Error(t, err)

	desc, err := base.ReadText(context.Background(), blob.ProblemKey("c1-p1", blob.Description))
	require.NoError(t, err)
	assert.Empty(t, desc, "partial content must be removed")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportContestProblem_CommitFailureRemovesContent(t *testing.T) {
	store := newBlobStore(t)
	seedContestProblem(t, store)
	svc, mock := newExportFixture(t, store)

	expectExportPreconditions(mock)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO problems").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO problem_solved").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	_, err := svc.ExportContestProblem(context.Background(), "c1", "p1")
	require.Error(t, err)

	desc, err := store.ReadText(context.Background(), blob.ProblemKey("c1-p1", blob.Description))
	require.NoError(t, err)
	assert.Empty(t, desc)
	require.NoError(t, mock.ExpectationsWereMet())
}
