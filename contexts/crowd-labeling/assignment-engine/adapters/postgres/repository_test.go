package postgresadapter

import (
	"context"
	"errors"
	"testing"

	"crowdlabel/contexts/crowd-labeling/assignment-engine/domain/entities"
	domainerrors "crowdlabel/contexts/crowd-labeling/assignment-engine/domain/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	return NewRepository(gdb, nil), mock
}

func jobRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "project_id", "data", "existing_project_id"})
}

func TestGetJobDecodesQuota(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`FROM job AS j LEFT JOIN project AS p`).
		WillReturnRows(jobRows().AddRow(int64(7), int64(10), []byte(`{"votesPerTaskRule": 3}`), int64(10)))

	job, err := repo.GetJob(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), job.JobID)
	assert.Equal(t, int64(10), job.ProjectID)
	quota, err := job.Quota()
	require.NoError(t, err)
	assert.Equal(t, 3, quota)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobAcceptsQuotaStoredAsString(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`FROM job AS j`).
		WillReturnRows(jobRows().AddRow(int64(7), int64(10), []byte(`{"votesPerTaskRule": "3"}`), int64(10)))

	job, err := repo.GetJob(context.Background(), 7)
	require.NoError(t, err)
	quota, err := job.Quota()
	require.NoError(t, err)
	assert.Equal(t, 3, quota)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`FROM job AS j`).WillReturnRows(jobRows())

	_, err := repo.GetJob(context.Background(), 404)
	assert.ErrorIs(t, err, domainerrors.ErrJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobMissingProject(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`FROM job AS j`).
		WillReturnRows(jobRows().AddRow(int64(7), int64(55), []byte(`{"votesPerTaskRule": 3}`), nil))

	job, err := repo.GetJob(context.Background(), 7)
	assert.ErrorIs(t, err, domainerrors.ErrProjectNotFound)
	assert.Equal(t, int64(55), job.ProjectID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobMalformedConfiguration(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`FROM job AS j`).
		WillReturnRows(jobRows().AddRow(int64(7), int64(10), []byte(`{"votesPerTaskRule": "three"}`), int64(10)))

	_, err := repo.GetJob(context.Background(), 7)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidConfiguration)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountVotesFiltersAnsweredDirection(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "task" WHERE job_id = .+ AND item_id = .+ AND criterion_id = .+ AND answered = .+ AND vote = .+`).
		WithArgs(int64(7), int64(100), int64(1), true, "no").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))

	total, err := repo.CountVotes(context.Background(), 7, 100, 1, entities.VoteNo)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountVotesPropagatesStorageErrors(t *testing.T) {
	repo, mock := newMockRepository(t)
	storageErr := errors.New("connection reset by peer")
	mock.ExpectQuery(`SELECT count\(\*\) FROM "task"`).WillReturnError(storageErr)

	_, err := repo.CountVotes(context.Background(), 7, 100, 1, entities.VoteYes)
	assert.ErrorIs(t, err, storageErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTallyVotesGroupsInOneQuery(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`SELECT item_id, criterion_id, COUNT\(\*\) FILTER \(WHERE vote = .+\) AS in_votes, COUNT\(\*\) FILTER \(WHERE vote = .+\) AS out_votes FROM "task" WHERE job_id = .+ AND answered = .+ GROUP BY item_id, criterion_id`).
		WithArgs("yes", "no", int64(7), true).
		WillReturnRows(sqlmock.NewRows([]string{"item_id", "criterion_id", "in_votes", "out_votes"}).
			AddRow(int64(100), int64(1), int64(2), int64(1)).
			AddRow(int64(101), int64(2), int64(0), int64(1)))

	tallies, err := repo.TallyVotes(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []entities.ItemTally{
		{ItemID: 100, CriterionID: 1, Tally: entities.Tally{InVotes: 2, OutVotes: 1}},
		{ItemID: 101, CriterionID: 2, Tally: entities.Tally{OutVotes: 1}},
	}, tallies)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountWorkerVotes(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "task" WHERE job_id = .+ AND worker_id = .+ AND answered = .+`).
		WithArgs(int64(7), int64(21), true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(5)))

	total, err := repo.CountWorkerVotes(context.Background(), 7, 21)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListItemAndCriterionIDs(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`FROM "item" WHERE project_id = `).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(100)).AddRow(int64(101)))
	mock.ExpectQuery(`FROM "criterion" WHERE project_id = `).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	items, err := repo.ListItemIDs(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 101}, items)

	criteria, err := repo.ListCriterionIDs(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, criteria)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnsweredItemIDs(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`SELECT DISTINCT .*FROM "task" WHERE job_id = .+ AND worker_id = .+ AND criterion_id = .+ AND answered = `).
		WillReturnRows(sqlmock.NewRows([]string{"item_id"}).AddRow(int64(100)))

	items, err := repo.AnsweredItemIDs(context.Background(), 7, 21, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizedItemIDsToleratesMissingResultTable(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`FROM "result"`).WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "result" does not exist`})

	items, err := repo.FinalizedItemIDs(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListJobsSkipsMalformedConfiguration(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`FROM "job"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "data"}).
			AddRow(int64(7), int64(10), []byte(`{"votesPerTaskRule": 3}`)).
			AddRow(int64(8), int64(10), []byte(`not json`)).
			AddRow(int64(9), int64(11), nil))

	jobs, err := repo.ListJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, int64(7), jobs[0].JobID)
	assert.Equal(t, int64(9), jobs[1].JobID)
	assert.Nil(t, jobs[1].Config.VotesPerTaskRule)
	require.NoError(t, mock.ExpectationsWereMet())
}
