package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	application "crowdlabel/contexts/crowd-labeling/assignment-engine/application"
	"crowdlabel/contexts/crowd-labeling/assignment-engine/domain/entities"
	domainerrors "crowdlabel/contexts/crowd-labeling/assignment-engine/domain/errors"
	"crowdlabel/contexts/crowd-labeling/assignment-engine/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Repository reads the labeling schema (job, project, item, criterion, task,
// result). It never writes: tasks and results are owned by other services.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) GetJob(ctx context.Context, jobID int64) (entities.Job, error) {
	var row jobRow
	result := r.db.WithContext(ctx).
		Table("job AS j").
		Select("j.id, j.project_id, j.data, p.id AS existing_project_id").
		Joins("LEFT JOIN project AS p ON p.id = j.project_id").
		Where("j.id = ?", jobID).
		Limit(1).
		Scan(&row)
	if result.Error != nil {
		return entities.Job{}, r.logError("assignment_repo_get_job_failed", result.Error, "job_id", jobID)
	}
	if result.RowsAffected == 0 {
		return entities.Job{}, domainerrors.ErrJobNotFound
	}
	job, err := row.toEntity()
	if err != nil {
		return entities.Job{}, r.logError("assignment_repo_decode_job_failed", err, "job_id", jobID)
	}
	if row.ExistingProjectID == nil {
		return job, domainerrors.ErrProjectNotFound
	}
	return job, nil
}

func (r *Repository) ListJobs(ctx context.Context) ([]entities.Job, error) {
	var rows []jobRow
	if err := r.db.WithContext(ctx).
		Table("job").
		Select("id, project_id, data").
		Order("id ASC").
		Scan(&rows).Error; err != nil {
		return nil, r.logError("assignment_repo_list_jobs_failed", err)
	}
	items := make([]entities.Job, 0, len(rows))
	for _, row := range rows {
		job, err := row.toEntity()
		if err != nil {
			// One malformed job must not hide the rest from the refresher.
			r.logger.Warn("skipping job with malformed configuration",
				"event", "assignment_repo_list_jobs_skip",
				"module", application.ModuleName,
				"layer", "adapter",
				"job_id", row.ID,
				"error", err.Error(),
			)
			continue
		}
		items = append(items, job)
	}
	return items, nil
}

func (r *Repository) ListItemIDs(ctx context.Context, projectID int64) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).
		Model(&itemModel{}).
		Where("project_id = ?", projectID).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, r.logError("assignment_repo_list_items_failed", err, "project_id", projectID)
	}
	return ids, nil
}

func (r *Repository) ListCriterionIDs(ctx context.Context, projectID int64) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).
		Model(&criterionModel{}).
		Where("project_id = ?", projectID).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, r.logError("assignment_repo_list_criteria_failed", err, "project_id", projectID)
	}
	return ids, nil
}

func (r *Repository) CountVotes(
	ctx context.Context,
	jobID int64,
	itemID int64,
	criterionID int64,
	direction entities.VoteDirection,
) (int, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&taskModel{}).
		Where("job_id = ?", jobID).
		Where("item_id = ?", itemID).
		Where("criterion_id = ?", criterionID).
		Where("answered = ?", true).
		Where("vote = ?", string(direction)).
		Count(&total).Error; err != nil {
		return 0, r.logError("assignment_repo_count_votes_failed", err,
			"job_id", jobID,
			"item_id", itemID,
			"criterion_id", criterionID,
			"direction", string(direction),
		)
	}
	return int(total), nil
}

// TallyVotes computes every nonzero tally of the job in one grouped query.
func (r *Repository) TallyVotes(ctx context.Context, jobID int64) ([]entities.ItemTally, error) {
	var rows []tallyRow
	if err := r.db.WithContext(ctx).
		Model(&taskModel{}).
		Select(
			"item_id, criterion_id, COUNT(*) FILTER (WHERE vote = ?) AS in_votes, COUNT(*) FILTER (WHERE vote = ?) AS out_votes",
			string(entities.VoteYes),
			string(entities.VoteNo),
		).
		Where("job_id = ?", jobID).
		Where("answered = ?", true).
		Group("item_id, criterion_id").
		Order("item_id ASC, criterion_id ASC").
		Scan(&rows).Error; err != nil {
		return nil, r.logError("assignment_repo_tally_votes_failed", err, "job_id", jobID)
	}
	tallies := make([]entities.ItemTally, 0, len(rows))
	for _, row := range rows {
		tallies = append(tallies, entities.ItemTally{
			ItemID:      row.ItemID,
			CriterionID: row.CriterionID,
			Tally:       entities.Tally{InVotes: row.InVotes, OutVotes: row.OutVotes},
		})
	}
	return tallies, nil
}

func (r *Repository) AnsweredItemIDs(ctx context.Context, jobID int64, workerID int64, criterionID int64) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).
		Model(&taskModel{}).
		Distinct().
		Where("job_id = ?", jobID).
		Where("worker_id = ?", workerID).
		Where("criterion_id = ?", criterionID).
		Where("answered = ?", true).
		Order("item_id ASC").
		Pluck("item_id", &ids).Error; err != nil {
		return nil, r.logError("assignment_repo_answered_items_failed", err,
			"job_id", jobID,
			"worker_id", workerID,
			"criterion_id", criterionID,
		)
	}
	return ids, nil
}

func (r *Repository) CountWorkerVotes(ctx context.Context, jobID int64, workerID int64) (int, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&taskModel{}).
		Where("job_id = ?", jobID).
		Where("worker_id = ?", workerID).
		Where("answered = ?", true).
		Count(&total).Error; err != nil {
		return 0, r.logError("assignment_repo_count_worker_votes_failed", err,
			"job_id", jobID,
			"worker_id", workerID,
		)
	}
	return int(total), nil
}

func (r *Repository) FinalizedItemIDs(ctx context.Context, jobID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&resultModel{}).
		Distinct().
		Where("job_id = ?", jobID).
		Order("item_id ASC").
		Pluck("item_id", &ids).
		Error
	if err != nil {
		if isUndefinedTable(err) {
			// Deployments without a finalization service have no result table.
			return nil, nil
		}
		return nil, r.logError("assignment_repo_finalized_items_failed", err, "job_id", jobID)
	}
	return ids, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+10)
	fields = append(fields,
		"event", event,
		"module", application.ModuleName,
		"layer", "adapter",
		"error", err.Error(),
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		fields = append(fields, "pg_code", pgErr.Code)
	}
	fields = append(fields, attrs...)
	r.logger.Error("assignment repository operation failed", fields...)
	return err
}

type jobRow struct {
	ID                int64  `gorm:"column:id"`
	ProjectID         int64  `gorm:"column:project_id"`
	Data              []byte `gorm:"column:data"`
	ExistingProjectID *int64 `gorm:"column:existing_project_id"`
}

func (m jobRow) toEntity() (entities.Job, error) {
	job := entities.Job{
		JobID:     m.ID,
		ProjectID: m.ProjectID,
	}
	if len(m.Data) == 0 {
		return job, nil
	}
	if err := json.Unmarshal(m.Data, &job.Config); err != nil {
		return entities.Job{}, fmt.Errorf("%w: %v", domainerrors.ErrInvalidConfiguration, err)
	}
	return job, nil
}

type tallyRow struct {
	ItemID      int64 `gorm:"column:item_id"`
	CriterionID int64 `gorm:"column:criterion_id"`
	InVotes     int   `gorm:"column:in_votes"`
	OutVotes    int   `gorm:"column:out_votes"`
}

type itemModel struct {
	ID        int64 `gorm:"column:id;primaryKey"`
	ProjectID int64 `gorm:"column:project_id"`
}

func (itemModel) TableName() string {
	return "item"
}

type criterionModel struct {
	ID        int64 `gorm:"column:id;primaryKey"`
	ProjectID int64 `gorm:"column:project_id"`
}

func (criterionModel) TableName() string {
	return "criterion"
}

type taskModel struct {
	ID          int64     `gorm:"column:id;primaryKey"`
	JobID       int64     `gorm:"column:job_id"`
	WorkerID    int64     `gorm:"column:worker_id"`
	ItemID      int64     `gorm:"column:item_id"`
	CriterionID int64     `gorm:"column:criterion_id"`
	Answered    bool      `gorm:"column:answered"`
	Vote        string    `gorm:"column:vote"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (taskModel) TableName() string {
	return "task"
}

type resultModel struct {
	ID     int64 `gorm:"column:id;primaryKey"`
	JobID  int64 `gorm:"column:job_id"`
	ItemID int64 `gorm:"column:item_id"`
}

func (resultModel) TableName() string {
	return "result"
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

var _ ports.VoteStore = (*Repository)(nil)
var _ ports.TallyReader = (*Repository)(nil)
