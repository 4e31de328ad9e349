package task

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shiplane/shiplane/internal/models"
	"github.com/shiplane/shiplane/pkg/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNotRetryable is returned when retrying a task that is not FAILED.
var ErrNotRetryable = errors.New("only failed tasks can be retried")

type Task interface {
	Get(uuid.UUID) (*models.ReleaseTask, error)
	GetByReleaseAndStage(releaseID uuid.UUID, stage models.Stage, regressionID uuid.UUID) (models.ReleaseTasks, error)
	GetByRelease(releaseID uuid.UUID) (models.ReleaseTasks, error)
	CreateBatch(models.ReleaseTasks) error
	Update(id uuid.UUID, patch map[string]interface{}) (*models.ReleaseTask, error)
	Retry(id uuid.UUID) (*models.ReleaseTask, error)
}

type taskService struct {
	ctx context.Context
	db  *gorm.DB
}

func Service(ctx context.Context) Task {
	return &taskService{ctx: ctx, db: db.Connection()}
}

// WithDatabase returns a service bound to an explicit connection.
func WithDatabase(ctx context.Context, conn *gorm.DB) Task {
	return &taskService{ctx: ctx, db: conn}
}

func (t *taskService) Get(id uuid.UUID) (*models.ReleaseTask, error) {
	task := &models.ReleaseTask{}
	return task, t.db.WithContext(t.ctx).First(task, "id = ?", id).Error
}

// GetByReleaseAndStage returns the tasks of one stage scope. For the
// regression stage the scope is narrowed to a single cycle; the zero
// regressionID matches only cycle-less rows.
func (t *taskService) GetByReleaseAndStage(
	releaseID uuid.UUID,
	stage models.Stage,
	regressionID uuid.UUID,
) (models.ReleaseTasks, error) {
	tasks := make(models.ReleaseTasks, 0)
	return tasks, t.db.WithContext(t.ctx).
		Where("release_id = ? AND stage = ? AND regression_id = ?", releaseID, stage, regressionID).
		Order("created_at ASC").
		Find(&tasks).Error
}

func (t *taskService) GetByRelease(releaseID uuid.UUID) (models.ReleaseTasks, error) {
	tasks := make(models.ReleaseTasks, 0)
	return tasks, t.db.WithContext(t.ctx).
		Where("release_id = ?", releaseID).
		Order("created_at ASC").
		Find(&tasks).Error
}

// CreateBatch inserts a task batch in one transaction. A unique-guard
// violation from a concurrent creator surfaces unchanged so the caller
// can re-query and adopt the surviving rows.
func (t *taskService) CreateBatch(tasks models.ReleaseTasks) error {
	if len(tasks) == 0 {
		return nil
	}

	return t.db.WithContext(t.ctx).Transaction(func(tx *gorm.DB) error {
		for _, task := range tasks {
			if err := tx.Create(task).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (t *taskService) Update(id uuid.UUID, patch map[string]interface{}) (*models.ReleaseTask, error) {
	if err := t.db.WithContext(t.ctx).
		Model(&models.ReleaseTask{}).
		Where("id = ?", id).
		Updates(patch).Error; err != nil {
		return nil, err
	}

	return t.Get(id)
}

// Retry resets a FAILED task to PENDING, clearing the recorded error.
func (t *taskService) Retry(id uuid.UUID) (*models.ReleaseTask, error) {
	task, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	if task.TaskStatus != models.TaskStatusFailed {
		return nil, ErrNotRetryable
	}

	return t.Update(id, map[string]interface{}{
		"task_status": models.TaskStatusPending,
		"output":      datatypes.JSON(nil),
	})
}
