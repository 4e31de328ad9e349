package cronjob

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shiplane/shiplane/internal/models"
	"github.com/shiplane/shiplane/pkg/db"
	"gorm.io/gorm"
)

type CronJob interface {
	GetByReleaseID(uuid.UUID) (*models.CronJob, error)
	ListByCronStatus(models.CronStatus) (models.CronJobs, error)
	Update(id uuid.UUID, patch map[string]interface{}) (*models.CronJob, error)
	AcquireLock(releaseID uuid.UUID, holder string, now time.Time) (bool, error)
	ReleaseLock(releaseID uuid.UUID, holder string) error
}

type cronJobService struct {
	ctx context.Context
	db  *gorm.DB
}

func Service(ctx context.Context) CronJob {
	return &cronJobService{ctx: ctx, db: db.Connection()}
}

// WithDatabase returns a service bound to an explicit connection.
func WithDatabase(ctx context.Context, conn *gorm.DB) CronJob {
	return &cronJobService{ctx: ctx, db: conn}
}

func (c *cronJobService) GetByReleaseID(releaseID uuid.UUID) (*models.CronJob, error) {
	job := &models.CronJob{}
	return job, c.db.WithContext(c.ctx).First(job, "release_id = ?", releaseID).Error
}

func (c *cronJobService) ListByCronStatus(status models.CronStatus) (models.CronJobs, error) {
	jobs := make(models.CronJobs, 0)
	return jobs, c.db.WithContext(c.ctx).Where("cron_status = ?", status).Find(&jobs).Error
}

func (c *cronJobService) Update(id uuid.UUID, patch map[string]interface{}) (*models.CronJob, error) {
	if err := c.db.WithContext(c.ctx).
		Model(&models.CronJob{}).
		Where("id = ?", id).
		Updates(patch).Error; err != nil {
		return nil, err
	}

	job := &models.CronJob{}
	return job, c.db.WithContext(c.ctx).First(job, "id = ?", id).Error
}

// AcquireLock takes or renews the release's lease with a
// compare-and-swap on the observed lock columns. RowsAffected zero
// means another instance holds a live lease; that is contention, not
// an error.
func (c *cronJobService) AcquireLock(releaseID uuid.UUID, holder string, now time.Time) (bool, error) {
	job, err := c.GetByReleaseID(releaseID)
	if err != nil {
		return false, err
	}

	if job.LockedBy != "" && job.LockedBy != holder && !job.LockExpired(now) {
		return false, nil
	}

	q := c.db.WithContext(c.ctx).
		Model(&models.CronJob{}).
		Where("release_id = ? AND locked_by = ?", releaseID, job.LockedBy)
	if job.LockedAt == nil {
		q = q.Where("locked_at IS NULL")
	} else {
		q = q.Where("locked_at = ?", *job.LockedAt)
	}

	result := q.Updates(map[string]interface{}{
		"locked_by": holder,
		"locked_at": now,
	})
	if result.Error != nil {
		return false, result.Error
	}

	// RowsAffected == 0: another instance won the swap.
	return result.RowsAffected > 0, nil
}

// ReleaseLock clears the lease if still held by the given holder.
func (c *cronJobService) ReleaseLock(releaseID uuid.UUID, holder string) error {
	return c.db.WithContext(c.ctx).
		Model(&models.CronJob{}).
		Where("release_id = ? AND locked_by = ?", releaseID, holder).
		Updates(map[string]interface{}{
			"locked_by": "",
			"locked_at": nil,
		}).Error
}
