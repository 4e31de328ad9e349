package cycle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shiplane/shiplane/internal/models"
	"github.com/shiplane/shiplane/pkg/db"
	"gorm.io/gorm"
)

type Cycle interface {
	Get(uuid.UUID) (*models.RegressionCycle, error)
	ListByRelease(releaseID uuid.UUID) (models.RegressionCycles, error)
	InProgress(releaseID uuid.UUID) (*models.RegressionCycle, error)
	Create(*models.RegressionCycle) error
	Update(id uuid.UUID, patch map[string]interface{}) (*models.RegressionCycle, error)
	StageBuild(*models.BuildArtifact) error
	StagedBuilds(releaseID uuid.UUID, stage models.Stage) (models.BuildArtifacts, error)
	CycleBuilds(cycleID uuid.UUID) (models.BuildArtifacts, error)
	ConsumeBuilds(builds models.BuildArtifacts, cycleID uuid.UUID, now time.Time) error
}

type cycleService struct {
	ctx context.Context
	db  *gorm.DB
}

func Service(ctx context.Context) Cycle {
	return &cycleService{ctx: ctx, db: db.Connection()}
}

// WithDatabase returns a service bound to an explicit connection.
func WithDatabase(ctx context.Context, conn *gorm.DB) Cycle {
	return &cycleService{ctx: ctx, db: conn}
}

func (c *cycleService) Get(id uuid.UUID) (*models.RegressionCycle, error) {
	cycle := &models.RegressionCycle{}
	return cycle, c.db.WithContext(c.ctx).First(cycle, "id = ?", id).Error
}

func (c *cycleService) ListByRelease(releaseID uuid.UUID) (models.RegressionCycles, error) {
	cycles := make(models.RegressionCycles, 0)
	return cycles, c.db.WithContext(c.ctx).
		Where("release_id = ?", releaseID).
		Order("created_at ASC").
		Find(&cycles).Error
}

// InProgress returns the release's IN_PROGRESS cycle, or nil when no
// cycle is active.
func (c *cycleService) InProgress(releaseID uuid.UUID) (*models.RegressionCycle, error) {
	cycle := &models.RegressionCycle{}
	err := c.db.WithContext(c.ctx).
		Where("release_id = ? AND status = ?", releaseID, models.CycleStatusInProgress).
		First(cycle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return cycle, nil
}

// Create inserts the cycle and demotes any previous latest cycle in
// the same transaction.
func (c *cycleService) Create(cycle *models.RegressionCycle) error {
	return c.db.WithContext(c.ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.RegressionCycle{}).
			Where("release_id = ? AND is_latest = ?", cycle.ReleaseID, true).
			Update("is_latest", false).Error; err != nil {
			return err
		}
		return tx.Create(cycle).Error
	})
}

func (c *cycleService) Update(id uuid.UUID, patch map[string]interface{}) (*models.RegressionCycle, error) {
	if err := c.db.WithContext(c.ctx).
		Model(&models.RegressionCycle{}).
		Where("id = ?", id).
		Updates(patch).Error; err != nil {
		return nil, err
	}

	return c.Get(id)
}

func (c *cycleService) StageBuild(build *models.BuildArtifact) error {
	return c.db.WithContext(c.ctx).Create(build).Error
}

// StagedBuilds returns unconsumed builds staged for a release stage.
func (c *cycleService) StagedBuilds(releaseID uuid.UUID, stage models.Stage) (models.BuildArtifacts, error) {
	builds := make(models.BuildArtifacts, 0)
	return builds, c.db.WithContext(c.ctx).
		Where("release_id = ? AND stage = ? AND consumed = ?", releaseID, stage, false).
		Order("created_at ASC").
		Find(&builds).Error
}

// CycleBuilds returns the builds a cycle consumed.
func (c *cycleService) CycleBuilds(cycleID uuid.UUID) (models.BuildArtifacts, error) {
	builds := make(models.BuildArtifacts, 0)
	return builds, c.db.WithContext(c.ctx).
		Where("cycle_id = ?", cycleID).
		Order("created_at ASC").
		Find(&builds).Error
}

// ConsumeBuilds marks staged builds as spent by a cycle. Consumption
// is a move: the rows stay for audit but can never be staged again.
func (c *cycleService) ConsumeBuilds(builds models.BuildArtifacts, cycleID uuid.UUID, now time.Time) error {
	if len(builds) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(builds))
	for _, build := range builds {
		ids = append(ids, build.ID)
	}

	return c.db.WithContext(c.ctx).
		Model(&models.BuildArtifact{}).
		Where("id IN ? AND consumed = ?", ids, false).
		Updates(map[string]interface{}{
			"consumed":    true,
			"consumed_at": now,
			"cycle_id":    cycleID,
		}).Error
}
